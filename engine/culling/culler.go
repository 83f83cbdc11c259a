package culling

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-dispatch/common"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/jobs"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/logging"
)

// CullChunk is the culling view of one chunk. Visible is read and written in place;
// SplitMasks is written for light views only.
type CullChunk struct {
	Bounds       common.AABB
	EntityBounds []common.AABB
	Visible      common.Mask128
	SplitMasks   [common.ChunkCapacity]uint8
}

// Stats counts what a cull pass did.
type Stats struct {
	ChunksIn       int
	ChunksOut      int
	ChunksPartial  int
	EntitiesTested int
	EntitiesCulled int
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.ChunksIn += o.ChunksIn
	s.ChunksOut += o.ChunksOut
	s.ChunksPartial += o.ChunksPartial
	s.EntitiesTested += o.EntitiesTested
	s.EntitiesCulled += o.EntitiesCulled
}

// Culler tests chunks and their entities against a view.
type Culler interface {
	// CullChunk culls a single chunk in place.
	//
	// Parameters:
	//   - ctx: the view to cull against
	//   - chunk: the chunk to cull
	//
	// Returns:
	//   - Stats: counters for this chunk
	CullChunk(ctx *CullingContext, chunk *CullChunk) Stats

	// Cull culls every chunk in parallel.
	//
	// Parameters:
	//   - ctx: the view to cull against
	//   - chunks: the chunks to cull
	//
	// Returns:
	//   - Stats: summed counters
	Cull(ctx *CullingContext, chunks []*CullChunk) Stats
}

type culler struct {
	pool   jobs.Pool
	logger *slog.Logger
}

var _ Culler = &culler{}

// NewCuller creates a Culler. Without options it runs serially and logs nothing.
//
// Parameters:
//   - options: functional options
//
// Returns:
//   - Culler: the culler
func NewCuller(options ...CullerBuilderOption) Culler {
	c := &culler{
		pool:   jobs.Serial(),
		logger: logging.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *culler) Cull(ctx *CullingContext, chunks []*CullChunk) Stats {
	p := ctx.prepare()
	if ctx.ViewType == ViewLight && !p.spheres.Enabled() {
		c.logger.Debug("receiver sphere culling disabled", "splits", len(ctx.Splits), "projection", ctx.CascadeProjection)
	}

	batches := c.pool.Workers()
	perBatch := make([]Stats, batches)
	c.pool.ForEachBatch(len(chunks), batches, func(batch, start, end int) {
		for _, chunk := range chunks[start:end] {
			perBatch[batch].Add(c.cullChunk(ctx, p, chunk))
		}
	})

	var total Stats
	for _, s := range perBatch {
		total.Add(s)
	}
	return total
}

func (c *culler) CullChunk(ctx *CullingContext, chunk *CullChunk) Stats {
	return c.cullChunk(ctx, ctx.prepare(), chunk)
}

func (c *culler) cullChunk(ctx *CullingContext, p *preparedContext, chunk *CullChunk) Stats {
	if chunk.Visible.IsZero() {
		return Stats{}
	}
	if ctx.ViewType == ViewLight {
		return cullLight(p, chunk)
	}
	return cullCamera(p, chunk)
}

func cullCamera(p *preparedContext, chunk *CullChunk) Stats {
	var s Stats
	switch IntersectAABB(p.frustum, chunk.Bounds) {
	case common.Out:
		s.ChunksOut++
		s.EntitiesCulled += chunk.Visible.Count()
		chunk.Visible = common.Mask128{}
	case common.In:
		s.ChunksIn++
	default:
		s.ChunksPartial++
		chunk.Visible.Each(func(i int) {
			s.EntitiesTested++
			if i >= len(chunk.EntityBounds) || !IntersectsAABB(p.frustum, chunk.EntityBounds[i]) {
				chunk.Visible.Clear(i)
				s.EntitiesCulled++
			}
		})
	}
	return s
}

func cullLight(p *preparedContext, chunk *CullChunk) Stats {
	var s Stats
	before := chunk.Visible.Count()

	// Casters that are behind every receiver relative to the light are rejected first.
	if len(p.receiver) > 0 {
		switch IntersectAABB(p.receiver, chunk.Bounds) {
		case common.Out:
			s.ChunksOut++
			s.EntitiesCulled = before
			chunk.Visible = common.Mask128{}
			return s
		case common.Partial:
			chunk.Visible.Each(func(i int) {
				s.EntitiesTested++
				if i >= len(chunk.EntityBounds) || !IntersectsAABB(p.receiver, chunk.EntityBounds[i]) {
					chunk.Visible.Clear(i)
				}
			})
		}
	}

	var masks [common.ChunkCapacity]uint8
	anyPartial := false
	for split, packets := range p.splits {
		bit := uint8(1) << split
		switch IntersectAABB(packets, chunk.Bounds) {
		case common.Out:
			continue
		case common.In:
			chunk.Visible.Each(func(i int) { masks[i] |= bit })
		default:
			anyPartial = true
			chunk.Visible.Each(func(i int) {
				s.EntitiesTested++
				if i < len(chunk.EntityBounds) && IntersectsAABB(packets, chunk.EntityBounds[i]) {
					masks[i] |= bit
				}
			})
		}
	}

	if p.spheres.Enabled() {
		chunk.Visible.Each(func(i int) {
			if i < len(chunk.EntityBounds) {
				masks[i] &= p.spheres.Cull(chunk.EntityBounds[i], masks[i])
			}
		})
	}

	chunk.Visible.Each(func(i int) {
		if masks[i] == 0 {
			chunk.Visible.Clear(i)
		}
	})
	chunk.SplitMasks = masks

	s.EntitiesCulled = before - chunk.Visible.Count()
	switch {
	case chunk.Visible.IsZero():
		s.ChunksOut++
	case anyPartial || s.EntitiesCulled > 0:
		s.ChunksPartial++
	default:
		s.ChunksIn++
	}
	return s
}
