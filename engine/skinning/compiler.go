package skinning

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-dispatch/common"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/arena"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/broker"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/jobs"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/layout"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/logging"
	"github.com/pkg/errors"
)

// Input is everything the compiler reads for one dispatch.
type Input struct {
	SkeletonChunks []*SkeletonChunk
	MeshChunks     []*MeshChunk
	Meshes         []MeshInfo
	Classification ClassificationMap
	// MaxRequiredDeformData sizes the deform buffer.
	MaxRequiredDeformData uint32
}

// Collection is the result of Collect: every request of the dispatch, grouped by skeleton.
type Collection struct {
	Input    *Input
	Requests []MeshSkinningRequest
	Groups   []SkeletonGroup
}

// Stats counts what one Write did.
type Stats struct {
	Requests   int
	Dropped    int
	Skeletons  int
	Chains     int
	Strategies [4]int
}

// Frame is the result of Write: the planned layout and the filled broker buffers.
type Frame struct {
	Layout             layout.BufferLayout
	Offsets            []layout.ChunkOffsets
	Meta               *broker.UploadBuffer[broker.Uint4]
	Bones              *broker.UploadBuffer[common.TransformQvvs]
	SkinningTransforms *broker.GPUBuffer
	Deform             *broker.GPUBuffer
	Stats              Stats
}

// Compiler turns visible skinned meshes into skinning streams in three phases:
// Collect gathers requests, Write plans and fills the GPU buffers, and Dispatch lists
// the kernel launches.
type Compiler interface {
	// Collect gathers one request per usage for every visible skinned mesh, grouped by skeleton.
	//
	// Parameters:
	//   - in: the dispatch input
	//
	// Returns:
	//   - *Collection: the grouped requests; valid until the next Collect
	Collect(in *Input) *Collection

	// Write validates and emits every group into the broker's buffers and uploads them.
	//
	// Parameters:
	//   - col: the result of Collect
	//
	// Returns:
	//   - *Frame: the layout, buffers and stats
	//   - error: a broker error; data problems are logged and never returned
	Write(col *Collection) (*Frame, error)

	// Dispatch lists the compute launches for a written frame.
	//
	// Parameters:
	//   - f: the result of Write
	//
	// Returns:
	//   - []DispatchCommand: the launches, in execution order
	Dispatch(f *Frame) []DispatchCommand
}

type compiler struct {
	threshold int
	pool      jobs.Pool
	logger    *slog.Logger
	broker    broker.GraphicsBufferBroker

	batches  [][]MeshSkinningRequest
	requests *arena.Arena[MeshSkinningRequest]
}

var _ Compiler = &compiler{}

// NewCompiler creates a Compiler.
//
// Parameters:
//   - options: functional options
//
// Returns:
//   - Compiler: the compiler
func NewCompiler(options ...CompilerBuilderOption) Compiler {
	c := &compiler{
		threshold: PlatformBatchThreshold,
		pool:      jobs.Serial(),
		logger:    logging.Nop(),
		requests:  arena.New[MeshSkinningRequest](0),
	}
	for _, opt := range options {
		opt(c)
	}
	if c.broker == nil {
		c.broker = broker.NewMemoryBroker()
	}
	return c
}

func (c *compiler) Collect(in *Input) *Collection {
	workers := c.pool.Workers()
	for len(c.batches) < workers {
		c.batches = append(c.batches, nil)
	}
	for i := range c.batches {
		c.batches[i] = c.batches[i][:0]
	}

	c.pool.ForEachBatch(len(in.MeshChunks), workers, func(batch, start, end int) {
		out := c.batches[batch]
		for ci := start; ci < end; ci++ {
			out = c.collectChunk(in, in.MeshChunks[ci], out)
		}
		c.batches[batch] = out
	})

	total := 0
	for _, b := range c.batches {
		total += len(b)
	}
	c.requests.Reset()
	all := make([]MeshSkinningRequest, 0, total)
	for _, b := range c.batches {
		all = append(all, b...)
	}
	grouped := c.requests.Alloc(total)
	return &Collection{
		Input:    in,
		Requests: grouped,
		Groups:   GroupBySkeleton(all, grouped),
	}
}

func (c *compiler) collectChunk(in *Input, chunk *MeshChunk, out []MeshSkinningRequest) []MeshSkinningRequest {
	if chunk == nil || chunk.Visible.IsZero() {
		return out
	}
	class, ok := in.Classification[chunk.ID]
	if !ok {
		return out
	}
	usages := UsagesFor(class)
	if len(usages) == 0 {
		return out
	}

	chunk.Visible.Each(func(e int) {
		if e >= len(chunk.Meshes) {
			return
		}
		m := &chunk.Meshes[e]
		for _, u := range usages {
			out = append(out, MeshSkinningRequest{
				Skeleton:          m.Skeleton,
				Entity:            m.Entity,
				MeshIndex:         int32(m.Mesh),
				Usage:             u,
				DestinationOffset: m.DeformOffsets[DeformSlot(u)],
			})
		}
	})
	return out
}

// preparedChunk holds the validated chains of one skeleton chunk.
type preparedChunk struct {
	chains  []chain
	counts  layout.ChunkCounts
	dropped int
}

func (c *compiler) Write(col *Collection) (*Frame, error) {
	in := col.Input
	byChunk := make([][]SkeletonGroup, len(in.SkeletonChunks))
	stats := Stats{Requests: len(col.Requests)}
	for _, g := range col.Groups {
		if _, ok := c.skeleton(in, g.Skeleton); !ok {
			var logged map[uint32]struct{}
			for _, r := range g.Requests {
				if _, ok := logged[r.Entity]; ok {
					continue
				}
				logged = markLogged(logged, r.Entity)
				c.logger.Error("skinned mesh references a missing skeleton",
					"entity", r.Entity, "chunk", g.Skeleton.Chunk, "index", g.Skeleton.Index)
			}
			stats.Dropped += len(g.Requests)
			continue
		}
		byChunk[g.Skeleton.Chunk] = append(byChunk[g.Skeleton.Chunk], g)
	}

	prepared := make([]preparedChunk, len(in.SkeletonChunks))
	c.pool.ForEachBatch(len(prepared), 0, func(_, start, end int) {
		for i := start; i < end; i++ {
			prepared[i] = c.prepareChunk(in, byChunk[i])
		}
	})

	counts := make([]layout.ChunkCounts, len(prepared))
	for i := range prepared {
		counts[i] = prepared[i].counts
		stats.Dropped += prepared[i].dropped
		stats.Chains += len(prepared[i].chains)
		skeletons := map[int32]struct{}{}
		for _, ch := range prepared[i].chains {
			stats.Strategies[ch.strategy]++
			skeletons[ch.skeleton.Index] = struct{}{}
		}
		stats.Skeletons += len(skeletons)
	}
	plan, offsets := layout.Plan(counts)

	frame := &Frame{Layout: plan, Offsets: offsets, Stats: stats}
	var err error
	if frame.Meta, err = c.broker.GetMetaUint4UploadBuffer(int(plan.MetaSize)); err != nil {
		return nil, errors.Wrap(err, "skinning meta buffer")
	}
	if frame.Bones, err = c.broker.GetBonesBuffer(int(plan.BonesCount)); err != nil {
		return nil, errors.Wrap(err, "skinning bones buffer")
	}
	if frame.SkinningTransforms, err = c.broker.GetSkinningTransformsBuffer(int(plan.SkinningTransformsCount)); err != nil {
		return nil, errors.Wrap(err, "skinning transforms buffer")
	}
	if frame.Deform, err = c.broker.GetDeformBuffer(int(in.MaxRequiredDeformData)); err != nil {
		return nil, errors.Wrap(err, "deform buffer")
	}

	meta, bones := frame.Meta.Data(), frame.Bones.Data()
	c.pool.ForEachBatch(len(prepared), 0, func(_, start, end int) {
		for i := start; i < end; i++ {
			w := chunkWriter{write: true, base: offsets[i], meta: meta, bones: bones}
			c.emitChunk(&w, in, prepared[i].chains)
			if w.counts != prepared[i].counts {
				c.logger.Error("skinning stream counts changed between planning and writing",
					"chunk", i, "planned", prepared[i].counts, "written", w.counts)
			}
		}
	})

	if err := frame.Meta.Unlock(); err != nil {
		return nil, err
	}
	if err := frame.Bones.Unlock(); err != nil {
		return nil, err
	}
	return frame, nil
}

func (c *compiler) skeleton(in *Input, ref SkeletonRef) (*Skeleton, bool) {
	if ref.Chunk < 0 || int(ref.Chunk) >= len(in.SkeletonChunks) || in.SkeletonChunks[ref.Chunk] == nil {
		return nil, false
	}
	sc := in.SkeletonChunks[ref.Chunk]
	if ref.Index < 0 || int(ref.Index) >= len(sc.Skeletons) || int(ref.Index) >= common.ChunkCapacity {
		return nil, false
	}
	return &sc.Skeletons[ref.Index], true
}

// prepareChunk validates, splits and sorts every group of a skeleton chunk and counts its output.
func (c *compiler) prepareChunk(in *Input, groups []SkeletonGroup) preparedChunk {
	var p preparedChunk
	for _, g := range groups {
		skel, _ := c.skeleton(in, g.Skeleton)
		requests, dropped := validateGroup(c.logger, g, skel, in.Meshes)
		p.dropped += dropped
		if len(requests) == 0 {
			continue
		}

		boneCount := skel.BoneCount()
		if boneCount > MaxHeaderBones {
			p.dropped += len(requests)
			var logged map[uint32]struct{}
			for _, r := range requests {
				if _, ok := logged[r.Entity]; ok {
					continue
				}
				logged = markLogged(logged, r.Entity)
				c.logger.Error("skeleton has more bones than a skinning header can address",
					"entity", r.Entity, "skeleton", skel.Entity, "skeletonBones", boneCount, "maxBones", MaxHeaderBones)
			}
			continue
		}
		for _, reqs := range splitHistoryChains(requests) {
			history := reqs[0].Usage.History()
			if len(skel.Bones[history]) != boneCount {
				c.logger.Warn("skeleton is missing a bone history snapshot, using the current pose",
					"skeleton", skel.Entity, "history", history)
			}
			sortChain(reqs, in.Meshes)
			strategy, distinctBones := chooseStrategy(boneCount, reqs, in.Meshes, c.threshold)
			p.chains = append(p.chains, chain{
				skeleton:      g.Skeleton,
				history:       history,
				boneCount:     boneCount,
				strategy:      strategy,
				requests:      reqs,
				distinctBones: distinctBones,
			})
		}
	}

	w := chunkWriter{}
	c.emitChunk(&w, in, p.chains)
	p.counts = w.counts
	return p
}

func (c *compiler) emitChunk(w *chunkWriter, in *Input, chains []chain) {
	for i := range chains {
		skel, _ := c.skeleton(in, chains[i].skeleton)
		w.emitChain(&chains[i], skel, in.Meshes, c.threshold)
	}
}
