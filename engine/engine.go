// Package engine runs the per-frame dispatch pipeline: visibility propagation,
// frustum culling, draw-command generation and skinning-stream compilation.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-dispatch/common"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/broker"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/culling"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/drawcmd"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/jobs"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/logging"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/profiler"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/skinning"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ErrReleased is returned by RunFrame after Release.
var ErrReleased = errors.New("engine: released")

// View is one camera or light pass of a frame.
type View struct {
	Context *culling.CullingContext
	// Activated clears the per-frame visibility before this view, so everything it sees
	// is processed again. Set it for a camera that just became active.
	Activated bool
}

// Chunk is one entity chunk as seen by every stage of the pipeline.
type Chunk struct {
	// Cull holds the chunk's bounds. Its Visible mask is the set of live entities; culling
	// overwrites it during a view and RunFrame restores it before returning.
	Cull *culling.CullChunk
	// Draw holds the draw state of the chunk; nil for chunks that are never drawn.
	Draw *drawcmd.DrawChunk
	// Skinned holds the chunk's skinned meshes; nil for chunks without skinning.
	Skinned *skinning.MeshChunk
}

// FrameInput is everything RunFrame reads.
type FrameInput struct {
	Views  []View
	Chunks []Chunk
	// Skinning holds the skeletons, mesh assets and classification. Its MeshChunks are
	// ignored; the engine fills them from Chunks. Nil skips skinning.
	Skinning *skinning.Input
	// OnView is called after every view. Broker buffers and Draw.Bins are reused by the
	// next view, so GPU uploads and encoding of a view happen here.
	OnView func(index int, out *ViewOutput) error
}

// ViewOutput is the result of one view.
type ViewOutput struct {
	Cull       culling.Stats
	Draw       *drawcmd.Output
	Skinning   *skinning.Frame
	Dispatches []skinning.DispatchCommand
}

// FrameOutput is the result of RunFrame.
type FrameOutput struct {
	Views []ViewOutput
	Stats profiler.FrameStats
}

// Engine owns the worker pool and the reusable per-frame state of the pipeline.
type Engine interface {
	// RunFrame processes every view of a frame in order.
	// For each view the chunks are culled, the camera masks are merged into the frame and
	// dispatch masks, then draw commands and skinning streams are generated concurrently.
	//
	// Parameters:
	//   - ctx: cancels the frame between views
	//   - in: the frame input
	//
	// Returns:
	//   - *FrameOutput: per-view outputs and frame counters
	//   - error: a broker, callback or context error
	RunFrame(ctx context.Context, in FrameInput) (*FrameOutput, error)

	// EnableProfiler enables periodic pipeline statistics on the logger.
	EnableProfiler()

	// DisableProfiler disables periodic pipeline statistics.
	DisableProfiler()

	// Release stops the worker pool and releases broker buffers. Safe to call multiple times.
	Release()
}

// engine implements the Engine interface.
type engine struct {
	mu sync.Mutex

	workers int
	logger  *slog.Logger
	broker  broker.GraphicsBufferBroker

	profiler         *profiler.Profiler
	profilingEnabled bool
	profileInterval  time.Duration

	drawOptions     []drawcmd.CollectorBuilderOption
	skinningOptions []skinning.CompilerBuilderOption

	pool      jobs.Pool
	culler    culling.Culler
	collector drawcmd.Collector
	compiler  skinning.Compiler

	base       []common.Mask128
	camera     []common.Mask128
	frame      []common.Mask128
	dispatch   []common.Mask128
	cullChunks []*culling.CullChunk
	drawChunks []*drawcmd.DrawChunk
	meshChunks []*skinning.MeshChunk
	meshOwners []int

	released bool
}

var _ Engine = &engine{}

// NewEngine creates a new Engine instance with the provided options.
// Without options it uses one worker per spare CPU, a MemoryBroker and no logging.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		logger:          logging.Nop(),
		profileInterval: time.Second,
	}
	for _, opt := range options {
		opt(e)
	}
	if e.broker == nil {
		e.broker = broker.NewMemoryBroker()
	}

	e.pool = jobs.NewPool(e.workers)
	e.profiler = profiler.NewProfiler(e.logger, e.profileInterval)
	e.culler = culling.NewCuller(culling.WithPool(e.pool), culling.WithLogger(e.logger))
	e.collector = drawcmd.NewCollector(append([]drawcmd.CollectorBuilderOption{
		drawcmd.WithPool(e.pool),
		drawcmd.WithLogger(e.logger),
	}, e.drawOptions...)...)
	e.compiler = skinning.NewCompiler(append([]skinning.CompilerBuilderOption{
		skinning.WithPool(e.pool),
		skinning.WithLogger(e.logger),
		skinning.WithBroker(e.broker),
	}, e.skinningOptions...)...)
	return e
}

func (e *engine) RunFrame(ctx context.Context, in FrameInput) (*FrameOutput, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return nil, ErrReleased
	}

	start := time.Now()
	e.beginFrame(in.Chunks)
	defer e.restoreVisibility()
	out := &FrameOutput{Views: make([]ViewOutput, 0, len(in.Views))}

	for vi, view := range in.Views {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if view.Context == nil {
			return nil, errors.Errorf("view %d has no culling context", vi)
		}
		if view.Activated {
			culling.ResetFrame(e.frame)
		}

		vo, err := e.runView(ctx, in, view)
		if err != nil {
			return nil, errors.Wrapf(err, "view %d", vi)
		}
		if in.OnView != nil {
			if err := in.OnView(vi, &vo); err != nil {
				return nil, errors.Wrapf(err, "view %d callback", vi)
			}
		}
		out.Views = append(out.Views, vo)
		out.Stats.Add(viewStats(&vo))
	}

	out.Stats.Duration = time.Since(start)
	if e.profilingEnabled {
		e.profiler.Tick(out.Stats)
	}
	return out, nil
}

// beginFrame sizes the mask arrays to the chunk count and clears the per-frame and
// per-dispatch masks.
func (e *engine) beginFrame(chunks []Chunk) {
	n := len(chunks)
	e.base = resize(e.base, n)
	e.camera = resize(e.camera, n)
	e.frame = resize(e.frame, n)
	e.dispatch = resize(e.dispatch, n)
	culling.ResetFrame(e.frame)
	clear(e.dispatch)

	e.cullChunks = e.cullChunks[:0]
	e.drawChunks = e.drawChunks[:0]
	e.meshChunks = e.meshChunks[:0]
	e.meshOwners = e.meshOwners[:0]
	for i, c := range chunks {
		if c.Cull != nil {
			e.base[i] = c.Cull.Visible
		} else {
			e.base[i] = common.Mask128{}
		}
		e.cullChunks = append(e.cullChunks, c.Cull)
		e.drawChunks = append(e.drawChunks, c.Draw)
		if c.Skinned != nil {
			e.meshChunks = append(e.meshChunks, c.Skinned)
			e.meshOwners = append(e.meshOwners, i)
		}
	}
}

// restoreVisibility puts back the live masks culling overwrote.
func (e *engine) restoreVisibility() {
	for i, c := range e.cullChunks {
		if c != nil {
			c.Visible = e.base[i]
		}
	}
}

// runView culls, propagates and then runs the draw and skinning branches concurrently.
func (e *engine) runView(ctx context.Context, in FrameInput, view View) (ViewOutput, error) {
	var vo ViewOutput

	live := make([]*culling.CullChunk, 0, len(e.cullChunks))
	for i, c := range e.cullChunks {
		if c != nil {
			c.Visible = e.base[i]
			live = append(live, c)
		}
	}
	vo.Cull = e.culler.Cull(view.Context, live)

	light := view.Context.ViewType == culling.ViewLight
	for i, c := range e.cullChunks {
		e.camera[i] = common.Mask128{}
		if c != nil {
			e.camera[i] = c.Visible
		}
		if d := e.drawChunks[i]; d != nil {
			d.Visible = e.camera[i]
			d.SplitMasks = nil
			if light && c != nil {
				d.SplitMasks = &c.SplitMasks
			}
		}
	}
	needs := culling.PropagateVisibility(e.camera, e.frame, e.dispatch)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vo.Draw = e.collector.Generate(e.drawChunks)
		return nil
	})
	if in.Skinning != nil {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for k, mc := range e.meshChunks {
				mc.Visible = needs[e.meshOwners[k]]
			}
			input := *in.Skinning
			input.MeshChunks = e.meshChunks
			frame, err := e.compiler.Write(e.compiler.Collect(&input))
			if err != nil {
				return errors.Wrap(err, "skinning")
			}
			vo.Skinning = frame
			vo.Dispatches = e.compiler.Dispatch(frame)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ViewOutput{}, err
	}
	return vo, nil
}

func viewStats(vo *ViewOutput) profiler.FrameStats {
	s := profiler.FrameStats{
		ChunksCulled:   vo.Cull.ChunksOut,
		EntitiesCulled: vo.Cull.EntitiesCulled,
	}
	if vo.Draw != nil {
		s.Instances = len(vo.Draw.VisibleInstances)
		s.DrawCommands = len(vo.Draw.DrawCommands)
		s.DrawRanges = len(vo.Draw.DrawRanges)
		if vo.Draw.Bins != nil {
			s.Bins = len(vo.Draw.Bins.BinIndices)
		}
	}
	if f := vo.Skinning; f != nil {
		s.SkinningRequests = f.Stats.Requests
		s.SkinningDropped = f.Stats.Dropped
		s.SkinningHeaders = int(f.Layout.BatchHeadersCount + f.Layout.ExpansionHeadersCount)
		s.SkinningCommands = int(f.Layout.BatchMeshCommandsCount + f.Layout.ExpansionMeshCommandsCount + f.Layout.MeshSkinningCommandsCount)
	}
	s.Dispatches = len(vo.Dispatches)
	return s
}

func resize(s []common.Mask128, n int) []common.Mask128 {
	if cap(s) < n {
		return make([]common.Mask128, n)
	}
	return s[:n]
}

// EnableProfiler enables periodic pipeline statistics on the logger.
func (e *engine) EnableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = true
}

// DisableProfiler disables periodic pipeline statistics.
func (e *engine) DisableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = false
}

func (e *engine) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return
	}
	e.released = true
	e.pool.Release()
	e.broker.Release()
}
