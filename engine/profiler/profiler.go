// Package profiler accumulates per-frame pipeline counters and logs their rates,
// together with heap and GC statistics, at a fixed interval.
package profiler

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-dispatch/engine/logging"
)

// FrameStats are the counters one RunFrame reports.
type FrameStats struct {
	ChunksCulled     int
	EntitiesCulled   int
	Bins             int
	Instances        int
	DrawCommands     int
	DrawRanges       int
	SkinningRequests int
	SkinningDropped  int
	SkinningHeaders  int
	SkinningCommands int
	Dispatches       int
	Duration         time.Duration
}

// Add accumulates o into s.
func (s *FrameStats) Add(o FrameStats) {
	s.ChunksCulled += o.ChunksCulled
	s.EntitiesCulled += o.EntitiesCulled
	s.Bins += o.Bins
	s.Instances += o.Instances
	s.DrawCommands += o.DrawCommands
	s.DrawRanges += o.DrawRanges
	s.SkinningRequests += o.SkinningRequests
	s.SkinningDropped += o.SkinningDropped
	s.SkinningHeaders += o.SkinningHeaders
	s.SkinningCommands += o.SkinningCommands
	s.Dispatches += o.Dispatches
	s.Duration += o.Duration
}

// Profiler tracks frame rate, pipeline throughput and memory statistics.
// Outputs stats to the logger at a configurable interval.
type Profiler struct {
	logger         *slog.Logger
	frameCount     int
	totals         FrameStats
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	now            func() time.Time
}

// NewProfiler creates a new Profiler.
//
// Parameters:
//   - logger: destination of the periodic report; nil discards it
//   - interval: the report interval, values <= 0 default to one second
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(logger *slog.Logger, interval time.Duration) *Profiler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Profiler{
		logger:         logging.OrNop(logger),
		lastTime:       time.Now(),
		updateInterval: interval,
		now:            time.Now,
	}
}

// Totals returns the counters accumulated since the last report.
func (p *Profiler) Totals() FrameStats {
	return p.totals
}

// Tick should be called once per frame with that frame's counters.
// Logs per-frame averages when the update interval has elapsed.
//
// Parameters:
//   - stats: the counters of the frame that just finished
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick(stats FrameStats) bool {
	p.frameCount++
	p.totals.Add(stats)
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()
	perFrame := func(v int) float64 { return float64(v) / float64(p.frameCount) }

	runtime.ReadMemStats(&p.memStats)
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 GC pauses.
	gcCount := p.memStats.NumGC
	var maxPauseUs uint64
	startIdx := p.lastGCCount
	if gcCount-startIdx > 256 {
		startIdx = gcCount - 256
	}
	for i := startIdx; i < gcCount; i++ {
		maxPauseUs = max(maxPauseUs, p.memStats.PauseNs[i%256]/1000)
	}

	p.logger.Info("frame stats",
		slog.Float64("fps", fps),
		slog.Duration("frameTime", p.totals.Duration/time.Duration(p.frameCount)),
		slog.Float64("bins", perFrame(p.totals.Bins)),
		slog.Float64("instances", perFrame(p.totals.Instances)),
		slog.Float64("drawCommands", perFrame(p.totals.DrawCommands)),
		slog.Float64("drawRanges", perFrame(p.totals.DrawRanges)),
		slog.Float64("entitiesCulled", perFrame(p.totals.EntitiesCulled)),
		slog.Float64("skinningRequests", perFrame(p.totals.SkinningRequests)),
		slog.Int("skinningDropped", p.totals.SkinningDropped),
		slog.Float64("skinningHeaders", perFrame(p.totals.SkinningHeaders)),
		slog.Float64("skinningCommands", perFrame(p.totals.SkinningCommands)),
		slog.Float64("heapMB", float64(p.memStats.Alloc)/1024/1024),
		slog.Float64("allocRateMB", allocRateMB),
		slog.Uint64("gc", uint64(gcCount)),
		slog.Uint64("maxPauseUs", maxPauseUs),
	)

	p.frameCount = 0
	p.totals = FrameStats{}
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
