package engine

import (
	"log/slog"
	"time"

	"github.com/Carmen-Shannon/oxy-dispatch/engine/broker"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/drawcmd"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/logging"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/skinning"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithWorkers sets the number of worker goroutines.
// Values < 1 default to runtime.NumCPU()-1 (minimum 1).
//
// Parameters:
//   - n: the worker count
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWorkers(n int) EngineBuilderOption {
	return func(e *engine) {
		e.workers = n
	}
}

// WithLogger sets the logger shared by every stage of the pipeline.
//
// Parameters:
//   - logger: the logger; nil discards output
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithLogger(logger *slog.Logger) EngineBuilderOption {
	return func(e *engine) {
		e.logger = logging.OrNop(logger)
	}
}

// WithBroker sets the broker skinning buffers are taken from.
// The engine releases the broker on Release.
//
// Parameters:
//   - b: the buffer broker, for example one created by broker.NewWGPUBroker
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithBroker(b broker.GraphicsBufferBroker) EngineBuilderOption {
	return func(e *engine) {
		e.broker = b
	}
}

// WithProfiling enables or disables periodic pipeline statistics.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithProfileInterval sets how often profiling statistics are logged.
func WithProfileInterval(d time.Duration) EngineBuilderOption {
	return func(e *engine) {
		e.profileInterval = d
	}
}

// WithDrawCommandConfig passes options to the draw-command collector.
// They are applied after the engine's pool and logger, so they may override both.
//
// Parameters:
//   - options: collector options
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithDrawCommandConfig(options ...drawcmd.CollectorBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.drawOptions = append(e.drawOptions, options...)
	}
}

// WithSkinningConfig passes options to the skinning compiler.
// They are applied after the engine's pool, logger and broker, so they may override them.
//
// Parameters:
//   - options: compiler options
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithSkinningConfig(options ...skinning.CompilerBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.skinningOptions = append(e.skinningOptions, options...)
	}
}
