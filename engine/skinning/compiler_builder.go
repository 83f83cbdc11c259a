package skinning

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-dispatch/engine/broker"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/jobs"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/logging"
)

// DefaultBatchThreshold is the largest bone count a batched workgroup can hold in group-shared memory.
const DefaultBatchThreshold = 682

// AndroidBatchThreshold disables batching; every chain takes the expanded path.
const AndroidBatchThreshold = 0

// PlatformBatchThreshold is the batch threshold used when none is configured.
const PlatformBatchThreshold = platformBatchThreshold

// CompilerBuilderOption is a functional option for configuring a Compiler during construction.
type CompilerBuilderOption func(*compiler)

// WithBatchThreshold is an option builder that sets the bone count above which chains are expanded.
//
// Parameters:
//   - threshold: the bone threshold; negative values are treated as 0
//
// Returns:
//   - CompilerBuilderOption: a function that applies the threshold option to a compiler
func WithBatchThreshold(threshold int) CompilerBuilderOption {
	return func(c *compiler) {
		c.threshold = max(threshold, 0)
	}
}

// WithLogger is an option builder that sets the compiler's logger.
//
// Parameters:
//   - logger: the logger; nil discards output
//
// Returns:
//   - CompilerBuilderOption: a function that applies the logger option to a compiler
func WithLogger(logger *slog.Logger) CompilerBuilderOption {
	return func(c *compiler) {
		c.logger = logging.OrNop(logger)
	}
}

// WithPool is an option builder that sets the pool chunks are processed on.
func WithPool(pool jobs.Pool) CompilerBuilderOption {
	return func(c *compiler) {
		if pool != nil {
			c.pool = pool
		}
	}
}

// WithBroker is an option builder that sets the buffer broker. The default is a MemoryBroker.
func WithBroker(b broker.GraphicsBufferBroker) CompilerBuilderOption {
	return func(c *compiler) {
		c.broker = b
	}
}
