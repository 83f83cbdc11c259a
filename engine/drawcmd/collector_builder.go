package drawcmd

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-dispatch/engine/jobs"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/logging"
)

// DefaultMaxInstancesPerDrawCommand is the instance limit of a single non-sorted draw command.
const DefaultMaxInstancesPerDrawCommand = 4096

// DefaultMaxInstancesPerRange is the instance limit of a single draw range.
const DefaultMaxInstancesPerRange = 4096

// DefaultMaxCommandsPerRange is the draw command limit of a single draw range.
const DefaultMaxCommandsPerRange = 512

// DefaultFilterSize is the number of presence filter words.
const DefaultFilterSize = 1024

// CollectorBuilderOption is a functional option for configuring a Collector during construction.
type CollectorBuilderOption func(*collector)

// WithMaxInstancesPerDrawCommand is an option builder that sets the instance limit of a non-sorted draw command.
//
// Parameters:
//   - n: the limit, values < 1 are ignored
//
// Returns:
//   - CollectorBuilderOption: a function that applies the limit to a collector
func WithMaxInstancesPerDrawCommand(n int) CollectorBuilderOption {
	return func(c *collector) {
		if n > 0 {
			c.maxInstancesPerDrawCommand = n
		}
	}
}

// WithMaxInstancesPerRange is an option builder that sets the instance limit of a draw range.
//
// Parameters:
//   - n: the limit, values < 1 are ignored
//
// Returns:
//   - CollectorBuilderOption: a function that applies the limit to a collector
func WithMaxInstancesPerRange(n int) CollectorBuilderOption {
	return func(c *collector) {
		if n > 0 {
			c.maxInstancesPerRange = n
		}
	}
}

// WithMaxCommandsPerRange is an option builder that sets the draw command limit of a draw range.
//
// Parameters:
//   - n: the limit, values < 1 are ignored
//
// Returns:
//   - CollectorBuilderOption: a function that applies the limit to a collector
func WithMaxCommandsPerRange(n int) CollectorBuilderOption {
	return func(c *collector) {
		if n > 0 {
			c.maxCommandsPerRange = n
		}
	}
}

// WithFilterSize is an option builder that sets the number of presence filter words.
// Larger filters skip more slots during finalize at the cost of clearing more memory per frame.
//
// Parameters:
//   - n: the filter size, values < 1 are ignored
//
// Returns:
//   - CollectorBuilderOption: a function that applies the filter size to a collector
func WithFilterSize(n int) CollectorBuilderOption {
	return func(c *collector) {
		if n > 0 {
			c.filterSize = n
		}
	}
}

// WithPool sets the pool work is fanned out on.
func WithPool(pool jobs.Pool) CollectorBuilderOption {
	return func(c *collector) {
		if pool != nil {
			c.pool = pool
		}
	}
}

// WithLogger sets the collector's logger.
func WithLogger(logger *slog.Logger) CollectorBuilderOption {
	return func(c *collector) {
		c.logger = logging.OrNop(logger)
	}
}
