package culling

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-dispatch/engine/jobs"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/logging"
)

// CullerBuilderOption is a functional option for configuring a Culler during construction.
type CullerBuilderOption func(*culler)

// WithPool is an option builder that sets the pool chunks are fanned out on.
//
// Parameters:
//   - pool: the worker pool; nil keeps serial execution
//
// Returns:
//   - CullerBuilderOption: a function that applies the pool option to a culler
func WithPool(pool jobs.Pool) CullerBuilderOption {
	return func(c *culler) {
		if pool != nil {
			c.pool = pool
		}
	}
}

// WithLogger is an option builder that sets the culler's logger.
//
// Parameters:
//   - logger: the logger; nil discards output
//
// Returns:
//   - CullerBuilderOption: a function that applies the logger option to a culler
func WithLogger(logger *slog.Logger) CullerBuilderOption {
	return func(c *culler) {
		c.logger = logging.OrNop(logger)
	}
}
