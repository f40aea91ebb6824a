// Package engine is the boundary between callers (HTTP, JSON-RPC, CLI) and
// the numerical packages. It turns request structs carrying expression
// strings or datasets into callables, applies configured defaults and
// limits, runs the solver and records metrics. An Engine holds no state
// between calls and is safe for concurrent use.
package engine

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/copyleftdev/stepwise/internal/config"
	"github.com/copyleftdev/stepwise/internal/metrics"
	"github.com/copyleftdev/stepwise/internal/optimization"
)

const component = "engine"

// Engine runs solver requests.
type Engine struct {
	cfg     config.Engine
	logger  *zap.Logger
	metrics *metrics.Registry
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger handed to every solver. A nil logger is ignored.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records every run in r.
func WithMetrics(r *metrics.Registry) Option {
	return func(e *Engine) {
		e.metrics = r
	}
}

// New creates an Engine with the given defaults and limits.
func New(cfg config.Engine, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, optimization.WrapError(optimization.KindValidation, err, "invalid engine configuration")
	}
	e := &Engine{
		cfg:    cfg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the settings the engine was created with.
func (e *Engine) Config() config.Engine {
	return e.cfg
}

func validationf(op, format string, args ...interface{}) error {
	return optimization.Errorf(optimization.KindValidation, format, args...).
		WithOperation(op).WithComponent(component)
}

// iterationParams applies the configured defaults to zero values and
// enforces the iteration limit.
func (e *Engine) iterationParams(op string, tol float64, maxIter int) (float64, int, error) {
	if math.IsNaN(tol) || tol < 0 {
		return 0, 0, validationf(op, "tol must be non-negative, got %v", tol)
	}
	if maxIter < 0 {
		return 0, 0, validationf(op, "max_iter must be non-negative, got %d", maxIter)
	}
	if tol == 0 {
		tol = e.cfg.DefaultTolerance
	}
	if maxIter == 0 {
		maxIter = e.cfg.DefaultMaxIterations
	}
	if maxIter > e.cfg.MaxIterationsLimit {
		return 0, 0, validationf(op, "max_iter %d exceeds the limit of %d", maxIter, e.cfg.MaxIterationsLimit)
	}
	return tol, maxIter, nil
}

// run is the common wrapper around one solver call: it refuses to start
// on a cancelled context, then logs and records the outcome. fn returns the
// outcome label and iteration count for successful runs.
func (e *Engine) run(ctx context.Context, method string, fn func() (string, int, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	outcome, iterations, err := fn()
	elapsed := time.Since(start)

	if err != nil {
		kind := "error"
		if k, ok := optimization.KindOf(err); ok {
			kind = string(k)
		}
		e.metrics.Observe(method, kind, -1, elapsed)
		e.logger.Info("Run failed",
			zap.String("method", method),
			zap.String("kind", kind),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return err
	}

	e.metrics.Observe(method, outcome, iterations, elapsed)
	e.logger.Info("Run finished",
		zap.String("method", method),
		zap.String("outcome", outcome),
		zap.Int("iterations", iterations),
		zap.Duration("elapsed", elapsed))
	return nil
}

func convergedOutcome(converged bool) string {
	if converged {
		return metrics.OutcomeConverged
	}
	return metrics.OutcomeNotConverged
}
