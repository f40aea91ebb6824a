// Package onedim implements iterative root finders and a bracketing minimiser
// for scalar functions of one variable.
//
// Bisection, Newton-Raphson and Secant return their full step trace and no
// convergence flag: reaching the iteration limit is not an error and callers
// inspect the last step. Golden-section search reports convergence explicitly.
package onedim

import (
	"go.uber.org/zap"

	"github.com/copyleftdev/stepwise/internal/optimization"
)

const (
	// degenerateSlope stops Newton-Raphson and Secant before dividing by ~0.
	degenerateSlope = 1e-15
	// centralStep is the finite-difference step used when no derivative is given.
	centralStep = 1e-5
)

// Option configures a solver run.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger used for debug tracing. A nil logger is ignored.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func newOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func validationErrorf(op, format string, args ...interface{}) error {
	return optimization.Errorf(optimization.KindValidation, format, args...).
		WithOperation(op).WithComponent("onedim")
}

func tagComponent(err error) error {
	if e, ok := optimization.IsOptimizationError(err); ok && e.Component == "" {
		e.Component = "onedim"
	}
	return err
}
