package engine

import (
	"strings"

	"github.com/copyleftdev/stepwise/internal/expr"
	"github.com/copyleftdev/stepwise/internal/interp"
	"github.com/copyleftdev/stepwise/internal/optimization"
)

// Mode selects where a 1-D solver gets its function from.
type Mode string

const (
	// ModeFunction evaluates Source.Expression.
	ModeFunction Mode = "function"
	// ModeData interpolates Source.Data.
	ModeData Mode = "data"
)

// ParseMode maps a name to a Mode. The empty string selects ModeFunction.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeFunction:
		return ModeFunction, nil
	case ModeData:
		return ModeData, nil
	}
	return "", optimization.Errorf(optimization.KindValidation, "unknown mode %q, want function or data", s).
		WithComponent(component)
}

// Source describes the scalar function a 1-D solver works on.
type Source struct {
	Mode          Mode           `json:"mode" yaml:"mode"`
	Expression    string         `json:"expression,omitempty" yaml:"expression,omitempty"`
	Data          interp.Dataset `json:"data,omitempty" yaml:"data,omitempty"`
	Interpolation string         `json:"interpolation,omitempty" yaml:"interpolation,omitempty"`
}

// scalar is a resolved Source.
type scalar struct {
	f  optimization.Func
	df optimization.Func
	// variable and derivative are only set in function mode.
	variable   string
	derivative string
}

// resolve parses the expression or builds the interpolant. In function
// mode the derivative is symbolic; in data mode it is a central difference.
func (e *Engine) resolve(op string, src Source) (*scalar, error) {
	mode, err := ParseMode(string(src.Mode))
	if err != nil {
		return nil, err
	}

	switch mode {
	case ModeData:
		if len(src.Data) == 0 {
			return nil, validationf(op, "data mode requires a dataset")
		}
		if len(src.Data) > e.cfg.MaxDataPoints {
			return nil, validationf(op, "dataset has %d points, the limit is %d", len(src.Data), e.cfg.MaxDataPoints)
		}
		name := src.Interpolation
		if name == "" {
			name = e.cfg.Interpolation
		}
		kind, err := interp.ParseKind(name)
		if err != nil {
			return nil, err
		}
		fn, err := interp.Build(src.Data, kind)
		if err != nil {
			return nil, err
		}
		return &scalar{f: fn.Func(), df: fn.DerivativeFunc()}, nil

	default:
		if strings.TrimSpace(src.Expression) == "" {
			return nil, validationf(op, "function mode requires an expression")
		}
		ex, err := expr.Parse(src.Expression)
		if err != nil {
			return nil, err
		}
		v, err := singleVariable(op, ex)
		if err != nil {
			return nil, err
		}
		d := ex.Derivative(v)
		return &scalar{f: ex.Func(v), df: d.Func(v), variable: v, derivative: d.String()}, nil
	}
}

// singleVariable returns the one free variable of ex, or x for constants.
func singleVariable(op string, ex *expr.Expression) (string, error) {
	vars := ex.Variables()
	switch len(vars) {
	case 0:
		return "x", nil
	case 1:
		return vars[0], nil
	}
	return "", optimization.Errorf(optimization.KindEvaluation,
		"expected a function of one variable, %q uses %s", ex.String(), strings.Join(vars, ", ")).
		WithOperation(op).WithComponent(component)
}
