package optimization

import (
	"errors"
	"fmt"
)

// Kind classifies engine failures so callers can react without parsing messages.
type Kind string

const (
	// KindValidation covers bad parameters detected before any computation starts.
	KindValidation Kind = "validation"
	// KindBracket covers violated sign-change or unimodality preconditions.
	KindBracket Kind = "bracket"
	// KindEvaluation covers expression parse failures and runtime math errors.
	KindEvaluation Kind = "evaluation"
	// KindSingularMatrix covers Hessians that cannot be inverted.
	KindSingularMatrix Kind = "singular_matrix"
	// KindDivergence covers objectives that became non-finite.
	KindDivergence Kind = "divergence"
)

// Sentinels for errors.Is. Every *Error matches the sentinel of its Kind.
var (
	ErrValidation     = errors.New("validation error")
	ErrBracket        = errors.New("bracket error")
	ErrEvaluation     = errors.New("evaluation error")
	ErrSingularMatrix = errors.New("singular matrix error")
	ErrDivergence     = errors.New("divergence error")
)

var sentinels = map[Kind]error{
	KindValidation:     ErrValidation,
	KindBracket:        ErrBracket,
	KindEvaluation:     ErrEvaluation,
	KindSingularMatrix: ErrSingularMatrix,
	KindDivergence:     ErrDivergence,
}

// Error represents an engine error with context
// that can be wrapped with additional information.
type Error struct {
	// Kind is the taxonomy bucket of the failure.
	Kind Kind
	// Message describes the error that occurred.
	Message string
	// Op is the operation that caused the error.
	Op string
	// Component is the component where the error occurred.
	Component string
	// Err is the underlying error that triggered this one, if any.
	Err error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var prefix string
	if e.Component != "" && e.Op != "" {
		prefix = fmt.Sprintf("%s: %s", e.Component, e.Op)
	} else if e.Component != "" {
		prefix = e.Component
	} else if e.Op != "" {
		prefix = e.Op
	}

	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if prefix != "" {
		return fmt.Sprintf("%s: %s", prefix, msg)
	}
	return msg
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is the sentinel for e's Kind.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// WithOperation adds operation context to the error.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// WithComponent adds component context to the error.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// NewError creates a new error of the given kind.
func NewError(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

// Errorf creates a new error of the given kind with a formatted message.
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError wraps an existing error with a kind and additional context.
// If err is nil, WrapError returns nil. If err already carries a Kind
// (anywhere in its chain) that kind is preserved.
func WrapError(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	if k, ok := KindOf(err); ok {
		kind = k
	}
	return &Error{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsOptimizationError checks if an error is of type Error.
// If the error is an optimization error, it returns the error and true.
// Otherwise, it returns nil and false.
func IsOptimizationError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
