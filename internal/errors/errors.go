// Package errors provides error handling for the stepwise server and CLI:
// errors annotated with the operation that failed and the stack where they
// were caught, and the recovery and error-logging middleware.
package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
)

// maxFrames bounds the recorded stack.
const maxFrames = 32

// Error annotates a failure with the operation it interrupted. The
// wrapped error stays in the chain, so errors.Is and errors.As still see
// engine kinds and sentinels through it.
type Error struct {
	Err error
	// Op names the failed operation, e.g. "POST /api/v1/gmm" or
	// "loading problems.yaml".
	Op string
	// Stack holds one "function\n\tfile:line" entry per frame, innermost
	// first, starting at the caller of Wrap.
	Stack []string
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap annotates err with op and the caller's stack. It returns nil for a
// nil err.
func Wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	return &Error{Err: err, Op: op, Stack: callers(3)}
}

// Wrapf is Wrap with a formatted operation.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Err: err, Op: fmt.Sprintf(format, args...), Stack: callers(3)}
}

// StackOf returns the stack of the outermost *Error in err's chain.
func StackOf(err error) []string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Stack
	}
	return nil
}

// Fields describes err for the structured logger: its message and, when
// err was wrapped, the operation and stack.
func Fields(err error) map[string]interface{} {
	fields := map[string]interface{}{"error": err.Error()}
	var e *Error
	if stderrors.As(err, &e) {
		if e.Op != "" {
			fields["op"] = e.Op
		}
		if len(e.Stack) > 0 {
			fields["stack"] = strings.Join(e.Stack, "\n")
		}
	}
	return fields
}

// callers skips runtime.Callers, callers itself and the wrapping
// constructor when skip is 3.
func callers(skip int) []string {
	var pcs [maxFrames]uintptr
	n := runtime.Callers(skip, pcs[:])
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	stack := make([]string, 0, n)
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") {
			stack = append(stack, fmt.Sprintf("%s\n\t%s:%d", frame.Function, frame.File, frame.Line))
		}
		if !more {
			break
		}
	}
	return stack
}
