package tool

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrToolNotFound is returned when a tool is not found in the registry.
	ErrToolNotFound = errors.New("tool not found")

	// ErrDuplicateTool is returned when registering a tool with a name
	// that already exists in the registry.
	ErrDuplicateTool = errors.New("tool already registered")

	// ErrEmptyToolName is returned when a tool name is empty.
	ErrEmptyToolName = errors.New("tool name must not be empty")

	// ErrDegenerate is returned when a construction hits a degenerate
	// configuration (coincident points, parallel lines, ...).
	ErrDegenerate = errors.New("degenerate configuration")

	// ErrNotSatisfied is returned when a dimension predicate does not
	// hold for the current numeric witnesses.
	ErrNotSatisfied = errors.New("predicate not satisfied")

	// ErrTypeMismatch is returned when an argument's witness type does
	// not match the tool's declared signature.
	ErrTypeMismatch = errors.New("argument type mismatch")

	// ErrArity is returned when an argument or output count does not
	// match the tool's declared signature.
	ErrArity = errors.New("arity mismatch")

	// ErrBadHyperParam is returned when a hyper-parameter cannot be
	// coerced to an exact rational.
	ErrBadHyperParam = errors.New("invalid hyper-parameter")

	// ErrUnresolved is returned when an operation needs a binding that
	// was never successfully produced.
	ErrUnresolved = errors.New("unresolved binding")

	// ErrLocalIndex is returned when a step references a local index
	// outside the environment's translation table.
	ErrLocalIndex = errors.New("local index out of range")

	// ErrNoProof is returned when proof verification is requested for a
	// tool that declares no proof.
	ErrNoProof = errors.New("tool has no proof")
)

// Error is a typed tool-execution failure. It wraps an underlying cause and
// carries the ordered trace of contextual labels accumulated while the
// failure propagated through nested step executions, innermost first.
type Error struct {
	Err   error
	Trace []string
}

// Error renders the cause followed by the accumulated trace.
func (e *Error) Error() string {
	if len(e.Trace) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s [%s]", e.Err, strings.Join(e.Trace, "; "))
}

// Unwrap returns the underlying cause for errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Err }

// Push appends a contextual label to the trace.
func (e *Error) Push(label string) {
	e.Trace = append(e.Trace, label)
}

// AsError returns err as a *Error, wrapping it first if it is any other
// error type. Wrapping preserves the original error for errors.Is.
func AsError(err error) *Error {
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	return &Error{Err: err}
}
