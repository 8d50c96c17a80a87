package paths

import (
	"errors"
	"fmt"
)

// ErrIncompleteGraph is matched by every IncompleteGraphError.
var ErrIncompleteGraph = errors.New("incomplete control flow graph")

// ErrMalformedGraph reports a node arena that no Builder could have
// produced, such as one restored from a corrupted snapshot.
var ErrMalformedGraph = errors.New("malformed control flow graph")

// ErrShapeMismatch is matched by every ShapeMismatchError.
var ErrShapeMismatch = errors.New("path shape mismatch")

// ContractViolation reports build events delivered out of the order the
// Builder requires. It signals a bug in the event producer, not bad input.
type ContractViolation struct {
	Op     string // builder operation that detected the violation
	Line   int
	Reason string
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("path builder contract violation in %s at line %d: %s", e.Op, e.Line, e.Reason)
}

// IsContractViolation reports whether err wraps a *ContractViolation.
func IsContractViolation(err error) bool {
	var cv *ContractViolation
	return errors.As(err, &cv)
}

// IncompleteGraphError reports a node whose successor was never resolved,
// so a route from Entry stops before reaching any Exit.
type IncompleteGraphError struct {
	Node int
	Kind Kind
	Line int
}

func (e *IncompleteGraphError) Error() string {
	return fmt.Sprintf("incomplete control flow graph: %s node %d at line %d has no successor", e.Kind, e.Node, e.Line)
}

func (e *IncompleteGraphError) Is(target error) bool {
	return target == ErrIncompleteGraph
}

// ShapeMismatchError reports a method whose paths in a previous run do not
// line up with the current ones, so counts cannot be added positionally.
type ShapeMismatchError struct {
	FirstLine     int
	CurrentPaths  int
	PreviousPaths int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("path shape mismatch for method at line %d: %d current paths, %d previous paths",
		e.FirstLine, e.CurrentPaths, e.PreviousPaths)
}

func (e *ShapeMismatchError) Is(target error) bool {
	return target == ErrShapeMismatch
}
