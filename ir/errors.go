// errors.go - Fehlerarten des Graph-Modells
package ir

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupported reports an operator kind, element type or attribute the
	// model does not know.
	ErrUnsupported = errors.New("unsupported")

	// ErrInvariantViolation is matched by every *InvariantError.
	ErrInvariantViolation = errors.New("graph invariant violated")

	ErrNodeNotFound  = errors.New("node not found")
	ErrTypeMismatch  = errors.New("output type mismatch")
	ErrCycle         = errors.New("rewrite would introduce a cycle")
	ErrInUse         = errors.New("node is still in use")
	ErrTxnInProgress = errors.New("a graph transaction is already in progress")
)

// Violation names the kind of invariant that failed.
type Violation int

const (
	ViolationDanglingReference Violation = iota
	ViolationBoundary
	ViolationArity
	ViolationCycle
	ViolationTypeMismatch
)

func (v Violation) String() string {
	switch v {
	case ViolationDanglingReference:
		return "dangling reference"
	case ViolationBoundary:
		return "boundary"
	case ViolationArity:
		return "arity"
	case ViolationCycle:
		return "cycle"
	case ViolationTypeMismatch:
		return "type/shape mismatch"
	default:
		return fmt.Sprintf("Violation(%d)", int(v))
	}
}

// InvariantError reports the nodes that break a graph invariant.
type InvariantError struct {
	Violation Violation
	Nodes     []NodeID
	Detail    string
}

func (e *InvariantError) Error() string {
	ids := make([]string, len(e.Nodes))
	for i, id := range e.Nodes {
		ids[i] = id.String()
	}
	return fmt.Sprintf("%s: %s at node %s: %s", ErrInvariantViolation, e.Violation, strings.Join(ids, ", "), e.Detail)
}

func (e *InvariantError) Is(target error) bool {
	return target == ErrInvariantViolation
}
