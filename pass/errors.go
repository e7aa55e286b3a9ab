// errors.go - Fehlerarten der Pass-Ausfuehrung
package pass

import (
	"errors"
	"fmt"

	"github.com/ollama/irpass/ir"
)

var (
	// ErrNoMatch is the expected outcome of an anchor the pattern does not fit.
	ErrNoMatch = errors.New("no match")

	ErrInvariantViolation = ir.ErrInvariantViolation
	ErrUnsupported        = ir.ErrUnsupported

	// ErrCallback wraps an error returned by a replacement callback. It only
	// aborts the single match application.
	ErrCallback = errors.New("replacement callback failed")

	// ErrRootNotReplaced reports a callback that claimed success but left
	// consumers on the matched root.
	ErrRootNotReplaced = errors.New("matched root still has consumers")

	// ErrFixpointNotReached is a warning: the iteration cap was hit while the
	// pass was still rewriting.
	ErrFixpointNotReached = errors.New("fixpoint not reached")
)

// PassError aborts a pipeline. It names the pass and wraps the cause, usually
// an *ir.InvariantError.
type PassError struct {
	Pass      string
	Index     int
	Iteration int
	Err       error
}

func (e *PassError) Error() string {
	return fmt.Sprintf("pass %d %q (iteration %d): %v", e.Index, e.Pass, e.Iteration, e.Err)
}

func (e *PassError) Unwrap() error { return e.Err }

// Nodes returns the offending node ids when the cause is an invariant
// violation.
func (e *PassError) Nodes() []ir.NodeID {
	var ie *ir.InvariantError
	if errors.As(e.Err, &ie) {
		return ie.Nodes
	}
	return nil
}
