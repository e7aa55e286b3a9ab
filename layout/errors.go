package layout

import (
	"errors"
	"fmt"
)

// ErrLookup is matched by every *LookupError. It is unrelated to graph
// invariant errors: a failed lookup says nothing about graph validity.
var ErrLookup = errors.New("layout lookup failed")

type Reason int

const (
	ReasonUnknownName Reason = iota
	ReasonNoConsumer
	ReasonManyConsumers
	ReasonNoProducer
)

func (r Reason) String() string {
	switch r {
	case ReasonUnknownName:
		return "no tensor with this name"
	case ReasonNoConsumer:
		return "no consumer found"
	case ReasonManyConsumers:
		return "used as input for more than one node"
	case ReasonNoProducer:
		return "no producer found"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

type LookupError struct {
	Name   string
	Reason Reason
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s: %q: %s", ErrLookup, e.Name, e.Reason)
}

func (e *LookupError) Is(target error) bool {
	return target == ErrLookup
}
