// validate.go - Strukturelle Invarianten des Graphen pruefen
// Reihenfolge der Pruefungen: Referenzen, Grenzen, Aritaet, Zyklen, Typen.
package ir

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Validate checks every structural invariant and returns the first violation
// as an *InvariantError, or nil for a well formed graph.
func (g *Graph) Validate() error {
	ids := slices.Sorted(maps.Keys(g.nodes))

	for _, id := range ids {
		n := g.nodes[id]
		for i, in := range n.inputs {
			p, ok := g.nodes[in.Node]
			if !ok || in.Index < 0 || in.Index >= len(p.outputs) {
				return &InvariantError{
					Violation: ViolationDanglingReference,
					Nodes:     []NodeID{id},
					Detail:    fmt.Sprintf("input %d references missing output %s", i, in),
				}
			}
		}
	}

	if err := g.validateBoundary(ids); err != nil {
		return err
	}

	for _, id := range ids {
		n := g.nodes[id]
		if err := checkArity(n.kind, len(n.inputs)); err != nil {
			return &InvariantError{Violation: ViolationArity, Nodes: []NodeID{id}, Detail: err.Error()}
		}
		if want := n.kind.info().outputs; len(n.outputs) != want {
			return &InvariantError{
				Violation: ViolationArity,
				Nodes:     []NodeID{id},
				Detail:    fmt.Sprintf("%s declares %d outputs, want %d", n.kind, len(n.outputs), want),
			}
		}
	}

	if _, err := g.TopologicalOrder(); err != nil {
		return err
	}

	for _, id := range ids {
		if err := g.validateTypes(g.nodes[id]); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) validateBoundary(ids []NodeID) error {
	boundary := func(id NodeID, format string, args ...any) error {
		return &InvariantError{Violation: ViolationBoundary, Nodes: []NodeID{id}, Detail: fmt.Sprintf(format, args...)}
	}

	for _, id := range g.params {
		n, ok := g.nodes[id]
		if !ok {
			return boundary(id, "parameter was removed")
		}
		if n.kind != KindParameter {
			return boundary(id, "parameter slot holds %s", n.kind)
		}
	}
	for _, id := range g.results {
		n, ok := g.nodes[id]
		if !ok {
			return boundary(id, "result was removed")
		}
		if n.kind != KindResult {
			return boundary(id, "result slot holds %s", n.kind)
		}
	}

	for _, id := range ids {
		n := g.nodes[id]
		switch n.kind {
		case KindParameter:
			if !slices.Contains(g.params, id) {
				return boundary(id, "parameter is not registered with the graph")
			}
			if len(n.inputs) > 0 {
				return boundary(id, "parameter has inputs")
			}
		case KindResult:
			if !slices.Contains(g.results, id) {
				return boundary(id, "result is not registered with the graph")
			}
			if len(g.users[id]) > 0 {
				return boundary(id, "result is consumed by %s", g.users[id][0].Consumer)
			}
		}
	}
	return nil
}

func (g *Graph) validateTypes(n *Node) error {
	mismatch := func(format string, args ...any) error {
		return &InvariantError{Violation: ViolationTypeMismatch, Nodes: []NodeID{n.id}, Detail: fmt.Sprintf(format, args...)}
	}

	switch n.kind {
	case KindParameter:
		return nil
	case KindConstant:
		if n.value == nil {
			return mismatch("constant without payload")
		}
		if !n.value.Type().Equal(n.outputs[0]) {
			return mismatch("payload %s does not match output %s", n.value.Type(), n.outputs[0])
		}
		if size := n.value.DType.Size(); int64(len(n.value.Data)) != n.value.Shape.Elements()*int64(size) {
			return mismatch("payload has %d bytes, want %d", len(n.value.Data), n.value.Shape.Elements()*int64(size))
		}
		return nil
	}

	inferred, err := g.infer(n.kind, n.attrs, n.inputs)
	switch {
	case errors.Is(err, errNotInferable):
		return nil
	case err != nil:
		return mismatch("%v", err)
	}

	for i, t := range inferred {
		if !t.Equal(n.outputs[i]) {
			return mismatch("output %d declared %s, inputs imply %s", i, n.outputs[i], t)
		}
	}
	return nil
}
