// topo.go - Topologische Sortierung und Zyklenerkennung via gonum
package ir

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// byID keeps gonum's stabilized sort deterministic.
func byID(nodes []graph.Node) {
	slices.SortFunc(nodes, func(a, b graph.Node) int {
		switch {
		case a.ID() < b.ID():
			return -1
		case a.ID() > b.ID():
			return 1
		}
		return 0
	})
}

// dependencyGraph builds the producer -> consumer graph. Self edges are
// returned separately since simple.DirectedGraph rejects them.
func (g *Graph) dependencyGraph() (*simple.DirectedGraph, []NodeID) {
	dg := simple.NewDirectedGraph()
	for _, id := range slices.Sorted(maps.Keys(g.nodes)) {
		dg.AddNode(simple.Node(id))
	}

	var selfLoops []NodeID
	for _, id := range slices.Sorted(maps.Keys(g.nodes)) {
		for _, in := range g.nodes[id].inputs {
			if _, ok := g.nodes[in.Node]; !ok {
				continue
			}
			if in.Node == id {
				selfLoops = append(selfLoops, id)
				continue
			}
			dg.SetEdge(dg.NewEdge(simple.Node(in.Node), simple.Node(id)))
		}
	}
	return dg, selfLoops
}

// TopologicalOrder returns every node id with producers before consumers.
// Ties are broken by ascending id so the order is reproducible.
func (g *Graph) TopologicalOrder() ([]NodeID, error) {
	dg, selfLoops := g.dependencyGraph()
	if len(selfLoops) > 0 {
		return nil, &InvariantError{Violation: ViolationCycle, Nodes: selfLoops, Detail: "node consumes its own output"}
	}

	sorted, err := topo.SortStabilized(dg, byID)
	if err != nil {
		var unorderable topo.Unorderable
		if errors.As(err, &unorderable) {
			var ids []NodeID
			for _, component := range unorderable {
				for _, n := range component {
					ids = append(ids, NodeID(n.ID()))
				}
			}
			slices.Sort(ids)
			return nil, &InvariantError{Violation: ViolationCycle, Nodes: ids, Detail: fmt.Sprintf("%d strongly connected components", len(unorderable))}
		}
		return nil, err
	}

	out := make([]NodeID, len(sorted))
	for i, n := range sorted {
		out[i] = NodeID(n.ID())
	}
	return out, nil
}

// Ordered returns the nodes in topological order.
func (g *Graph) Ordered() ([]*Node, error) {
	ids, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	out := make([]*Node, len(ids))
	for i, id := range ids {
		out[i] = g.nodes[id]
	}
	return out, nil
}
