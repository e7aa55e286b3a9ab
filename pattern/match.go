// match.go - Matcher: bindet ein Muster an einen Anker-Knoten
// Tiefensuche mit Backtracking, rein lesend. Bei Misserfolg bleibt keine
// Teilbindung zurueck.
package pattern

import (
	"maps"
	"slices"

	"github.com/ollama/irpass/ir"
)

// Binding maps the placeholders of a successful match to graph outputs.
type Binding struct {
	root    *Pattern
	anchor  ir.NodeID
	outputs map[*Pattern]ir.Output
}

// Root returns the anchor node id the root placeholder bound to.
func (b *Binding) Root() ir.NodeID { return b.anchor }

// Pattern returns the root placeholder that was matched.
func (b *Binding) Pattern() *Pattern { return b.root }

// Has reports whether p is bound. Optional placeholders may be absent.
func (b *Binding) Has(p *Pattern) bool {
	_, ok := b.outputs[p]
	return ok
}

// Output returns the output p bound to.
func (b *Binding) Output(p *Pattern) (ir.Output, bool) {
	o, ok := b.outputs[p]
	return o, ok
}

// Node returns the node id p bound to.
func (b *Binding) Node(p *Pattern) (ir.NodeID, bool) {
	o, ok := b.outputs[p]
	return o.Node, ok
}

// MustOutput is Output for placeholders that are always bound.
func (b *Binding) MustOutput(p *Pattern) ir.Output {
	o, ok := b.outputs[p]
	if !ok {
		panic("pattern: placeholder " + p.Name() + " is not bound")
	}
	return o
}

// Lookup finds a bound placeholder by its name.
func (b *Binding) Lookup(name string) (ir.Output, bool) {
	for p, o := range b.outputs {
		if p.name == name {
			return o, true
		}
	}
	return ir.Output{}, false
}

// Nodes returns the ids of all bound nodes in ascending order.
func (b *Binding) Nodes() []ir.NodeID {
	seen := make(map[ir.NodeID]bool, len(b.outputs))
	for _, o := range b.outputs {
		seen[o.Node] = true
	}
	return slices.Sorted(maps.Keys(seen))
}

// Region returns the bound nodes that were matched structurally. Wildcard
// bindings are inputs to the region, not part of it.
func (b *Binding) Region() []ir.NodeID {
	seen := make(map[ir.NodeID]bool, len(b.outputs))
	for p, o := range b.outputs {
		if p.kind != placeholderAny {
			seen[o.Node] = true
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

type matcher struct {
	g     *ir.Graph
	bound map[*Pattern]ir.Output
}

// Match binds root against the first output of anchor.
func Match(g *ir.Graph, root *Pattern, anchor ir.NodeID) (*Binding, bool) {
	n, ok := g.Node(anchor)
	if !ok || n.NumOutputs() == 0 {
		return nil, false
	}

	m := &matcher{g: g, bound: make(map[*Pattern]ir.Output)}
	if !m.match(root, n.Output(0), func() bool { return true }) {
		return nil, false
	}
	return &Binding{root: root, anchor: anchor, outputs: m.bound}, true
}

// match tries to bind p to o and then calls k. On failure every binding made
// along the way is undone.
func (m *matcher) match(p *Pattern, o ir.Output, k func() bool) bool {
	if prev, ok := m.bound[p]; ok {
		return prev == o && k()
	}

	n, ok := m.g.Node(o.Node)
	if !ok {
		return false
	}

	switch p.kind {
	case placeholderAny:
		if !m.satisfies(p, n) {
			return false
		}
		return m.bind(p, o, k)

	case placeholderOptional:
		if slices.Contains(p.kinds, n.Kind()) && n.NumInputs() == 1 && m.satisfies(p, n) {
			if m.bind(p, o, func() bool { return m.match(p.inputs[0], n.Input(0), k) }) {
				return true
			}
		}
		return m.match(p.inputs[0], o, k)
	}

	if !slices.Contains(p.kinds, n.Kind()) || !m.satisfies(p, n) {
		return false
	}
	if len(p.inputs) == 0 {
		return m.bind(p, o, k)
	}
	if len(p.inputs) != n.NumInputs() {
		return false
	}

	if p.commutative {
		used := make([]bool, n.NumInputs())
		return m.bind(p, o, func() bool { return m.matchAnyOrder(p.inputs, n, used, k) })
	}
	return m.bind(p, o, func() bool { return m.matchInOrder(p.inputs, n, 0, k) })
}

func (m *matcher) matchInOrder(inputs []*Pattern, n *ir.Node, i int, k func() bool) bool {
	if i == len(inputs) {
		return k()
	}
	return m.match(inputs[i], n.Input(i), func() bool {
		return m.matchInOrder(inputs, n, i+1, k)
	})
}

// matchAnyOrder assigns inputs[0] to the first free slot that matches, then
// the rest, backtracking into later slots on failure.
func (m *matcher) matchAnyOrder(inputs []*Pattern, n *ir.Node, used []bool, k func() bool) bool {
	if len(inputs) == 0 {
		return k()
	}
	for slot := range used {
		if used[slot] {
			continue
		}
		used[slot] = true
		ok := m.match(inputs[0], n.Input(slot), func() bool {
			return m.matchAnyOrder(inputs[1:], n, used, k)
		})
		used[slot] = false
		if ok {
			return true
		}
	}
	return false
}

func (m *matcher) bind(p *Pattern, o ir.Output, k func() bool) bool {
	m.bound[p] = o
	if k() {
		return true
	}
	delete(m.bound, p)
	return false
}

func (m *matcher) satisfies(p *Pattern, n *ir.Node) bool {
	for _, pred := range p.preds {
		if !pred(n) {
			return false
		}
	}
	return true
}
