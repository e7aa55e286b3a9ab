// graph.go - Graph-Arena: Knoten, Parameter, Results, Konsumenten-Index
// Der Graph ist alleiniger Besitzer seiner Knoten. Nicht thread-sicher:
// ein Graph wird immer nur von einem Aufrufer gleichzeitig veraendert.
package ir

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Graph is a DAG of nodes with ordered parameter and result boundaries.
type Graph struct {
	name    string
	nodes   map[NodeID]*Node
	next    NodeID
	params  []NodeID
	results []NodeID

	// users indexes the consuming edges of each producer.
	users map[NodeID][]Use

	tx *Txn
}

func NewGraph(name string) *Graph {
	return &Graph{
		name:  name,
		nodes: make(map[NodeID]*Node),
		next:  1,
		users: make(map[NodeID][]Use),
	}
}

func (g *Graph) Name() string { return g.name }

func (g *Graph) Len() int { return len(g.nodes) }

// Node looks up a node by id.
func (g *Graph) Node(id NodeID) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

func (g *Graph) mustNode(id NodeID) *Node {
	n, ok := g.nodes[id]
	if !ok {
		panic(fmt.Sprintf("ir: node %s not found", id))
	}
	return n
}

// Nodes returns all nodes in ascending id order.
func (g *Graph) Nodes() []*Node {
	ids := slices.Sorted(maps.Keys(g.nodes))
	out := make([]*Node, len(ids))
	for i, id := range ids {
		out[i] = g.nodes[id]
	}
	return out
}

func (g *Graph) Parameters() []*Node {
	out := make([]*Node, len(g.params))
	for i, id := range g.params {
		out[i] = g.nodes[id]
	}
	return out
}

func (g *Graph) Results() []*Node {
	out := make([]*Node, len(g.results))
	for i, id := range g.results {
		out[i] = g.nodes[id]
	}
	return out
}

// ParameterIndex returns the position of id among the graph parameters.
func (g *Graph) ParameterIndex(id NodeID) int {
	return slices.Index(g.params, id)
}

// Type returns the tensor type behind an output reference.
func (g *Graph) Type(o Output) (TensorType, error) {
	n, ok := g.nodes[o.Node]
	if !ok {
		return TensorType{}, fmt.Errorf("%w: %s", ErrNodeNotFound, o.Node)
	}
	if o.Index < 0 || o.Index >= len(n.outputs) {
		return TensorType{}, fmt.Errorf("%w: %s has no output %d", ErrNodeNotFound, o.Node, o.Index)
	}
	return n.outputs[o.Index], nil
}

// Consumers returns the uses of output o ordered by consumer id and input.
func (g *Graph) Consumers(o Output) []Use {
	var out []Use
	for _, u := range g.users[o.Node] {
		if u.Output == o.Index {
			out = append(out, u)
		}
	}
	sortUses(out)
	return out
}

// Users returns every use of any output of id.
func (g *Graph) Users(id NodeID) []Use {
	out := slices.Clone(g.users[id])
	sortUses(out)
	return out
}

func sortUses(uses []Use) {
	slices.SortFunc(uses, func(a, b Use) int {
		if c := cmp.Compare(a.Consumer, b.Consumer); c != 0 {
			return c
		}
		return cmp.Compare(a.Input, b.Input)
	})
}

// Parameter adds a graph input.
func (g *Graph) Parameter(dtype DType, shape Shape) *Node {
	n := &Node{
		kind:    KindParameter,
		attrs:   NewAttributes(),
		outputs: []TensorType{{DType: dtype, Shape: shape.Clone()}},
	}
	g.insert(n)
	g.params = append(g.params, n.id)
	g.record(func() { g.params = slices.DeleteFunc(g.params, func(id NodeID) bool { return id == n.id }) })
	return n
}

// Constant adds a constant node holding t.
func (g *Graph) Constant(t *Tensor) *Node {
	n := &Node{
		kind:    KindConstant,
		attrs:   NewAttributes(),
		outputs: []TensorType{t.Type()},
		value:   t.Clone(),
	}
	g.insert(n)
	return n
}

// Result marks o as a graph output.
func (g *Graph) Result(o Output) (*Node, error) {
	t, err := g.Type(o)
	if err != nil {
		return nil, err
	}

	n := &Node{
		kind:    KindResult,
		attrs:   NewAttributes(),
		inputs:  []Output{o},
		outputs: []TensorType{{DType: t.DType, Shape: t.Shape.Clone()}},
	}
	g.insert(n)
	g.results = append(g.results, n.id)
	g.record(func() { g.results = slices.DeleteFunc(g.results, func(id NodeID) bool { return id == n.id }) })
	return n, nil
}

func (g *Graph) MustResult(o Output) *Node {
	n, err := g.Result(o)
	if err != nil {
		panic(err)
	}
	return n
}

// Add creates an operation node and infers its outputs from its inputs.
func (g *Graph) Add(kind Kind, attrs *Attributes, inputs ...Output) (*Node, error) {
	switch kind {
	case KindParameter, KindConstant, KindResult:
		return nil, fmt.Errorf("use the dedicated constructor for %s", kind)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, kind)
	}
	if attrs == nil {
		attrs = NewAttributes()
	}

	outputs, err := g.infer(kind, attrs, inputs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	return g.AddWithOutputs(kind, attrs, inputs, outputs)
}

func (g *Graph) MustAdd(kind Kind, attrs *Attributes, inputs ...Output) *Node {
	n, err := g.Add(kind, attrs, inputs...)
	if err != nil {
		panic(err)
	}
	return n
}

// AddWithOutputs creates an operation node with explicitly declared outputs.
// Consistency with the inputs is checked by Validate, not here.
func (g *Graph) AddWithOutputs(kind Kind, attrs *Attributes, inputs []Output, outputs []TensorType) (*Node, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, kind)
	}
	if err := checkArity(kind, len(inputs)); err != nil {
		return nil, err
	}
	for _, in := range inputs {
		if _, err := g.Type(in); err != nil {
			return nil, err
		}
	}
	if attrs == nil {
		attrs = NewAttributes()
	}

	n := &Node{
		kind:    kind,
		attrs:   attrs.Clone(),
		inputs:  slices.Clone(inputs),
		outputs: make([]TensorType, len(outputs)),
	}
	for i, t := range outputs {
		n.outputs[i] = TensorType{DType: t.DType, Shape: t.Shape.Clone()}
	}
	g.insert(n)
	return n, nil
}

func (g *Graph) infer(kind Kind, attrs *Attributes, inputs []Output) ([]TensorType, error) {
	if err := checkArity(kind, len(inputs)); err != nil {
		return nil, err
	}

	ops := make([]operand, len(inputs))
	for i, in := range inputs {
		t, err := g.Type(in)
		if err != nil {
			return nil, err
		}
		ops[i] = operand{TensorType: t}
		if p := g.nodes[in.Node]; p.kind == KindConstant {
			ops[i].Const = p.value
		}
	}
	return kind.info().infer(attrs, ops)
}

// SetName sets the friendly name of a node.
func (g *Graph) SetName(id NodeID, name string) {
	n := g.mustNode(id)
	old := n.name
	n.name = name
	g.record(func() { n.name = old })
}

// SetAttr sets one attribute of a node. Attributes that feed type inference
// are not re-inferred; Validate reports the inconsistency.
func (g *Graph) SetAttr(id NodeID, key string, value any) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	old := n.attrs
	attrs := n.attrs.Clone()
	if err := attrs.Set(key, value); err != nil {
		return err
	}
	n.attrs = attrs
	g.record(func() { n.attrs = old })
	return nil
}

// SetInput rewires input idx of consumer to src without any type check.
// Validate reports inconsistencies after the fact.
func (g *Graph) SetInput(consumer NodeID, idx int, src Output) error {
	n, ok := g.nodes[consumer]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, consumer)
	}
	if idx < 0 || idx >= len(n.inputs) {
		return fmt.Errorf("%s has no input %d", consumer, idx)
	}
	if _, err := g.Type(src); err != nil {
		return err
	}
	g.setInput(n, idx, src)
	return nil
}

// ReplaceOutput reconnects every consumer of old to new. The new node itself
// is skipped so that a node inserted behind old can keep reading it. Output
// types must match exactly and the rewiring must not close a cycle.
func (g *Graph) ReplaceOutput(old, new Output) error {
	oldType, err := g.Type(old)
	if err != nil {
		return err
	}
	newType, err := g.Type(new)
	if err != nil {
		return err
	}
	if !oldType.Equal(newType) {
		return fmt.Errorf("%w: %s is %s, replacement %s is %s", ErrTypeMismatch, old, oldType, new, newType)
	}
	if old == new {
		return nil
	}

	uses := g.Consumers(old)
	ancestors := g.ancestors(new.Node)
	for _, u := range uses {
		if u.Consumer != new.Node && ancestors[u.Consumer] {
			return fmt.Errorf("%w: %s feeds %s", ErrCycle, u.Consumer, new.Node)
		}
	}

	for _, u := range uses {
		if u.Consumer == new.Node {
			continue
		}
		g.setInput(g.nodes[u.Consumer], u.Input, new)
	}
	return nil
}

// ReplaceNode replaces every output of old with the same output of new and
// carries the friendly name of old over to new.
func (g *Graph) ReplaceNode(old, new NodeID) error {
	o, ok := g.nodes[old]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, old)
	}
	n, ok := g.nodes[new]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, new)
	}
	if len(o.outputs) != len(n.outputs) {
		return fmt.Errorf("%w: %s has %d outputs, replacement %s has %d", ErrTypeMismatch, old, len(o.outputs), new, len(n.outputs))
	}

	for i := range o.outputs {
		if err := g.ReplaceOutput(o.Output(i), n.Output(i)); err != nil {
			return err
		}
	}
	if o.name != "" {
		g.SetName(new, o.name)
	}
	return nil
}

// ancestors returns every node id reachable from id through inputs,
// including id itself.
func (g *Graph) ancestors(id NodeID) map[NodeID]bool {
	seen := map[NodeID]bool{id: true}
	stack := []NodeID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n, ok := g.nodes[cur]
		if !ok {
			continue
		}
		for _, in := range n.inputs {
			if !seen[in.Node] {
				seen[in.Node] = true
				stack = append(stack, in.Node)
			}
		}
	}
	return seen
}

// Remove deletes a node that has no consumers. Parameters and results can
// not be removed.
func (g *Graph) Remove(id NodeID) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if n.kind == KindParameter || n.kind == KindResult {
		return fmt.Errorf("%w: %s is a graph boundary", ErrInUse, id)
	}
	if len(g.users[id]) > 0 {
		return fmt.Errorf("%w: %s has %d consumers", ErrInUse, id, len(g.users[id]))
	}
	g.erase(n)
	return nil
}

// CollectGarbage removes the candidates that have no consumers left, then
// retries their producers when those are candidates too. It returns the
// removed ids in removal order.
func (g *Graph) CollectGarbage(candidates ...NodeID) []NodeID {
	pending := make(map[NodeID]bool, len(candidates))
	for _, id := range candidates {
		pending[id] = true
	}

	var removed []NodeID
	work := slices.Sorted(maps.Keys(pending))
	slices.Reverse(work)
	for len(work) > 0 {
		id := work[len(work)-1]
		work = work[:len(work)-1]

		n, ok := g.nodes[id]
		if !ok || n.kind == KindParameter || n.kind == KindResult || len(g.users[id]) > 0 {
			continue
		}

		producers := make([]NodeID, 0, len(n.inputs))
		for _, in := range n.inputs {
			producers = append(producers, in.Node)
		}
		g.erase(n)
		removed = append(removed, id)

		for _, p := range producers {
			if pending[p] {
				work = append(work, p)
			}
		}
	}
	return removed
}

// Prune removes every node that does not contribute to a result. Parameters
// are kept.
func (g *Graph) Prune() []NodeID {
	live := make(map[NodeID]bool)
	for _, r := range g.results {
		maps.Copy(live, g.ancestors(r))
	}

	var dead []NodeID
	for id, n := range g.nodes {
		if !live[id] && n.kind != KindParameter {
			dead = append(dead, id)
		}
	}
	return g.CollectGarbage(dead...)
}

func (g *Graph) insert(n *Node) {
	n.id = g.next
	g.next++
	g.nodes[n.id] = n
	for i, in := range n.inputs {
		g.addUse(in.Node, Use{Consumer: n.id, Input: i, Output: in.Index})
	}
	if g.tx != nil {
		g.tx.created = append(g.tx.created, n.id)
	}
	g.record(func() { g.unlink(n) })
}

func (g *Graph) erase(n *Node) {
	g.unlink(n)
	g.record(func() { g.link(n) })
}

// unlink drops n and its outgoing uses, link restores both.
func (g *Graph) unlink(n *Node) {
	for i, in := range n.inputs {
		g.dropUse(in.Node, Use{Consumer: n.id, Input: i, Output: in.Index})
	}
	delete(g.nodes, n.id)
	delete(g.users, n.id)
}

func (g *Graph) link(n *Node) {
	g.nodes[n.id] = n
	for i, in := range n.inputs {
		g.addUse(in.Node, Use{Consumer: n.id, Input: i, Output: in.Index})
	}
}

func (g *Graph) setInput(n *Node, idx int, src Output) {
	old := n.inputs[idx]
	g.dropUse(old.Node, Use{Consumer: n.id, Input: idx, Output: old.Index})
	n.inputs[idx] = src
	g.addUse(src.Node, Use{Consumer: n.id, Input: idx, Output: src.Index})

	g.record(func() {
		g.dropUse(src.Node, Use{Consumer: n.id, Input: idx, Output: src.Index})
		n.inputs[idx] = old
		g.addUse(old.Node, Use{Consumer: n.id, Input: idx, Output: old.Index})
	})
}

func (g *Graph) addUse(producer NodeID, u Use) {
	g.users[producer] = append(g.users[producer], u)
}

func (g *Graph) dropUse(producer NodeID, u Use) {
	uses := slices.DeleteFunc(g.users[producer], func(x Use) bool { return x == u })
	if len(uses) == 0 {
		delete(g.users, producer)
		return
	}
	g.users[producer] = uses
}

// Clone returns an independent deep copy. IDs are preserved and the copy
// continues allocating after the highest id ever used by g.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		name:    g.name,
		nodes:   make(map[NodeID]*Node, len(g.nodes)),
		next:    g.next,
		params:  slices.Clone(g.params),
		results: slices.Clone(g.results),
		users:   make(map[NodeID][]Use, len(g.users)),
	}
	for id, n := range g.nodes {
		c.nodes[id] = n.clone()
	}
	for id, uses := range g.users {
		c.users[id] = slices.Clone(uses)
	}
	return c
}

// Restore resets g to the state of snapshot. The id counter never moves
// backwards, so ids handed out after the snapshot stay unused.
func (g *Graph) Restore(snapshot *Graph) {
	next := max(g.next, snapshot.next)
	c := snapshot.Clone()
	g.name, g.nodes, g.params, g.results, g.users = c.name, c.nodes, c.params, c.results, c.users
	g.next = next
	g.tx = nil
}

// String dumps the graph in topological order, or id order if it has a cycle.
func (g *Graph) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "graph %q\n", g.name)

	order, err := g.TopologicalOrder()
	if err != nil {
		order = slices.Sorted(maps.Keys(g.nodes))
	}
	for _, id := range order {
		fmt.Fprintf(&sb, "  %s\n", g.nodes[id])
	}
	return sb.String()
}
