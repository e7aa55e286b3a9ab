// equiv.go - Struktureller Vergleich zweier Graphen (Test-Orakel)
//
// Synchroner Lauf von den Results aus ueber Knotenpaare (Breitensuche).
// Parameter entsprechen sich ueber ihre Position und werden vorab verglichen,
// auch wenn kein Result sie erreicht. Namen werden standardmaessig ignoriert. Abweichungen werden gesammelt, nie als Fehler geworfen.
package equiv

import (
	"fmt"
	"slices"
	"strings"

	"github.com/emirpasic/gods/v2/queues/arrayqueue"

	"github.com/ollama/irpass/ir"
)

// Mismatch is one divergence with the path from a result to where it was found.
type Mismatch struct {
	Path   string
	Detail string
}

func (m Mismatch) String() string {
	if m.Path == "" {
		return m.Detail
	}
	return m.Path + ": " + m.Detail
}

// Result of a comparison. Equal is true iff Mismatches is empty.
type Result struct {
	Equal      bool
	Mismatches []Mismatch
}

// Diff renders one mismatch per line.
func (r Result) Diff() string {
	lines := make([]string, len(r.Mismatches))
	for i, m := range r.Mismatches {
		lines[i] = m.String()
	}
	return strings.Join(lines, "\n")
}

type options struct {
	names         bool
	ignoreAttrs   []string
	maxMismatches int
}

type Option func(*options)

// CompareNames also requires equal friendly names.
func CompareNames() Option {
	return func(o *options) { o.names = true }
}

// IgnoreAttributes skips the given attribute keys.
func IgnoreAttributes(keys ...string) Option {
	return func(o *options) { o.ignoreAttrs = append(o.ignoreAttrs, keys...) }
}

// MaxMismatches stops the walk after n mismatches. Zero collects all.
func MaxMismatches(n int) Option {
	return func(o *options) { o.maxMismatches = n }
}

type pair struct {
	a, b ir.NodeID
	path string
}

type comparer struct {
	a, b *ir.Graph
	opts options

	aToB, bToA map[ir.NodeID]ir.NodeID
	mismatches []Mismatch
}

// Equivalent reports whether actual and reference are structurally equal.
func Equivalent(actual, reference *ir.Graph, opts ...Option) bool {
	return Compare(actual, reference, opts...).Equal
}

// Compare walks actual and reference in lockstep from their results.
func Compare(actual, reference *ir.Graph, opts ...Option) Result {
	c := &comparer{
		a:    actual,
		b:    reference,
		aToB: make(map[ir.NodeID]ir.NodeID),
		bToA: make(map[ir.NodeID]ir.NodeID),
	}
	for _, opt := range opts {
		opt(&c.opts)
	}

	ra, rb := actual.Results(), reference.Results()
	if len(ra) != len(rb) {
		c.report("", "graph has %d results, reference has %d", len(ra), len(rb))
	}
	pa, pb := actual.Parameters(), reference.Parameters()
	if len(pa) != len(pb) {
		c.report("", "graph has %d parameters, reference has %d", len(pa), len(pb))
	}
	for i := range min(len(pa), len(pb)) {
		c.aToB[pa[i].ID()] = pb[i].ID()
		c.bToA[pb[i].ID()] = pa[i].ID()
		c.compareNode(fmt.Sprintf("parameter[%d]", i), pa[i], pb[i])
	}

	queue := arrayqueue.New[pair]()
	for i := range min(len(ra), len(rb)) {
		queue.Enqueue(pair{a: ra[i].ID(), b: rb[i].ID(), path: fmt.Sprintf("result[%d]", i)})
	}

	for !queue.Empty() && !c.full() {
		p, _ := queue.Dequeue()
		for _, next := range c.visit(p) {
			queue.Enqueue(next)
		}
	}

	if c.full() {
		c.mismatches = c.mismatches[:c.opts.maxMismatches]
	}
	return Result{Equal: len(c.mismatches) == 0, Mismatches: c.mismatches}
}

func (c *comparer) full() bool {
	return c.opts.maxMismatches > 0 && len(c.mismatches) >= c.opts.maxMismatches
}

func (c *comparer) report(path, format string, args ...any) {
	c.mismatches = append(c.mismatches, Mismatch{Path: path, Detail: fmt.Sprintf(format, args...)})
}

// visit compares one pair and returns the input pairs still to compare.
func (c *comparer) visit(p pair) []pair {
	if b, ok := c.aToB[p.a]; ok {
		if b != p.b {
			c.conflict(p, b)
		}
		return nil
	}
	if a, ok := c.bToA[p.b]; ok {
		c.report(p.path, "reference node %s corresponds to both %s and %s", p.b, a, p.a)
		return nil
	}
	c.aToB[p.a] = p.b
	c.bToA[p.b] = p.a

	na, _ := c.a.Node(p.a)
	nb, _ := c.b.Node(p.b)
	if na == nil || nb == nil {
		c.report(p.path, "node missing")
		return nil
	}

	if na.Kind() != nb.Kind() {
		c.report(p.path, "kind %s, reference has %s", na.Kind(), nb.Kind())
		return nil
	}

	if na.IsParameter() {
		ia, ib := c.a.ParameterIndex(p.a), c.b.ParameterIndex(p.b)
		if ia != ib {
			c.report(p.path, "parameter %d corresponds to reference parameter %d", ia, ib)
		}
	}

	c.compareNode(p.path, na, nb)

	if na.NumInputs() != nb.NumInputs() {
		c.report(p.path, "%d inputs, reference has %d", na.NumInputs(), nb.NumInputs())
		return nil
	}

	var next []pair
	for i := range na.NumInputs() {
		ia, ib := na.Input(i), nb.Input(i)
		if ia.Index != ib.Index {
			c.report(p.path, "input %d reads output %d, reference reads output %d", i, ia.Index, ib.Index)
			continue
		}

		child, _ := c.a.Node(ia.Node)
		label := ia.Node.String()
		if child != nil {
			label = child.Kind().Name() + label
		}

		path := p.path + " <- " + label
		if na.NumInputs() > 1 {
			path = fmt.Sprintf("%s.in[%d] <- %s", p.path, i, label)
		}
		next = append(next, pair{a: ia.Node, b: ib.Node, path: path})
	}
	return next
}

// conflict reports a node of actual reached against a second reference node.
func (c *comparer) conflict(p pair, mapped ir.NodeID) {
	na, _ := c.a.Node(p.a)
	nb, _ := c.b.Node(p.b)
	if na != nil && nb != nil && na.IsParameter() && nb.IsParameter() {
		c.report(p.path, "parameter %d corresponds to reference parameter %d", c.a.ParameterIndex(p.a), c.b.ParameterIndex(p.b))
		return
	}
	c.report(p.path, "node %s corresponds to both %s and %s in the reference", p.a, mapped, p.b)
}

// compareNode checks everything of a pair except its kind and inputs.
func (c *comparer) compareNode(path string, na, nb *ir.Node) {
	if c.opts.names && na.Name() != nb.Name() {
		c.report(path, "name %q, reference has %q", na.Name(), nb.Name())
	}

	c.compareAttrs(path, na.Attrs(), nb.Attrs())
	c.compareOutputs(path, na, nb)

	if na.IsConstant() && !na.Value().Equal(nb.Value()) {
		c.report(path, "constant payload differs")
	}
}

func (c *comparer) compareAttrs(path string, a, b *ir.Attributes) {
	keys := a.Keys()
	for _, k := range b.Keys() {
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}

	for _, k := range keys {
		if slices.Contains(c.opts.ignoreAttrs, k) {
			continue
		}
		va, okA := a.Get(k)
		vb, okB := b.Get(k)
		switch {
		case !okA:
			c.report(path, "attribute %s missing, reference has %v", k, vb)
		case !okB:
			c.report(path, "attribute %s=%v not in reference", k, va)
		case !ir.ValueEqual(va, vb):
			c.report(path, "attribute %s=%v, reference has %v", k, va, vb)
		}
	}
}

func (c *comparer) compareOutputs(path string, na, nb *ir.Node) {
	if na.NumOutputs() != nb.NumOutputs() {
		c.report(path, "%d outputs, reference has %d", na.NumOutputs(), nb.NumOutputs())
		return
	}
	for i := range na.NumOutputs() {
		ta, tb := na.OutputType(i), nb.OutputType(i)
		if ta.DType != tb.DType {
			c.report(path, "output %d element type %s, reference has %s", i, ta.DType, tb.DType)
		}
		if !ta.Shape.Equal(tb.Shape) {
			c.report(path, "output %d shape %s, reference has %s", i, ta.Shape, tb.Shape)
		}
	}
}
