package equiv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ollama/irpass/ir"
)

// logSoftmaxRef baut die Referenzkette aus LogSoftmax-Zerlegung nach
func logSoftmaxRef(axis int64, lastKind ir.Kind) *ir.Graph {
	g := ir.NewGraph("reference")
	x := g.Parameter(ir.DTypeF32, ir.Shape{3, 2})
	keep := ir.Attrs("keep_dims", true)
	mx := g.MustAdd(ir.KindReduceMax, keep, x.Output(0), g.Constant(ir.Int64Tensor(axis)).Output(0))
	sub := g.MustAdd(ir.KindSubtract, nil, x.Output(0), mx.Output(0))
	exp := g.MustAdd(ir.KindExp, nil, sub.Output(0))
	sum := g.MustAdd(ir.KindReduceSum, keep, exp.Output(0), g.Constant(ir.Int64Tensor(axis)).Output(0))
	log := g.MustAdd(ir.KindLog, nil, sum.Output(0))
	out := g.MustAdd(lastKind, nil, sub.Output(0), log.Output(0))
	g.MustResult(out.Output(0))
	return g
}

func TestEquivalentToSelfAndClone(t *testing.T) {
	g := logSoftmaxRef(1, ir.KindSubtract)
	assert.True(t, Equivalent(g, g))
	assert.True(t, Equivalent(g, g.Clone()))
	assert.True(t, Equivalent(g, logSoftmaxRef(1, ir.KindSubtract)))
}

func TestKindMismatchPath(t *testing.T) {
	r := Compare(logSoftmaxRef(1, ir.KindAdd), logSoftmaxRef(1, ir.KindSubtract))
	require.False(t, r.Equal)
	require.Len(t, r.Mismatches, 1)
	assert.Contains(t, r.Mismatches[0].Path, "result[0] <- Add#")
	assert.Contains(t, r.Diff(), "kind opset1::Add, reference has opset1::Subtract")
}

func TestConstantPayloadMismatch(t *testing.T) {
	a := logSoftmaxRef(1, ir.KindSubtract)
	b := logSoftmaxRef(0, ir.KindSubtract)

	r := Compare(a, b)
	require.False(t, r.Equal)
	// unterschiedliche Achsen: Konstanten und Shapes weichen ab
	assert.Contains(t, r.Diff(), "constant payload differs")
	assert.Contains(t, r.Diff(), ".in[1] <- Log#")
}

func TestParametersByPosition(t *testing.T) {
	build := func(names ...string) *ir.Graph {
		g := ir.NewGraph("params")
		a := g.Parameter(ir.DTypeF32, ir.Shape{2})
		b := g.Parameter(ir.DTypeF32, ir.Shape{2})
		g.SetName(a.ID(), names[0])
		g.SetName(b.ID(), names[1])
		s := g.MustAdd(ir.KindSubtract, nil, a.Output(0), b.Output(0))
		g.MustResult(s.Output(0))
		return g
	}

	assert.True(t, Equivalent(build("x", "y"), build("lhs", "rhs")), "Namen werden ignoriert")
	assert.False(t, Equivalent(build("x", "y"), build("lhs", "rhs"), CompareNames()))

	swapped := ir.NewGraph("swapped")
	a := swapped.Parameter(ir.DTypeF32, ir.Shape{2})
	b := swapped.Parameter(ir.DTypeF32, ir.Shape{2})
	s := swapped.MustAdd(ir.KindSubtract, nil, b.Output(0), a.Output(0))
	swapped.MustResult(s.Output(0))

	r := Compare(swapped, build("x", "y"))
	require.False(t, r.Equal)
	assert.Contains(t, r.Diff(), "parameter 1 corresponds to reference parameter 0")
}

func TestAttributeMismatchAndIgnore(t *testing.T) {
	build := func(mode string) *ir.Graph {
		g := ir.NewGraph("gelu")
		p := g.Parameter(ir.DTypeF32, ir.Shape{1, 2, 3})
		n := g.MustAdd(ir.KindGelu, ir.Attrs("approximation_mode", mode), p.Output(0))
		g.MustResult(n.Output(0))
		return g
	}

	r := Compare(build("ERF"), build("TANH"))
	require.False(t, r.Equal)
	assert.Equal(t, "result[0] <- Gelu#2: attribute approximation_mode=ERF, reference has TANH", r.Diff())

	assert.True(t, Equivalent(build("ERF"), build("TANH"), IgnoreAttributes("approximation_mode")))
}

func TestResultArityAndShape(t *testing.T) {
	one := ir.NewGraph("one")
	p := one.Parameter(ir.DTypeF32, ir.Shape{2})
	one.MustResult(p.Output(0))

	two := ir.NewGraph("two")
	q := two.Parameter(ir.DTypeF32, ir.Shape{2})
	two.MustResult(q.Output(0))
	two.MustResult(q.Output(0))

	r := Compare(one, two)
	require.False(t, r.Equal)
	assert.Equal(t, "graph has 1 results, reference has 2", r.Mismatches[0].String())

	other := ir.NewGraph("other")
	o := other.Parameter(ir.DTypeF16, ir.Shape{3})
	other.MustResult(o.Output(0))

	r = Compare(one, other, MaxMismatches(1))
	assert.Len(t, r.Mismatches, 1)
	r = Compare(one, other)
	assert.Contains(t, r.Diff(), "element type f32, reference has f16")
	assert.Contains(t, r.Diff(), "shape {2}, reference has {3}")
}

func TestUnusedParameterTypes(t *testing.T) {
	build := func(dtype ir.DType, shape ir.Shape) *ir.Graph {
		g := ir.NewGraph("unused")
		p := g.Parameter(ir.DTypeF32, ir.Shape{4})
		g.Parameter(dtype, shape)
		r := g.MustAdd(ir.KindRelu, nil, p.Output(0))
		g.MustResult(r.Output(0))
		return g
	}

	assert.True(t, Equivalent(build(ir.DTypeF32, ir.Shape{4}), build(ir.DTypeF32, ir.Shape{4})))

	r := Compare(build(ir.DTypeF32, ir.Shape{4}), build(ir.DTypeI64, ir.Shape{7, 7}))
	require.False(t, r.Equal, "unbenutzter Parameter wird trotzdem verglichen")
	assert.Contains(t, r.Diff(), "parameter[1]: output 0 element type f32, reference has i64")
	assert.Contains(t, r.Diff(), "parameter[1]: output 0 shape {4}, reference has {7,7}")
}
