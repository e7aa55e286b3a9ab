package pass

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ollama/irpass/ir"
	"github.com/ollama/irpass/pattern"
)

// reluGraph: Parameter -> Relu -> Result
func reluGraph(t *testing.T) (*ir.Graph, *ir.Node) {
	t.Helper()
	g := ir.NewGraph("relu")
	p := g.Parameter(ir.DTypeF32, ir.Shape{2, 2})
	relu := g.MustAdd(ir.KindRelu, nil, p.Output(0))
	g.MustResult(relu.Output(0))
	return g, relu
}

// reluToTanh ersetzt Relu durch Tanh
func reluToTanh() *MatcherPass {
	x := pattern.Any()
	return NewMatcherPass("relu_to_tanh", pattern.WrapType(ir.KindRelu, x), func(g *ir.Graph, b *pattern.Binding) (bool, error) {
		tanh, err := g.Add(ir.KindTanh, nil, b.MustOutput(x))
		if err != nil {
			return false, err
		}
		return true, g.ReplaceNode(b.Root(), tanh.ID())
	})
}

func TestApplyReplaced(t *testing.T) {
	g, relu := reluGraph(t)

	outcome, err := reluToTanh().Apply(g, relu.ID())
	require.NoError(t, err)
	assert.Equal(t, Replaced, outcome)

	_, ok := g.Node(relu.ID())
	assert.False(t, ok, "Relu muss eingesammelt sein")
	assert.Equal(t, ir.KindTanh, mustNode(t, g, g.Results()[0].Input(0).Node).Kind())
	assert.False(t, g.InTxn())
	require.NoError(t, g.Validate())
}

func TestApplyNoMatch(t *testing.T) {
	g, _ := reluGraph(t)
	before := g.String()

	outcome, err := reluToTanh().Apply(g, g.Parameters()[0].ID())
	require.NoError(t, err)
	assert.Equal(t, NoMatch, outcome)
	assert.Equal(t, before, g.String())
}

func TestApplyDeclinedRollsBack(t *testing.T) {
	g, relu := reluGraph(t)
	before := g.String()

	p := NewMatcherPass("decline", pattern.WrapType(ir.KindRelu, pattern.Any()), func(g *ir.Graph, b *pattern.Binding) (bool, error) {
		g.MustAdd(ir.KindExp, nil, g.Parameters()[0].Output(0))
		return false, nil
	})

	outcome, err := p.Apply(g, relu.ID())
	require.NoError(t, err)
	assert.Equal(t, Skipped, outcome)
	assert.Equal(t, before, g.String())
}

func TestApplyCallbackErrorRollsBack(t *testing.T) {
	g, relu := reluGraph(t)
	before := g.String()
	boom := errors.New("boom")

	p := NewMatcherPass("fails", pattern.WrapType(ir.KindRelu, pattern.Any()), func(g *ir.Graph, b *pattern.Binding) (bool, error) {
		tanh := g.MustAdd(ir.KindTanh, nil, g.Parameters()[0].Output(0))
		if err := g.ReplaceNode(b.Root(), tanh.ID()); err != nil {
			return false, err
		}
		return false, boom
	})

	outcome, err := p.Apply(g, relu.ID())
	assert.Equal(t, Skipped, outcome)
	require.ErrorIs(t, err, ErrCallback)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, before, g.String(), "Teilaenderungen muessen zurueckgerollt sein")
}

func TestApplyRootNotReplaced(t *testing.T) {
	g, relu := reluGraph(t)
	before := g.String()

	p := NewMatcherPass("lazy", pattern.WrapType(ir.KindRelu, pattern.Any()), func(g *ir.Graph, b *pattern.Binding) (bool, error) {
		g.MustAdd(ir.KindTanh, nil, g.Parameters()[0].Output(0))
		return true, nil
	})

	_, err := p.Apply(g, relu.ID())
	require.ErrorIs(t, err, ErrRootNotReplaced)
	assert.Equal(t, before, g.String())
}

func TestRunSweepSkipsNewNodes(t *testing.T) {
	g := ir.NewGraph("sweep")
	p := g.Parameter(ir.DTypeF32, ir.Shape{4})
	a := g.MustAdd(ir.KindRelu, nil, p.Output(0))
	b := g.MustAdd(ir.KindRelu, nil, a.Output(0))
	g.MustResult(b.Output(0))

	// jedes Relu wird zu Relu(Relu(x)) - neue Knoten duerfen im selben Sweep nicht besucht werden
	x := pattern.Any()
	grow := NewMatcherPass("grow", pattern.WrapType(ir.KindRelu, x), func(g *ir.Graph, bd *pattern.Binding) (bool, error) {
		r1 := g.MustAdd(ir.KindRelu, nil, bd.MustOutput(x))
		r2 := g.MustAdd(ir.KindRelu, nil, r1.Output(0))
		return true, g.ReplaceNode(bd.Root(), r2.ID())
	})

	stats, err := grow.Run(g)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Replaced)
	assert.Equal(t, 4, stats.Anchors, "Parameter, zwei Relu und Result")
	assert.Equal(t, 6, g.Len())
}

func TestRunCountsFailures(t *testing.T) {
	g := ir.NewGraph("failures")
	p := g.Parameter(ir.DTypeF32, ir.Shape{4})
	a := g.MustAdd(ir.KindRelu, nil, p.Output(0))
	b := g.MustAdd(ir.KindRelu, nil, a.Output(0))
	g.MustResult(b.Output(0))

	calls := 0
	x := pattern.Any()
	flaky := NewMatcherPass("flaky", pattern.WrapType(ir.KindRelu, x), func(g *ir.Graph, bd *pattern.Binding) (bool, error) {
		calls++
		if calls == 1 {
			return false, errors.New("first attempt fails")
		}
		tanh := g.MustAdd(ir.KindTanh, nil, bd.MustOutput(x))
		return true, g.ReplaceNode(bd.Root(), tanh.ID())
	})

	stats, err := flaky.Run(g)
	require.NoError(t, err, "ein fehlgeschlagener Rewrite bricht den Sweep nicht ab")
	assert.Equal(t, Stats{Anchors: 4, Matches: 2, Replaced: 1, Failed: 1}, stats)
	_, ok := g.Node(a.ID())
	assert.True(t, ok)
	_, ok = g.Node(b.ID())
	assert.False(t, ok)
}

func mustNode(t *testing.T, g *ir.Graph, id ir.NodeID) *ir.Node {
	t.Helper()
	n, ok := g.Node(id)
	require.True(t, ok)
	return n
}
