package transformations

import (
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ollama/irpass/equiv"
	"github.com/ollama/irpass/ir"
	"github.com/ollama/irpass/pass"
)

func testManager() *pass.Manager {
	return &pass.Manager{
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		MaxIterations: 8,
	}
}

func run(t *testing.T, g *ir.Graph, factory Factory, params pass.Params) *pass.Report {
	t.Helper()
	p, err := factory(params)
	require.NoError(t, err)
	report, err := testManager().Run(g, pass.Pipeline{{Pass: p}})
	require.NoError(t, err)
	return report
}

func TestGelu7Downgrade(t *testing.T) {
	g := ir.NewGraph("gelu")
	p := g.Parameter(ir.DTypeF32, ir.Shape{1, 2, 3})
	gelu := g.MustAdd(ir.KindGelu, ir.Attrs("approximation_mode", "ERF"), p.Output(0))
	g.SetName(gelu.ID(), "gelu")
	g.MustResult(gelu.Output(0))

	ref := ir.NewGraph("reference")
	rp := ref.Parameter(ir.DTypeF32, ir.Shape{1, 2, 3})
	legacy := ref.MustAdd(ir.KindGeluLegacy, nil, rp.Output(0))
	ref.SetName(legacy.ID(), "gelu")
	ref.MustResult(legacy.Output(0))

	report := run(t, g, Catalog()["gelu7_downgrade"].New, nil)
	assert.Equal(t, 1, report.Replaced())

	r := equiv.Compare(g, ref, equiv.CompareNames())
	assert.True(t, r.Equal, r.Diff())
}

func TestGelu7DowngradeKeepsTanh(t *testing.T) {
	g := ir.NewGraph("gelu")
	p := g.Parameter(ir.DTypeF32, ir.Shape{1, 2, 3})
	gelu := g.MustAdd(ir.KindGelu, ir.Attrs("approximation_mode", "TANH"), p.Output(0))
	g.MustResult(gelu.Output(0))
	before := g.Clone()

	report := run(t, g, Catalog()["gelu7_downgrade"].New, pass.Params{"target_opset": "2"})
	assert.Equal(t, 0, report.Replaced())
	assert.True(t, equiv.Equivalent(g, before))
}

func TestGelu7DowngradeParams(t *testing.T) {
	_, err := Gelu7Downgrade(pass.Params{"target_opset": "1"})
	assert.ErrorIs(t, err, pass.ErrUnsupported)

	_, err = Gelu7Downgrade(pass.Params{"target": "2"})
	assert.ErrorIs(t, err, pass.ErrUnsupported)

	_, err = Gelu7Downgrade(pass.Params{"target_opset": "zwei"})
	assert.Error(t, err)
}

func logSoftmaxReference() *ir.Graph {
	g := ir.NewGraph("reference")
	x := g.Parameter(ir.DTypeF32, ir.Shape{3, 2})
	keep := ir.Attrs("keep_dims", true)
	mx := g.MustAdd(ir.KindReduceMax, keep, x.Output(0), g.Constant(ir.Int64Tensor(1)).Output(0))
	sub := g.MustAdd(ir.KindSubtract, nil, x.Output(0), mx.Output(0))
	exp := g.MustAdd(ir.KindExp, nil, sub.Output(0))
	sum := g.MustAdd(ir.KindReduceSum, keep, exp.Output(0), g.Constant(ir.Int64Tensor(1)).Output(0))
	log := g.MustAdd(ir.KindLog, nil, sum.Output(0))
	out := g.MustAdd(ir.KindSubtract, nil, sub.Output(0), log.Output(0))
	g.MustResult(out.Output(0))
	return g
}

func TestLogSoftmaxDecomposition(t *testing.T) {
	for _, axis := range []int64{1, -1} {
		g := ir.NewGraph("log_softmax")
		p := g.Parameter(ir.DTypeF32, ir.Shape{3, 2})
		ls := g.MustAdd(ir.KindLogSoftmax, ir.Attrs("axis", axis), p.Output(0))
		g.MustResult(ls.Output(0))

		report := run(t, g, Catalog()["log_softmax_decomposition"].New, nil)
		assert.Equal(t, 1, report.Replaced())

		r := equiv.Compare(g, logSoftmaxReference())
		assert.True(t, r.Equal, "axis %d: %s", axis, r.Diff())

		ordered, err := g.Ordered()
		require.NoError(t, err)
		var kinds []ir.Kind
		for _, n := range ordered {
			switch n.Kind() {
			case ir.KindParameter, ir.KindConstant, ir.KindResult:
			default:
				kinds = append(kinds, n.Kind())
			}
		}
		want := []ir.Kind{ir.KindReduceMax, ir.KindSubtract, ir.KindExp, ir.KindReduceSum, ir.KindLog, ir.KindSubtract}
		if diff := cmp.Diff(want, kinds); diff != "" {
			t.Errorf("Reihenfolge (-want +got):\n%s", diff)
		}
	}
}

func TestBroadcastToTile(t *testing.T) {
	g := ir.NewGraph("broadcast")
	p := g.Parameter(ir.DTypeF32, ir.Shape{1, 3})
	bc := g.MustAdd(ir.KindBroadcast, nil, p.Output(0), g.Constant(ir.Int64Tensor(4, 3)).Output(0))
	g.SetName(bc.ID(), "expanded")
	g.MustResult(bc.Output(0))

	// Rang-aendernder Broadcast bleibt stehen
	q := g.Parameter(ir.DTypeF32, ir.Shape{3})
	keep := g.MustAdd(ir.KindBroadcast, nil, q.Output(0), g.Constant(ir.Int64Tensor(2, 3)).Output(0))
	g.MustResult(keep.Output(0))

	report := run(t, g, Catalog()["broadcast_to_tile"].New, nil)
	assert.Equal(t, 1, report.Replaced())

	tile, ok := g.Node(g.Results()[0].Input(0).Node)
	require.True(t, ok)
	assert.Equal(t, ir.KindTile, tile.Kind())
	assert.Equal(t, "expanded", tile.Name())
	assert.Equal(t, ir.Shape{4, 3}, tile.OutputType(0).Shape)

	repeats, ok := g.Node(tile.Input(1).Node)
	require.True(t, ok)
	values, err := repeats.Value().Ints()
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 1}, values)

	_, ok = g.Node(keep.ID())
	assert.True(t, ok)
}

func TestTileRepeats(t *testing.T) {
	tests := []struct {
		in, out ir.Shape
		want    []int64
		ok      bool
	}{
		{ir.Shape{1, 3}, ir.Shape{4, 3}, []int64{4, 1}, true},
		{ir.Shape{2, 1, 5}, ir.Shape{2, 6, 5}, []int64{1, 6, 1}, true},
		{ir.Shape{2, 3}, ir.Shape{2, 3}, []int64{1, 1}, true},
		{ir.Shape{3}, ir.Shape{2, 3}, nil, false},
		{ir.Shape{2, 3}, ir.Shape{4, 3}, nil, false},
	}
	for _, tt := range tests {
		got, ok := tileRepeats(tt.in, tt.out)
		assert.Equal(t, tt.ok, ok, "%s -> %s", tt.in, tt.out)
		assert.Equal(t, tt.want, got, "%s -> %s", tt.in, tt.out)
	}
}

func transposeGraph(orders ...[]int64) *ir.Graph {
	g := ir.NewGraph("transpose")
	p := g.Parameter(ir.DTypeF32, ir.Shape{2, 3, 4})
	cur := p.Output(0)
	for _, order := range orders {
		c := g.Constant(ir.Int64Tensor(order...))
		cur = g.MustAdd(ir.KindTranspose, nil, cur, c.Output(0)).Output(0)
	}
	g.MustResult(cur)
	return g
}

func TestEliminateTransposePairs(t *testing.T) {
	g := transposeGraph([]int64{1, 2, 0}, []int64{2, 0, 1})
	run(t, g, Catalog()["eliminate_transpose_pairs"].New, nil)

	assert.Equal(t, 2, g.Len(), "nur Parameter und Result bleiben")
	assert.Equal(t, g.Parameters()[0].ID(), g.Results()[0].Input(0).Node)

	// Leere Order kehrt die Achsen um, zweimal umkehren ist die Identitaet
	g = transposeGraph(nil, nil)
	run(t, g, Catalog()["eliminate_transpose_pairs"].New, nil)
	assert.Equal(t, 2, g.Len())

	// keine Identitaet: nichts passiert
	g = transposeGraph([]int64{1, 0, 2}, []int64{0, 2, 1})
	before := g.Clone()
	run(t, g, Catalog()["eliminate_transpose_pairs"].New, nil)
	assert.True(t, equiv.Equivalent(g, before))
}

func TestEliminateTransposePairsFixpoint(t *testing.T) {
	swap := []int64{1, 0, 2}
	g := transposeGraph(swap, []int64{0, 2, 1}, []int64{0, 2, 1}, swap)

	p, err := EliminateTransposePairs(nil)
	require.NoError(t, err)
	report, err := testManager().Run(g, pass.Pipeline{{Pass: p, Fixpoint: true}})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Passes[0].Replaced)
	assert.Equal(t, 2, g.Len())
}

func TestCatalog(t *testing.T) {
	c := Catalog()
	names := make([]string, 0, len(c))
	for name, e := range c {
		assert.Equal(t, name, e.Name)
		p, err := e.New(nil)
		require.NoError(t, err)
		assert.Equal(t, name, p.Name())
		names = append(names, name)
	}
	slices.Sort(names)
	assert.Equal(t, []string{"broadcast_to_tile", "eliminate_transpose_pairs", "gelu7_downgrade", "log_softmax_decomposition", "prune_dead_nodes"}, names)

	// jede Instanz ist unabhaengig
	delete(c, "gelu7_downgrade")
	assert.Contains(t, Catalog(), "gelu7_downgrade")
}

func TestPruneDeadNodes(t *testing.T) {
	g := ir.NewGraph("prune")
	p := g.Parameter(ir.DTypeF32, ir.Shape{2})
	g.MustAdd(ir.KindExp, nil, p.Output(0))
	g.MustResult(p.Output(0))

	report := run(t, g, PruneDeadNodes, nil)
	assert.Equal(t, 1, report.Replaced())
	assert.Equal(t, 2, g.Len())
}
