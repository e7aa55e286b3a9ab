package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ollama/irpass/equiv"
	"github.com/ollama/irpass/ir"
	"github.com/ollama/irpass/layout"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("IRPASS_PIPELINE", "")
	t.Setenv("IRPASS_NOCOLOR", "1")

	var stdout, stderr bytes.Buffer
	cli := NewCLI()
	cli.SetArgs(args)
	cli.SetOut(&stdout)
	cli.SetErr(&stderr)
	err := cli.ExecuteContext(context.Background())
	return stdout.String(), err
}

func writeGraph(t *testing.T, dir, name string, g *ir.Graph) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, ir.WriteGraph(f, g))
	require.NoError(t, f.Close())
	return path
}

func geluGraph(kind ir.Kind, attrs *ir.Attributes) *ir.Graph {
	g := ir.NewGraph("gelu")
	p := g.Parameter(ir.DTypeF32, ir.Shape{1, 2, 3})
	n := g.MustAdd(kind, attrs, p.Output(0))
	g.MustResult(n.Output(0))
	return g
}

func TestPassesCommand(t *testing.T) {
	out, err := execute(t, "passes")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6, "Kopfzeile und fuenf Passes")
	assert.Equal(t, "NAME\tFIXPOINT\tPARAMS\tDESCRIPTION", lines[0])
	assert.True(t, strings.HasPrefix(lines[3], "gelu7_downgrade\tfalse\ttarget_opset\t"), lines[3])

	out, err = execute(t, "passes", "elim")
	require.NoError(t, err)
	assert.Contains(t, out, "eliminate_transpose_pairs\ttrue\t-\t")
	assert.NotContains(t, out, "gelu7_downgrade")
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	in := writeGraph(t, dir, "gelu.json", geluGraph(ir.KindGelu, ir.Attrs("approximation_mode", "ERF")))

	out, err := execute(t, "run", "--pass", "gelu7_downgrade", in)
	require.NoError(t, err)

	g, err := ir.ReadGraph(strings.NewReader(out))
	require.NoError(t, err)
	r := equiv.Compare(g, geluGraph(ir.KindGeluLegacy, nil))
	assert.True(t, r.Equal, r.Diff())

	// mehrere Graphen brauchen ein Ausgabeverzeichnis
	_, err = execute(t, "run", in, in)
	assert.ErrorContains(t, err, "--output")

	outDir := filepath.Join(dir, "out")
	_, err = execute(t, "run", "--workers", "2", "-o", outDir, in)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(outDir, "gelu.json"))

	// gleicher Dateiname aus zwei Verzeichnissen
	other := filepath.Join(dir, "other")
	require.NoError(t, os.MkdirAll(other, 0o755))
	dup := writeGraph(t, other, "gelu.json", geluGraph(ir.KindGelu, ir.Attrs("approximation_mode", "ERF")))
	_, err = execute(t, "run", "-o", outDir, in, dup)
	assert.ErrorContains(t, err, "would both be written as gelu.json")

	_, err = execute(t, "run", "--no-validate", in)
	assert.ErrorContains(t, err, "unknown flag")

	_, err = execute(t, "run", "--pass", "gelu_downgrade", in)
	assert.ErrorContains(t, err, `did you mean "gelu7_downgrade"?`)
}

func TestRunCommandPipelineFile(t *testing.T) {
	dir := t.TempDir()
	in := writeGraph(t, dir, "gelu.json", geluGraph(ir.KindGelu, ir.Attrs("approximation_mode", "ERF")))
	pipelineFile := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(pipelineFile, []byte("passes:\n  - name: prune_dead_nodes\n"), 0o644))

	out, err := execute(t, "run", "--pipeline", pipelineFile, in)
	require.NoError(t, err)

	g, err := ir.ReadGraph(strings.NewReader(out))
	require.NoError(t, err)
	assert.True(t, equiv.Equivalent(g, geluGraph(ir.KindGelu, ir.Attrs("approximation_mode", "ERF"))), "Gelu bleibt ohne Downgrade-Pass")
}

func TestDiffCommand(t *testing.T) {
	dir := t.TempDir()
	erf := writeGraph(t, dir, "erf.json", geluGraph(ir.KindGelu, ir.Attrs("approximation_mode", "ERF")))
	tanh := writeGraph(t, dir, "tanh.json", geluGraph(ir.KindGelu, ir.Attrs("approximation_mode", "TANH")))

	out, err := execute(t, "diff", erf, erf)
	require.NoError(t, err)
	assert.Equal(t, "equivalent\n", out)

	out, err = execute(t, "diff", erf, tanh)
	assert.ErrorIs(t, err, errNotEquivalent)
	assert.Contains(t, out, "attribute approximation_mode=ERF, reference has TANH")

	_, err = execute(t, "diff", "--ignore-attr", "approximation_mode", erf, tanh)
	assert.NoError(t, err)
}

func TestLayoutCommand(t *testing.T) {
	dir := t.TempDir()

	g := ir.NewGraph("layout")
	p := g.Parameter(ir.DTypeF32, ir.Shape{4, 8})
	g.SetName(p.ID(), "input")
	require.NoError(t, g.SetAttr(p.ID(), layout.Attribute, "NC"))
	relu := g.MustAdd(ir.KindRelu, nil, p.Output(0))
	g.SetName(relu.ID(), "affine")
	r := g.MustResult(relu.Output(0))
	g.SetName(r.ID(), "output")
	graphFile := writeGraph(t, dir, "layout.json", g)

	comps := filepath.Join(dir, "components.yaml")
	require.NoError(t, os.WriteFile(comps, []byte(`
affine:
  operation: interleave
  rows_in: 4
  columns_in: 8
`), 0o644))

	out, err := execute(t, "layout", "--components", comps, graphFile, "input")
	require.NoError(t, err)
	assert.Equal(t, "non-interleaved\n", out)

	out, err = execute(t, "layout", "--components", comps, "--output", graphFile, "output")
	require.NoError(t, err)
	assert.Equal(t, "interleaved\n", out)

	_, err = execute(t, "layout", graphFile, "nope")
	assert.ErrorIs(t, err, layout.ErrLookup)
}

func TestEnvCommand(t *testing.T) {
	t.Setenv("IRPASS_MAX_ITERATIONS", "3")

	out, err := execute(t, "env")
	require.NoError(t, err)
	assert.Contains(t, out, "IRPASS_MAX_ITERATIONS\t3\t")
	assert.Contains(t, out, "IRPASS_NOCOLOR\ttrue\t")
}
