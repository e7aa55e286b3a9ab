package ir

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphJSONRoundTrip(t *testing.T) {
	g := NewGraph("softmax")
	p := g.Parameter(DTypeF32, Shape{3, 2})
	g.SetName(p.ID(), "input")
	axes := g.Constant(Int64Tensor(1))
	mx := g.MustAdd(KindReduceMax, Attrs("keep_dims", true), p.Output(0), axes.Output(0))
	sub := g.MustAdd(KindSubtract, nil, p.Output(0), mx.Output(0))
	g.MustResult(sub.Output(0))

	var buf bytes.Buffer
	require.NoError(t, WriteGraph(&buf, g))

	got, err := ReadGraph(&buf)
	require.NoError(t, err)
	assert.Equal(t, g.String(), got.String())
	assert.Equal(t, "input", got.Parameters()[0].Name())

	n, ok := got.Node(mx.ID())
	require.True(t, ok)
	assert.True(t, n.Attrs().Bool("keep_dims", false))

	// neue Knoten bekommen frische IDs
	e := got.MustAdd(KindExp, nil, sub.Output(0))
	assert.Greater(t, e.ID(), sub.ID()+1)
}

func TestGraphJSONRejectsBrokenInput(t *testing.T) {
	tests := map[string]string{
		"duplicate id": `{"name":"x","nodes":[{"id":1,"kind":"Parameter","outputs":[]},{"id":1,"kind":"Parameter","outputs":[]}]}`,
		"unknown kind": `{"name":"x","nodes":[{"id":1,"kind":"Frobnicate","outputs":[]}]}`,
		"zero id":      `{"name":"x","nodes":[{"id":0,"kind":"Parameter","outputs":[]}]}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			var g Graph
			assert.Error(t, json.Unmarshal([]byte(doc), &g))
		})
	}
}

func TestReadGraphValidates(t *testing.T) {
	doc := `{"name":"x","nodes":[{"id":2,"kind":"Result","inputs":[{"node":1,"index":0}],"outputs":[{"dtype":"f32","shape":[1]}]}],"parameters":[],"results":[2]}`
	_, err := ReadGraph(bytes.NewBufferString(doc))
	require.ErrorIs(t, err, ErrInvariantViolation)
}

func TestAttributesJSONKeepsTypes(t *testing.T) {
	attrs := Attrs(
		"alpha", 2.0,
		"beta", 0.5,
		"axis", -1,
		"scales", []float64{1, 2},
		"pads", []int64{0, 1},
		"empty", []float64{},
		"mode", "ERF",
	)

	b, err := json.Marshal(attrs)
	require.NoError(t, err)
	assert.JSONEq(t, `{"alpha":2.0,"beta":0.5,"axis":-1,"scales":[1.0,2.0],"pads":[0,1],"empty":[],"mode":"ERF"}`, string(b))
	assert.Contains(t, string(b), `"alpha":2.0`)

	got := NewAttributes()
	require.NoError(t, json.Unmarshal(b, got))
	assert.Equal(t, attrs.Keys(), got.Keys(), "Reihenfolge bleibt erhalten")
	assert.True(t, attrs.Equal(got), "Typen ueberleben den Roundtrip")

	alpha, _ := got.Get("alpha")
	assert.IsType(t, float64(0), alpha)
	scales, _ := got.Get("scales")
	assert.Equal(t, []float64{1, 2}, scales)
	axis, _ := got.Get("axis")
	assert.IsType(t, int64(0), axis)

	_, err = json.Marshal(Attrs("x", math.NaN()))
	assert.Error(t, err)
}

func TestGraphJSONRoundTripFloatAttrs(t *testing.T) {
	g := NewGraph("elu")
	p := g.Parameter(DTypeF32, Shape{4})
	n := g.MustAdd(KindRelu, nil, p.Output(0))
	require.NoError(t, g.SetAttr(n.ID(), "alpha", 2.0))
	require.NoError(t, g.SetAttr(n.ID(), "scales", []float64{1, 2}))
	g.MustResult(n.Output(0))

	var buf bytes.Buffer
	require.NoError(t, WriteGraph(&buf, g))
	got, err := ReadGraph(&buf)
	require.NoError(t, err)

	m, ok := got.Node(n.ID())
	require.True(t, ok)
	assert.True(t, n.Attrs().Equal(m.Attrs()), "%s != %s", n, m)
}
