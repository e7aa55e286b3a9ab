package ir

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(g *Graph, p, exp, relu, r *Node)
		want   Violation
	}{
		{
			name: "dangling reference",
			mutate: func(g *Graph, p, exp, relu, r *Node) {
				delete(g.nodes, exp.id)
			},
			want: ViolationDanglingReference,
		},
		{
			name: "result consumed",
			mutate: func(g *Graph, p, exp, relu, r *Node) {
				e := g.MustAdd(KindExp, nil, p.Output(0))
				g.MustResult(e.Output(0))
				require.NoError(t, g.SetInput(e.id, 0, r.Output(0)))
			},
			want: ViolationBoundary,
		},
		{
			name: "unregistered parameter",
			mutate: func(g *Graph, p, exp, relu, r *Node) {
				g.params = nil
			},
			want: ViolationBoundary,
		},
		{
			name: "arity",
			mutate: func(g *Graph, p, exp, relu, r *Node) {
				relu.inputs = append(relu.inputs, p.Output(0))
			},
			want: ViolationArity,
		},
		{
			name: "cycle",
			mutate: func(g *Graph, p, exp, relu, r *Node) {
				require.NoError(t, g.SetInput(exp.id, 0, relu.Output(0)))
			},
			want: ViolationCycle,
		},
		{
			name: "self loop",
			mutate: func(g *Graph, p, exp, relu, r *Node) {
				require.NoError(t, g.SetInput(exp.id, 0, exp.Output(0)))
			},
			want: ViolationCycle,
		},
		{
			name: "shape mismatch",
			mutate: func(g *Graph, p, exp, relu, r *Node) {
				other := g.Parameter(DTypeF32, Shape{3, 2})
				require.NoError(t, g.SetInput(relu.id, 0, other.Output(0)))
			},
			want: ViolationTypeMismatch,
		},
		{
			name: "constant payload",
			mutate: func(g *Graph, p, exp, relu, r *Node) {
				c := g.Constant(Int64Tensor(1, 2))
				c.value.Data = c.value.Data[:8]
			},
			want: ViolationTypeMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, p, exp, relu, r := chain(t)
			require.NoError(t, g.Validate())

			tt.mutate(g, p, exp, relu, r)

			err := g.Validate()
			require.ErrorIs(t, err, ErrInvariantViolation)
			var ie *InvariantError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, tt.want, ie.Violation, "Fehler: %v", err)
			assert.NotEmpty(t, ie.Nodes)
		})
	}
}

func TestValidateSkipsNonConstantShapes(t *testing.T) {
	g := NewGraph("dynamic")
	p := g.Parameter(DTypeF32, Shape{2, 3})
	order := g.Parameter(DTypeI64, Shape{2})
	tr, err := g.AddWithOutputs(KindTranspose, nil, []Output{p.Output(0), order.Output(0)}, []TensorType{{DType: DTypeF32, Shape: Shape{3, 2}}})
	require.NoError(t, err)
	g.MustResult(tr.Output(0))

	assert.NoError(t, g.Validate())
}
