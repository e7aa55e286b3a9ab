// transpose.go - Aufeinanderfolgende Transposes, die sich aufheben, entfernen
package transformations

import (
	"github.com/ollama/irpass/ir"
	"github.com/ollama/irpass/pass"
	"github.com/ollama/irpass/pattern"
)

// EliminateTransposePairs reconnects the consumers of Transpose(Transpose(x))
// to x when the two permutations cancel out.
func EliminateTransposePairs(params pass.Params) (*pass.MatcherPass, error) {
	if err := params.Check(); err != nil {
		return nil, err
	}

	x := pattern.Any()
	innerOrder := pattern.WrapType(ir.KindConstant)
	outerOrder := pattern.WrapType(ir.KindConstant)
	inner := pattern.WrapType(ir.KindTranspose, x, innerOrder).Named("inner")
	root := pattern.WrapType(ir.KindTranspose, inner, outerOrder).Named("outer")

	return pass.NewMatcherPass("eliminate_transpose_pairs", root, func(g *ir.Graph, b *pattern.Binding) (bool, error) {
		in, err := g.Type(b.MustOutput(x))
		if err != nil {
			return false, err
		}
		rank := in.Shape.Rank()

		p1, ok := permutation(g, b.MustOutput(innerOrder), rank)
		if !ok {
			return false, nil
		}
		p2, ok := permutation(g, b.MustOutput(outerOrder), rank)
		if !ok {
			return false, nil
		}

		for i := range p2 {
			if p1[p2[i]] != int64(i) {
				return false, nil
			}
		}

		root, _ := g.Node(b.Root())
		return true, g.ReplaceOutput(root.Output(0), b.MustOutput(x))
	}), nil
}

// permutation reads a constant transpose order. An empty order reverses the
// axes.
func permutation(g *ir.Graph, o ir.Output, rank int) ([]int64, bool) {
	n, ok := g.Node(o.Node)
	if !ok || !n.IsConstant() {
		return nil, false
	}

	order, err := n.Value().Ints()
	if err != nil {
		return nil, false
	}
	if len(order) == 0 {
		order = make([]int64, rank)
		for i := range order {
			order[i] = int64(rank - 1 - i)
		}
	}
	return order, ir.IsPermutation(order, rank)
}
