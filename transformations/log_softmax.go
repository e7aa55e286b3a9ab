// log_softmax.go - LogSoftmax in elementare Operationen zerlegen
//
//	max = ReduceMax(x, axis, keep_dims)
//	sub = x - max
//	out = sub - Log(ReduceSum(Exp(sub), axis, keep_dims))
package transformations

import (
	"github.com/ollama/irpass/ir"
	"github.com/ollama/irpass/pass"
	"github.com/ollama/irpass/pattern"
)

func LogSoftmaxDecomposition(params pass.Params) (*pass.MatcherPass, error) {
	if err := params.Check(); err != nil {
		return nil, err
	}

	x := pattern.Any()
	root := pattern.WrapType(ir.KindLogSoftmax, x).Named("log_softmax")

	return pass.NewMatcherPass("log_softmax_decomposition", root, func(g *ir.Graph, b *pattern.Binding) (bool, error) {
		n, _ := g.Node(b.Root())
		in := b.MustOutput(x)
		t, err := g.Type(in)
		if err != nil {
			return false, err
		}

		axis, err := ir.NormalizeAxis(n.Attrs().Int("axis", 1), t.Shape.Rank())
		if err != nil {
			return false, err
		}

		keep := ir.Attrs("keep_dims", true)
		nb := builder{g: g}
		maxAxes := g.Constant(ir.Int64Tensor(axis))
		reduced := nb.add(ir.KindReduceMax, keep, in, maxAxes.Output(0))
		sub := nb.add(ir.KindSubtract, nil, in, reduced)
		exp := nb.add(ir.KindExp, nil, sub)
		sumAxes := g.Constant(ir.Int64Tensor(axis))
		sum := nb.add(ir.KindReduceSum, keep, exp, sumAxes.Output(0))
		log := nb.add(ir.KindLog, nil, sum)
		out := nb.add(ir.KindSubtract, nil, sub, log)
		if nb.err != nil {
			return false, nb.err
		}

		return true, g.ReplaceNode(b.Root(), out.Node)
	}), nil
}

// builder chains Graph.Add calls and keeps the first error.
type builder struct {
	g   *ir.Graph
	err error
}

func (b *builder) add(kind ir.Kind, attrs *ir.Attributes, inputs ...ir.Output) ir.Output {
	if b.err != nil {
		return ir.Output{}
	}
	n, err := b.g.Add(kind, attrs, inputs...)
	if err != nil {
		b.err = err
		return ir.Output{}
	}
	return n.Output(0)
}
