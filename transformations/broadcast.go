// broadcast.go - Broadcast mit konstanter Zielform als Tile ausdruecken
package transformations

import (
	"github.com/ollama/irpass/ir"
	"github.com/ollama/irpass/pass"
	"github.com/ollama/irpass/pattern"
)

// BroadcastToTile rewrites a Broadcast of equal rank into a Tile. Every
// input dimension must either match the output or be 1.
func BroadcastToTile(params pass.Params) (*pass.MatcherPass, error) {
	if err := params.Check(); err != nil {
		return nil, err
	}

	x := pattern.Any()
	target := pattern.WrapType(ir.KindConstant)
	root := pattern.WrapType(ir.KindBroadcast, x, target).Named("broadcast")

	return pass.NewMatcherPass("broadcast_to_tile", root, func(g *ir.Graph, b *pattern.Binding) (bool, error) {
		n, _ := g.Node(b.Root())
		in, err := g.Type(b.MustOutput(x))
		if err != nil {
			return false, err
		}

		repeats, ok := tileRepeats(in.Shape, n.OutputType(0).Shape)
		if !ok {
			return false, nil
		}

		c := g.Constant(ir.Int64Tensor(repeats...))
		tile, err := g.Add(ir.KindTile, nil, b.MustOutput(x), c.Output(0))
		if err != nil {
			return false, err
		}
		return true, g.ReplaceNode(b.Root(), tile.ID())
	}), nil
}

func tileRepeats(in, out ir.Shape) ([]int64, bool) {
	if in.Rank() != out.Rank() {
		return nil, false
	}

	repeats := make([]int64, in.Rank())
	for i := range in {
		switch {
		case in[i] == out[i]:
			repeats[i] = 1
		case in[i] == 1:
			repeats[i] = out[i]
		default:
			return nil, false
		}
	}
	return repeats, true
}
