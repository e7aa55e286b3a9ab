// gelu.go - Op-Set-Downgrade: opset7 Gelu (ERF) -> opset2 Gelu
package transformations

import (
	"fmt"

	"github.com/ollama/irpass/ir"
	"github.com/ollama/irpass/pass"
	"github.com/ollama/irpass/pattern"
)

// Gelu7Downgrade replaces opset7 Gelu in ERF mode by the opset2 Gelu, which
// always uses the erf formulation. TANH mode has no older equivalent and is
// left alone.
func Gelu7Downgrade(params pass.Params) (*pass.MatcherPass, error) {
	if err := params.Check("target_opset"); err != nil {
		return nil, err
	}
	target, err := params.Int("target_opset", ir.KindGeluLegacy.Opset())
	if err != nil {
		return nil, err
	}
	if target != ir.KindGeluLegacy.Opset() {
		return nil, fmt.Errorf("%w: Gelu downgrade to opset%d", pass.ErrUnsupported, target)
	}

	x := pattern.Any()
	root := pattern.WrapType(ir.KindGelu, x).
		With(pattern.AttrEquals("approximation_mode", "ERF", "ERF")).
		Named("gelu")

	return pass.NewMatcherPass("gelu7_downgrade", root, func(g *ir.Graph, b *pattern.Binding) (bool, error) {
		legacy, err := g.Add(ir.KindGeluLegacy, nil, b.MustOutput(x))
		if err != nil {
			return false, err
		}
		return true, g.ReplaceNode(b.Root(), legacy.ID())
	}), nil
}
