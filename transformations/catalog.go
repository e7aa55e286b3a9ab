// catalog.go - Verzeichnis der verfuegbaren Passes
// Kein globaler Zustand: Catalog liefert bei jedem Aufruf eine neue Map.
package transformations

import (
	"github.com/ollama/irpass/ir"
	"github.com/ollama/irpass/pass"
)

// Factory builds a pass from its parameters.
type Factory func(pass.Params) (pass.Pass, error)

// Entry describes one available pass.
type Entry struct {
	Name        string
	Description string
	Params      []string

	// Fixpoint is the suggested pipeline setting.
	Fixpoint bool

	New Factory
}

func matcher(fn func(pass.Params) (*pass.MatcherPass, error)) Factory {
	return func(p pass.Params) (pass.Pass, error) {
		mp, err := fn(p)
		if err != nil {
			return nil, err
		}
		return mp, nil
	}
}

// Catalog returns the passes by name.
func Catalog() map[string]Entry {
	entries := []Entry{
		{
			Name:        "gelu7_downgrade",
			Description: "Replace opset7 Gelu (ERF) with opset2 Gelu",
			Params:      []string{"target_opset"},
			New:         matcher(Gelu7Downgrade),
		},
		{
			Name:        "log_softmax_decomposition",
			Description: "Decompose LogSoftmax into ReduceMax, Subtract, Exp, ReduceSum and Log",
			New:         matcher(LogSoftmaxDecomposition),
		},
		{
			Name:        "broadcast_to_tile",
			Description: "Express an equal-rank Broadcast with a constant target as Tile",
			New:         matcher(BroadcastToTile),
		},
		{
			Name:        "eliminate_transpose_pairs",
			Description: "Remove two Transposes whose permutations cancel out",
			Fixpoint:    true,
			New:         matcher(EliminateTransposePairs),
		},
		{
			Name:        "prune_dead_nodes",
			Description: "Remove nodes that do not contribute to any result",
			New:         PruneDeadNodes,
		},
	}

	catalog := make(map[string]Entry, len(entries))
	for _, e := range entries {
		catalog[e.Name] = e
	}
	return catalog
}

// PruneDeadNodes removes every node no result depends on. Parameters stay.
func PruneDeadNodes(params pass.Params) (pass.Pass, error) {
	if err := params.Check(); err != nil {
		return nil, err
	}
	return pass.GraphPassFunc{
		PassName: "prune_dead_nodes",
		Fn: func(g *ir.Graph) (bool, error) {
			return len(g.Prune()) > 0, nil
		},
	}, nil
}
