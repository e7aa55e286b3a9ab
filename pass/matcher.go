// matcher.go - MatcherPass: Muster + Ersetzungs-Callback
//
// Ablauf pro Anker:
// - Muster binden (rein lesend)
// - Callback innerhalb einer Graph-Transaktion ausfuehren
// - Fehler: Rollback, loggen, mit dem naechsten Anker weitermachen
// - Erfolg: Wurzel muss vollstaendig ersetzt sein, danach Garbage Collection
package pass

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ollama/irpass/ir"
	"github.com/ollama/irpass/logutil"
	"github.com/ollama/irpass/pattern"
)

// Callback rewrites a matched region. It returns false to decline the match
// without changing the graph.
type Callback func(g *ir.Graph, b *pattern.Binding) (bool, error)

// Outcome of applying a MatcherPass at one anchor.
type Outcome int

const (
	NoMatch Outcome = iota
	Replaced
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case NoMatch:
		return "no match"
	case Replaced:
		return "replaced"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// MatcherPass pairs a pattern with the callback that replaces its matches.
type MatcherPass struct {
	name     string
	pattern  *pattern.Pattern
	callback Callback
}

func NewMatcherPass(name string, p *pattern.Pattern, cb Callback) *MatcherPass {
	return &MatcherPass{name: name, pattern: p, callback: cb}
}

func (p *MatcherPass) Name() string { return p.name }

func (p *MatcherPass) Pattern() *pattern.Pattern { return p.pattern }

// Apply tries the pass at a single anchor. A callback error is returned
// wrapped in ErrCallback and leaves the graph as it was before the call.
func (p *MatcherPass) Apply(g *ir.Graph, anchor ir.NodeID) (Outcome, error) {
	b, ok := pattern.Match(g, p.pattern, anchor)
	if !ok {
		return NoMatch, nil
	}

	tx, err := g.Begin()
	if err != nil {
		return Skipped, err
	}

	replaced, err := p.callback(g, b)
	if err != nil {
		tx.Rollback()
		return Skipped, fmt.Errorf("%w: %w", ErrCallback, err)
	}
	if !replaced {
		tx.Rollback()
		return Skipped, nil
	}

	if root, ok := g.Node(anchor); ok {
		for i := range root.NumOutputs() {
			if uses := g.Consumers(root.Output(i)); len(uses) > 0 {
				tx.Rollback()
				return Skipped, fmt.Errorf("%w: output %d of %s still feeds %s", ErrRootNotReplaced, i, anchor, uses[0].Consumer)
			}
		}
	}

	removed := g.CollectGarbage(append(b.Region(), tx.Created()...)...)
	tx.Commit()

	logutil.Trace("rewrite applied", "pass", p.name, "anchor", anchor, "removed", len(removed))
	return Replaced, nil
}

// Run sweeps once over the nodes in the topological order of the graph as it
// was when the sweep started. Nodes removed during the sweep are skipped and
// nodes created during the sweep are not visited.
func (p *MatcherPass) Run(g *ir.Graph) (Stats, error) {
	order, err := g.TopologicalOrder()
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, id := range order {
		if _, ok := g.Node(id); !ok {
			continue
		}
		stats.Anchors++

		outcome, err := p.Apply(g, id)
		switch {
		case err != nil && (errors.Is(err, ErrCallback) || errors.Is(err, ErrRootNotReplaced)):
			stats.Matches++
			stats.Failed++
			slog.Warn("rewrite rejected", "pass", p.name, "pattern", p.pattern.Name(), "anchor", id, "error", err)
		case err != nil:
			return stats, err
		case outcome == Replaced:
			stats.Matches++
			stats.Replaced++
		case outcome == Skipped:
			stats.Matches++
			stats.Declined++
		}
	}
	return stats, nil
}
