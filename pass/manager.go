// manager.go - PassManager: Pipeline auf einen Graphen anwenden
//
// Pro Pass: Snapshot, Sweep(s), Invarianten pruefen. Eine Verletzung bricht
// die Pipeline ab und stellt den Graphen auf den Stand vor dem Pass zurueck.
package pass

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ollama/irpass/envconfig"
	"github.com/ollama/irpass/ir"
)

// Manager runs pipelines. The zero value is not usable, see NewManager.
type Manager struct {
	Logger *slog.Logger

	// MaxIterations is the fixpoint cap for descriptors that set none.
	MaxIterations int
}

// NewManager reads its defaults from the environment.
func NewManager() *Manager {
	return &Manager{
		Logger:        slog.Default(),
		MaxIterations: int(envconfig.MaxIterations()),
	}
}

// PassReport summarizes one pipeline entry.
type PassReport struct {
	Name      string
	Sweeps    int
	Converged bool
	Duration  time.Duration
	Stats
}

// Report summarizes a pipeline run over one graph.
type Report struct {
	RunID    string
	Graph    string
	Passes   []PassReport
	Warnings []error
}

// Replaced returns the total number of applied rewrites.
func (r *Report) Replaced() int {
	var n int
	for _, p := range r.Passes {
		n += p.Replaced
	}
	return n
}

func (m *Manager) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func (m *Manager) iterations(d Descriptor) int {
	if !d.Fixpoint {
		return 1
	}
	if d.MaxIterations > 0 {
		return d.MaxIterations
	}
	if m.MaxIterations > 0 {
		return m.MaxIterations
	}
	return 1
}

// Run applies pipeline to g in declaration order. The input graph must be
// valid. On a *PassError g is left as it was before the failing pass.
func (m *Manager) Run(g *ir.Graph, pipeline Pipeline) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), Graph: g.Name()}
	log := m.logger().With("run", report.RunID, "graph", g.Name())

	if err := g.Validate(); err != nil {
		return report, fmt.Errorf("input graph: %w", err)
	}

	for i, d := range pipeline {
		name := d.Pass.Name()
		snapshot := g.Clone()
		start := time.Now()
		pr := PassReport{Name: name}

		limit := m.iterations(d)
		for it := 1; it <= limit; it++ {
			stats, err := d.Pass.Run(g)
			pr.Sweeps++
			pr.add(stats)
			if err != nil {
				g.Restore(snapshot)
				log.Error("pass failed", "pass", name, "iteration", it, "error", err)
				return report, &PassError{Pass: name, Index: i, Iteration: it, Err: err}
			}
			if !d.Fixpoint || stats.Replaced == 0 {
				pr.Converged = true
				break
			}
		}

		if !pr.Converged {
			warning := fmt.Errorf("%w: pass %q still rewriting after %d iterations", ErrFixpointNotReached, name, limit)
			report.Warnings = append(report.Warnings, warning)
			log.Warn("fixpoint not reached", "pass", name, "iterations", limit)
		}

		if err := g.Validate(); err != nil {
			g.Restore(snapshot)
			log.Error("invariant violated, graph restored", "pass", name, "error", err)
			return report, &PassError{Pass: name, Index: i, Iteration: pr.Sweeps, Err: err}
		}

		pr.Duration = time.Since(start)
		report.Passes = append(report.Passes, pr)
		log.Debug("pass done", "pass", name, "sweeps", pr.Sweeps, "matches", pr.Matches, "replaced", pr.Replaced, "failed", pr.Failed, "duration", pr.Duration)
	}

	return report, nil
}

// RunAll runs pipeline over distinct graphs with at most workers graphs in
// flight. Graphs must not share nodes or be used elsewhere meanwhile.
func (m *Manager) RunAll(ctx context.Context, graphs []*ir.Graph, pipeline Pipeline, workers int) ([]*Report, error) {
	reports := make([]*Report, len(graphs))

	eg, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		eg.SetLimit(workers)
	}

	for i, g := range graphs {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			r, err := m.Run(g, pipeline)
			reports[i] = r
			if err != nil {
				return fmt.Errorf("graph %q: %w", g.Name(), err)
			}
			return nil
		})
	}

	return reports, eg.Wait()
}
