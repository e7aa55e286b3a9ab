package pipeline

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/agnivade/levenshtein"

	"github.com/ollama/irpass/pass"
	"github.com/ollama/irpass/transformations"
)

var ErrUnknownPass = errors.New("unknown pass")

// Build instantiates every entry from the catalog. Nothing global is
// consulted; the returned pipeline is owned by the caller.
func Build(cfg *Config, catalog map[string]transformations.Entry) (pass.Pipeline, error) {
	pipeline := make(pass.Pipeline, 0, len(cfg.Passes))
	for i, e := range cfg.Passes {
		entry, ok := catalog[e.Name]
		if !ok {
			err := fmt.Errorf("%w %q", ErrUnknownPass, e.Name)
			if s := suggest(e.Name, catalog); s != "" {
				err = fmt.Errorf("%w, did you mean %q?", err, s)
			}
			return nil, err
		}

		p, err := entry.New(pass.Params(e.Params))
		if err != nil {
			return nil, fmt.Errorf("pass %d (%s): %w", i, e.Name, err)
		}

		fixpoint := entry.Fixpoint
		if e.Fixpoint != nil {
			fixpoint = *e.Fixpoint
		}
		pipeline = append(pipeline, pass.Descriptor{Pass: p, Fixpoint: fixpoint, MaxIterations: e.MaxIterations})
	}
	return pipeline, nil
}

// Default runs every catalog pass once, in name order, with the suggested
// fixpoint setting.
func Default(catalog map[string]transformations.Entry) *Config {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	slices.Sort(names)

	// Aufraeumen zuletzt
	if i := slices.Index(names, "prune_dead_nodes"); i >= 0 {
		names = append(slices.Delete(names, i, i+1), "prune_dead_nodes")
	}

	cfg := &Config{}
	for _, name := range names {
		cfg.Passes = append(cfg.Passes, Entry{Name: name})
	}
	return cfg
}

func suggest(name string, catalog map[string]transformations.Entry) string {
	var best string
	score := math.MaxInt
	for candidate := range catalog {
		d := levenshtein.ComputeDistance(name, candidate)
		if d < score || (d == score && candidate < best) {
			score = d
			best = candidate
		}
	}

	if score <= len(name)/2 {
		return best
	}
	return ""
}
