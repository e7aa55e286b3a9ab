// pass.go - Pass-Schnittstelle, Statistiken und Pipeline-Beschreibung
package pass

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/ollama/irpass/ir"
)

// Pass is one graph transformation. Run performs a single sweep.
type Pass interface {
	Name() string
	Run(g *ir.Graph) (Stats, error)
}

// Stats counts what one sweep did.
type Stats struct {
	Anchors  int
	Matches  int
	Replaced int
	Declined int
	Failed   int
}

func (s *Stats) add(o Stats) {
	s.Anchors += o.Anchors
	s.Matches += o.Matches
	s.Replaced += o.Replaced
	s.Declined += o.Declined
	s.Failed += o.Failed
}

// GraphPassFunc adapts a whole-graph function to Pass. The function reports
// whether it changed the graph.
type GraphPassFunc struct {
	PassName string
	Fn       func(g *ir.Graph) (bool, error)
}

func (p GraphPassFunc) Name() string { return p.PassName }

func (p GraphPassFunc) Run(g *ir.Graph) (Stats, error) {
	changed, err := p.Fn(g)
	if err != nil {
		return Stats{Anchors: 1, Failed: 1}, err
	}
	if changed {
		return Stats{Anchors: 1, Matches: 1, Replaced: 1}, nil
	}
	return Stats{Anchors: 1}, nil
}

// Descriptor places a pass in a pipeline.
type Descriptor struct {
	Pass Pass

	// Fixpoint repeats the sweep until nothing is replaced.
	Fixpoint bool

	// MaxIterations caps a fixpoint loop. Zero means the manager default.
	MaxIterations int
}

// Pipeline is the ordered list of passes a Manager applies.
type Pipeline []Descriptor

// Names returns the pass names in order.
func (p Pipeline) Names() []string {
	names := make([]string, len(p))
	for i, d := range p {
		names[i] = d.Pass.Name()
	}
	return names
}

// Params carries pass specific configuration, e.g. a target op-set.
type Params map[string]string

func (p Params) String(key, defaultValue string) string {
	if v, ok := p[key]; ok {
		return v
	}
	return defaultValue
}

func (p Params) Int(key string, defaultValue int) (int, error) {
	v, ok := p[key]
	if !ok {
		return defaultValue, nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %q is not an integer", key, v)
	}
	return i, nil
}

func (p Params) Bool(key string, defaultValue bool) (bool, error) {
	v, ok := p[key]
	if !ok {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("parameter %s: %q is not a boolean", key, v)
	}
	return b, nil
}

// Check rejects keys outside known.
func (p Params) Check(known ...string) error {
	var unknown []string
	for k := range p {
		if !slices.Contains(known, k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return fmt.Errorf("%w: parameters %s", ErrUnsupported, strings.Join(unknown, ", "))
	}
	return nil
}
