// pattern.go - Deklarative Muster fuer Teilgraphen
// Ein Muster ist ein Baum aus Platzhaltern. Die Identitaet eines Platzhalters
// ist sein Pointer: wird derselbe Platzhalter zweimal verwendet, muss er auf
// denselben Knoten binden.
package pattern

import (
	"fmt"
	"strings"

	"github.com/ollama/irpass/ir"
)

type placeholderKind int

const (
	placeholderOp placeholderKind = iota
	placeholderAny
	placeholderOptional
)

// Pattern is one placeholder of a pattern tree.
type Pattern struct {
	kind        placeholderKind
	name        string
	kinds       []ir.Kind
	inputs      []*Pattern
	preds       []Predicate
	commutative bool
}

// WrapType matches a node of the given kind whose inputs match inputs in
// order. Without inputs the node's inputs are not constrained.
func WrapType(kind ir.Kind, inputs ...*Pattern) *Pattern {
	return WrapTypes([]ir.Kind{kind}, inputs...)
}

// WrapTypes is WrapType for a set of alternative kinds.
func WrapTypes(kinds []ir.Kind, inputs ...*Pattern) *Pattern {
	return &Pattern{kind: placeholderOp, kinds: kinds, inputs: inputs}
}

// Any matches every node output that satisfies preds. Its inputs are never
// inspected.
func Any(preds ...Predicate) *Pattern {
	return &Pattern{kind: placeholderAny, preds: preds}
}

// Optional matches a single-input node of one of kinds whose input matches
// input. When no such node is present the placeholder binds absent and input
// is matched in its place.
func Optional(kinds []ir.Kind, input *Pattern) *Pattern {
	return &Pattern{kind: placeholderOptional, kinds: kinds, inputs: []*Pattern{input}}
}

// With adds predicates that the bound node must satisfy.
func (p *Pattern) With(preds ...Predicate) *Pattern {
	p.preds = append(p.preds, preds...)
	return p
}

// Named sets a name used in logs and for Binding.Lookup.
func (p *Pattern) Named(name string) *Pattern {
	p.name = name
	return p
}

// Commutative lets the input placeholders bind to the node inputs in any
// order. Slots are assigned left to right, the first matching slot wins.
func (p *Pattern) Commutative() *Pattern {
	p.commutative = true
	return p
}

func (p *Pattern) Name() string {
	if p.name != "" {
		return p.name
	}
	return p.describe()
}

func (p *Pattern) describe() string {
	switch p.kind {
	case placeholderAny:
		return "any"
	case placeholderOptional:
		return "optional(" + kindNames(p.kinds) + ")"
	default:
		return kindNames(p.kinds)
	}
}

func kindNames(kinds []ir.Kind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.Name()
	}
	return strings.Join(names, "|")
}

// String renders the pattern tree, e.g. "Subtract(any, Log(any))".
func (p *Pattern) String() string {
	var sb strings.Builder
	p.write(&sb)
	return sb.String()
}

func (p *Pattern) write(sb *strings.Builder) {
	sb.WriteString(p.describe())
	if p.name != "" {
		fmt.Fprintf(sb, "@%s", p.name)
	}
	if len(p.inputs) == 0 {
		return
	}
	sb.WriteByte('(')
	for i, in := range p.inputs {
		if i > 0 {
			sb.WriteString(", ")
		}
		in.write(sb)
	}
	sb.WriteByte(')')
}
