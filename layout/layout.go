// layout.go - Speicher-Orientierung von Graph-Ein- und Ausgaben
//
// Wird nach dem Rewriting auf den fertigen Graphen angewendet. Eine Eingabe
// oder Ausgabe ist nicht-interleaved, wenn die zugehoerige DNN-Komponente ein
// (De-)Interleave ist und ihre Zeilen/Spalten zu N und C des Tensors passen.
// Sonst gilt interleaved als Standard.
package layout

import (
	"fmt"
	"strings"

	"github.com/ollama/irpass/ir"
)

// Attribute is the node attribute holding the tensor layout of a parameter
// or result.
const Attribute = "layout"

type Orientation int

const (
	Interleaved Orientation = iota
	NonInterleaved
)

func (o Orientation) String() string {
	if o == NonInterleaved {
		return "non-interleaved"
	}
	return "interleaved"
}

// Layout is the declared dimension order of a boundary tensor.
type Layout int

const (
	Any Layout = iota
	NC
	CN
	NCHW
	NHWC
)

var layoutNames = [...]string{Any: "ANY", NC: "NC", CN: "CN", NCHW: "NCHW", NHWC: "NHWC"}

func (l Layout) String() string {
	if l < 0 || int(l) >= len(layoutNames) {
		return fmt.Sprintf("Layout(%d)", int(l))
	}
	return layoutNames[l]
}

// ParseLayout is case-insensitive. Unknown names map to Any.
func ParseLayout(s string) Layout {
	for i, name := range layoutNames {
		if strings.EqualFold(s, name) {
			return Layout(i)
		}
	}
	return Any
}

// batched reports whether the first two dimensions are N and C in some order.
func (l Layout) batched() bool {
	switch l {
	case NC, CN, NCHW, NHWC:
		return true
	default:
		return false
	}
}

// Of reads the layout attribute of n.
func Of(n *ir.Node) Layout {
	return ParseLayout(n.Attrs().String(Attribute, ""))
}

type Operation int

const (
	OpOther Operation = iota
	OpInterleave
	OpDeinterleave
)

func (o Operation) String() string {
	switch o {
	case OpInterleave:
		return "interleave"
	case OpDeinterleave:
		return "deinterleave"
	default:
		return "other"
	}
}

func (o *Operation) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "interleave":
		*o = OpInterleave
	case "deinterleave":
		*o = OpDeinterleave
	case "other", "":
		*o = OpOther
	default:
		return fmt.Errorf("unknown component operation %q", b)
	}
	return nil
}

// Component is the DNN component a backend generated for one node.
type Component struct {
	Operation  Operation `yaml:"operation"`
	RowsIn     int64     `yaml:"rows_in"`
	ColumnsIn  int64     `yaml:"columns_in"`
	RowsOut    int64     `yaml:"rows_out"`
	ColumnsOut int64     `yaml:"columns_out"`
}

// Components maps node friendly names to their component.
type Components map[string]Component

func (c Components) find(n *ir.Node) (Component, bool) {
	comp, ok := c[n.Name()]
	return comp, ok
}

// InputOrientation returns the orientation expected for the parameter called
// name. The parameter must feed exactly one node.
func InputOrientation(g *ir.Graph, name string, comps Components) (Orientation, error) {
	var param *ir.Node
	for _, p := range g.Parameters() {
		if p.Name() == name {
			param = p
			break
		}
	}
	if param == nil {
		return Interleaved, &LookupError{Name: name, Reason: ReasonUnknownName}
	}

	var consumers []ir.NodeID
	for _, u := range g.Consumers(param.Output(0)) {
		if len(consumers) == 0 || consumers[len(consumers)-1] != u.Consumer {
			consumers = append(consumers, u.Consumer)
		}
	}
	switch len(consumers) {
	case 0:
		return Interleaved, &LookupError{Name: name, Reason: ReasonNoConsumer}
	case 1:
	default:
		return Interleaved, &LookupError{Name: name, Reason: ReasonManyConsumers}
	}

	consumer, ok := g.Node(consumers[0])
	if !ok {
		return Interleaved, &LookupError{Name: name, Reason: ReasonNoConsumer}
	}
	comp, ok := comps.find(consumer)
	if !ok {
		return Interleaved, nil
	}
	return orientation(Of(param), param.OutputType(0).Shape, comp.Operation, comp.RowsIn, comp.ColumnsIn), nil
}

// OutputOrientation returns the orientation produced for the result called
// name, judged by the component of the node feeding it.
func OutputOrientation(g *ir.Graph, name string, comps Components) (Orientation, error) {
	var result *ir.Node
	for _, r := range g.Results() {
		if r.Name() == name {
			result = r
			break
		}
	}
	if result == nil {
		return Interleaved, &LookupError{Name: name, Reason: ReasonUnknownName}
	}

	producer, ok := g.Node(result.Input(0).Node)
	if !ok {
		return Interleaved, &LookupError{Name: name, Reason: ReasonNoProducer}
	}
	comp, ok := comps.find(producer)
	if !ok {
		return Interleaved, nil
	}
	return orientation(Of(result), result.OutputType(0).Shape, comp.Operation, comp.RowsOut, comp.ColumnsOut), nil
}

func orientation(l Layout, dims ir.Shape, op Operation, rows, cols int64) Orientation {
	if op != OpInterleave && op != OpDeinterleave {
		return Interleaved
	}
	if !l.batched() || dims.Rank() < 2 {
		return Interleaved
	}

	// N is the second dimension
	if l == CN && rows == dims[1] && cols == dims[0] {
		return NonInterleaved
	}
	if rows == dims[0] && cols == dims[1] {
		return NonInterleaved
	}
	return Interleaved
}
