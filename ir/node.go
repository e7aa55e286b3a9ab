// node.go - Einzelne Operation im Graphen
// Knoten referenzieren einander nur ueber IDs (Output{Node, Index}).
package ir

import (
	"fmt"
	"slices"
	"strconv"
)

// NodeID identifies a node within one Graph. IDs are never reused.
type NodeID int64

func (id NodeID) String() string { return "#" + strconv.FormatInt(int64(id), 10) }

// Output references one output of a node.
type Output struct {
	Node  NodeID `json:"node"`
	Index int    `json:"index"`
}

func (o Output) String() string { return fmt.Sprintf("%s:%d", o.Node, o.Index) }

// Use is one consuming edge: input Input of Consumer reads output Output of
// the producer it is registered under.
type Use struct {
	Consumer NodeID
	Input    int
	Output   int
}

// Node is a single operation instance. Nodes are owned by their Graph and
// must only be mutated through it.
type Node struct {
	id      NodeID
	kind    Kind
	name    string
	attrs   *Attributes
	inputs  []Output
	outputs []TensorType
	value   *Tensor
}

func (n *Node) ID() NodeID { return n.id }
func (n *Node) Kind() Kind { return n.kind }

// Name is the friendly name. Unnamed nodes report "<Kind>_<id>".
func (n *Node) Name() string {
	if n.name != "" {
		return n.name
	}
	return n.kind.Name() + "_" + strconv.FormatInt(int64(n.id), 10)
}

// HasName reports whether a friendly name was set explicitly.
func (n *Node) HasName() bool { return n.name != "" }

// Attrs returns the attribute map. Callers must treat it as read-only.
func (n *Node) Attrs() *Attributes { return n.attrs }

func (n *Node) Inputs() []Output { return slices.Clone(n.inputs) }

func (n *Node) NumInputs() int { return len(n.inputs) }

func (n *Node) Input(i int) Output { return n.inputs[i] }

func (n *Node) Outputs() []TensorType {
	out := make([]TensorType, len(n.outputs))
	for i, t := range n.outputs {
		out[i] = TensorType{DType: t.DType, Shape: t.Shape.Clone()}
	}
	return out
}

func (n *Node) NumOutputs() int { return len(n.outputs) }

func (n *Node) OutputType(i int) TensorType { return n.outputs[i] }

// Output returns a reference to output i of this node.
func (n *Node) Output(i int) Output { return Output{Node: n.id, Index: i} }

// Value is the payload of a constant node, nil for every other kind.
func (n *Node) Value() *Tensor { return n.value }

func (n *Node) IsParameter() bool { return n.kind == KindParameter }
func (n *Node) IsResult() bool    { return n.kind == KindResult }
func (n *Node) IsConstant() bool  { return n.kind == KindConstant }

func (n *Node) String() string {
	s := fmt.Sprintf("%s %s %q", n.id, n.kind, n.Name())
	if n.attrs.Len() > 0 {
		s += " " + n.attrs.dump()
	}
	if len(n.inputs) > 0 {
		s += fmt.Sprintf(" in%v", n.inputs)
	}
	return s + fmt.Sprintf(" out%v", n.outputs)
}

func (n *Node) clone() *Node {
	return &Node{
		id:      n.id,
		kind:    n.kind,
		name:    n.name,
		attrs:   n.attrs.Clone(),
		inputs:  slices.Clone(n.inputs),
		outputs: n.Outputs(),
		value:   n.value.Clone(),
	}
}
