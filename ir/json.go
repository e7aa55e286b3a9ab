// json.go - Serialisierung des Graphen (fuer CLI und Golden-Tests)
package ir

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
)

type jsonNode struct {
	ID      NodeID       `json:"id"`
	Kind    Kind         `json:"kind"`
	Name    string       `json:"name,omitempty"`
	Attrs   *Attributes  `json:"attrs,omitempty"`
	Inputs  []Output     `json:"inputs,omitempty"`
	Outputs []TensorType `json:"outputs"`
	Value   *Tensor      `json:"value,omitempty"`
}

type jsonGraph struct {
	Name       string     `json:"name"`
	Nodes      []jsonNode `json:"nodes"`
	Parameters []NodeID   `json:"parameters"`
	Results    []NodeID   `json:"results"`
}

func (g *Graph) MarshalJSON() ([]byte, error) {
	jg := jsonGraph{
		Name:       g.name,
		Parameters: slices.Clone(g.params),
		Results:    slices.Clone(g.results),
	}
	if jg.Parameters == nil {
		jg.Parameters = []NodeID{}
	}
	if jg.Results == nil {
		jg.Results = []NodeID{}
	}

	for _, n := range g.Nodes() {
		jn := jsonNode{
			ID:      n.id,
			Kind:    n.kind,
			Name:    n.name,
			Inputs:  n.inputs,
			Outputs: n.outputs,
			Value:   n.value,
		}
		if n.attrs.Len() > 0 {
			jn.Attrs = n.attrs
		}
		jg.Nodes = append(jg.Nodes, jn)
	}
	return json.Marshal(jg)
}

// UnmarshalJSON replaces g with the decoded graph. Node ids are preserved.
// The result is not validated.
func (g *Graph) UnmarshalJSON(b []byte) error {
	var jg jsonGraph
	if err := json.Unmarshal(b, &jg); err != nil {
		return err
	}

	out := NewGraph(jg.Name)
	for _, jn := range jg.Nodes {
		if jn.ID <= 0 {
			return fmt.Errorf("invalid node id %d", jn.ID)
		}
		if _, ok := out.nodes[jn.ID]; ok {
			return fmt.Errorf("duplicate node id %s", jn.ID)
		}
		if !jn.Kind.Valid() {
			return fmt.Errorf("%w: node %s has no kind", ErrUnsupported, jn.ID)
		}

		attrs := jn.Attrs
		if attrs == nil {
			attrs = NewAttributes()
		}
		n := &Node{
			id:      jn.ID,
			kind:    jn.Kind,
			name:    jn.Name,
			attrs:   attrs,
			inputs:  jn.Inputs,
			outputs: jn.Outputs,
			value:   jn.Value,
		}
		out.link(n)
		out.next = max(out.next, jn.ID+1)
	}
	out.params = jg.Parameters
	out.results = jg.Results

	*g = *out
	return nil
}

// ReadGraph decodes a graph from r and validates it.
func ReadGraph(r io.Reader) (*Graph, error) {
	var g Graph
	if err := json.NewDecoder(r).Decode(&g); err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// WriteGraph encodes g as indented JSON.
func WriteGraph(w io.Writer, g *Graph) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(g)
}
