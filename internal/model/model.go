package model

import (
	"slices"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/probgraph/internal/graph"
)

// Model is a compiled model description.
type Model struct {
	Name  string
	Graph *graph.Graph

	labels []string // declaration order
}

// Labels returns every label in declaration order.
func (m *Model) Labels() []string { return slices.Clone(m.labels) }

// Vertex returns the vertex with the given label.
func (m *Model) Vertex(label string) (*graph.Vertex, error) {
	v, ok := m.Graph.ByLabel(norm.NFC.String(label))
	if !ok {
		return nil, &UnknownLabelError{Label: label}
	}
	return v, nil
}

// Vertices resolves labels in order.
func (m *Model) Vertices(labels ...string) ([]*graph.Vertex, error) {
	out := make([]*graph.Vertex, 0, len(labels))
	for _, l := range labels {
		v, err := m.Vertex(l)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// LabelsOf returns the labels of vs, falling back to the id for
// unlabelled vertices.
func LabelsOf(vs []*graph.Vertex) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Name()
	}
	return out
}
