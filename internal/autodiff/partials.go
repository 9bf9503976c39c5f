package autodiff

import (
	"maps"
	"slices"

	"github.com/roach88/probgraph/internal/graph"
	"github.com/roach88/probgraph/internal/tensor"
)

// Partials holds derivatives keyed by vertex id.
//
// For forward mode the keys are the "of" vertices and each entry is laid
// out as of⊗wrt; for reverse mode the keys are the with-respect-to vertices
// and each entry is laid out as wrt⊗of.
type Partials struct {
	byID map[graph.ID]tensor.Tensor
}

func newPartials() Partials {
	return Partials{byID: make(map[graph.ID]tensor.Tensor)}
}

// Get returns the partial for id.
func (p Partials) Get(id graph.ID) (tensor.Tensor, bool) {
	t, ok := p.byID[id]
	return t, ok
}

// Len returns the number of entries.
func (p Partials) Len() int { return len(p.byID) }

// IDs returns the keys in ascending order.
func (p Partials) IDs() []graph.ID {
	return slices.Sorted(maps.Keys(p.byID))
}
