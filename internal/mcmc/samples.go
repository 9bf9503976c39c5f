package mcmc

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/roach88/probgraph/internal/graph"
	"github.com/roach88/probgraph/internal/tensor"
)

// DomainSamples prefixes sample fingerprints. The version suffix allows the
// encoding to change without colliding with old fingerprints.
const DomainSamples = "probgraph/samples/v1"

// NetworkState is the recorded values of a set of vertices at one step.
type NetworkState struct {
	values  map[graph.ID]tensor.Tensor
	logProb float64
}

func captureState(record []*graph.Vertex, logProb float64) NetworkState {
	st := NetworkState{values: make(map[graph.ID]tensor.Tensor, len(record)), logProb: logProb}
	for _, v := range record {
		st.values[v.ID()] = v.Value()
	}
	return st
}

// Get returns the recorded value of id.
func (n NetworkState) Get(id graph.ID) (tensor.Tensor, bool) {
	t, ok := n.values[id]
	return t, ok
}

// LogProb returns the joint log-probability at this state.
func (n NetworkState) LogProb() float64 { return n.logProb }

// Samples is a chain of recorded network states, stored column-wise.
//
// Samples is immutable: Drop and DownSample return new values that share
// the (immutable) tensors.
type Samples struct {
	ids      []graph.ID
	values   map[graph.ID][]tensor.Tensor
	logProbs []float64
}

func newSamples(ids []graph.ID) *Samples {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	s := &Samples{ids: ids, values: make(map[graph.ID][]tensor.Tensor, len(ids))}
	for _, id := range ids {
		s.values[id] = nil
	}
	return s
}

// NewSamples rebuilds a chain from columns, for example when loading a
// persisted run. Every column must hold one value per log-probability.
func NewSamples(values map[graph.ID][]tensor.Tensor, logProbs []float64) (*Samples, error) {
	ids := make([]graph.ID, 0, len(values))
	for id, col := range values {
		if len(col) != len(logProbs) {
			return nil, fmt.Errorf("samples for %s: %d values, %d log-probabilities", id, len(col), len(logProbs))
		}
		ids = append(ids, id)
	}
	s := newSamples(ids)
	for id, col := range values {
		s.values[id] = slices.Clone(col)
	}
	s.logProbs = slices.Clone(logProbs)
	return s, nil
}

func (s *Samples) append(st NetworkState) {
	for _, id := range s.ids {
		s.values[id] = append(s.values[id], st.values[id])
	}
	s.logProbs = append(s.logProbs, st.logProb)
}

// Size returns the number of recorded states.
func (s *Samples) Size() int { return len(s.logProbs) }

// IDs returns the recorded vertex ids in ascending order.
func (s *Samples) IDs() []graph.ID { return slices.Clone(s.ids) }

// Get returns the recorded values of id, oldest first.
func (s *Samples) Get(id graph.ID) ([]tensor.Tensor, bool) {
	col, ok := s.values[id]
	return slices.Clone(col), ok
}

// LogProbs returns the joint log-probability of each recorded state.
func (s *Samples) LogProbs() []float64 { return slices.Clone(s.logProbs) }

// Scalars returns the recorded values of a scalar vertex as floats.
func (s *Samples) Scalars(id graph.ID) ([]float64, error) {
	col, ok := s.values[id]
	if !ok {
		return nil, fmt.Errorf("vertex %s was not recorded", id)
	}
	out := make([]float64, len(col))
	for i, t := range col {
		if t.Size() != 1 {
			return nil, fmt.Errorf("vertex %s is not scalar (shape %s)", id, t.Shape())
		}
		out[i] = t.Value()
	}
	return out, nil
}

// Drop returns the chain without its first n states.
func (s *Samples) Drop(n int) *Samples {
	n = min(max(n, 0), s.Size())
	return s.slice(func(i int) bool { return i >= n })
}

// DownSample returns every interval-th state, starting with the first.
func (s *Samples) DownSample(interval int) *Samples {
	interval = max(interval, 1)
	return s.slice(func(i int) bool { return i%interval == 0 })
}

func (s *Samples) slice(keep func(int) bool) *Samples {
	out := newSamples(s.ids)
	for i := 0; i < s.Size(); i++ {
		if keep(i) {
			out.append(s.State(i))
		}
	}
	return out
}

// State returns the i-th recorded state.
func (s *Samples) State(i int) NetworkState {
	st := NetworkState{values: make(map[graph.ID]tensor.Tensor, len(s.ids)), logProb: s.logProbs[i]}
	for _, id := range s.ids {
		st.values[id] = s.values[id][i]
	}
	return st
}

// Probability returns the fraction of states satisfying pred.
func (s *Samples) Probability(pred func(NetworkState) bool) float64 {
	if s.Size() == 0 {
		return 0
	}
	hits := 0
	for i := 0; i < s.Size(); i++ {
		if pred(s.State(i)) {
			hits++
		}
	}
	return float64(hits) / float64(s.Size())
}

// MostProbable returns the state with the highest joint log-probability,
// the earliest one on ties. It is the chain's MAP estimate.
func (s *Samples) MostProbable() (NetworkState, bool) {
	if s.Size() == 0 {
		return NetworkState{}, false
	}
	return s.State(floats.MaxIdx(s.logProbs)), true
}

// columns returns the samples of id element by element.
func (s *Samples) columns(id graph.ID) ([][]float64, tensor.Shape, error) {
	col, ok := s.values[id]
	if !ok {
		return nil, nil, fmt.Errorf("vertex %s was not recorded", id)
	}
	if len(col) == 0 {
		return nil, nil, fmt.Errorf("vertex %s has no samples", id)
	}
	shape := col[0].Shape()
	out := make([][]float64, shape.Size())
	for k := range out {
		out[k] = make([]float64, len(col))
	}
	for i, t := range col {
		for k := range out {
			out[k][i] = t.At(k)
		}
	}
	return out, shape, nil
}

// Mean returns the element-wise sample mean of id.
func (s *Samples) Mean(id graph.ID) (tensor.Tensor, error) {
	return s.reduce(id, 1, func(xs []float64) float64 { return stat.Mean(xs, nil) })
}

// Variance returns the element-wise unbiased sample variance of id.
func (s *Samples) Variance(id graph.ID) (tensor.Tensor, error) {
	return s.reduce(id, 2, func(xs []float64) float64 { return stat.Variance(xs, nil) })
}

func (s *Samples) reduce(id graph.ID, need int, f func([]float64) float64) (tensor.Tensor, error) {
	if s.Size() < need {
		return tensor.Tensor{}, fmt.Errorf("need at least %d samples, have %d", need, s.Size())
	}
	cols, shape, err := s.columns(id)
	if err != nil {
		return tensor.Tensor{}, err
	}
	data := make([]float64, len(cols))
	for k, xs := range cols {
		data[k] = f(xs)
	}
	return tensor.New(shape, data)
}

// Autocorrelation returns the sample autocorrelation of a scalar vertex
// for lags 0 through maxLag. Lag 0 is always 1.
func (s *Samples) Autocorrelation(id graph.ID, maxLag int) ([]float64, error) {
	xs, err := s.Scalars(id)
	if err != nil {
		return nil, err
	}
	if maxLag < 0 || maxLag >= len(xs) {
		return nil, fmt.Errorf("lag %d out of range for %d samples", maxLag, len(xs))
	}
	centered := slices.Clone(xs)
	floats.AddConst(-stat.Mean(xs, nil), centered)
	denom := floats.Dot(centered, centered)

	out := make([]float64, maxLag+1)
	for k := range out {
		if denom == 0 {
			out[k] = math.NaN()
			continue
		}
		out[k] = floats.Dot(centered[:len(xs)-k], centered[k:]) / denom
	}
	return out, nil
}

// Fingerprint returns a content hash of the chain: the recorded ids, every
// value's kind, rank, shape and bits, and every log-probability. Two runs with the same
// model, configuration and seed have the same fingerprint.
func (s *Samples) Fingerprint() string {
	var buf []byte
	buf = binary.LittleEndian.AppendUint64(buf, uint64(s.Size()))
	for _, id := range s.ids {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(id))
		for _, t := range s.values[id] {
			buf = append(buf, byte(t.Kind()))
			buf = binary.LittleEndian.AppendUint32(buf, uint32(t.Rank()))
			for _, d := range t.Shape() {
				buf = binary.LittleEndian.AppendUint32(buf, uint32(d))
			}
			for k := 0; k < t.Size(); k++ {
				buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(t.At(k)))
			}
		}
	}
	for _, lp := range s.logProbs {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(lp))
	}
	return hashWithDomain(DomainSamples, buf)
}

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
