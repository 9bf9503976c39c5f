package harness

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/roach88/probgraph/internal/autodiff"
	"github.com/roach88/probgraph/internal/graph"
	"github.com/roach88/probgraph/internal/mcmc"
	"github.com/roach88/probgraph/internal/model"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Label    string
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Label != "" {
		fmt.Fprintf(&buf, " (%s)", e.Label)
	}
	fmt.Fprintf(&buf, "\n  Expected: %s\n  Actual: %s", e.Expected, e.Actual)
	return buf.String()
}

// evaluate checks one assertion against the finished run.
func (h *Harness) evaluate(a Assertion) error {
	switch a.Type {
	case AssertPosteriorMean:
		return h.assertEstimate(a, func(xs []float64) float64 { m, _ := meanVariance(xs); return m })
	case AssertPosteriorVariance:
		return h.assertEstimate(a, func(xs []float64) float64 { _, v := meanVariance(xs); return v })
	case AssertProbability:
		return h.assertProbability(a)
	case AssertAcceptance:
		return h.assertAcceptance(a)
	case AssertConverged:
		return h.assertConverged(a)
	case AssertDifferentiable:
		return h.assertDifferentiable(a)
	case AssertLambdaSection:
		return h.assertLambdaSection(a)
	case AssertReproducible:
		return h.assertReproducible(a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// recorded resolves label to a vertex that every chain recorded.
func (h *Harness) recorded(label string) (graph.ID, error) {
	v, err := h.models[0].Vertex(label)
	if err != nil {
		return 0, err
	}
	if !slices.Contains(h.chains[0].IDs(), v.ID()) {
		return 0, fmt.Errorf("vertex %s was not recorded", label)
	}
	return v.ID(), nil
}

func (h *Harness) assertEstimate(a Assertion, estimate func([]float64) float64) error {
	id, err := h.recorded(a.Label)
	if err != nil {
		return err
	}
	xs, err := h.pooled(id)
	if err != nil {
		return err
	}
	return within(a, estimate(xs))
}

func (h *Harness) assertProbability(a Assertion) error {
	id, err := h.recorded(a.Label)
	if err != nil {
		return err
	}
	var hits, total float64
	for _, c := range h.chains {
		p := c.Probability(func(st mcmc.NetworkState) bool {
			v, _ := st.Get(id)
			return v.Value() > a.Above
		})
		hits += p * float64(c.Size())
		total += float64(c.Size())
	}
	return within(a, hits/total)
}

func (h *Harness) assertAcceptance(a Assertion) error {
	for i, s := range h.samplers {
		rate := s.AcceptanceRate()
		if (a.Min != nil && rate < *a.Min) || (a.Max != nil && rate > *a.Max) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("acceptance rate in %s", interval(a.Min, a.Max)),
				Actual:   fmt.Sprintf("chain %d accepted %.4f", i, rate),
			}
		}
	}
	return nil
}

func (h *Harness) assertConverged(a Assertion) error {
	id, err := h.recorded(a.Label)
	if err != nil {
		return err
	}
	rhat, err := mcmc.GelmanRubin(h.chains, id)
	if err != nil {
		return err
	}
	if rhat > *a.Max {
		return &AssertionError{
			Type:     a.Type,
			Label:    a.Label,
			Expected: fmt.Sprintf("R-hat <= %g", *a.Max),
			Actual:   fmt.Sprintf("R-hat = %.4f", rhat),
		}
	}
	return nil
}

func (h *Harness) assertDifferentiable(a Assertion) error {
	targets, err := h.models[0].Vertices(a.Targets...)
	if err != nil {
		return err
	}
	want := a.Differentiable == nil || *a.Differentiable
	got := autodiff.CheckDifferentiable(h.models[0].Graph, targets...)
	if (got == nil) == want {
		return nil
	}
	actual := "differentiable"
	if got != nil {
		actual = got.Error()
	}
	return &AssertionError{
		Type:     a.Type,
		Label:    strings.Join(a.Targets, ","),
		Expected: fmt.Sprintf("differentiable = %t", want),
		Actual:   actual,
	}
}

func (h *Harness) assertLambdaSection(a Assertion) error {
	m := h.models[0]
	origin, err := m.Vertices(a.Origin...)
	if err != nil {
		return err
	}
	var sec graph.LambdaSection
	if a.Direction == DirectionUpstream {
		sec, err = m.Graph.UpstreamLambdaSection(origin, a.Boundary)
	} else {
		sec, err = m.Graph.DownstreamLambdaSection(origin, a.Boundary)
	}
	if err != nil {
		return err
	}

	got, err := labelsOf(m, sec.Vertices())
	if err != nil {
		return err
	}
	want := slices.Clone(a.Labels)
	slices.Sort(got)
	slices.Sort(want)
	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     a.Type,
			Label:    strings.Join(a.Origin, ","),
			Expected: fmt.Sprintf("%s section reaches %v", a.Direction, want),
			Actual:   fmt.Sprintf("reaches %v", got),
		}
	}
	return nil
}

func (h *Harness) assertReproducible(a Assertion) error {
	again, err := h.rerun()
	if err != nil {
		return err
	}
	want, got := h.chains[0].Fingerprint(), again.Fingerprint()
	if want != got {
		return &AssertionError{
			Type:     a.Type,
			Expected: "fingerprint " + want,
			Actual:   "fingerprint " + got,
		}
	}
	return nil
}

// within checks |got - Expect| <= Tolerance.
func within(a Assertion, got float64) error {
	if math.Abs(got-*a.Expect) <= a.Tolerance {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Label:    a.Label,
		Expected: fmt.Sprintf("%g ± %g", *a.Expect, a.Tolerance),
		Actual:   fmt.Sprintf("%.4f", got),
	}
}

// meanVariance returns the sample mean and unbiased variance of xs. The
// variance of fewer than two samples is reported as zero.
func meanVariance(xs []float64) (mean, variance float64) {
	if len(xs) < 2 {
		return stat.Mean(xs, nil), 0
	}
	return stat.MeanVariance(xs, nil)
}

func interval(lo, hi *float64) string {
	l, u := "-inf", "+inf"
	if lo != nil {
		l = fmt.Sprintf("%g", *lo)
	}
	if hi != nil {
		u = fmt.Sprintf("%g", *hi)
	}
	return "[" + l + ", " + u + "]"
}

func labelsOf(m *model.Model, ids []graph.ID) ([]string, error) {
	vs, err := m.Graph.Resolve(ids)
	if err != nil {
		return nil, err
	}
	return model.LabelsOf(vs), nil
}
