package cli

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/probgraph/internal/autodiff"
	"github.com/roach88/probgraph/internal/graph"
	"github.com/roach88/probgraph/internal/random"
	"github.com/roach88/probgraph/internal/tensor"
)

// GradOptions holds flags for the grad command.
type GradOptions struct {
	*RootOptions
	Wrt  []string
	Of   []string
	Seed uint64
}

// TensorEntry is a labelled tensor in command output.
type TensorEntry struct {
	Label  string    `json:"label"`
	Shape  []int     `json:"shape"`
	Values []float64 `json:"values"`
}

// GradResult is the output of the grad command.
type GradResult struct {
	Model    string        `json:"model"`
	LogProb  float64       `json:"log_prob"`
	Point    []TensorEntry `json:"point"`
	Gradient []TensorEntry `json:"gradient"`
}

// String renders the point and the gradient side by side.
func (r GradResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: log-probability %.6f\n", r.Model, r.LogProb)
	for i, g := range r.Gradient {
		fmt.Fprintf(&b, "  d/d%s at %s = %s", g.Label, formatValues(r.Point[i].Values), formatValues(g.Values))
		if i < len(r.Gradient)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// NewGradCommand creates the grad command.
func NewGradCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GradOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "grad <model>",
		Short: "Compute the gradient of a model's log-probability",
		Long: `Evaluate the model and print the gradient of the summed log-probability
of the --of vertices (default: every probabilistic vertex) with respect to
each --wrt vertex (default: every latent). Latents without an initial value
are drawn from their priors using --seed.

Examples:
  probgraph grad model.cue
  probgraph grad model.cue --wrt x --of obs
  probgraph grad model.cue --seed 7 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGrad(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Wrt, "wrt", nil, "differentiate with respect to this label (repeatable)")
	cmd.Flags().StringSliceVar(&opts.Of, "of", nil, "include this probabilistic vertex's log-probability (repeatable)")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 1, "seed for initial draws")

	return cmd
}

func runGrad(opts *GradOptions, modelPath string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	m, err := loadModel(f, modelPath, graph.WithRandom(random.New(opts.Seed)))
	if err != nil {
		return err
	}
	wrt := m.Graph.Latents()
	if len(opts.Wrt) > 0 {
		if wrt, err = vertices(f, m, opts.Wrt); err != nil {
			return err
		}
	}
	of := m.Graph.ProbabilisticVertices()
	if len(opts.Of) > 0 {
		if of, err = vertices(f, m, opts.Of); err != nil {
			return err
		}
	}

	if err := m.Graph.LazyEval(m.Graph.Vertices()...); err != nil {
		return commandError(f, ErrCodeGradient, "failed to evaluate model", err)
	}
	lp, err := m.Graph.LogProbOf(graph.IDs(of))
	if err != nil {
		return commandError(f, ErrCodeGradient, "failed to compute log-probability", err)
	}
	if math.IsInf(lp, -1) || math.IsNaN(lp) {
		return commandError(f, ErrCodeGradient, fmt.Sprintf("log-probability is %v at the evaluated point", lp), nil)
	}

	if err := autodiff.CheckDifferentiable(m.Graph, of...); err != nil {
		return commandError(f, ErrCodeNotDiffable, "log-probability is not differentiable", err)
	}
	partials, err := autodiff.LogProbGradient(m.Graph, of, wrt)
	if err != nil {
		return commandError(f, ErrCodeGradient, "failed to compute gradient", err)
	}

	result := GradResult{Model: m.Name, LogProb: lp}
	for _, v := range wrt {
		d, _ := partials.Get(v.ID())
		result.Point = append(result.Point, entry(v.Name(), v.Value()))
		result.Gradient = append(result.Gradient, entry(v.Name(), d))
	}
	return f.Success(result)
}

func entry(label string, t tensor.Tensor) TensorEntry {
	return TensorEntry{Label: label, Shape: append([]int{}, t.Shape()...), Values: t.Data()}
}
