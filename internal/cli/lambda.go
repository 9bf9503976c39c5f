package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/probgraph/internal/graph"
	"github.com/roach88/probgraph/internal/model"
)

// LambdaOptions holds flags for the lambda command.
type LambdaOptions struct {
	*RootOptions
	Upstream   bool
	NoBoundary bool
}

// LambdaResult is the output of the lambda command.
type LambdaResult struct {
	Model         string   `json:"model"`
	Origin        []string `json:"origin"`
	Direction     string   `json:"direction"`
	Vertices      []string `json:"vertices"`
	Boundary      []string `json:"boundary"`
	Probabilistic []string `json:"probabilistic"`
}

// String renders the section one list per line.
func (r LambdaResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s lambda section of [%s] in %s\n", r.Direction, strings.Join(r.Origin, ", "), r.Model)
	fmt.Fprintf(&b, "  vertices:      [%s]\n", strings.Join(r.Vertices, ", "))
	fmt.Fprintf(&b, "  boundary:      [%s]\n", strings.Join(r.Boundary, ", "))
	fmt.Fprintf(&b, "  probabilistic: [%s]", strings.Join(r.Probabilistic, ", "))
	return b.String()
}

// NewLambdaCommand creates the lambda command.
func NewLambdaCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LambdaOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "lambda <model> <label>...",
		Short: "Print the lambda section of a set of vertices",
		Long: `Print the part of the graph reachable from the given vertices without
passing through a probabilistic vertex. The walk follows children unless
--upstream is set. Probabilistic vertices where the walk stops form the
boundary, which is listed among the vertices unless --no-boundary is set.

Examples:
  probgraph lambda model.cue x
  probgraph lambda model.cue obs --upstream
  probgraph lambda model.cue x y --no-boundary --format json`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLambda(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Upstream, "upstream", false, "walk parents instead of children")
	cmd.Flags().BoolVar(&opts.NoBoundary, "no-boundary", false, "leave boundary vertices out of the section")

	return cmd
}

func runLambda(opts *LambdaOptions, modelPath string, labels []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	m, err := loadModel(f, modelPath)
	if err != nil {
		return err
	}
	origin, err := vertices(f, m, labels)
	if err != nil {
		return err
	}

	direction := "downstream"
	walk := m.Graph.DownstreamLambdaSection
	if opts.Upstream {
		direction = "upstream"
		walk = m.Graph.UpstreamLambdaSection
	}
	sec, err := walk(origin, !opts.NoBoundary)
	if err != nil {
		return commandError(f, ErrCodeGeneric, "failed to compute lambda section", err)
	}

	result := LambdaResult{Model: m.Name, Origin: model.LabelsOf(origin), Direction: direction}
	for _, part := range []struct {
		ids []graph.ID
		out *[]string
	}{
		{sec.Vertices(), &result.Vertices},
		{sec.Boundary(), &result.Boundary},
		{sec.Probabilistic(), &result.Probabilistic},
	} {
		vs, err := m.Graph.Resolve(part.ids)
		if err != nil {
			return commandError(f, ErrCodeGeneric, "failed to resolve section", err)
		}
		*part.out = model.LabelsOf(vs)
	}
	return f.Success(result)
}
