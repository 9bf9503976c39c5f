package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/probgraph/internal/autodiff"
	"github.com/roach88/probgraph/internal/model"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Targets []string
}

// CheckResult is the output of the check command.
type CheckResult struct {
	Model          string   `json:"model"`
	Targets        []string `json:"targets"`
	Differentiable bool     `json:"differentiable"`
	BlockedAt      string   `json:"blocked_at,omitempty"`
	Reason         string   `json:"reason,omitempty"`
}

// String renders the verdict.
func (r CheckResult) String() string {
	targets := strings.Join(r.Targets, ", ")
	if r.Differentiable {
		return fmt.Sprintf("✓ %s: log-probability of [%s] is differentiable", r.Model, targets)
	}
	return fmt.Sprintf("✗ %s: log-probability of [%s] is not differentiable\n  blocked at %s: %s", r.Model, targets, r.BlockedAt, r.Reason)
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <model>",
		Short: "Check that a model's log-probability is differentiable",
		Long: `Check whether the log-probability of the target vertices can be
differentiated with respect to every latent it depends on. Without
--target every probabilistic vertex is a target.

Exit codes:
  0 - Differentiable
  1 - Not differentiable
  2 - Command error (model not found, unknown label, etc.)

Examples:
  probgraph check model.cue
  probgraph check model.cue --target obs --target y`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Targets, "target", "t", nil, "target vertex label (repeatable)")

	return cmd
}

func runCheck(opts *CheckOptions, modelPath string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	m, err := loadModel(f, modelPath)
	if err != nil {
		return err
	}
	targets := m.Graph.ProbabilisticVertices()
	if len(opts.Targets) > 0 {
		if targets, err = vertices(f, m, opts.Targets); err != nil {
			return err
		}
	}

	result := CheckResult{Model: m.Name, Targets: model.LabelsOf(targets), Differentiable: true}
	err = autodiff.CheckDifferentiable(m.Graph, targets...)
	var nd *autodiff.NotDifferentiableError
	switch {
	case err == nil:
		return f.Success(result)
	case errors.As(err, &nd):
		result.Differentiable = false
		result.BlockedAt = nd.Name
		result.Reason = nd.Reason
		_ = f.Failure(ErrCodeNotDiffable, nd.Error(), result)
		return WrapExitError(ExitFailure, ErrCodeNotDiffable, nd)
	default:
		return commandError(f, ErrCodeGeneric, "differentiability check failed", err)
	}
}
