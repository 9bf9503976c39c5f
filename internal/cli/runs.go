package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/probgraph/internal/graph"
	"github.com/roach88/probgraph/internal/store"
)

// StoreOptions holds flags for commands that read a database.
type StoreOptions struct {
	*RootOptions
	DB string
}

// RunsResult is the output of the runs command.
type RunsResult struct {
	Runs []RunSummary `json:"runs"`
}

// RunSummary describes one stored run.
type RunSummary struct {
	ID     string `json:"id"`
	Model  string `json:"model"`
	Seed   uint64 `json:"seed"`
	Chains int    `json:"chains"`
}

// String renders the runs as a table.
func (r RunsResult) String() string {
	if len(r.Runs) == 0 {
		return "No runs found."
	}
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tMODEL\tSEED\tCHAINS")
	for _, run := range r.Runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", run.ID, run.Model, run.Seed, run.Chains)
	}
	w.Flush()
	return strings.TrimSuffix(b.String(), "\n")
}

// ShowResult is the output of the show command.
type ShowResult struct {
	RunSummary
	Config   string          `json:"config"`
	Chains   []ChainSummary  `json:"chains"`
	Vertices []VertexSummary `json:"vertices"`
}

// String renders the run, its chains and chain 0's estimates.
func (r ShowResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s: model %s, seed %d, %d chain(s)\n\n", r.ID, r.Model, r.Seed, len(r.Chains))

	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CHAIN\tSTATES\tACCEPTANCE\tFINGERPRINT")
	for _, c := range r.Chains {
		fmt.Fprintf(w, "%d\t%d\t%.4f\t%s\n", c.Index, c.States, c.Acceptance, c.Fingerprint)
	}
	w.Flush()

	if len(r.Vertices) > 0 {
		b.WriteString("\n")
		w = tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VERTEX\tMEAN\tVARIANCE")
		for _, v := range r.Vertices {
			fmt.Fprintf(w, "%s\t%s\t%s\n", v.Label, formatValues(v.Mean), formatValues(v.Variance))
		}
		w.Flush()
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored sampling runs",
		Long: `List the runs stored in a database by "probgraph sample --db", oldest
first.

Examples:
  probgraph runs --db runs.db
  probgraph runs --db runs.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a stored sampling run",
		Long: `Show a stored run: its configuration, every chain, and the posterior
estimates of chain 0. Every chain read back is checked against the
fingerprint recorded when it was written.

Examples:
  probgraph show --db runs.db 01890a5d-ac96-774b-bcce-b302099a8057`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

// openStore opens an existing database. A missing file is an error rather
// than an empty database.
func openStore(f *OutputFormatter, opts *StoreOptions, cmd *cobra.Command) (*store.Store, error) {
	if _, err := os.Stat(opts.DB); os.IsNotExist(err) {
		return nil, commandError(f, ErrCodeNotFound, "database not found: "+opts.DB, nil)
	}
	st, err := store.Open(opts.DB, store.WithLogger(opts.Logger(cmd.ErrOrStderr())))
	if err != nil {
		return nil, commandError(f, ErrCodeStore, "failed to open database", err)
	}
	return st, nil
}

func runRuns(ctx context.Context, opts *StoreOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f := opts.formatter(cmd)
	st, err := openStore(f, opts, cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(ctx)
	if err != nil {
		return commandError(f, ErrCodeStore, "failed to list runs", err)
	}
	result := RunsResult{Runs: make([]RunSummary, len(runs))}
	for i, run := range runs {
		result.Runs[i] = summarizeRun(run)
	}
	return f.Success(result)
}

func runShow(ctx context.Context, opts *StoreOptions, runID string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f := opts.formatter(cmd)
	st, err := openStore(f, opts, cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.ReadRun(ctx, runID)
	if errors.Is(err, store.ErrNotFound) {
		return commandError(f, ErrCodeNotFound, "run not found: "+runID, nil)
	}
	if err != nil {
		return commandError(f, ErrCodeStore, "failed to read run", err)
	}
	infos, err := st.ReadChains(ctx, runID)
	if err != nil {
		return commandError(f, ErrCodeStore, "failed to read chains", err)
	}

	result := ShowResult{
		RunSummary: summarizeRun(run),
		Config:     run.Config,
		Chains:     make([]ChainSummary, len(infos)),
		Vertices:   []VertexSummary{},
	}
	for i, info := range infos {
		c, err := st.ReadSamples(ctx, runID, info.Index)
		if err != nil {
			return commandError(f, ErrCodeStore, fmt.Sprintf("failed to read chain %d", info.Index), err)
		}
		result.Chains[i] = ChainSummary{
			Index:       info.Index,
			States:      info.States,
			Acceptance:  info.Acceptance,
			Fingerprint: info.Fingerprint,
		}
		if i == 0 {
			if result.Vertices, err = estimates(c); err != nil {
				return commandError(f, ErrCodeStore, "failed to summarize chain 0", err)
			}
		}
	}
	return f.Success(result)
}

func summarizeRun(run store.Run) RunSummary {
	return RunSummary{ID: run.ID, Model: run.Model, Seed: run.Seed, Chains: run.Chains}
}

// estimates summarizes one stored chain.
func estimates(c *store.Chain) ([]VertexSummary, error) {
	out := []VertexSummary{}
	for _, id := range c.Samples.IDs() {
		mean, err := c.Samples.Mean(id)
		if err != nil {
			return nil, err
		}
		variance, err := c.Samples.Variance(id)
		if err != nil {
			return nil, err
		}
		out = append(out, VertexSummary{
			Label:    label(c.Labels, id),
			Shape:    append([]int{}, mean.Shape()...),
			Mean:     mean.Data(),
			Variance: variance.Data(),
		})
	}
	return out, nil
}

func label(labels map[graph.ID]string, id graph.ID) string {
	if l, ok := labels[id]; ok {
		return l
	}
	return id.String()
}
