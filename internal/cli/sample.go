package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/probgraph/internal/config"
	"github.com/roach88/probgraph/internal/graph"
	"github.com/roach88/probgraph/internal/mcmc"
	"github.com/roach88/probgraph/internal/model"
	"github.com/roach88/probgraph/internal/store"
)

// SampleOptions holds flags for the sample command.
type SampleOptions struct {
	*RootOptions
	Config string // run configuration file
	DB     string // database to persist the run into
	Seed   uint64 // overrides the configured seed when set
}

// ChainSummary describes one finished chain.
type ChainSummary struct {
	Index       int     `json:"index"`
	States      int     `json:"states"`
	Acceptance  float64 `json:"acceptance"`
	Fingerprint string  `json:"fingerprint"`
}

// VertexSummary holds the posterior estimate of one recorded vertex, averaged
// across chains.
type VertexSummary struct {
	Label    string    `json:"label"`
	Shape    []int     `json:"shape"`
	Mean     []float64 `json:"mean"`
	Variance []float64 `json:"variance"`

	// RHat is the Gelman-Rubin statistic of a scalar vertex sampled by
	// more than one chain.
	RHat *float64 `json:"r_hat,omitempty"`
}

// SampleResult is the output of the sample command.
type SampleResult struct {
	Model    string             `json:"model"`
	RunID    string             `json:"run_id,omitempty"`
	Chains   []ChainSummary     `json:"chains"`
	Vertices []VertexSummary    `json:"vertices"`
	Steps    map[string]float64 `json:"steps"`
}

// String renders the result as aligned tables.
func (r SampleResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Model %s: %d chain(s)", r.Model, len(r.Chains))
	if r.RunID != "" {
		fmt.Fprintf(&b, ", run %s", r.RunID)
	}
	b.WriteString("\n\n")

	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CHAIN\tSTATES\tACCEPTANCE\tFINGERPRINT")
	for _, c := range r.Chains {
		fmt.Fprintf(w, "%d\t%d\t%.4f\t%s\n", c.Index, c.States, c.Acceptance, c.Fingerprint[:12])
	}
	w.Flush()
	b.WriteString("\n")

	w = tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERTEX\tMEAN\tVARIANCE\tR-HAT")
	for _, v := range r.Vertices {
		rhat := "-"
		if v.RHat != nil {
			rhat = fmt.Sprintf("%.4f", *v.RHat)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.Label, formatValues(v.Mean), formatValues(v.Variance), rhat)
	}
	w.Flush()

	fmt.Fprintf(&b, "\nsteps: accepted=%.0f rejected=%.0f impossible=%.0f",
		r.Steps[mcmc.OutcomeAccepted], r.Steps[mcmc.OutcomeRejected], r.Steps[mcmc.OutcomeImpossible])
	return b.String()
}

// NewSampleCommand creates the sample command.
func NewSampleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SampleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sample <model>",
		Short: "Sample a model's posterior",
		Long: `Run Metropolis-Hastings chains over a CUE model and print the
posterior mean and variance of every recorded vertex.

Chains run concurrently; chain i is seeded from the configured seed split
at index i, so a run is reproducible from its configuration alone.

Examples:
  probgraph sample model.cue
  probgraph sample model.cue --config run.yaml
  probgraph sample model.cue --config run.yaml --db runs.db
  probgraph sample model.cue --seed 42 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSample(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "run configuration (YAML)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "SQLite database to persist the run into")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "override the configured seed")

	return cmd
}

func runSample(ctx context.Context, opts *SampleOptions, modelPath string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f := opts.formatter(cmd)
	logger := opts.Logger(cmd.ErrOrStderr())

	cfg, err := loadConfig(f, opts.Config)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = opts.Seed
	}

	// Compile once up front so model errors are reported before any chain
	// starts.
	m, err := loadModel(f, modelPath)
	if err != nil {
		return err
	}
	if _, err := cfg.SamplerOptions(m); err != nil {
		return commandError(f, ErrCodeUnknownLabel, "invalid run configuration", err)
	}
	if _, err := cfg.Recorded(m); err != nil {
		return commandError(f, ErrCodeUnknownLabel, "invalid run configuration", err)
	}

	reg := prometheus.NewRegistry()
	run := &chainRun{
		path:    modelPath,
		cfg:     cfg,
		metrics: mcmc.NewMetrics(reg),
		logger:  logger,
	}
	chains, err := run.sample(ctx)
	if err != nil {
		return commandError(f, ErrCodeSampling, "sampling failed", err)
	}

	result, err := run.summarize(ctx, chains)
	if err != nil {
		return commandError(f, ErrCodeSampling, "failed to summarize samples", err)
	}
	result.Steps, err = stepCounts(reg)
	if err != nil {
		return commandError(f, ErrCodeGeneric, "failed to gather metrics", err)
	}

	if opts.DB != "" {
		runID, err := run.persist(ctx, opts.DB, chains)
		if err != nil {
			return commandError(f, ErrCodeStore, "failed to persist run", err)
		}
		result.RunID = runID
		f.VerboseLog("Stored run %s in %s", runID, opts.DB)
	}

	return f.Success(result)
}

// chainRun runs and summarizes the chains of one sample invocation.
type chainRun struct {
	path    string
	cfg     config.RunConfig
	metrics *mcmc.Metrics
	logger  *slog.Logger

	// models and samplers are indexed by chain; each chain goroutine
	// writes only its own slot.
	models   []*model.Model
	samplers []*mcmc.Sampler
}

func (r *chainRun) sample(ctx context.Context) ([]*mcmc.Samples, error) {
	r.models = make([]*model.Model, r.cfg.Chains)
	r.samplers = make([]*mcmc.Sampler, r.cfg.Chains)

	factory := func(chain int) (*mcmc.Sampler, []*graph.Vertex, error) {
		m, err := model.Load(r.path, r.cfg.GraphOptions(chain)...)
		if err != nil {
			return nil, nil, err
		}
		opts, err := r.cfg.SamplerOptions(m)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, mcmc.WithMetrics(r.metrics), mcmc.WithLogger(r.logger.With("chain", chain)))
		s, err := mcmc.New(m.Graph, opts...)
		if err != nil {
			return nil, nil, err
		}
		record, err := r.cfg.Recorded(m)
		if err != nil {
			return nil, nil, err
		}
		r.models[chain] = m
		r.samplers[chain] = s
		return s, record, nil
	}
	return mcmc.RunChains(ctx, r.cfg.Chains, factory, r.cfg.Generate())
}

// labels maps every recorded vertex to its label.
func (r *chainRun) labels(chains []*mcmc.Samples) map[graph.ID]string {
	out := make(map[graph.ID]string)
	for _, id := range chains[0].IDs() {
		if v, ok := r.models[0].Graph.Vertex(id); ok {
			out[id] = v.Name()
		}
	}
	return out
}

func (r *chainRun) summarize(ctx context.Context, chains []*mcmc.Samples) (SampleResult, error) {
	result := SampleResult{
		Model:    r.models[0].Name,
		Chains:   make([]ChainSummary, len(chains)),
		Vertices: []VertexSummary{},
	}
	perChain := make([][]mcmc.Summary, len(chains))
	for i, c := range chains {
		result.Chains[i] = ChainSummary{
			Index:       i,
			States:      c.Size(),
			Acceptance:  r.samplers[i].AcceptanceRate(),
			Fingerprint: c.Fingerprint(),
		}
		s, err := mcmc.Summarize(ctx, c)
		if err != nil {
			return SampleResult{}, fmt.Errorf("chain %d: %w", i, err)
		}
		perChain[i] = s
	}

	labels := r.labels(chains)
	for k, first := range perChain[0] {
		vs := VertexSummary{
			Label:    labels[first.ID],
			Shape:    append([]int{}, first.Mean.Shape()...),
			Mean:     make([]float64, first.Mean.Size()),
			Variance: make([]float64, first.Variance.Size()),
		}
		for _, s := range perChain {
			for j := range vs.Mean {
				vs.Mean[j] += s[k].Mean.At(j) / float64(len(perChain))
				vs.Variance[j] += s[k].Variance.At(j) / float64(len(perChain))
			}
		}
		if len(chains) > 1 && first.Mean.Size() == 1 {
			if rhat, err := mcmc.GelmanRubin(chains, first.ID); err == nil {
				vs.RHat = &rhat
			}
		}
		result.Vertices = append(result.Vertices, vs)
	}
	return result, nil
}

// persist writes the run to the database at path and returns its id.
func (r *chainRun) persist(ctx context.Context, path string, chains []*mcmc.Samples) (string, error) {
	st, err := store.Open(path, store.WithLogger(r.logger))
	if err != nil {
		return "", err
	}
	defer st.Close()

	text, err := yaml.Marshal(r.cfg)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	runID := store.UUIDv7Generator{}.Generate()
	if err := st.WriteRun(ctx, store.Run{
		ID:     runID,
		Model:  r.models[0].Name,
		Seed:   r.cfg.Seed,
		Chains: len(chains),
		Config: string(text),
	}); err != nil {
		return "", err
	}

	labels := r.labels(chains)
	for i, c := range chains {
		err := st.WriteSamples(ctx, runID, store.Chain{
			Index:      i,
			Samples:    c,
			Labels:     labels,
			Acceptance: r.samplers[i].AcceptanceRate(),
		})
		if err != nil {
			return "", err
		}
	}
	return runID, nil
}

// stepCounts reads the step counter back from the registry, keyed by
// outcome.
func stepCounts(reg *prometheus.Registry) (map[string]float64, error) {
	families, err := reg.Gather()
	if err != nil {
		return nil, err
	}
	out := map[string]float64{
		mcmc.OutcomeAccepted:   0,
		mcmc.OutcomeRejected:   0,
		mcmc.OutcomeImpossible: 0,
	}
	for _, mf := range families {
		if mf.GetName() != "probgraph_mcmc_steps_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" {
					out[l.GetValue()] = m.GetCounter().GetValue()
				}
			}
		}
	}
	return out, nil
}

// formatValues prints a scalar as a number and a tensor as a bracketed
// list.
func formatValues(xs []float64) string {
	if len(xs) == 1 {
		return fmt.Sprintf("%.4f", xs[0])
	}
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprintf("%.4f", x)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
