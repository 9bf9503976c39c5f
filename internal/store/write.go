package store

import (
	"context"
	"fmt"

	"github.com/roach88/probgraph/internal/graph"
	"github.com/roach88/probgraph/internal/mcmc"
)

// Run is a persisted sampling run.
type Run struct {
	ID     string
	Model  string
	Seed   uint64
	Chains int

	// Config is the run configuration as written by the caller, typically
	// the YAML it was loaded from.
	Config string
}

// Chain is one chain of a run together with the labels of its recorded
// vertices.
type Chain struct {
	Index      int
	Samples    *mcmc.Samples
	Labels     map[graph.ID]string
	Acceptance float64
}

// WriteRun inserts a run record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("write run: empty id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, model, seed, chains, config)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Model,
		int64(run.Seed),
		run.Chains,
		run.Config,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	s.logger.Debug("run written", "run_id", run.ID, "model", run.Model, "chains", run.Chains)
	return nil
}

// WriteSamples inserts one chain of a run in a single transaction: the
// chain record, every recorded value and every log-probability.
//
// Note: The run referenced by runID must exist (foreign key constraint).
// Rewriting a chain that already exists is silently ignored.
func (s *Store) WriteSamples(ctx context.Context, runID string, c Chain) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write samples: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chains (run_id, chain, states, acceptance, fingerprint)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, chain) DO NOTHING
	`, runID, c.Index, c.Samples.Size(), c.Acceptance, c.Samples.Fingerprint())
	if err != nil {
		return fmt.Errorf("write samples: chain %d: %w", c.Index, err)
	}

	sampleStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO samples (run_id, chain, vertex, label, idx, shape, data, kind)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write samples: prepare: %w", err)
	}
	defer sampleStmt.Close()

	for _, id := range c.Samples.IDs() {
		label, ok := c.Labels[id]
		if !ok {
			label = id.String()
		}
		col, _ := c.Samples.Get(id)
		for idx, t := range col {
			shape, data := encodeTensor(t)
			if _, err := sampleStmt.ExecContext(ctx, runID, c.Index, int64(id), label, idx, shape, data, t.Kind().String()); err != nil {
				return fmt.Errorf("write samples: %s[%d]: %w", label, idx, err)
			}
		}
	}

	lpStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO log_probs (run_id, chain, idx, log_prob)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write samples: prepare: %w", err)
	}
	defer lpStmt.Close()

	for idx, lp := range c.Samples.LogProbs() {
		if _, err := lpStmt.ExecContext(ctx, runID, c.Index, idx, encodeFloat(lp)); err != nil {
			return fmt.Errorf("write samples: log prob %d: %w", idx, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write samples: commit: %w", err)
	}
	s.logger.Debug("samples written", "run_id", runID, "chain", c.Index, "states", c.Samples.Size())
	return nil
}
