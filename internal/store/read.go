package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/probgraph/internal/graph"
	"github.com/roach88/probgraph/internal/mcmc"
	"github.com/roach88/probgraph/internal/tensor"
)

// ErrNotFound is returned when a run or chain does not exist.
var ErrNotFound = errors.New("not found")

// ChainInfo summarises a persisted chain without loading its samples.
type ChainInfo struct {
	Index       int
	States      int
	Acceptance  float64
	Fingerprint string
}

// ReadRun returns the run with the given id.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	var run Run
	var seed int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, model, seed, chains, config
		FROM runs
		WHERE id = ?
	`, id).Scan(&run.ID, &run.Model, &seed, &run.Chains, &run.Config)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run: %w", err)
	}
	run.Seed = uint64(seed)
	return run, nil
}

// ListRuns returns every run in insertion order.
//
// Returns an empty slice (not nil) if the store holds no runs.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, model, seed, chains, config
		FROM runs
		ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		var seed int64
		if err := rows.Scan(&run.ID, &run.Model, &seed, &run.Chains, &run.Config); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Seed = uint64(seed)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadChains returns the chains of a run ordered by index.
func (s *Store) ReadChains(ctx context.Context, runID string) ([]ChainInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chain, states, acceptance, fingerprint
		FROM chains
		WHERE run_id = ?
		ORDER BY chain ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query chains: %w", err)
	}
	defer rows.Close()

	chains := []ChainInfo{}
	for rows.Next() {
		var c ChainInfo
		if err := rows.Scan(&c.Index, &c.States, &c.Acceptance, &c.Fingerprint); err != nil {
			return nil, fmt.Errorf("scan chain: %w", err)
		}
		chains = append(chains, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chains: %w", err)
	}
	return chains, nil
}

// ReadSamples loads one chain of a run. The rebuilt chain's fingerprint is
// checked against the one recorded at write time.
func (s *Store) ReadSamples(ctx context.Context, runID string, chain int) (*Chain, error) {
	var info ChainInfo
	err := s.db.QueryRowContext(ctx, `
		SELECT chain, states, acceptance, fingerprint
		FROM chains
		WHERE run_id = ? AND chain = ?
	`, runID, chain).Scan(&info.Index, &info.States, &info.Acceptance, &info.Fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s chain %d: %w", runID, chain, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read chain: %w", err)
	}

	values, labels, err := s.readValues(ctx, runID, chain)
	if err != nil {
		return nil, err
	}
	logProbs, err := s.readLogProbs(ctx, runID, chain)
	if err != nil {
		return nil, err
	}

	samples, err := mcmc.NewSamples(values, logProbs)
	if err != nil {
		return nil, fmt.Errorf("read samples: %w", err)
	}
	if got := samples.Fingerprint(); got != info.Fingerprint {
		return nil, fmt.Errorf("read samples: run %s chain %d: fingerprint %s, recorded %s", runID, chain, got, info.Fingerprint)
	}
	return &Chain{Index: chain, Samples: samples, Labels: labels, Acceptance: info.Acceptance}, nil
}

func (s *Store) readValues(ctx context.Context, runID string, chain int) (map[graph.ID][]tensor.Tensor, map[graph.ID]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT vertex, label, shape, data, kind
		FROM samples
		WHERE run_id = ? AND chain = ?
		ORDER BY vertex ASC, idx ASC
	`, runID, chain)
	if err != nil {
		return nil, nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	values := make(map[graph.ID][]tensor.Tensor)
	labels := make(map[graph.ID]string)
	for rows.Next() {
		var (
			vertex      int64
			label, kind string
			shape, data []byte
		)
		if err := rows.Scan(&vertex, &label, &shape, &data, &kind); err != nil {
			return nil, nil, fmt.Errorf("scan sample: %w", err)
		}
		t, err := decodeTensor(kind, shape, data)
		if err != nil {
			return nil, nil, fmt.Errorf("sample of %s: %w", label, err)
		}
		id := graph.ID(vertex)
		values[id] = append(values[id], t)
		labels[id] = label
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate samples: %w", err)
	}
	return values, labels, nil
}

func (s *Store) readLogProbs(ctx context.Context, runID string, chain int) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT log_prob
		FROM log_probs
		WHERE run_id = ? AND chain = ?
		ORDER BY idx ASC
	`, runID, chain)
	if err != nil {
		return nil, fmt.Errorf("query log probs: %w", err)
	}
	defer rows.Close()

	out := []float64{}
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("scan log prob: %w", err)
		}
		lp, err := decodeFloat(blob)
		if err != nil {
			return nil, err
		}
		out = append(out, lp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log probs: %w", err)
	}
	return out, nil
}
