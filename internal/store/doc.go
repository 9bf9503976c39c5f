// Package store provides SQLite-backed durable storage for sampling runs.
//
// A run is written once and never updated:
//   - Runs: model name, seed, chain count and the run configuration
//   - Chains: per-chain acceptance rate and sample fingerprint
//   - Samples: one row per recorded vertex per kept state
//   - Log probs: one row per kept state
//
// # Exact round trip
//
// Tensor values are stored as little-endian float64 blobs and shapes as
// little-endian uint32 blobs, never as text or REAL columns. A chain read
// back from the store has the same fingerprint as the chain that was
// written; ReadSamples verifies this.
//
// # Idempotency
//
// Every insert uses ON CONFLICT DO NOTHING, so rewriting a chain is a
// no-op rather than an error.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
