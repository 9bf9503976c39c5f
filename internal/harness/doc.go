// Package harness runs sampling scenarios as executable contract tests.
//
// A scenario names a model, a run configuration and a list of assertions
// about the resulting posterior. The harness compiles the model once per
// chain, runs the chains, persists them to an in-memory store, reads them
// back and evaluates the assertions against what was read.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: gaussian_posterior
//	description: "What this scenario validates"
//	model: ../models/posterior.cue
//	run_id: run-gaussian-posterior
//	config:
//	  seed: 7
//	  samples: 6000
//	  drop: 1000
//	  chains: 2
//	  proposal: gaussian
//	assertions:
//	  - type: posterior_mean
//	    label: a
//	    expect: 1
//	    tolerance: 0.1
//	  - type: differentiable
//	    targets: [obs]
//
// The model path is relative to the scenario file. The config block takes
// the same keys as a run configuration file; missing keys keep their
// defaults.
//
// # Assertion Types
//
//   - posterior_mean: pooled sample mean of a scalar vertex within tolerance
//   - posterior_variance: pooled sample variance within tolerance
//   - probability: fraction of samples above a threshold within tolerance
//   - acceptance: every chain's acceptance rate lies in [min, max]
//   - converged: Gelman-Rubin R̂ of a scalar vertex is at most max
//   - differentiable: the targets' log-probability is (or is not) differentiable
//   - lambda_section: the labels a lambda section reaches
//   - reproducible: rerunning chain 0 yields the same fingerprint
//
// # Deterministic Testing
//
// Every random source is split from the configured seed, run ids come from
// a fixed generator and the store lives in memory. Two runs of the same
// scenario produce identical samples, which is what makes golden snapshot
// comparison possible.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/gaussian_posterior.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
