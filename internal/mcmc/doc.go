// Package mcmc implements a Metropolis-Hastings sampler over a
// probabilistic graph.
//
// A step moves through a fixed sequence of states:
//
//	Initial → (ProposalGenerated → Applied → Evaluated → Accepted|Rejected)* → Terminal
//
// Each transition is delegated to a pluggable strategy:
//
//   - a VariableSelector picks which latents to change,
//   - a ProposalDistribution draws their new values,
//   - an ApplicationStrategy pushes the values through the graph,
//   - a LogProbCalculator measures the log-probability before and after,
//   - a RejectionStrategy restores the graph when the step is rejected.
//
// The default strategies only touch the downstream lambda sections of the
// chosen latents. A change to one latent can alter nothing outside its
// section, so both the cascade and the log-probability delta are local.
//
// CRITICAL: a Sampler owns its graph while it runs. Nothing else may read
// or write vertex values between steps. Run independent chains on
// independent graphs (see RunChains).
package mcmc
