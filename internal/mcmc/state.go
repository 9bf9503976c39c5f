package mcmc

import "fmt"

// State is the position of a sampler in its step cycle.
type State int

const (
	StateInitial State = iota
	StateProposalGenerated
	StateApplied
	StateEvaluated
	StateAccepted
	StateRejected
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "INITIAL"
	case StateProposalGenerated:
		return "PROPOSAL_GENERATED"
	case StateApplied:
		return "APPLIED"
	case StateEvaluated:
		return "EVALUATED"
	case StateAccepted:
		return "ACCEPTED"
	case StateRejected:
		return "REJECTED"
	case StateTerminal:
		return "TERMINAL"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// IsTerminal reports whether no further step can run.
func (s State) IsTerminal() bool { return s == StateTerminal }

// TransitionError reports a step taken out of order. It signals a bug in a
// strategy or a sampler used after Finish, never a sampling outcome.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("disallowed sampler transition %s -> %s", e.From, e.To)
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case StateInitial, StateAccepted, StateRejected:
		return to == StateProposalGenerated || to == StateTerminal
	case StateProposalGenerated:
		return to == StateApplied
	case StateApplied:
		return to == StateEvaluated
	case StateEvaluated:
		return to == StateAccepted || to == StateRejected
	default:
		return false
	}
}
