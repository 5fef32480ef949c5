package authclient

import "net/http"

// Phase is where a logical request is in the reissue protocol. Each
// attempt computes the next phase from the previous one; nothing on the
// request itself is mutated.
type Phase int

const (
	// PhaseInitial is the first dispatch.
	PhaseInitial Phase = iota
	// PhaseReissuing means the first dispatch got an eligible 401.
	PhaseReissuing
	// PhaseRetried is the single re-dispatch after a successful reissue.
	PhaseRetried
	// PhaseTerminal means the last response is final.
	PhaseTerminal
)

func (p Phase) String() string {
	switch p {
	case PhaseInitial:
		return "initial"
	case PhaseReissuing:
		return "reissuing"
	case PhaseRetried:
		return "retried"
	case PhaseTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// NextPhase decides what follows a response with the given status. Only
// a 401 to a non-public request on its first dispatch leads to a reissue.
func NextPhase(phase Phase, public bool, status int) Phase {
	if phase == PhaseInitial && !public && status == http.StatusUnauthorized {
		return PhaseReissuing
	}
	return PhaseTerminal
}
