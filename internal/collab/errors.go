package collab

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound  = errors.New("collaborative session not found")
	ErrDecisionNotFound = errors.New("decision not found")
	ErrPollNotFound     = errors.New("poll not found")
	ErrReviewNotFound   = errors.New("review request not found")

	// ErrNotMember rejects actions from agents outside a session's fixed
	// member set.
	ErrNotMember = errors.New("agent is not a member of this session")

	// ErrNotModerator rejects finalize/intervene calls from anyone but the
	// session moderator.
	ErrNotModerator = errors.New("only the session moderator may perform this action")

	// ErrDecisionFinalized rejects mutations of a thread whose consensus is
	// already set; consensus is write-once.
	ErrDecisionFinalized = errors.New("decision already finalized")
)

// ValidationError reports malformed or out-of-range input, rejected before
// any state mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InsufficientDeliberationError rejects a finalize attempt before the debate
// reached the configured minimum number of rounds.
type InsufficientDeliberationError struct {
	Rounds    int
	MinRounds int
}

func (e *InsufficientDeliberationError) Error() string {
	return fmt.Sprintf("not enough deliberation: %d of %d minimum rounds", e.Rounds, e.MinRounds)
}
