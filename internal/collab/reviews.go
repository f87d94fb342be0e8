package collab

import (
	"sort"
	"sync"
	"time"

	"collab-hub/internal/utils"
)

type ReviewVerdict string

const (
	VerdictApproved      ReviewVerdict = "approved"
	VerdictChangesNeeded ReviewVerdict = "changes_needed"
	VerdictDeclined      ReviewVerdict = "declined"
)

// ReviewRequest asks one agent to look over another agent's work product.
// Requests are kept in memory; the durable record of cross-agent work is the
// delegation log.
type ReviewRequest struct {
	ID          string        `json:"id"`
	From        string        `json:"from"`
	Reviewer    string        `json:"reviewer"`
	Subject     string        `json:"subject"`
	Details     string        `json:"details,omitempty"`
	Verdict     ReviewVerdict `json:"verdict,omitempty"`
	Feedback    string        `json:"feedback,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	RespondedAt *time.Time    `json:"respondedAt,omitempty"`
}

func (r *ReviewRequest) Pending() bool { return r.Verdict == "" }

type ReviewManager struct {
	mu       sync.RWMutex
	requests map[string]*ReviewRequest
}

func NewReviewManager() *ReviewManager {
	return &ReviewManager{requests: make(map[string]*ReviewRequest)}
}

func (rm *ReviewManager) Request(from, reviewer, subject, details string) (*ReviewRequest, error) {
	if err := requireLen("subject", subject, 1, 500); err != nil {
		return nil, err
	}
	if err := optionalLen("details", details, 5000); err != nil {
		return nil, err
	}
	if reviewer == "" || reviewer == from {
		return nil, &ValidationError{Field: "reviewer", Reason: "must name a different agent"}
	}

	req := &ReviewRequest{
		ID:        utils.NewID("review"),
		From:      from,
		Reviewer:  reviewer,
		Subject:   subject,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}
	rm.mu.Lock()
	rm.requests[req.ID] = req
	rm.mu.Unlock()
	return req.clone(), nil
}

// Respond records the reviewer's verdict. Only the named reviewer may
// respond, and only once.
func (rm *ReviewManager) Respond(reviewID, agentID string, verdict ReviewVerdict, feedback string) (*ReviewRequest, error) {
	switch verdict {
	case VerdictApproved, VerdictChangesNeeded, VerdictDeclined:
	default:
		return nil, &ValidationError{Field: "verdict", Reason: "must be approved, changes_needed or declined"}
	}
	if err := optionalLen("feedback", feedback, 2000); err != nil {
		return nil, err
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	req, ok := rm.requests[reviewID]
	if !ok {
		return nil, ErrReviewNotFound
	}
	if req.Reviewer != agentID {
		return nil, ErrNotModerator
	}
	if !req.Pending() {
		return nil, ErrDecisionFinalized
	}
	now := time.Now().UTC()
	req.Verdict = verdict
	req.Feedback = feedback
	req.RespondedAt = &now
	return req.clone(), nil
}

// List returns review requests, optionally filtered to one agent (as either
// requester or reviewer), newest first.
func (rm *ReviewManager) List(agentID string) []*ReviewRequest {
	rm.mu.RLock()
	result := make([]*ReviewRequest, 0, len(rm.requests))
	for _, req := range rm.requests {
		if agentID != "" && req.From != agentID && req.Reviewer != agentID {
			continue
		}
		result = append(result, req.clone())
	}
	rm.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (r *ReviewRequest) clone() *ReviewRequest {
	c := *r
	if r.RespondedAt != nil {
		t := *r.RespondedAt
		c.RespondedAt = &t
	}
	return &c
}
