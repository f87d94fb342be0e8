package collab

import (
	"sync"
	"time"

	"collab-hub/internal/utils"
)

// Poll is a lightweight question put to a set of agents, outside any
// deliberation session. Polls are ephemeral and kept in memory only.
type Poll struct {
	ID        string            `json:"id"`
	Question  string            `json:"question"`
	Options   []string          `json:"options"`
	CreatedBy string            `json:"createdBy"`
	Votes     map[string]string `json:"votes"`
	Open      bool              `json:"open"`
	CreatedAt time.Time         `json:"createdAt"`
	ClosedAt  *time.Time        `json:"closedAt,omitempty"`
}

type PollManager struct {
	mu    sync.RWMutex
	polls map[string]*Poll
}

func NewPollManager() *PollManager {
	return &PollManager{polls: make(map[string]*Poll)}
}

func (pm *PollManager) Create(question, createdBy string, options []string) (*Poll, error) {
	if err := requireLen("question", question, 1, 500); err != nil {
		return nil, err
	}
	if len(options) < 2 || len(options) > 10 {
		return nil, &ValidationError{Field: "options", Reason: "between 2 and 10 options required"}
	}
	for _, opt := range options {
		if err := requireLen("options", opt, 1, 200); err != nil {
			return nil, err
		}
	}

	poll := &Poll{
		ID:        utils.NewID("poll"),
		Question:  question,
		Options:   append([]string(nil), options...),
		CreatedBy: createdBy,
		Votes:     map[string]string{},
		Open:      true,
		CreatedAt: time.Now().UTC(),
	}
	pm.mu.Lock()
	pm.polls[poll.ID] = poll
	pm.mu.Unlock()
	return poll.clone(), nil
}

// Vote records the agent's pick. Re-voting replaces the previous pick.
func (pm *PollManager) Vote(pollID, agentID, option string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	poll, ok := pm.polls[pollID]
	if !ok {
		return ErrPollNotFound
	}
	if !poll.Open {
		return ErrDecisionFinalized
	}
	valid := false
	for _, opt := range poll.Options {
		if opt == option {
			valid = true
			break
		}
	}
	if !valid {
		return &ValidationError{Field: "option", Reason: "not one of the poll's options"}
	}
	poll.Votes[agentID] = option
	return nil
}

// Close ends the poll and returns it with the final tally. Only the creator
// may close a poll; closing twice is a conflict.
func (pm *PollManager) Close(pollID, agentID string) (*Poll, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	poll, ok := pm.polls[pollID]
	if !ok {
		return nil, ErrPollNotFound
	}
	if poll.CreatedBy != agentID {
		return nil, ErrNotModerator
	}
	if !poll.Open {
		return nil, ErrDecisionFinalized
	}
	now := time.Now().UTC()
	poll.Open = false
	poll.ClosedAt = &now
	return poll.clone(), nil
}

func (pm *PollManager) Get(pollID string) (*Poll, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	poll, ok := pm.polls[pollID]
	if !ok {
		return nil, ErrPollNotFound
	}
	return poll.clone(), nil
}

// Tally counts votes per option, including zero counts for unpicked options.
func (p *Poll) Tally() map[string]int {
	tally := make(map[string]int, len(p.Options))
	for _, opt := range p.Options {
		tally[opt] = 0
	}
	for _, opt := range p.Votes {
		tally[opt]++
	}
	return tally
}

func (p *Poll) clone() *Poll {
	c := *p
	c.Options = append([]string(nil), p.Options...)
	c.Votes = make(map[string]string, len(p.Votes))
	for k, v := range p.Votes {
		c.Votes[k] = v
	}
	if p.ClosedAt != nil {
		t := *p.ClosedAt
		c.ClosedAt = &t
	}
	return &c
}
