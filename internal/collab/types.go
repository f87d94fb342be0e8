// Package collab implements the collaborative session and decision state
// machine: structured debates with proposals, challenges, votes and a
// moderator-gated consensus.
package collab

import "time"

type SessionStatus string

const (
	StatusPlanning SessionStatus = "planning"
	StatusDebating SessionStatus = "debating"
	StatusDecided  SessionStatus = "decided"
	StatusArchived SessionStatus = "archived"
)

type MessageType string

const (
	MessageProposal      MessageType = "proposal"
	MessageChallenge     MessageType = "challenge"
	MessageClarification MessageType = "clarification"
	MessageAgreement     MessageType = "agreement"
	MessageDecision      MessageType = "decision"
)

// Message is one entry in a session's chronological log.
type Message struct {
	From               string      `json:"from"`
	Type               MessageType `json:"type"`
	Content            string      `json:"content"`
	ReferencesDecision string      `json:"referencesDecision,omitempty"`
	Timestamp          time.Time   `json:"timestamp"`
}

type Proposal struct {
	From      string    `json:"from"`
	Proposal  string    `json:"proposal"`
	Reasoning string    `json:"reasoning"`
	Timestamp time.Time `json:"timestamp"`
}

type Challenge struct {
	From                 string    `json:"from"`
	Challenge            string    `json:"challenge"`
	SuggestedAlternative string    `json:"suggestedAlternative,omitempty"`
	Timestamp            time.Time `json:"timestamp"`
}

type VoteChoice string

const (
	VoteApprove VoteChoice = "approve"
	VoteReject  VoteChoice = "reject"
	VoteAbstain VoteChoice = "abstain"
)

// Vote is an agent's latest position on a decision. A later vote from the
// same agent replaces the earlier one.
type Vote struct {
	Choice     VoteChoice `json:"choice"`
	Confidence *float64   `json:"confidence,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Consensus is write-once: present only after the moderator finalized the
// decision.
type Consensus struct {
	FinalDecision string    `json:"finalDecision"`
	AgreedBy      []string  `json:"agreedBy"`
	DecidedAt     time.Time `json:"decidedAt"`
	DecidedBy     string    `json:"decidedBy"`
	Rationale     string    `json:"rationale,omitempty"`
}

// Decision is one debated question inside a session. The thread is open while
// Consensus is nil.
type Decision struct {
	ID         string          `json:"id"`
	Topic      string          `json:"topic"`
	Proposals  []Proposal      `json:"proposals"`
	Challenges []Challenge     `json:"challenges,omitempty"`
	Votes      map[string]Vote `json:"votes,omitempty"`
	Consensus  *Consensus      `json:"consensus,omitempty"`
}

func (d *Decision) Open() bool {
	return d.Consensus == nil
}

// Session is a structured multi-agent debate. Members are fixed at creation.
type Session struct {
	SessionKey string        `json:"sessionKey"`
	Topic      string        `json:"topic"`
	Context    string        `json:"context,omitempty"`
	Members    []string      `json:"members"`
	Moderator  string        `json:"moderator,omitempty"`
	Status     SessionStatus `json:"status"`
	RoundCount int           `json:"roundCount"`
	MinRounds  int           `json:"minRounds"`
	MaxRounds  int           `json:"maxRounds"`
	Decisions  []*Decision   `json:"decisions"`
	Messages   []Message     `json:"messages"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// Decision returns the thread with the given id.
func (s *Session) Decision(id string) (*Decision, bool) {
	for _, d := range s.Decisions {
		if d.ID == id {
			return d, true
		}
	}
	return nil, false
}

// OpenDecisionByTopic returns the open thread debating topic, if any.
// Finalized threads never accept new proposals, even for the same topic text.
func (s *Session) OpenDecisionByTopic(topic string) (*Decision, bool) {
	for _, d := range s.Decisions {
		if d.Topic == topic && d.Open() {
			return d, true
		}
	}
	return nil, false
}

// HasMember reports whether agentID belongs to the fixed member set.
func (s *Session) HasMember(agentID string) bool {
	for _, m := range s.Members {
		if m == agentID {
			return true
		}
	}
	return false
}

func (s *Session) allDecided() bool {
	if len(s.Decisions) == 0 {
		return false
	}
	for _, d := range s.Decisions {
		if d.Open() {
			return false
		}
	}
	return true
}
