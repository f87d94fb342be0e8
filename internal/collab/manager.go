package collab

import (
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"collab-hub/internal/convergence"
	"collab-hub/internal/store"
	"collab-hub/internal/utils"
)

// Options tune deliberation depth and housekeeping.
type Options struct {
	MinRounds  int
	MaxRounds  int
	StaleAfter time.Duration
}

func (o Options) withDefaults() Options {
	if o.MinRounds <= 0 {
		o.MinRounds = convergence.MinRounds
	}
	if o.MaxRounds <= 0 {
		o.MaxRounds = 7
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 2 * time.Hour
	}
	return o
}

// SessionManager owns all collaborative sessions. Mutations happen in memory
// first and are persisted fire-and-forget through the store; the manager is
// the single writer for its sessions map.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	store    *store.FileStore
	log      *zap.Logger
	opts     Options
	onChange func()
}

func NewSessionManager(st *store.FileStore, log *zap.Logger, opts Options) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		store:    st,
		log:      log,
		opts:     opts.withDefaults(),
	}
}

// SetOnChange registers a hook invoked after every committed mutation, with
// no locks held. The hierarchy projector uses it to rebuild its snapshot.
func (sm *SessionManager) SetOnChange(fn func()) {
	sm.onChange = fn
}

func (sm *SessionManager) notify() {
	if sm.onChange != nil {
		sm.onChange()
	}
}

// persist schedules a durable write of the session. The clone keeps the
// background marshal off the live object.
func (sm *SessionManager) persist(s *Session) {
	sm.store.PutAsync(s.SessionKey, s.clone())
}

// Flush waits for pending persistence writes; callers use it on shutdown.
func (sm *SessionManager) Flush() {
	sm.store.Flush()
}

// Load restores sessions from disk and archives debating sessions that have
// been idle longer than the stale cutoff. Malformed files are skipped.
func (sm *SessionManager) Load() {
	raws := sm.store.List()
	now := time.Now().UTC()

	sm.mu.Lock()
	defer sm.mu.Unlock()
	for _, raw := range raws {
		var s Session
		if err := json.Unmarshal(raw, &s); err != nil || s.SessionKey == "" {
			continue
		}
		if (s.Status == StatusPlanning || s.Status == StatusDebating) &&
			now.Sub(s.UpdatedAt) > sm.opts.StaleAfter {
			s.Status = StatusArchived
			s.UpdatedAt = now
			sm.persist(&s)
			sm.log.Info("archived stale session",
				zap.String("sessionKey", s.SessionKey),
				zap.String("topic", s.Topic))
		}
		sm.sessions[s.SessionKey] = &s
	}
}

// ArchiveStale archives active sessions idle for longer than maxAge and
// returns how many were archived. Explicit housekeeping; sessions are never
// deleted here.
func (sm *SessionManager) ArchiveStale(maxAge time.Duration) int {
	changed := 0
	defer func() {
		if changed > 0 {
			sm.notify()
		}
	}()
	now := time.Now().UTC()

	sm.mu.Lock()
	defer sm.mu.Unlock()
	for _, s := range sm.sessions {
		if (s.Status == StatusPlanning || s.Status == StatusDebating) && now.Sub(s.UpdatedAt) > maxAge {
			s.Status = StatusArchived
			s.UpdatedAt = now
			sm.persist(s)
			changed++
		}
	}
	return changed
}

type InitParams struct {
	Topic     string   `json:"topic"`
	Agents    []string `json:"agents"`
	Moderator string   `json:"moderator,omitempty"`
	Context   string   `json:"context,omitempty"`
}

// Init creates a session in planning status and returns it.
func (sm *SessionManager) Init(p InitParams) (*Session, error) {
	if err := requireLen("topic", p.Topic, 1, 500); err != nil {
		return nil, err
	}
	if err := optionalLen("context", p.Context, 5000); err != nil {
		return nil, err
	}
	if len(p.Agents) < 2 || len(p.Agents) > 20 {
		return nil, &ValidationError{Field: "agents", Reason: "between 2 and 20 members required"}
	}
	seen := map[string]struct{}{}
	for _, id := range p.Agents {
		if id == "" {
			return nil, &ValidationError{Field: "agents", Reason: "empty agent id"}
		}
		if _, dup := seen[id]; dup {
			return nil, &ValidationError{Field: "agents", Reason: fmt.Sprintf("duplicate agent id %q", id)}
		}
		seen[id] = struct{}{}
	}

	now := time.Now().UTC()
	session := &Session{
		SessionKey: utils.NewID("collab"),
		Topic:      p.Topic,
		Context:    p.Context,
		Members:    append([]string(nil), p.Agents...),
		Moderator:  p.Moderator,
		Status:     StatusPlanning,
		MinRounds:  sm.opts.MinRounds,
		MaxRounds:  sm.opts.MaxRounds,
		Decisions:  []*Decision{},
		Messages:   []Message{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	committed := false
	defer func() {
		if committed {
			sm.notify()
		}
	}()
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.sessions[session.SessionKey] = session
	sm.persist(session)
	committed = true
	return session.clone(), nil
}

type PublishParams struct {
	SessionKey    string `json:"sessionKey"`
	AgentID       string `json:"agentId"`
	DecisionTopic string `json:"decisionTopic"`
	Proposal      string `json:"proposal"`
	Reasoning     string `json:"reasoning"`
}

// Publish records a proposal. The first proposal on a topic with no open
// thread opens a new decision thread; later proposals on the same open topic
// compete within it.
func (sm *SessionManager) Publish(p PublishParams) (string, error) {
	if err := requireLen("decisionTopic", p.DecisionTopic, 1, 200); err != nil {
		return "", err
	}
	if err := requireLen("proposal", p.Proposal, 1, 5000); err != nil {
		return "", err
	}
	if err := requireLen("reasoning", p.Reasoning, 1, 2000); err != nil {
		return "", err
	}

	committed := false
	defer func() {
		if committed {
			sm.notify()
		}
	}()
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, ok := sm.sessions[p.SessionKey]
	if !ok {
		return "", ErrSessionNotFound
	}
	if !session.HasMember(p.AgentID) {
		return "", ErrNotMember
	}

	now := time.Now().UTC()
	decision, ok := session.OpenDecisionByTopic(p.DecisionTopic)
	if !ok {
		decision = &Decision{
			ID:    utils.NewID("decision"),
			Topic: p.DecisionTopic,
			Votes: map[string]Vote{},
		}
		session.Decisions = append(session.Decisions, decision)
	}
	decision.Proposals = append(decision.Proposals, Proposal{
		From:      p.AgentID,
		Proposal:  p.Proposal,
		Reasoning: p.Reasoning,
		Timestamp: now,
	})
	session.appendMessage(Message{
		From:               p.AgentID,
		Type:               MessageProposal,
		Content:            fmt.Sprintf("Proposal: %s. Reasoning: %s", p.Proposal, p.Reasoning),
		ReferencesDecision: decision.ID,
		Timestamp:          now,
	})
	session.RoundCount++
	if session.Status == StatusPlanning {
		session.Status = StatusDebating
	}
	session.UpdatedAt = now
	sm.persist(session)
	committed = true
	return decision.ID, nil
}

type ChallengeParams struct {
	SessionKey           string `json:"sessionKey"`
	DecisionID           string `json:"decisionId"`
	AgentID              string `json:"agentId"`
	Challenge            string `json:"challenge"`
	SuggestedAlternative string `json:"suggestedAlternative,omitempty"`
}

// Challenge records an objection against an open thread.
func (sm *SessionManager) Challenge(p ChallengeParams) error {
	if err := requireLen("challenge", p.Challenge, 1, 2000); err != nil {
		return err
	}
	if err := optionalLen("suggestedAlternative", p.SuggestedAlternative, 2000); err != nil {
		return err
	}

	committed := false
	defer func() {
		if committed {
			sm.notify()
		}
	}()
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, decision, err := sm.openDecision(p.SessionKey, p.DecisionID, p.AgentID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	decision.Challenges = append(decision.Challenges, Challenge{
		From:                 p.AgentID,
		Challenge:            p.Challenge,
		SuggestedAlternative: p.SuggestedAlternative,
		Timestamp:            now,
	})
	content := p.Challenge
	if p.SuggestedAlternative != "" {
		content += " Alternative: " + p.SuggestedAlternative
	}
	session.appendMessage(Message{
		From:               p.AgentID,
		Type:               MessageChallenge,
		Content:            content,
		ReferencesDecision: decision.ID,
		Timestamp:          now,
	})
	session.RoundCount++
	session.UpdatedAt = now
	sm.persist(session)
	committed = true
	return nil
}

type VoteParams struct {
	SessionKey string     `json:"sessionKey"`
	DecisionID string     `json:"decisionId"`
	AgentID    string     `json:"agentId"`
	Choice     VoteChoice `json:"vote"`
	Confidence *float64   `json:"confidence,omitempty"`
}

// Agree records an approval vote on an open thread.
func (sm *SessionManager) Agree(sessionKey, decisionID, agentID string, confidence *float64) error {
	return sm.Vote(VoteParams{
		SessionKey: sessionKey,
		DecisionID: decisionID,
		AgentID:    agentID,
		Choice:     VoteApprove,
		Confidence: confidence,
	})
}

// Vote records the agent's position on an open thread. A later vote from the
// same agent replaces the earlier one.
func (sm *SessionManager) Vote(p VoteParams) error {
	switch p.Choice {
	case VoteApprove, VoteReject, VoteAbstain:
	default:
		return &ValidationError{Field: "vote", Reason: "must be approve, reject or abstain"}
	}
	if p.Confidence != nil && (*p.Confidence < 0 || *p.Confidence > 1) {
		return &ValidationError{Field: "confidence", Reason: "must be between 0 and 1"}
	}

	committed := false
	defer func() {
		if committed {
			sm.notify()
		}
	}()
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, decision, err := sm.openDecision(p.SessionKey, p.DecisionID, p.AgentID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if decision.Votes == nil {
		decision.Votes = map[string]Vote{}
	}
	decision.Votes[p.AgentID] = Vote{Choice: p.Choice, Confidence: p.Confidence, Timestamp: now}
	session.appendMessage(Message{
		From:               p.AgentID,
		Type:               MessageAgreement,
		Content:            fmt.Sprintf("Vote: %s", p.Choice),
		ReferencesDecision: decision.ID,
		Timestamp:          now,
	})
	session.RoundCount++
	session.UpdatedAt = now
	sm.persist(session)
	committed = true
	return nil
}

type FinalizeParams struct {
	SessionKey    string `json:"sessionKey"`
	DecisionID    string `json:"decisionId"`
	FinalDecision string `json:"finalDecision"`
	ModeratorID   string `json:"moderatorId"`
	Rationale     string `json:"rationale,omitempty"`
}

// Finalize sets the write-once consensus on an open thread. It requires the
// session moderator, at least one proposal, and the deliberation gate:
// RoundCount must have reached the session's MinRounds.
func (sm *SessionManager) Finalize(p FinalizeParams) error {
	if err := requireLen("finalDecision", p.FinalDecision, 1, 5000); err != nil {
		return err
	}
	if err := optionalLen("rationale", p.Rationale, 1000); err != nil {
		return err
	}

	committed := false
	defer func() {
		if committed {
			sm.notify()
		}
	}()
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, ok := sm.sessions[p.SessionKey]
	if !ok {
		return ErrSessionNotFound
	}
	if session.Moderator == "" || p.ModeratorID != session.Moderator {
		return ErrNotModerator
	}
	decision, ok := session.Decision(p.DecisionID)
	if !ok {
		return ErrDecisionNotFound
	}
	if !decision.Open() {
		return ErrDecisionFinalized
	}
	if len(decision.Proposals) == 0 {
		return &ValidationError{Field: "decisionId", Reason: "decision has no proposals"}
	}
	if session.RoundCount < session.MinRounds {
		return &InsufficientDeliberationError{Rounds: session.RoundCount, MinRounds: session.MinRounds}
	}

	now := time.Now().UTC()
	agreedBy := make([]string, 0, len(decision.Votes))
	for agent, vote := range decision.Votes {
		if vote.Choice == VoteApprove {
			agreedBy = append(agreedBy, agent)
		}
	}
	sort.Strings(agreedBy)

	decision.Consensus = &Consensus{
		FinalDecision: p.FinalDecision,
		AgreedBy:      agreedBy,
		DecidedAt:     now,
		DecidedBy:     p.ModeratorID,
		Rationale:     p.Rationale,
	}
	session.appendMessage(Message{
		From:               p.ModeratorID,
		Type:               MessageDecision,
		Content:            "DECISION: " + p.FinalDecision,
		ReferencesDecision: decision.ID,
		Timestamp:          now,
	})
	if session.allDecided() {
		session.Status = StatusDecided
	}
	session.UpdatedAt = now
	sm.persist(session)
	committed = true
	return nil
}

// Intervene injects a moderator message to unblock a debate. It does not
// count as a deliberation round.
func (sm *SessionManager) Intervene(sessionKey, moderatorID, interventionType string) (string, error) {
	if err := requireLen("interventionType", interventionType, 1, 100); err != nil {
		return "", err
	}

	committed := false
	defer func() {
		if committed {
			sm.notify()
		}
	}()
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, ok := sm.sessions[sessionKey]
	if !ok {
		return "", ErrSessionNotFound
	}
	if session.Moderator == "" || moderatorID != session.Moderator {
		return "", ErrNotModerator
	}

	var content string
	switch interventionType {
	case "clarify":
		content = "Moderator asks: please restate the open proposals and the exact points of disagreement."
	case "summarize":
		content = "Moderator asks: summarize the positions taken so far before the next round."
	case "call_for_votes":
		content = "Moderator asks: all members, cast your votes on the open decisions."
	default:
		content = "Moderator intervention: " + interventionType
	}

	now := time.Now().UTC()
	session.appendMessage(Message{
		From:      moderatorID,
		Type:      MessageClarification,
		Content:   content,
		Timestamp: now,
	})
	session.UpdatedAt = now
	sm.persist(session)
	committed = true
	return content, nil
}

// Get returns a copy of the session.
func (sm *SessionManager) Get(sessionKey string) (*Session, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	session, ok := sm.sessions[sessionKey]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session.clone(), nil
}

// Thread returns a copy of the decision plus every message referencing it.
func (sm *SessionManager) Thread(sessionKey, decisionID string) (*Decision, []Message, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	session, ok := sm.sessions[sessionKey]
	if !ok {
		return nil, nil, ErrSessionNotFound
	}
	if _, ok := session.Decision(decisionID); !ok {
		return nil, nil, ErrDecisionNotFound
	}
	messages := make([]Message, 0)
	for _, msg := range session.Messages {
		if msg.ReferencesDecision == decisionID {
			messages = append(messages, msg)
		}
	}
	copied := session.clone()
	decision, _ := copied.Decision(decisionID)
	return decision, messages, nil
}

// List returns session copies sorted by UpdatedAt descending, optionally
// filtered by status, with limit/offset paging.
func (sm *SessionManager) List(status SessionStatus, limit, offset int) []*Session {
	sm.mu.RLock()
	result := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		if status != "" && s.Status != status {
			continue
		}
		result = append(result, s.clone())
	}
	sm.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	if offset >= len(result) {
		return []*Session{}
	}
	end := len(result)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return result[offset:end]
}

// Sessions returns copies of every session, for the hierarchy projector.
func (sm *SessionManager) Sessions() []*Session {
	return sm.List("", 0, 0)
}

// Convergence analyzes the session's debate log.
func (sm *SessionManager) Convergence(sessionKey string) (convergence.Metrics, error) {
	sm.mu.RLock()
	session, ok := sm.sessions[sessionKey]
	if !ok {
		sm.mu.RUnlock()
		return convergence.Metrics{}, ErrSessionNotFound
	}
	entries := DebateEntries(session)
	sm.mu.RUnlock()
	return convergence.Analyze(entries), nil
}

// DebateEntries derives the convergence detector's input from the session
// log. Rounds advance on each qualifying action (propose/challenge/agree);
// moderator clarifications do not count.
func DebateEntries(s *Session) []convergence.Entry {
	entries := make([]convergence.Entry, 0, len(s.Messages))
	round := 0
	for _, msg := range s.Messages {
		var action convergence.Action
		switch msg.Type {
		case MessageProposal:
			action = convergence.ActionPropose
			round++
		case MessageChallenge:
			action = convergence.ActionChallenge
			round++
		case MessageAgreement:
			action = convergence.ActionAgree
			round++
		case MessageDecision:
			action = convergence.ActionFinalize
		default:
			continue
		}
		entries = append(entries, convergence.Entry{
			AgentID: msg.From,
			Action:  action,
			Round:   round,
			Content: msg.Content,
		})
	}
	return entries
}

// openDecision resolves a session, checks membership, and returns the
// decision only while its thread is still open.
func (sm *SessionManager) openDecision(sessionKey, decisionID, agentID string) (*Session, *Decision, error) {
	session, ok := sm.sessions[sessionKey]
	if !ok {
		return nil, nil, ErrSessionNotFound
	}
	if !session.HasMember(agentID) {
		return nil, nil, ErrNotMember
	}
	decision, ok := session.Decision(decisionID)
	if !ok {
		return nil, nil, ErrDecisionNotFound
	}
	if !decision.Open() {
		return nil, nil, ErrDecisionFinalized
	}
	return session, decision, nil
}

func (s *Session) appendMessage(msg Message) {
	s.Messages = append(s.Messages, msg)
}

func (s *Session) clone() *Session {
	c := *s
	c.Members = append([]string(nil), s.Members...)
	c.Messages = append([]Message(nil), s.Messages...)
	c.Decisions = make([]*Decision, len(s.Decisions))
	for i, d := range s.Decisions {
		dc := *d
		dc.Proposals = append([]Proposal(nil), d.Proposals...)
		dc.Challenges = append([]Challenge(nil), d.Challenges...)
		if d.Votes != nil {
			dc.Votes = maps.Clone(d.Votes)
		}
		if d.Consensus != nil {
			cons := *d.Consensus
			cons.AgreedBy = append([]string(nil), d.Consensus.AgreedBy...)
			dc.Consensus = &cons
		}
		c.Decisions[i] = &dc
	}
	return &c
}

func requireLen(field, value string, min, max int) error {
	if len(value) < min || len(value) > max {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("length must be %d-%d characters", min, max)}
	}
	return nil
}

func optionalLen(field, value string, max int) error {
	if len(value) > max {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("length must be at most %d characters", max)}
	}
	return nil
}
