package collab

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"collab-hub/internal/convergence"
	"collab-hub/internal/store"
)

func newTestManager(t *testing.T) *SessionManager {
	t.Helper()
	st := store.New(t.TempDir(), zap.NewNop())
	return NewSessionManager(st, zap.NewNop(), Options{})
}

func initSession(t *testing.T, sm *SessionManager) *Session {
	t.Helper()
	session, err := sm.Init(InitParams{
		Topic:     "API design",
		Agents:    []string{"architect", "senior-dev", "security-expert"},
		Moderator: "architect",
	})
	require.NoError(t, err)
	return session
}

func TestInitStartsInPlanning(t *testing.T) {
	sm := newTestManager(t)
	session := initSession(t, sm)

	assert.Equal(t, StatusPlanning, session.Status)
	assert.Equal(t, 0, session.RoundCount)
	assert.Equal(t, 3, session.MinRounds)
	assert.NotEmpty(t, session.SessionKey)
}

func TestInitValidation(t *testing.T) {
	sm := newTestManager(t)

	var verr *ValidationError

	_, err := sm.Init(InitParams{Topic: "", Agents: []string{"a", "b"}})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "topic", verr.Field)

	_, err = sm.Init(InitParams{Topic: "x", Agents: []string{"solo"}})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "agents", verr.Field)

	_, err = sm.Init(InitParams{Topic: "x", Agents: []string{"a", "a"}})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "agents", verr.Field)
}

func TestPublishOpensThreadAndStartsDebate(t *testing.T) {
	sm := newTestManager(t)
	session := initSession(t, sm)

	decisionID, err := sm.Publish(PublishParams{
		SessionKey:    session.SessionKey,
		AgentID:       "architect",
		DecisionTopic: "auth strategy",
		Proposal:      "Use OAuth2 with PKCE",
		Reasoning:     "Standard and well audited",
	})
	require.NoError(t, err)
	require.NotEmpty(t, decisionID)

	got, err := sm.Get(session.SessionKey)
	require.NoError(t, err)
	assert.Equal(t, StatusDebating, got.Status)
	assert.Equal(t, 1, got.RoundCount)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, MessageProposal, got.Messages[0].Type)
	assert.Equal(t, "Proposal: Use OAuth2 with PKCE. Reasoning: Standard and well audited", got.Messages[0].Content)

	// A second proposal on the same open topic joins the existing thread.
	secondID, err := sm.Publish(PublishParams{
		SessionKey:    session.SessionKey,
		AgentID:       "senior-dev",
		DecisionTopic: "auth strategy",
		Proposal:      "Use session cookies",
		Reasoning:     "Simpler for the web client",
	})
	require.NoError(t, err)
	assert.Equal(t, decisionID, secondID)

	decision, messages, err := sm.Thread(session.SessionKey, decisionID)
	require.NoError(t, err)
	assert.Len(t, decision.Proposals, 2)
	assert.Len(t, messages, 2)
}

func TestPublishRejectsNonMember(t *testing.T) {
	sm := newTestManager(t)
	session := initSession(t, sm)

	_, err := sm.Publish(PublishParams{
		SessionKey:    session.SessionKey,
		AgentID:       "outsider",
		DecisionTopic: "auth strategy",
		Proposal:      "p",
		Reasoning:     "r",
	})
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestFinalizeRequiresMinimumRounds(t *testing.T) {
	sm := newTestManager(t)
	session := initSession(t, sm)

	decisionID, err := sm.Publish(PublishParams{
		SessionKey:    session.SessionKey,
		AgentID:       "architect",
		DecisionTopic: "auth strategy",
		Proposal:      "Use OAuth2",
		Reasoning:     "Standard",
	})
	require.NoError(t, err)
	require.NoError(t, sm.Challenge(ChallengeParams{
		SessionKey: session.SessionKey,
		DecisionID: decisionID,
		AgentID:    "security-expert",
		Challenge:  "Token storage is unclear",
	}))

	// Two rounds so far; the gate requires three.
	err = sm.Finalize(FinalizeParams{
		SessionKey:    session.SessionKey,
		DecisionID:    decisionID,
		FinalDecision: "OAuth2 it is",
		ModeratorID:   "architect",
	})
	var insuff *InsufficientDeliberationError
	require.ErrorAs(t, err, &insuff)
	assert.Equal(t, 2, insuff.Rounds)
	assert.Equal(t, 3, insuff.MinRounds)

	got, err := sm.Get(session.SessionKey)
	require.NoError(t, err)
	decision, _ := got.Decision(decisionID)
	assert.Nil(t, decision.Consensus)
	assert.Equal(t, StatusDebating, got.Status)
}

func TestFullDeliberationAndFinalize(t *testing.T) {
	sm := newTestManager(t)
	session := initSession(t, sm)

	decisionID, err := sm.Publish(PublishParams{
		SessionKey:    session.SessionKey,
		AgentID:       "architect",
		DecisionTopic: "auth strategy",
		Proposal:      "Use OAuth2",
		Reasoning:     "Standard",
	})
	require.NoError(t, err)
	require.NoError(t, sm.Challenge(ChallengeParams{
		SessionKey:           session.SessionKey,
		DecisionID:           decisionID,
		AgentID:              "security-expert",
		Challenge:            "Token storage is unclear",
		SuggestedAlternative: "Add a token rotation policy",
	}))
	_, err = sm.Publish(PublishParams{
		SessionKey:    session.SessionKey,
		AgentID:       "architect",
		DecisionTopic: "auth strategy",
		Proposal:      "OAuth2 with rotating refresh tokens",
		Reasoning:     "Addresses the storage concern",
	})
	require.NoError(t, err)
	require.NoError(t, sm.Agree(session.SessionKey, decisionID, "security-expert", nil))
	require.NoError(t, sm.Agree(session.SessionKey, decisionID, "senior-dev", nil))

	err = sm.Finalize(FinalizeParams{
		SessionKey:    session.SessionKey,
		DecisionID:    decisionID,
		FinalDecision: "OAuth2 with rotating refresh tokens",
		ModeratorID:   "architect",
		Rationale:     "Challenge resolved by the revised proposal",
	})
	require.NoError(t, err)

	got, err := sm.Get(session.SessionKey)
	require.NoError(t, err)
	decision, _ := got.Decision(decisionID)
	require.NotNil(t, decision.Consensus)
	assert.Equal(t, "OAuth2 with rotating refresh tokens", decision.Consensus.FinalDecision)
	assert.Equal(t, []string{"security-expert", "senior-dev"}, decision.Consensus.AgreedBy)
	assert.Equal(t, "architect", decision.Consensus.DecidedBy)
	assert.Equal(t, StatusDecided, got.Status)

	last := got.Messages[len(got.Messages)-1]
	assert.Equal(t, MessageDecision, last.Type)
	assert.Equal(t, "DECISION: OAuth2 with rotating refresh tokens", last.Content)
}

func TestFinalizeIsWriteOnce(t *testing.T) {
	sm := newTestManager(t)
	session := initSession(t, sm)
	decisionID := deliberate(t, sm, session.SessionKey)

	require.NoError(t, sm.Finalize(FinalizeParams{
		SessionKey:    session.SessionKey,
		DecisionID:    decisionID,
		FinalDecision: "first",
		ModeratorID:   "architect",
	}))

	err := sm.Finalize(FinalizeParams{
		SessionKey:    session.SessionKey,
		DecisionID:    decisionID,
		FinalDecision: "second",
		ModeratorID:   "architect",
	})
	assert.ErrorIs(t, err, ErrDecisionFinalized)

	got, _ := sm.Get(session.SessionKey)
	decision, _ := got.Decision(decisionID)
	assert.Equal(t, "first", decision.Consensus.FinalDecision)

	// Challenges and votes bounce off a finalized thread too.
	err = sm.Challenge(ChallengeParams{
		SessionKey: session.SessionKey,
		DecisionID: decisionID,
		AgentID:    "senior-dev",
		Challenge:  "too late",
	})
	assert.ErrorIs(t, err, ErrDecisionFinalized)
}

func TestFinalizeRequiresModerator(t *testing.T) {
	sm := newTestManager(t)
	session := initSession(t, sm)
	decisionID := deliberate(t, sm, session.SessionKey)

	err := sm.Finalize(FinalizeParams{
		SessionKey:    session.SessionKey,
		DecisionID:    decisionID,
		FinalDecision: "done",
		ModeratorID:   "senior-dev",
	})
	assert.ErrorIs(t, err, ErrNotModerator)
}

func TestFinalizeWithoutModeratorConfigured(t *testing.T) {
	sm := newTestManager(t)
	session, err := sm.Init(InitParams{
		Topic:  "no moderator",
		Agents: []string{"a", "b"},
	})
	require.NoError(t, err)
	decisionID := deliberateAs(t, sm, session.SessionKey, "a", "b")

	err = sm.Finalize(FinalizeParams{
		SessionKey:    session.SessionKey,
		DecisionID:    decisionID,
		FinalDecision: "done",
		ModeratorID:   "a",
	})
	assert.ErrorIs(t, err, ErrNotModerator)
}

func TestVoteReplacesEarlierVote(t *testing.T) {
	sm := newTestManager(t)
	session := initSession(t, sm)
	decisionID := deliberate(t, sm, session.SessionKey)

	conf := 0.9
	require.NoError(t, sm.Vote(VoteParams{
		SessionKey: session.SessionKey,
		DecisionID: decisionID,
		AgentID:    "senior-dev",
		Choice:     VoteReject,
	}))
	require.NoError(t, sm.Vote(VoteParams{
		SessionKey: session.SessionKey,
		DecisionID: decisionID,
		AgentID:    "senior-dev",
		Choice:     VoteApprove,
		Confidence: &conf,
	}))

	got, _ := sm.Get(session.SessionKey)
	decision, _ := got.Decision(decisionID)
	vote := decision.Votes["senior-dev"]
	assert.Equal(t, VoteApprove, vote.Choice)
	require.NotNil(t, vote.Confidence)
	assert.InDelta(t, 0.9, *vote.Confidence, 1e-9)
}

func TestVoteValidation(t *testing.T) {
	sm := newTestManager(t)
	session := initSession(t, sm)
	decisionID := deliberate(t, sm, session.SessionKey)

	var verr *ValidationError
	err := sm.Vote(VoteParams{
		SessionKey: session.SessionKey,
		DecisionID: decisionID,
		AgentID:    "senior-dev",
		Choice:     "maybe",
	})
	require.ErrorAs(t, err, &verr)

	bad := 1.5
	err = sm.Vote(VoteParams{
		SessionKey: session.SessionKey,
		DecisionID: decisionID,
		AgentID:    "senior-dev",
		Choice:     VoteApprove,
		Confidence: &bad,
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "confidence", verr.Field)
}

func TestSameTopicReopensAfterFinalize(t *testing.T) {
	sm := newTestManager(t)
	session := initSession(t, sm)
	decisionID := deliberate(t, sm, session.SessionKey)

	require.NoError(t, sm.Finalize(FinalizeParams{
		SessionKey:    session.SessionKey,
		DecisionID:    decisionID,
		FinalDecision: "done",
		ModeratorID:   "architect",
	}))

	// A proposal on the same topic text opens a fresh thread, never mutating
	// the finalized one.
	newID, err := sm.Publish(PublishParams{
		SessionKey:    session.SessionKey,
		AgentID:       "senior-dev",
		DecisionTopic: "auth strategy",
		Proposal:      "Revisit with mTLS",
		Reasoning:     "New requirement",
	})
	require.NoError(t, err)
	assert.NotEqual(t, decisionID, newID)

	got, _ := sm.Get(session.SessionKey)
	assert.Equal(t, StatusDebating, got.Status)
	assert.Len(t, got.Decisions, 2)
}

func TestInterveneDoesNotCountAsRound(t *testing.T) {
	sm := newTestManager(t)
	session := initSession(t, sm)

	_, err := sm.Intervene(session.SessionKey, "senior-dev", "clarify")
	assert.ErrorIs(t, err, ErrNotModerator)

	content, err := sm.Intervene(session.SessionKey, "architect", "clarify")
	require.NoError(t, err)
	assert.NotEmpty(t, content)

	got, _ := sm.Get(session.SessionKey)
	assert.Equal(t, 0, got.RoundCount)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, MessageClarification, got.Messages[0].Type)
}

func TestListFiltersAndPages(t *testing.T) {
	sm := newTestManager(t)
	for i := 0; i < 3; i++ {
		initSession(t, sm)
	}

	assert.Len(t, sm.List("", 0, 0), 3)
	assert.Len(t, sm.List(StatusPlanning, 2, 0), 2)
	assert.Len(t, sm.List(StatusPlanning, 2, 2), 1)
	assert.Empty(t, sm.List(StatusDecided, 0, 0))
	assert.Empty(t, sm.List("", 0, 10))
}

func TestConvergenceFromSessionLog(t *testing.T) {
	sm := newTestManager(t)
	session := initSession(t, sm)
	decisionID := deliberate(t, sm, session.SessionKey)
	require.NoError(t, sm.Agree(session.SessionKey, decisionID, "architect", nil))
	require.NoError(t, sm.Agree(session.SessionKey, decisionID, "senior-dev", nil))

	metrics, err := sm.Convergence(session.SessionKey)
	require.NoError(t, err)
	assert.Equal(t, convergence.ReadyToFinalize, metrics.Recommendation)
	assert.GreaterOrEqual(t, metrics.Score, convergence.ConvergenceThreshold)
	assert.Equal(t, 5, metrics.TotalRounds)
}

func TestPersistenceRoundtrip(t *testing.T) {
	dir := t.TempDir()
	st := store.New(dir, zap.NewNop())
	sm := NewSessionManager(st, zap.NewNop(), Options{})
	session := initSession(t, sm)
	decisionID := deliberate(t, sm, session.SessionKey)
	sm.Flush()

	restored := NewSessionManager(store.New(dir, zap.NewNop()), zap.NewNop(), Options{})
	restored.Load()

	got, err := restored.Get(session.SessionKey)
	require.NoError(t, err)
	assert.Equal(t, session.SessionKey, got.SessionKey)
	assert.Equal(t, StatusDebating, got.Status)
	decision, ok := got.Decision(decisionID)
	require.True(t, ok)
	assert.Len(t, decision.Proposals, 1)
	assert.Len(t, decision.Votes, 1)
}

func TestLoadArchivesStaleSessions(t *testing.T) {
	dir := t.TempDir()
	st := store.New(dir, zap.NewNop())
	sm := NewSessionManager(st, zap.NewNop(), Options{StaleAfter: time.Hour})
	session := initSession(t, sm)
	sm.Flush()

	// Rewind the persisted UpdatedAt past the stale cutoff.
	stale, err := sm.Get(session.SessionKey)
	require.NoError(t, err)
	stale.UpdatedAt = time.Now().UTC().Add(-3 * time.Hour)
	st.Put(session.SessionKey, stale)

	restored := NewSessionManager(store.New(dir, zap.NewNop()), zap.NewNop(), Options{StaleAfter: time.Hour})
	restored.Load()

	got, err := restored.Get(session.SessionKey)
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, got.Status)
}

func TestArchiveStale(t *testing.T) {
	sm := newTestManager(t)
	initSession(t, sm)

	assert.Equal(t, 0, sm.ArchiveStale(time.Hour))
	assert.Equal(t, 1, sm.ArchiveStale(0))
	got := sm.List(StatusArchived, 0, 0)
	assert.Len(t, got, 1)
}

// deliberate runs a proposal, a challenge and an agreement so the session
// clears the minimum-rounds gate, and returns the decision id.
func deliberate(t *testing.T, sm *SessionManager, sessionKey string) string {
	t.Helper()
	return deliberateAs(t, sm, sessionKey, "architect", "security-expert")
}

func deliberateAs(t *testing.T, sm *SessionManager, sessionKey, proposer, challenger string) string {
	t.Helper()
	decisionID, err := sm.Publish(PublishParams{
		SessionKey:    sessionKey,
		AgentID:       proposer,
		DecisionTopic: "auth strategy",
		Proposal:      "Use OAuth2",
		Reasoning:     "Standard",
	})
	require.NoError(t, err)
	require.NoError(t, sm.Challenge(ChallengeParams{
		SessionKey: sessionKey,
		DecisionID: decisionID,
		AgentID:    challenger,
		Challenge:  "Consider alternatives",
	}))
	require.NoError(t, sm.Agree(sessionKey, decisionID, challenger, nil))
	return decisionID
}

func TestNotifyFiresOnlyForCommittedMutations(t *testing.T) {
	sm := newTestManager(t)
	notified := 0
	sm.SetOnChange(func() { notified++ })

	session := initSession(t, sm)
	assert.Equal(t, 1, notified)

	// Rejected calls must not wake subscribers.
	_, err := sm.Publish(PublishParams{
		SessionKey:    "collab-missing",
		AgentID:       "architect",
		DecisionTopic: "auth",
		Proposal:      "OAuth2",
		Reasoning:     "standard",
	})
	require.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 1, notified)

	_, err = sm.Publish(PublishParams{
		SessionKey:    session.SessionKey,
		AgentID:       "outsider",
		DecisionTopic: "auth",
		Proposal:      "OAuth2",
		Reasoning:     "standard",
	})
	require.ErrorIs(t, err, ErrNotMember)
	assert.Equal(t, 1, notified)

	decisionID, err := sm.Publish(PublishParams{
		SessionKey:    session.SessionKey,
		AgentID:       "architect",
		DecisionTopic: "auth",
		Proposal:      "OAuth2",
		Reasoning:     "standard",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, notified)

	err = sm.Finalize(FinalizeParams{
		SessionKey:    session.SessionKey,
		DecisionID:    decisionID,
		FinalDecision: "OAuth2",
		ModeratorID:   "architect",
	})
	var insuff *InsufficientDeliberationError
	require.ErrorAs(t, err, &insuff)
	assert.Equal(t, 2, notified)
}
