package hierarchy

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"collab-hub/internal/collab"
	"collab-hub/internal/store"
)

type staticSessions []*collab.Session

func (s staticSessions) Sessions() []*collab.Session { return s }

func TestSnapshotAlwaysIncludesDefaultRoot(t *testing.T) {
	p := NewProjector(NewRegistry(), staticSessions{}, NewBroadcaster(), "orchestrator")

	snapshot, seq := p.Snapshot()
	require.Len(t, snapshot.Roots, 1)
	assert.Equal(t, "agent:orchestrator:main", snapshot.Roots[0].SessionKey)
	assert.Empty(t, snapshot.Roots[0].Children)
	assert.Empty(t, snapshot.CollaborationEdges)
	assert.Equal(t, uint64(1), seq)
}

func TestForestFromRunRegistry(t *testing.T) {
	reg := NewRegistry()
	bc := NewBroadcaster()
	p := NewProjector(reg, staticSessions{}, bc, "orchestrator")
	stop := p.Watch()
	defer stop()

	parent := reg.Spawn(SpawnParams{ChildSessionKey: "session-a", AgentID: "alpha"})
	reg.Spawn(SpawnParams{ParentSessionKey: "session-a", ChildSessionKey: "session-b", AgentID: "beta"})
	orphan := reg.Spawn(SpawnParams{ParentSessionKey: "session-missing", ChildSessionKey: "session-c"})

	snapshot, _ := p.Snapshot()
	require.Len(t, snapshot.Roots, 2)

	root := snapshot.Roots[0]
	assert.Equal(t, "agent:orchestrator:main", root.SessionKey)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "session-a", root.Children[0].SessionKey)
	assert.Equal(t, parent.RunID, root.Children[0].RunID)
	require.Len(t, root.Children[0].Children, 1)
	assert.Equal(t, "session-b", root.Children[0].Children[0].SessionKey)

	// A run whose parent session is unknown becomes its own root.
	assert.Equal(t, "session-c", snapshot.Roots[1].SessionKey)
	assert.Equal(t, orphan.RunID, snapshot.Roots[1].RunID)
}

func TestLifecycleEventsRebuildSnapshot(t *testing.T) {
	reg := NewRegistry()
	p := NewProjector(reg, staticSessions{}, NewBroadcaster(), "orchestrator")
	stop := p.Watch()
	defer stop()

	run := reg.Spawn(SpawnParams{ChildSessionKey: "session-a"})
	require.True(t, reg.Start(run.RunID))
	require.True(t, reg.UpdateUsage(run.RunID, Usage{InputTokens: 10, OutputTokens: 20}))
	require.True(t, reg.End(run.RunID, "all good"))

	snapshot, _ := p.Snapshot()
	node := snapshot.Roots[0].Children[0]
	assert.Equal(t, RunCompleted, node.Status)
	assert.Equal(t, Usage{InputTokens: 10, OutputTokens: 20}, node.Usage)

	assert.False(t, reg.Start("run-missing"))
}

func TestEdgesFromSessionLog(t *testing.T) {
	st := store.New(t.TempDir(), zap.NewNop())
	sm := collab.NewSessionManager(st, zap.NewNop(), collab.Options{})
	session, err := sm.Init(collab.InitParams{
		Topic:     "API design",
		Agents:    []string{"alice", "bob", "carol"},
		Moderator: "alice",
	})
	require.NoError(t, err)

	decisionID, err := sm.Publish(collab.PublishParams{
		SessionKey:    session.SessionKey,
		AgentID:       "alice",
		DecisionTopic: "auth",
		Proposal:      "OAuth2",
		Reasoning:     "standard",
	})
	require.NoError(t, err)
	_, err = sm.Publish(collab.PublishParams{
		SessionKey:    session.SessionKey,
		AgentID:       "bob",
		DecisionTopic: "auth",
		Proposal:      "cookies",
		Reasoning:     "simpler",
	})
	require.NoError(t, err)
	require.NoError(t, sm.Challenge(collab.ChallengeParams{
		SessionKey: session.SessionKey,
		DecisionID: decisionID,
		AgentID:    "carol",
		Challenge:  "what about mobile",
	}))

	p := NewProjector(NewRegistry(), sm, NewBroadcaster(), "orchestrator")
	snapshot, _ := p.Snapshot()

	// Messages fan out from their author to every other member.
	assert.Contains(t, snapshot.CollaborationEdges,
		Edge{Source: "alice", Target: "bob", Type: collab.MessageProposal, Topic: "API design"})
	assert.Contains(t, snapshot.CollaborationEdges,
		Edge{Source: "alice", Target: "carol", Type: collab.MessageProposal, Topic: "API design"})
	assert.Contains(t, snapshot.CollaborationEdges,
		Edge{Source: "carol", Target: "alice", Type: collab.MessageChallenge, Topic: "API design"})

	// Distinct proposers on one thread are linked by a proposal edge keyed by
	// the decision topic.
	assert.Contains(t, snapshot.CollaborationEdges,
		Edge{Source: "alice", Target: "bob", Type: collab.MessageProposal, Topic: "auth"})

	// No self-edges.
	for _, e := range snapshot.CollaborationEdges {
		assert.NotEqual(t, e.Source, e.Target)
	}
}

func TestBroadcastSequenceIsMonotonic(t *testing.T) {
	bc := NewBroadcaster()
	ch, cancel := bc.Subscribe()
	defer cancel()

	first := bc.Publish(Snapshot{})
	second := bc.Publish(Snapshot{})
	assert.Equal(t, first+1, second)

	env := <-ch
	assert.Equal(t, first, env.Seq)
	env = <-ch
	assert.Equal(t, second, env.Seq)
}

func TestSlowSubscriberNeverBlocksPublisher(t *testing.T) {
	bc := NewBroadcaster()
	ch, cancel := bc.Subscribe()
	defer cancel()

	// Never read: once the buffer fills, publishes must drop, not block.
	for i := 0; i < subscriberBuffer*3; i++ {
		bc.Publish(Snapshot{})
	}
	assert.Len(t, ch, subscriberBuffer)

	env := <-ch
	assert.Equal(t, uint64(1), env.Seq)
}

func TestSubscribeAfterClose(t *testing.T) {
	bc := NewBroadcaster()
	ch, cancel := bc.Subscribe()
	bc.Close()

	_, open := <-ch
	assert.False(t, open)
	cancel()

	ch2, cancel2 := bc.Subscribe()
	defer cancel2()
	_, open = <-ch2
	assert.False(t, open)
}

func TestConcurrentRebuildsKeepSnapshotAndSequencePaired(t *testing.T) {
	p := NewProjector(NewRegistry(), staticSessions{}, NewBroadcaster(), "orchestrator")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Rebuild()
		}()
	}
	wg.Wait()

	// One publish from the constructor plus sixteen rebuilds: the stored
	// sequence must match the last publish, not an earlier one that lost
	// the race.
	_, seq := p.Snapshot()
	assert.Equal(t, uint64(17), seq)

	p.Rebuild()
	_, next := p.Snapshot()
	assert.Equal(t, seq+1, next)
}
