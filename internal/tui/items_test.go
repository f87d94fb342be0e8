package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collab-hub/internal/collab"
	"collab-hub/internal/hierarchy"
)

func TestRenderSnapshotTree(t *testing.T) {
	spawned := time.Now()
	snapshot := hierarchy.Snapshot{
		Roots: []*hierarchy.Node{
			{
				SessionKey: "agent:orchestrator:main",
				Children: []*hierarchy.Node{
					{
						SessionKey: "run-1",
						RunID:      "run-1",
						AgentID:    "worker",
						Label:      "implement retry logic",
						Status:     hierarchy.RunRunning,
						SpawnedAt:  &spawned,
						Children:   []*hierarchy.Node{},
					},
				},
			},
		},
		CollaborationEdges: []hierarchy.Edge{
			{Source: "alice", Target: "bob", Type: collab.MessageChallenge, Topic: "caching strategy"},
		},
	}

	out := renderSnapshot(snapshot, true)
	assert.Contains(t, out, "agent:orchestrator:main")
	assert.Contains(t, out, "└─ ")
	assert.Contains(t, out, "implement retry logic")
	assert.Contains(t, out, "[worker]")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "bob")

	withoutEdges := renderSnapshot(snapshot, false)
	assert.NotContains(t, withoutEdges, "Collaboration")
}

func TestRenderSnapshotTruncatesLongLabels(t *testing.T) {
	node := &hierarchy.Node{SessionKey: "run-1", Label: strings.Repeat("x", 200)}
	line := nodeLine(node)
	assert.Contains(t, line, "...")
}

func TestParseEvent(t *testing.T) {
	env, ok := parseEvent(`data: {"seq":7,"snapshot":{"roots":[],"collaborationEdges":[],"updatedAt":"2026-01-01T00:00:00Z"}}`)
	require.True(t, ok)
	assert.Equal(t, uint64(7), env.Seq)

	_, ok = parseEvent("id: 7")
	assert.False(t, ok)
	_, ok = parseEvent("")
	assert.False(t, ok)
	_, ok = parseEvent("data: not-json")
	assert.False(t, ok)
}
