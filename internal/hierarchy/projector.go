package hierarchy

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"collab-hub/internal/collab"
)

// SessionLister supplies session copies for edge derivation. The session
// manager satisfies it.
type SessionLister interface {
	Sessions() []*collab.Session
}

// Node is one run in the spawn forest, keyed by its session identifier.
type Node struct {
	SessionKey string     `json:"sessionKey"`
	RunID      string     `json:"runId,omitempty"`
	AgentID    string     `json:"agentId,omitempty"`
	Label      string     `json:"label,omitempty"`
	Status     RunStatus  `json:"status,omitempty"`
	Usage      Usage      `json:"usage"`
	SpawnedAt  *time.Time `json:"spawnedAt,omitempty"`
	Children   []*Node    `json:"children"`
}

// Edge is one typed interaction in the collaboration graph.
type Edge struct {
	Source string             `json:"source"`
	Target string             `json:"target"`
	Type   collab.MessageType `json:"type"`
	Topic  string             `json:"topic,omitempty"`
}

// Snapshot is the full projected view, rebuilt from scratch on every event.
type Snapshot struct {
	Roots              []*Node   `json:"roots"`
	CollaborationEdges []Edge    `json:"collaborationEdges"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// DefaultRootKey names the always-present orchestrator session for the given
// default agent.
func DefaultRootKey(defaultAgentID string) string {
	return fmt.Sprintf("agent:%s:main", defaultAgentID)
}

// Projector rebuilds the hierarchy snapshot from the run registry and the
// session store, and broadcasts every rebuild.
type Projector struct {
	registry *Registry
	sessions SessionLister
	bc       *Broadcaster
	rootKey  string

	mu      sync.RWMutex
	current Snapshot
	seq     uint64
}

func NewProjector(reg *Registry, sessions SessionLister, bc *Broadcaster, defaultAgentID string) *Projector {
	p := &Projector{
		registry: reg,
		sessions: sessions,
		bc:       bc,
		rootKey:  DefaultRootKey(defaultAgentID),
	}
	p.Rebuild()
	return p
}

// Watch subscribes the projector to registry lifecycle events and returns a
// stop function. Session mutations are wired separately through the session
// manager's change hook.
func (p *Projector) Watch() func() {
	return p.registry.OnEvent(func(Event) { p.Rebuild() })
}

// Snapshot returns the latest projected view and its sequence number.
func (p *Projector) Snapshot() (Snapshot, uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current, p.seq
}

// Rebuild recomputes the snapshot from scratch and broadcasts it. Publishing
// and storing happen under one lock so Snapshot never reports an older
// snapshot under a sequence number that has already been surpassed on the
// broadcast side.
func (p *Projector) Rebuild() Snapshot {
	snapshot := Snapshot{
		Roots:              p.buildForest(),
		CollaborationEdges: p.buildEdges(),
		UpdatedAt:          time.Now().UTC(),
	}
	p.mu.Lock()
	p.current = snapshot
	p.seq = p.bc.Publish(snapshot)
	p.mu.Unlock()
	return snapshot
}

// buildForest arranges runs into trees by parent session. The default root
// session is always present; runs with no parent hang off it, and runs whose
// parent is not itself a run become roots of their own trees.
func (p *Projector) buildForest() []*Node {
	runs := p.registry.List()

	root := &Node{SessionKey: p.rootKey, Children: []*Node{}}
	nodes := map[string]*Node{p.rootKey: root}
	for _, run := range runs {
		spawned := run.SpawnedAt
		nodes[run.ChildSessionKey] = &Node{
			SessionKey: run.ChildSessionKey,
			RunID:      run.RunID,
			AgentID:    run.AgentID,
			Label:      run.Label,
			Status:     run.Status,
			Usage:      run.Usage,
			SpawnedAt:  &spawned,
			Children:   []*Node{},
		}
	}

	roots := []*Node{root}
	for _, run := range runs {
		node := nodes[run.ChildSessionKey]
		switch {
		case run.ParentSessionKey == "":
			root.Children = append(root.Children, node)
		case nodes[run.ParentSessionKey] != nil && run.ParentSessionKey != run.ChildSessionKey:
			parent := nodes[run.ParentSessionKey]
			parent.Children = append(parent.Children, node)
		default:
			roots = append(roots, node)
		}
	}
	return roots
}

// buildEdges derives the collaboration graph: each message implies an edge
// from its author to every other session member, and every pair of distinct
// proposers on the same decision thread gets a proposal edge.
func (p *Projector) buildEdges() []Edge {
	seen := map[Edge]struct{}{}
	edges := []Edge{}
	add := func(e Edge) {
		if e.Source == e.Target {
			return
		}
		if _, dup := seen[e]; dup {
			return
		}
		seen[e] = struct{}{}
		edges = append(edges, e)
	}

	for _, session := range p.sessions.Sessions() {
		for _, msg := range session.Messages {
			for _, member := range session.Members {
				add(Edge{Source: msg.From, Target: member, Type: msg.Type, Topic: session.Topic})
			}
		}
		for _, decision := range session.Decisions {
			proposers := map[string]struct{}{}
			for _, proposal := range decision.Proposals {
				proposers[proposal.From] = struct{}{}
			}
			ids := make([]string, 0, len(proposers))
			for id := range proposers {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for i := range ids {
				for j := i + 1; j < len(ids); j++ {
					add(Edge{Source: ids[i], Target: ids[j], Type: collab.MessageProposal, Topic: decision.Topic})
				}
			}
		}
	}
	return edges
}
