// Package hierarchy projects a live view over the engine: a forest of spawned
// runs plus a who-talked-to-whom collaboration graph, broadcast to observers
// on every lifecycle event.
package hierarchy

import (
	"sort"
	"sync"
	"time"

	"collab-hub/internal/utils"
)

type RunStatus string

const (
	RunSpawned   RunStatus = "spawned"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

type EventKind string

const (
	EventSpawn       EventKind = "spawn"
	EventStart       EventKind = "start"
	EventEnd         EventKind = "end"
	EventError       EventKind = "error"
	EventUsageUpdate EventKind = "usage_update"
)

type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// RunRecord tracks one spawned run: which session spawned it, which session
// it runs as, and its lifecycle.
type RunRecord struct {
	RunID            string     `json:"runId"`
	ParentSessionKey string     `json:"parentSessionKey,omitempty"`
	ChildSessionKey  string     `json:"childSessionKey"`
	AgentID          string     `json:"agentId"`
	Label            string     `json:"label,omitempty"`
	Task             string     `json:"task,omitempty"`
	DelegationID     string     `json:"delegationId,omitempty"`
	Status           RunStatus  `json:"status"`
	Outcome          string     `json:"outcome,omitempty"`
	Usage            Usage      `json:"usage"`
	SpawnedAt        time.Time  `json:"spawnedAt"`
	EndedAt          *time.Time `json:"endedAt,omitempty"`
}

type Event struct {
	Kind  EventKind
	RunID string
}

// Registry is the run-tracking feed. Every lifecycle mutation notifies the
// registered listeners; the projector subscribes to rebuild its snapshot.
type Registry struct {
	mu        sync.RWMutex
	runs      map[string]*RunRecord
	listeners map[int]func(Event)
	nextID    int
}

func NewRegistry() *Registry {
	return &Registry{
		runs:      make(map[string]*RunRecord),
		listeners: make(map[int]func(Event)),
	}
}

// OnEvent registers a listener and returns a stop function. Listeners run
// synchronously on the mutating goroutine and must not block.
func (r *Registry) OnEvent(fn func(Event)) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

func (r *Registry) emit(ev Event) {
	r.mu.RLock()
	fns := make([]func(Event), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}

type SpawnParams struct {
	ParentSessionKey string
	ChildSessionKey  string
	AgentID          string
	Label            string
	Task             string
	DelegationID     string
}

// Spawn records a new run and returns it.
func (r *Registry) Spawn(p SpawnParams) *RunRecord {
	run := &RunRecord{
		RunID:            utils.NewID("run"),
		ParentSessionKey: p.ParentSessionKey,
		ChildSessionKey:  p.ChildSessionKey,
		AgentID:          p.AgentID,
		Label:            p.Label,
		Task:             p.Task,
		DelegationID:     p.DelegationID,
		Status:           RunSpawned,
		SpawnedAt:        time.Now().UTC(),
	}
	if run.ChildSessionKey == "" {
		run.ChildSessionKey = run.RunID
	}
	r.mu.Lock()
	r.runs[run.RunID] = run
	r.mu.Unlock()
	r.emit(Event{Kind: EventSpawn, RunID: run.RunID})
	return run.clone()
}

func (r *Registry) Start(runID string) bool {
	return r.update(runID, EventStart, func(run *RunRecord) {
		run.Status = RunRunning
	})
}

func (r *Registry) End(runID, outcome string) bool {
	return r.update(runID, EventEnd, func(run *RunRecord) {
		now := time.Now().UTC()
		run.Status = RunCompleted
		run.Outcome = outcome
		run.EndedAt = &now
	})
}

func (r *Registry) Fail(runID, reason string) bool {
	return r.update(runID, EventError, func(run *RunRecord) {
		now := time.Now().UTC()
		run.Status = RunFailed
		run.Outcome = reason
		run.EndedAt = &now
	})
}

func (r *Registry) UpdateUsage(runID string, usage Usage) bool {
	return r.update(runID, EventUsageUpdate, func(run *RunRecord) {
		run.Usage = usage
	})
}

func (r *Registry) update(runID string, kind EventKind, mutate func(*RunRecord)) bool {
	r.mu.Lock()
	run, ok := r.runs[runID]
	if ok {
		mutate(run)
	}
	r.mu.Unlock()
	if ok {
		r.emit(Event{Kind: kind, RunID: runID})
	}
	return ok
}

// List returns copies of all runs, oldest first.
func (r *Registry) List() []*RunRecord {
	r.mu.RLock()
	result := make([]*RunRecord, 0, len(r.runs))
	for _, run := range r.runs {
		result = append(result, run.clone())
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		return result[i].SpawnedAt.Before(result[j].SpawnedAt)
	})
	return result
}

func (r *RunRecord) clone() *RunRecord {
	c := *r
	if r.EndedAt != nil {
		t := *r.EndedAt
		c.EndedAt = &t
	}
	return &c
}
