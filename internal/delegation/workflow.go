package delegation

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"collab-hub/internal/directory"
	"collab-hub/internal/store"
	"collab-hub/internal/utils"
)

var (
	ErrNotFound = errors.New("delegation not found")

	// ErrNotAssignee rejects actions from anyone but the delegation's
	// receiving agent.
	ErrNotAssignee = errors.New("only the receiving agent may act on this delegation")
)

// StateError reports a transition attempted from the wrong state.
type StateError struct {
	Want State
	Got  State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("delegation is %s, expected %s", e.Got, e.Want)
}

// ValidationError reports malformed delegation input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Workflow owns the delegation log. Direction is derived from the expert
// directory's seniority levels at assignment time.
type Workflow struct {
	mu       sync.RWMutex
	records  map[string]*Record
	dir      *directory.Directory
	store    *store.FileStore
	log      *zap.Logger
	onChange func()
}

func NewWorkflow(dir *directory.Directory, st *store.FileStore, log *zap.Logger) *Workflow {
	return &Workflow{
		records: make(map[string]*Record),
		dir:     dir,
		store:   st,
		log:     log,
	}
}

// SetOnChange registers a hook invoked after every committed mutation, with
// no locks held.
func (w *Workflow) SetOnChange(fn func()) {
	w.onChange = fn
}

func (w *Workflow) notify() {
	if w.onChange != nil {
		w.onChange()
	}
}

func (w *Workflow) persist(r *Record) {
	w.store.PutAsync(r.ID, r.clone())
}

// Flush waits for pending persistence writes.
func (w *Workflow) Flush() {
	w.store.Flush()
}

// Load restores the delegation log from disk.
func (w *Workflow) Load() {
	raws := w.store.List()
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, raw := range raws {
		var r Record
		if err := json.Unmarshal(raw, &r); err != nil || r.ID == "" {
			continue
		}
		w.records[r.ID] = &r
	}
}

type AssignParams struct {
	FromAgentID   string   `json:"fromAgentId"`
	ToAgentID     string   `json:"toAgentId"`
	Task          string   `json:"task"`
	Justification string   `json:"justification,omitempty"`
	Priority      Priority `json:"priority,omitempty"`
}

// Assign creates a delegation. A hand-off to an agent at the same or lower
// level is downward and starts assigned; a hand-off to a more senior agent is
// upward and waits in pending_review until the superior accepts it. In both
// directions the receiving agent is the one expected to do the work.
func (w *Workflow) Assign(p AssignParams) (*Record, error) {
	if len(p.Task) < 1 || len(p.Task) > 5000 {
		return nil, &ValidationError{Field: "task", Reason: "length must be 1-5000 characters"}
	}
	if len(p.Justification) > 5000 {
		return nil, &ValidationError{Field: "justification", Reason: "length must be at most 5000 characters"}
	}
	if p.ToAgentID == "" || p.ToAgentID == p.FromAgentID {
		return nil, &ValidationError{Field: "toAgentId", Reason: "must name a different agent"}
	}
	switch p.Priority {
	case "":
		p.Priority = PriorityNormal
	case PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow:
	default:
		return nil, &ValidationError{Field: "priority", Reason: "must be critical, high, normal or low"}
	}

	fromLevel := w.dir.Level(p.FromAgentID)
	toLevel := w.dir.Level(p.ToAgentID)
	direction := DirectionDownward
	state := StateAssigned
	if toLevel > fromLevel {
		direction = DirectionUpward
		state = StatePendingReview
	}

	now := time.Now().UTC()
	record := &Record{
		ID:            utils.NewID("delegation"),
		FromAgentID:   p.FromAgentID,
		ToAgentID:     p.ToAgentID,
		FromLevel:     fromLevel,
		ToLevel:       toLevel,
		Direction:     direction,
		Task:          p.Task,
		Justification: p.Justification,
		Priority:      p.Priority,
		State:         state,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	defer w.notify()
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records[record.ID] = record
	w.persist(record)
	w.log.Info("delegation created",
		zap.String("id", record.ID),
		zap.String("from", p.FromAgentID),
		zap.String("to", p.ToAgentID),
		zap.String("direction", string(direction)),
		zap.String("state", string(state)))
	return record.clone(), nil
}

// Review resolves an upward delegation waiting in pending_review. Approval
// moves it to assigned, with the reviewer as the working agent; rejection
// ends it.
func (w *Workflow) Review(delegationID, reviewerID string, approve bool, feedback string) (*Record, error) {
	if len(feedback) > 2000 {
		return nil, &ValidationError{Field: "feedback", Reason: "length must be at most 2000 characters"}
	}

	defer w.notify()
	w.mu.Lock()
	defer w.mu.Unlock()

	record, ok := w.records[delegationID]
	if !ok {
		return nil, ErrNotFound
	}
	if record.ToAgentID != reviewerID {
		return nil, ErrNotAssignee
	}
	if record.State != StatePendingReview {
		return nil, &StateError{Want: StatePendingReview, Got: record.State}
	}

	now := time.Now().UTC()
	record.Review = &Review{
		ReviewedBy: reviewerID,
		Approved:   approve,
		Feedback:   feedback,
		ReviewedAt: now,
	}
	if approve {
		record.State = StateAssigned
	} else {
		record.State = StateRejected
	}
	record.UpdatedAt = now
	w.persist(record)
	return record.clone(), nil
}

// Complete records the outcome of an assigned delegation. Only the receiving
// agent may complete it.
func (w *Workflow) Complete(delegationID, agentID, summary string, success bool) (*Record, error) {
	if len(summary) > 5000 {
		return nil, &ValidationError{Field: "summary", Reason: "length must be at most 5000 characters"}
	}

	defer w.notify()
	w.mu.Lock()
	defer w.mu.Unlock()

	record, ok := w.records[delegationID]
	if !ok {
		return nil, ErrNotFound
	}
	if record.ToAgentID != agentID {
		return nil, ErrNotAssignee
	}
	if record.State != StateAssigned {
		return nil, &StateError{Want: StateAssigned, Got: record.State}
	}

	now := time.Now().UTC()
	record.Result = &Result{Summary: summary, Success: success, CompletedAt: now}
	if success {
		record.State = StateCompleted
	} else {
		record.State = StateFailed
	}
	record.UpdatedAt = now
	w.persist(record)
	return record.clone(), nil
}

func (w *Workflow) Get(delegationID string) (*Record, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.records[delegationID]
	if !ok {
		return nil, ErrNotFound
	}
	return record.clone(), nil
}

// List returns delegation copies newest first, optionally filtered by agent
// (either side) and state, with a limit.
func (w *Workflow) List(agentID string, state State, limit int) []*Record {
	w.mu.RLock()
	result := make([]*Record, 0, len(w.records))
	for _, r := range w.records {
		if agentID != "" && r.FromAgentID != agentID && r.ToAgentID != agentID {
			continue
		}
		if state != "" && r.State != state {
			continue
		}
		result = append(result, r.clone())
	}
	w.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result
}

// Records returns copies of every delegation, for the hierarchy projector.
func (w *Workflow) Records() []*Record {
	return w.List("", "", 0)
}

// Stats summarizes the delegation log.
func (w *Workflow) Stats() Metrics {
	w.mu.RLock()
	defer w.mu.RUnlock()
	m := Metrics{ByState: map[State]int{}}
	for _, r := range w.records {
		m.Total++
		m.ByState[r.State]++
		switch r.Direction {
		case DirectionUpward:
			m.Upward++
		case DirectionDownward:
			m.Downward++
		}
	}
	m.Completed = m.ByState[StateCompleted]
	m.Failed = m.ByState[StateFailed]
	return m
}
