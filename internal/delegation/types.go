// Package delegation implements the task hand-off workflow between agents.
// Hand-offs down the hierarchy are assigned immediately; hand-offs up the
// hierarchy wait for the superior's review.
package delegation

import "time"

type Direction string

const (
	DirectionDownward Direction = "downward"
	DirectionUpward   Direction = "upward"
)

type State string

const (
	StatePendingReview State = "pending_review"
	StateAssigned      State = "assigned"
	StateRejected      State = "rejected"
	StateCompleted     State = "completed"
	StateFailed        State = "failed"
)

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// Review records the receiving agent's decision on an upward hand-off.
type Review struct {
	ReviewedBy string    `json:"reviewedBy"`
	Approved   bool      `json:"approved"`
	Feedback   string    `json:"feedback,omitempty"`
	ReviewedAt time.Time `json:"reviewedAt"`
}

// Result records the outcome of an assigned delegation.
type Result struct {
	Summary     string    `json:"summary"`
	Success     bool      `json:"success"`
	CompletedAt time.Time `json:"completedAt"`
}

// Record is one delegation. Levels are snapshotted at creation so later
// directory changes never reclassify an existing hand-off.
type Record struct {
	ID            string    `json:"id"`
	FromAgentID   string    `json:"fromAgentId"`
	ToAgentID     string    `json:"toAgentId"`
	FromLevel     int       `json:"fromLevel"`
	ToLevel       int       `json:"toLevel"`
	Direction     Direction `json:"direction"`
	Task          string    `json:"task"`
	Justification string    `json:"justification,omitempty"`
	Priority      Priority  `json:"priority"`
	State         State     `json:"state"`
	Review        *Review   `json:"review,omitempty"`
	Result        *Result   `json:"result,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Active reports whether the delegation still expects work or a review.
func (r *Record) Active() bool {
	return r.State == StatePendingReview || r.State == StateAssigned
}

func (r *Record) clone() *Record {
	c := *r
	if r.Review != nil {
		rev := *r.Review
		c.Review = &rev
	}
	if r.Result != nil {
		res := *r.Result
		c.Result = &res
	}
	return &c
}

// Metrics summarizes the delegation log for status reporting.
type Metrics struct {
	Total     int           `json:"total"`
	ByState   map[State]int `json:"byState"`
	Upward    int           `json:"upward"`
	Downward  int           `json:"downward"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
}
