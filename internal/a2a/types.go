package a2a

import (
	"fmt"

	sdka2a "github.com/a2aproject/a2a-go/a2a"

	"collab-hub/internal/delegation"
)

// toSDKTaskState maps delegation lifecycle states onto A2A task states.
// pending_review is submitted (received, not yet accepted), assigned is
// working.
func toSDKTaskState(state delegation.State) sdka2a.TaskState {
	switch state {
	case delegation.StatePendingReview:
		return sdka2a.TaskStateSubmitted
	case delegation.StateAssigned:
		return sdka2a.TaskStateWorking
	case delegation.StateCompleted:
		return sdka2a.TaskStateCompleted
	case delegation.StateFailed:
		return sdka2a.TaskStateFailed
	case delegation.StateRejected:
		return sdka2a.TaskStateRejected
	default:
		return sdka2a.TaskStateUnspecified
	}
}

// ToSDKTask exposes a delegation as an A2A task. The delegation id doubles as
// the task id so A2A clients can poll tasks/get with it.
func ToSDKTask(record *delegation.Record) *sdka2a.Task {
	updatedAt := record.UpdatedAt
	task := &sdka2a.Task{
		ID:        sdka2a.TaskID(record.ID),
		ContextID: record.ID,
		Status: sdka2a.TaskStatus{
			State:     toSDKTaskState(record.State),
			Timestamp: &updatedAt,
		},
		Metadata: map[string]any{
			"fromAgent": record.FromAgentID,
			"toAgent":   record.ToAgentID,
			"direction": string(record.Direction),
			"priority":  string(record.Priority),
		},
	}

	history := []*sdka2a.Message{}
	request := sdka2a.NewMessage(sdka2a.MessageRoleUser, &sdka2a.TextPart{Text: record.Task})
	request.TaskID = task.ID
	history = append(history, request)
	if record.Review != nil {
		verdict := "approved"
		if !record.Review.Approved {
			verdict = "rejected"
		}
		review := sdka2a.NewMessage(sdka2a.MessageRoleAgent,
			&sdka2a.TextPart{Text: fmt.Sprintf("Review %s: %s", verdict, record.Review.Feedback)})
		review.TaskID = task.ID
		history = append(history, review)
	}
	task.History = history

	if record.Result != nil {
		result := sdka2a.NewMessage(sdka2a.MessageRoleAgent, &sdka2a.TextPart{Text: record.Result.Summary})
		result.TaskID = task.ID
		task.Status.Message = result
	}
	return task
}

// messageText returns the concatenated text parts of a message.
func messageText(msg *sdka2a.Message) string {
	if msg == nil {
		return ""
	}
	text := ""
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case *sdka2a.TextPart:
			text += p.Text
		case sdka2a.TextPart:
			text += p.Text
		}
	}
	return text
}

func metadataString(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	if value, ok := metadata[key].(string); ok {
		return value
	}
	return ""
}
