package a2a

import (
	"context"
	"fmt"

	sdka2a "github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"

	"collab-hub/internal/delegation"
)

// DelegationExecutor maps inbound A2A message/send calls onto the delegation
// workflow: the message text is the task, metadata names the agents.
type DelegationExecutor struct {
	workflow *delegation.Workflow
}

func NewDelegationExecutor(workflow *delegation.Workflow) *DelegationExecutor {
	return &DelegationExecutor{workflow: workflow}
}

func (e *DelegationExecutor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	task := messageText(reqCtx.Message)
	var fromAgent, toAgent, priority, justification string
	if reqCtx.Message != nil {
		fromAgent = metadataString(reqCtx.Message.Metadata, "fromAgent")
		toAgent = metadataString(reqCtx.Message.Metadata, "toAgent")
		priority = metadataString(reqCtx.Message.Metadata, "priority")
		justification = metadataString(reqCtx.Message.Metadata, "justification")
	}
	if toAgent == "" {
		toAgent = metadataString(reqCtx.Metadata, "toAgent")
	}
	if fromAgent == "" {
		fromAgent = metadataString(reqCtx.Metadata, "fromAgent")
	}

	if reqCtx.StoredTask == nil {
		event := sdka2a.NewStatusUpdateEvent(reqCtx, sdka2a.TaskStateSubmitted, nil)
		if err := queue.Write(ctx, event); err != nil {
			return fmt.Errorf("write submitted event: %w", err)
		}
	}

	record, err := e.workflow.Assign(delegation.AssignParams{
		FromAgentID:   fromAgent,
		ToAgentID:     toAgent,
		Task:          task,
		Justification: justification,
		Priority:      delegation.Priority(priority),
	})
	if err != nil {
		return e.writeFailure(ctx, reqCtx, queue, err.Error())
	}

	reply := sdka2a.NewMessage(sdka2a.MessageRoleAgent,
		&sdka2a.TextPart{Text: fmt.Sprintf("delegation %s %s (%s)", record.ID, record.State, record.Direction)})
	reply.TaskID = reqCtx.TaskID
	reply.ContextID = reqCtx.ContextID

	final := sdka2a.NewStatusUpdateEvent(reqCtx, toSDKTaskState(record.State), reply)
	final.Final = true
	if err := queue.Write(ctx, final); err != nil {
		return fmt.Errorf("write final event: %w", err)
	}
	return nil
}

// Cancel has no delegation equivalent: an upward hand-off ends through
// review rejection, an assigned one through completion. The task is reported
// canceled only on the A2A side.
func (e *DelegationExecutor) Cancel(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	event := sdka2a.NewStatusUpdateEvent(reqCtx, sdka2a.TaskStateCanceled, nil)
	event.Final = true
	if err := queue.Write(ctx, event); err != nil {
		return fmt.Errorf("write canceled event: %w", err)
	}
	return nil
}

func (e *DelegationExecutor) writeFailure(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue, reason string) error {
	msg := sdka2a.NewMessage(sdka2a.MessageRoleAgent, &sdka2a.TextPart{Text: reason})
	msg.TaskID = reqCtx.TaskID
	msg.ContextID = reqCtx.ContextID

	event := sdka2a.NewStatusUpdateEvent(reqCtx, sdka2a.TaskStateFailed, msg)
	event.Final = true
	if err := queue.Write(ctx, event); err != nil {
		return fmt.Errorf("write failure event: %w", err)
	}
	return nil
}
