package hub

import (
	"context"
	"encoding/json"
	"time"

	"collab-hub/internal/delegation"
	"collab-hub/internal/jsonrpc"
)

func (s *Server) handleDelegationAssign(ctx context.Context, params json.RawMessage) (any, *jsonrpc.RPCError) {
	var req delegation.AssignParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, invalidParams("invalid params")
	}
	if err := s.guard.Assert(ctx, req.FromAgentID); err != nil {
		return nil, rpcError(err)
	}
	record, err := s.delegations.Assign(req)
	if err != nil {
		return nil, rpcError(err)
	}
	s.trackDelegationRun(record)
	return record, nil
}

func (s *Server) handleDelegationReview(ctx context.Context, params json.RawMessage) (any, *jsonrpc.RPCError) {
	var req struct {
		DelegationID string `json:"delegationId"`
		ReviewerID   string `json:"reviewerId"`
		Decision     string `json:"decision"`
		Comment      string `json:"comment,omitempty"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, invalidParams("invalid params")
	}
	var approve bool
	switch req.Decision {
	case "approve":
		approve = true
	case "reject":
		approve = false
	default:
		return nil, invalidParams("decision must be approve or reject")
	}
	if err := s.guard.Assert(ctx, req.ReviewerID); err != nil {
		return nil, rpcError(err)
	}
	record, err := s.delegations.Review(req.DelegationID, req.ReviewerID, approve, req.Comment)
	if err != nil {
		return nil, rpcError(err)
	}
	s.trackDelegationRun(record)
	return record, nil
}

func (s *Server) handleDelegationComplete(ctx context.Context, params json.RawMessage) (any, *jsonrpc.RPCError) {
	var req struct {
		DelegationID string `json:"delegationId"`
		AgentID      string `json:"agentId"`
		Status       string `json:"status"`
		Artifact     string `json:"artifact"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, invalidParams("invalid params")
	}
	var success bool
	switch req.Status {
	case "success":
		success = true
	case "failure":
		success = false
	default:
		return nil, invalidParams("status must be success or failure")
	}
	if err := s.guard.Assert(ctx, req.AgentID); err != nil {
		return nil, rpcError(err)
	}
	record, err := s.delegations.Complete(req.DelegationID, req.AgentID, req.Artifact, success)
	if err != nil {
		return nil, rpcError(err)
	}
	s.trackDelegationRun(record)
	return record, nil
}

func (s *Server) handleDelegationGet(_ context.Context, params json.RawMessage) (any, *jsonrpc.RPCError) {
	var req struct {
		DelegationID string `json:"delegationId"`
	}
	if err := json.Unmarshal(params, &req); err != nil || req.DelegationID == "" {
		return nil, invalidParams("delegationId required")
	}
	record, err := s.delegations.Get(req.DelegationID)
	if err != nil {
		return nil, rpcError(err)
	}
	return record, nil
}

func (s *Server) handleDelegationList(_ context.Context, params json.RawMessage) (any, *jsonrpc.RPCError) {
	var req struct {
		AgentID string           `json:"agentId,omitempty"`
		State   delegation.State `json:"state,omitempty"`
		Limit   int              `json:"limit,omitempty"`
	}
	_ = json.Unmarshal(params, &req)
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 50
	}
	return s.delegations.List(req.AgentID, req.State, req.Limit), nil
}

func (s *Server) handleHierarchyGet(_ context.Context, _ json.RawMessage) (any, *jsonrpc.RPCError) {
	snapshot, seq := s.projector.Snapshot()
	return map[string]any{"seq": seq, "snapshot": snapshot}, nil
}

func (s *Server) handleHubStatus(_ context.Context, _ json.RawMessage) (any, *jsonrpc.RPCError) {
	sessions := s.sessions.Sessions()
	byStatus := map[string]int{}
	for _, session := range sessions {
		byStatus[string(session.Status)]++
	}
	return map[string]any{
		"version":          Version,
		"uptime":           int(time.Since(s.startTime).Seconds()),
		"sessions":         len(sessions),
		"sessionsByStatus": byStatus,
		"delegations":      s.delegations.Stats(),
		"agents":           len(s.directory.List()),
		"methods":          len(s.handler.Methods()),
	}, nil
}
