package hub

import (
	"context"
	"encoding/json"
	"time"

	"collab-hub/internal/collab"
	"collab-hub/internal/jsonrpc"
)

func invalidParams(msg string) *jsonrpc.RPCError {
	return &jsonrpc.RPCError{Code: jsonrpc.ErrInvalidParams, Message: msg}
}

func (s *Server) handleSessionInit(ctx context.Context, params json.RawMessage) (any, *jsonrpc.RPCError) {
	var req struct {
		collab.InitParams
		InitiatorID string `json:"initiatorId"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, invalidParams("invalid params")
	}
	if req.InitiatorID != "" {
		if err := s.guard.Assert(ctx, req.InitiatorID); err != nil {
			return nil, rpcError(err)
		}
	}
	session, err := s.sessions.Init(req.InitParams)
	if err != nil {
		return nil, rpcError(err)
	}
	return session, nil
}

func (s *Server) handleProposalPublish(ctx context.Context, params json.RawMessage) (any, *jsonrpc.RPCError) {
	var req collab.PublishParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, invalidParams("invalid params")
	}
	if err := s.guard.Assert(ctx, req.AgentID); err != nil {
		return nil, rpcError(err)
	}
	decisionID, err := s.sessions.Publish(req)
	if err != nil {
		return nil, rpcError(err)
	}
	return map[string]string{"decisionId": decisionID}, nil
}

func (s *Server) handleProposalChallenge(ctx context.Context, params json.RawMessage) (any, *jsonrpc.RPCError) {
	var req collab.ChallengeParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, invalidParams("invalid params")
	}
	if err := s.guard.Assert(ctx, req.AgentID); err != nil {
		return nil, rpcError(err)
	}
	if err := s.sessions.Challenge(req); err != nil {
		return nil, rpcError(err)
	}
	return map[string]bool{"recorded": true}, nil
}

func (s *Server) handleProposalAgree(ctx context.Context, params json.RawMessage) (any, *jsonrpc.RPCError) {
	var req struct {
		SessionKey string   `json:"sessionKey"`
		DecisionID string   `json:"decisionId"`
		AgentID    string   `json:"agentId"`
		Confidence *float64 `json:"confidence,omitempty"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, invalidParams("invalid params")
	}
	if err := s.guard.Assert(ctx, req.AgentID); err != nil {
		return nil, rpcError(err)
	}
	if err := s.sessions.Agree(req.SessionKey, req.DecisionID, req.AgentID, req.Confidence); err != nil {
		return nil, rpcError(err)
	}
	return map[string]bool{"recorded": true}, nil
}

func (s *Server) handleProposalVote(ctx context.Context, params json.RawMessage) (any, *jsonrpc.RPCError) {
	var req collab.VoteParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, invalidParams("invalid params")
	}
	if err := s.guard.Assert(ctx, req.AgentID); err != nil {
		return nil, rpcError(err)
	}
	if err := s.sessions.Vote(req); err != nil {
		return nil, rpcError(err)
	}
	return map[string]bool{"recorded": true}, nil
}

func (s *Server) handleDecisionFinalize(ctx context.Context, params json.RawMessage) (any, *jsonrpc.RPCError) {
	var req collab.FinalizeParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, invalidParams("invalid params")
	}
	if err := s.guard.Assert(ctx, req.ModeratorID); err != nil {
		return nil, rpcError(err)
	}
	if err := s.sessions.Finalize(req); err != nil {
		return nil, rpcError(err)
	}
	decision, _, err := s.sessions.Thread(req.SessionKey, req.DecisionID)
	if err != nil {
		return nil, rpcError(err)
	}
	return decision, nil
}

func (s *Server) handleModeratorIntervene(ctx context.Context, params json.RawMessage) (any, *jsonrpc.RPCError) {
	var req struct {
		SessionKey       string `json:"sessionKey"`
		ModeratorID      string `json:"moderatorId"`
		InterventionType string `json:"interventionType"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, invalidParams("invalid params")
	}
	if err := s.guard.Assert(ctx, req.ModeratorID); err != nil {
		return nil, rpcError(err)
	}
	content, err := s.sessions.Intervene(req.SessionKey, req.ModeratorID, req.InterventionType)
	if err != nil {
		return nil, rpcError(err)
	}
	return map[string]string{"message": content}, nil
}

func (s *Server) handleSessionGet(_ context.Context, params json.RawMessage) (any, *jsonrpc.RPCError) {
	var req struct {
		SessionKey string `json:"sessionKey"`
	}
	if err := json.Unmarshal(params, &req); err != nil || req.SessionKey == "" {
		return nil, invalidParams("sessionKey required")
	}
	session, err := s.sessions.Get(req.SessionKey)
	if err != nil {
		return nil, rpcError(err)
	}
	return session, nil
}

func (s *Server) handleThreadGet(_ context.Context, params json.RawMessage) (any, *jsonrpc.RPCError) {
	var req struct {
		SessionKey string `json:"sessionKey"`
		DecisionID string `json:"decisionId"`
	}
	if err := json.Unmarshal(params, &req); err != nil || req.SessionKey == "" || req.DecisionID == "" {
		return nil, invalidParams("sessionKey and decisionId required")
	}
	decision, messages, err := s.sessions.Thread(req.SessionKey, req.DecisionID)
	if err != nil {
		return nil, rpcError(err)
	}
	return map[string]any{"decision": decision, "messages": messages}, nil
}

func (s *Server) handleSessionList(_ context.Context, params json.RawMessage) (any, *jsonrpc.RPCError) {
	var req struct {
		Status collab.SessionStatus `json:"status,omitempty"`
		Limit  int                  `json:"limit,omitempty"`
		Offset int                  `json:"offset,omitempty"`
	}
	_ = json.Unmarshal(params, &req)
	if req.Limit == 0 {
		req.Limit = 50
	}
	if req.Limit < 1 || req.Limit > 100 {
		return nil, invalidParams("limit must be between 1 and 100")
	}
	if req.Offset < 0 {
		return nil, invalidParams("offset must not be negative")
	}
	return s.sessions.List(req.Status, req.Limit, req.Offset), nil
}

func (s *Server) handleConvergenceGet(_ context.Context, params json.RawMessage) (any, *jsonrpc.RPCError) {
	var req struct {
		SessionKey string `json:"sessionKey"`
	}
	if err := json.Unmarshal(params, &req); err != nil || req.SessionKey == "" {
		return nil, invalidParams("sessionKey required")
	}
	metrics, err := s.sessions.Convergence(req.SessionKey)
	if err != nil {
		return nil, rpcError(err)
	}
	return metrics, nil
}

func (s *Server) handleDirectoryList(_ context.Context, _ json.RawMessage) (any, *jsonrpc.RPCError) {
	return s.directory.List(), nil
}

func (s *Server) handlePollCreate(ctx context.Context, params json.RawMessage) (any, *jsonrpc.RPCError) {
	var req struct {
		Question  string   `json:"question"`
		Options   []string `json:"options"`
		CreatedBy string   `json:"createdBy"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, invalidParams("invalid params")
	}
	if err := s.guard.Assert(ctx, req.CreatedBy); err != nil {
		return nil, rpcError(err)
	}
	poll, err := s.polls.Create(req.Question, req.CreatedBy, req.Options)
	if err != nil {
		return nil, rpcError(err)
	}
	return poll, nil
}

func (s *Server) handlePollVote(ctx context.Context, params json.RawMessage) (any, *jsonrpc.RPCError) {
	var req struct {
		PollID  string `json:"pollId"`
		AgentID string `json:"agentId"`
		Option  string `json:"option"`
		Close   bool   `json:"close,omitempty"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, invalidParams("invalid params")
	}
	if err := s.guard.Assert(ctx, req.AgentID); err != nil {
		return nil, rpcError(err)
	}
	if req.Close {
		poll, err := s.polls.Close(req.PollID, req.AgentID)
		if err != nil {
			return nil, rpcError(err)
		}
		return map[string]any{"poll": poll, "tally": poll.Tally()}, nil
	}
	if err := s.polls.Vote(req.PollID, req.AgentID, req.Option); err != nil {
		return nil, rpcError(err)
	}
	return map[string]bool{"recorded": true}, nil
}

func (s *Server) handlePollGet(_ context.Context, params json.RawMessage) (any, *jsonrpc.RPCError) {
	var req struct {
		PollID string `json:"pollId"`
	}
	if err := json.Unmarshal(params, &req); err != nil || req.PollID == "" {
		return nil, invalidParams("pollId required")
	}
	poll, err := s.polls.Get(req.PollID)
	if err != nil {
		return nil, rpcError(err)
	}
	return map[string]any{"poll": poll, "tally": poll.Tally()}, nil
}

func (s *Server) handleReviewSubmit(ctx context.Context, params json.RawMessage) (any, *jsonrpc.RPCError) {
	var req struct {
		From     string `json:"from"`
		Reviewer string `json:"reviewer"`
		Subject  string `json:"subject"`
		Details  string `json:"details,omitempty"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, invalidParams("invalid params")
	}
	if err := s.guard.Assert(ctx, req.From); err != nil {
		return nil, rpcError(err)
	}
	review, err := s.reviews.Request(req.From, req.Reviewer, req.Subject, req.Details)
	if err != nil {
		return nil, rpcError(err)
	}
	return review, nil
}

func (s *Server) handleReviewRespond(ctx context.Context, params json.RawMessage) (any, *jsonrpc.RPCError) {
	var req struct {
		ReviewID string               `json:"reviewId"`
		AgentID  string               `json:"agentId"`
		Verdict  collab.ReviewVerdict `json:"verdict"`
		Feedback string               `json:"feedback,omitempty"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, invalidParams("invalid params")
	}
	if err := s.guard.Assert(ctx, req.AgentID); err != nil {
		return nil, rpcError(err)
	}
	review, err := s.reviews.Respond(req.ReviewID, req.AgentID, req.Verdict, req.Feedback)
	if err != nil {
		return nil, rpcError(err)
	}
	return review, nil
}

func (s *Server) handleReviewGet(_ context.Context, params json.RawMessage) (any, *jsonrpc.RPCError) {
	var req struct {
		AgentID string `json:"agentId,omitempty"`
	}
	_ = json.Unmarshal(params, &req)
	return s.reviews.List(req.AgentID), nil
}

// handleStandup aggregates a cross-team status report: active debates,
// delegation load and recent run outcomes.
func (s *Server) handleStandup(_ context.Context, _ json.RawMessage) (any, *jsonrpc.RPCError) {
	debating := s.sessions.List(collab.StatusDebating, 0, 0)
	activeTopics := make([]map[string]any, 0, len(debating))
	for _, session := range debating {
		open := 0
		for _, d := range session.Decisions {
			if d.Open() {
				open++
			}
		}
		activeTopics = append(activeTopics, map[string]any{
			"sessionKey":    session.SessionKey,
			"topic":         session.Topic,
			"roundCount":    session.RoundCount,
			"openDecisions": open,
		})
	}

	runs := s.registry.List()
	recentRuns := make([]map[string]any, 0, len(runs))
	for _, run := range runs {
		recentRuns = append(recentRuns, map[string]any{
			"runId":   run.RunID,
			"agentId": run.AgentID,
			"label":   run.Label,
			"status":  run.Status,
			"outcome": run.Outcome,
		})
	}

	return map[string]any{
		"generatedAt":    time.Now().UTC(),
		"activeDebates":  activeTopics,
		"delegations":    s.delegations.Stats(),
		"pendingReviews": len(s.reviews.List("")),
		"runs":           recentRuns,
	}, nil
}
