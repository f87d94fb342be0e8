// Package jsonrpc is a minimal JSON-RPC 2.0 dispatcher shared by the unix
// socket and HTTP transports.
package jsonrpc

import (
	"context"
	"encoding/json"
)

type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, *RPCError)

type Handler struct {
	methods map[string]HandlerFunc
}

func NewHandler() *Handler {
	return &Handler{methods: make(map[string]HandlerFunc)}
}

func (h *Handler) Register(method string, fn HandlerFunc) {
	h.methods[method] = fn
}

// Methods returns the registered method names.
func (h *Handler) Methods() []string {
	names := make([]string, 0, len(h.methods))
	for name := range h.methods {
		names = append(names, name)
	}
	return names
}

func (h *Handler) Handle(ctx context.Context, req Request) Response {
	if req.JSONRPC != "2.0" || req.Method == "" {
		return Response{JSONRPC: "2.0", Error: &RPCError{Code: ErrInvalidRequest, Message: "Invalid Request"}, ID: req.ID}
	}
	fn, ok := h.methods[req.Method]
	if !ok {
		return Response{JSONRPC: "2.0", Error: &RPCError{Code: ErrMethodNotFound, Message: "Method not found"}, ID: req.ID}
	}
	result, rpcErr := fn(ctx, req.Params)
	if rpcErr != nil {
		return Response{JSONRPC: "2.0", Error: rpcErr, ID: req.ID}
	}
	return Response{JSONRPC: "2.0", Result: result, ID: req.ID}
}

// HandleRaw parses one request line or body and dispatches it. Malformed
// JSON yields a parse-error response with a null id.
func (h *Handler) HandleRaw(ctx context.Context, data []byte) Response {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Response{JSONRPC: "2.0", Error: &RPCError{Code: ErrParseError, Message: "Parse error"}}
	}
	return h.Handle(ctx, req)
}

// Error codes: the standard JSON-RPC range plus the engine's error taxonomy.
const (
	ErrParseError     = -32700
	ErrInvalidRequest = -32600
	ErrMethodNotFound = -32601
	ErrInvalidParams  = -32602
	ErrInternalError  = -32603

	// ErrNotFound covers missing sessions, decisions, delegations, polls and
	// reviews.
	ErrNotFound = -32001
	// ErrConflict covers writes against already-finalized state.
	ErrConflict = -32002
	// ErrUnauthorized covers identity mismatches and moderator/assignee
	// violations.
	ErrUnauthorized = -32003
	// ErrInsufficientDeliberation rejects finalize before the minimum rounds.
	ErrInsufficientDeliberation = -32004
)
