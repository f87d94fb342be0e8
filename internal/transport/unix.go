// Package transport carries the hub's JSON-RPC surface over a unix socket
// and HTTP. Caller identity is established per connection (unix hello) or
// per request (X-Agent-Id header) and travels in the request context.
package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"

	"go.uber.org/zap"

	"collab-hub/internal/hub"
	"collab-hub/internal/identity"
	"collab-hub/internal/jsonrpc"
)

// HelloMethod binds an agent identity to the connection; it must be the
// first call on a socket before any identity-checked method.
const HelloMethod = "hub/hello"

type UnixTransport struct {
	cfg    hub.Config
	server *hub.Server
	log    *zap.Logger
	ln     net.Listener
}

func NewUnixTransport(cfg hub.Config, server *hub.Server, log *zap.Logger) *UnixTransport {
	return &UnixTransport{cfg: cfg, server: server, log: log}
}

func (t *UnixTransport) Start(ctx context.Context) error {
	_ = os.Remove(t.cfg.Socket.Path)
	ln, err := net.Listen("unix", t.cfg.Socket.Path)
	if err != nil {
		return err
	}
	t.ln = ln
	t.log.Info("unix transport listening", zap.String("path", t.cfg.Socket.Path))
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go t.handleConn(ctx, conn)
	}
}

func (t *UnixTransport) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	agentID := ""
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		var req jsonrpc.Request
		if err := json.Unmarshal(line, &req); err != nil {
			writeLine(conn, jsonrpc.Response{JSONRPC: "2.0", Error: &jsonrpc.RPCError{Code: jsonrpc.ErrParseError, Message: "Parse error"}})
			continue
		}
		if req.Method == HelloMethod {
			var params struct {
				AgentID string `json:"agentId"`
			}
			if err := json.Unmarshal(req.Params, &params); err != nil || params.AgentID == "" {
				writeLine(conn, jsonrpc.Response{JSONRPC: "2.0", Error: &jsonrpc.RPCError{Code: jsonrpc.ErrInvalidParams, Message: "agentId required"}, ID: req.ID})
				continue
			}
			agentID = params.AgentID
			writeLine(conn, jsonrpc.Response{JSONRPC: "2.0", Result: map[string]string{"agentId": agentID}, ID: req.ID})
			continue
		}

		reqCtx := ctx
		if agentID != "" {
			reqCtx = identity.WithAgent(ctx, agentID)
		}
		writeLine(conn, t.server.Handler().Handle(reqCtx, req))
	}
}

func writeLine(conn net.Conn, resp jsonrpc.Response) {
	data, _ := json.Marshal(resp)
	_, _ = conn.Write(append(data, '\n'))
}
