package cli

import (
	"bufio"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collab-hub/internal/jsonrpc"
	"collab-hub/internal/transport"
)

func TestClientCallHTTP(t *testing.T) {
	var gotAgent, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotAgent = req.Header.Get(transport.AgentHeader)
		var rpcReq jsonrpc.Request
		require.NoError(t, json.NewDecoder(req.Body).Decode(&rpcReq))
		gotMethod = rpcReq.Method
		_ = json.NewEncoder(w).Encode(jsonrpc.Response{
			JSONRPC: "2.0",
			Result:  map[string]string{"status": "ok"},
			ID:      rpcReq.ID,
		})
	}))
	defer srv.Close()

	client := &Client{BaseURL: srv.URL, AgentID: "architect", http: srv.Client()}
	result, err := client.Call("hub/status", nil)
	require.NoError(t, err)
	assert.Equal(t, "architect", gotAgent)
	assert.Equal(t, "hub/status", gotMethod)
	assert.Contains(t, string(result), `"status":"ok"`)
}

func TestClientCallHTTPSurfacesRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(jsonrpc.Response{
			JSONRPC: "2.0",
			Error:   &jsonrpc.RPCError{Code: jsonrpc.ErrUnauthorized, Message: "not authorized to act as architect"},
			ID:      1,
		})
	}))
	defer srv.Close()

	client := &Client{BaseURL: srv.URL, http: srv.Client()}
	_, err := client.Call("collab.session.init", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not authorized")
	assert.Contains(t, err.Error(), "-32003")
}

func TestClientCallUnixSendsHelloFirst(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "hub.sock")
	ln, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	defer ln.Close()

	methods := make(chan string, 2)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			var req jsonrpc.Request
			if json.Unmarshal(scanner.Bytes(), &req) != nil {
				return
			}
			methods <- req.Method
			resp, _ := json.Marshal(jsonrpc.Response{JSONRPC: "2.0", Result: map[string]string{}, ID: req.ID})
			_, _ = conn.Write(append(resp, '\n'))
		}
	}()

	client := &Client{SocketPath: socketPath, AgentID: "worker"}
	_, err = client.Call("collab.standup", nil)
	require.NoError(t, err)
	assert.Equal(t, transport.HelloMethod, <-methods)
	assert.Equal(t, "collab.standup", <-methods)
}
