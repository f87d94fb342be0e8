package jsonrpc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleDispatch(t *testing.T) {
	h := NewHandler()
	h.Register("echo", func(_ context.Context, params json.RawMessage) (any, *RPCError) {
		var p map[string]string
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &RPCError{Code: ErrInvalidParams, Message: "bad params"}
		}
		return p, nil
	})

	resp := h.Handle(context.Background(), Request{
		JSONRPC: "2.0",
		Method:  "echo",
		Params:  json.RawMessage(`{"k":"v"}`),
		ID:      1,
	})
	require.Nil(t, resp.Error)
	assert.Equal(t, map[string]string{"k": "v"}, resp.Result)
	assert.Equal(t, 1, resp.ID)
}

func TestHandleRejectsBadRequests(t *testing.T) {
	h := NewHandler()

	resp := h.Handle(context.Background(), Request{JSONRPC: "1.0", Method: "x"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrInvalidRequest, resp.Error.Code)

	resp = h.Handle(context.Background(), Request{JSONRPC: "2.0", Method: "nope"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrMethodNotFound, resp.Error.Code)
}

func TestHandleRaw(t *testing.T) {
	h := NewHandler()
	h.Register("ping", func(context.Context, json.RawMessage) (any, *RPCError) {
		return "pong", nil
	})

	resp := h.HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","method":"ping","id":7}`))
	require.Nil(t, resp.Error)
	assert.Equal(t, "pong", resp.Result)

	resp = h.HandleRaw(context.Background(), []byte(`{not json`))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrParseError, resp.Error.Code)
	assert.Nil(t, resp.ID)
}
