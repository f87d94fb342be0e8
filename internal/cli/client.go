package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"

	"collab-hub/internal/hub"
	"collab-hub/internal/jsonrpc"
	"collab-hub/internal/transport"
)

// Client speaks JSON-RPC to a running hub, over the unix socket by default or
// over HTTP when a base URL is given. The agent identity rides on the hello
// handshake (unix) or the X-Agent-Id header (HTTP).
type Client struct {
	SocketPath string
	BaseURL    string
	AgentID    string

	http *http.Client
}

func newClient() (*Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return &Client{
		SocketPath: cfg.Socket.Path,
		BaseURL:    httpFlag,
		AgentID:    agentFlag,
		http:       &http.Client{},
	}, nil
}

type rpcReply struct {
	Result json.RawMessage   `json:"result"`
	Error  *jsonrpc.RPCError `json:"error"`
}

func (c *Client) Call(method string, params any) (json.RawMessage, error) {
	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	req := jsonrpc.Request{JSONRPC: "2.0", Method: method, Params: raw, ID: 1}

	var reply rpcReply
	var err error
	if c.BaseURL != "" {
		reply, err = c.callHTTP(req)
	} else {
		reply, err = c.callUnix(req)
	}
	if err != nil {
		return nil, err
	}
	if reply.Error != nil {
		return nil, fmt.Errorf("%s (code %d)", reply.Error.Message, reply.Error.Code)
	}
	return reply.Result, nil
}

func (c *Client) callUnix(req jsonrpc.Request) (rpcReply, error) {
	conn, err := net.Dial("unix", c.SocketPath)
	if err != nil {
		return rpcReply{}, fmt.Errorf("hub not responding on %s: %w", c.SocketPath, err)
	}
	defer conn.Close()
	reader := bufio.NewReader(conn)

	if c.AgentID != "" {
		hello, err := json.Marshal(map[string]string{"agentId": c.AgentID})
		if err != nil {
			return rpcReply{}, err
		}
		helloReq := jsonrpc.Request{JSONRPC: "2.0", Method: transport.HelloMethod, Params: hello, ID: 0}
		reply, err := roundTrip(conn, reader, helloReq)
		if err != nil {
			return rpcReply{}, err
		}
		if reply.Error != nil {
			return rpcReply{}, fmt.Errorf("hello rejected: %s", reply.Error.Message)
		}
	}
	return roundTrip(conn, reader, req)
}

func roundTrip(conn net.Conn, reader *bufio.Reader, req jsonrpc.Request) (rpcReply, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return rpcReply{}, err
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		return rpcReply{}, err
	}
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return rpcReply{}, err
	}
	var reply rpcReply
	if err := json.Unmarshal(bytes.TrimSpace(line), &reply); err != nil {
		return rpcReply{}, err
	}
	return reply, nil
}

func (c *Client) callHTTP(req jsonrpc.Request) (rpcReply, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return rpcReply{}, err
	}
	httpReq, err := http.NewRequest(http.MethodPost, strings.TrimRight(c.BaseURL, "/")+"/", bytes.NewReader(body))
	if err != nil {
		return rpcReply{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.AgentID != "" {
		httpReq.Header.Set(transport.AgentHeader, c.AgentID)
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return rpcReply{}, fmt.Errorf("hub not responding at %s: %w", c.BaseURL, err)
	}
	defer resp.Body.Close()
	var reply rpcReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return rpcReply{}, err
	}
	return reply, nil
}

// hubBaseURL derives the HTTP base URL from the flag or the config.
func hubBaseURL(cfg hub.Config) string {
	if httpFlag != "" {
		return strings.TrimRight(httpFlag, "/")
	}
	return fmt.Sprintf("http://%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
}
