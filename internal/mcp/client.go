/*-------------------------------------------------------------------------
 *
 * client.go
 *    Tool protocol client shared by hosted and remote transports
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/mcp/client.go
 *
 *-------------------------------------------------------------------------
 */

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/neurondb/NeuronBoard/internal/metrics"
)

/* ClientName is sent as clientInfo during the handshake */
const ClientName = "neuronboard"

/* ClientVersion is sent as clientInfo during the handshake */
var ClientVersion = "1.0.0"

/* maxListPages bounds tools/list pagination */
const maxListPages = 64

/* Client talks to one tool server */
type Client interface {
	Initialize(ctx context.Context) (*InitializeResult, error)
	ListTools(ctx context.Context) ([]ToolSchema, error)
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*CallToolResult, error)
	Close() error
}

/* transport moves one JSON-RPC exchange */
type transport interface {
	/* roundTrip sends a request and returns the matching response */
	roundTrip(ctx context.Context, req *JSONRPCRequest) (*JSONRPCResponse, error)
	/* notify sends a notification without waiting for a result */
	notify(ctx context.Context, req *JSONRPCRequest) error
	close() error
}

/* session implements Client on top of a transport */
type session struct {
	name      string
	transport transport
	nextID    atomic.Int64

	mu          sync.Mutex
	initialized bool
	server      *InitializeResult
}

func newSession(name string, t transport) *session {
	return &session{name: name, transport: t}
}

func (s *session) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	req := &JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      json.RawMessage(strconv.FormatInt(s.nextID.Add(1), 10)),
		Method:  method,
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("request encode failed: method='%s', error=%w", method, err)
		}
		req.Params = raw
	}

	resp, err := s.transport.roundTrip(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if len(resp.Result) == 0 {
		return &ProtocolError{Method: method, Message: "response has neither result nor error"}
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return &ProtocolError{Method: method, Message: fmt.Sprintf("malformed result: %v", err)}
	}
	return nil
}

/* Initialize performs the initialize / notifications/initialized handshake */
func (s *session) Initialize(ctx context.Context) (*InitializeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return s.server, nil
	}

	params := InitializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    map[string]interface{}{},
		ClientInfo:      Implementation{Name: ClientName, Version: ClientVersion},
	}
	var result InitializeResult
	if err := s.call(ctx, MethodInitialize, params, &result); err != nil {
		return nil, err
	}

	if err := s.transport.notify(ctx, &JSONRPCRequest{JSONRPC: "2.0", Method: MethodInitialized}); err != nil {
		/* The handshake result stands; servers may ignore the notification */
		metrics.WarnWithContext(ctx, "Initialized notification failed", map[string]interface{}{
			"server": s.name,
			"error":  err.Error(),
		})
	}

	s.initialized = true
	s.server = &result
	return &result, nil
}

/* ListTools lists every tool, following nextCursor pagination */
func (s *session) ListTools(ctx context.Context) ([]ToolSchema, error) {
	if _, err := s.Initialize(ctx); err != nil {
		return nil, err
	}

	var tools []ToolSchema
	cursor := ""
	for page := 0; page < maxListPages; page++ {
		var params interface{}
		if cursor != "" {
			params = ListToolsParams{Cursor: cursor}
		}
		var result ListToolsResult
		if err := s.call(ctx, MethodToolsList, params, &result); err != nil {
			return nil, err
		}
		tools = append(tools, result.Tools...)
		if result.NextCursor == "" || result.NextCursor == cursor {
			return tools, nil
		}
		cursor = result.NextCursor
	}
	return tools, nil
}

/* CallTool invokes a tool once; it is never retried */
func (s *session) CallTool(ctx context.Context, name string, args map[string]interface{}) (*CallToolResult, error) {
	if _, err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	var result CallToolResult
	if err := s.call(ctx, MethodToolsCall, CallToolParams{Name: name, Arguments: args}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

/* Close releases the transport */
func (s *session) Close() error {
	return s.transport.close()
}

/*
 * Invoke calls a tool and folds every failure into an error-content
 * result. Callers never see protocol or transport errors from here.
 */
func Invoke(ctx context.Context, client Client, server, name string, args map[string]interface{}) *CallToolResult {
	start := time.Now()
	ctx, span := metrics.StartSpan(ctx, "mcp.call_tool")
	result, err := client.CallTool(ctx, name, args)
	metrics.EndSpan(span, err)

	status := "success"
	switch {
	case err != nil:
		status = "error"
		metrics.WarnWithContext(ctx, "Tool call failed", map[string]interface{}{
			"server": server,
			"tool":   name,
			"error":  err.Error(),
		})
		result = ErrorResult(fmt.Sprintf("tool '%s' failed: %v", name, err))
	case result == nil:
		status = "error"
		result = ErrorResult(fmt.Sprintf("tool '%s' returned no result", name))
	case result.IsError:
		status = "tool_error"
	}
	metrics.RecordToolCall(server, status, time.Since(start))
	return result
}
