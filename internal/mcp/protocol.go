/*-------------------------------------------------------------------------
 *
 * protocol.go
 *    MCP JSON-RPC 2.0 message types
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/mcp/protocol.go
 *
 *-------------------------------------------------------------------------
 */

package mcp

import (
	"bytes"
	"encoding/json"
	"strings"
)

/* ProtocolVersion is the MCP revision this client speaks */
const ProtocolVersion = "2025-03-26"

/* HTTP headers used by the streamable HTTP transport */
const (
	HeaderSessionID       = "Mcp-Session-Id"
	HeaderProtocolVersion = "MCP-Protocol-Version"
)

/* JSON-RPC methods */
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodToolsList   = "tools/list"
	MethodToolsCall   = "tools/call"
)

/* JSONRPCRequest is a request or, without ID, a notification */
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

/* JSONRPCError is the error member of a response */
type JSONRPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

/* JSONRPCResponse is a response frame */
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

/* Implementation identifies a client or server */
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

/* InitializeParams are sent with initialize */
type InitializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ClientInfo      Implementation         `json:"clientInfo"`
}

/* InitializeResult is returned by initialize */
type InitializeResult struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities,omitempty"`
	ServerInfo      Implementation         `json:"serverInfo"`
	Instructions    string                 `json:"instructions,omitempty"`
}

/* ToolSchema describes one tool exposed by a server */
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
	/* ApprovalRequiredFields is derived locally, never sent by servers */
	ApprovalRequiredFields []string `json:"-"`
}

/* ListToolsParams pages through tools/list */
type ListToolsParams struct {
	Cursor string `json:"cursor,omitempty"`
}

/* ListToolsResult is returned by tools/list */
type ListToolsResult struct {
	Tools      []ToolSchema `json:"tools"`
	NextCursor string       `json:"nextCursor,omitempty"`
}

/* CallToolParams are sent with tools/call */
type CallToolParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

/* Content is one content block of a tool result */
type Content struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	Data     string          `json:"data,omitempty"`
	MimeType string          `json:"mimeType,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
}

/* CallToolResult is the normalized result of tools/call */
type CallToolResult struct {
	Content           []Content       `json:"content"`
	StructuredContent json.RawMessage `json:"structuredContent,omitempty"`
	IsError           bool            `json:"isError,omitempty"`
}

/* Text joins the text blocks of the result */
func (r *CallToolResult) Text() string {
	if r == nil {
		return ""
	}
	parts := make([]string, 0, len(r.Content))
	for _, c := range r.Content {
		switch c.Type {
		case "text":
			parts = append(parts, c.Text)
		case "resource":
			parts = append(parts, string(c.Resource))
		case "image", "audio":
			parts = append(parts, "["+c.Type+" "+c.MimeType+"]")
		}
	}
	if len(parts) == 0 && len(r.StructuredContent) > 0 {
		return string(r.StructuredContent)
	}
	return strings.Join(parts, "\n")
}

/* TextResult builds a successful text result */
func TextResult(text string) *CallToolResult {
	return &CallToolResult{Content: []Content{{Type: "text", Text: text}}}
}

/* ErrorResult builds an error-content result */
func ErrorResult(text string) *CallToolResult {
	return &CallToolResult{Content: []Content{{Type: "text", Text: text}}, IsError: true}
}

func idsEqual(a, b json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b))
}
