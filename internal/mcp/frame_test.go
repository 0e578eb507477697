/*-------------------------------------------------------------------------
 *
 * frame_test.go
 *    Tests for JSON and event-stream response decoding
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/mcp/frame_test.go
 *
 *-------------------------------------------------------------------------
 */

package mcp

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const callResult = `{"content":[{"type":"text","text":"hello"}],"isError":false}`

func decodeCall(t *testing.T, contentType, body string) *CallToolResult {
	t.Helper()
	resp, err := DecodeResponse(MethodToolsCall, contentType, strings.NewReader(body), json.RawMessage("7"))
	require.NoError(t, err)
	var out CallToolResult
	require.NoError(t, json.Unmarshal(resp.Result, &out))
	return &out
}

func TestJSONAndEventStreamDecodeEqually(t *testing.T) {
	frame := `{"jsonrpc":"2.0","id":7,"result":` + callResult + `}`

	fromJSON := decodeCall(t, "application/json", frame)
	fromSSE := decodeCall(t, "text/event-stream; charset=utf-8",
		"event: message\n"+
			"data: "+frame+"\n\n")

	assert.Equal(t, fromJSON, fromSSE)
	assert.Equal(t, "hello", fromSSE.Text())
}

func TestEventStreamSkipsForeignAndBrokenFrames(t *testing.T) {
	stream := strings.Join([]string{
		": keep-alive",
		"data: {not json",
		`data: {"jsonrpc":"2.0","method":"notifications/progress","params":{"progress":1}}`,
		`data: {"jsonrpc":"2.0","id":6,"result":{"content":[{"type":"text","text":"stale"}]}}`,
		"",
		`data: {"jsonrpc":"2.0","id":7,"result":` + callResult + `}`,
		`data: {"jsonrpc":"2.0","id":7,"result":{"content":[{"type":"text","text":"second"}]}}`,
		"",
	}, "\r\n")

	got := decodeCall(t, "text/event-stream", stream)
	assert.Equal(t, "hello", got.Text())
}

func TestEventStreamWithoutMatchIsTransportError(t *testing.T) {
	stream := `data: {"jsonrpc":"2.0","id":1,"result":{}}` + "\n\n"
	_, err := DecodeResponse(MethodToolsCall, "text/event-stream", strings.NewReader(stream), json.RawMessage("2"))
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
	assert.True(t, errors.Is(err, ErrStreamClosed))
}

func TestErrorFrameIsProtocolError(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{"json", "application/json", `{"jsonrpc":"2.0","id":3,"error":{"code":-32602,"message":"unknown tool"}}`},
		{"sse", "text/event-stream", `data: {"jsonrpc":"2.0","id":3,"error":{"code":-32602,"message":"unknown tool"}}` + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeResponse(MethodToolsCall, tt.contentType, strings.NewReader(tt.body), json.RawMessage("3"))
			var pe *ProtocolError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, -32602, pe.Code)
			assert.Equal(t, "unknown tool", pe.Message)
		})
	}
}

func TestEventStreamSkipsUnattributedErrorFrames(t *testing.T) {
	nullErr := `data: {"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"parse error"}}` + "\n\n"

	_, err := DecodeResponse(MethodToolsCall, "text/event-stream", strings.NewReader(nullErr), json.RawMessage("3"))
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
	assert.False(t, IsProtocolError(err))

	stream := nullErr + `data: {"jsonrpc":"2.0","id":3,"result":{"content":[{"type":"text","text":"done"}]}}` + "\n\n"
	resp, err := DecodeResponse(MethodToolsCall, "text/event-stream", strings.NewReader(stream), json.RawMessage("3"))
	require.NoError(t, err)
	assert.JSONEq(t, "3", string(resp.ID))
}

func TestMalformedJSONBodyIsProtocolError(t *testing.T) {
	_, err := DecodeResponse(MethodToolsList, "application/json", strings.NewReader("<html>"), json.RawMessage("1"))
	assert.True(t, IsProtocolError(err))
}
