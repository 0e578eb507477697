/*-------------------------------------------------------------------------
 *
 * frame.go
 *    Response framing for JSON bodies and server-sent event streams
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/mcp/frame.go
 *
 *-------------------------------------------------------------------------
 */

package mcp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"strings"
)

const (
	contentTypeSSE  = "text/event-stream"
	contentTypeJSON = "application/json"

	/* maxFrameSize bounds a single SSE line */
	maxFrameSize = 8 * 1024 * 1024
)

/*
 * DecodeResponse reads the response to the request carrying id.
 *
 * For text/event-stream bodies each "data:" line is a candidate frame and
 * the first one whose id matches wins. Frames that fail to parse or belong
 * to another request are skipped. A stream that ends without a match is a
 * TransportError. Anything else is decoded as a single JSON body.
 *
 * A matching frame carrying an error object is returned as a ProtocolError.
 */
func DecodeResponse(method, contentType string, body io.Reader, id json.RawMessage) (*JSONRPCResponse, error) {
	if isEventStream(contentType) {
		return decodeEventStream(method, body, id)
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, &TransportError{Op: method, Err: fmt.Errorf("response read failed: %w", err)}
	}
	var resp JSONRPCResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &ProtocolError{Method: method, Message: fmt.Sprintf("malformed response body: %v", err)}
	}
	return checkResponse(method, &resp)
}

func decodeEventStream(method string, body io.Reader, id json.RawMessage) (*JSONRPCResponse, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)

	for scanner.Scan() {
		line := bytes.TrimRight(scanner.Bytes(), "\r")
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		payload := bytes.TrimSpace(line[len("data:"):])
		if len(payload) == 0 {
			continue
		}

		var resp JSONRPCResponse
		if err := json.Unmarshal(payload, &resp); err != nil {
			continue
		}
		if idsEqual(resp.ID, id) {
			return checkResponse(method, &resp)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &TransportError{Op: method, Err: fmt.Errorf("event stream read failed: %w", err)}
	}
	return nil, &TransportError{Op: method, Err: ErrStreamClosed}
}

func checkResponse(method string, resp *JSONRPCResponse) (*JSONRPCResponse, error) {
	if resp.Error != nil {
		return nil, &ProtocolError{Method: method, Code: resp.Error.Code, Message: resp.Error.Message}
	}
	return resp, nil
}

func isEventStream(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), contentTypeSSE)
	}
	return mediaType == contentTypeSSE
}
