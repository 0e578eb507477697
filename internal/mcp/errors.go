/*-------------------------------------------------------------------------
 *
 * errors.go
 *    Tool protocol and transport errors
 *
 * Both are absorbed into error-content results by Invoke.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/mcp/errors.go
 *
 *-------------------------------------------------------------------------
 */

package mcp

import (
	"errors"
	"fmt"
)

/* ProtocolError is a malformed response or a server supplied JSON-RPC error */
type ProtocolError struct {
	Method  string
	Code    int
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("tool protocol error: method='%s', code=%d, message='%s'", e.Method, e.Code, e.Message)
	}
	return fmt.Sprintf("tool protocol error: method='%s', message='%s'", e.Method, e.Message)
}

/* TransportError is a network or stream failure talking to a tool server */
type TransportError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("tool transport error: op='%s', url='%s', status=%d, error=%v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("tool transport error: op='%s', url='%s', error=%v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

/* ErrStreamClosed reports an event stream that ended before the matching frame */
var ErrStreamClosed = errors.New("event stream closed before matching response")

/* IsProtocolError reports whether err is a ProtocolError */
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

/* IsTransportError reports whether err is a TransportError */
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
