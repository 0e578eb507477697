/*-------------------------------------------------------------------------
 *
 * remote.go
 *    Remote tool servers over HTTP with JSON or event-stream responses
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/mcp/remote.go
 *
 *-------------------------------------------------------------------------
 */

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

/* RemoteConfig configures a remote client */
type RemoteConfig struct {
	Name       string
	URL        string
	Streamable bool
	Token      string
	HTTPClient *http.Client
}

/* NewRemoteClient creates a client for a remote tool server */
func NewRemoteClient(cfg RemoteConfig) Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	t := &httpTransport{
		url:        cfg.URL,
		streamable: cfg.Streamable,
		token:      cfg.Token,
		client:     httpClient,
	}
	return newSession(cfg.Name, t)
}

type httpTransport struct {
	url        string
	streamable bool
	token      string
	client     *http.Client

	mu        sync.RWMutex
	sessionID string
}

func (t *httpTransport) SessionID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sessionID
}

func (t *httpTransport) newRequest(ctx context.Context, method string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	if t.streamable {
		req.Header.Set("Accept", contentTypeJSON+", "+contentTypeSSE)
	} else {
		req.Header.Set("Accept", contentTypeJSON)
	}
	req.Header.Set(HeaderProtocolVersion, ProtocolVersion)
	if id := t.SessionID(); id != "" {
		req.Header.Set(HeaderSessionID, id)
	}
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	return req, nil
}

func (t *httpTransport) post(ctx context.Context, rpc *JSONRPCRequest) (*http.Response, error) {
	body, err := json.Marshal(rpc)
	if err != nil {
		return nil, fmt.Errorf("request encode failed: method='%s', error=%w", rpc.Method, err)
	}
	req, err := t.newRequest(ctx, http.MethodPost, body)
	if err != nil {
		return nil, &TransportError{Op: rpc.Method, URL: t.url, Err: err}
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: rpc.Method, URL: t.url, Err: err}
	}

	/* Session affinity: absence of the header means a stateless server */
	if id := resp.Header.Get(HeaderSessionID); id != "" {
		t.mu.Lock()
		t.sessionID = id
		t.mu.Unlock()
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &TransportError{
			Op:         rpc.Method,
			URL:        t.url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: body='%s'", bytes.TrimSpace(snippet)),
		}
	}
	return resp, nil
}

func (t *httpTransport) roundTrip(ctx context.Context, rpc *JSONRPCRequest) (*JSONRPCResponse, error) {
	resp, err := t.post(ctx, rpc)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out, err := DecodeResponse(rpc.Method, resp.Header.Get("Content-Type"), resp.Body, rpc.ID)
	if te, ok := err.(*TransportError); ok && te.URL == "" {
		te.URL = t.url
	}
	return out, err
}

func (t *httpTransport) notify(ctx context.Context, rpc *JSONRPCRequest) error {
	resp, err := t.post(ctx, rpc)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	return resp.Body.Close()
}

/* close ends the server side session, if one was issued */
func (t *httpTransport) close() error {
	id := t.SessionID()
	if id == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := t.newRequest(ctx, http.MethodDelete, nil)
	if err != nil {
		return err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return &TransportError{Op: "close", URL: t.url, Err: err}
	}
	resp.Body.Close()

	t.mu.Lock()
	t.sessionID = ""
	t.mu.Unlock()
	return nil
}
