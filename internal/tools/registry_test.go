/*-------------------------------------------------------------------------
 *
 * registry_test.go
 *    Tests for the tool registry and approval gating
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/tools/registry_test.go
 *
 *-------------------------------------------------------------------------
 */

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurondb/NeuronBoard/internal/db"
	"github.com/neurondb/NeuronBoard/internal/mcp"
	"github.com/neurondb/NeuronBoard/internal/reliability"
)

type memServers struct {
	mu       sync.Mutex
	servers  []db.ToolServer
	statuses map[uuid.UUID]string
}

func (m *memServers) ListToolServers(ctx context.Context, projectID string) ([]db.ToolServer, error) {
	var out []db.ToolServer
	for _, s := range m.servers {
		if s.ProjectID == projectID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memServers) GetToolServer(ctx context.Context, id uuid.UUID) (*db.ToolServer, error) {
	for _, s := range m.servers {
		if s.ID == id {
			c := s
			return &c, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *memServers) UpdateToolServerStatus(ctx context.Context, id uuid.UUID, status, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[id] = status
	return nil
}

type fakeClient struct {
	mu    sync.Mutex
	tools []mcp.ToolSchema
	calls []string
}

func (f *fakeClient) Initialize(ctx context.Context) (*mcp.InitializeResult, error) {
	return &mcp.InitializeResult{ProtocolVersion: mcp.ProtocolVersion}, nil
}

func (f *fakeClient) ListTools(ctx context.Context) ([]mcp.ToolSchema, error) {
	return f.tools, nil
}

func (f *fakeClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return mcp.TextResult("ok:" + name), nil
}

func (f *fakeClient) Close() error { return nil }

type fakeDialer struct {
	clients map[string]*fakeClient
	fail    map[string]error
	dials   int
}

func (d *fakeDialer) Dial(ctx context.Context, server *db.ToolServer) (mcp.Client, error) {
	d.dials++
	if err := d.fail[server.Name]; err != nil {
		return nil, err
	}
	return d.clients[server.Name], nil
}

func githubTools() []mcp.ToolSchema {
	return []mcp.ToolSchema{
		{Name: "search", InputSchema: json.RawMessage(`{"type":"object","properties":{"q":{"type":"string"}}}`)},
		{Name: "merge", InputSchema: json.RawMessage(`{"type":"object","properties":{
			"branch":{"type":"string","x-approval-required":true},
			"message":{"type":"string"}}}`)},
		{Name: "comment"},
	}
}

func newTestRegistry(t *testing.T) (*Registry, *memServers, *fakeDialer) {
	t.Helper()
	gh := db.ToolServer{
		ID: uuid.New(), ProjectID: "p", Name: "github", Transport: db.TransportRemote, URL: "https://gh", Enabled: true,
		ApprovalRules: db.ApprovalRules{"comment": {"body"}},
	}
	off := db.ToolServer{ID: uuid.New(), ProjectID: "p", Name: "off", Transport: db.TransportRemote, URL: "https://off"}
	broken := db.ToolServer{ID: uuid.New(), ProjectID: "p", Name: "broken", Transport: db.TransportRemote, URL: "https://x", Enabled: true}

	store := &memServers{servers: []db.ToolServer{gh, off, broken}, statuses: map[uuid.UUID]string{}}
	dialer := &fakeDialer{
		clients: map[string]*fakeClient{"github": {tools: githubTools()}},
		fail:    map[string]error{"broken": errors.New("connection refused")},
	}
	return NewRegistry(store, dialer), store, dialer
}

func TestCatalogNamespacesAndMergesApprovalFields(t *testing.T) {
	reg, store, _ := newTestRegistry(t)
	ctx := context.Background()

	catalog, err := reg.Catalog(ctx, "p")
	require.NoError(t, err)
	require.Len(t, catalog, 3)

	byName := map[string]Tool{}
	for _, tool := range catalog {
		byName[tool.Name] = tool
	}
	assert.Equal(t, []string{"branch"}, byName["github__merge"].ApprovalFields)
	assert.Equal(t, []string{"body"}, byName["github__comment"].ApprovalFields)
	assert.Empty(t, byName["github__search"].ApprovalFields)
	assert.Equal(t, "object", byName["github__comment"].Parameters["type"])

	assert.Equal(t, db.ServerStatusConnected, store.statuses[store.servers[0].ID])
	assert.Equal(t, db.ServerStatusError, store.statuses[store.servers[2].ID])
	_, touched := store.statuses[store.servers[1].ID]
	assert.False(t, touched)
}

func TestGateIntersectsArgumentKeys(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		call     db.ToolCall
		required bool
		fields   []string
	}{
		{"flagged field present", db.ToolCall{Name: "github__merge", Arguments: map[string]interface{}{"branch": "main", "message": "m"}}, true, []string{"branch"}},
		{"flagged field absent", db.ToolCall{Name: "github__merge", Arguments: map[string]interface{}{"message": "m"}}, false, nil},
		{"rule field present", db.ToolCall{Name: "github__comment", Arguments: map[string]interface{}{"body": "hi"}}, true, []string{"body"}},
		{"no approval fields", db.ToolCall{Name: "github__search", Arguments: map[string]interface{}{"q": "x"}}, false, nil},
		{"unknown tool", db.ToolCall{Name: "nope__x", Arguments: map[string]interface{}{"branch": "main"}}, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := reg.Gate(ctx, "p", tt.call)
			assert.Equal(t, tt.required, d.Required)
			assert.Equal(t, tt.fields, d.Fields)
		})
	}
}

func TestGatedCallNeverReachesClientWithoutApproval(t *testing.T) {
	reg, _, dialer := newTestRegistry(t)
	ctx := context.Background()
	call := db.ToolCall{ID: "call-1", Name: "github__merge", Arguments: map[string]interface{}{"branch": "main"}}

	_, err := reg.Dispatch(ctx, "p", call, nil)
	assert.True(t, errors.Is(err, ErrApprovalRequired))

	_, err = reg.Dispatch(ctx, "p", call, &Approval{ToolCallID: "other"})
	assert.True(t, errors.Is(err, ErrApprovalRequired))
	assert.Empty(t, dialer.clients["github"].calls)

	result, err := reg.Dispatch(ctx, "p", call, &Approval{ToolCallID: "call-1"})
	require.NoError(t, err)
	assert.Equal(t, "ok:merge", result.Text())
	assert.Equal(t, []string{"merge"}, dialer.clients["github"].calls)
}

func TestDispatchUnknownToolIsErrorContent(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	result, err := reg.Dispatch(context.Background(), "p", db.ToolCall{ID: "c", Name: "github__delete_repo"}, nil)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestReconnectReplacesCache(t *testing.T) {
	reg, store, dialer := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Catalog(ctx, "p")
	require.NoError(t, err)
	dials := dialer.dials

	dialer.clients["github"] = &fakeClient{tools: []mcp.ToolSchema{{Name: "only"}}}
	catalog, err := reg.Catalog(ctx, "p")
	require.NoError(t, err)
	assert.Len(t, catalog, 3)
	assert.Equal(t, dials, dialer.dials)

	require.NoError(t, reg.Reconnect(ctx, "p", store.servers[0].ID))
	catalog, err = reg.Catalog(ctx, "p")
	require.NoError(t, err)
	require.Len(t, catalog, 1)
	assert.Equal(t, "github__only", catalog[0].Name)

	err = reg.Reconnect(ctx, "other-project", store.servers[0].ID)
	assert.True(t, errors.Is(err, db.ErrNotFound))
}

func TestMalformedSchemaIsTerminal(t *testing.T) {
	reg, _, dialer := newTestRegistry(t)
	dialer.clients["github"].tools = []mcp.ToolSchema{{Name: "bad", InputSchema: json.RawMessage(`["not","an","object"]`)}}

	_, err := reg.Catalog(context.Background(), "p")
	require.Error(t, err)
	assert.Equal(t, reliability.CodeBadToolSchema, reliability.CodeOf(err))
}

func TestSplitName(t *testing.T) {
	server, tool, ok := SplitName("board__update_task_status")
	assert.True(t, ok)
	assert.Equal(t, "board", server)
	assert.Equal(t, "update_task_status", tool)

	for _, bad := range []string{"plain", "__x", "x__"} {
		_, _, ok := SplitName(bad)
		assert.False(t, ok, bad)
	}
}

func TestReconnectDropsDeletedServer(t *testing.T) {
	reg, store, _ := newTestRegistry(t)
	ctx := context.Background()

	catalog, err := reg.Catalog(ctx, "p")
	require.NoError(t, err)
	require.Len(t, catalog, 3)

	deleted := store.servers[0].ID
	store.servers = store.servers[1:]

	err = reg.Reconnect(ctx, "p", deleted)
	assert.True(t, errors.Is(err, db.ErrNotFound))

	catalog, err = reg.Catalog(ctx, "p")
	require.NoError(t, err)
	assert.Empty(t, catalog)
}
