/*-------------------------------------------------------------------------
 *
 * hosted_test.go
 *    Tests for in-process tool servers
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/mcp/hosted_test.go
 *
 *-------------------------------------------------------------------------
 */

package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurondb/NeuronBoard/internal/board"
	"github.com/neurondb/NeuronBoard/internal/reliability"
)

type fakeBoard struct {
	statusUpdates map[string]string
}

func (f *fakeBoard) GetTask(ctx context.Context, taskID string) (*board.Task, error) {
	return &board.Task{ID: taskID, Title: "Fix login", Status: "todo"}, nil
}

func (f *fakeBoard) ListTasks(ctx context.Context, projectID, status string) ([]board.Task, error) {
	return nil, nil
}

func (f *fakeBoard) CreateTask(ctx context.Context, projectID string, req board.CreateTaskRequest) (*board.Task, error) {
	return &board.Task{ID: "T-9", ProjectID: projectID, Title: req.Title}, nil
}

func (f *fakeBoard) UpdateTaskStatus(ctx context.Context, taskID, status string) (*board.Task, error) {
	f.statusUpdates[taskID] = status
	return &board.Task{ID: taskID, Status: status}, nil
}

func (f *fakeBoard) AddComment(ctx context.Context, taskID, body string) (*board.Comment, error) {
	return &board.Comment{ID: "c-1", TaskID: taskID, Body: body}, nil
}

func TestHostedBoardServer(t *testing.T) {
	fb := &fakeBoard{statusUpdates: map[string]string{}}
	client, err := NewHostedClient("board", "board", HostedDeps{ProjectID: "P", Board: fb})
	require.NoError(t, err)
	ctx := context.Background()

	tools, err := client.ListTools(ctx)
	require.NoError(t, err)

	byName := map[string]ToolSchema{}
	for _, tool := range tools {
		byName[tool.Name] = tool
	}
	require.Contains(t, byName, "update_task_status")
	require.Contains(t, byName, "get_task")

	var schema struct {
		Properties map[string]map[string]interface{} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(byName["update_task_status"].InputSchema, &schema))
	assert.Equal(t, true, schema.Properties["status"][ApprovalRequiredKey])
	assert.Nil(t, schema.Properties["task_id"][ApprovalRequiredKey])

	result, err := client.CallTool(ctx, "update_task_status", map[string]interface{}{"task_id": "T-1", "status": "done"})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "done", fb.statusUpdates["T-1"])

	result, err = client.CallTool(ctx, "get_task", map[string]interface{}{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHostedUnknownToolIsNormalized(t *testing.T) {
	client, err := NewHostedClient("board", "board", HostedDeps{Board: &fakeBoard{}})
	require.NoError(t, err)

	result := Invoke(context.Background(), client, "board", "drop_database", nil)
	assert.True(t, result.IsError)
}

func TestHostedUnknownKind(t *testing.T) {
	_, err := NewHostedClient("x", "shell", HostedDeps{})
	require.Error(t, err)
	assert.Equal(t, reliability.CodeUnknownHostedKind, reliability.CodeOf(err))
	assert.True(t, reliability.IsConfiguration(err))
}

func TestHostedWebFetch(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Release notes</title></head><body><article>
			<h1>Release notes</h1>
			<p>Version 2 ships the new checkpoint flow for agents. It lets reviewers approve sensitive actions before they run.</p>
			<p>Operators can resume a finished plan with feedback, which creates a fresh plan seeded with the old history.</p>
			<script>alert(1)</script>
		</article></body></html>`))
	}))
	defer page.Close()

	client, err := NewHostedClient("web", "web", HostedDeps{HTTPClient: page.Client()})
	require.NoError(t, err)

	result, err := client.CallTool(context.Background(), "fetch_url", map[string]interface{}{"url": page.URL})
	require.NoError(t, err)
	require.False(t, result.IsError, result.Text())
	assert.Contains(t, result.Text(), "checkpoint flow")
	assert.NotContains(t, result.Text(), "<script>")

	result, err = client.CallTool(context.Background(), "fetch_url", map[string]interface{}{"url": "ftp://example.com"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
