/*-------------------------------------------------------------------------
 *
 * client_test.go
 *    Tests for the board API client
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/board/client_test.go
 *
 *-------------------------------------------------------------------------
 */

package board

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient(t *testing.T) {
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/tasks/T-1", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(Task{ID: "T-1", Title: "Fix login", Status: "todo"})
		case http.MethodPatch:
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			json.NewEncoder(w).Encode(Task{ID: "T-1", Title: "Fix login", Status: body["status"]})
		}
	})
	mux.HandleFunc("/api/v1/tasks/T-1/comments", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		json.NewEncoder(w).Encode(Comment{ID: "c-1", TaskID: "T-1", Author: body["author"], Body: body["body"]})
	})
	mux.HandleFunc("/api/v1/projects/P/tasks", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "done", r.URL.Query().Get("status"))
		json.NewEncoder(w).Encode([]Task{{ID: "T-2", Status: "done"}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", "secret", time.Second)
	ctx := context.Background()

	task, err := c.GetTask(ctx, "T-1")
	require.NoError(t, err)
	assert.Equal(t, "Fix login", task.Title)
	assert.Equal(t, "Bearer secret", gotAuth)

	task, err = c.UpdateTaskStatus(ctx, "T-1", "in_review")
	require.NoError(t, err)
	assert.Equal(t, "in_review", task.Status)

	comment, err := c.AddComment(ctx, "T-1", "looks good")
	require.NoError(t, err)
	assert.Equal(t, "looks good", comment.Body)
	assert.Equal(t, "neuronboard-agent", comment.Author)

	tasks, err := c.ListTasks(ctx, "P", "done")
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	_, err = c.GetTask(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}
