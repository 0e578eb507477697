/*-------------------------------------------------------------------------
 *
 * queries_test.go
 *    Query tests against an in-memory SQLite database
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/db/queries_test.go
 *
 *-------------------------------------------------------------------------
 */

package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueries(t *testing.T) *Queries {
	t.Helper()
	database, err := NewDBWithRetry(DriverSQLite, ":memory:", PoolConfig{}, 1, time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate(context.Background()))
	return NewQueriesFor(database)
}

func TestPlanLifecycle(t *testing.T) {
	ctx := context.Background()
	q := newTestQueries(t)

	plan := &WorkflowPlan{
		TaskID:          "task-1",
		ProjectID:       "proj-1",
		Status:          PlanStatusPlanning,
		TaskDescription: "triage the inbox",
		ConversationHistory: []Turn{
			{Role: RoleUser, Content: "triage the inbox"},
		},
	}
	require.NoError(t, q.CreatePlan(ctx, plan))
	require.NotEqual(t, uuid.Nil, plan.ID)

	got, err := q.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, PlanStatusPlanning, got.Status)
	assert.Equal(t, "proj-1", got.ProjectID)
	require.Len(t, got.ConversationHistory, 1)
	assert.Nil(t, got.CheckpointData)
	assert.Nil(t, got.Result)

	executing := PlanStatusExecuting
	checkpoint := PlanStatusCheckpoint
	_, err = q.UpdatePlan(ctx, plan.ID, &PlanUpdate{Status: &executing})
	require.NoError(t, err)

	cp := &CheckpointData{
		Reason:         CheckpointReasonApproval,
		ToolCall:       ToolCall{ID: "call-1", Name: "github__merge", Arguments: map[string]interface{}{"branch": "main"}},
		ApprovalFields: []string{"branch"},
		RequestedAt:    time.Now().UTC(),
	}
	got, err = q.UpdatePlan(ctx, plan.ID, &PlanUpdate{Status: &checkpoint, CheckpointData: cp})
	require.NoError(t, err)
	require.NotNil(t, got.CheckpointData)
	assert.Equal(t, "github__merge", got.CheckpointData.ToolCall.Name)
	assert.Equal(t, []string{"branch"}, got.CheckpointData.ApprovalFields)

	failed := PlanStatusFailed
	now := time.Now().UTC()
	got, err = q.UpdatePlan(ctx, plan.ID, &PlanUpdate{
		Status:          &failed,
		ClearCheckpoint: true,
		Result:          &PlanResult{Error: "Cancelled by user"},
		CompletedAt:     &now,
	})
	require.NoError(t, err)
	assert.Equal(t, PlanStatusFailed, got.Status)
	assert.Nil(t, got.CheckpointData)
	require.NotNil(t, got.Result)
	assert.Equal(t, "Cancelled by user", got.Result.Error)
	assert.NotNil(t, got.CompletedAt)
}

func TestCreatePlanRejectsSecondActivePlanForTask(t *testing.T) {
	ctx := context.Background()
	q := newTestQueries(t)

	first := &WorkflowPlan{TaskID: "task-9", ProjectID: "p", Status: PlanStatusExecuting}
	require.NoError(t, q.CreatePlan(ctx, first))

	second := &WorkflowPlan{TaskID: "task-9", ProjectID: "p", Status: PlanStatusPlanning}
	err := q.CreatePlan(ctx, second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrActivePlanExists))

	completed := PlanStatusCompleted
	_, err = q.UpdatePlan(ctx, first.ID, &PlanUpdate{Status: &completed})
	require.NoError(t, err)

	third := &WorkflowPlan{TaskID: "task-9", ProjectID: "p", Status: PlanStatusPlanning}
	assert.NoError(t, q.CreatePlan(ctx, third))
}

func TestGetPlanNotFound(t *testing.T) {
	q := newTestQueries(t)
	_, err := q.GetPlan(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListPlansByStatus(t *testing.T) {
	ctx := context.Background()
	q := newTestQueries(t)

	for i, status := range []PlanStatus{PlanStatusExecuting, PlanStatusCheckpoint, PlanStatusCompleted} {
		p := &WorkflowPlan{TaskID: uuid.NewString(), ProjectID: "p", Status: status}
		p.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		require.NoError(t, q.CreatePlan(ctx, p))
	}

	plans, err := q.ListPlansByStatus(ctx, PlanStatusExecuting, PlanStatusCheckpoint)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, PlanStatusExecuting, plans[0].Status)
	assert.Equal(t, PlanStatusCheckpoint, plans[1].Status)
}

func TestLogsPagination(t *testing.T) {
	ctx := context.Background()
	q := newTestQueries(t)

	plan := &WorkflowPlan{TaskID: "t", ProjectID: "p", Status: PlanStatusExecuting}
	require.NoError(t, q.CreatePlan(ctx, plan))

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, q.AppendLog(ctx, &WorkflowLog{
			PlanID:    plan.ID,
			Timestamp: base.Add(time.Duration(i) * time.Millisecond),
			Level:     LogLevelInfo,
			Message:   string(rune('a' + i)),
			Metadata:  map[string]interface{}{"i": i},
		}))
	}

	page, total, err := q.ListLogs(ctx, plan.ID, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "b", page[0].Message)
	assert.Equal(t, "c", page[1].Message)
	assert.EqualValues(t, 1, page[0].Metadata["i"])
}

func TestToolServerRoundTrip(t *testing.T) {
	ctx := context.Background()
	q := newTestQueries(t)

	s := &ToolServer{
		ProjectID:     "p",
		Name:          "linear",
		Transport:     TransportRemote,
		Streamable:    true,
		URL:           "https://mcp.linear.example/mcp",
		Scopes:        StringList{"read", "write"},
		ApprovalRules: ApprovalRules{"create_issue": {"assignee"}},
		Enabled:       true,
	}
	require.NoError(t, q.CreateToolServer(ctx, s))
	require.NoError(t, q.UpdateToolServerStatus(ctx, s.ID, ServerStatusError, "dial failed"))
	require.NoError(t, q.UpdateToolServerAuth(ctx, s.ID, AuthTypeOAuth, "linear"))

	servers, err := q.ListToolServers(ctx, "p")
	require.NoError(t, err)
	require.Len(t, servers, 1)
	got := servers[0]
	assert.Equal(t, s.ID, got.ID)
	assert.True(t, got.Streamable)
	assert.True(t, got.Enabled)
	assert.Equal(t, ServerStatusError, got.Status)
	assert.Equal(t, "dial failed", got.LastError)
	assert.Equal(t, AuthTypeOAuth, got.AuthType)
	assert.Equal(t, StringList{"read", "write"}, got.Scopes)
	assert.Equal(t, []string{"assignee"}, got.ApprovalRules["create_issue"])
}

func TestPendingAuthorizationIsSingleUse(t *testing.T) {
	ctx := context.Background()
	q := newTestQueries(t)

	s := &ToolServer{ProjectID: "p", Name: "gh", Transport: TransportRemote, URL: "https://x", Enabled: true}
	require.NoError(t, q.CreateToolServer(ctx, s))

	pending := &PendingAuthorization{
		Nonce:        "n-1",
		ServerID:     s.ID,
		ProjectID:    "p",
		Provider:     "github",
		CodeVerifier: "verifier",
		RedirectURI:  "https://board/callback",
		ExpiresAt:    time.Now().UTC().Add(time.Minute),
	}
	require.NoError(t, q.CreatePendingAuthorization(ctx, pending))

	got, err := q.ConsumePendingAuthorization(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, "verifier", got.CodeVerifier)
	assert.Equal(t, s.ID, got.ServerID)

	_, err = q.ConsumePendingAuthorization(ctx, "n-1")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSweepExpiredAuthorizations(t *testing.T) {
	ctx := context.Background()
	q := newTestQueries(t)

	s := &ToolServer{ProjectID: "p", Name: "gh", Transport: TransportRemote, URL: "https://x", Enabled: true}
	require.NoError(t, q.CreateToolServer(ctx, s))

	now := time.Now().UTC()
	require.NoError(t, q.CreatePendingAuthorization(ctx, &PendingAuthorization{
		Nonce: "old", ServerID: s.ID, ProjectID: "p", Provider: "github", CodeVerifier: "v",
		RedirectURI: "r", ExpiresAt: now.Add(-time.Hour),
	}))
	require.NoError(t, q.CreatePendingAuthorization(ctx, &PendingAuthorization{
		Nonce: "fresh", ServerID: s.ID, ProjectID: "p", Provider: "github", CodeVerifier: "v",
		RedirectURI: "r", ExpiresAt: now.Add(time.Hour),
	}))

	n, err := q.SweepExpiredAuthorizations(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = q.ConsumePendingAuthorization(ctx, "fresh")
	assert.NoError(t, err)
}

func TestCredentialUpsert(t *testing.T) {
	ctx := context.Background()
	q := newTestQueries(t)

	require.NoError(t, q.UpsertCredential(ctx, &StoredCredential{ProjectID: "p", Kind: "tool_server", Ref: "gh", SecretEnc: "one"}))
	require.NoError(t, q.UpsertCredential(ctx, &StoredCredential{ProjectID: "p", Kind: "tool_server", Ref: "gh", SecretEnc: "two", Account: "octocat"}))

	c, err := q.GetCredential(ctx, "p", "tool_server", "gh")
	require.NoError(t, err)
	assert.Equal(t, "two", c.SecretEnc)
	assert.Equal(t, "octocat", c.Account)
	assert.Nil(t, c.ExpiresAt)

	_, err = q.GetCredential(ctx, "p", "anthropic", "")
	assert.True(t, errors.Is(err, ErrNotFound))
}
