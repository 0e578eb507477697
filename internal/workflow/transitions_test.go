/*-------------------------------------------------------------------------
 *
 * transitions_test.go
 *    Tests for the plan state machine and turn helpers
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/workflow/transitions_test.go
 *
 *-------------------------------------------------------------------------
 */

package workflow

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurondb/NeuronBoard/internal/db"
	"github.com/neurondb/NeuronBoard/internal/reliability"
)

func TestCanTransition(t *testing.T) {
	statuses := []db.PlanStatus{
		db.PlanStatusPlanning,
		db.PlanStatusExecuting,
		db.PlanStatusCheckpoint,
		db.PlanStatusCompleted,
		db.PlanStatusFailed,
	}
	allowed := map[string]bool{
		"planning->executing":   true,
		"planning->failed":      true,
		"executing->checkpoint": true,
		"executing->completed":  true,
		"executing->failed":     true,
		"checkpoint->executing": true,
		"checkpoint->failed":    true,
	}
	for _, from := range statuses {
		for _, to := range statuses {
			edge := fmt.Sprintf("%s->%s", from, to)
			t.Run(edge, func(t *testing.T) {
				assert.Equal(t, allowed[edge], CanTransition(from, to))
			})
		}
	}
}

func TestCloseDanglingCalls(t *testing.T) {
	now := time.Now().UTC()
	history := []db.Turn{
		{Role: db.RoleUser, Content: "go"},
		{Role: db.RoleAssistant, ToolCalls: []db.ToolCall{{ID: "a", Name: "gh__list_prs"}, {ID: "b", Name: "gh__merge_pr"}}},
		{Role: db.RoleTool, ToolResult: &db.ToolResult{ToolCallID: "a", Name: "gh__list_prs", Content: "[]"}},
	}

	out := closeDanglingCalls(history, now)
	require.Len(t, out, 4)
	require.Len(t, history, 3)
	closed := out[3].ToolResult
	require.NotNil(t, closed)
	assert.Equal(t, "b", closed.ToolCallID)
	assert.True(t, closed.IsError)

	complete := closeDanglingCalls(out, now)
	assert.Len(t, complete, 4)

	plain := []db.Turn{{Role: db.RoleUser, Content: "go"}, {Role: db.RoleAssistant, Content: "done"}}
	assert.Equal(t, plain, closeDanglingCalls(plain, now))
	assert.Empty(t, closeDanglingCalls(nil, now))
}

func TestApplyUpdatePlan(t *testing.T) {
	pr := &progress{}
	res := applyUpdatePlan(pr, db.ToolCall{ID: "u", Name: BuiltinUpdatePlan, Arguments: map[string]interface{}{
		"steps": []interface{}{
			map[string]interface{}{"title": "inspect"},
			map[string]interface{}{"id": "ship", "title": "ship", "status": "bogus"},
		},
		"current_step_index": float64(9),
	}})
	assert.False(t, res.IsError)
	assert.Equal(t, "Plan updated: 2 steps, current step 2 (ship).", res.Content)
	require.Len(t, pr.steps, 2)
	assert.Equal(t, "step-1", pr.steps[0].ID)
	assert.Equal(t, "ship", pr.steps[1].ID)
	assert.Equal(t, "pending", pr.steps[1].Status)
	assert.Equal(t, 1, pr.stepIndex)
	assert.True(t, pr.stepsChanged)

	res = applyUpdatePlan(pr, db.ToolCall{ID: "v", Arguments: map[string]interface{}{"current_step_index": 0}})
	assert.Equal(t, "Plan updated: 2 steps, current step 1 (inspect).", res.Content)

	res = applyUpdatePlan(pr, db.ToolCall{ID: "w", Arguments: map[string]interface{}{"steps": "nope"}})
	assert.True(t, res.IsError)
	assert.Len(t, pr.steps, 2)

	res = applyUpdatePlan(pr, db.ToolCall{ID: "x", Arguments: map[string]interface{}{"steps": []interface{}{}}})
	assert.Equal(t, "Plan cleared.", res.Content)
	assert.Zero(t, pr.stepIndex)
}

func TestFailureKeepsCodeAndMessage(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
		code    reliability.Code
	}{
		{"configuration", reliability.NewConfigurationError(reliability.CodeNoAnthropic, MsgNoAnthropicCredential, errors.New("lookup")), MsgNoAnthropicCredential, reliability.CodeNoAnthropic},
		{"terminal", reliability.NewTerminalError(reliability.CodeTurnBudget, MsgTurnBudgetExhausted, nil), MsgTurnBudgetExhausted, reliability.CodeTurnBudget},
		{"plain", errors.New("disk full"), "disk full", reliability.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := failure(tt.err)
			assert.Equal(t, tt.message, r.Error)
			assert.Equal(t, string(tt.code), r.Code)
		})
	}
}
