/*-------------------------------------------------------------------------
 *
 * builtins.go
 *    Engine-provided tools: update_plan and ask_human
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/workflow/builtins.go
 *
 *-------------------------------------------------------------------------
 */

package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/neurondb/NeuronBoard/internal/db"
	"github.com/neurondb/NeuronBoard/internal/llm"
)

/* Builtin tool names; they never contain the server separator */
const (
	BuiltinUpdatePlan = "update_plan"
	BuiltinAskHuman   = "ask_human"
)

var stepStatuses = map[string]bool{
	"pending":     true,
	"in_progress": true,
	"done":        true,
	"skipped":     true,
}

func builtinDefinitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        BuiltinUpdatePlan,
			Description: "Record or revise the ordered steps of your plan and mark the step you are working on.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"steps": map[string]interface{}{
						"type": "array",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"title":       map[string]interface{}{"type": "string"},
								"description": map[string]interface{}{"type": "string"},
								"status": map[string]interface{}{
									"type": "string",
									"enum": []string{"pending", "in_progress", "done", "skipped"},
								},
							},
							"required": []string{"title"},
						},
					},
					"current_step_index": map[string]interface{}{"type": "integer", "minimum": 0},
				},
			},
		},
		{
			Name:        BuiltinAskHuman,
			Description: "Ask the human a question and wait for the answer before continuing.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"question": map[string]interface{}{"type": "string"},
					"options": map[string]interface{}{
						"type":  "array",
						"items": map[string]interface{}{"type": "string"},
					},
				},
				"required": []string{"question"},
			},
		},
	}
}

/* applyUpdatePlan updates the steps held in pr and returns the call result */
func applyUpdatePlan(pr *progress, call db.ToolCall) db.ToolResult {
	result := db.ToolResult{ToolCallID: call.ID, Name: call.Name}

	steps := pr.steps
	if raw, ok := call.Arguments["steps"]; ok {
		items, ok := raw.([]interface{})
		if !ok {
			result.Content = "steps must be an array of objects"
			result.IsError = true
			return result
		}
		parsed := make([]db.PlanStep, 0, len(items))
		for i, item := range items {
			m, ok := item.(map[string]interface{})
			if !ok {
				result.Content = fmt.Sprintf("step %d must be an object", i)
				result.IsError = true
				return result
			}
			step := db.PlanStep{
				ID:          stringArg(m, "id"),
				Title:       stringArg(m, "title"),
				Description: stringArg(m, "description"),
				Status:      stringArg(m, "status"),
			}
			if step.ID == "" {
				step.ID = fmt.Sprintf("step-%d", i+1)
			}
			if !stepStatuses[step.Status] {
				step.Status = "pending"
			}
			parsed = append(parsed, step)
		}
		steps = parsed
	}

	index := pr.stepIndex
	if raw, ok := call.Arguments["current_step_index"]; ok {
		switch v := raw.(type) {
		case float64:
			index = int(v)
		case int:
			index = v
		}
	}
	if index < 0 || len(steps) == 0 {
		index = 0
	} else if index >= len(steps) {
		index = len(steps) - 1
	}

	pr.steps = steps
	pr.stepIndex = index
	pr.stepsChanged = true

	if len(steps) == 0 {
		result.Content = "Plan cleared."
		return result
	}
	result.Content = fmt.Sprintf("Plan updated: %d steps, current step %d (%s).", len(steps), index+1, steps[index].Title)
	return result
}

func askHumanCheckpoint(call db.ToolCall, remaining []db.ToolCall, now time.Time) *db.CheckpointData {
	cp := &db.CheckpointData{
		Reason:      db.CheckpointReasonQuestion,
		ToolCall:    call,
		Question:    strings.TrimSpace(stringArg(call.Arguments, "question")),
		Remaining:   remaining,
		RequestedAt: now,
	}
	if raw, ok := call.Arguments["options"].([]interface{}); ok {
		for _, o := range raw {
			if s, ok := o.(string); ok && s != "" {
				cp.Options = append(cp.Options, s)
			}
		}
	}
	return cp
}

func stringArg(m map[string]interface{}, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
