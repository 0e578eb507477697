/*-------------------------------------------------------------------------
 *
 * workflow_models.go
 *    Workflow plan, log and conversation models
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/db/workflow_models.go
 *
 *-------------------------------------------------------------------------
 */

package db

import (
	"time"

	"github.com/google/uuid"
)

/* PlanStatus is the lifecycle state of a workflow plan */
type PlanStatus string

const (
	PlanStatusPlanning   PlanStatus = "planning"
	PlanStatusExecuting  PlanStatus = "executing"
	PlanStatusCheckpoint PlanStatus = "checkpoint"
	PlanStatusCompleted  PlanStatus = "completed"
	PlanStatusFailed     PlanStatus = "failed"
)

/* IsTerminal reports whether no further transitions are possible */
func (s PlanStatus) IsTerminal() bool {
	return s == PlanStatusCompleted || s == PlanStatusFailed
}

/* IsActive reports whether a turn loop may own the plan */
func (s PlanStatus) IsActive() bool {
	return s == PlanStatusPlanning || s == PlanStatusExecuting || s == PlanStatusCheckpoint
}

/* Turn roles */
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

/* ToolCall is a tool invocation requested by the model */
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

/* ToolResult is the normalized outcome of a tool call */
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

/* Turn is one entry of the conversation history */
type Turn struct {
	Role       string      `json:"role"`
	Content    string      `json:"content,omitempty"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

/* PlanStep is a model-maintained step of the plan */
type PlanStep struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"` /* pending, in_progress, done, skipped */
}

/* Checkpoint reasons */
const (
	CheckpointReasonApproval = "approval_required"
	CheckpointReasonQuestion = "ask_human"
)

/* CheckpointDecision is the recorded human decision for a checkpoint */
type CheckpointDecision struct {
	Action    string                 `json:"action"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Feedback  string                 `json:"feedback,omitempty"`
	DecidedAt time.Time              `json:"decided_at"`
}

/*
 * CheckpointData is the persisted continuation of a suspended turn loop:
 * the gated call, the calls from the same model reply still waiting to
 * run, and once resolved the decision to replay.
 */
type CheckpointData struct {
	Reason         string              `json:"reason"`
	ToolCall       ToolCall            `json:"tool_call"`
	ServerName     string              `json:"server_name,omitempty"`
	ApprovalFields []string            `json:"approval_fields,omitempty"`
	Question       string              `json:"question,omitempty"`
	Options        []string            `json:"options,omitempty"`
	Remaining      []ToolCall          `json:"remaining,omitempty"`
	RequestedAt    time.Time           `json:"requested_at"`
	Decision       *CheckpointDecision `json:"decision,omitempty"`
}

/* PlanResult is set when a plan reaches a terminal state */
type PlanResult struct {
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
}

/* WorkflowPlan is one attempt to execute a task through the agent */
type WorkflowPlan struct {
	ID                  uuid.UUID       `json:"id"`
	TaskID              string          `json:"task_id"`
	ProjectID           string          `json:"project_id"`
	Status              PlanStatus      `json:"status"`
	TaskDescription     string          `json:"task_description"`
	SystemPrompt        string          `json:"system_prompt,omitempty"`
	Model               string          `json:"model,omitempty"`
	Steps               []PlanStep      `json:"steps"`
	CurrentStepIndex    int             `json:"current_step_index"`
	CheckpointData      *CheckpointData `json:"checkpoint_data,omitempty"`
	Result              *PlanResult     `json:"result,omitempty"`
	ConversationHistory []Turn          `json:"conversation_history"`
	TurnCount           int             `json:"turn_count"`
	ResumedFromPlanID   *uuid.UUID      `json:"resumed_from_plan_id,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty"`
}

/* PlanUpdate is a partial update of a plan; nil fields are left unchanged */
type PlanUpdate struct {
	Status              *PlanStatus
	Steps               []PlanStep
	CurrentStepIndex    *int
	CheckpointData      *CheckpointData
	ClearCheckpoint     bool
	Result              *PlanResult
	ConversationHistory []Turn
	TurnCount           *int
	CompletedAt         *time.Time
}

/* Log levels */
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

/* WorkflowLog is an append-only human readable log entry for a plan */
type WorkflowLog struct {
	ID        uuid.UUID              `json:"id"`
	PlanID    uuid.UUID              `json:"plan_id"`
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	StepID    string                 `json:"step_id,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}
