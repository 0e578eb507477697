/*-------------------------------------------------------------------------
 *
 * checkpoint.go
 *    Checkpoint gate: suspension records, decisions and their replay
 *
 * A checkpoint is a persisted continuation. It stores the gated call and
 * the calls of the same reply that still have to run. Resolving it records
 * the decision on the plan; the partition then replays the decision as
 * the next turn.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/workflow/checkpoint.go
 *
 *-------------------------------------------------------------------------
 */

package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/neurondb/NeuronBoard/internal/db"
	"github.com/neurondb/NeuronBoard/internal/metrics"
	"github.com/neurondb/NeuronBoard/internal/reliability"
	"github.com/neurondb/NeuronBoard/internal/tools"
)

/* Checkpoint actions; reject is the legacy spelling of cancel */
const (
	ActionApprove        = "approve"
	ActionRequestChanges = "request_changes"
	ActionReject         = "reject"
	ActionCancel         = "cancel"
)

/* EventCheckpointApproval is the only control event type */
const EventCheckpointApproval = "checkpoint-approval"

/* Decision is a human answer to a checkpoint */
type Decision struct {
	Action   string                 `json:"action"`
	Data     map[string]interface{} `json:"data,omitempty"`
	Feedback string                 `json:"feedback,omitempty"`
}

/* ControlEvent is an event delivered to a plan from outside */
type ControlEvent struct {
	Type    string   `json:"type"`
	Payload Decision `json:"payload"`
}

func validAction(action string) bool {
	switch action {
	case ActionApprove, ActionRequestChanges, ActionReject, ActionCancel:
		return true
	}
	return false
}

/* SendEvent delivers a control event to a plan */
func (e *Engine) SendEvent(ctx context.Context, planID uuid.UUID, event ControlEvent) (*db.WorkflowPlan, error) {
	if event.Type != EventCheckpointApproval {
		return nil, reliability.NewValidationError(reliability.CodeBadInput, "type",
			fmt.Sprintf("unsupported event type '%s'", event.Type))
	}
	return e.ResolveCheckpoint(ctx, planID, event.Payload)
}

/*
 * ResolveCheckpoint applies a decision to a plan waiting at a checkpoint.
 * cancel and reject fail the plan without calling the backend again.
 * approve and request_changes record the decision, flip the plan back to
 * executing and schedule the replay on the partition.
 */
func (e *Engine) ResolveCheckpoint(ctx context.Context, planID uuid.UUID, decision Decision) (*db.WorkflowPlan, error) {
	plan, err := e.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.Status != db.PlanStatusCheckpoint {
		return nil, invalidStatus("checkpoint resolution", plan)
	}

	decision.Action = strings.ToLower(strings.TrimSpace(decision.Action))
	if !validAction(decision.Action) {
		return nil, reliability.NewValidationError(reliability.CodeBadAction, "action",
			fmt.Sprintf("unknown checkpoint action '%s'", decision.Action))
	}

	return call(ctx, e.parts, plan.ProjectID, func(ctx context.Context, a *actor) (*db.WorkflowPlan, error) {
		return e.resolve(metrics.WithPlanLogContext(ctx, plan.ProjectID, plan.ID), a, planID, decision)
	})
}

func (e *Engine) resolve(ctx context.Context, a *actor, planID uuid.UUID, decision Decision) (*db.WorkflowPlan, error) {
	plan, err := e.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.Status != db.PlanStatusCheckpoint {
		return nil, invalidStatus("checkpoint resolution", plan)
	}
	if plan.CheckpointData == nil {
		return nil, reliability.NewInvalidStateError(reliability.CodeInvalidState,
			fmt.Sprintf("plan %s has no pending checkpoint", plan.ID), string(plan.Status))
	}

	metrics.RecordCheckpointDecision(decision.Action)
	metrics.InfoWithContext(ctx, "Checkpoint resolved", map[string]interface{}{
		"action": decision.Action,
		"tool":   plan.CheckpointData.ToolCall.Name,
	})

	switch decision.Action {
	case ActionCancel, ActionReject:
		a.unschedule(planID)
		return e.transition(ctx, plan, db.PlanStatusFailed, &db.PlanUpdate{
			Result: &db.PlanResult{Error: MsgCheckpointCancelled, Code: string(reliability.CodeCancelled)},
		}, MsgCheckpointCancelled)
	}

	cp := *plan.CheckpointData
	cp.Decision = &db.CheckpointDecision{
		Action:    decision.Action,
		Data:      decision.Data,
		Feedback:  decision.Feedback,
		DecidedAt: e.now().UTC(),
	}
	updated, err := e.transition(ctx, plan, db.PlanStatusExecuting, &db.PlanUpdate{CheckpointData: &cp},
		"Checkpoint "+strings.ReplaceAll(decision.Action, "_", " "))
	if err != nil {
		return nil, err
	}
	a.schedule(planID)
	return updated, nil
}

/*
 * replayDecision turns the recorded decision into the gated call's result,
 * clears the checkpoint and runs the calls that were waiting behind it.
 */
func (e *Engine) replayDecision(ctx context.Context, a *actor, plan *db.WorkflowPlan) bool {
	cp := plan.CheckpointData
	decision := cp.Decision
	pr := newProgress(plan)
	pr.clearCheckpoint = true

	var result db.ToolResult
	switch {
	case cp.Reason == db.CheckpointReasonQuestion:
		result = answerResult(cp, decision)
	case decision.Action == ActionApprove:
		res, err := e.dispatch(ctx, plan, cp.ToolCall, &tools.Approval{ToolCallID: cp.ToolCall.ID, Data: decision.Data})
		if err != nil {
			e.fail(ctx, a, plan.ID, err)
			return false
		}
		result = withDecisionNotes(res, decision)
	default:
		result = changesRequestedResult(cp, decision)
	}
	if ctx.Err() != nil {
		return e.stopped(ctx, plan)
	}
	pr.appendResult(result, e.now().UTC())
	return e.runCalls(ctx, a, pr, cp.Remaining)
}

/* approvalCheckpoint records a call that must be approved before it runs */
func approvalCheckpoint(call db.ToolCall, gate tools.GateDecision, remaining []db.ToolCall, now time.Time) *db.CheckpointData {
	return &db.CheckpointData{
		Reason:         db.CheckpointReasonApproval,
		ToolCall:       call,
		ServerName:     gate.Server,
		ApprovalFields: gate.Fields,
		Remaining:      remaining,
		RequestedAt:    now,
	}
}

func answerResult(cp *db.CheckpointData, d *db.CheckpointDecision) db.ToolResult {
	var b strings.Builder
	if d.Feedback != "" {
		b.WriteString(d.Feedback)
	}
	if notes := dataNote(d.Data); notes != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(notes)
	}
	if b.Len() == 0 {
		b.WriteString("The human acknowledged the question without an answer.")
	}
	return db.ToolResult{ToolCallID: cp.ToolCall.ID, Name: cp.ToolCall.Name, Content: b.String()}
}

func withDecisionNotes(result db.ToolResult, d *db.CheckpointDecision) db.ToolResult {
	if d.Feedback != "" {
		result.Content += "\n\nReviewer feedback: " + d.Feedback
	}
	if notes := dataNote(d.Data); notes != "" {
		result.Content += "\n\n" + notes
	}
	return result
}

func changesRequestedResult(cp *db.CheckpointData, d *db.CheckpointDecision) db.ToolResult {
	content := "The reviewer did not approve this call and requested changes. It was not executed."
	if d.Feedback != "" {
		content += "\n\nReviewer feedback: " + d.Feedback
	}
	if notes := dataNote(d.Data); notes != "" {
		content += "\n\n" + notes
	}
	return db.ToolResult{ToolCallID: cp.ToolCall.ID, Name: cp.ToolCall.Name, Content: content, IsError: true}
}

func dataNote(data map[string]interface{}) string {
	if len(data) == 0 {
		return ""
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return "Reviewer data: " + string(raw)
}
