/*-------------------------------------------------------------------------
 *
 * loop.go
 *    Turn loop of a plan
 *
 * One call of step runs one turn: a pending checkpoint decision is
 * replayed, or the history goes to the reasoning backend and the tool
 * calls of its reply are run. The plan is persisted at the end of every
 * turn; the only voluntary suspension is a checkpoint.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/workflow/loop.go
 *
 *-------------------------------------------------------------------------
 */

package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/neurondb/NeuronBoard/internal/db"
	"github.com/neurondb/NeuronBoard/internal/events"
	"github.com/neurondb/NeuronBoard/internal/llm"
	"github.com/neurondb/NeuronBoard/internal/metrics"
	"github.com/neurondb/NeuronBoard/internal/reliability"
	"github.com/neurondb/NeuronBoard/internal/tools"
)

/* progress accumulates the changes of one turn before they are persisted */
type progress struct {
	plan            *db.WorkflowPlan
	history         []db.Turn
	turnCount       int
	steps           []db.PlanStep
	stepIndex       int
	stepsChanged    bool
	clearCheckpoint bool
}

func newProgress(plan *db.WorkflowPlan) *progress {
	return &progress{
		plan:      plan,
		history:   append([]db.Turn(nil), plan.ConversationHistory...),
		turnCount: plan.TurnCount,
		steps:     plan.Steps,
		stepIndex: plan.CurrentStepIndex,
	}
}

func (p *progress) appendResult(result db.ToolResult, now time.Time) {
	r := result
	p.history = append(p.history, db.Turn{Role: db.RoleTool, ToolResult: &r, CreatedAt: now})
}

func (p *progress) patch() *db.PlanUpdate {
	turnCount := p.turnCount
	patch := &db.PlanUpdate{
		ConversationHistory: p.history,
		TurnCount:           &turnCount,
		ClearCheckpoint:     p.clearCheckpoint,
	}
	if p.stepsChanged {
		index := p.stepIndex
		patch.Steps = p.steps
		patch.CurrentStepIndex = &index
	}
	return patch
}

/* step is the partition callback; it returns true while the plan should keep running */
func (e *Engine) step(ctx context.Context, a *actor, planID uuid.UUID) (more bool) {
	ctx, done := e.runs.start(ctx, planID)
	defer done()

	plan, err := e.store.GetPlan(ctx, planID)
	if err != nil {
		metrics.ErrorWithContext(ctx, "Plan lookup failed", err, map[string]interface{}{
			"plan_id": planID.String(),
		})
		a.unschedule(planID)
		return false
	}
	ctx = metrics.WithPlanLogContext(ctx, plan.ProjectID, plan.ID)

	defer func() {
		if r := recover(); r != nil {
			e.fail(ctx, a, planID, reliability.NewTerminalError(reliability.CodeInternal,
				fmt.Sprintf("turn loop panicked: %v", r), nil))
			more = false
		}
	}()

	if plan.Status != db.PlanStatusExecuting {
		a.unschedule(planID)
		return false
	}
	if cp := plan.CheckpointData; cp != nil && cp.Decision != nil {
		return e.replayDecision(ctx, a, plan)
	}
	return e.turn(ctx, a, plan)
}

func (e *Engine) turn(ctx context.Context, a *actor, plan *db.WorkflowPlan) bool {
	if e.cfg.MaxTurns > 0 && plan.TurnCount >= e.cfg.MaxTurns {
		e.fail(ctx, a, plan.ID, reliability.NewTerminalError(reliability.CodeTurnBudget, MsgTurnBudgetExhausted, nil))
		return false
	}

	catalog, err := e.registry.Catalog(ctx, plan.ProjectID)
	if err != nil {
		if ctx.Err() != nil {
			return e.stopped(ctx, plan)
		}
		e.fail(ctx, a, plan.ID, err)
		return false
	}
	backend, err := e.backendFor(ctx, a, plan)
	if err != nil {
		e.fail(ctx, a, plan.ID, err)
		return false
	}

	systemPrompt := plan.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = e.cfg.DefaultSystemPrompt
	}
	req := &llm.Request{
		SystemPrompt: systemPrompt,
		History:      plan.ConversationHistory,
		Tools:        toolDefinitions(catalog),
		MaxTokens:    e.llmCfg.MaxTokens,
		Temperature:  e.llmCfg.Temperature,
	}

	turnCtx, span := metrics.StartSpan(ctx, "workflow.turn",
		attribute.String("plan.id", plan.ID.String()),
		attribute.Int("plan.turn", plan.TurnCount+1),
		attribute.Int("plan.tools", len(req.Tools)))
	reply, err := backend.Generate(turnCtx, req)
	metrics.EndSpan(span, err)

	if ctx.Err() != nil {
		return e.stopped(ctx, plan)
	}
	if err != nil {
		e.fail(ctx, a, plan.ID, err)
		return false
	}

	now := e.now().UTC()
	pr := newProgress(plan)
	pr.turnCount++
	pr.history = append(pr.history, db.Turn{
		Role:      db.RoleAssistant,
		Content:   reply.Content,
		ToolCalls: reply.ToolCalls,
		CreatedAt: now,
	})

	if len(reply.ToolCalls) == 0 {
		patch := pr.patch()
		patch.Result = &db.PlanResult{Output: reply.Content}
		a.unschedule(plan.ID)
		if _, err := e.transition(ctx, plan, db.PlanStatusCompleted, patch, "Plan completed"); err != nil {
			e.fail(ctx, a, plan.ID, err)
		}
		return false
	}

	e.appendLog(ctx, plan, db.LogLevelDebug, "Model requested tool calls", map[string]interface{}{
		"turn":  pr.turnCount,
		"calls": callNames(reply.ToolCalls),
	})
	return e.runCalls(ctx, a, pr, reply.ToolCalls)
}

/*
 * runCalls runs calls in order. A builtin question or a gated call
 * suspends the plan at a checkpoint that carries the calls still to run.
 */
func (e *Engine) runCalls(ctx context.Context, a *actor, pr *progress, calls []db.ToolCall) bool {
	plan := pr.plan
	for i, call := range calls {
		if ctx.Err() != nil {
			return e.stopped(ctx, plan)
		}
		remaining := append([]db.ToolCall(nil), calls[i+1:]...)

		switch call.Name {
		case BuiltinAskHuman:
			return e.suspend(ctx, a, pr, askHumanCheckpoint(call, remaining, e.now().UTC()))
		case BuiltinUpdatePlan:
			pr.appendResult(applyUpdatePlan(pr, call), e.now().UTC())
			continue
		}

		if gate := e.registry.Gate(ctx, plan.ProjectID, call); gate.Required {
			return e.suspend(ctx, a, pr, approvalCheckpoint(call, gate, remaining, e.now().UTC()))
		}

		result, err := e.dispatch(ctx, plan, call, nil)
		if errors.Is(err, tools.ErrApprovalRequired) {
			/* Schema changed between gate and dispatch */
			return e.suspend(ctx, a, pr, approvalCheckpoint(call, tools.GateDecision{Required: true}, remaining, e.now().UTC()))
		}
		pr.appendResult(result, e.now().UTC())
	}

	if ctx.Err() != nil {
		return e.stopped(ctx, plan)
	}
	if _, err := e.store.UpdatePlan(context.WithoutCancel(ctx), plan.ID, pr.patch()); err != nil {
		e.fail(ctx, a, plan.ID, err)
		return false
	}
	return true
}

/* suspend persists cp and parks the plan at a checkpoint */
func (e *Engine) suspend(ctx context.Context, a *actor, pr *progress, cp *db.CheckpointData) bool {
	patch := pr.patch()
	patch.ClearCheckpoint = false
	patch.CheckpointData = cp

	a.unschedule(pr.plan.ID)
	message := "Waiting for approval of " + cp.ToolCall.Name
	if cp.Reason == db.CheckpointReasonQuestion {
		message = "Waiting for an answer from a human"
	}
	if _, err := e.transition(ctx, pr.plan, db.PlanStatusCheckpoint, patch, message); err != nil {
		e.fail(ctx, a, pr.plan.ID, err)
	}
	return false
}

/*
 * dispatch runs one call through the registry. Apart from
 * ErrApprovalRequired every failure is turned into error content.
 */
func (e *Engine) dispatch(ctx context.Context, plan *db.WorkflowPlan, call db.ToolCall, approval *tools.Approval) (db.ToolResult, error) {
	start := time.Now()
	res, err := e.registry.Dispatch(ctx, plan.ProjectID, call, approval)
	if errors.Is(err, tools.ErrApprovalRequired) {
		return db.ToolResult{}, err
	}

	result := db.ToolResult{ToolCallID: call.ID, Name: call.Name}
	switch {
	case err != nil:
		result.Content = err.Error()
		result.IsError = true
	case res == nil:
		result.Content = "tool returned no result"
		result.IsError = true
	default:
		result.Content = res.Text()
		result.IsError = res.IsError
	}

	level := db.LogLevelInfo
	if result.IsError {
		level = db.LogLevelWarn
		metrics.WarnWithContext(ctx, "Tool call failed", map[string]interface{}{
			"tool":  call.Name,
			"error": result.Content,
		})
	}
	meta := map[string]interface{}{
		"tool":         call.Name,
		"tool_call_id": call.ID,
		"is_error":     result.IsError,
		"duration_ms":  time.Since(start).Milliseconds(),
		"approved":     approval != nil,
	}
	e.appendLog(ctx, plan, level, "Tool call "+call.Name, meta)
	e.notify(ctx, plan, events.EventTypeToolCall, meta)
	return result, nil
}

/* stopped is the exit of a turn whose context was cancelled */
func (e *Engine) stopped(ctx context.Context, plan *db.WorkflowPlan) bool {
	metrics.InfoWithContext(ctx, "Turn loop stopped", map[string]interface{}{
		"reason": fmt.Sprint(context.Cause(ctx)),
	})
	return false
}

/* toolDefinitions is the builtins followed by the project catalog */
func toolDefinitions(catalog []tools.Tool) []llm.ToolDefinition {
	defs := builtinDefinitions()
	for _, t := range catalog {
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return defs
}

func callNames(calls []db.ToolCall) []string {
	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.Name
	}
	return names
}
