/*-------------------------------------------------------------------------
 *
 * engine.go
 *    Workflow engine: plan lifecycle and control operations
 *
 * The engine drives each plan through
 * planning -> executing -> {checkpoint <-> executing} -> completed | failed.
 * Every write to a plan happens on its project's actor, and the plan is
 * persisted after every transition so a suspended or crashed plan can be
 * picked up from the store alone.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/workflow/engine.go
 *
 *-------------------------------------------------------------------------
 */

package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/neurondb/NeuronBoard/internal/config"
	"github.com/neurondb/NeuronBoard/internal/credentials"
	"github.com/neurondb/NeuronBoard/internal/db"
	"github.com/neurondb/NeuronBoard/internal/events"
	"github.com/neurondb/NeuronBoard/internal/llm"
	"github.com/neurondb/NeuronBoard/internal/mcp"
	"github.com/neurondb/NeuronBoard/internal/metrics"
	"github.com/neurondb/NeuronBoard/internal/reliability"
	"github.com/neurondb/NeuronBoard/internal/tools"
)

/* PlanStore is the plan persistence the engine consumes */
type PlanStore interface {
	CreatePlan(ctx context.Context, plan *db.WorkflowPlan) error
	GetPlan(ctx context.Context, id uuid.UUID) (*db.WorkflowPlan, error)
	UpdatePlan(ctx context.Context, id uuid.UUID, patch *db.PlanUpdate) (*db.WorkflowPlan, error)
	AppendLog(ctx context.Context, entry *db.WorkflowLog) error
	ListLogs(ctx context.Context, planID uuid.UUID, limit, offset int) ([]db.WorkflowLog, int, error)
	ListPlansByStatus(ctx context.Context, statuses ...db.PlanStatus) ([]*db.WorkflowPlan, error)
}

/* ToolRegistry is the tool catalog, gate and dispatcher of a project */
type ToolRegistry interface {
	Catalog(ctx context.Context, projectID string) ([]tools.Tool, error)
	Gate(ctx context.Context, projectID string, call db.ToolCall) tools.GateDecision
	Dispatch(ctx context.Context, projectID string, call db.ToolCall, approval *tools.Approval) (*mcp.CallToolResult, error)
}

/* Terminator stops the execution context currently running a plan */
type Terminator interface {
	Terminate(ctx context.Context, planID uuid.UUID) error
}

/* TerminatorFunc adapts a function to Terminator */
type TerminatorFunc func(ctx context.Context, planID uuid.UUID) error

/* Terminate implements Terminator */
func (f TerminatorFunc) Terminate(ctx context.Context, planID uuid.UUID) error {
	return f(ctx, planID)
}

/* runState is what an actor keeps in memory for a plan between turns */
type runState struct {
	backend llm.Backend
}

/*
 * runTracker holds the cancel func of every in-flight turn. A terminated
 * plan stays marked until its cancel is persisted, so a turn queued in
 * between starts already cancelled.
 */
type runTracker struct {
	mu       sync.Mutex
	runs     map[uuid.UUID]context.CancelFunc
	stopping map[uuid.UUID]bool
}

func newRunTracker() *runTracker {
	return &runTracker{
		runs:     make(map[uuid.UUID]context.CancelFunc),
		stopping: make(map[uuid.UUID]bool),
	}
}

func (t *runTracker) start(parent context.Context, planID uuid.UUID) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	t.mu.Lock()
	if t.stopping[planID] {
		cancel()
	}
	t.runs[planID] = cancel
	t.mu.Unlock()
	return ctx, func() {
		t.mu.Lock()
		delete(t.runs, planID)
		t.mu.Unlock()
		cancel()
	}
}

/* Terminate cancels the in-flight turn of planID, if any */
func (t *runTracker) Terminate(ctx context.Context, planID uuid.UUID) error {
	t.mu.Lock()
	t.stopping[planID] = true
	cancel, ok := t.runs[planID]
	t.mu.Unlock()
	if ok {
		cancel()
	}
	return nil
}

func (t *runTracker) clear(planID uuid.UUID) {
	t.mu.Lock()
	delete(t.stopping, planID)
	t.mu.Unlock()
}

/* CreateParams starts a plan */
type CreateParams struct {
	PlanID            uuid.UUID  `json:"plan_id,omitempty"`
	ProjectID         string     `json:"project_id"`
	TaskID            string     `json:"task_id"`
	TaskDescription   string     `json:"task_description"`
	SystemPrompt      string     `json:"system_prompt,omitempty"`
	Model             string     `json:"model,omitempty"`
	SeedHistory       []db.Turn  `json:"seed_history,omitempty"`
	ResumeFeedback    string     `json:"resume_feedback,omitempty"`
	ResumedFromPlanID *uuid.UUID `json:"-"`
}

/* ResumeParams resumes a terminal plan into a new one */
type ResumeParams struct {
	PlanID   uuid.UUID `json:"plan_id"`
	Feedback string    `json:"feedback"`
}

/* Engine runs workflow plans */
type Engine struct {
	store       PlanStore
	registry    ToolRegistry
	credentials credentials.Provider
	factory     llm.Factory
	sink        events.Sink
	terminator  Terminator
	runs        *runTracker
	parts       *partitions
	cfg         config.WorkflowConfig
	llmCfg      config.LLMConfig
	now         func() time.Time
}

/* NewEngine creates an engine; call Close to stop its partitions */
func NewEngine(store PlanStore, registry ToolRegistry, creds credentials.Provider, factory llm.Factory, cfg *config.Config) *Engine {
	e := &Engine{
		store:       store,
		registry:    registry,
		credentials: creds,
		factory:     factory,
		sink:        events.NopSink{},
		runs:        newRunTracker(),
		cfg:         cfg.Workflow,
		llmCfg:      cfg.LLM,
		now:         time.Now,
	}
	e.terminator = e.runs
	e.parts = newPartitions(cfg.Workflow.MailboxSize, cfg.Workflow.PartitionIdle, e.step)
	return e
}

/* SetSink sets the notification sink */
func (e *Engine) SetSink(sink events.Sink) {
	if sink == nil {
		sink = events.NopSink{}
	}
	e.sink = sink
}

/* SetTerminator replaces the execution terminator used by Cancel */
func (e *Engine) SetTerminator(t Terminator) {
	e.terminator = t
}

/* Close stops all partitions; plans left executing are picked up by Recover */
func (e *Engine) Close() {
	e.parts.close()
}

/*
 * Create persists a new plan in planning and starts it on the project's
 * partition. When no reasoning credential resolves, the plan is returned
 * failed together with a ConfigurationError.
 */
func (e *Engine) Create(ctx context.Context, params CreateParams) (*db.WorkflowPlan, error) {
	if strings.TrimSpace(params.ProjectID) == "" {
		return nil, reliability.NewValidationError(reliability.CodeBadInput, "project_id", "project id is required")
	}
	if strings.TrimSpace(params.TaskID) == "" {
		return nil, reliability.NewValidationError(reliability.CodeBadInput, "task_id", "task id is required")
	}
	if strings.TrimSpace(params.TaskDescription) == "" && len(params.SeedHistory) == 0 {
		return nil, reliability.NewValidationError(reliability.CodeBadInput, "task_description", "task description is required")
	}

	now := e.now().UTC()
	history := closeDanglingCalls(params.SeedHistory, now)
	if len(history) == 0 {
		history = append(history, db.Turn{Role: db.RoleUser, Content: params.TaskDescription, CreatedAt: now})
	}
	if feedback := strings.TrimSpace(params.ResumeFeedback); feedback != "" {
		history = append(history, db.Turn{Role: db.RoleUser, Content: feedback, CreatedAt: now})
	}

	plan := &db.WorkflowPlan{
		ID:                  params.PlanID,
		TaskID:              params.TaskID,
		ProjectID:           params.ProjectID,
		Status:              db.PlanStatusPlanning,
		TaskDescription:     params.TaskDescription,
		SystemPrompt:        params.SystemPrompt,
		Model:               params.Model,
		ConversationHistory: history,
		ResumedFromPlanID:   params.ResumedFromPlanID,
	}
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}

	return call(ctx, e.parts, plan.ProjectID, func(ctx context.Context, a *actor) (*db.WorkflowPlan, error) {
		return e.start(ctx, a, plan)
	})
}

func (e *Engine) start(ctx context.Context, a *actor, plan *db.WorkflowPlan) (*db.WorkflowPlan, error) {
	ctx = metrics.WithPlanLogContext(ctx, plan.ProjectID, plan.ID)
	if err := e.store.CreatePlan(ctx, plan); err != nil {
		return nil, err
	}

	meta := map[string]interface{}{"task_id": plan.TaskID}
	if plan.ResumedFromPlanID != nil {
		meta["resumed_from"] = plan.ResumedFromPlanID.String()
	}
	e.appendLog(ctx, plan, db.LogLevelInfo, "Plan created", meta)
	e.notify(ctx, plan, events.EventTypePlanCreated, meta)

	return e.begin(ctx, a, plan)
}

/* begin resolves the reasoning backend and moves planning -> executing */
func (e *Engine) begin(ctx context.Context, a *actor, plan *db.WorkflowPlan) (*db.WorkflowPlan, error) {
	backend, err := e.newBackend(ctx, plan)
	if err != nil {
		failed, ferr := e.transition(ctx, plan, db.PlanStatusFailed, &db.PlanUpdate{Result: failure(err)}, "Plan failed before execution")
		if ferr != nil {
			return nil, ferr
		}
		return failed, err
	}

	executing, err := e.transition(ctx, plan, db.PlanStatusExecuting, &db.PlanUpdate{}, "Plan executing")
	if err != nil {
		return nil, err
	}
	a.state[plan.ID] = &runState{backend: backend}
	a.schedule(plan.ID)
	return executing, nil
}

func (e *Engine) newBackend(ctx context.Context, plan *db.WorkflowPlan) (llm.Backend, error) {
	noCredential := reliability.NewConfigurationError(reliability.CodeNoAnthropic, MsgNoAnthropicCredential, nil)
	if e.credentials == nil {
		return nil, noCredential
	}
	cred, err := e.credentials.Resolve(ctx, plan.ProjectID, credentials.KindAnthropic, "")
	if errors.Is(err, credentials.ErrNotFound) {
		return nil, noCredential
	}
	if err != nil {
		return nil, fmt.Errorf("credential resolve failed: project_id='%s', kind='%s', error=%w",
			plan.ProjectID, credentials.KindAnthropic, err)
	}
	if cred == nil || cred.Secret == "" {
		return nil, noCredential
	}

	model := plan.Model
	if model == "" {
		model = e.llmCfg.Model
	}
	return e.factory.New(ctx, cred, model)
}

/* backendFor returns the cached backend of a plan, building one if needed */
func (e *Engine) backendFor(ctx context.Context, a *actor, plan *db.WorkflowPlan) (llm.Backend, error) {
	if state, ok := a.state[plan.ID]; ok && state.backend != nil {
		return state.backend, nil
	}
	backend, err := e.newBackend(ctx, plan)
	if err != nil {
		return nil, err
	}
	a.state[plan.ID] = &runState{backend: backend}
	return backend, nil
}

/*
 * Cancel terminates a running or suspended plan. The terminator is asked
 * to stop the in-flight turn first; its failure is only logged, and the
 * plan is failed with "Cancelled by user" either way.
 */
func (e *Engine) Cancel(ctx context.Context, planID uuid.UUID) (*db.WorkflowPlan, error) {
	plan, err := e.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !cancellable(plan.Status) {
		return nil, invalidStatus("cancel", plan)
	}
	ctx = metrics.WithPlanLogContext(ctx, plan.ProjectID, plan.ID)

	if err := e.terminator.Terminate(ctx, planID); err != nil {
		metrics.WarnWithContext(ctx, "Plan termination failed", map[string]interface{}{
			"error": err.Error(),
		})
		e.appendLog(ctx, plan, db.LogLevelWarn, "Termination of the running execution failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	cancelled, err := call(ctx, e.parts, plan.ProjectID, func(ctx context.Context, a *actor) (*db.WorkflowPlan, error) {
		return e.cancelPlan(metrics.WithPlanLogContext(ctx, plan.ProjectID, plan.ID), a, planID)
	})
	if errors.Is(err, ErrEngineClosed) {
		return e.cancelPlan(ctx, nil, planID)
	}
	return cancelled, err
}

/*
 * cancellable lists the statuses Cancel accepts. planning is included
 * because a plan stays there between a restart and Recover.
 */
func cancellable(status db.PlanStatus) bool {
	switch status {
	case db.PlanStatusExecuting, db.PlanStatusCheckpoint, db.PlanStatusPlanning:
		return true
	}
	return false
}

func (e *Engine) cancelPlan(ctx context.Context, a *actor, planID uuid.UUID) (*db.WorkflowPlan, error) {
	defer e.runs.clear(planID)
	plan, err := e.store.GetPlan(context.WithoutCancel(ctx), planID)
	if err != nil {
		return nil, err
	}
	if !cancellable(plan.Status) {
		return nil, invalidStatus("cancel", plan)
	}
	if a != nil {
		a.unschedule(planID)
	}
	return e.transition(ctx, plan, db.PlanStatusFailed, &db.PlanUpdate{
		Result: &db.PlanResult{Error: MsgCancelledByUser, Code: string(reliability.CodeCancelled)},
	}, MsgCancelledByUser)
}

/*
 * Resume starts a new plan from a completed or failed one, seeded with
 * its conversation and the human feedback. The source plan is not touched.
 */
func (e *Engine) Resume(ctx context.Context, params ResumeParams) (*db.WorkflowPlan, error) {
	source, err := e.store.GetPlan(ctx, params.PlanID)
	if err != nil {
		return nil, err
	}
	if !source.Status.IsTerminal() {
		return nil, invalidStatus("resume", source)
	}
	if len(source.ConversationHistory) == 0 {
		return nil, reliability.NewValidationError(reliability.CodeEmptyHistory, "conversation_history",
			"plan has no conversation history to resume from")
	}
	if strings.TrimSpace(params.Feedback) == "" {
		return nil, reliability.NewValidationError(reliability.CodeEmptyFeedback, "feedback", "feedback is required to resume a plan")
	}

	sourceID := source.ID
	return e.Create(ctx, CreateParams{
		ProjectID:         source.ProjectID,
		TaskID:            source.TaskID,
		TaskDescription:   source.TaskDescription,
		SystemPrompt:      source.SystemPrompt,
		Model:             source.Model,
		SeedHistory:       source.ConversationHistory,
		ResumeFeedback:    params.Feedback,
		ResumedFromPlanID: &sourceID,
	})
}

/*
 * Recover re-enqueues plans a previous process left in planning or
 * executing. Plans parked at a checkpoint stay parked.
 */
func (e *Engine) Recover(ctx context.Context) (int, error) {
	plans, err := e.store.ListPlansByStatus(ctx, db.PlanStatusPlanning, db.PlanStatusExecuting)
	if err != nil {
		return 0, fmt.Errorf("plan recovery failed: error=%w", err)
	}

	recovered := 0
	for _, p := range plans {
		planID := p.ID
		err := e.parts.submit(ctx, p.ProjectID, func(ctx context.Context, a *actor) {
			e.recoverPlan(ctx, a, planID)
		})
		if err != nil {
			return recovered, err
		}
		recovered++
	}
	if recovered > 0 {
		metrics.InfoWithContext(ctx, "Plans recovered", map[string]interface{}{
			"count": recovered,
		})
	}
	return recovered, nil
}

func (e *Engine) recoverPlan(ctx context.Context, a *actor, planID uuid.UUID) {
	plan, err := e.store.GetPlan(ctx, planID)
	if err != nil {
		metrics.ErrorWithContext(ctx, "Plan recovery lookup failed", err, map[string]interface{}{
			"plan_id": planID.String(),
		})
		return
	}
	ctx = metrics.WithPlanLogContext(ctx, plan.ProjectID, plan.ID)
	switch plan.Status {
	case db.PlanStatusPlanning:
		e.appendLog(ctx, plan, db.LogLevelInfo, "Plan recovered before execution started", nil)
		_, _ = e.begin(ctx, a, plan)
	case db.PlanStatusExecuting:
		e.appendLog(ctx, plan, db.LogLevelInfo, "Plan recovered", nil)
		a.schedule(plan.ID)
	}
}

/* GetPlan returns the stored plan */
func (e *Engine) GetPlan(ctx context.Context, planID uuid.UUID) (*db.WorkflowPlan, error) {
	return e.store.GetPlan(ctx, planID)
}

/* ListLogs returns a page of a plan's logs and the total count */
func (e *Engine) ListLogs(ctx context.Context, planID uuid.UUID, limit, offset int) ([]db.WorkflowLog, int, error) {
	return e.store.ListLogs(ctx, planID, limit, offset)
}

/*
 * transition persists a status change together with patch. Terminal
 * states stamp CompletedAt and clear the checkpoint. The write is detached
 * from ctx cancellation so a cancelled turn cannot lose it.
 */
func (e *Engine) transition(ctx context.Context, plan *db.WorkflowPlan, to db.PlanStatus, patch *db.PlanUpdate, message string) (*db.WorkflowPlan, error) {
	from := plan.Status
	if !CanTransition(from, to) {
		return nil, illegalTransition(plan, to)
	}
	patch.Status = &to
	if to.IsTerminal() {
		now := e.now().UTC()
		patch.CompletedAt = &now
		patch.ClearCheckpoint = true
	}

	updated, err := e.store.UpdatePlan(context.WithoutCancel(ctx), plan.ID, patch)
	if err != nil {
		metrics.ErrorWithContext(ctx, "Plan transition write failed", err, map[string]interface{}{
			"from": string(from),
			"to":   string(to),
		})
		return nil, err
	}

	metrics.RecordPlanTransition(string(from), string(to))
	fields := map[string]interface{}{
		"from": string(from),
		"to":   string(to),
	}
	level := db.LogLevelInfo
	if updated.Result != nil && to == db.PlanStatusFailed {
		level = db.LogLevelError
		fields["error"] = updated.Result.Error
		fields["code"] = updated.Result.Code
	}
	metrics.InfoWithContext(ctx, "Plan transition", fields)
	e.appendLog(ctx, updated, level, message, fields)

	e.notify(ctx, updated, events.EventTypePlanTransition, map[string]interface{}{
		"from": string(from),
		"to":   string(to),
	})
	switch to {
	case db.PlanStatusCheckpoint:
		e.notify(ctx, updated, events.EventTypePlanCheckpoint, map[string]interface{}{
			"checkpoint": updated.CheckpointData,
		})
	case db.PlanStatusCompleted:
		e.notify(ctx, updated, events.EventTypePlanCompleted, map[string]interface{}{
			"result": updated.Result,
		})
	case db.PlanStatusFailed:
		e.notify(ctx, updated, events.EventTypePlanFailed, map[string]interface{}{
			"result": updated.Result,
		})
	}
	return updated, nil
}

/* fail moves a still-active plan to failed; stale or terminal plans are left alone */
func (e *Engine) fail(ctx context.Context, a *actor, planID uuid.UUID, cause error) {
	a.unschedule(planID)
	plan, err := e.store.GetPlan(context.WithoutCancel(ctx), planID)
	if err != nil {
		metrics.ErrorWithContext(ctx, "Plan lookup failed while failing plan", err, map[string]interface{}{
			"plan_id": planID.String(),
		})
		return
	}
	if !plan.Status.IsActive() {
		return
	}
	metrics.ErrorWithContext(ctx, "Plan failed", cause, map[string]interface{}{
		"code": string(reliability.CodeOf(cause)),
	})
	_, _ = e.transition(ctx, plan, db.PlanStatusFailed, &db.PlanUpdate{Result: failure(cause)}, "Plan failed")
}

func (e *Engine) appendLog(ctx context.Context, plan *db.WorkflowPlan, level, message string, meta map[string]interface{}) {
	entry := &db.WorkflowLog{
		PlanID:    plan.ID,
		Timestamp: e.now().UTC(),
		Level:     level,
		Message:   message,
		StepID:    currentStepID(plan),
		Metadata:  meta,
	}
	if err := e.store.AppendLog(context.WithoutCancel(ctx), entry); err != nil {
		metrics.WarnWithContext(ctx, "Workflow log append failed", map[string]interface{}{
			"message": message,
			"error":   err.Error(),
		})
		return
	}
	e.notify(ctx, plan, events.EventTypePlanLog, map[string]interface{}{
		"level":   level,
		"message": message,
	})
}

func (e *Engine) notify(ctx context.Context, plan *db.WorkflowPlan, eventType events.EventType, data map[string]interface{}) {
	payload := map[string]interface{}{
		"task_id": plan.TaskID,
		"status":  string(plan.Status),
	}
	for k, v := range data {
		payload[k] = v
	}
	e.sink.Notify(context.WithoutCancel(ctx), events.Event{
		Type:      eventType,
		Timestamp: e.now().UTC(),
		Source:    "workflow",
		ProjectID: plan.ProjectID,
		PlanID:    plan.ID.String(),
		Data:      payload,
	})
}

func currentStepID(plan *db.WorkflowPlan) string {
	if plan.CurrentStepIndex >= 0 && plan.CurrentStepIndex < len(plan.Steps) {
		return plan.Steps[plan.CurrentStepIndex].ID
	}
	return ""
}

/*
 * closeDanglingCalls copies history and answers tool calls of the last
 * assistant turn that never got a result, so the conversation can be sent
 * to the model again.
 */
func closeDanglingCalls(history []db.Turn, now time.Time) []db.Turn {
	out := append([]db.Turn(nil), history...)
	last := -1
	for i := len(out) - 1; i >= 0; i-- {
		if out[i].Role == db.RoleAssistant {
			last = i
			break
		}
	}
	if last < 0 || len(out[last].ToolCalls) == 0 {
		return out
	}

	answered := make(map[string]bool)
	for _, t := range out[last+1:] {
		if t.ToolResult != nil {
			answered[t.ToolResult.ToolCallID] = true
		}
	}
	for _, c := range out[last].ToolCalls {
		if answered[c.ID] {
			continue
		}
		out = append(out, db.Turn{
			Role: db.RoleTool,
			ToolResult: &db.ToolResult{
				ToolCallID: c.ID,
				Name:       c.Name,
				Content:    "Not executed: the previous plan ended before this call ran.",
				IsError:    true,
			},
			CreatedAt: now,
		})
	}
	return out
}
