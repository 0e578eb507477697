/*-------------------------------------------------------------------------
 *
 * plan_queries.go
 *    Workflow plan persistence
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/db/plan_queries.go
 *
 *-------------------------------------------------------------------------
 */

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const planColumns = `id, task_id, project_id, status, task_description, system_prompt, model,
	steps, current_step_index, checkpoint_data, result, conversation_history, turn_count,
	resumed_from_plan_id, created_at, updated_at, completed_at`

/* Plan queries */
const (
	createPlanQuery = `
		INSERT INTO workflow_plans
		(id, task_id, project_id, status, task_description, system_prompt, model,
		 steps, current_step_index, checkpoint_data, result, conversation_history, turn_count,
		 resumed_from_plan_id, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	getPlanQuery = `SELECT ` + planColumns + ` FROM workflow_plans WHERE id = ?`

	listPlansByStatusQuery = `SELECT ` + planColumns + ` FROM workflow_plans WHERE status IN (?) ORDER BY created_at ASC`

	listPlansByTaskQuery = `SELECT ` + planColumns + ` FROM workflow_plans WHERE task_id = ? ORDER BY created_at DESC`

	deletePlanQuery = `DELETE FROM workflow_plans WHERE id = ?`
)

type planRow struct {
	ID                  string         `db:"id"`
	TaskID              string         `db:"task_id"`
	ProjectID           string         `db:"project_id"`
	Status              string         `db:"status"`
	TaskDescription     string         `db:"task_description"`
	SystemPrompt        string         `db:"system_prompt"`
	Model               string         `db:"model"`
	Steps               string         `db:"steps"`
	CurrentStepIndex    int            `db:"current_step_index"`
	CheckpointData      sql.NullString `db:"checkpoint_data"`
	Result              sql.NullString `db:"result"`
	ConversationHistory string         `db:"conversation_history"`
	TurnCount           int            `db:"turn_count"`
	ResumedFromPlanID   sql.NullString `db:"resumed_from_plan_id"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
	CompletedAt         sql.NullTime   `db:"completed_at"`
}

func (r *planRow) toPlan() (*WorkflowPlan, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("plan decode failed: invalid_id='%s', error=%w", r.ID, err)
	}
	plan := &WorkflowPlan{
		ID:               id,
		TaskID:           r.TaskID,
		ProjectID:        r.ProjectID,
		Status:           PlanStatus(r.Status),
		TaskDescription:  r.TaskDescription,
		SystemPrompt:     r.SystemPrompt,
		Model:            r.Model,
		CurrentStepIndex: r.CurrentStepIndex,
		TurnCount:        r.TurnCount,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if err := scanJSON(r.Steps, &plan.Steps); err != nil {
		return nil, fmt.Errorf("plan decode failed: plan_id='%s', column='steps', error=%w", r.ID, err)
	}
	if err := scanJSON(r.ConversationHistory, &plan.ConversationHistory); err != nil {
		return nil, fmt.Errorf("plan decode failed: plan_id='%s', column='conversation_history', error=%w", r.ID, err)
	}
	if r.CheckpointData.Valid && r.CheckpointData.String != "" && r.CheckpointData.String != "null" {
		var cp CheckpointData
		if err := scanJSON(r.CheckpointData.String, &cp); err != nil {
			return nil, fmt.Errorf("plan decode failed: plan_id='%s', column='checkpoint_data', error=%w", r.ID, err)
		}
		plan.CheckpointData = &cp
	}
	if r.Result.Valid && r.Result.String != "" && r.Result.String != "null" {
		var res PlanResult
		if err := scanJSON(r.Result.String, &res); err != nil {
			return nil, fmt.Errorf("plan decode failed: plan_id='%s', column='result', error=%w", r.ID, err)
		}
		plan.Result = &res
	}
	if r.ResumedFromPlanID.Valid && r.ResumedFromPlanID.String != "" {
		if from, err := uuid.Parse(r.ResumedFromPlanID.String); err == nil {
			plan.ResumedFromPlanID = &from
		}
	}
	if r.CompletedAt.Valid {
		t := r.CompletedAt.Time
		plan.CompletedAt = &t
	}
	if plan.Steps == nil {
		plan.Steps = []PlanStep{}
	}
	if plan.ConversationHistory == nil {
		plan.ConversationHistory = []Turn{}
	}
	return plan, nil
}

func nullableJSON(v interface{}, present bool) (interface{}, error) {
	if !present {
		return nil, nil
	}
	return marshalJSON(v)
}

/* CreatePlan inserts a new plan; a second active plan for the same task is rejected */
func (q *Queries) CreatePlan(ctx context.Context, plan *WorkflowPlan) error {
	now := q.now()
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now
	if plan.Steps == nil {
		plan.Steps = []PlanStep{}
	}
	if plan.ConversationHistory == nil {
		plan.ConversationHistory = []Turn{}
	}

	steps, err := marshalJSON(plan.Steps)
	if err != nil {
		return fmt.Errorf("plan encode failed: column='steps', error=%w", err)
	}
	history, err := marshalJSON(plan.ConversationHistory)
	if err != nil {
		return fmt.Errorf("plan encode failed: column='conversation_history', error=%w", err)
	}
	checkpoint, err := nullableJSON(plan.CheckpointData, plan.CheckpointData != nil)
	if err != nil {
		return fmt.Errorf("plan encode failed: column='checkpoint_data', error=%w", err)
	}
	result, err := nullableJSON(plan.Result, plan.Result != nil)
	if err != nil {
		return fmt.Errorf("plan encode failed: column='result', error=%w", err)
	}
	var resumedFrom interface{}
	if plan.ResumedFromPlanID != nil {
		resumedFrom = plan.ResumedFromPlanID.String()
	}
	var completedAt interface{}
	if plan.CompletedAt != nil {
		completedAt = plan.CompletedAt.UTC()
	}

	params := []interface{}{
		plan.ID.String(), plan.TaskID, plan.ProjectID, string(plan.Status), plan.TaskDescription,
		plan.SystemPrompt, plan.Model, steps, plan.CurrentStepIndex, checkpoint, result, history,
		plan.TurnCount, resumedFrom, plan.CreatedAt.UTC(), plan.UpdatedAt.UTC(), completedAt,
	}
	if _, err := q.DB.ExecContext(ctx, q.rebind(createPlanQuery), params...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("plan create rejected: task_id='%s', error=%w", plan.TaskID, ErrActivePlanExists)
		}
		return q.formatQueryError("INSERT", createPlanQuery, len(params), "workflow_plans", err)
	}
	return nil
}

/* GetPlan gets a plan by ID */
func (q *Queries) GetPlan(ctx context.Context, id uuid.UUID) (*WorkflowPlan, error) {
	var row planRow
	err := q.DB.GetContext(ctx, &row, q.rebind(getPlanQuery), id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("plan not found on %s: plan_id='%s', table='workflow_plans', error=%w",
			q.getConnInfoString(), id.String(), ErrNotFound)
	}
	if err != nil {
		return nil, q.formatQueryError("SELECT", getPlanQuery, 1, "workflow_plans", err)
	}
	return row.toPlan()
}

/* UpdatePlan applies a partial update and returns the stored plan */
func (q *Queries) UpdatePlan(ctx context.Context, id uuid.UUID, patch *PlanUpdate) (*WorkflowPlan, error) {
	sets := []string{"updated_at = ?"}
	params := []interface{}{q.now()}

	if patch.Status != nil {
		sets = append(sets, "status = ?")
		params = append(params, string(*patch.Status))
	}
	if patch.Steps != nil {
		steps, err := marshalJSON(patch.Steps)
		if err != nil {
			return nil, fmt.Errorf("plan encode failed: column='steps', error=%w", err)
		}
		sets = append(sets, "steps = ?")
		params = append(params, steps)
	}
	if patch.CurrentStepIndex != nil {
		sets = append(sets, "current_step_index = ?")
		params = append(params, *patch.CurrentStepIndex)
	}
	if patch.ClearCheckpoint {
		sets = append(sets, "checkpoint_data = NULL")
	} else if patch.CheckpointData != nil {
		cp, err := marshalJSON(patch.CheckpointData)
		if err != nil {
			return nil, fmt.Errorf("plan encode failed: column='checkpoint_data', error=%w", err)
		}
		sets = append(sets, "checkpoint_data = ?")
		params = append(params, cp)
	}
	if patch.Result != nil {
		res, err := marshalJSON(patch.Result)
		if err != nil {
			return nil, fmt.Errorf("plan encode failed: column='result', error=%w", err)
		}
		sets = append(sets, "result = ?")
		params = append(params, res)
	}
	if patch.ConversationHistory != nil {
		history, err := marshalJSON(patch.ConversationHistory)
		if err != nil {
			return nil, fmt.Errorf("plan encode failed: column='conversation_history', error=%w", err)
		}
		sets = append(sets, "conversation_history = ?")
		params = append(params, history)
	}
	if patch.TurnCount != nil {
		sets = append(sets, "turn_count = ?")
		params = append(params, *patch.TurnCount)
	}
	if patch.CompletedAt != nil {
		sets = append(sets, "completed_at = ?")
		params = append(params, patch.CompletedAt.UTC())
	}

	query := "UPDATE workflow_plans SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	params = append(params, id.String())

	res, err := q.DB.ExecContext(ctx, q.rebind(query), params...)
	if err != nil {
		return nil, q.formatQueryError("UPDATE", query, len(params), "workflow_plans", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("plan not found on %s: plan_id='%s', table='workflow_plans', error=%w",
			q.getConnInfoString(), id.String(), ErrNotFound)
	}
	return q.GetPlan(ctx, id)
}

/* ListPlansByStatus lists plans in any of the given statuses, oldest first */
func (q *Queries) ListPlansByStatus(ctx context.Context, statuses ...PlanStatus) ([]*WorkflowPlan, error) {
	if len(statuses) == 0 {
		return []*WorkflowPlan{}, nil
	}
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	query, args, err := sqlx.In(listPlansByStatusQuery, values)
	if err != nil {
		return nil, fmt.Errorf("plan list failed: expand_error=true, error=%w", err)
	}
	return q.selectPlans(ctx, query, args...)
}

/* ListPlansByTask lists all plans of a task, newest first */
func (q *Queries) ListPlansByTask(ctx context.Context, taskID string) ([]*WorkflowPlan, error) {
	return q.selectPlans(ctx, listPlansByTaskQuery, taskID)
}

func (q *Queries) selectPlans(ctx context.Context, query string, args ...interface{}) ([]*WorkflowPlan, error) {
	var rows []planRow
	if err := q.DB.SelectContext(ctx, &rows, q.rebind(query), args...); err != nil {
		return nil, q.formatQueryError("SELECT", query, len(args), "workflow_plans", err)
	}
	plans := make([]*WorkflowPlan, 0, len(rows))
	for i := range rows {
		plan, err := rows[i].toPlan()
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

/* DeletePlan deletes a plan and, by cascade, its logs */
func (q *Queries) DeletePlan(ctx context.Context, id uuid.UUID) error {
	if _, err := q.DB.ExecContext(ctx, q.rebind(deletePlanQuery), id.String()); err != nil {
		return q.formatQueryError("DELETE", deletePlanQuery, 1, "workflow_plans", err)
	}
	return nil
}
