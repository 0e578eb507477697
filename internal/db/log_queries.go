/*-------------------------------------------------------------------------
 *
 * log_queries.go
 *    Append-only workflow log persistence
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/db/log_queries.go
 *
 *-------------------------------------------------------------------------
 */

package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	appendLogQuery = `
		INSERT INTO workflow_logs (id, plan_id, ts, level, message, step_id, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	listLogsQuery = `
		SELECT id, plan_id, ts, level, message, step_id, metadata
		FROM workflow_logs
		WHERE plan_id = ?
		ORDER BY ts ASC, id ASC
		LIMIT ? OFFSET ?`

	countLogsQuery = `SELECT COUNT(*) FROM workflow_logs WHERE plan_id = ?`
)

type logRow struct {
	ID        string         `db:"id"`
	PlanID    string         `db:"plan_id"`
	Timestamp time.Time      `db:"ts"`
	Level     string         `db:"level"`
	Message   string         `db:"message"`
	StepID    sql.NullString `db:"step_id"`
	Metadata  sql.NullString `db:"metadata"`
}

/* AppendLog appends a log entry for a plan */
func (q *Queries) AppendLog(ctx context.Context, entry *WorkflowLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = q.now()
	}
	if entry.Level == "" {
		entry.Level = LogLevelInfo
	}

	var stepID interface{}
	if entry.StepID != "" {
		stepID = entry.StepID
	}
	metadata, err := nullableJSON(entry.Metadata, len(entry.Metadata) > 0)
	if err != nil {
		return fmt.Errorf("log encode failed: column='metadata', error=%w", err)
	}

	params := []interface{}{entry.ID.String(), entry.PlanID.String(), entry.Timestamp.UTC(), entry.Level, entry.Message, stepID, metadata}
	if _, err := q.DB.ExecContext(ctx, q.rebind(appendLogQuery), params...); err != nil {
		return q.formatQueryError("INSERT", appendLogQuery, len(params), "workflow_logs", err)
	}
	return nil
}

/* ListLogs returns a page of logs for a plan in chronological order, plus the total count */
func (q *Queries) ListLogs(ctx context.Context, planID uuid.UUID, limit, offset int) ([]WorkflowLog, int, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := q.DB.GetContext(ctx, &total, q.rebind(countLogsQuery), planID.String()); err != nil {
		return nil, 0, q.formatQueryError("SELECT", countLogsQuery, 1, "workflow_logs", err)
	}

	var rows []logRow
	if err := q.DB.SelectContext(ctx, &rows, q.rebind(listLogsQuery), planID.String(), limit, offset); err != nil {
		return nil, 0, q.formatQueryError("SELECT", listLogsQuery, 3, "workflow_logs", err)
	}

	logs := make([]WorkflowLog, 0, len(rows))
	for _, r := range rows {
		entry := WorkflowLog{
			Timestamp: r.Timestamp,
			Level:     r.Level,
			Message:   r.Message,
		}
		entry.ID, _ = uuid.Parse(r.ID)
		entry.PlanID, _ = uuid.Parse(r.PlanID)
		if r.StepID.Valid {
			entry.StepID = r.StepID.String
		}
		if r.Metadata.Valid {
			if err := scanJSON(r.Metadata.String, &entry.Metadata); err != nil {
				return nil, 0, fmt.Errorf("log decode failed: log_id='%s', column='metadata', error=%w", r.ID, err)
			}
		}
		logs = append(logs, entry)
	}
	return logs, total, nil
}
