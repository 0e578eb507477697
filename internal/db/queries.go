/*-------------------------------------------------------------------------
 *
 * queries.go
 *    Database queries for NeuronBoard
 *
 * Queries are written with '?' placeholders and rebound for the active
 * driver, so the same statements serve PostgreSQL and SQLite.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/db/queries.go
 *
 *-------------------------------------------------------------------------
 */

package db

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

/* ErrActivePlanExists is returned when a task already owns an active plan */
var ErrActivePlanExists = errors.New("task already has an active plan")

/* ErrNotFound is wrapped by lookups that find no row */
var ErrNotFound = errors.New("not found")

/* Queries wraps database operations */
type Queries struct {
	DB       *sqlx.DB
	connInfo func() string
	now      func() time.Time
}

/* NewQueries creates a new Queries instance */
func NewQueries(db *sqlx.DB) *Queries {
	return &Queries{
		DB:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

/* NewQueriesFor creates Queries bound to a managed DB */
func NewQueriesFor(db *DB) *Queries {
	q := NewQueries(db.DB)
	q.SetConnInfoFunc(db.GetConnInfoString)
	return q
}

/* SetConnInfoFunc sets the function used to describe the connection in errors */
func (q *Queries) SetConnInfoFunc(fn func() string) {
	q.connInfo = fn
}

func (q *Queries) getConnInfoString() string {
	if q.connInfo != nil {
		return q.connInfo()
	}
	return "unknown"
}

func (q *Queries) rebind(query string) string {
	return q.DB.Rebind(query)
}

/* formatQueryError formats a query error with context */
func (q *Queries) formatQueryError(operation string, query string, paramCount int, table string, err error) error {
	compact := strings.Join(strings.Fields(query), " ")
	if len(compact) > 160 {
		compact = compact[:160] + "..."
	}
	return fmt.Errorf("query execution failed on %s: operation=%s, table='%s', params=%d, query='%s', error=%w",
		q.getConnInfoString(), operation, table, paramCount, compact, err)
}

/* isUniqueViolation detects unique constraint failures across drivers */
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
