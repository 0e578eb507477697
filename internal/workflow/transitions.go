/*-------------------------------------------------------------------------
 *
 * transitions.go
 *    Plan status transition table
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/workflow/transitions.go
 *
 *-------------------------------------------------------------------------
 */

package workflow

import (
	"github.com/neurondb/NeuronBoard/internal/db"
)

/*
 * transitions lists every legal edge. planning -> failed is the exit taken
 * when no reasoning credential can be resolved before execution starts.
 */
var transitions = map[db.PlanStatus][]db.PlanStatus{
	db.PlanStatusPlanning:   {db.PlanStatusExecuting, db.PlanStatusFailed},
	db.PlanStatusExecuting:  {db.PlanStatusCheckpoint, db.PlanStatusCompleted, db.PlanStatusFailed},
	db.PlanStatusCheckpoint: {db.PlanStatusExecuting, db.PlanStatusFailed},
}

/* CanTransition reports whether from -> to is a legal edge */
func CanTransition(from, to db.PlanStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
