/*-------------------------------------------------------------------------
 *
 * errors.go
 *    Workflow engine errors and terminal messages
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/workflow/errors.go
 *
 *-------------------------------------------------------------------------
 */

package workflow

import (
	"errors"
	"fmt"

	"github.com/neurondb/NeuronBoard/internal/db"
	"github.com/neurondb/NeuronBoard/internal/reliability"
)

/* Terminal result messages */
const (
	MsgCancelledByUser       = "Cancelled by user"
	MsgCheckpointCancelled   = "Checkpoint cancelled by user"
	MsgNoAnthropicCredential = "No Anthropic API key configured for this project"
	MsgTurnBudgetExhausted   = "Turn budget exhausted before the task finished"
)

/* ErrEngineClosed is returned once Close has been called */
var ErrEngineClosed = errors.New("workflow engine is closed")

func invalidStatus(op string, plan *db.WorkflowPlan) error {
	return reliability.NewInvalidStateError(reliability.CodeInvalidState,
		fmt.Sprintf("%s is not allowed while plan %s is %s", op, plan.ID, plan.Status), string(plan.Status))
}

func illegalTransition(plan *db.WorkflowPlan, to db.PlanStatus) error {
	return reliability.NewInvalidStateError(reliability.CodeInvalidState,
		fmt.Sprintf("illegal transition %s -> %s for plan %s", plan.Status, to, plan.ID), string(plan.Status))
}

/* failure maps a turn loop error to the persisted result */
func failure(err error) *db.PlanResult {
	code := reliability.CodeOf(err)
	message := err.Error()

	var cfgErr *reliability.ConfigurationError
	var termErr *reliability.TerminalError
	switch {
	case errors.As(err, &cfgErr):
		message = cfgErr.Message
	case errors.As(err, &termErr):
		message = termErr.Error()
	}
	return &db.PlanResult{Error: message, Code: string(code)}
}
