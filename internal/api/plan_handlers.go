/*-------------------------------------------------------------------------
 *
 * plan_handlers.go
 *    API handlers for workflow plans
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/api/plan_handlers.go
 *
 *-------------------------------------------------------------------------
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/neurondb/NeuronBoard/internal/db"
	"github.com/neurondb/NeuronBoard/internal/metrics"
	"github.com/neurondb/NeuronBoard/internal/workflow"
)

const (
	maxBodySize     = 1024 * 1024
	defaultLogLimit = 50
	maxLogLimit     = 500
)

/* CreatePlanRequest starts a plan for a task */
type CreatePlanRequest struct {
	TaskID          string `json:"task_id"`
	TaskDescription string `json:"task_description"`
	SystemPrompt    string `json:"system_prompt,omitempty"`
	Model           string `json:"model,omitempty"`
}

/* ResumePlanRequest carries the feedback for a resumed plan */
type ResumePlanRequest struct {
	Feedback string `json:"feedback"`
}

/* LogsResponse is one page of plan logs */
type LogsResponse struct {
	Logs   []db.WorkflowLog `json:"logs"`
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

type PlanHandlers struct {
	workflow Workflow
}

func NewPlanHandlers(wf Workflow) *PlanHandlers {
	return &PlanHandlers{workflow: wf}
}

/* CreatePlan starts a plan; a plan that failed to start is returned in the error details */
func (h *PlanHandlers) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	projectID := mux.Vars(r)["project_id"]
	plan, err := h.workflow.Create(r.Context(), workflow.CreateParams{
		ProjectID:       projectID,
		TaskID:          req.TaskID,
		TaskDescription: req.TaskDescription,
		SystemPrompt:    req.SystemPrompt,
		Model:           req.Model,
	})
	if err != nil {
		var details map[string]interface{}
		if plan != nil {
			details = map[string]interface{}{"plan": plan}
		}
		respondErrorWithDetails(w, r, err, details)
		return
	}

	metrics.InfoWithContext(r.Context(), "Plan started", map[string]interface{}{
		"project_id": projectID,
		"plan_id":    plan.ID.String(),
		"task_id":    plan.TaskID,
	})
	respondJSON(w, http.StatusCreated, plan)
}

func (h *PlanHandlers) GetPlan(w http.ResponseWriter, r *http.Request) {
	planID, err := pathUUID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	plan, err := h.workflow.GetPlan(r.Context(), planID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

/* SendEvent delivers a control event such as a checkpoint decision */
func (h *PlanHandlers) SendEvent(w http.ResponseWriter, r *http.Request) {
	planID, err := pathUUID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var event workflow.ControlEvent
	if err := decodeBody(r, &event); err != nil {
		respondError(w, r, err)
		return
	}
	plan, err := h.workflow.SendEvent(r.Context(), planID, event)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

func (h *PlanHandlers) CancelPlan(w http.ResponseWriter, r *http.Request) {
	planID, err := pathUUID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	plan, err := h.workflow.Cancel(r.Context(), planID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

/* ResumePlan starts a new plan from a terminal one */
func (h *PlanHandlers) ResumePlan(w http.ResponseWriter, r *http.Request) {
	planID, err := pathUUID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req ResumePlanRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	plan, err := h.workflow.Resume(r.Context(), workflow.ResumeParams{PlanID: planID, Feedback: req.Feedback})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, plan)
}

func (h *PlanHandlers) ListLogs(w http.ResponseWriter, r *http.Request) {
	planID, err := pathUUID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultLogLimit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if limit <= 0 || limit > maxLogLimit {
		respondError(w, r, badRequest("limit", fmt.Sprintf("limit must be between 1 and %d", maxLogLimit)))
		return
	}
	if offset < 0 {
		respondError(w, r, badRequest("offset", "offset must not be negative"))
		return
	}

	if _, err := h.workflow.GetPlan(r.Context(), planID); err != nil {
		respondError(w, r, err)
		return
	}
	logs, total, err := h.workflow.ListLogs(r.Context(), planID, limit, offset)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if logs == nil {
		logs = []db.WorkflowLog{}
	}
	respondJSON(w, http.StatusOK, LogsResponse{Logs: logs, Total: total, Limit: limit, Offset: offset})
}

func decodeBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return badRequest("body", "request body could not be read")
	}
	if len(body) > maxBodySize {
		return badRequest("body", "request body too large")
	}
	if len(body) == 0 {
		return badRequest("body", "request body is required")
	}
	if err := json.Unmarshal(body, v); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return badRequest("body", fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset))
		}
		return badRequest("body", err.Error())
	}
	return nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, badRequest(name, "must be a UUID")
	}
	return id, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest(name, "must be an integer")
	}
	return n, nil
}
