/*-------------------------------------------------------------------------
 *
 * errors.go
 *    Error responses and the mapping from error types to HTTP status
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/api/errors.go
 *
 *-------------------------------------------------------------------------
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/neurondb/NeuronBoard/internal/db"
	"github.com/neurondb/NeuronBoard/internal/metrics"
	"github.com/neurondb/NeuronBoard/internal/reliability"
	"github.com/neurondb/NeuronBoard/internal/workflow"
)

/* ErrorResponse represents an error response */
type ErrorResponse struct {
	Error     string                 `json:"error"`
	Message   string                 `json:"message,omitempty"`
	Code      string                 `json:"code,omitempty"`
	Field     string                 `json:"field,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

/* statusOf maps an error to its HTTP status */
func statusOf(err error) int {
	var valErr *reliability.ValidationError
	var stateErr *reliability.InvalidStateError
	var cfgErr *reliability.ConfigurationError
	var nfErr *reliability.NotFoundError
	switch {
	case errors.As(err, &valErr):
		return http.StatusBadRequest
	case errors.As(err, &stateErr):
		if stateErr.Code == reliability.CodeInvalidOAuthState {
			return http.StatusBadRequest
		}
		return http.StatusConflict
	case errors.As(err, &cfgErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &nfErr), errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, db.ErrActivePlanExists):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrEngineClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	respondErrorWithDetails(w, r, err, nil)
}

func respondErrorWithDetails(w http.ResponseWriter, r *http.Request, err error, details map[string]interface{}) {
	status := statusOf(err)
	response := ErrorResponse{
		Error:     http.StatusText(status),
		Message:   err.Error(),
		Details:   details,
		RequestID: GetRequestID(r.Context()),
	}

	code := reliability.CodeOf(err)
	switch {
	case errors.Is(err, db.ErrNotFound):
		code = reliability.CodeNotFound
	case errors.Is(err, db.ErrActivePlanExists):
		code = reliability.CodeInvalidState
	}
	if status != http.StatusInternalServerError {
		response.Code = string(code)
	}

	var valErr *reliability.ValidationError
	if errors.As(err, &valErr) {
		response.Field = valErr.Field
		response.Message = valErr.Message
	}
	if status == http.StatusInternalServerError {
		metrics.ErrorWithContext(r.Context(), "Request failed", err, map[string]interface{}{
			"path":   r.URL.Path,
			"method": r.Method,
		})
		response.Message = "internal server error"
	}
	respondJSON(w, status, response)
}

func badRequest(field, message string) error {
	return reliability.NewValidationError(reliability.CodeBadInput, field, message)
}
