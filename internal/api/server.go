/*-------------------------------------------------------------------------
 *
 * server.go
 *    HTTP control surface of NeuronBoard
 *
 * Exposes the workflow control operations, plan logs, tool server
 * management and OAuth bootstrap, plus the websocket notification hub,
 * Prometheus metrics and a health probe.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/api/server.go
 *
 *-------------------------------------------------------------------------
 */

package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/neurondb/NeuronBoard/internal/db"
	"github.com/neurondb/NeuronBoard/internal/metrics"
	"github.com/neurondb/NeuronBoard/internal/oauth"
	"github.com/neurondb/NeuronBoard/internal/tools"
	"github.com/neurondb/NeuronBoard/internal/workflow"
)

/* Workflow is the engine surface the handlers drive */
type Workflow interface {
	Create(ctx context.Context, params workflow.CreateParams) (*db.WorkflowPlan, error)
	GetPlan(ctx context.Context, planID uuid.UUID) (*db.WorkflowPlan, error)
	SendEvent(ctx context.Context, planID uuid.UUID, event workflow.ControlEvent) (*db.WorkflowPlan, error)
	Cancel(ctx context.Context, planID uuid.UUID) (*db.WorkflowPlan, error)
	Resume(ctx context.Context, params workflow.ResumeParams) (*db.WorkflowPlan, error)
	ListLogs(ctx context.Context, planID uuid.UUID, limit, offset int) ([]db.WorkflowLog, int, error)
}

/* ServerStore is the tool server persistence the handlers need */
type ServerStore interface {
	ListToolServers(ctx context.Context, projectID string) ([]db.ToolServer, error)
	GetToolServer(ctx context.Context, id uuid.UUID) (*db.ToolServer, error)
	CreateToolServer(ctx context.Context, s *db.ToolServer) error
	DeleteToolServer(ctx context.Context, id uuid.UUID) error
}

/* Registry is the tool registry surface the handlers need */
type Registry interface {
	Catalog(ctx context.Context, projectID string) ([]tools.Tool, error)
	Reconnect(ctx context.Context, projectID string, serverID uuid.UUID) error
}

/* Authorizer runs the tool server OAuth bootstrap */
type Authorizer interface {
	Begin(ctx context.Context, params oauth.BeginParams) (*oauth.BeginResult, error)
	Complete(ctx context.Context, code, state string) (*oauth.CompleteResult, error)
}

/* Deps are the collaborators of the router; OAuth and Hub are optional */
type Deps struct {
	Workflow Workflow
	Servers  ServerStore
	Registry Registry
	OAuth    Authorizer
	Hub      http.Handler
	Health   func(ctx context.Context) error
}

/* NewRouter builds the HTTP router */
func NewRouter(deps Deps) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestIDMiddleware, RecoveryMiddleware, LoggingMiddleware)

	r.HandleFunc("/health", healthHandler(deps.Health)).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	if deps.Hub != nil {
		r.Handle("/ws", deps.Hub).Methods(http.MethodGet)
	}

	v1 := r.PathPrefix("/api/v1").Subrouter()

	plans := NewPlanHandlers(deps.Workflow)
	v1.HandleFunc("/projects/{project_id}/plans", plans.CreatePlan).Methods(http.MethodPost)
	v1.HandleFunc("/plans/{id}", plans.GetPlan).Methods(http.MethodGet)
	v1.HandleFunc("/plans/{id}/events", plans.SendEvent).Methods(http.MethodPost)
	v1.HandleFunc("/plans/{id}/cancel", plans.CancelPlan).Methods(http.MethodPost)
	v1.HandleFunc("/plans/{id}/resume", plans.ResumePlan).Methods(http.MethodPost)
	v1.HandleFunc("/plans/{id}/logs", plans.ListLogs).Methods(http.MethodGet)

	servers := NewToolServerHandlers(deps.Servers, deps.Registry, deps.OAuth)
	v1.HandleFunc("/projects/{project_id}/tool-servers", servers.ListToolServers).Methods(http.MethodGet)
	v1.HandleFunc("/projects/{project_id}/tool-servers", servers.CreateToolServer).Methods(http.MethodPost)
	v1.HandleFunc("/projects/{project_id}/tool-servers/{id}", servers.DeleteToolServer).Methods(http.MethodDelete)
	v1.HandleFunc("/projects/{project_id}/tool-servers/{id}/reconnect", servers.Reconnect).Methods(http.MethodPost)
	v1.HandleFunc("/projects/{project_id}/tools", servers.ListTools).Methods(http.MethodGet)
	v1.HandleFunc("/projects/{project_id}/tool-servers/{id}/oauth/begin", servers.BeginOAuth).Methods(http.MethodPost)
	v1.HandleFunc("/oauth/callback", servers.OAuthCallback).Methods(http.MethodGet)

	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
					"status": "unhealthy",
					"error":  err.Error(),
				})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
	}
}
