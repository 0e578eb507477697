/*-------------------------------------------------------------------------
 *
 * toolserver_handlers.go
 *    API handlers for tool servers and their OAuth bootstrap
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/api/toolserver_handlers.go
 *
 *-------------------------------------------------------------------------
 */

package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"

	"github.com/neurondb/NeuronBoard/internal/db"
	"github.com/neurondb/NeuronBoard/internal/mcp"
	"github.com/neurondb/NeuronBoard/internal/metrics"
	"github.com/neurondb/NeuronBoard/internal/oauth"
	"github.com/neurondb/NeuronBoard/internal/reliability"
	"github.com/neurondb/NeuronBoard/internal/tools"
)

/* CreateToolServerRequest attaches a tool server to a project */
type CreateToolServerRequest struct {
	Name          string              `json:"name"`
	Transport     string              `json:"transport"`
	Streamable    bool                `json:"streamable"`
	URL           string              `json:"url,omitempty"`
	HostedKind    string              `json:"hosted_kind,omitempty"`
	AuthType      string              `json:"auth_type,omitempty"`
	CredentialRef string              `json:"credential_ref,omitempty"`
	OAuthProvider string              `json:"oauth_provider,omitempty"`
	Scopes        []string            `json:"scopes,omitempty"`
	ApprovalRules map[string][]string `json:"approval_rules,omitempty"`
	Enabled       *bool               `json:"enabled,omitempty"`
}

/* BeginOAuthRequest optionally overrides the callback URL */
type BeginOAuthRequest struct {
	RedirectURI string `json:"redirect_uri,omitempty"`
}

type ToolServerHandlers struct {
	servers  ServerStore
	registry Registry
	oauth    Authorizer
}

func NewToolServerHandlers(servers ServerStore, registry Registry, authorizer Authorizer) *ToolServerHandlers {
	return &ToolServerHandlers{servers: servers, registry: registry, oauth: authorizer}
}

func (h *ToolServerHandlers) ListToolServers(w http.ResponseWriter, r *http.Request) {
	servers, err := h.servers.ListToolServers(r.Context(), mux.Vars(r)["project_id"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	if servers == nil {
		servers = []db.ToolServer{}
	}
	respondJSON(w, http.StatusOK, servers)
}

/* CreateToolServer stores a server and connects it right away */
func (h *ToolServerHandlers) CreateToolServer(w http.ResponseWriter, r *http.Request) {
	var req CreateToolServerRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := validateToolServer(&req); err != nil {
		respondError(w, r, err)
		return
	}

	projectID := mux.Vars(r)["project_id"]
	server := &db.ToolServer{
		ProjectID:     projectID,
		Name:          req.Name,
		Transport:     req.Transport,
		Streamable:    req.Streamable,
		URL:           req.URL,
		HostedKind:    req.HostedKind,
		AuthType:      req.AuthType,
		CredentialRef: req.CredentialRef,
		OAuthProvider: req.OAuthProvider,
		Scopes:        db.StringList(req.Scopes),
		ApprovalRules: db.ApprovalRules(req.ApprovalRules),
		Enabled:       req.Enabled == nil || *req.Enabled,
	}
	if err := h.servers.CreateToolServer(r.Context(), server); err != nil {
		respondError(w, r, err)
		return
	}

	if server.Enabled {
		if err := h.registry.Reconnect(r.Context(), projectID, server.ID); err != nil {
			metrics.WarnWithContext(r.Context(), "New tool server did not connect", map[string]interface{}{
				"project_id": projectID,
				"server":     server.Name,
				"error":      err.Error(),
			})
		}
		if fresh, err := h.servers.GetToolServer(r.Context(), server.ID); err == nil {
			server = fresh
		}
	}
	respondJSON(w, http.StatusCreated, server)
}

func (h *ToolServerHandlers) DeleteToolServer(w http.ResponseWriter, r *http.Request) {
	server, ok := h.projectServer(w, r)
	if !ok {
		return
	}
	if err := h.servers.DeleteToolServer(r.Context(), server.ID); err != nil {
		respondError(w, r, err)
		return
	}
	/* The server is gone, so Reconnect drops it from the cache and reports not found */
	_ = h.registry.Reconnect(r.Context(), server.ProjectID, server.ID)
	w.WriteHeader(http.StatusNoContent)
}

/* Reconnect re-dials one server and refreshes its cached schemas */
func (h *ToolServerHandlers) Reconnect(w http.ResponseWriter, r *http.Request) {
	server, ok := h.projectServer(w, r)
	if !ok {
		return
	}
	reconnectErr := h.registry.Reconnect(r.Context(), server.ProjectID, server.ID)
	fresh, err := h.servers.GetToolServer(r.Context(), server.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	response := map[string]interface{}{"server": fresh}
	if reconnectErr != nil {
		response["error"] = reconnectErr.Error()
	}
	respondJSON(w, http.StatusOK, response)
}

/* ListTools returns the project catalog as the model sees it */
func (h *ToolServerHandlers) ListTools(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.registry.Catalog(r.Context(), mux.Vars(r)["project_id"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	if catalog == nil {
		catalog = []tools.Tool{}
	}
	respondJSON(w, http.StatusOK, catalog)
}

func (h *ToolServerHandlers) BeginOAuth(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil {
		respondError(w, r, reliability.NewConfigurationError(reliability.CodeBadConfig, "oauth is not configured", nil))
		return
	}
	server, ok := h.projectServer(w, r)
	if !ok {
		return
	}
	var req BeginOAuthRequest
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			respondError(w, r, err)
			return
		}
	}

	result, err := h.oauth.Begin(r.Context(), oauth.BeginParams{
		ProjectID:   server.ProjectID,
		ServerID:    server.ID,
		RedirectURI: req.RedirectURI,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		http.Redirect(w, r, result.AuthURL, http.StatusFound)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

/* OAuthCallback completes an authorization from the provider redirect */
func (h *ToolServerHandlers) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil {
		respondError(w, r, reliability.NewConfigurationError(reliability.CodeBadConfig, "oauth is not configured", nil))
		return
	}
	q := r.URL.Query()
	if providerErr := q.Get("error"); providerErr != "" {
		respondError(w, r, badRequest("error", fmt.Sprintf("authorization denied by provider: %s %s",
			providerErr, q.Get("error_description"))))
		return
	}

	result, err := h.oauth.Complete(r.Context(), q.Get("code"), q.Get("state"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

/* projectServer loads the {id} server and checks it belongs to {project_id} */
func (h *ToolServerHandlers) projectServer(w http.ResponseWriter, r *http.Request) (*db.ToolServer, bool) {
	id, err := pathUUID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return nil, false
	}
	server, err := h.servers.GetToolServer(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return nil, false
	}
	if server.ProjectID != mux.Vars(r)["project_id"] {
		respondError(w, r, &reliability.NotFoundError{Resource: "tool server", ID: id.String()})
		return nil, false
	}
	return server, true
}

func validateToolServer(req *CreateToolServerRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return badRequest("name", "name is required")
	}
	if strings.Contains(req.Name, tools.NameSeparator) {
		return badRequest("name", fmt.Sprintf("name must not contain '%s'", tools.NameSeparator))
	}

	switch req.Transport {
	case db.TransportHosted:
		known := false
		for _, k := range mcp.HostedKinds() {
			if string(k) == req.HostedKind {
				known = true
			}
		}
		if !known {
			return reliability.NewValidationError(reliability.CodeUnknownHostedKind, "hosted_kind",
				fmt.Sprintf("unknown hosted kind '%s'", req.HostedKind))
		}
	case db.TransportRemote:
		u, err := url.Parse(req.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return badRequest("url", "url must be an absolute http(s) URL")
		}
	default:
		return badRequest("transport", "transport must be 'hosted' or 'remote'")
	}

	switch req.AuthType {
	case "", db.AuthTypeNone, db.AuthTypeAPIKey:
	case db.AuthTypeOAuth:
		if req.OAuthProvider == "" {
			return badRequest("oauth_provider", "oauth_provider is required for oauth servers")
		}
	default:
		return badRequest("auth_type", fmt.Sprintf("unknown auth type '%s'", req.AuthType))
	}
	return nil
}
