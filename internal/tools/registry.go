/*-------------------------------------------------------------------------
 *
 * registry.go
 *    Per-project tool server registry with cached schemas and approval gating
 *
 * The schema cache is filled by Connect and replaced only by Reconnect.
 * Readers take the per-project read lock just long enough to copy the
 * pointers they need; tool calls run without any lock held.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/tools/registry.go
 *
 *-------------------------------------------------------------------------
 */

package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/neurondb/NeuronBoard/internal/db"
	"github.com/neurondb/NeuronBoard/internal/mcp"
	"github.com/neurondb/NeuronBoard/internal/metrics"
)

/* NameSeparator joins server and tool names in the exposed catalog */
const NameSeparator = "__"

/* ErrApprovalRequired is returned when a gated call is dispatched without approval */
var ErrApprovalRequired = errors.New("tool call requires human approval")

/* ServerStore is the tool server persistence the registry needs */
type ServerStore interface {
	ListToolServers(ctx context.Context, projectID string) ([]db.ToolServer, error)
	GetToolServer(ctx context.Context, id uuid.UUID) (*db.ToolServer, error)
	UpdateToolServerStatus(ctx context.Context, id uuid.UUID, status, lastError string) error
}

/* Tool is one entry of a project's exposed catalog */
type Tool struct {
	Name           string                 `json:"name"`
	Server         string                 `json:"server"`
	Tool           string                 `json:"tool"`
	Description    string                 `json:"description,omitempty"`
	Parameters     map[string]interface{} `json:"parameters,omitempty"`
	ApprovalFields []string               `json:"approval_fields,omitempty"`
}

/* GateDecision is the outcome of checking a call against approval rules */
type GateDecision struct {
	Required bool
	Server   string
	Fields   []string
}

/* Approval authorizes exactly one gated call */
type Approval struct {
	ToolCallID string
	Data       map[string]interface{}
}

type cachedTool struct {
	schema     mcp.ToolSchema
	parameters map[string]interface{}
	schemaErr  error
}

type serverEntry struct {
	config db.ToolServer
	client mcp.Client
	tools  map[string]*cachedTool
	order  []string
}

type projectEntry struct {
	mu      sync.RWMutex
	loaded  bool
	servers map[string]*serverEntry
}

/* Registry tracks the tool servers of every project */
type Registry struct {
	store  ServerStore
	dialer Dialer

	mu       sync.Mutex
	projects map[string]*projectEntry
}

/* NewRegistry creates a registry */
func NewRegistry(store ServerStore, dialer Dialer) *Registry {
	return &Registry{
		store:    store,
		dialer:   dialer,
		projects: make(map[string]*projectEntry),
	}
}

func (r *Registry) project(projectID string) *projectEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[projectID]
	if !ok {
		p = &projectEntry{servers: make(map[string]*serverEntry)}
		r.projects[projectID] = p
	}
	return p
}

/*
 * Connect dials every enabled server of a project and caches its tools.
 * A server that fails is recorded with status error and skipped; only a
 * failure to load the configuration fails Connect.
 */
func (r *Registry) Connect(ctx context.Context, projectID string) error {
	servers, err := r.store.ListToolServers(ctx, projectID)
	if err != nil {
		return fmt.Errorf("tool server load failed: project_id='%s', error=%w", projectID, err)
	}

	entries := make(map[string]*serverEntry, len(servers))
	for i := range servers {
		cfg := servers[i]
		if !cfg.Enabled {
			continue
		}
		entry, err := r.dial(ctx, &cfg)
		if err != nil {
			continue
		}
		entries[cfg.Name] = entry
	}

	p := r.project(projectID)
	p.mu.Lock()
	old := p.servers
	p.servers = entries
	p.loaded = true
	p.mu.Unlock()

	for _, e := range old {
		if e.client != nil {
			e.client.Close()
		}
	}

	metrics.InfoWithContext(ctx, "Tool servers connected", map[string]interface{}{
		"project_id": projectID,
		"servers":    len(entries),
	})
	return nil
}

/* Reconnect re-dials one server and replaces its cached schemas */
func (r *Registry) Reconnect(ctx context.Context, projectID string, serverID uuid.UUID) error {
	cfg, err := r.store.GetToolServer(ctx, serverID)
	if errors.Is(err, db.ErrNotFound) {
		r.drop(projectID, serverID)
		return err
	}
	if err != nil {
		return err
	}
	if cfg.ProjectID != projectID {
		return fmt.Errorf("tool server reconnect failed: server_id='%s', project_id='%s', error=%w",
			serverID, projectID, db.ErrNotFound)
	}

	p := r.project(projectID)
	var entry *serverEntry
	if cfg.Enabled {
		entry, err = r.dial(ctx, cfg)
	}

	p.mu.Lock()
	next := make(map[string]*serverEntry, len(p.servers)+1)
	var old *serverEntry
	for name, e := range p.servers {
		if e.config.ID == serverID {
			old = e
			continue
		}
		next[name] = e
	}
	if entry != nil {
		next[cfg.Name] = entry
	}
	p.servers = next
	p.mu.Unlock()

	if old != nil && old.client != nil {
		old.client.Close()
	}
	return err
}

/* drop removes a deleted server from the project cache */
func (r *Registry) drop(projectID string, serverID uuid.UUID) {
	p := r.project(projectID)
	p.mu.Lock()
	var old *serverEntry
	next := make(map[string]*serverEntry, len(p.servers))
	for name, e := range p.servers {
		if e.config.ID == serverID {
			old = e
			continue
		}
		next[name] = e
	}
	p.servers = next
	p.mu.Unlock()
	if old != nil && old.client != nil {
		old.client.Close()
	}
}

func (r *Registry) dial(ctx context.Context, cfg *db.ToolServer) (*serverEntry, error) {
	client, err := r.dialer.Dial(ctx, cfg)
	if err == nil {
		var schemas []mcp.ToolSchema
		schemas, err = client.ListTools(ctx)
		if err == nil {
			entry := newServerEntry(cfg, client, schemas)
			r.setStatus(ctx, cfg, db.ServerStatusConnected, "")
			return entry, nil
		}
		client.Close()
	}

	metrics.WarnWithContext(ctx, "Tool server connection failed", map[string]interface{}{
		"project_id": cfg.ProjectID,
		"server":     cfg.Name,
		"transport":  cfg.Transport,
		"error":      err.Error(),
	})
	r.setStatus(ctx, cfg, db.ServerStatusError, err.Error())
	return nil, err
}

func (r *Registry) setStatus(ctx context.Context, cfg *db.ToolServer, status, lastError string) {
	if err := r.store.UpdateToolServerStatus(ctx, cfg.ID, status, lastError); err != nil {
		metrics.WarnWithContext(ctx, "Tool server status update failed", map[string]interface{}{
			"server": cfg.Name,
			"error":  err.Error(),
		})
	}
}

func newServerEntry(cfg *db.ToolServer, client mcp.Client, schemas []mcp.ToolSchema) *serverEntry {
	entry := &serverEntry{
		config: *cfg,
		client: client,
		tools:  make(map[string]*cachedTool, len(schemas)),
	}
	for _, schema := range schemas {
		params, flagged, err := parseInputSchema(schema.InputSchema)
		schema.ApprovalRequiredFields = mergeFields(flagged, cfg.ApprovalRules[schema.Name])
		entry.tools[schema.Name] = &cachedTool{schema: schema, parameters: params, schemaErr: err}
		entry.order = append(entry.order, schema.Name)
	}
	return entry
}

func (p *projectEntry) snapshot() (map[string]*serverEntry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.servers, p.loaded
}

func (r *Registry) servers(ctx context.Context, projectID string) (map[string]*serverEntry, error) {
	p := r.project(projectID)
	servers, loaded := p.snapshot()
	if loaded {
		return servers, nil
	}
	if err := r.Connect(ctx, projectID); err != nil {
		return nil, err
	}
	servers, _ = p.snapshot()
	return servers, nil
}

/*
 * Catalog returns the tools exposed to the model, named
 * <server>__<tool>. A cached schema that is not a JSON object fails the
 * whole catalog with a TerminalError.
 */
func (r *Registry) Catalog(ctx context.Context, projectID string) ([]Tool, error) {
	servers, err := r.servers(ctx, projectID)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)

	var catalog []Tool
	for _, serverName := range names {
		entry := servers[serverName]
		for _, toolName := range entry.order {
			cached := entry.tools[toolName]
			if cached.schemaErr != nil {
				return nil, badSchemaError(serverName, toolName, cached.schemaErr)
			}
			catalog = append(catalog, Tool{
				Name:           QualifiedName(serverName, toolName),
				Server:         serverName,
				Tool:           toolName,
				Description:    cached.schema.Description,
				Parameters:     cached.parameters,
				ApprovalFields: cached.schema.ApprovalRequiredFields,
			})
		}
	}
	return catalog, nil
}

func (r *Registry) lookup(ctx context.Context, projectID, name string) (*serverEntry, *cachedTool, error) {
	serverName, toolName, ok := SplitName(name)
	if !ok {
		return nil, nil, fmt.Errorf("unknown tool '%s'", name)
	}
	servers, err := r.servers(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	entry, ok := servers[serverName]
	if !ok {
		return nil, nil, fmt.Errorf("unknown tool server '%s'", serverName)
	}
	cached, ok := entry.tools[toolName]
	if !ok {
		return nil, nil, fmt.Errorf("unknown tool '%s' on server '%s'", toolName, serverName)
	}
	return entry, cached, nil
}

/* Gate reports whether a call touches approval-required fields */
func (r *Registry) Gate(ctx context.Context, projectID string, call db.ToolCall) GateDecision {
	entry, cached, err := r.lookup(ctx, projectID, call.Name)
	if err != nil {
		return GateDecision{}
	}
	fields := intersectKeys(call.Arguments, cached.schema.ApprovalRequiredFields)
	return GateDecision{Required: len(fields) > 0, Server: entry.config.Name, Fields: fields}
}

/*
 * Dispatch runs a call. A gated call without a matching approval returns
 * ErrApprovalRequired before the client is touched. Unknown tools and
 * tool failures come back as error-content results.
 */
func (r *Registry) Dispatch(ctx context.Context, projectID string, call db.ToolCall, approval *Approval) (*mcp.CallToolResult, error) {
	entry, cached, err := r.lookup(ctx, projectID, call.Name)
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}

	if fields := intersectKeys(call.Arguments, cached.schema.ApprovalRequiredFields); len(fields) > 0 {
		if approval == nil || approval.ToolCallID != call.ID {
			return nil, fmt.Errorf("tool dispatch refused: tool='%s', fields=%v, error=%w", call.Name, fields, ErrApprovalRequired)
		}
	}

	ctx = metrics.WithToolIDLogContext(ctx, call.ID)
	return mcp.Invoke(ctx, entry.client, entry.config.Name, cached.schema.Name, call.Arguments), nil
}

/* Close closes every cached client */
func (r *Registry) Close() {
	r.mu.Lock()
	projects := r.projects
	r.projects = make(map[string]*projectEntry)
	r.mu.Unlock()

	for _, p := range projects {
		p.mu.Lock()
		for _, e := range p.servers {
			if e.client != nil {
				e.client.Close()
			}
		}
		p.servers = nil
		p.mu.Unlock()
	}
}

/* QualifiedName namespaces a tool by its server */
func QualifiedName(server, tool string) string {
	return server + NameSeparator + tool
}

/* SplitName is the inverse of QualifiedName */
func SplitName(name string) (server, tool string, ok bool) {
	server, tool, ok = strings.Cut(name, NameSeparator)
	if !ok || server == "" || tool == "" {
		return "", "", false
	}
	return server, tool, true
}
