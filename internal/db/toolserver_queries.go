/*-------------------------------------------------------------------------
 *
 * toolserver_queries.go
 *    Tool server configuration persistence
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/db/toolserver_queries.go
 *
 *-------------------------------------------------------------------------
 */

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const toolServerColumns = `id, project_id, name, transport, streamable, url, hosted_kind, auth_type,
	credential_ref, oauth_provider, scopes, approval_rules, enabled, status, last_error, created_at, updated_at`

const (
	createToolServerQuery = `
		INSERT INTO tool_servers
		(id, project_id, name, transport, streamable, url, hosted_kind, auth_type,
		 credential_ref, oauth_provider, scopes, approval_rules, enabled, status, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	getToolServerQuery = `SELECT ` + toolServerColumns + ` FROM tool_servers WHERE id = ?`

	listToolServersQuery = `SELECT ` + toolServerColumns + ` FROM tool_servers WHERE project_id = ? ORDER BY name ASC`

	updateToolServerStatusQuery = `UPDATE tool_servers SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`

	updateToolServerAuthQuery = `UPDATE tool_servers SET auth_type = ?, credential_ref = ?, updated_at = ? WHERE id = ?`

	deleteToolServerQuery = `DELETE FROM tool_servers WHERE id = ?`
)

/* CreateToolServer stores a tool server configuration */
func (q *Queries) CreateToolServer(ctx context.Context, s *ToolServer) error {
	now := q.now()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.AuthType == "" {
		s.AuthType = AuthTypeNone
	}
	if s.Status == "" {
		s.Status = ServerStatusDisconnected
	}
	s.CreatedAt, s.UpdatedAt = now, now

	params := []interface{}{
		s.ID, s.ProjectID, s.Name, s.Transport, s.Streamable, s.URL, s.HostedKind, s.AuthType,
		s.CredentialRef, s.OAuthProvider, s.Scopes, s.ApprovalRules, s.Enabled, s.Status, s.LastError,
		s.CreatedAt, s.UpdatedAt,
	}
	if _, err := q.DB.ExecContext(ctx, q.rebind(createToolServerQuery), params...); err != nil {
		return q.formatQueryError("INSERT", createToolServerQuery, len(params), "tool_servers", err)
	}
	return nil
}

/* GetToolServer gets a tool server by ID */
func (q *Queries) GetToolServer(ctx context.Context, id uuid.UUID) (*ToolServer, error) {
	var s ToolServer
	err := q.DB.GetContext(ctx, &s, q.rebind(getToolServerQuery), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tool server not found on %s: server_id='%s', table='tool_servers', error=%w",
			q.getConnInfoString(), id.String(), ErrNotFound)
	}
	if err != nil {
		return nil, q.formatQueryError("SELECT", getToolServerQuery, 1, "tool_servers", err)
	}
	return &s, nil
}

/* ListToolServers lists every tool server of a project */
func (q *Queries) ListToolServers(ctx context.Context, projectID string) ([]ToolServer, error) {
	var servers []ToolServer
	if err := q.DB.SelectContext(ctx, &servers, q.rebind(listToolServersQuery), projectID); err != nil {
		return nil, q.formatQueryError("SELECT", listToolServersQuery, 1, "tool_servers", err)
	}
	return servers, nil
}

/* UpdateToolServerStatus records the outcome of the last connection attempt */
func (q *Queries) UpdateToolServerStatus(ctx context.Context, id uuid.UUID, status, lastError string) error {
	params := []interface{}{status, lastError, q.now(), id}
	if _, err := q.DB.ExecContext(ctx, q.rebind(updateToolServerStatusQuery), params...); err != nil {
		return q.formatQueryError("UPDATE", updateToolServerStatusQuery, len(params), "tool_servers", err)
	}
	return nil
}

/* UpdateToolServerAuth points a server at a stored credential */
func (q *Queries) UpdateToolServerAuth(ctx context.Context, id uuid.UUID, authType, credentialRef string) error {
	params := []interface{}{authType, credentialRef, q.now(), id}
	if _, err := q.DB.ExecContext(ctx, q.rebind(updateToolServerAuthQuery), params...); err != nil {
		return q.formatQueryError("UPDATE", updateToolServerAuthQuery, len(params), "tool_servers", err)
	}
	return nil
}

/* DeleteToolServer removes a tool server */
func (q *Queries) DeleteToolServer(ctx context.Context, id uuid.UUID) error {
	if _, err := q.DB.ExecContext(ctx, q.rebind(deleteToolServerQuery), id); err != nil {
		return q.formatQueryError("DELETE", deleteToolServerQuery, 1, "tool_servers", err)
	}
	return nil
}
