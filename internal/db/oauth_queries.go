/*-------------------------------------------------------------------------
 *
 * oauth_queries.go
 *    Pending OAuth authorization and credential persistence
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/db/oauth_queries.go
 *
 *-------------------------------------------------------------------------
 */

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	createPendingAuthQuery = `
		INSERT INTO pending_authorizations
		(nonce, server_id, project_id, provider, code_verifier, redirect_uri, scopes, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	/* Delete-and-return makes consumption single use */
	consumePendingAuthQuery = `
		DELETE FROM pending_authorizations WHERE nonce = ?
		RETURNING nonce, server_id, project_id, provider, code_verifier, redirect_uri, scopes, expires_at, created_at`

	sweepPendingAuthQuery = `DELETE FROM pending_authorizations WHERE expires_at < ?`

	upsertCredentialQuery = `
		INSERT INTO credentials
		(id, project_id, kind, ref, secret_enc, refresh_enc, account, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (project_id, kind, ref) DO UPDATE SET
			secret_enc = excluded.secret_enc,
			refresh_enc = excluded.refresh_enc,
			account = excluded.account,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`

	getCredentialQuery = `
		SELECT id, project_id, kind, ref, secret_enc, refresh_enc, account, expires_at, created_at, updated_at
		FROM credentials WHERE project_id = ? AND kind = ? AND ref = ?`
)

/* CreatePendingAuthorization stores an authorization awaiting its callback */
func (q *Queries) CreatePendingAuthorization(ctx context.Context, p *PendingAuthorization) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = q.now()
	}
	params := []interface{}{p.Nonce, p.ServerID, p.ProjectID, p.Provider, p.CodeVerifier, p.RedirectURI,
		p.Scopes, p.ExpiresAt.UTC(), p.CreatedAt.UTC()}
	if _, err := q.DB.ExecContext(ctx, q.rebind(createPendingAuthQuery), params...); err != nil {
		return q.formatQueryError("INSERT", createPendingAuthQuery, len(params), "pending_authorizations", err)
	}
	return nil
}

/* ConsumePendingAuthorization atomically removes and returns an authorization */
func (q *Queries) ConsumePendingAuthorization(ctx context.Context, nonce string) (*PendingAuthorization, error) {
	var p PendingAuthorization
	err := q.DB.GetContext(ctx, &p, q.rebind(consumePendingAuthQuery), nonce)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pending authorization not found: table='pending_authorizations', error=%w", ErrNotFound)
	}
	if err != nil {
		return nil, q.formatQueryError("DELETE", consumePendingAuthQuery, 1, "pending_authorizations", err)
	}
	return &p, nil
}

/* SweepExpiredAuthorizations deletes authorizations that expired before now */
func (q *Queries) SweepExpiredAuthorizations(ctx context.Context, now time.Time) (int64, error) {
	res, err := q.DB.ExecContext(ctx, q.rebind(sweepPendingAuthQuery), now.UTC())
	if err != nil {
		return 0, q.formatQueryError("DELETE", sweepPendingAuthQuery, 1, "pending_authorizations", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

/* UpsertCredential stores or replaces an encrypted credential */
func (q *Queries) UpsertCredential(ctx context.Context, c *StoredCredential) error {
	now := q.now()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	var expiresAt interface{}
	if c.ExpiresAt != nil {
		expiresAt = c.ExpiresAt.UTC()
	}
	params := []interface{}{c.ID, c.ProjectID, c.Kind, c.Ref, c.SecretEnc, c.RefreshEnc, c.Account,
		expiresAt, c.CreatedAt, c.UpdatedAt}
	if _, err := q.DB.ExecContext(ctx, q.rebind(upsertCredentialQuery), params...); err != nil {
		return q.formatQueryError("UPSERT", upsertCredentialQuery, len(params), "credentials", err)
	}
	return nil
}

/* GetCredential looks up an encrypted credential */
func (q *Queries) GetCredential(ctx context.Context, projectID, kind, ref string) (*StoredCredential, error) {
	var c StoredCredential
	err := q.DB.GetContext(ctx, &c, q.rebind(getCredentialQuery), projectID, kind, ref)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("credential not found: project_id='%s', kind='%s', ref='%s', error=%w",
			projectID, kind, ref, ErrNotFound)
	}
	if err != nil {
		return nil, q.formatQueryError("SELECT", getCredentialQuery, 3, "credentials", err)
	}
	return &c, nil
}
