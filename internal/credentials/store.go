/*-------------------------------------------------------------------------
 *
 * store.go
 *    Encrypted database credential store
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/credentials/store.go
 *
 *-------------------------------------------------------------------------
 */

package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/neurondb/NeuronBoard/internal/db"
)

/* CredentialQueries is the persistence used by Store */
type CredentialQueries interface {
	UpsertCredential(ctx context.Context, c *db.StoredCredential) error
	GetCredential(ctx context.Context, projectID, kind, ref string) (*db.StoredCredential, error)
}

/* Store keeps credentials encrypted in the database */
type Store struct {
	queries    CredentialQueries
	encryption *Encryption
}

/* NewStore creates a database backed credential store */
func NewStore(queries CredentialQueries, encryption *Encryption) *Store {
	return &Store{queries: queries, encryption: encryption}
}

/* Resolve implements Provider */
func (s *Store) Resolve(ctx context.Context, projectID string, kind Kind, ref string) (*Credential, error) {
	row, err := s.queries.GetCredential(ctx, projectID, string(kind), ref)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("credential lookup failed: project_id='%s', kind='%s', error=%w", projectID, kind, err)
	}

	secret, err := s.encryption.DecryptString(row.SecretEnc)
	if err != nil {
		return nil, fmt.Errorf("credential lookup failed: project_id='%s', kind='%s', error=%w", projectID, kind, err)
	}
	refresh, err := s.encryption.DecryptString(row.RefreshEnc)
	if err != nil {
		return nil, fmt.Errorf("credential lookup failed: project_id='%s', kind='%s', error=%w", projectID, kind, err)
	}

	return &Credential{
		Kind:         kind,
		Ref:          ref,
		Secret:       secret,
		RefreshToken: refresh,
		Account:      row.Account,
		ExpiresAt:    row.ExpiresAt,
		Source:       "store",
	}, nil
}

/* Store implements Writer */
func (s *Store) Store(ctx context.Context, projectID string, cred *Credential) error {
	secretEnc, err := s.encryption.EncryptString(cred.Secret)
	if err != nil {
		return fmt.Errorf("credential store failed: project_id='%s', kind='%s', error=%w", projectID, cred.Kind, err)
	}
	var refreshEnc string
	if cred.RefreshToken != "" {
		if refreshEnc, err = s.encryption.EncryptString(cred.RefreshToken); err != nil {
			return fmt.Errorf("credential store failed: project_id='%s', kind='%s', error=%w", projectID, cred.Kind, err)
		}
	}
	return s.queries.UpsertCredential(ctx, &db.StoredCredential{
		ProjectID:  projectID,
		Kind:       string(cred.Kind),
		Ref:        cred.Ref,
		SecretEnc:  secretEnc,
		RefreshEnc: refreshEnc,
		Account:    cred.Account,
		ExpiresAt:  cred.ExpiresAt,
	})
}
