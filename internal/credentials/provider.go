/*-------------------------------------------------------------------------
 *
 * provider.go
 *    Credential resolution interfaces
 *
 * Credentials are read-only to the workflow core. Only the OAuth
 * bootstrap writes, through Writer.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/credentials/provider.go
 *
 *-------------------------------------------------------------------------
 */

package credentials

import (
	"context"
	"errors"
	"time"
)

/* Kind is the logical type of a credential */
type Kind string

const (
	/* KindAnthropic is the reasoning backend API key */
	KindAnthropic Kind = "anthropic"
	/* KindToolServer is an API key or OAuth token for a remote tool server */
	KindToolServer Kind = "tool_server"
)

/* ErrNotFound is returned when no provider can resolve a credential */
var ErrNotFound = errors.New("credential not found")

/* Credential is a resolved secret */
type Credential struct {
	Kind         Kind
	Ref          string
	Secret       string
	RefreshToken string
	Account      string
	ExpiresAt    *time.Time
	Source       string
}

/* Expired reports whether the credential has a past expiry */
func (c *Credential) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

/* Provider resolves credentials for a project */
type Provider interface {
	Resolve(ctx context.Context, projectID string, kind Kind, ref string) (*Credential, error)
}

/* Writer stores credentials */
type Writer interface {
	Store(ctx context.Context, projectID string, cred *Credential) error
}

/* Chain tries providers in order and returns the first hit */
type Chain []Provider

/* Resolve implements Provider */
func (c Chain) Resolve(ctx context.Context, projectID string, kind Kind, ref string) (*Credential, error) {
	for _, p := range c {
		cred, err := p.Resolve(ctx, projectID, kind, ref)
		if err == nil && cred != nil && cred.Secret != "" {
			return cred, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}
