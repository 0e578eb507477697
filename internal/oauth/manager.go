/*-------------------------------------------------------------------------
 *
 * manager.go
 *    Tool server OAuth bootstrap: begin, complete and sweep
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/oauth/manager.go
 *
 *-------------------------------------------------------------------------
 */

package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/neurondb/NeuronBoard/internal/config"
	"github.com/neurondb/NeuronBoard/internal/credentials"
	"github.com/neurondb/NeuronBoard/internal/db"
	"github.com/neurondb/NeuronBoard/internal/metrics"
	"github.com/neurondb/NeuronBoard/internal/reliability"
)

/* Store is the persistence the bootstrap needs */
type Store interface {
	GetToolServer(ctx context.Context, id uuid.UUID) (*db.ToolServer, error)
	UpdateToolServerAuth(ctx context.Context, id uuid.UUID, authType, credentialRef string) error
	CreatePendingAuthorization(ctx context.Context, p *db.PendingAuthorization) error
	ConsumePendingAuthorization(ctx context.Context, nonce string) (*db.PendingAuthorization, error)
	SweepExpiredAuthorizations(ctx context.Context, now time.Time) (int64, error)
}

/* Reconnector refreshes a tool server after its credential changes */
type Reconnector interface {
	Reconnect(ctx context.Context, projectID string, serverID uuid.UUID) error
}

/* BeginParams starts an authorization */
type BeginParams struct {
	ProjectID   string
	ServerID    uuid.UUID
	RedirectURI string
}

/* BeginResult is where to send the user */
type BeginResult struct {
	AuthURL   string    `json:"auth_url"`
	State     string    `json:"state"`
	ExpiresAt time.Time `json:"expires_at"`
}

/* CompleteResult describes a finished authorization */
type CompleteResult struct {
	ServerID       uuid.UUID `json:"server_id"`
	ProjectID      string    `json:"project_id"`
	Account        string    `json:"account,omitempty"`
	ReconnectError string    `json:"reconnect_error,omitempty"`
}

/* Manager runs the PKCE authorization code flow for tool servers */
type Manager struct {
	cfg         config.OAuthConfig
	store       Store
	creds       credentials.Writer
	reconnector Reconnector
	signer      *StateSigner
	httpClient  *http.Client
	now         func() time.Time

	mu        sync.Mutex
	providers map[string]Provider
}

/* NewManager creates a manager */
func NewManager(cfg config.OAuthConfig, store Store, creds credentials.Writer, reconnector Reconnector, httpClient *http.Client) (*Manager, error) {
	signer, err := NewStateSigner(cfg.StateSecret)
	if err != nil {
		return nil, reliability.NewConfigurationError(reliability.CodeBadConfig, "oauth state secret is invalid", err)
	}
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = 10 * time.Minute
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Manager{
		cfg:         cfg,
		store:       store,
		creds:       creds,
		reconnector: reconnector,
		signer:      signer,
		httpClient:  httpClient,
		now:         time.Now,
		providers:   make(map[string]Provider),
	}, nil
}

func (m *Manager) provider(ctx context.Context, server *db.ToolServer) (Provider, error) {
	name := server.OAuthProvider
	pcfg, ok := m.cfg.Providers[name]
	if name == "" || !ok {
		return nil, reliability.NewConfigurationError(reliability.CodeUnknownProvider,
			fmt.Sprintf("tool server '%s' references unknown oauth provider '%s'", server.Name, name), nil)
	}

	key := name + "|" + server.URL
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.providers[key]; ok {
		return p, nil
	}
	p, err := NewProvider(ctx, name, pcfg, server.URL, m.httpClient)
	if err != nil {
		return nil, err
	}
	m.providers[key] = p
	return p, nil
}

/* Begin persists a pending authorization and returns the provider URL */
func (m *Manager) Begin(ctx context.Context, params BeginParams) (*BeginResult, error) {
	server, err := m.store.GetToolServer(ctx, params.ServerID)
	if err != nil {
		return nil, err
	}
	if server.ProjectID != params.ProjectID {
		return nil, fmt.Errorf("oauth begin failed: server_id='%s', project_id='%s', error=%w",
			params.ServerID, params.ProjectID, db.ErrNotFound)
	}
	provider, err := m.provider(ctx, server)
	if err != nil {
		return nil, err
	}

	redirectURI := params.RedirectURI
	if redirectURI == "" {
		redirectURI = m.cfg.RedirectURL
	}
	if redirectURI == "" {
		return nil, reliability.NewValidationError(reliability.CodeBadInput, "redirect_uri", "redirect URI is required")
	}

	verifier, err := generateCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("oauth begin failed: verifier_error=true, error=%w", err)
	}
	nonce, err := generateNonce()
	if err != nil {
		return nil, fmt.Errorf("oauth begin failed: nonce_error=true, error=%w", err)
	}

	now := m.now().UTC()
	expiresAt := now.Add(m.cfg.StateTTL)
	scopes := []string(server.Scopes)
	if len(scopes) == 0 {
		scopes = m.cfg.Providers[server.OAuthProvider].Scopes
	}

	pending := &db.PendingAuthorization{
		Nonce:        nonce,
		ServerID:     server.ID,
		ProjectID:    server.ProjectID,
		Provider:     server.OAuthProvider,
		CodeVerifier: verifier,
		RedirectURI:  redirectURI,
		Scopes:       scopes,
		ExpiresAt:    expiresAt,
		CreatedAt:    now,
	}
	if err := m.store.CreatePendingAuthorization(ctx, pending); err != nil {
		return nil, err
	}

	state, err := m.signer.Sign(server.ID.String(), server.ProjectID, nonce, expiresAt)
	if err != nil {
		return nil, err
	}

	metrics.InfoWithContext(ctx, "OAuth authorization started", map[string]interface{}{
		"project_id": server.ProjectID,
		"server":     server.Name,
		"provider":   server.OAuthProvider,
	})
	return &BeginResult{
		AuthURL:   provider.AuthCodeURL(state, codeChallenge(verifier), redirectURI, scopes),
		State:     state,
		ExpiresAt: expiresAt,
	}, nil
}

func invalidState(message string) error {
	return reliability.NewInvalidStateError(reliability.CodeInvalidOAuthState, message, "")
}

/*
 * Complete finishes an authorization. Nothing is written until the state
 * verifies and its pending authorization has been consumed, so a forged,
 * expired or replayed state leaves credentials untouched.
 */
func (m *Manager) Complete(ctx context.Context, code, state string) (*CompleteResult, error) {
	claims, err := m.signer.Verify(state)
	if err != nil {
		metrics.WarnWithContext(ctx, "OAuth state rejected", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, invalidState("oauth state is invalid or expired")
	}
	if code == "" {
		return nil, reliability.NewValidationError(reliability.CodeBadInput, "code", "authorization code is required")
	}

	pending, err := m.store.ConsumePendingAuthorization(ctx, claims.Nonce)
	if errors.Is(err, db.ErrNotFound) {
		return nil, invalidState("oauth state was already used")
	}
	if err != nil {
		return nil, err
	}
	if pending.ServerID.String() != claims.ServerID || pending.ProjectID != claims.ProjectID {
		return nil, invalidState("oauth state does not match its authorization")
	}
	if !m.now().Before(pending.ExpiresAt) {
		return nil, invalidState("oauth authorization expired")
	}

	server, err := m.store.GetToolServer(ctx, pending.ServerID)
	if err != nil {
		return nil, err
	}
	provider, err := m.provider(ctx, server)
	if err != nil {
		return nil, err
	}

	token, err := provider.Exchange(ctx, code, pending.CodeVerifier, pending.RedirectURI)
	if err != nil {
		return nil, err
	}
	account, err := provider.Identity(ctx, token)
	if err != nil {
		metrics.WarnWithContext(ctx, "OAuth identity lookup failed", map[string]interface{}{
			"server": server.Name,
			"error":  err.Error(),
		})
	}

	ref := server.Name
	cred := &credentials.Credential{
		Kind:         credentials.KindToolServer,
		Ref:          ref,
		Secret:       token.AccessToken,
		RefreshToken: token.RefreshToken,
		Account:      account,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		cred.ExpiresAt = &expiry
	}
	if err := m.creds.Store(ctx, server.ProjectID, cred); err != nil {
		return nil, err
	}
	if err := m.store.UpdateToolServerAuth(ctx, server.ID, db.AuthTypeOAuth, ref); err != nil {
		return nil, err
	}

	result := &CompleteResult{ServerID: server.ID, ProjectID: server.ProjectID, Account: account}
	if m.reconnector != nil {
		if err := m.reconnector.Reconnect(ctx, server.ProjectID, server.ID); err != nil {
			result.ReconnectError = err.Error()
		}
	}

	metrics.InfoWithContext(ctx, "OAuth authorization completed", map[string]interface{}{
		"project_id": server.ProjectID,
		"server":     server.Name,
		"account":    account,
	})
	return result, nil
}

/* SweepExpired deletes pending authorizations past their expiry */
func (m *Manager) SweepExpired(ctx context.Context) (int64, error) {
	n, err := m.store.SweepExpiredAuthorizations(ctx, m.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.DebugWithContext(ctx, "Expired OAuth authorizations swept", map[string]interface{}{
			"count": n,
		})
	}
	return n, nil
}

/* RunSweeper sweeps on an interval until ctx is done */
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.SweepExpired(ctx); err != nil {
				metrics.WarnWithContext(ctx, "OAuth sweep failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}
}
