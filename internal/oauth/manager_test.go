/*-------------------------------------------------------------------------
 *
 * manager_test.go
 *    Tests for the OAuth bootstrap
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/oauth/manager_test.go
 *
 *-------------------------------------------------------------------------
 */

package oauth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurondb/NeuronBoard/internal/config"
	"github.com/neurondb/NeuronBoard/internal/credentials"
	"github.com/neurondb/NeuronBoard/internal/db"
	"github.com/neurondb/NeuronBoard/internal/reliability"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type authServer struct {
	mu        sync.Mutex
	challenge string
	exchanges int
}

func (a *authServer) handler(t *testing.T, base func() string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(wellKnownPath, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"issuer":                 base(),
			"authorization_endpoint": base() + "/authorize",
			"token_endpoint":         base() + "/token",
			"userinfo_endpoint":      base() + "/userinfo",
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		a.mu.Lock()
		defer a.mu.Unlock()
		a.exchanges++
		if r.PostForm.Get("code") != "good-code" || codeChallenge(r.PostForm.Get("code_verifier")) != a.challenge {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-123","refresh_token":"rt-456","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at-123", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]string{"sub": "u-1", "email": "dev@example.com"})
	})
	return mux
}

type recordingReconnector struct {
	calls []uuid.UUID
}

func (r *recordingReconnector) Reconnect(ctx context.Context, projectID string, serverID uuid.UUID) error {
	r.calls = append(r.calls, serverID)
	return nil
}

type fixture struct {
	manager     *Manager
	queries     *db.Queries
	creds       *credentials.Store
	server      *db.ToolServer
	auth        *authServer
	reconnector *recordingReconnector
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	auth := &authServer{}
	var srv *httptest.Server
	srv = httptest.NewServer(auth.handler(t, func() string { return srv.URL }))
	t.Cleanup(srv.Close)

	database, err := db.NewDBWithRetry(db.DriverSQLite, ":memory:", db.PoolConfig{}, 1, time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate(ctx))
	queries := db.NewQueriesFor(database)

	server := &db.ToolServer{
		ProjectID: "proj", Name: "acme", Transport: db.TransportRemote, Streamable: true,
		URL: srv.URL + "/mcp", OAuthProvider: "acme", Enabled: true,
	}
	require.NoError(t, queries.CreateToolServer(ctx, server))

	enc, err := credentials.NewEncryption(testSecret, nil)
	require.NoError(t, err)
	store := credentials.NewStore(queries, enc)

	reconnector := &recordingReconnector{}
	cfg := config.OAuthConfig{
		StateSecret: testSecret,
		StateTTL:    10 * time.Minute,
		RedirectURL: "https://board.example/oauth/callback",
		Providers: map[string]config.OAuthProviderConfig{
			"acme": {Kind: string(ProviderGeneric), ClientID: "cid", Scopes: []string{"tools"}},
		},
	}
	manager, err := NewManager(cfg, queries, store, reconnector, srv.Client())
	require.NoError(t, err)

	return &fixture{manager: manager, queries: queries, creds: store, server: server, auth: auth, reconnector: reconnector}
}

func (f *fixture) setClock(now time.Time) {
	f.manager.now = func() time.Time { return now }
	f.manager.signer.now = f.manager.now
}

func (f *fixture) begin(t *testing.T) *BeginResult {
	t.Helper()
	res, err := f.manager.Begin(context.Background(), BeginParams{ProjectID: "proj", ServerID: f.server.ID})
	require.NoError(t, err)

	u, err := url.Parse(res.AuthURL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, res.State, q.Get("state"))
	assert.Equal(t, "cid", q.Get("client_id"))
	f.auth.challenge = q.Get("code_challenge")
	return res
}

func TestCompleteStoresCredentialAndReconnects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.begin(t)

	out, err := f.manager.Complete(ctx, "good-code", res.State)
	require.NoError(t, err)
	assert.Equal(t, "dev@example.com", out.Account)
	assert.Equal(t, []uuid.UUID{f.server.ID}, f.reconnector.calls)

	cred, err := f.creds.Resolve(ctx, "proj", credentials.KindToolServer, "acme")
	require.NoError(t, err)
	assert.Equal(t, "at-123", cred.Secret)
	assert.Equal(t, "rt-456", cred.RefreshToken)
	require.NotNil(t, cred.ExpiresAt)

	server, err := f.queries.GetToolServer(ctx, f.server.ID)
	require.NoError(t, err)
	assert.Equal(t, db.AuthTypeOAuth, server.AuthType)
	assert.Equal(t, "acme", server.CredentialRef)

	_, err = f.manager.Complete(ctx, "good-code", res.State)
	require.Error(t, err)
	assert.Equal(t, reliability.CodeInvalidOAuthState, reliability.CodeOf(err))
	assert.Equal(t, 1, f.auth.exchanges)
}

func TestExpiredStateWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	start := time.Now()
	f.setClock(start)
	res := f.begin(t)

	f.setClock(start.Add(time.Hour))
	_, err := f.manager.Complete(ctx, "good-code", res.State)
	require.Error(t, err)
	assert.True(t, reliability.IsInvalidState(err))
	assert.Equal(t, reliability.CodeInvalidOAuthState, reliability.CodeOf(err))

	_, err = f.creds.Resolve(ctx, "proj", credentials.KindToolServer, "acme")
	assert.True(t, errors.Is(err, credentials.ErrNotFound))
	server, err := f.queries.GetToolServer(ctx, f.server.ID)
	require.NoError(t, err)
	assert.Equal(t, db.AuthTypeNone, server.AuthType)
	assert.Empty(t, f.reconnector.calls)
	assert.Equal(t, 0, f.auth.exchanges)

	n, err := f.manager.SweepExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestForgedStateIsRejected(t *testing.T) {
	f := newFixture(t)
	res := f.begin(t)

	other, err := NewStateSigner("another-secret-another-secret-123")
	require.NoError(t, err)
	forged, err := other.Sign(f.server.ID.String(), "proj", "nonce", time.Now().Add(time.Minute))
	require.NoError(t, err)

	for _, state := range []string{forged, res.State + "x", "garbage"} {
		_, err := f.manager.Complete(context.Background(), "good-code", state)
		assert.Equal(t, reliability.CodeInvalidOAuthState, reliability.CodeOf(err))
	}
	assert.Equal(t, 0, f.auth.exchanges)
}

func TestBeginUnknownProvider(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s := &db.ToolServer{ProjectID: "proj", Name: "other", Transport: db.TransportRemote, URL: "https://x", OAuthProvider: "nope", Enabled: true}
	require.NoError(t, f.queries.CreateToolServer(ctx, s))

	_, err := f.manager.Begin(ctx, BeginParams{ProjectID: "proj", ServerID: s.ID})
	assert.Equal(t, reliability.CodeUnknownProvider, reliability.CodeOf(err))

	_, err = f.manager.Begin(ctx, BeginParams{ProjectID: "someone-else", ServerID: f.server.ID})
	assert.True(t, errors.Is(err, db.ErrNotFound))
}

func TestPKCEChallenge(t *testing.T) {
	verifier, err := generateCodeVerifier()
	require.NoError(t, err)
	assert.Len(t, verifier, 43)
	assert.Equal(t, "4nba_URoSFPzA8Do1AsiX61RXTspG2VmC4xUc_EGWf0", codeChallenge("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW-gXk1FEHjk"))

	sum := sha256.Sum256([]byte(verifier))
	challenge := codeChallenge(verifier)
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), challenge)
	assert.Len(t, challenge, 43)
	assert.NotContains(t, challenge, "=")
}
