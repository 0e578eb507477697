/*-------------------------------------------------------------------------
 *
 * credentials_test.go
 *    Tests for credential providers
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/credentials/credentials_test.go
 *
 *-------------------------------------------------------------------------
 */

package credentials

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurondb/NeuronBoard/internal/db"
)

type memQueries struct {
	rows map[string]*db.StoredCredential
}

func (m *memQueries) key(projectID, kind, ref string) string {
	return fmt.Sprintf("%s/%s/%s", projectID, kind, ref)
}

func (m *memQueries) UpsertCredential(ctx context.Context, c *db.StoredCredential) error {
	cp := *c
	m.rows[m.key(c.ProjectID, c.Kind, c.Ref)] = &cp
	return nil
}

func (m *memQueries) GetCredential(ctx context.Context, projectID, kind, ref string) (*db.StoredCredential, error) {
	if c, ok := m.rows[m.key(projectID, kind, ref)]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("lookup: %w", db.ErrNotFound)
}

func TestEncryptionRoundTrip(t *testing.T) {
	enc, err := NewEncryption("passphrase", nil)
	require.NoError(t, err)

	sealed, err := enc.EncryptString("sk-ant-secret")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "sk-ant-secret")

	plain, err := enc.DecryptString(sealed)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-secret", plain)

	other, err := NewEncryption("different", nil)
	require.NoError(t, err)
	_, err = other.DecryptString(sealed)
	assert.Error(t, err)
}

func TestStoreRoundTrip(t *testing.T) {
	enc, err := NewEncryption("passphrase", []byte("salt"))
	require.NoError(t, err)
	q := &memQueries{rows: map[string]*db.StoredCredential{}}
	store := NewStore(q, enc)
	ctx := context.Background()

	_, err = store.Resolve(ctx, "p", KindToolServer, "gh")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, store.Store(ctx, "p", &Credential{Kind: KindToolServer, Ref: "gh", Secret: "tok", RefreshToken: "ref", Account: "octocat"}))
	assert.NotEqual(t, "tok", q.rows["p/tool_server/gh"].SecretEnc)

	cred, err := store.Resolve(ctx, "p", KindToolServer, "gh")
	require.NoError(t, err)
	assert.Equal(t, "tok", cred.Secret)
	assert.Equal(t, "ref", cred.RefreshToken)
	assert.Equal(t, "octocat", cred.Account)
}

func TestEnvProvider(t *testing.T) {
	env := map[string]string{
		"ANTHROPIC_API_KEY":          "sk-env",
		"TOOLSERVER_MY_LINEAR_TOKEN": "lin",
	}
	p := NewEnvProvider("")
	p.lookup = func(k string) (string, bool) { v, ok := env[k]; return v, ok }
	ctx := context.Background()

	cred, err := p.Resolve(ctx, "p", KindAnthropic, "")
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cred.Secret)

	cred, err = p.Resolve(ctx, "p", KindToolServer, "my-linear")
	require.NoError(t, err)
	assert.Equal(t, "lin", cred.Secret)

	_, err = p.Resolve(ctx, "p", KindToolServer, "other")
	assert.True(t, errors.Is(err, ErrNotFound))
}

type staticProvider struct {
	cred *Credential
	err  error
}

func (s staticProvider) Resolve(ctx context.Context, projectID string, kind Kind, ref string) (*Credential, error) {
	return s.cred, s.err
}

func TestChain(t *testing.T) {
	ctx := context.Background()

	chain := Chain{staticProvider{err: ErrNotFound}, staticProvider{cred: &Credential{Secret: "second"}}}
	cred, err := chain.Resolve(ctx, "p", KindAnthropic, "")
	require.NoError(t, err)
	assert.Equal(t, "second", cred.Secret)

	_, err = Chain{staticProvider{err: ErrNotFound}}.Resolve(ctx, "p", KindAnthropic, "")
	assert.True(t, errors.Is(err, ErrNotFound))

	boom := errors.New("db down")
	_, err = Chain{staticProvider{err: boom}, staticProvider{cred: &Credential{Secret: "x"}}}.Resolve(ctx, "p", KindAnthropic, "")
	assert.True(t, errors.Is(err, boom))
}
