/*-------------------------------------------------------------------------
 *
 * main_test.go
 *    Tests for neuronboard command helpers
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/cmd/neuronboard/main_test.go
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurondb/NeuronBoard/internal/config"
	"github.com/neurondb/NeuronBoard/internal/db"
	"github.com/neurondb/NeuronBoard/internal/tools"
)

func TestTailSubject(t *testing.T) {
	cfg := config.DefaultConfig()
	cases := []struct {
		project, eventType, want string
	}{
		{"", "", "neuronboard.>"},
		{"acme", "", "neuronboard.acme.*"},
		{"", "plan.checkpoint", "neuronboard.*.plan.checkpoint"},
		{"acme.web", "plan.failed", "neuronboard.acme_web.plan.failed"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tailSubject(cfg, tc.project, tc.eventType), "project=%q type=%q", tc.project, tc.eventType)
	}
}

func TestPrintCatalog(t *testing.T) {
	var buf bytes.Buffer
	printCatalog(&buf, nil)
	assert.Equal(t, "No tools available\n", buf.String())

	buf.Reset()
	printCatalog(&buf, []tools.Tool{
		{Name: "gh__merge_pr", Description: "Merge a pull request", ApprovalFields: []string{"branch"}},
		{Name: "gh__list_prs"},
	})
	out := buf.String()
	assert.Contains(t, out, "2 tools:")
	assert.Contains(t, out, "gh__merge_pr [approval: branch]")
	assert.Contains(t, out, "Merge a pull request")
	assert.Contains(t, out, "  gh__list_prs\n")
}

func TestPrintServers(t *testing.T) {
	var buf bytes.Buffer
	printServers(&buf, []db.ToolServer{
		{ID: uuid.New(), Name: "board", Transport: db.TransportHosted, HostedKind: "board", Status: db.ServerStatusConnected},
		{ID: uuid.New(), Name: "gh", Transport: db.TransportRemote, URL: "https://mcp.example.com", Status: db.ServerStatusError, LastError: "dial failed"},
	})
	out := buf.String()
	assert.Contains(t, out, "hosted:board")
	assert.Contains(t, out, "https://mcp.example.com")
	assert.Contains(t, out, "dial failed")
}

func TestBuildComponentsWithoutEncryptionKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	cfg := config.DefaultConfig()
	cfg.Database.Driver = db.DriverSQLite

	database, err := db.NewDB(db.DriverSQLite, ":memory:", db.PoolConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate(context.Background()))

	c, err := buildComponents(context.Background(), cfg, database)
	require.NoError(t, err)
	t.Cleanup(c.registry.Close)
	assert.Nil(t, c.store)

	cred, err := c.creds.Resolve(context.Background(), "acme", "anthropic", "")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cred.Secret)

	oauthManager, err := buildOAuth(context.Background(), cfg, c)
	require.NoError(t, err)
	assert.Nil(t, oauthManager)
}

func TestBuildBrokerWebsocketOnly(t *testing.T) {
	cfg := config.DefaultConfig()
	broker, hub, err := buildBroker(cfg)
	require.NoError(t, err)
	defer broker.Close()
	assert.NotNil(t, hub)

	cfg.Events.WebSocket = false
	broker2, hub2, err := buildBroker(cfg)
	require.NoError(t, err)
	defer broker2.Close()
	assert.Nil(t, hub2)
}
