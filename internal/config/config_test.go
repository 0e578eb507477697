/*-------------------------------------------------------------------------
 *
 * config_test.go
 *    Tests for configuration loading
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/config/config_test.go
 *
 *-------------------------------------------------------------------------
 */

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurondb/NeuronBoard/internal/reliability"
)

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlDoc := `
server:
  port: 9999
database:
  driver: sqlite
  path: /tmp/board.db
workflow:
  max_turns: 12
oauth:
  state_secret: "0123456789abcdef0123456789abcdef"
  providers:
    linear:
      kind: generic
      client_id: abc
      auth_url: https://linear.example/authorize
      token_url: https://linear.example/token
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))
	t.Setenv("WORKFLOW_MAX_TURNS", "7")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/board.db", cfg.Database.DSN())
	assert.Equal(t, 7, cfg.Workflow.MaxTurns)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 10*time.Minute, cfg.OAuth.StateTTL)
	assert.Equal(t, "generic", cfg.OAuth.Providers["linear"].Kind)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }, "unsupported database driver"},
		{"zero turns", func(c *Config) { c.Workflow.MaxTurns = 0 }, "max_turns"},
		{"unknown provider kind", func(c *Config) {
			c.OAuth.StateSecret = strings.Repeat("x", 32)
			c.OAuth.Providers["x"] = OAuthProviderConfig{Kind: "saml"}
		}, "unknown kind"},
		{"short secret", func(c *Config) {
			c.OAuth.Providers["gh"] = OAuthProviderConfig{Kind: "github"}
			c.OAuth.StateSecret = "short"
		}, "state_secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, reliability.IsConfiguration(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "host=localhost port=5432 user=neuronboard password= dbname=neuronboard sslmode=disable", cfg.Database.DSN())
}
