/*-------------------------------------------------------------------------
 *
 * components.go
 *    Construction of the collaborators shared by neuronboard commands
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/cmd/neuronboard/components.go
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/neurondb/NeuronBoard/internal/board"
	"github.com/neurondb/NeuronBoard/internal/config"
	"github.com/neurondb/NeuronBoard/internal/credentials"
	"github.com/neurondb/NeuronBoard/internal/db"
	"github.com/neurondb/NeuronBoard/internal/metrics"
	"github.com/neurondb/NeuronBoard/internal/tools"
)

type components struct {
	queries  *db.Queries
	store    *credentials.Store /* nil without an encryption key */
	creds    credentials.Provider
	registry *tools.Registry
}

/*
 * buildComponents wires credential resolution and the tool registry.
 * Stored credentials come first so a project key overrides the process
 * environment.
 */
func buildComponents(ctx context.Context, cfg *config.Config, database *db.DB) (*components, error) {
	c := &components{queries: db.NewQueriesFor(database)}

	var chain credentials.Chain
	if cfg.Credentials.EncryptionKey != "" {
		enc, err := credentials.NewEncryption(cfg.Credentials.EncryptionKey, nil)
		if err != nil {
			return nil, err
		}
		c.store = credentials.NewStore(c.queries, enc)
		chain = append(chain, c.store)
	} else {
		metrics.WarnWithContext(ctx, "No credential encryption key; stored credentials and OAuth are disabled", nil)
	}
	if !cfg.Credentials.DisableEnvVars {
		chain = append(chain, credentials.NewEnvProvider(cfg.Credentials.AnthropicEnv))
	}
	c.creds = chain

	var boardClient board.Client
	if cfg.Board.APIURL != "" {
		boardClient = board.NewHTTPClient(cfg.Board.APIURL, cfg.Board.APIKey, cfg.Board.Timeout)
	}
	dialer := &tools.DefaultDialer{
		Credentials: c.creds,
		Board:       boardClient,
		HTTPClient:  &http.Client{Timeout: 2 * time.Minute},
	}
	c.registry = tools.NewRegistry(c.queries, dialer)
	return c, nil
}
