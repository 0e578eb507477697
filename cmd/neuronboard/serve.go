/*-------------------------------------------------------------------------
 *
 * serve.go
 *    The serve command: runs the workflow engine and HTTP control surface
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/cmd/neuronboard/serve.go
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/neurondb/NeuronBoard/internal/api"
	"github.com/neurondb/NeuronBoard/internal/config"
	"github.com/neurondb/NeuronBoard/internal/events"
	"github.com/neurondb/NeuronBoard/internal/llm"
	"github.com/neurondb/NeuronBoard/internal/metrics"
	"github.com/neurondb/NeuronBoard/internal/oauth"
	"github.com/neurondb/NeuronBoard/internal/workflow"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the orchestration server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.InfoWithContext(ctx, "Starting NeuronBoard", map[string]interface{}{
		"version":    version,
		"build_date": buildDate,
		"git_commit": gitCommit,
		"addr":       cfg.Server.Addr(),
	})

	database, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	c, err := buildComponents(ctx, cfg, database)
	if err != nil {
		return err
	}
	defer c.registry.Close()

	broker, hub, err := buildBroker(cfg)
	if err != nil {
		return err
	}
	defer broker.Close()

	engine := workflow.NewEngine(c.queries, c.registry, c.creds, llm.NewAnthropicFactory(cfg.LLM), cfg)
	engine.SetSink(broker)
	defer engine.Close()

	if cfg.Workflow.RecoverOnStart {
		n, err := engine.Recover(ctx)
		if err != nil {
			metrics.ErrorWithContext(ctx, "Plan recovery failed", err, nil)
		} else if n > 0 {
			metrics.InfoWithContext(ctx, "Recovered interrupted plans", map[string]interface{}{
				"count": n,
			})
		}
	}

	deps := api.Deps{
		Workflow: engine,
		Servers:  c.queries,
		Registry: c.registry,
		Health:   database.HealthCheck,
	}
	if hub != nil {
		deps.Hub = hub
	}

	manager, err := buildOAuth(ctx, cfg, c)
	if err != nil {
		return err
	}
	if manager != nil {
		deps.OAuth = manager
		go manager.RunSweeper(ctx, cfg.OAuth.SweepInterval)
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		metrics.InfoWithContext(ctx, "HTTP server listening", map[string]interface{}{
			"addr": server.Addr,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server failed: addr='%s', error=%w", server.Addr, err)
		}
	case <-ctx.Done():
	}

	metrics.InfoWithContext(context.Background(), "Shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		metrics.WarnWithContext(shutdownCtx, "HTTP server shutdown failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return nil
}

/* buildBroker sets up event fan-out; the hub is nil when websockets are off */
func buildBroker(cfg *config.Config) (*events.Broker, *events.Hub, error) {
	broker := events.NewBroker(cfg.Events.SubjectPrefix)

	var hub *events.Hub
	if cfg.Events.WebSocket {
		hub = events.NewHub()
		broker.AddBackend(hub)
	}
	if cfg.Events.NATSURL != "" {
		hostname, _ := os.Hostname()
		backend, err := events.NewNATSBackend(cfg.Events.NATSURL, "neuronboard-"+hostname)
		if err != nil {
			broker.Close()
			return nil, nil, err
		}
		broker.AddBackend(backend)
	}
	return broker, hub, nil
}

/* buildOAuth returns nil when no provider is configured or credentials cannot be stored */
func buildOAuth(ctx context.Context, cfg *config.Config, c *components) (*oauth.Manager, error) {
	if len(cfg.OAuth.Providers) == 0 {
		return nil, nil
	}
	if c.store == nil {
		metrics.WarnWithContext(ctx, "OAuth providers configured without credential encryption key; OAuth disabled", nil)
		return nil, nil
	}
	oauthCfg := cfg.OAuth
	if oauthCfg.RedirectURL == "" && cfg.Server.PublicURL != "" {
		oauthCfg.RedirectURL = strings.TrimRight(cfg.Server.PublicURL, "/") + "/api/v1/oauth/callback"
	}
	return oauth.NewManager(oauthCfg, c.queries, c.store, c.registry, nil)
}
