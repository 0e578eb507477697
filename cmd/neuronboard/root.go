/*-------------------------------------------------------------------------
 *
 * root.go
 *    Root command and global flags for neuronboard
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/cmd/neuronboard/root.go
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/neurondb/NeuronBoard/internal/config"
	"github.com/neurondb/NeuronBoard/internal/db"
	"github.com/neurondb/NeuronBoard/internal/metrics"
)

var (
	configPath string
	logLevel   string
	logFormat  string
	output     string
)

var rootCmd = &cobra.Command{
	Use:   "neuronboard",
	Short: "NeuronBoard - agent task orchestration",
	Long: `NeuronBoard drives AI agents through board tasks: it plans, calls tools on
MCP servers, stops at checkpoints for human approval and records everything.

Examples:
  # Run the server
  neuronboard serve --config neuronboard.yaml

  # Apply database migrations
  neuronboard migrate

  # Show the tool catalog of a project
  neuronboard tools list --project acme

  # Follow workflow events published on NATS
  neuronboard events tail --project acme
`,
	SilenceUsage: true,
}

/* Execute runs the root command */
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", getEnvOrDefault("NEURONBOARD_CONFIG", ""), "Path to YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Override the configured log format (json, console)")
	rootCmd.PersistentFlags().StringVar(&output, "format", "text", "Output format (text, json)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

/* loadConfig loads configuration and initializes logging from it */
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	metrics.InitLogging(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

/* openDatabase connects and migrates the configured database */
func openDatabase(ctx context.Context, cfg *config.Config) (*db.DB, error) {
	database, err := db.NewDBWithRetry(cfg.Database.Driver, cfg.Database.DSN(), db.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}, 5, 2*time.Second)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}
