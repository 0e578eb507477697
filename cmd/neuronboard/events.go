/*-------------------------------------------------------------------------
 *
 * events.go
 *    The events command: follows workflow notifications on NATS
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/cmd/neuronboard/events.go
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/neurondb/NeuronBoard/internal/config"
	"github.com/neurondb/NeuronBoard/internal/events"
	"github.com/neurondb/NeuronBoard/internal/reliability"
)

var (
	eventsProject string
	eventsType    string
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Workflow notifications",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print workflow events published on NATS until interrupted",
	RunE:  runEventsTail,
}

func init() {
	eventsTailCmd.Flags().StringVarP(&eventsProject, "project", "p", "", "Only events of this project")
	eventsTailCmd.Flags().StringVarP(&eventsType, "type", "t", "", "Only events of this type (e.g. plan.checkpoint)")
	eventsCmd.AddCommand(eventsTailCmd)
	rootCmd.AddCommand(eventsCmd)
}

/* tailSubject builds the NATS subject pattern for the tail filters */
func tailSubject(cfg *config.Config, project, eventType string) string {
	prefix := cfg.Events.SubjectPrefix
	if prefix == "" {
		prefix = "neuronboard"
	}
	if project == "" && eventType == "" {
		return prefix + ".>"
	}
	if eventType == "" {
		/* Topic makes the project subject safe; reuse it and swap the type for a wildcard */
		subject := events.Topic(prefix, project, "")
		return subject + "*"
	}
	if project == "" {
		return prefix + ".*." + eventType
	}
	return events.Topic(prefix, project, events.EventType(eventType))
}

func runEventsTail(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Events.NATSURL == "" {
		return reliability.NewConfigurationError(reliability.CodeBadConfig, "events.nats_url is not configured", nil)
	}

	backend, err := events.NewNATSBackend(cfg.Events.NATSURL, "neuronboard-tail")
	if err != nil {
		return err
	}
	defer backend.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	subject := tailSubject(cfg, eventsProject, eventsType)
	err = backend.Subscribe(ctx, subject, func(ctx context.Context, event events.Event) error {
		if output == "json" {
			data, err := json.Marshal(event)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
			return nil
		}
		fmt.Fprintf(out, "%s %-18s project=%s plan=%s %v\n",
			event.Timestamp.Format("15:04:05.000"), event.Type, event.ProjectID, event.PlanID, event.Data)
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Listening on %s\n", subject)
	<-ctx.Done()
	return nil
}
