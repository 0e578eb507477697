/*-------------------------------------------------------------------------
 *
 * tools.go
 *    The tools command: inspects the tool servers of a project
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/cmd/neuronboard/tools.go
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neurondb/NeuronBoard/internal/db"
	"github.com/neurondb/NeuronBoard/internal/tools"
)

var toolsProject string

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect project tool servers",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Connect a project's tool servers and print the catalog",
	RunE:  runToolsList,
}

var toolsServersCmd = &cobra.Command{
	Use:   "servers",
	Short: "List a project's configured tool servers",
	RunE:  runToolsServers,
}

func init() {
	toolsCmd.PersistentFlags().StringVarP(&toolsProject, "project", "p", "", "Project ID (required)")
	toolsCmd.MarkPersistentFlagRequired("project")
	toolsCmd.AddCommand(toolsListCmd, toolsServersCmd)
	rootCmd.AddCommand(toolsCmd)
}

func runToolsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
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

	catalog, err := c.registry.Catalog(ctx, toolsProject)
	if err != nil {
		return err
	}
	if output == "json" {
		return writeJSON(cmd.OutOrStdout(), catalog)
	}
	printCatalog(cmd.OutOrStdout(), catalog)
	return nil
}

func runToolsServers(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, err := openDatabase(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	servers, err := db.NewQueriesFor(database).ListToolServers(cmd.Context(), toolsProject)
	if err != nil {
		return err
	}
	if output == "json" {
		return writeJSON(cmd.OutOrStdout(), servers)
	}
	printServers(cmd.OutOrStdout(), servers)
	return nil
}

func printCatalog(w io.Writer, catalog []tools.Tool) {
	if len(catalog) == 0 {
		fmt.Fprintln(w, "No tools available")
		return
	}
	fmt.Fprintf(w, "%d tools:\n", len(catalog))
	for _, t := range catalog {
		gated := ""
		if len(t.ApprovalFields) > 0 {
			gated = fmt.Sprintf(" [approval: %s]", strings.Join(t.ApprovalFields, ", "))
		}
		fmt.Fprintf(w, "  %s%s\n", t.Name, gated)
		if t.Description != "" {
			fmt.Fprintf(w, "      %s\n", t.Description)
		}
	}
}

func printServers(w io.Writer, servers []db.ToolServer) {
	if len(servers) == 0 {
		fmt.Fprintln(w, "No tool servers configured")
		return
	}
	for _, s := range servers {
		target := s.URL
		if s.Transport == db.TransportHosted {
			target = "hosted:" + s.HostedKind
		}
		fmt.Fprintf(w, "%s  %-20s %-8s %-40s %s\n", s.ID, s.Name, s.Status, target, s.LastError)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return nil
}
