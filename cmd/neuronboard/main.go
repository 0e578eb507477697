/*-------------------------------------------------------------------------
 *
 * main.go
 *    Entry point for the NeuronBoard orchestration server and CLI
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/cmd/neuronboard/main.go
 *
 *-------------------------------------------------------------------------
 */

package main

var (
	version   = "dev"
	buildDate = "unknown"
	gitCommit = "unknown"
)

func main() {
	Execute()
}
