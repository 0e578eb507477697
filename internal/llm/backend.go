/*-------------------------------------------------------------------------
 *
 * backend.go
 *    Reasoning backend interface
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/llm/backend.go
 *
 *-------------------------------------------------------------------------
 */

package llm

import (
	"context"

	"github.com/neurondb/NeuronBoard/internal/credentials"
	"github.com/neurondb/NeuronBoard/internal/db"
)

/* ToolDefinition describes a tool the model may call */
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

/* Request is one turn sent to the backend */
type Request struct {
	SystemPrompt string
	History      []db.Turn
	Tools        []ToolDefinition
	MaxTokens    int
	Temperature  float64
}

/* Reply is the model's answer for one turn */
type Reply struct {
	Content    string
	ToolCalls  []db.ToolCall
	StopReason string
}

/* Backend produces the next assistant turn */
type Backend interface {
	Generate(ctx context.Context, req *Request) (*Reply, error)
}

/* Factory builds a backend for a resolved credential */
type Factory interface {
	New(ctx context.Context, cred *credentials.Credential, model string) (Backend, error)
}

/* FactoryFunc adapts a function to Factory */
type FactoryFunc func(ctx context.Context, cred *credentials.Credential, model string) (Backend, error)

/* New implements Factory */
func (f FactoryFunc) New(ctx context.Context, cred *credentials.Credential, model string) (Backend, error) {
	return f(ctx, cred, model)
}
