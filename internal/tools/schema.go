/*-------------------------------------------------------------------------
 *
 * schema.go
 *    Input schema parsing and approval field helpers
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/tools/schema.go
 *
 *-------------------------------------------------------------------------
 */

package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/neurondb/NeuronBoard/internal/mcp"
	"github.com/neurondb/NeuronBoard/internal/reliability"
)

/*
 * parseInputSchema decodes a tool input schema and collects the
 * properties flagged x-approval-required. A missing schema is an empty
 * object schema.
 */
func parseInputSchema(raw json.RawMessage) (map[string]interface{}, []string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}, nil, nil
	}

	var schema map[string]interface{}
	if err := json.Unmarshal(trimmed, &schema); err != nil {
		return nil, nil, fmt.Errorf("input schema is not a JSON object: %w", err)
	}
	if t, ok := schema["type"]; ok && t != "object" {
		return nil, nil, fmt.Errorf("input schema type is '%v', want 'object'", t)
	}

	props, _ := schema["properties"].(map[string]interface{})
	var flagged []string
	for name, p := range props {
		prop, ok := p.(map[string]interface{})
		if !ok {
			continue
		}
		if v, _ := prop[mcp.ApprovalRequiredKey].(bool); v {
			flagged = append(flagged, name)
		}
	}
	sort.Strings(flagged)
	return schema, flagged, nil
}

func mergeFields(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, f := range list {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

/* intersectKeys returns the sorted argument keys that are approval fields */
func intersectKeys(args map[string]interface{}, fields []string) []string {
	var out []string
	for _, f := range fields {
		if _, ok := args[f]; ok {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

func badSchemaError(server, tool string, err error) error {
	return reliability.NewTerminalError(reliability.CodeBadToolSchema,
		fmt.Sprintf("malformed schema for tool '%s'", QualifiedName(server, tool)), err)
}
