/*-------------------------------------------------------------------------
 *
 * env.go
 *    Environment variable credential provider
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/credentials/env.go
 *
 *-------------------------------------------------------------------------
 */

package credentials

import (
	"context"
	"os"
	"strings"
)

/* EnvProvider resolves credentials from process environment variables */
type EnvProvider struct {
	/* Vars maps a kind to its variable; tool server refs use TOOLSERVER_<REF>_TOKEN */
	Vars   map[Kind]string
	lookup func(string) (string, bool)
}

/* NewEnvProvider creates an environment provider reading anthropicVar for the reasoning key */
func NewEnvProvider(anthropicVar string) *EnvProvider {
	if anthropicVar == "" {
		anthropicVar = "ANTHROPIC_API_KEY"
	}
	return &EnvProvider{
		Vars:   map[Kind]string{KindAnthropic: anthropicVar},
		lookup: os.LookupEnv,
	}
}

/* Resolve implements Provider */
func (p *EnvProvider) Resolve(ctx context.Context, projectID string, kind Kind, ref string) (*Credential, error) {
	name := p.Vars[kind]
	if kind == KindToolServer && ref != "" {
		name = "TOOLSERVER_" + envSafe(ref) + "_TOKEN"
	}
	if name == "" {
		return nil, ErrNotFound
	}
	value, ok := p.lookup(name)
	if !ok || strings.TrimSpace(value) == "" {
		return nil, ErrNotFound
	}
	return &Credential{Kind: kind, Ref: ref, Secret: strings.TrimSpace(value), Source: "env:" + name}, nil
}

func envSafe(ref string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(ref) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
