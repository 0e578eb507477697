/*-------------------------------------------------------------------------
 *
 * dialer.go
 *    Builds tool protocol clients from tool server configuration
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/tools/dialer.go
 *
 *-------------------------------------------------------------------------
 */

package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/neurondb/NeuronBoard/internal/board"
	"github.com/neurondb/NeuronBoard/internal/credentials"
	"github.com/neurondb/NeuronBoard/internal/db"
	"github.com/neurondb/NeuronBoard/internal/mcp"
	"github.com/neurondb/NeuronBoard/internal/reliability"
)

/* Dialer opens a client for one tool server */
type Dialer interface {
	Dial(ctx context.Context, server *db.ToolServer) (mcp.Client, error)
}

/* DefaultDialer dials hosted and remote servers */
type DefaultDialer struct {
	Credentials credentials.Provider
	Board       board.Client
	HTTPClient  *http.Client
}

/* Dial implements Dialer */
func (d *DefaultDialer) Dial(ctx context.Context, server *db.ToolServer) (mcp.Client, error) {
	switch server.Transport {
	case db.TransportHosted:
		return mcp.NewHostedClient(server.Name, server.HostedKind, mcp.HostedDeps{
			ProjectID:  server.ProjectID,
			Board:      d.Board,
			HTTPClient: d.HTTPClient,
		})

	case db.TransportRemote:
		if server.URL == "" {
			return nil, reliability.NewConfigurationError(reliability.CodeNoToolServer,
				fmt.Sprintf("remote tool server '%s' has no url", server.Name), nil)
		}
		token, err := d.token(ctx, server)
		if err != nil {
			return nil, err
		}
		return mcp.NewRemoteClient(mcp.RemoteConfig{
			Name:       server.Name,
			URL:        server.URL,
			Streamable: server.Streamable,
			Token:      token,
			HTTPClient: d.HTTPClient,
		}), nil

	default:
		return nil, reliability.NewConfigurationError(reliability.CodeNoToolServer,
			fmt.Sprintf("tool server '%s' has unknown transport '%s'", server.Name, server.Transport), nil)
	}
}

func (d *DefaultDialer) token(ctx context.Context, server *db.ToolServer) (string, error) {
	if server.AuthType == "" || server.AuthType == db.AuthTypeNone {
		return "", nil
	}
	if d.Credentials == nil {
		return "", reliability.NewConfigurationError(reliability.CodeNoToolServer,
			fmt.Sprintf("tool server '%s' requires credentials but no provider is configured", server.Name), nil)
	}
	ref := server.CredentialRef
	if ref == "" {
		ref = server.Name
	}
	cred, err := d.Credentials.Resolve(ctx, server.ProjectID, credentials.KindToolServer, ref)
	if errors.Is(err, credentials.ErrNotFound) {
		return "", reliability.NewConfigurationError(reliability.CodeNoToolServer,
			fmt.Sprintf("no credential for tool server '%s'", server.Name), err)
	}
	if err != nil {
		return "", fmt.Errorf("credential lookup failed: server='%s', error=%w", server.Name, err)
	}
	return cred.Secret, nil
}
