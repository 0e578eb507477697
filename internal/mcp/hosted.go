/*-------------------------------------------------------------------------
 *
 * hosted.go
 *    In-process tool servers
 *
 * Hosted servers are mcp-go servers living in this process. Requests are
 * encoded as JSON-RPC envelopes and handed to HandleMessage, so hosted
 * and remote replies decode through the same path.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/mcp/hosted.go
 *
 *-------------------------------------------------------------------------
 */

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/neurondb/NeuronBoard/internal/board"
	"github.com/neurondb/NeuronBoard/internal/reliability"
)

/* HostedKind names a built-in tool server */
type HostedKind string

const (
	HostedKindBoard HostedKind = "board"
	HostedKindWeb   HostedKind = "web"
)

/* ApprovalRequiredKey flags an input schema property that needs human approval */
const ApprovalRequiredKey = "x-approval-required"

/* HostedDeps are the collaborators hosted providers may use */
type HostedDeps struct {
	ProjectID  string
	Board      board.Client
	HTTPClient *http.Client
}

/* HostedProvider registers the tools of one hosted kind on a server */
type HostedProvider interface {
	Description() string
	Register(s *server.MCPServer, deps HostedDeps) error
}

/* hostedProviders is closed; adding a kind means adding an entry here */
var hostedProviders = map[HostedKind]HostedProvider{
	HostedKindBoard: boardProvider{},
	HostedKindWeb:   webProvider{},
}

/* HostedKinds lists the registered kinds in name order */
func HostedKinds() []HostedKind {
	kinds := make([]HostedKind, 0, len(hostedProviders))
	for k := range hostedProviders {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

/* ValidateHostedKind returns a ConfigurationError for unknown kinds */
func ValidateHostedKind(kind string) error {
	if _, ok := hostedProviders[HostedKind(kind)]; !ok {
		known := make([]string, 0, len(hostedProviders))
		for _, k := range HostedKinds() {
			known = append(known, string(k))
		}
		return reliability.NewConfigurationError(reliability.CodeUnknownHostedKind,
			fmt.Sprintf("unknown hosted tool server kind '%s' (known: %s)", kind, strings.Join(known, ", ")), nil)
	}
	return nil
}

/* NewHostedClient builds the in-process server for kind and returns a client for it */
func NewHostedClient(name, kind string, deps HostedDeps) (Client, error) {
	if err := ValidateHostedKind(kind); err != nil {
		return nil, err
	}
	provider := hostedProviders[HostedKind(kind)]

	srv := server.NewMCPServer(name, ClientVersion,
		server.WithToolCapabilities(true),
		server.WithInstructions(provider.Description()),
	)
	if err := provider.Register(srv, deps); err != nil {
		return nil, reliability.NewConfigurationError(reliability.CodeBadConfig,
			fmt.Sprintf("hosted tool server '%s' setup failed", name), err)
	}
	return newSession(name, &inProcessTransport{server: srv}), nil
}

type inProcessTransport struct {
	server *server.MCPServer
}

func (t *inProcessTransport) dispatch(ctx context.Context, req *JSONRPCRequest) ([]byte, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("request encode failed: method='%s', error=%w", req.Method, err)
	}
	reply := t.server.HandleMessage(ctx, raw)
	if reply == nil {
		return nil, nil
	}
	out, err := json.Marshal(reply)
	if err != nil {
		return nil, &ProtocolError{Method: req.Method, Message: fmt.Sprintf("reply encode failed: %v", err)}
	}
	return out, nil
}

func (t *inProcessTransport) roundTrip(ctx context.Context, req *JSONRPCRequest) (*JSONRPCResponse, error) {
	out, err := t.dispatch(ctx, req)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, &ProtocolError{Method: req.Method, Message: "no reply from hosted server"}
	}
	return DecodeResponse(req.Method, contentTypeJSON, strings.NewReader(string(out)), req.ID)
}

func (t *inProcessTransport) notify(ctx context.Context, req *JSONRPCRequest) error {
	_, err := t.dispatch(ctx, req)
	return err
}

func (t *inProcessTransport) close() error { return nil }

/* approvalRequired flags a property as needing human approval */
func approvalRequired() mcpgo.PropertyOption {
	return func(schema map[string]any) {
		schema[ApprovalRequiredKey] = true
	}
}

func jsonText(v interface{}) (*mcpgo.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcpgo.NewToolResultError(fmt.Sprintf("failed to format result: %v", err)), nil
	}
	return mcpgo.NewToolResultText(string(b)), nil
}
