/*-------------------------------------------------------------------------
 *
 * hosted_web.go
 *    Hosted "web" tool server: fetch a page and extract readable text
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/mcp/hosted_web.go
 *
 *-------------------------------------------------------------------------
 */

package mcp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/microcosm-cc/bluemonday"
)

const (
	webUserAgent   = "NeuronBoard/1.0 (+https://neurondb.ai)"
	maxPageContent = 50000
	maxPageBytes   = 10 * 1024 * 1024
)

type webProvider struct{}

func (webProvider) Description() string {
	return "Fetch web pages and return their main content as plain text."
}

func (webProvider) Register(s *server.MCPServer, deps HostedDeps) error {
	client := deps.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	h := &webTools{client: client, policy: bluemonday.StrictPolicy()}

	s.AddTool(mcpgo.NewTool("fetch_url",
		mcpgo.WithDescription("Fetch a webpage URL and extract the main content as clean, sanitized text"),
		mcpgo.WithString("url", mcpgo.Required(), mcpgo.Description("Full http(s) URL of the page")),
	), h.fetchURL)
	return nil
}

type webTools struct {
	client *http.Client
	policy *bluemonday.Policy
}

func (h *webTools) fetchURL(ctx context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	rawURL, err := request.RequireString("url")
	if err != nil {
		return mcpgo.NewToolResultError("url parameter is required"), nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return mcpgo.NewToolResultError(fmt.Sprintf("invalid url '%s'", rawURL)), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return mcpgo.NewToolResultError(fmt.Sprintf("Failed to create request: %v", err)), nil
	}
	req.Header.Set("User-Agent", webUserAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return mcpgo.NewToolResultError(fmt.Sprintf("Failed to fetch URL: %v", err)), nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return mcpgo.NewToolResultError(fmt.Sprintf("Failed to fetch URL: status code %d", resp.StatusCode)), nil
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxPageBytes), parsed)
	if err != nil {
		return mcpgo.NewToolResultError(fmt.Sprintf("Failed to parse article: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "TITLE: %s\n", h.policy.Sanitize(article.Title))
	if article.Excerpt != "" {
		fmt.Fprintf(&b, "EXCERPT: %s\n", h.policy.Sanitize(article.Excerpt))
	}
	b.WriteString("\n-- CONTENT --\n")
	content := h.policy.Sanitize(article.TextContent)
	if len(content) > maxPageContent {
		content = content[:maxPageContent] + "\n... (content truncated) ..."
	}
	b.WriteString(content)
	return mcpgo.NewToolResultText(b.String()), nil
}
