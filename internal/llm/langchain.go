/*-------------------------------------------------------------------------
 *
 * langchain.go
 *    Anthropic backend built on langchaingo
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/llm/langchain.go
 *
 *-------------------------------------------------------------------------
 */

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"go.opentelemetry.io/otel/attribute"

	"github.com/neurondb/NeuronBoard/internal/config"
	"github.com/neurondb/NeuronBoard/internal/credentials"
	"github.com/neurondb/NeuronBoard/internal/db"
	"github.com/neurondb/NeuronBoard/internal/metrics"
	"github.com/neurondb/NeuronBoard/internal/reliability"
)

/* RawArgumentsKey holds tool call arguments that were not a JSON object */
const RawArgumentsKey = "_raw"

/* LangchainBackend drives any langchaingo model */
type LangchainBackend struct {
	model  llms.Model
	name   string
	policy reliability.RetryPolicy
}

/* NewLangchainBackend wraps a langchaingo model */
func NewLangchainBackend(model llms.Model, name string, policy reliability.RetryPolicy) *LangchainBackend {
	return &LangchainBackend{model: model, name: name, policy: policy}
}

/* AnthropicFactory creates Anthropic backends from the reasoning credential */
type AnthropicFactory struct {
	cfg config.LLMConfig
}

/* NewAnthropicFactory creates a factory from config */
func NewAnthropicFactory(cfg config.LLMConfig) *AnthropicFactory {
	return &AnthropicFactory{cfg: cfg}
}

/* New implements Factory */
func (f *AnthropicFactory) New(ctx context.Context, cred *credentials.Credential, model string) (Backend, error) {
	if cred == nil || cred.Secret == "" {
		return nil, reliability.NewConfigurationError(reliability.CodeNoAnthropic, "Anthropic API key is not configured", nil)
	}
	if model == "" {
		model = f.cfg.Model
	}
	opts := []anthropic.Option{anthropic.WithToken(cred.Secret), anthropic.WithModel(model)}
	if f.cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(f.cfg.BaseURL))
	}
	m, err := anthropic.New(opts...)
	if err != nil {
		return nil, reliability.NewConfigurationError(reliability.CodeNoAnthropic, "Anthropic client setup failed", err)
	}
	policy := reliability.RetryPolicy{
		MaxAttempts:     f.cfg.RetryAttempts,
		InitialInterval: f.cfg.RetryInterval,
		MaxInterval:     10 * f.cfg.RetryInterval,
		MaxElapsed:      f.cfg.RetryMaxElapsed,
	}
	return NewLangchainBackend(m, model, policy), nil
}

/*
 * Generate sends the conversation and returns the next assistant turn.
 * Transient failures are retried under the policy; whatever is left
 * afterwards is a TerminalError, except cancellation which is returned
 * as is.
 */
func (b *LangchainBackend) Generate(ctx context.Context, req *Request) (*Reply, error) {
	messages := ToMessages(req.SystemPrompt, req.History)
	options := []llms.CallOption{}
	if len(req.Tools) > 0 {
		options = append(options, llms.WithTools(toLLMTools(req.Tools)))
	}
	if req.MaxTokens > 0 {
		options = append(options, llms.WithMaxTokens(req.MaxTokens))
	}
	if req.Temperature > 0 {
		options = append(options, llms.WithTemperature(req.Temperature))
	}

	ctx, span := metrics.StartSpan(ctx, "llm.generate",
		attribute.String("llm.model", b.name),
		attribute.Int("llm.messages", len(messages)),
		attribute.Int("llm.tools", len(req.Tools)))

	start := time.Now()
	resp, err := reliability.Retry(ctx, b.policy, "llm.generate", func(ctx context.Context) (*llms.ContentResponse, error) {
		return b.model.GenerateContent(ctx, messages, options...)
	})
	metrics.EndSpan(span, err)

	if err != nil {
		metrics.RecordLLMCall(b.name, "error", time.Since(start))
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return nil, err
		}
		return nil, reliability.NewTerminalError(reliability.CodeBackendExhausted, "reasoning backend failed", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		metrics.RecordLLMCall(b.name, "empty", time.Since(start))
		return nil, reliability.NewTerminalError(reliability.CodeBackendExhausted, "reasoning backend returned no choices", nil)
	}
	metrics.RecordLLMCall(b.name, "success", time.Since(start))

	/* Anthropic returns one choice per content block */
	reply := &Reply{}
	var text []string
	for _, choice := range resp.Choices {
		if choice == nil {
			continue
		}
		if choice.Content != "" {
			text = append(text, choice.Content)
		}
		if choice.StopReason != "" {
			reply.StopReason = choice.StopReason
		}
		for _, tc := range choice.ToolCalls {
			if tc.FunctionCall == nil {
				continue
			}
			reply.ToolCalls = append(reply.ToolCalls, db.ToolCall{
				ID:        tc.ID,
				Name:      tc.FunctionCall.Name,
				Arguments: parseArguments(tc.FunctionCall.Arguments),
			})
		}
	}
	reply.Content = strings.Join(text, "\n")
	return reply, nil
}

/* ToMessages converts conversation turns into langchaingo messages */
func ToMessages(systemPrompt string, history []db.Turn) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(history)+1)
	if systemPrompt != "" {
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(systemPrompt)},
		})
	}

	for _, turn := range history {
		switch turn.Role {
		case db.RoleSystem:
			messages = append(messages, llms.MessageContent{
				Role:  llms.ChatMessageTypeSystem,
				Parts: []llms.ContentPart{llms.TextPart(turn.Content)},
			})
		case db.RoleUser:
			messages = append(messages, llms.MessageContent{
				Role:  llms.ChatMessageTypeHuman,
				Parts: []llms.ContentPart{llms.TextPart(turn.Content)},
			})
		case db.RoleAssistant:
			/*
			 * The Anthropic provider converts only the first part of a
			 * message, so text and each tool call go out as separate
			 * assistant messages. The API joins consecutive turns of
			 * the same role.
			 */
			if turn.Content != "" {
				messages = append(messages, llms.MessageContent{
					Role:  llms.ChatMessageTypeAI,
					Parts: []llms.ContentPart{llms.TextContent{Text: turn.Content}},
				})
			}
			for _, call := range turn.ToolCalls {
				messages = append(messages, llms.MessageContent{
					Role: llms.ChatMessageTypeAI,
					Parts: []llms.ContentPart{llms.ToolCall{
						ID:   call.ID,
						Type: "function",
						FunctionCall: &llms.FunctionCall{
							Name:      call.Name,
							Arguments: encodeArguments(call.Arguments),
						},
					}},
				})
			}
		case db.RoleTool:
			if turn.ToolResult == nil {
				continue
			}
			content := turn.ToolResult.Content
			if turn.ToolResult.IsError {
				content = "Error: " + content
			}
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{
					llms.ToolCallResponse{
						ToolCallID: turn.ToolResult.ToolCallID,
						Name:       turn.ToolResult.Name,
						Content:    content,
					},
				},
			})
		}
	}
	return messages
}

func toLLMTools(defs []ToolDefinition) []llms.Tool {
	out := make([]llms.Tool, 0, len(defs))
	for _, d := range defs {
		out = append(out, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}
	return out
}

func parseArguments(raw string) map[string]interface{} {
	if raw == "" {
		return map[string]interface{}{}
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
		return map[string]interface{}{RawArgumentsKey: raw}
	}
	return args
}

func encodeArguments(args map[string]interface{}) string {
	if len(args) == 0 {
		return "{}"
	}
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(b)
}
