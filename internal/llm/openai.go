package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/waysongjiang/pyopencode/pkg/models"
)

const httpTimeout = 120 * time.Second

// OpenAI speaks the OpenAI-compatible chat completion wire against any
// endpoint that implements it (OpenAI, DeepSeek, Together, llama.cpp
// servers, ...). One instance is bound to one configured provider entry.
type OpenAI struct {
	name   string
	model  string
	client *openai.Client
}

// NewOpenAI builds an adapter for a configured endpoint. An empty
// baseURL keeps the SDK default (api.openai.com).
func NewOpenAI(name, baseURL, apiKey, model string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: httpTimeout}
	return &OpenAI{
		name:   name,
		model:  model,
		client: openai.NewClientWithConfig(cfg),
	}
}

func (p *OpenAI) Name() string  { return p.name }
func (p *OpenAI) Model() string { return p.model }

// WithModel returns a copy of the adapter bound to a different model.
func (p *OpenAI) WithModel(model string) Provider {
	c := *p
	c.model = model
	return &c
}

// Complete issues a blocking chat completion and parses the first choice.
func (p *OpenAI) Complete(ctx context.Context, req Request) (*AssistantTurn, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(req, false))
	if err != nil {
		return nil, p.wrapErr(err)
	}
	if len(resp.Choices) == 0 {
		return &AssistantTurn{}, nil
	}
	msg := resp.Choices[0].Message
	turn := &AssistantTurn{
		Text:             msg.Content,
		ReasoningContent: msg.ReasoningContent,
	}
	for _, tc := range msg.ToolCalls {
		turn.ToolCalls = append(turn.ToolCalls, models.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: normalizeArguments(tc.Function.Arguments),
		})
	}
	return turn, nil
}

// Stream issues a streaming chat completion. Text and reasoning deltas
// are forwarded to onDelta as they arrive; tool-call fragments are
// accumulated per delta index (the id and name land in the first
// fragment, argument JSON arrives in pieces) and surface only on the
// returned turn.
func (p *OpenAI) Stream(ctx context.Context, req Request, onDelta func(StreamDelta)) (*AssistantTurn, error) {
	stream, err := p.client.CreateChatCompletionStream(ctx, p.buildRequest(req, true))
	if err != nil {
		return nil, p.wrapErr(err)
	}
	defer stream.Close()

	var text, reasoning strings.Builder
	partial := make(map[int]*models.ToolCall)

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, p.wrapErr(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta

		if delta.Content != "" {
			text.WriteString(delta.Content)
			if onDelta != nil {
				onDelta(StreamDelta{Text: delta.Content})
			}
		}
		if delta.ReasoningContent != "" {
			reasoning.WriteString(delta.ReasoningContent)
			if onDelta != nil {
				onDelta(StreamDelta{Reasoning: delta.ReasoningContent})
			}
		}

		for _, tc := range delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			cur := partial[idx]
			if cur == nil {
				cur = &models.ToolCall{}
				partial[idx] = cur
			}
			if tc.ID != "" {
				cur.ID = tc.ID
			}
			if tc.Function.Name != "" {
				cur.Name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				cur.Arguments = append(cur.Arguments, tc.Function.Arguments...)
			}
		}
	}

	turn := &AssistantTurn{
		Text:             text.String(),
		ReasoningContent: reasoning.String(),
	}
	indexes := make([]int, 0, len(partial))
	for idx := range partial {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	for _, idx := range indexes {
		tc := partial[idx]
		if tc.Name == "" {
			continue
		}
		tc.Arguments = normalizeArguments(string(tc.Arguments))
		turn.ToolCalls = append(turn.ToolCalls, *tc)
	}
	return turn, nil
}

func (p *OpenAI) buildRequest(req Request, stream bool) openai.ChatCompletionRequest {
	out := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: req.Temperature,
		Stream:      stream,
	}
	if out.Temperature == 0 {
		out.Temperature = DefaultTemperature
	}
	if len(req.Tools) > 0 {
		out.Tools = toOpenAITools(req.Tools)
		out.ToolChoice = "auto"
	}
	return out
}

func toOpenAIMessages(msgs []WireMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		om := openai.ChatCompletionMessage{
			Role:       m.Role,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		if m.Content != nil {
			om.Content = *m.Content
		}
		if m.ReasoningContent != nil {
			om.ReasoningContent = *m.ReasoningContent
		}
		for _, tc := range m.ToolCalls {
			args := string(tc.Arguments)
			if args == "" {
				args = "{}"
			}
			om.ToolCalls = append(om.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: args,
				},
			})
		}
		out = append(out, om)
	}
	return out
}

func toOpenAITools(defs []ToolDef) []openai.Tool {
	out := make([]openai.Tool, len(defs))
	for i, def := range defs {
		params := decodeSchema(def.Parameters)
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  params,
			},
		}
	}
	return out
}

// decodeSchema parses a JSON Schema into a map, degrading to an empty
// object schema so one malformed tool cannot break the whole request.
func decodeSchema(raw []byte) map[string]any {
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil || schema == nil {
		return map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}
	return schema
}

func (p *OpenAI) wrapErr(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("provider %s: status %d: %s", p.name, apiErr.HTTPStatusCode, excerpt(apiErr.Message, 240))
	}
	return fmt.Errorf("provider %s: %w", p.name, err)
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
