package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/waysongjiang/pyopencode/pkg/models"
)

const anthropicMaxTokens = 8192

// Anthropic adapts the Claude Messages API to the Provider interface.
// System messages are lifted out of the conversation into the system
// parameter; tool replies travel as tool_result blocks inside user
// messages. The OpenAI-style reasoning echo does not exist on this wire,
// so reasoning flags are ignored upstream.
type Anthropic struct {
	name   string
	model  string
	client anthropic.Client
}

// NewAnthropic builds an adapter for a configured Anthropic endpoint.
func NewAnthropic(name, baseURL, apiKey, model string) *Anthropic {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Anthropic{
		name:   name,
		model:  model,
		client: anthropic.NewClient(opts...),
	}
}

func (p *Anthropic) Name() string  { return p.name }
func (p *Anthropic) Model() string { return p.model }

// WithModel returns a copy of the adapter bound to a different model.
func (p *Anthropic) WithModel(model string) Provider {
	c := *p
	c.model = model
	return &c
}

// Complete issues a blocking Messages.New request.
func (p *Anthropic) Complete(ctx context.Context, req Request) (*AssistantTurn, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}
	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, p.wrapErr(err)
	}

	turn := &AssistantTurn{}
	var text strings.Builder
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			turn.ToolCalls = append(turn.ToolCalls, models.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: normalizeArguments(string(block.Input)),
			})
		}
	}
	turn.Text = text.String()
	return turn, nil
}

// Stream issues a streaming request. Text deltas are forwarded as they
// arrive; tool_use blocks accumulate their input JSON across
// input_json_delta events and finalize on content_block_stop.
func (p *Anthropic) Stream(ctx context.Context, req Request, onDelta func(StreamDelta)) (*AssistantTurn, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}
	stream := p.client.Messages.NewStreaming(ctx, params)

	turn := &AssistantTurn{}
	var text, thinking strings.Builder
	var pending *models.ToolCall
	var pendingInput strings.Builder

	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "content_block_start":
			start := event.AsContentBlockStart()
			if start.ContentBlock.Type == "tool_use" {
				tu := start.ContentBlock.AsToolUse()
				pending = &models.ToolCall{ID: tu.ID, Name: tu.Name}
				pendingInput.Reset()
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					text.WriteString(delta.Text)
					if onDelta != nil {
						onDelta(StreamDelta{Text: delta.Text})
					}
				}
			case "thinking_delta":
				if delta.Thinking != "" {
					thinking.WriteString(delta.Thinking)
					if onDelta != nil {
						onDelta(StreamDelta{Reasoning: delta.Thinking})
					}
				}
			case "input_json_delta":
				if delta.PartialJSON != "" {
					pendingInput.WriteString(delta.PartialJSON)
				}
			}

		case "content_block_stop":
			if pending != nil {
				pending.Arguments = normalizeArguments(pendingInput.String())
				turn.ToolCalls = append(turn.ToolCalls, *pending)
				pending = nil
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, p.wrapErr(err)
	}

	turn.Text = text.String()
	turn.ReasoningContent = thinking.String()
	return turn, nil
}

func (p *Anthropic) buildParams(req Request) (anthropic.MessageNewParams, error) {
	messages, system, err := toAnthropicMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		Messages:  messages,
		MaxTokens: anthropicMaxTokens,
	}
	if len(system) > 0 {
		params.System = system
	}
	temp := req.Temperature
	if temp == 0 {
		temp = DefaultTemperature
	}
	params.Temperature = anthropic.Float(float64(temp))

	if len(req.Tools) > 0 {
		tools, err := toAnthropicTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = tools
	}
	return params, nil
}

func toAnthropicMessages(msgs []WireMessage) ([]anthropic.MessageParam, []anthropic.TextBlockParam, error) {
	conversation := make([]anthropic.MessageParam, 0, len(msgs))
	var system []anthropic.TextBlockParam

	for _, m := range msgs {
		switch m.Role {
		case "system":
			if m.Content != nil && *m.Content != "" {
				system = append(system, anthropic.TextBlockParam{Text: *m.Content})
			}

		case "assistant":
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != nil && *m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(*m.Content))
			}
			for _, tc := range m.ToolCalls {
				var input map[string]any
				if err := json.Unmarshal(normalizeArguments(string(tc.Arguments)), &input); err != nil {
					return nil, nil, fmt.Errorf("invalid tool call arguments for %s: %w", tc.Name, err)
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			conversation = append(conversation, anthropic.NewAssistantMessage(blocks...))

		case "tool":
			content := ""
			if m.Content != nil {
				content = *m.Content
			}
			block := anthropic.NewToolResultBlock(m.ToolCallID, content, false)
			// Consecutive tool replies merge into the previous user
			// message so each assistant tool_use is answered in one turn.
			if n := len(conversation); n > 0 && conversation[n-1].Role == anthropic.MessageParamRoleUser && endsWithToolResult(conversation[n-1]) {
				conversation[n-1].Content = append(conversation[n-1].Content, block)
				continue
			}
			conversation = append(conversation, anthropic.NewUserMessage(block))

		default: // user
			content := ""
			if m.Content != nil {
				content = *m.Content
			}
			if content == "" {
				continue
			}
			conversation = append(conversation, anthropic.NewUserMessage(anthropic.NewTextBlock(content)))
		}
	}
	return conversation, system, nil
}

func endsWithToolResult(m anthropic.MessageParam) bool {
	if len(m.Content) == 0 {
		return false
	}
	return m.Content[len(m.Content)-1].OfToolResult != nil
}

func toAnthropicTools(defs []ToolDef) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(def.Parameters, &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", def.Name, err)
		}
		u := anthropic.ToolUnionParamOfTool(schema, def.Name)
		if u.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", def.Name)
		}
		u.OfTool.Description = anthropic.String(def.Description)
		out = append(out, u)
	}
	return out, nil
}

func (p *Anthropic) wrapErr(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("provider %s: status %d: %s", p.name, apiErr.StatusCode, excerpt(apiErr.Error(), 240))
	}
	return fmt.Errorf("provider %s: %w", p.name, err)
}
