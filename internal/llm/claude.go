package llm

import (
	"context"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
)

// ClaudeClient speaks the Anthropic Messages API. Anthropic has no JSON
// response mode; prompts that need JSON already demand it in-text, and the
// caller validates the shape on receipt.
type ClaudeClient struct {
	client    *anthropic.Client
	model     string
	fastModel string
}

func NewClaudeClient(apiKey, model, fastModel, baseURL string) *ClaudeClient {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	if fastModel == "" {
		fastModel = model
	}
	return &ClaudeClient{
		client:    anthropic.NewClient(apiKey, opts...),
		model:     model,
		fastModel: fastModel,
	}
}

func (c *ClaudeClient) modelFor(tier Tier) anthropic.Model {
	if tier == TierFast {
		return anthropic.Model(c.fastModel)
	}
	return anthropic.Model(c.model)
}

func (c *ClaudeClient) Generate(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	temp := req.Temperature

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       c.modelFor(req.Tier),
		System:      req.System,
		Temperature: &temp,
		MaxTokens:   maxTokens,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(req.Prompt),
		},
	})
	if err != nil {
		return "", err
	}
	text := collectText(resp.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (c *ClaudeClient) ChatWithTools(ctx context.Context, req Request, msgs []Message, tools []Tool) (Message, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	temp := req.Temperature

	defs := make([]anthropic.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, anthropic.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Schema,
		})
	}

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       c.modelFor(req.Tier),
		System:      req.System,
		Temperature: &temp,
		MaxTokens:   maxTokens,
		Messages:    toClaudeMessages(req.Prompt, msgs),
		Tools:       defs,
	})
	if err != nil {
		return Message{}, err
	}

	out := Message{Role: RoleAssistant, Content: collectText(resp.Content)}
	for _, content := range resp.Content {
		if content.Type != anthropic.MessagesContentTypeToolUse || content.MessageContentToolUse == nil {
			continue
		}
		use := content.MessageContentToolUse
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:   use.ID,
			Name: use.Name,
			Args: use.Input,
		})
	}
	if out.Content == "" && len(out.ToolCalls) == 0 {
		return Message{}, ErrEmptyResponse
	}
	return out, nil
}

func toClaudeMessages(prompt string, msgs []Message) []anthropic.Message {
	out := []anthropic.Message{anthropic.NewUserTextMessage(prompt)}
	for _, msg := range msgs {
		switch msg.Role {
		case RoleAssistant:
			var content []anthropic.MessageContent
			if msg.Content != "" {
				content = append(content, anthropic.NewTextMessageContent(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				content = append(content, anthropic.MessageContent{
					Type: anthropic.MessagesContentTypeToolUse,
					MessageContentToolUse: &anthropic.MessageContentToolUse{
						ID:    call.ID,
						Name:  call.Name,
						Input: call.Args,
					},
				})
			}
			out = append(out, anthropic.Message{Role: anthropic.RoleAssistant, Content: content})
		case RoleTool:
			out = append(out, anthropic.Message{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewToolResultMessageContent(msg.ToolCallID, msg.Content, msg.IsError),
				},
			})
		default:
			out = append(out, anthropic.NewUserTextMessage(msg.Content))
		}
	}
	return out
}

func collectText(contents []anthropic.MessageContent) string {
	var sb strings.Builder
	for _, content := range contents {
		if content.Text != nil {
			sb.WriteString(*content.Text)
		}
	}
	return sb.String()
}
