package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type GeminiClient struct {
	client         *genai.Client
	model          string
	fastModel      string
	embeddingModel string
}

func NewGeminiClient(ctx context.Context, apiKey, model, fastModel, embeddingModel string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if fastModel == "" {
		fastModel = model
	}
	if embeddingModel == "" {
		embeddingModel = "text-embedding-004"
	}
	return &GeminiClient{
		client:         client,
		model:          model,
		fastModel:      fastModel,
		embeddingModel: embeddingModel,
	}, nil
}

func (c *GeminiClient) generativeModel(req Request) *genai.GenerativeModel {
	name := c.model
	if req.Tier == TierFast {
		name = c.fastModel
	}
	model := c.client.GenerativeModel(name)
	model.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.JSONMode {
		model.ResponseMIMEType = "application/json"
	}
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	return model
}

func (c *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	model := c.generativeModel(req)
	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", err
	}
	text := geminiText(resp)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (c *GeminiClient) ChatWithTools(ctx context.Context, req Request, msgs []Message, tools []Tool) (Message, error) {
	model := c.generativeModel(req)
	// Gemini rejects JSON response mode combined with function declarations.
	model.ResponseMIMEType = ""

	declarations := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		schema, err := toGeminiSchema(t.Schema)
		if err != nil {
			return Message{}, fmt.Errorf("tool %s: %w", t.Name, err)
		}
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schema,
		})
	}
	model.Tools = []*genai.Tool{{FunctionDeclarations: declarations}}

	session := model.StartChat()
	session.History, _ = toGeminiHistory(req.Prompt, msgs)
	last := lastGeminiParts(req.Prompt, msgs)

	resp, err := session.SendMessage(ctx, last...)
	if err != nil {
		return Message{}, err
	}

	out := Message{Role: RoleAssistant}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Message{}, ErrEmptyResponse
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			out.Content += string(v)
		case genai.FunctionCall:
			args, err := json.Marshal(v.Args)
			if err != nil {
				return Message{}, err
			}
			// Gemini has no tool-call ids; the function name stands in.
			out.ToolCalls = append(out.ToolCalls, ToolCall{ID: v.Name, Name: v.Name, Args: args})
		}
	}
	if out.Content == "" && len(out.ToolCalls) == 0 {
		return Message{}, ErrEmptyResponse
	}
	return out, nil
}

// toGeminiHistory converts the transcript except its final turn, which is
// sent as the live message.
func toGeminiHistory(prompt string, msgs []Message) ([]*genai.Content, error) {
	if len(msgs) == 0 {
		return nil, nil
	}
	contents := []*genai.Content{{Role: "user", Parts: []genai.Part{genai.Text(prompt)}}}
	for _, msg := range msgs[:len(msgs)-1] {
		contents = append(contents, toGeminiContent(msg))
	}
	return contents, nil
}

func lastGeminiParts(prompt string, msgs []Message) []genai.Part {
	if len(msgs) == 0 {
		return []genai.Part{genai.Text(prompt)}
	}
	return toGeminiContent(msgs[len(msgs)-1]).Parts
}

func toGeminiContent(msg Message) *genai.Content {
	switch msg.Role {
	case RoleAssistant:
		parts := []genai.Part{}
		if msg.Content != "" {
			parts = append(parts, genai.Text(msg.Content))
		}
		for _, call := range msg.ToolCalls {
			var args map[string]any
			_ = json.Unmarshal(call.Args, &args)
			parts = append(parts, genai.FunctionCall{Name: call.Name, Args: args})
		}
		return &genai.Content{Role: "model", Parts: parts}
	case RoleTool:
		response := map[string]any{"result": msg.Content}
		if msg.IsError {
			response = map[string]any{"error": msg.Content}
		}
		return &genai.Content{
			Role:  "function",
			Parts: []genai.Part{genai.FunctionResponse{Name: msg.ToolCallID, Response: response}},
		}
	default:
		return &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Content)}}
	}
}

// jsonSchema is the subset of JSON Schema the negotiation tools use.
type jsonSchema struct {
	Type        string                `json:"type"`
	Description string                `json:"description,omitempty"`
	Properties  map[string]jsonSchema `json:"properties,omitempty"`
	Items       *jsonSchema           `json:"items,omitempty"`
	Required    []string              `json:"required,omitempty"`
}

func toGeminiSchema(raw json.RawMessage) (*genai.Schema, error) {
	var parsed jsonSchema
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("invalid tool schema: %w", err)
	}
	return convertSchema(parsed), nil
}

func convertSchema(s jsonSchema) *genai.Schema {
	out := &genai.Schema{Description: s.Description, Required: s.Required}
	switch s.Type {
	case "object":
		out.Type = genai.TypeObject
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = convertSchema(prop)
		}
	case "array":
		out.Type = genai.TypeArray
		if s.Items != nil {
			out.Items = convertSchema(*s.Items)
		}
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	default:
		out.Type = genai.TypeString
	}
	return out
}

func geminiText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	return text
}

func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	model := c.client.EmbeddingModel(c.embeddingModel)
	res, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}
	if res.Embedding == nil {
		return nil, ErrEmptyResponse
	}
	return res.Embedding.Values, nil
}

func (c *GeminiClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	model := c.client.EmbeddingModel(c.embeddingModel)
	batch := model.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}
	res, err := model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(res.Embeddings) != len(texts) {
		return nil, ErrEmptyResponse
	}
	vectors := make([][]float32, len(res.Embeddings))
	for i, emb := range res.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}
