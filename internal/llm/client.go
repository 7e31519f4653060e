package llm

import (
	"context"
	"encoding/json"
	"errors"
	"math"
)

// Tier selects which configured model handles a request. Validation runs on
// the fast tier; extraction, repair and tool negotiation on the deep tier.
type Tier string

const (
	TierFast Tier = "fast"
	TierDeep Tier = "deep"
)

// Request is a single reasoning-service call.
type Request struct {
	System      string
	Prompt      string
	Tier        Tier
	Temperature float32
	MaxTokens   int
	JSONMode    bool
}

type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Tool describes a capability offered to the model during negotiation.
// Schema is a JSON Schema object for the tool's arguments.
type Tool struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args json.RawMessage
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a vendor-neutral transcript entry. Assistant turns may carry
// tool calls; tool turns carry the result of a prior call, with IsError set
// when the invocation was rejected (e.g. a search past its bound).
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	IsError    bool
}

// ToolClient performs one model turn of a tool negotiation. The caller owns
// the loop, the transcript and the termination rules.
type ToolClient interface {
	Client
	ChatWithTools(ctx context.Context, req Request, msgs []Message, tools []Tool) (Message, error)
}

type EmbedderClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

var (
	ErrEmptyResponse    = errors.New("llm: empty response")
	ErrToolsUnsupported = errors.New("llm: provider does not support tool use")
)

const defaultMaxTokens = 1024

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when either vector is empty, mismatched, or zero-length.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
