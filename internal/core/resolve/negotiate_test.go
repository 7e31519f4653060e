package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repset/repset/internal/catalog"
	"github.com/repset/repset/internal/llm"
)

// scriptedLLM replays a fixed sequence of assistant messages. Once the
// script runs out it repeats the final message, which lets tests model a
// model that keeps asking for the same tool.
type scriptedLLM struct {
	mu      sync.Mutex
	script  []llm.Message
	calls   int
	lastMsg []llm.Message
}

func (s *scriptedLLM) Generate(ctx context.Context, req llm.Request) (string, error) {
	return "", errors.New("scriptedLLM supports tool chat only")
}

func (s *scriptedLLM) ChatWithTools(ctx context.Context, req llm.Request, msgs []llm.Message, tools []llm.Tool) (llm.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastMsg = msgs
	i := s.calls
	s.calls++
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	return s.script[i], nil
}

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func toolCallMsg(name, args string) llm.Message {
	return llm.Message{
		Role: llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{{
			ID:   fmt.Sprintf("call-%s", name),
			Name: name,
			Args: json.RawMessage(args),
		}},
	}
}

func selectMsg(id string) llm.Message {
	return toolCallMsg("select_exercise", fmt.Sprintf(`{"exercise_id":%q}`, id))
}

// countingCatalog wraps an accessor and counts lookups.
type countingCatalog struct {
	catalog.Accessor
	mu       sync.Mutex
	lexical  int
	semantic int
}

func (c *countingCatalog) SearchLexical(ctx context.Context, query string, limit int) ([]catalog.Entry, error) {
	c.mu.Lock()
	c.lexical++
	c.mu.Unlock()
	return c.Accessor.SearchLexical(ctx, query, limit)
}

func (c *countingCatalog) SearchSemantic(ctx context.Context, vec []float32, limit int, threshold float64) ([]catalog.SemanticMatch, error) {
	c.mu.Lock()
	c.semantic++
	c.mu.Unlock()
	return c.Accessor.SearchSemantic(ctx, vec, limit, threshold)
}

func (c *countingCatalog) lexicalCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lexical
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestNegotiator(t *testing.T, client llm.ToolClient, accessor catalog.Accessor, bound int) *negotiator {
	t.Helper()
	logger := testLogger()
	creator := NewCreator(accessor, nil, logger)
	return newNegotiator(client, accessor, creator, bound, logger)
}

func TestNegotiatorSelectIsTerminal(t *testing.T) {
	mem := catalog.NewInMemory()
	entry := mem.Put(catalog.Entry{Name: "Barbell Bench Press"})
	client := &scriptedLLM{script: []llm.Message{selectMsg(entry.ID)}}

	n := newTestNegotiator(t, client, mem, 2)
	got, path, err := n.resolve(context.Background(), "bnch prss", nil)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, PathLLMSelect, path)
	assert.Equal(t, 1, client.callCount())
}

func TestNegotiatorSelectUnknownIDFails(t *testing.T) {
	mem := catalog.NewInMemory()
	client := &scriptedLLM{script: []llm.Message{selectMsg("no-such-id")}}

	n := newTestNegotiator(t, client, mem, 2)
	_, _, err := n.resolve(context.Background(), "mystery move", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestNegotiatorCreatePath(t *testing.T) {
	mem := catalog.NewInMemory()
	client := &scriptedLLM{script: []llm.Message{
		toolCallMsg("create_exercise", `{"name":"Nordic Hamstring Curl","tags":["bodyweight"]}`),
	}}

	n := newTestNegotiator(t, client, mem, 2)
	got, path, err := n.resolve(context.Background(), "nordics", nil)
	require.NoError(t, err)
	assert.Equal(t, PathLLMCreate, path)
	assert.Equal(t, "Nordic Hamstring Curl", got.Name)
	assert.True(t, got.NeedsReview)

	stored, err := mem.FindByID(context.Background(), got.ID)
	require.NoError(t, err)
	assert.Equal(t, "nordic-hamstring-curl", stored.Slug)
}

func TestNegotiatorSearchBound(t *testing.T) {
	mem := catalog.NewInMemory()
	mem.Seed()
	entry, err := mem.FindBySlug(context.Background(), "barbell-bench-press")
	require.NoError(t, err)

	search := toolCallMsg("search_catalog", `{"query":"bench"}`)
	client := &scriptedLLM{script: []llm.Message{search, search, search, selectMsg(entry.ID)}}

	counting := &countingCatalog{Accessor: mem}
	n := newTestNegotiator(t, client, counting, 2)
	got, path, err := n.resolve(context.Background(), "benchpress", nil)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, PathLLMSelect, path)

	// Two searches executed; the third was refused without touching the
	// catalog and answered with an error tool result.
	assert.Equal(t, 2, counting.lexicalCalls())
	var errResults int
	for _, m := range client.lastMsg {
		if m.Role == llm.RoleTool && m.IsError {
			errResults++
		}
	}
	assert.Equal(t, 1, errResults)
}

func TestNegotiatorExhaustionFailsLoudly(t *testing.T) {
	mem := catalog.NewInMemory()
	search := toolCallMsg("search_catalog", `{"query":"bench"}`)
	client := &scriptedLLM{script: []llm.Message{search}}

	n := newTestNegotiator(t, client, mem, 2)
	_, _, err := n.resolve(context.Background(), "benchpress", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exhausted")

	// Exhaustion is a resolution outcome, not a service failure.
	var up *UpstreamError
	assert.False(t, errors.As(err, &up))
}

type failingToolClient struct {
	err error
}

func (f *failingToolClient) Generate(ctx context.Context, req llm.Request) (string, error) {
	return "", f.err
}

func (f *failingToolClient) ChatWithTools(ctx context.Context, req llm.Request, msgs []llm.Message, tools []llm.Tool) (llm.Message, error) {
	return llm.Message{}, f.err
}

func TestNegotiatorTransportFailureIsUpstream(t *testing.T) {
	mem := catalog.NewInMemory()
	client := &failingToolClient{err: errors.New("dial tcp: connection refused")}

	n := newTestNegotiator(t, client, mem, 2)
	_, _, err := n.resolve(context.Background(), "benchpress", nil)
	require.Error(t, err)

	var up *UpstreamError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, "benchpress", up.Name)
}

func TestNegotiatorNoToolCallFails(t *testing.T) {
	mem := catalog.NewInMemory()
	client := &scriptedLLM{script: []llm.Message{{Role: llm.RoleAssistant, Content: "it is probably a bench press"}}}

	n := newTestNegotiator(t, client, mem, 2)
	_, _, err := n.resolve(context.Background(), "benchpress", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without a tool call")
}
