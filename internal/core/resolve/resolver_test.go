package resolve

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repset/repset/internal/audit"
	"github.com/repset/repset/internal/catalog"
	"github.com/repset/repset/internal/llm"
)

type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if vec, ok := f.vectors[text]; ok {
		return vec, nil
	}
	return []float32{0, 0, 1}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

type capturingRecorder struct {
	mu      sync.Mutex
	records []audit.Record
}

func (c *capturingRecorder) RecordUnresolved(ctx context.Context, rec audit.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
}

func (c *capturingRecorder) all() []audit.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]audit.Record(nil), c.records...)
}

func TestResolveAllDeduplicatesSpellings(t *testing.T) {
	mem := catalog.NewInMemory()
	mem.Seed()
	counting := &countingCatalog{Accessor: mem}

	r := NewResolver(counting, nil, &scriptedLLM{}, nil, testLogger(), Config{})
	names := []string{"Bench Press", "bench-press", "BENCH PRESS!", "Pull Up"}
	results, err := r.ResolveAll(context.Background(), names, ResolveOptions{})
	require.NoError(t, err)

	// Three spellings of bench press collapse to one lookup.
	assert.Len(t, results, 2)
	assert.Equal(t, 2, counting.lexicalCalls())

	bench, ok := results[NormalizeKey("Bench-Press")]
	require.True(t, ok)
	assert.Equal(t, "Barbell Bench Press", bench.Entry.Name)
}

func TestResolveAllSemanticShortCircuit(t *testing.T) {
	mem := catalog.NewInMemory()
	entry := mem.Put(catalog.Entry{Name: "Bulgarian Split Squat", Embedding: []float32{1, 0, 0}})
	counting := &countingCatalog{Accessor: mem}

	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"bulgarians": {0.95, 0.05, 0},
	}}
	client := &scriptedLLM{}

	r := NewResolver(counting, embedder, client, nil, testLogger(), Config{})
	results, err := r.ResolveAll(context.Background(), []string{"bulgarians"}, ResolveOptions{})
	require.NoError(t, err)

	res := results[NormalizeKey("bulgarians")]
	assert.Equal(t, entry.ID, res.Entry.ID)
	assert.Equal(t, PathSemantic, res.Path)

	// A confident embedding match skips both the trigram search and the
	// reasoning service.
	assert.Equal(t, 0, counting.lexicalCalls())
	assert.Equal(t, 0, client.callCount())
}

func TestResolveAllSemanticMissFallsToLexical(t *testing.T) {
	mem := catalog.NewInMemory()
	mem.Seed()
	embedder := &fakeEmbedder{} // everything embeds far from the catalog

	r := NewResolver(mem, embedder, &scriptedLLM{}, nil, testLogger(), Config{})
	results, err := r.ResolveAll(context.Background(), []string{"romanian deadlift"}, ResolveOptions{})
	require.NoError(t, err)

	res := results[NormalizeKey("romanian deadlift")]
	assert.Equal(t, "Romanian Deadlift", res.Entry.Name)
	assert.Equal(t, PathLexical, res.Path)
}

func TestResolveAllEmbedderFailureIsFatal(t *testing.T) {
	mem := catalog.NewInMemory()
	mem.Seed()
	counting := &countingCatalog{Accessor: mem}
	embedder := &fakeEmbedder{err: errors.New("connection refused")}

	r := NewResolver(counting, embedder, &scriptedLLM{}, nil, testLogger(), Config{})
	// "romanian deadlift" would match lexically, but a dead embedding
	// provider must fail the run rather than degrade silently.
	_, err := r.ResolveAll(context.Background(), []string{"romanian deadlift"}, ResolveOptions{})
	require.Error(t, err)

	var up *UpstreamError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, "romanian deadlift", up.Name)
	assert.Equal(t, 0, counting.lexicalCalls())
}

func TestResolveAllReportsFirstFailingNameInInputOrder(t *testing.T) {
	mem := catalog.NewInMemory()
	mem.Seed()
	embedder := &fakeEmbedder{err: errors.New("connection refused")}
	names := []string{"bench press", "pull up", "romanian deadlift"}

	r := NewResolver(mem, embedder, &scriptedLLM{}, nil, testLogger(), Config{})
	for i := 0; i < 10; i++ {
		_, err := r.ResolveAll(context.Background(), names, ResolveOptions{})
		require.Error(t, err)
		var up *UpstreamError
		require.ErrorAs(t, err, &up)
		assert.Equal(t, "bench press", up.Name)
	}
}

func TestResolveAllNegotiatesWhenNothingMatches(t *testing.T) {
	mem := catalog.NewInMemory()
	mem.Seed()
	client := &scriptedLLM{script: []llm.Message{
		toolCallMsg("create_exercise", `{"name":"Zercher Carry"}`),
	}}

	r := NewResolver(mem, nil, client, nil, testLogger(), Config{})
	results, err := r.ResolveAll(context.Background(), []string{"zercher carry"}, ResolveOptions{})
	require.NoError(t, err)

	res := results[NormalizeKey("zercher carry")]
	assert.Equal(t, PathLLMCreate, res.Path)
	assert.Equal(t, "Zercher Carry", res.Entry.Name)
	assert.True(t, res.Entry.NeedsReview)
}

func TestResolveAllAuditsSelectionsOnly(t *testing.T) {
	mem := catalog.NewInMemory()
	mem.Seed()
	entry, err := mem.FindBySlug(context.Background(), "overhead-press")
	require.NoError(t, err)

	recorder := &capturingRecorder{}
	client := &scriptedLLM{script: []llm.Message{selectMsg(entry.ID)}}

	r := NewResolver(mem, nil, client, recorder, testLogger(), Config{})
	_, err = r.ResolveAll(context.Background(), []string{"strict pressing"}, ResolveOptions{
		UserID:    "user-1",
		WorkoutID: "workout-1",
	})
	require.NoError(t, err)

	records := recorder.all()
	require.Len(t, records, 1)
	assert.Equal(t, "strict pressing", records[0].OriginalName)
	assert.Equal(t, entry.ID, records[0].ResolvedID)
	assert.Equal(t, "user-1", records[0].UserID)
	assert.Equal(t, "workout-1", records[0].WorkoutID)
}

func TestResolveAllSkipsAuditWithoutUser(t *testing.T) {
	mem := catalog.NewInMemory()
	mem.Seed()
	entry, err := mem.FindBySlug(context.Background(), "overhead-press")
	require.NoError(t, err)

	recorder := &capturingRecorder{}
	client := &scriptedLLM{script: []llm.Message{selectMsg(entry.ID)}}

	r := NewResolver(mem, nil, client, recorder, testLogger(), Config{})
	_, err = r.ResolveAll(context.Background(), []string{"strict pressing"}, ResolveOptions{})
	require.NoError(t, err)
	assert.Empty(t, recorder.all())
}

func TestResolveAllAbbreviatedAndFullNameAgree(t *testing.T) {
	mem := catalog.NewInMemory()
	entry := mem.Put(catalog.Entry{Name: "Dumbbell Bench Press"})

	r := NewResolver(mem, nil, &scriptedLLM{}, nil, testLogger(), Config{})
	results, err := r.ResolveAll(context.Background(), []string{"DB Bench Press", "Dumbbell Bench Press"}, ResolveOptions{})
	require.NoError(t, err)

	// Different normalized keys, same catalog entry.
	require.Len(t, results, 2)
	short := results[NormalizeKey("DB Bench Press")]
	full := results[NormalizeKey("Dumbbell Bench Press")]
	assert.Equal(t, entry.ID, short.Entry.ID)
	assert.Equal(t, entry.ID, full.Entry.ID)
}

func TestResolveAllSkipsAuditForCreatedEntries(t *testing.T) {
	mem := catalog.NewInMemory()
	recorder := &capturingRecorder{}
	client := &scriptedLLM{script: []llm.Message{
		toolCallMsg("create_exercise", `{"name":"Copenhagen Plank"}`),
	}}

	r := NewResolver(mem, nil, client, recorder, testLogger(), Config{})
	_, err := r.ResolveAll(context.Background(), []string{"copenhagen plank"}, ResolveOptions{UserID: "user-1"})
	require.NoError(t, err)
	// Creations are already flagged via NeedsReview; only ambiguous
	// selections get audit records.
	assert.Empty(t, recorder.all())
}

func TestResolveAllIdempotent(t *testing.T) {
	mem := catalog.NewInMemory()
	mem.Seed()

	r := NewResolver(mem, nil, &scriptedLLM{}, nil, testLogger(), Config{})
	names := []string{"bench press", "pull up", "romanian deadlift"}

	first, err := r.ResolveAll(context.Background(), names, ResolveOptions{})
	require.NoError(t, err)
	second, err := r.ResolveAll(context.Background(), names, ResolveOptions{})
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for key, res := range first {
		assert.Equal(t, res.Entry.ID, second[key].Entry.ID, "key %q", key)
	}
}
