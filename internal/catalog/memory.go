package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/repset/repset/internal/llm"
)

// InMemory is a process-local catalog for local development and tests. The
// lexical search approximates the Postgres trigram behaviour: substring
// containment always matches, everything else is scored by 3-gram overlap.
type InMemory struct {
	mu      sync.RWMutex
	entries []Entry
	byID    map[string]int
	bySlug  map[string]int
}

const trigramFloor = 0.3

func NewInMemory() *InMemory {
	return &InMemory{
		byID:   make(map[string]int),
		bySlug: make(map[string]int),
	}
}

// Put inserts or replaces an entry, assigning ID and slug when absent.
// It exists for seeding; the pipeline itself only calls Create.
func (m *InMemory) Put(entry Entry) Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put(entry)
}

func (m *InMemory) put(entry Entry) Entry {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Slug == "" {
		entry.Slug = Slugify(entry.Name)
	}
	if idx, ok := m.byID[entry.ID]; ok {
		delete(m.bySlug, m.entries[idx].Slug)
		m.entries[idx] = entry
		m.bySlug[entry.Slug] = idx
		return entry
	}
	m.entries = append(m.entries, entry)
	m.byID[entry.ID] = len(m.entries) - 1
	m.bySlug[entry.Slug] = len(m.entries) - 1
	return entry
}

// Seed loads a handful of common movements so a fresh dev instance resolves
// everyday workout text without touching the reasoning service.
func (m *InMemory) Seed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range []string{
		"Barbell Back Squat",
		"Barbell Bench Press",
		"Conventional Deadlift",
		"Overhead Press",
		"Pull Up",
		"Dumbbell Bench Press",
		"Romanian Deadlift",
		"Barbell Row",
	} {
		if _, ok := m.bySlug[Slugify(name)]; ok {
			continue
		}
		m.put(Entry{Name: name, Tags: []string{"seed"}})
	}
}

func (m *InMemory) SearchLexical(ctx context.Context, query string, limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		entry Entry
		score float64
		order int
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}

	var hits []scored
	for i, entry := range m.entries {
		name := strings.ToLower(entry.Name)
		var score float64
		switch {
		case strings.Contains(name, q) || strings.Contains(q, name):
			score = 1.0
		default:
			score = trigramSimilarity(name, q)
			if score < trigramFloor {
				continue
			}
		}
		hits = append(hits, scored{entry: entry, score: score, order: i})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score == hits[j].score {
			return hits[i].order < hits[j].order
		}
		return hits[i].score > hits[j].score
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]Entry, len(hits))
	for i, h := range hits {
		out[i] = h.entry
	}
	return out, nil
}

func (m *InMemory) SearchSemantic(ctx context.Context, vector []float32, limit int, threshold float64) ([]SemanticMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []SemanticMatch
	for _, entry := range m.entries {
		if len(entry.Embedding) == 0 {
			continue
		}
		sim := llm.CosineSimilarity(vector, entry.Embedding)
		if sim < threshold {
			continue
		}
		matches = append(matches, SemanticMatch{Entry: entry, Similarity: sim})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (m *InMemory) FindBySlug(ctx context.Context, slug string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if idx, ok := m.bySlug[slug]; ok {
		return m.entries[idx], nil
	}
	return Entry{}, ErrNotFound
}

func (m *InMemory) FindByID(ctx context.Context, id string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if idx, ok := m.byID[id]; ok {
		return m.entries[idx], nil
	}
	return Entry{}, ErrNotFound
}

func (m *InMemory) Create(ctx context.Context, name string, tags []string, needsReview bool) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	slug := Slugify(name)
	id := uuid.NewString()
	if _, taken := m.bySlug[slug]; taken {
		slug = slug + "-" + id[:8]
	}
	return m.put(Entry{
		ID:          id,
		Slug:        slug,
		Name:        name,
		Tags:        tags,
		NeedsReview: needsReview,
	}), nil
}

func (m *InMemory) SetEmbedding(ctx context.Context, id string, vector []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	m.entries[idx].Embedding = vector
	return nil
}

// trigramSimilarity is |A ∩ B| / |A ∪ B| over 3-gram sets, mirroring what
// pg_trgm's similarity() computes.
func trigramSimilarity(a, b string) float64 {
	ta := trigrams(a)
	tb := trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	intersection := 0
	for g := range ta {
		if tb[g] {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	return float64(intersection) / float64(union)
}

func trigrams(s string) map[string]bool {
	s = "  " + strings.ToLower(strings.TrimSpace(s)) + " "
	out := make(map[string]bool)
	for i := 0; i+3 <= len(s); i++ {
		out[s[i:i+3]] = true
	}
	return out
}
