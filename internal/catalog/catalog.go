// Package catalog provides access to the canonical exercise reference store.
package catalog

import (
	"context"
	"errors"
	"strings"
)

// Entry is a canonical exercise. NeedsReview marks entries created
// automatically during resolution rather than curated by hand.
type Entry struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Tags        []string  `json:"tags,omitempty"`
	Embedding   []float32 `json:"-"`
	NeedsReview bool      `json:"needs_review"`
}

// SemanticMatch pairs an entry with its cosine similarity to a query vector.
type SemanticMatch struct {
	Entry      Entry
	Similarity float64
}

// Accessor exposes every catalog operation resolution needs. Find methods
// return ErrNotFound rather than nil entries.
type Accessor interface {
	SearchLexical(ctx context.Context, query string, limit int) ([]Entry, error)
	SearchSemantic(ctx context.Context, vector []float32, limit int, threshold float64) ([]SemanticMatch, error)
	FindBySlug(ctx context.Context, slug string) (Entry, error)
	FindByID(ctx context.Context, id string) (Entry, error)
	Create(ctx context.Context, name string, tags []string, needsReview bool) (Entry, error)
	SetEmbedding(ctx context.Context, id string, vector []float32) error
}

var ErrNotFound = errors.New("catalog: entry not found")

// Slugify lowercases a name and collapses every non-alphanumeric run into a
// single hyphen.
func Slugify(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))
	pendingHyphen := false
	for _, r := range strings.ToLower(name) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			pendingHyphen = sb.Len() > 0
			continue
		}
		if pendingHyphen {
			sb.WriteByte('-')
			pendingHyphen = false
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
