package resolve

import (
	"context"
	"log/slog"

	"github.com/repset/repset/internal/catalog"
	"github.com/repset/repset/internal/llm"
)

// Creator inserts new catalog entries for names nothing matched. Entries it
// creates are always flagged for review; when an embedder is available it
// also backfills the name embedding so future semantic lookups can find the
// entry, but an embedding failure never fails the creation.
type Creator struct {
	catalog  catalog.Accessor
	embedder llm.EmbedderClient
	logger   *slog.Logger
}

func NewCreator(accessor catalog.Accessor, embedder llm.EmbedderClient, logger *slog.Logger) *Creator {
	return &Creator{catalog: accessor, embedder: embedder, logger: logger}
}

func (c *Creator) CreateEntry(ctx context.Context, name string, tags []string) (catalog.Entry, error) {
	entry, err := c.catalog.Create(ctx, name, tags, true)
	if err != nil {
		return catalog.Entry{}, err
	}

	if c.embedder != nil {
		vec, err := c.embedder.Embed(ctx, name)
		if err != nil {
			c.logger.Warn("embedding for created entry failed", "name", name, "error", err)
			return entry, nil
		}
		if err := c.catalog.SetEmbedding(ctx, entry.ID, vec); err != nil {
			c.logger.Warn("storing embedding for created entry failed", "id", entry.ID, "error", err)
		}
	}
	return entry, nil
}
