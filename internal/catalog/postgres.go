package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres backs the catalog with pg_trgm for lexical search and pgvector
// for nearest-neighbor search over name embeddings.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the extensions, table and indexes the accessor
// relies on. Safe to run on every start.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS pg_trgm`,
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS exercises (
			id UUID PRIMARY KEY,
			slug TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			tags TEXT[] NOT NULL DEFAULT '{}',
			embedding vector,
			needs_review BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS exercises_name_trgm_idx ON exercises USING gin (name gin_trgm_ops)`,
	}
	for _, stmt := range statements {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (p *Postgres) SearchLexical(ctx context.Context, query string, limit int) ([]Entry, error) {
	const stmt = `SELECT id, slug, name, tags, needs_review
		FROM exercises
		WHERE name % $1 OR name ILIKE '%' || $1 || '%'
		ORDER BY similarity(name, $1) DESC, id
		LIMIT $2`

	rows, err := p.pool.Query(ctx, stmt, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (p *Postgres) SearchSemantic(ctx context.Context, vector []float32, limit int, threshold float64) ([]SemanticMatch, error) {
	const stmt = `SELECT id, slug, name, tags, needs_review,
			1 - (embedding <=> $1::vector) AS similarity
		FROM exercises
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1::vector, id
		LIMIT $2`

	rows, err := p.pool.Query(ctx, stmt, vectorLiteral(vector), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []SemanticMatch
	for rows.Next() {
		var m SemanticMatch
		if err := rows.Scan(&m.Entry.ID, &m.Entry.Slug, &m.Entry.Name, &m.Entry.Tags, &m.Entry.NeedsReview, &m.Similarity); err != nil {
			return nil, err
		}
		// Threshold applied after the index-ordered scan so the planner can
		// use the vector operator ordering.
		if m.Similarity < threshold {
			continue
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (p *Postgres) FindBySlug(ctx context.Context, slug string) (Entry, error) {
	return p.findBy(ctx, `SELECT id, slug, name, tags, needs_review FROM exercises WHERE slug = $1`, slug)
}

func (p *Postgres) FindByID(ctx context.Context, id string) (Entry, error) {
	return p.findBy(ctx, `SELECT id, slug, name, tags, needs_review FROM exercises WHERE id = $1`, id)
}

func (p *Postgres) findBy(ctx context.Context, stmt string, arg string) (Entry, error) {
	var e Entry
	err := p.pool.QueryRow(ctx, stmt, arg).Scan(&e.ID, &e.Slug, &e.Name, &e.Tags, &e.NeedsReview)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (p *Postgres) Create(ctx context.Context, name string, tags []string, needsReview bool) (Entry, error) {
	if tags == nil {
		tags = []string{}
	}
	entry := Entry{
		ID:          uuid.NewString(),
		Slug:        Slugify(name),
		Name:        name,
		Tags:        tags,
		NeedsReview: needsReview,
	}

	const stmt = `INSERT INTO exercises (id, slug, name, tags, needs_review) VALUES ($1,$2,$3,$4,$5)`
	_, err := p.pool.Exec(ctx, stmt, entry.ID, entry.Slug, entry.Name, entry.Tags, entry.NeedsReview)
	if isUniqueViolation(err) {
		// Concurrent resolutions may race on the same slug; a suffixed
		// duplicate is acceptable and cleaned up in review.
		entry.Slug = entry.Slug + "-" + entry.ID[:8]
		_, err = p.pool.Exec(ctx, stmt, entry.ID, entry.Slug, entry.Name, entry.Tags, entry.NeedsReview)
	}
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (p *Postgres) SetEmbedding(ctx context.Context, id string, vector []float32) error {
	tag, err := p.pool.Exec(ctx, `UPDATE exercises SET embedding = $1::vector WHERE id = $2`, vectorLiteral(vector), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Slug, &e.Name, &e.Tags, &e.NeedsReview); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// vectorLiteral renders a float32 slice in pgvector's input format.
func vectorLiteral(vector []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range vector {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}
