package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/repset/repset/internal/audit"
	"github.com/repset/repset/internal/catalog"
	"github.com/repset/repset/internal/llm"
	"github.com/repset/repset/internal/observability"
)

const (
	defaultSemanticThreshold = 0.75
	defaultLexicalLimit      = 50
)

// Config tunes the matching thresholds. Zero values fall back to defaults.
type Config struct {
	// SemanticThreshold is the minimum cosine similarity for an embedding
	// match to short-circuit the rest of the pipeline.
	SemanticThreshold float64
	// LexicalLimit caps how many candidates the trigram search returns
	// before token re-ranking.
	LexicalLimit int
	// SearchBound caps search_catalog invocations during negotiation.
	SearchBound int
	// Abbreviations extends the built-in shorthand dictionary used for
	// tokenization. Keys are shorthand, values the expansion.
	Abbreviations map[string]string
}

// Resolution is the outcome for one distinct mentioned name.
type Resolution struct {
	Entry catalog.Entry
	// Path records which strategy produced the match: semantic, lexical,
	// llm_select or llm_create.
	Path string
}

// Resolver maps free-text exercise names to catalog entries. Matching is
// layered: embedding similarity when an embedder is configured, then trigram
// search with token re-ranking, then a bounded tool conversation with the
// reasoning service as the last resort.
type Resolver struct {
	catalog    catalog.Accessor
	embedder   llm.EmbedderClient
	negotiator *negotiator
	audit      audit.Recorder
	logger     *slog.Logger
	cfg        Config
	abbrevs    map[string]string
}

func NewResolver(accessor catalog.Accessor, embedder llm.EmbedderClient, client llm.ToolClient, recorder audit.Recorder, logger *slog.Logger, cfg Config) *Resolver {
	if cfg.SemanticThreshold <= 0 {
		cfg.SemanticThreshold = defaultSemanticThreshold
	}
	if cfg.LexicalLimit <= 0 {
		cfg.LexicalLimit = defaultLexicalLimit
	}
	if recorder == nil {
		recorder = audit.Noop{}
	}
	creator := NewCreator(accessor, embedder, logger)
	return &Resolver{
		catalog:    accessor,
		embedder:   embedder,
		negotiator: newNegotiator(client, accessor, creator, cfg.SearchBound, logger),
		audit:      recorder,
		logger:     logger,
		cfg:        cfg,
		abbrevs:    cfg.Abbreviations,
	}
}

// ResolveOptions carries per-request context for auditing.
type ResolveOptions struct {
	UserID    string
	WorkoutID string
}

// ResolveAll resolves every name in names, deduplicating by normalized form
// first so one workout never triggers two lookups for the same exercise. The
// returned map is keyed by normalized name; callers look up each original
// mention through NormalizeKey. Distinct names resolve concurrently.
func (r *Resolver) ResolveAll(ctx context.Context, names []string, opts ResolveOptions) (map[string]Resolution, error) {
	// First spelling of each normalized name wins; later variants reuse
	// its resolution.
	distinct := make(map[string]string)
	var order []string
	for _, name := range names {
		key := NormalizeKey(name)
		if key == "" {
			continue
		}
		if _, seen := distinct[key]; !seen {
			distinct[key] = name
			order = append(order, key)
		}
	}

	results := make(map[string]Resolution, len(distinct))
	errs := make(map[string]error)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, key := range order {
		wg.Add(1)
		go func(key, original string) {
			defer wg.Done()
			res, err := r.resolveOne(ctx, original, opts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[key] = err
				return
			}
			results[key] = res
		}(key, distinct[key])
	}
	wg.Wait()

	// Report the first failure in input order, not map order.
	for _, key := range order {
		err, ok := errs[key]
		if !ok {
			continue
		}
		var up *UpstreamError
		if errors.As(err, &up) {
			return nil, err
		}
		return nil, &ResolutionError{Name: distinct[key], Err: err}
	}
	return results, nil
}

// ResolutionError marks a name that could not be bound to any catalog entry
// after all strategies ran. It carries the original spelling so the failure
// is diagnosable from logs alone.
type ResolutionError struct {
	Name string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("could not resolve exercise %q: %v", e.Name, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// UpstreamError marks an external-service failure during resolution: the
// embedding provider or the reasoning-service transport, as opposed to a
// negotiation that ran to completion without an answer.
type UpstreamError struct {
	Name string
	Err  error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream failure resolving %q: %v", e.Name, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (r *Resolver) resolveOne(ctx context.Context, name string, opts ResolveOptions) (Resolution, error) {
	if r.embedder != nil {
		res, ok, err := r.resolveSemantic(ctx, name)
		if err != nil {
			// An unreachable embedding provider fails the run; a
			// silent fallback would mask a misconfigured deployment.
			return Resolution{}, &UpstreamError{Name: name, Err: err}
		}
		if ok {
			observability.RecordResolution(PathSemantic)
			return res, nil
		}
	}

	candidates, err := r.catalog.SearchLexical(ctx, name, r.cfg.LexicalLimit)
	if err != nil {
		return Resolution{}, fmt.Errorf("lexical search: %w", err)
	}
	if best, ok := RankBest(name, candidates, r.abbrevs); ok {
		observability.RecordResolution(PathLexical)
		return Resolution{Entry: best, Path: PathLexical}, nil
	}

	entry, path, err := r.negotiator.resolve(ctx, name, candidates)
	if err != nil {
		return Resolution{}, err
	}
	observability.RecordResolution(path)

	if path == PathLLMSelect && opts.UserID != "" {
		r.audit.RecordUnresolved(ctx, audit.Record{
			OriginalName: name,
			ResolvedID:   entry.ID,
			UserID:       opts.UserID,
			WorkoutID:    opts.WorkoutID,
		})
	}
	return Resolution{Entry: entry, Path: path}, nil
}

func (r *Resolver) resolveSemantic(ctx context.Context, name string) (Resolution, bool, error) {
	vec, err := r.embedder.Embed(ctx, name)
	if err != nil {
		return Resolution{}, false, fmt.Errorf("embed: %w", err)
	}
	matches, err := r.catalog.SearchSemantic(ctx, vec, 1, r.cfg.SemanticThreshold)
	if err != nil {
		return Resolution{}, false, fmt.Errorf("semantic search: %w", err)
	}
	if len(matches) == 0 {
		return Resolution{}, false, nil
	}
	return Resolution{Entry: matches[0].Entry, Path: PathSemantic}, true, nil
}
