package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/repset/repset/internal/audit"
	"github.com/repset/repset/internal/catalog"
	"github.com/repset/repset/internal/config"
	"github.com/repset/repset/internal/core"
	"github.com/repset/repset/internal/core/extract"
	"github.com/repset/repset/internal/core/repair"
	"github.com/repset/repset/internal/core/resolve"
	"github.com/repset/repset/internal/core/validate"
	"github.com/repset/repset/internal/llm"
	"github.com/repset/repset/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using environment as is")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("failed to load configuration", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	accessor, cleanup, err := buildCatalog(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize catalog", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	toolClient, embedder, err := llm.NewClient(ctx, llm.ProviderConfig{
		Provider:       cfg.LLM.Provider,
		Model:          cfg.LLM.Model,
		FastModel:      cfg.LLM.FastModel,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
	})
	if err != nil {
		logger.Error("failed to initialize reasoning client", "error", err)
		os.Exit(1)
	}

	var recorder audit.Recorder = audit.Noop{}
	if len(cfg.Audit.KafkaBrokers) > 0 {
		topic := cfg.Audit.Topic
		if topic == "" {
			topic = "unresolved-mentions"
		}
		recorder = audit.NewKafka(cfg.Audit.KafkaBrokers, topic, logger)
		logger.Info("audit publishing enabled", "topic", topic)
	}

	resolver := resolve.NewResolver(accessor, embedder, toolClient, recorder, logger, resolve.Config{
		SemanticThreshold: cfg.Resolver.SemanticThreshold,
		LexicalLimit:      cfg.Resolver.LexicalLimit,
		SearchBound:       cfg.Resolver.SearchBound,
		Abbreviations:     cfg.Resolver.Abbreviations,
	})
	pipeline := core.NewPipeline(
		validate.New(toolClient, cfg.Validator.MinConfidence),
		extract.New(toolClient),
		resolver,
		repair.New(toolClient),
		logger,
	)

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: server.New(pipeline, logger, time.Duration(cfg.Server.ParseTimeoutSeconds)*time.Second).SetupRouter(),
	}

	go func() {
		logger.Info("server listening", "address", cfg.Server.Address, "provider", cfg.LLM.Provider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

// buildCatalog connects to Postgres when a URL is configured, otherwise runs
// on the seeded in-memory catalog for local development.
func buildCatalog(ctx context.Context, cfg *config.Config, logger *slog.Logger) (catalog.Accessor, func(), error) {
	if cfg.Storage.PostgresURL == "" {
		logger.Info("no postgres configured, using in-memory catalog")
		mem := catalog.NewInMemory()
		mem.Seed()
		return mem, func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.Storage.PostgresURL)
	if err != nil {
		return nil, nil, err
	}
	pg := catalog.NewPostgres(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pg, pool.Close, nil
}
