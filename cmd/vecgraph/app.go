package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecgraph/internal/config"
	dbRedis "github.com/kailas-cloud/vecgraph/internal/db/redis"
	"github.com/kailas-cloud/vecgraph/internal/domain"
	"github.com/kailas-cloud/vecgraph/internal/metrics"
	"github.com/kailas-cloud/vecgraph/internal/repository/crawljob"
	"github.com/kailas-cloud/vecgraph/internal/repository/dedup"
	"github.com/kailas-cloud/vecgraph/internal/repository/embcache"
	graphrepo "github.com/kailas-cloud/vecgraph/internal/repository/graph"
	vectorrepo "github.com/kailas-cloud/vecgraph/internal/repository/vector"
	"github.com/kailas-cloud/vecgraph/internal/textprep"
	"github.com/kailas-cloud/vecgraph/internal/transport/llm"
	openaiEmb "github.com/kailas-cloud/vecgraph/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/vecgraph/internal/usecase/embedding"
	"github.com/kailas-cloud/vecgraph/internal/usecase/extraction"
	graphuc "github.com/kailas-cloud/vecgraph/internal/usecase/graph"
	healthuc "github.com/kailas-cloud/vecgraph/internal/usecase/health"
	"github.com/kailas-cloud/vecgraph/internal/usecase/ingestion"
	"github.com/kailas-cloud/vecgraph/internal/usecase/langfilter"
	"github.com/kailas-cloud/vecgraph/internal/usecase/query"
)

// app is the wired object graph shared by every command.
type app struct {
	cfg        config.Config
	logger     *zap.Logger
	store      *dbRedis.Store
	graphStore *graphrepo.Store
	ledger     *crawljob.Store
	controller *ingestion.Controller
	query      *query.Service
	health     *healthuc.Service
}

// buildApp is the composition root. Partially built resources are released on error.
func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *app, err error) {
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterIngestMetrics()

	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	a.store, err = dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create database store: %w", err)
	}
	if err := a.store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database",
		zap.String("driver", cfg.Database.Driver),
		zap.Strings("addrs", cfg.Database.Addrs),
	)

	vectors := vectorrepo.New(a.store, vectorrepo.HNSWConfig{
		M:           cfg.Vector.HNSWM,
		EFConstruct: cfg.Vector.HNSWEFConstruct,
	})
	if err := vectors.EnsureIndex(ctx, cfg.Embedding.Dimensions); err != nil {
		return nil, fmt.Errorf("ensure vector index: %w", err)
	}

	provider := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger.Named("openai"),
	})
	embedder := buildEmbedder(cfg.Embedding, provider, a.store, logger)
	batcher := embeddinguc.NewBatcher(
		embedder, vectors,
		cfg.Embedding.MaxBatchSize, cfg.Embedding.MaxConcurrentBatches,
		logger.Named("batcher"),
	)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cache", cfg.Embedding.Cache),
	)

	a.graphStore, err = graphrepo.Open(graphrepo.Options{
		Path:     cfg.Graph.Path,
		InMemory: cfg.Graph.InMemory,
	}, logger.Named("graph"))
	if err != nil {
		return nil, fmt.Errorf("open graph store: %w", err)
	}
	graph := graphuc.NewWriter(a.graphStore, metrics.GraphWriteErrorsTotal, logger.Named("graph"))

	extractor, err := buildExtractor(cfg.Extraction, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Ledger.Path == "" {
		a.ledger, err = crawljob.OpenMemory()
	} else {
		a.ledger, err = crawljob.Open(cfg.Ledger.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("open crawl ledger: %w", err)
	}

	a.controller, err = ingestion.NewController(ingestion.Deps{
		Dedup: dedup.New(a.store, time.Duration(cfg.Dedup.TTLSec)*time.Second,
			metrics.DedupUnavailableTotal, logger.Named("dedup")),
		Filter: langfilter.New(langfilter.Options{
			Enabled:   cfg.LangFilter.Enabled,
			Allowed:   cfg.LangFilter.Allowed,
			Mode:      langfilter.Mode(cfg.LangFilter.Mode),
			MinLength: cfg.LangFilter.MinLength,
		}),
		Normalizer: textprep.NewNormalizer(),
		Embedder:   batcher,
		Extractor:  extractor,
		Graph:      graph,
		Ledger:     a.ledger,
	}, ingestion.Options{
		Mode:      ingestion.Mode(cfg.Ingest.Mode),
		Workers:   cfg.Ingest.Workers,
		QueueSize: cfg.Ingest.QueueSize,
	}, logger.Named("ingestion"))
	if err != nil {
		return nil, fmt.Errorf("create ingestion controller: %w", err)
	}

	a.query = query.New(embedder, vectors, graph, extractor, query.Options{
		Rerank:          cfg.Query.Rerank,
		MaxGraphResults: cfg.Query.MaxGraphResults,
	}, logger.Named("query"))

	a.health = healthuc.New(healthuc.Components{
		Database:  a.store,
		Graph:     a.graphStore,
		Ledger:    a.ledger,
		Embedding: provider,
	})

	return a, nil
}

// close releases resources in reverse order of creation.
func (a *app) close() {
	if a.controller != nil {
		a.controller.Release()
	}
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			a.logger.Warn("Failed to close crawl ledger", zap.Error(err))
		}
	}
	if a.graphStore != nil {
		if err := a.graphStore.Close(); err != nil {
			a.logger.Warn("Failed to close graph store", zap.Error(err))
		}
	}
	if a.store != nil {
		a.store.Close()
	}
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented.
func buildEmbedder(
	cfg config.EmbeddingConfig,
	provider *openaiEmb.Embedder,
	store *dbRedis.Store,
	logger *zap.Logger,
) *embeddinguc.InstrumentedEmbedder {
	var inner domain.Embedder = provider
	if cfg.Cache {
		inner = embcache.New(provider, store, metrics.EmbeddingCacheTotal, logger.Named("embcache"))
	}
	return embeddinguc.NewInstrumentedEmbedder(
		inner, cfg.Provider, cfg.Model,
		embeddinguc.RetryPolicy{MaxAttempts: cfg.MaxAttempts},
		logger.Named("embedding"),
	)
}

// buildExtractor selects the extraction provider and isolates its panics.
func buildExtractor(cfg config.ExtractionConfig, logger *zap.Logger) (*extraction.Safe, error) {
	var inner extraction.Extractor
	switch cfg.Provider {
	case "llm":
		ex, err := llm.New(llm.Config{
			BaseURL: cfg.LLM.BaseURL,
			Token:   cfg.LLM.Token,
			Model:   cfg.LLM.Model,
		}, logger.Named("llm"))
		if err != nil {
			return nil, fmt.Errorf("create llm extractor: %w", err)
		}
		inner = ex
	default:
		inner = extraction.NewRules()
	}
	logger.Info("Extractor created", zap.String("provider", cfg.Provider))
	return extraction.NewSafe(inner, logger.Named("extraction")), nil
}
