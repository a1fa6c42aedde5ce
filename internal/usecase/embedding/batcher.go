package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/kailas-cloud/vecgraph/internal/domain"
	"github.com/kailas-cloud/vecgraph/internal/domain/document"
	"github.com/kailas-cloud/vecgraph/internal/metrics"
)

// Fixed ceilings for one batch.
const (
	EmbedTimeout  = 30 * time.Second
	UpsertTimeout = 10 * time.Second

	DefaultMaxConcurrentBatches = 10
)

// vectorStore is the consumer interface for the vector repository (ISP).
type vectorStore interface {
	UpsertBatch(ctx context.Context, docs []document.Document) error
}

// FailedBatch describes a batch that could not be embedded or stored.
type FailedBatch struct {
	ID   string
	URLs []string
	Err  error
}

// Report is the outcome of one Enqueue call.
type Report struct {
	Batches int
	Stored  []string // document ids
	Failed  []FailedBatch
}

// FailedURLs lists the source URLs of every failed document.
func (r Report) FailedURLs() []string {
	var urls []string
	for _, f := range r.Failed {
		urls = append(urls, f.URLs...)
	}
	return urls
}

// Batcher groups documents into bounded batches, embeds them and upserts the
// vectors. The semaphore is shared by every Enqueue call on the Batcher.
type Batcher struct {
	embedder      domain.BatchEmbedder
	store         vectorStore
	sem           *semaphore.Weighted
	maxBatch      int
	embedTimeout  time.Duration
	upsertTimeout time.Duration
	logger        *zap.Logger
}

// BatcherOption customizes a Batcher.
type BatcherOption func(*Batcher)

// WithTimeouts overrides the embed and upsert ceilings.
func WithTimeouts(embed, upsert time.Duration) BatcherOption {
	return func(b *Batcher) {
		b.embedTimeout = embed
		b.upsertTimeout = upsert
	}
}

// NewBatcher creates a batcher. maxBatch is capped at domain.MaxEmbeddingBatch.
func NewBatcher(
	e domain.BatchEmbedder, s vectorStore,
	maxBatch, maxConcurrent int, logger *zap.Logger, opts ...BatcherOption,
) *Batcher {
	if maxBatch <= 0 || maxBatch > domain.MaxEmbeddingBatch {
		maxBatch = domain.MaxEmbeddingBatch
	}
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentBatches
	}
	b := &Batcher{
		embedder:      e,
		store:         s,
		sem:           semaphore.NewWeighted(int64(maxConcurrent)),
		maxBatch:      maxBatch,
		embedTimeout:  EmbedTimeout,
		upsertTimeout: UpsertTimeout,
		logger:        logger,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Enqueue embeds and stores docs, blocking until every batch finished.
// Batches beyond the concurrency ceiling wait for a slot. A failed batch is
// reported and logged but never retried here.
func (b *Batcher) Enqueue(ctx context.Context, docs []document.Document) Report {
	batches := split(docs, b.maxBatch)
	report := Report{Batches: len(batches)}
	if len(batches) == 0 {
		return report
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, batch := range batches {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := uuid.NewString()
			err := b.run(ctx, id, batch)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed = append(report.Failed, FailedBatch{ID: id, URLs: urls(batch), Err: err})
				return
			}
			for i := range batch {
				report.Stored = append(report.Stored, batch[i].ID())
			}
		}()
	}
	wg.Wait()
	return report
}

func (b *Batcher) run(ctx context.Context, id string, batch []document.Document) error {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		b.fail(id, batch, "acquire", err)
		return fmt.Errorf("acquire batch slot: %w", err)
	}
	defer b.sem.Release(1)

	metrics.EmbedBatchesInFlight.Inc()
	defer metrics.EmbedBatchesInFlight.Dec()
	metrics.EmbedBatchSize.Observe(float64(len(batch)))

	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = batch[i].Content()
	}

	embedCtx, cancel := context.WithTimeout(ctx, b.embedTimeout)
	res, err := b.embedder.BatchEmbed(embedCtx, texts)
	cancel()
	if err != nil {
		b.fail(id, batch, "embed", err)
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(res.Embeddings) != len(batch) {
		err := fmt.Errorf("expected %d embeddings, got %d: %w",
			len(batch), len(res.Embeddings), domain.ErrEmbeddingProviderError)
		b.fail(id, batch, "embed", err)
		return err
	}

	embedded := make([]document.Document, len(batch))
	for i := range batch {
		embedded[i] = batch[i].WithVector(res.Embeddings[i])
	}

	upsertCtx, cancel := context.WithTimeout(ctx, b.upsertTimeout)
	err = b.store.UpsertBatch(upsertCtx, embedded)
	cancel()
	if err != nil {
		b.fail(id, batch, "upsert", err)
		return fmt.Errorf("upsert batch: %w", err)
	}

	metrics.EmbedBatchesTotal.WithLabelValues("ok").Inc()
	b.logger.Debug("Batch stored",
		zap.String("batch_id", id),
		zap.Int("size", len(batch)),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return nil
}

func (b *Batcher) fail(id string, batch []document.Document, stage string, err error) {
	metrics.EmbedBatchesTotal.WithLabelValues("failed").Inc()
	b.logger.Error("Embedding batch failed",
		zap.String("batch_id", id),
		zap.String("stage", stage),
		zap.Int("size", len(batch)),
		zap.Strings("urls", urls(batch)),
		zap.Error(err),
	)
}

func split(docs []document.Document, size int) [][]document.Document {
	var out [][]document.Document
	for start := 0; start < len(docs); start += size {
		out = append(out, docs[start:min(start+size, len(docs))])
	}
	return out
}

func urls(batch []document.Document) []string {
	out := make([]string, len(batch))
	for i := range batch {
		out[i] = batch[i].Source().URL
	}
	return out
}
