// Package ingestion consumes crawl lifecycle events and drives pages through
// dedup, language filtering, embedding and graph extraction.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecgraph/internal/domain"
	"github.com/kailas-cloud/vecgraph/internal/domain/crawl"
	"github.com/kailas-cloud/vecgraph/internal/metrics"
)

// Mode selects when page content is processed.
type Mode string

// Processing modes.
const (
	// ModeStreaming processes every page event immediately.
	ModeStreaming Mode = "streaming"
	// ModeDeferred only records page events and processes the completed batch.
	ModeDeferred Mode = "deferred"
)

// Pool defaults.
const (
	DefaultWorkers   = 16
	DefaultQueueSize = 1024
)

// Options configures a Controller.
type Options struct {
	Mode      Mode
	Workers   int
	QueueSize int
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Dedup      DedupStore
	Filter     LanguageFilter
	Normalizer Normalizer
	Embedder   Embedder
	Extractor  Extractor
	Graph      GraphWriter
	Ledger     Ledger
}

// jobState is a live crawl. Its job is guarded by Controller.mu.
type jobState struct {
	job   *crawl.Job
	tasks sync.WaitGroup // page and extraction tasks of this crawl
}

// Controller is the per-process crawl state machine. Page work runs on a
// bounded ants pool; completions run on tracked goroutines.
type Controller struct {
	deps   Deps
	mode   Mode
	pool   *ants.Pool
	logger *zap.Logger
	now    func() time.Time

	mu   sync.Mutex
	jobs map[string]*jobState

	inflight sync.WaitGroup
}

// NewController creates a controller with its worker pool.
func NewController(deps Deps, opts Options, logger *zap.Logger) (*Controller, error) {
	if opts.Mode == "" {
		opts.Mode = ModeStreaming
	}
	if opts.Mode != ModeStreaming && opts.Mode != ModeDeferred {
		return nil, fmt.Errorf("unknown ingest mode %q", opts.Mode)
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}

	pool, err := ants.NewPool(opts.Workers, ants.WithMaxBlockingTasks(opts.QueueSize))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	return &Controller{
		deps:   deps,
		mode:   opts.Mode,
		pool:   pool,
		logger: logger,
		now:    time.Now,
		jobs:   make(map[string]*jobState),
	}, nil
}

// HandleEvent validates the event, applies its state transition and dispatches
// background work. Events for terminal crawls are accepted and ignored.
// A full task queue returns domain.ErrOverloaded.
func (c *Controller) HandleEvent(ctx context.Context, evt crawl.Event) error {
	if err := evt.Validate(); err != nil {
		metrics.CrawlEventsTotal.WithLabelValues(string(evt.Type), "rejected").Inc()
		return err
	}
	// background work outlives the request
	bg := context.WithoutCancel(ctx)

	st, err := c.lookup(ctx, evt.ID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	prev := st.job.State
	if !st.job.Transition(evt.Type, c.now()) {
		c.mu.Unlock()
		metrics.CrawlEventsTotal.WithLabelValues(string(evt.Type), "ignored").Inc()
		c.logger.Debug("Ignoring event for finished crawl",
			zap.String("crawl_id", evt.ID), zap.String("type", string(evt.Type)))
		return nil
	}

	var dispatch func() error
	switch evt.Type {
	case crawl.EventStarted:
		if st.job.SourceURL == "" && len(evt.Pages) > 0 {
			st.job.SourceURL = evt.Pages[0].URL()
		}
	case crawl.EventPage:
		page := evt.Pages[0]
		st.job.See(page.URL())
		if c.mode == ModeStreaming {
			st.tasks.Add(1)
			c.inflight.Add(1)
			dispatch = func() error { return c.submitPage(bg, st, page) }
		}
	case crawl.EventCompleted:
		for i := range evt.Pages {
			st.job.See(evt.Pages[i].URL())
		}
		c.inflight.Add(1)
		go c.complete(bg, st, evt.Pages)
	case crawl.EventFailed, crawl.EventCancelled:
		st.job.Error = evt.Error
		c.inflight.Add(1)
		go c.abort(bg, st)
	}
	snap := st.job.Snapshot()
	c.mu.Unlock()

	metrics.CrawlEventsTotal.WithLabelValues(string(evt.Type), "accepted").Inc()
	if snap.State != prev || evt.Type == crawl.EventStarted {
		c.persist(bg, snap)
	}

	if dispatch != nil {
		return dispatch()
	}
	return nil
}

// lookup returns the live job, restoring it from the ledger or creating it.
// A page or completed event arriving first creates the job implicitly.
func (c *Controller) lookup(ctx context.Context, id string) (*jobState, error) {
	c.mu.Lock()
	st, ok := c.jobs[id]
	c.mu.Unlock()
	if ok {
		return st, nil
	}

	var restored *crawl.Job
	if c.deps.Ledger != nil {
		job, err := c.deps.Ledger.Get(ctx, id)
		switch {
		case err == nil:
			restored = job
		case errors.Is(err, domain.ErrCrawlNotFound):
		default:
			// the ledger is advisory; a fresh job is the safe default
			c.logger.Warn("Crawl ledger lookup failed", zap.String("crawl_id", id), zap.Error(err))
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.jobs[id]; ok {
		return st, nil
	}
	if restored == nil {
		restored = crawl.NewJob(id, c.now())
	}
	st = &jobState{job: restored}
	if !restored.Finished {
		c.jobs[id] = st
	}
	return st, nil
}

// submitPage hands one streaming page to the pool.
func (c *Controller) submitPage(ctx context.Context, st *jobState, page crawl.Page) error {
	err := c.pool.Submit(func() {
		defer c.inflight.Done()
		defer st.tasks.Done()
		c.streamPage(ctx, st, page)
	})
	if err != nil {
		st.tasks.Done()
		c.inflight.Done()
		if errors.Is(err, ants.ErrPoolOverload) {
			return fmt.Errorf("page %s: %w", page.URL(), domain.ErrOverloaded)
		}
		return fmt.Errorf("submit page %s: %w", page.URL(), err)
	}
	return nil
}

// complete processes the full page set of a completed crawl, waits for its
// streaming tasks, then persists the summary and evicts the job.
func (c *Controller) complete(ctx context.Context, st *jobState, pages []crawl.Page) {
	defer c.inflight.Done()
	c.processBatch(ctx, st, pages)
	st.tasks.Wait()
	c.finish(ctx, st)
}

func (c *Controller) processBatch(ctx context.Context, st *jobState, pages []crawl.Page) {
	crawlID := st.job.ID
	defer c.guard(crawlID, "", "completion")

	var admitted []admission
	for i := range pages {
		if a, ok := c.admit(ctx, st, &pages[i]); ok {
			admitted = append(admitted, a)
		}
	}

	c.embed(ctx, st, admitted)

	for _, a := range admitted {
		st.tasks.Add(1)
		err := c.pool.Submit(func() {
			defer st.tasks.Done()
			defer c.guard(crawlID, a.doc.Source().URL, "extraction")
			c.extract(ctx, a)
		})
		if err != nil {
			// queue is full: do the work on this goroutine instead
			st.tasks.Done()
			func() {
				defer c.guard(crawlID, a.doc.Source().URL, "extraction")
				c.extract(ctx, a)
			}()
		}
	}
}

// abort finalizes a failed or cancelled crawl. In-flight tasks are not
// interrupted; the summary is written once they finish.
func (c *Controller) abort(ctx context.Context, st *jobState) {
	defer c.inflight.Done()
	st.tasks.Wait()
	c.finish(ctx, st)
}

// finish logs and persists the final summary, cleans dedup state and evicts the job.
func (c *Controller) finish(ctx context.Context, st *jobState) {
	c.mu.Lock()
	st.job.Finish(c.now())
	snap := st.job.Snapshot()
	c.mu.Unlock()

	s := snap.Summary
	c.logger.Info("Crawl summary",
		zap.String("crawl_id", snap.ID),
		zap.String("state", string(snap.State)),
		zap.Int("total", s.Total),
		zap.Int("processed", s.Processed),
		zap.Int("skipped_duplicate", s.SkippedDuplicate),
		zap.Int("skipped_language", s.SkippedLanguage),
		zap.Any("skipped_languages", s.Languages),
		zap.Int("failed", s.Failed),
		zap.String("error", snap.Error),
	)

	c.persist(ctx, snap)
	if snap.State.Terminal() {
		if err := c.deps.Dedup.Cleanup(ctx, snap.ID); err != nil {
			c.logger.Warn("Dedup cleanup failed", zap.String("crawl_id", snap.ID), zap.Error(err))
		}
	}

	c.mu.Lock()
	if c.jobs[snap.ID] == st {
		delete(c.jobs, snap.ID)
	}
	c.mu.Unlock()
}

func (c *Controller) persist(ctx context.Context, snap crawl.Snapshot) {
	if c.deps.Ledger == nil {
		return
	}
	if err := c.deps.Ledger.Save(ctx, snap); err != nil {
		c.logger.Warn("Failed to persist crawl job", zap.String("crawl_id", snap.ID), zap.Error(err))
	}
}

// Job returns a snapshot of a live job, or of a persisted one.
func (c *Controller) Job(ctx context.Context, id string) (crawl.Snapshot, error) {
	c.mu.Lock()
	st, ok := c.jobs[id]
	if ok {
		snap := st.job.Snapshot()
		c.mu.Unlock()
		return snap, nil
	}
	c.mu.Unlock()

	if c.deps.Ledger == nil {
		return crawl.Snapshot{}, fmt.Errorf("crawl %s: %w", id, domain.ErrCrawlNotFound)
	}
	job, err := c.deps.Ledger.Get(ctx, id)
	if err != nil {
		return crawl.Snapshot{}, err //nolint:wrapcheck // ledger errors carry the crawl id
	}
	return job.Snapshot(), nil
}

// Drain waits for every completion and page task, or for ctx.
func (c *Controller) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain: %w", ctx.Err())
	}
}

// Release frees the worker pool. Call after Drain.
func (c *Controller) Release() {
	c.pool.Release()
}

// guard recovers a panicking task so one page never takes down its siblings.
func (c *Controller) guard(crawlID, url, stage string) {
	if p := recover(); p != nil {
		c.logger.Error("Ingestion task panicked",
			zap.String("crawl_id", crawlID),
			zap.String("url", url),
			zap.String("stage", stage),
			zap.Any("panic", p),
		)
	}
}
