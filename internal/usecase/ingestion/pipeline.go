package ingestion

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecgraph/internal/domain/crawl"
	"github.com/kailas-cloud/vecgraph/internal/domain/document"
	"github.com/kailas-cloud/vecgraph/internal/metrics"
	"github.com/kailas-cloud/vecgraph/internal/usecase/graph"
)

// admission is a page that passed dedup and language filtering.
type admission struct {
	crawlID string
	doc     document.Document
	title   string
}

// record applies fn to the job under the controller lock.
func (c *Controller) record(st *jobState, fn func(j *crawl.Job)) {
	c.mu.Lock()
	fn(st.job)
	c.mu.Unlock()
}

// streamPage runs the full pipeline for one page event.
func (c *Controller) streamPage(ctx context.Context, st *jobState, page crawl.Page) {
	url := page.URL()
	defer c.guard(st.job.ID, url, "page")

	a, ok := c.admit(ctx, st, &page)
	if !ok {
		return
	}
	c.embed(ctx, st, []admission{a})
	c.extract(ctx, a)
}

// admit runs dedup, normalization and language filtering. The dedup claim is
// taken before any content work so exactly one delivery of a URL proceeds.
func (c *Controller) admit(ctx context.Context, st *jobState, page *crawl.Page) (admission, bool) {
	crawlID := st.job.ID
	url := page.URL()
	log := c.logger.With(zap.String("crawl_id", crawlID), zap.String("url", url))

	if c.deps.Dedup.IsProcessed(ctx, crawlID, url).Skip() {
		c.skipDuplicate(st, url)
		return admission{}, false
	}

	if !page.OK() {
		c.deps.Dedup.MarkProcessed(ctx, crawlID, url)
		log.Warn("Crawler reported page failure", zap.Int("status", page.Metadata.StatusCode))
		c.fail(st, url)
		return admission{}, false
	}

	text := c.deps.Normalizer.Page(page)
	if text == "" {
		c.deps.Dedup.MarkProcessed(ctx, crawlID, url)
		log.Warn("Page has no usable content")
		c.fail(st, url)
		return admission{}, false
	}

	decision := c.deps.Filter.Decide(text)
	if !decision.Accepted {
		c.deps.Dedup.MarkProcessed(ctx, crawlID, url)
		log.Debug("Page rejected by language filter", zap.String("language", decision.Language))
		c.record(st, func(j *crawl.Job) { j.RecordLanguageSkip(url, decision.Language) })
		metrics.IngestPagesTotal.WithLabelValues(metrics.OutcomeSkippedLanguage).Inc()
		return admission{}, false
	}

	if !c.deps.Dedup.MarkProcessed(ctx, crawlID, url).Claimed() {
		c.skipDuplicate(st, url)
		return admission{}, false
	}

	doc, err := document.New(text, document.Source{
		URL:      url,
		CrawlID:  crawlID,
		Title:    page.Metadata.Title,
		Language: decision.Language,
	}, c.now())
	if err != nil {
		log.Warn("Page rejected", zap.Error(err))
		c.fail(st, url)
		return admission{}, false
	}
	return admission{crawlID: crawlID, doc: doc, title: page.Metadata.Title}, true
}

// embed batches admitted documents into the vector store and records outcomes.
func (c *Controller) embed(ctx context.Context, st *jobState, admitted []admission) {
	if len(admitted) == 0 {
		return
	}
	docs := make([]document.Document, len(admitted))
	for i := range admitted {
		docs[i] = admitted[i].doc
	}

	report := c.deps.Embedder.Enqueue(ctx, docs)
	failed := report.FailedURLs()

	c.record(st, func(j *crawl.Job) {
		for range report.Stored {
			j.RecordProcessed()
		}
		for _, url := range failed {
			j.RecordFailed(url)
		}
	})
	metrics.IngestPagesTotal.WithLabelValues(metrics.OutcomeProcessed).Add(float64(len(report.Stored)))
	metrics.IngestPagesTotal.WithLabelValues(metrics.OutcomeFailed).Add(float64(len(failed)))
}

// extract runs entity and relationship extraction and writes the result to the
// graph. It does not depend on the embedding outcome.
func (c *Controller) extract(ctx context.Context, a admission) {
	if c.deps.Extractor == nil || c.deps.Graph == nil {
		return
	}
	src := a.doc.Source()
	log := c.logger.With(zap.String("crawl_id", a.crawlID), zap.String("url", src.URL))

	entities, err := c.deps.Extractor.ExtractEntities(ctx, a.doc.Content())
	if err != nil {
		log.Warn("Entity extraction failed", zap.Error(err))
		return
	}
	if len(entities) == 0 {
		return
	}

	page := graph.Page{
		DocumentID: a.doc.ID(),
		URL:        src.URL,
		Title:      a.title,
		Entities:   entities,
	}
	if len(entities) >= 2 {
		rels, err := c.deps.Extractor.ExtractRelationships(ctx, a.doc.Content(), entities)
		if err != nil {
			log.Warn("Relationship extraction failed", zap.Error(err))
		}
		page.Relationships = rels
	}

	if err := c.deps.Graph.WritePage(ctx, page); err != nil {
		log.Warn("Graph write incomplete", zap.Error(err))
	}
}

func (c *Controller) skipDuplicate(st *jobState, url string) {
	c.record(st, func(j *crawl.Job) { j.RecordDuplicate(url) })
	metrics.IngestPagesTotal.WithLabelValues(metrics.OutcomeSkippedDuplicate).Inc()
}

func (c *Controller) fail(st *jobState, url string) {
	c.record(st, func(j *crawl.Job) { j.RecordFailed(url) })
	metrics.IngestPagesTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
}
