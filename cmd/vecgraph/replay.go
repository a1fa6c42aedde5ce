package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecgraph/internal/domain"
	"github.com/kailas-cloud/vecgraph/internal/domain/crawl"
)

const (
	// maxEventLine caps one JSONL line. Completion events may carry every page of a crawl.
	maxEventLine = 64 << 20
	// overloadBackoff is the wait before resubmitting an event the pool rejected.
	overloadBackoff = 100 * time.Millisecond
)

// eventHandler is the part of the ingestion controller replay drives.
type eventHandler interface {
	HandleEvent(ctx context.Context, evt crawl.Event) error
}

// replayStats counts what happened to each line.
type replayStats struct {
	Lines    int      `json:"lines"`
	Accepted int      `json:"accepted"`
	Invalid  int      `json:"invalid"`
	Failed   int      `json:"failed"`
	Crawls   []string `json:"crawls"`
}

func (rt *runtimeEnv) replay(c *cli.Context) error {
	path := filepath.Clean(c.String("file"))
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open events: %w", err)
	}
	defer f.Close()

	a, err := buildApp(c.Context, rt.cfg, rt.logger)
	if err != nil {
		return err
	}
	defer a.close()

	stats, err := replayEvents(c.Context, f, a.controller, rt.logger)
	if err != nil {
		return err
	}
	if err := a.controller.Drain(c.Context); err != nil {
		return fmt.Errorf("drain ingestion: %w", err)
	}

	summaries := make([]crawl.Snapshot, 0, len(stats.Crawls))
	for _, id := range stats.Crawls {
		snap, err := a.controller.Job(c.Context, id)
		if err != nil {
			rt.logger.Warn("Crawl job missing after replay", zap.String("crawl_id", id), zap.Error(err))
			continue
		}
		summaries = append(summaries, snap)
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{ //nolint:wrapcheck // terminal output
		"replay": stats,
		"crawls": summaries,
	})
}

// replayEvents feeds every line of r to h in order. Invalid lines are logged and
// counted; only read errors abort the replay.
func replayEvents(ctx context.Context, r io.Reader, h eventHandler, logger *zap.Logger) (replayStats, error) {
	var stats replayStats
	seen := make(map[string]struct{})

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxEventLine)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		stats.Lines++

		evt, err := crawl.ParseEvent(line)
		if err != nil {
			stats.Invalid++
			logger.Warn("Skipping invalid event", zap.Int("line", stats.Lines), zap.Error(err))
			continue
		}
		if _, ok := seen[evt.ID]; !ok {
			seen[evt.ID] = struct{}{}
			stats.Crawls = append(stats.Crawls, evt.ID)
		}

		if err := submit(ctx, h, evt); err != nil {
			if errors.Is(err, domain.ErrInvalidEvent) {
				stats.Invalid++
			} else {
				stats.Failed++
			}
			logger.Warn("Event not accepted",
				zap.Int("line", stats.Lines),
				zap.String("crawl_id", evt.ID),
				zap.String("type", string(evt.Type)),
				zap.Error(err),
			)
			continue
		}
		stats.Accepted++
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("read events: %w", err)
	}
	return stats, nil
}

// submit hands evt to h, waiting while the worker pool is full.
func submit(ctx context.Context, h eventHandler, evt crawl.Event) error {
	for {
		err := h.HandleEvent(ctx, evt)
		if !errors.Is(err, domain.ErrOverloaded) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err() //nolint:wrapcheck // context cancellation
		case <-time.After(overloadBackoff):
		}
	}
}
