package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecgraph/internal/domain"
	"github.com/kailas-cloud/vecgraph/internal/domain/crawl"
)

type fakeHandler struct {
	fn    func(evt crawl.Event) error
	calls int
}

func (f *fakeHandler) HandleEvent(_ context.Context, evt crawl.Event) error {
	f.calls++
	if f.fn == nil {
		return nil
	}
	return f.fn(evt)
}

const pageLine = `{"type":"crawl.page","id":"c1","data":{"markdown":"hello","metadata":{"sourceURL":"https://a.test/x","statusCode":200}}}`

func TestReplayEvents(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"crawl.started","id":"c1"}`,
		"",
		pageLine,
		`not json`,
		`{"type":"crawl.exploded","id":"c1"}`,
		`{"type":"crawl.started","id":"c2"}`,
		`{"type":"crawl.completed","id":"c1","data":[]}`,
	}, "\n")

	h := &fakeHandler{fn: func(evt crawl.Event) error {
		if evt.ID == "c2" {
			return errors.New("ledger down")
		}
		return nil
	}}

	stats, err := replayEvents(context.Background(), strings.NewReader(input), h, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 6, stats.Lines)
	assert.Equal(t, 3, stats.Accepted)
	assert.Equal(t, 2, stats.Invalid)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, []string{"c1", "c2"}, stats.Crawls)
	assert.Equal(t, 4, h.calls)
}

func TestReplayEvents_HandlerRejectsEvent(t *testing.T) {
	h := &fakeHandler{fn: func(crawl.Event) error {
		return domain.ErrInvalidEvent
	}}

	stats, err := replayEvents(context.Background(), strings.NewReader(pageLine), h, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Invalid)
	assert.Zero(t, stats.Failed)
	assert.Zero(t, stats.Accepted)
}

func TestSubmit_RetriesWhileOverloaded(t *testing.T) {
	h := &fakeHandler{}
	h.fn = func(crawl.Event) error {
		if h.calls < 3 {
			return domain.ErrOverloaded
		}
		return nil
	}

	err := submit(context.Background(), h, crawl.Event{Type: crawl.EventStarted, ID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 3, h.calls)
}

func TestSubmit_StopsOnCancel(t *testing.T) {
	h := &fakeHandler{fn: func(crawl.Event) error { return domain.ErrOverloaded }}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := submit(ctx, h, crawl.Event{Type: crawl.EventStarted, ID: "c1"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, h.calls, 1)
}

func TestSubmit_PassesOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	h := &fakeHandler{fn: func(crawl.Event) error { return boom }}

	err := submit(context.Background(), h, crawl.Event{Type: crawl.EventStarted, ID: "c1"})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, h.calls)
}
