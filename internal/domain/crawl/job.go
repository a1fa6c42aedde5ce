package crawl

import (
	"maps"
	"time"
)

// State is the lifecycle state of a crawl job.
type State string

// Crawl job states. Completed, Failed and Cancelled are terminal.
const (
	StateStarted   State = "started"
	StateStreaming State = "streaming"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further events may change the job.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Summary is the per-crawl outcome report.
type Summary struct {
	Total            int            `json:"total"`
	Processed        int            `json:"processed"`
	SkippedDuplicate int            `json:"skipped_duplicate"`
	SkippedLanguage  int            `json:"skipped_language"`
	Languages        map[string]int `json:"skipped_languages,omitempty"`
	Failed           int            `json:"failed"`
}

// Job is the mutable state of one crawl. It is not safe for concurrent use;
// the ingestion controller serializes access.
type Job struct {
	ID        string
	SourceURL string
	State     State
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
	Finished  bool

	summary  Summary
	seen     map[string]struct{}
	rejected map[string]string // settled without processing: language code, or "" when failed
}

// NewJob creates a job in the started state.
func NewJob(id string, now time.Time) *Job {
	return &Job{
		ID:        id,
		State:     StateStarted,
		CreatedAt: now,
		UpdatedAt: now,
		summary:   Summary{Languages: make(map[string]int)},
		seen:      make(map[string]struct{}),
		rejected:  make(map[string]string),
	}
}

// Restore rebuilds a finished job from persisted fields.
func Restore(id, sourceURL string, state State, errMsg string, s Summary, created, updated time.Time) *Job {
	j := NewJob(id, created)
	j.SourceURL = sourceURL
	j.State = state
	j.Error = errMsg
	j.UpdatedAt = updated
	j.Finished = state.Terminal()
	j.summary = s
	if j.summary.Languages == nil {
		j.summary.Languages = make(map[string]int)
	}
	return j
}

// Transition moves the job into the state implied by an event type.
// It returns false when the event must be ignored because the job is terminal.
func (j *Job) Transition(t EventType, now time.Time) bool {
	if j.State.Terminal() {
		return false
	}
	switch t {
	case EventStarted:
	case EventPage:
		j.State = StateStreaming
	case EventCompleted:
		j.State = StateCompleted
	case EventFailed:
		j.State = StateFailed
	case EventCancelled:
		j.State = StateCancelled
	default:
		return false
	}
	j.UpdatedAt = now
	return true
}

// Finish marks a terminal job as fully processed: its summary is final.
func (j *Job) Finish(now time.Time) {
	if j.State.Terminal() {
		j.Finished = true
		j.UpdatedAt = now
	}
}

// See records a page URL as observed in this crawl.
func (j *Job) See(url string) { j.seen[url] = struct{}{} }

// RecordProcessed counts a page that was embedded and stored.
func (j *Job) RecordProcessed() { j.summary.Processed++ }

// RecordFailed counts a page whose processing failed, once per URL.
func (j *Job) RecordFailed(url string) {
	if _, ok := j.rejected[url]; ok {
		return
	}
	j.rejected[url] = ""
	j.summary.Failed++
}

// RecordDuplicate counts a page skipped by the dedup store. A URL previously
// rejected for its language or failed is not counted again.
func (j *Job) RecordDuplicate(url string) {
	if _, ok := j.rejected[url]; ok {
		return
	}
	j.summary.SkippedDuplicate++
}

// RecordLanguageSkip counts a page rejected by the language filter, once per URL.
func (j *Job) RecordLanguageSkip(url, lang string) {
	if _, ok := j.rejected[url]; ok {
		return
	}
	j.rejected[url] = lang
	j.summary.SkippedLanguage++
	j.summary.Languages[lang]++
}

// Summary returns a copy of the current counters.
func (j *Job) Summary() Summary {
	s := j.summary
	s.Languages = maps.Clone(j.summary.Languages)
	if len(j.seen) > s.Total {
		s.Total = len(j.seen)
	}
	return s
}

// Snapshot is an immutable copy of a job for readers outside the controller.
type Snapshot struct {
	ID        string    `json:"id"`
	SourceURL string    `json:"source_url,omitempty"`
	State     State     `json:"state"`
	Error     string    `json:"error,omitempty"`
	Finished  bool      `json:"finished"`
	Summary   Summary   `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot copies the job.
func (j *Job) Snapshot() Snapshot {
	return Snapshot{
		ID:        j.ID,
		SourceURL: j.SourceURL,
		State:     j.State,
		Error:     j.Error,
		Finished:  j.Finished,
		Summary:   j.Summary(),
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}
