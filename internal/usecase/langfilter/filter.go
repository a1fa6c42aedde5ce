// Package langfilter decides whether page text is in an allowed language.
package langfilter

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	"github.com/microcosm-cc/bluemonday"
)

// Unknown is reported when the language cannot be determined.
const Unknown = "unknown"

// Mode selects how unknown languages are treated.
type Mode string

// Filter modes.
const (
	ModeStrict  Mode = "strict"
	ModeLenient Mode = "lenient"
)

// Defaults.
const (
	DefaultMinLength  = 50
	DefaultSampleSize = 2000
)

// Options configures a Filter.
type Options struct {
	Enabled    bool
	Allowed    []string
	Mode       Mode
	MinLength  int
	SampleSize int
}

// Decision is the verdict for one text.
type Decision struct {
	Language string
	Accepted bool
}

// Filter is a pure language predicate. Safe for concurrent use.
type Filter struct {
	enabled    bool
	allowed    map[string]struct{}
	mode       Mode
	minLength  int
	sampleSize int
	strip      *bluemonday.Policy
}

// New creates a filter. Zero lengths take the defaults; an empty mode is strict.
func New(opts Options) *Filter {
	f := &Filter{
		enabled:    opts.Enabled,
		allowed:    make(map[string]struct{}, len(opts.Allowed)),
		mode:       opts.Mode,
		minLength:  opts.MinLength,
		sampleSize: opts.SampleSize,
		strip:      bluemonday.StrictPolicy(),
	}
	for _, l := range opts.Allowed {
		if l = strings.ToLower(strings.TrimSpace(l)); l != "" {
			f.allowed[l] = struct{}{}
		}
	}
	if f.mode == "" {
		f.mode = ModeStrict
	}
	if f.minLength <= 0 {
		f.minLength = DefaultMinLength
	}
	if f.sampleSize <= 0 {
		f.sampleSize = DefaultSampleSize
	}
	return f
}

// Enabled reports whether filtering is active.
func (f *Filter) Enabled() bool { return f.enabled }

// Detect returns the ISO 639-1 code of the text, or Unknown.
func (f *Filter) Detect(text string) string {
	sample := f.sample(text)
	if len([]rune(sample)) < f.minLength {
		return Unknown
	}
	info := whatlanggo.Detect(sample)
	if !info.IsReliable() {
		return Unknown
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return Unknown
	}
	return code
}

// Accept reports whether the text passes the filter.
func (f *Filter) Accept(text string) bool {
	return f.Decide(text).Accepted
}

// Decide detects the language and applies the mode. A disabled filter accepts
// everything without running detection.
func (f *Filter) Decide(text string) Decision {
	if !f.enabled {
		return Decision{Language: Unknown, Accepted: true}
	}
	lang := f.Detect(text)
	return Decision{Language: lang, Accepted: f.allows(lang)}
}

func (f *Filter) allows(lang string) bool {
	if lang == Unknown {
		return f.mode == ModeLenient
	}
	_, ok := f.allowed[lang]
	return ok
}

// sample strips markup and keeps the first sampleSize runes, whitespace collapsed.
func (f *Filter) sample(text string) string {
	r := []rune(text)
	// markup can dominate the head of a page; take a wider slice before stripping
	if limit := f.sampleSize * 4; len(r) > limit {
		r = r[:limit]
	}
	clean := strings.Join(strings.Fields(f.strip.Sanitize(string(r))), " ")
	cr := []rune(clean)
	if len(cr) > f.sampleSize {
		cr = cr[:f.sampleSize]
	}
	return string(cr)
}
