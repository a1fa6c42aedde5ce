// Package textprep turns crawled pages into the plain text that gets embedded
// and extracted from.
package textprep

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"

	"github.com/kailas-cloud/vecgraph/internal/domain/crawl"
	"github.com/kailas-cloud/vecgraph/internal/domain/document"
)

// Normalizer converts page content to clean markdown text. Safe for concurrent use.
type Normalizer struct {
	md     *converter.Converter
	strict *bluemonday.Policy
	limit  int
}

// NewNormalizer creates a normalizer capping output at document.MaxContentSize.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		strict: bluemonday.StrictPolicy(),
		limit:  document.MaxContentSize,
	}
}

// Page returns the normalized text of a page. Markdown wins; raw HTML is
// converted only when the crawler sent no markdown.
func (n *Normalizer) Page(p *crawl.Page) string {
	text := p.Markdown
	if strings.TrimSpace(text) == "" && p.HTML != "" {
		text = n.htmlToMarkdown(p.HTML, p.URL())
	}
	return n.Text(text)
}

// Text strips stray markup, collapses blank lines and caps the size.
func (n *Normalizer) Text(s string) string {
	s = html.UnescapeString(n.strict.Sanitize(s))
	s = collapseBlankLines(s)
	return truncate(s, n.limit)
}

// Plain strips all markup and returns a single-spaced string.
func (n *Normalizer) Plain(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(n.strict.Sanitize(s))), " ")
}

func (n *Normalizer) htmlToMarkdown(raw, sourceURL string) string {
	opts := []converter.ConvertOptionFunc{}
	if sourceURL != "" {
		opts = append(opts, converter.WithDomain(sourceURL))
	}
	out, err := n.md.ConvertString(raw, opts...)
	if err != nil || strings.TrimSpace(out) == "" {
		return n.Plain(raw)
	}
	return out
}

func collapseBlankLines(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, l := range lines {
		l = strings.TrimRight(l, " \t")
		if l == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// truncate cuts s to at most limit bytes on a rune boundary.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	s = s[:limit]
	for len(s) > 0 {
		r, size := utf8.DecodeLastRuneInString(s)
		if r != utf8.RuneError || size > 1 {
			break
		}
		s = s[:len(s)-1]
	}
	return s
}
