package textprep

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kailas-cloud/vecgraph/internal/domain/crawl"
)

func TestPage_PrefersMarkdown(t *testing.T) {
	n := NewNormalizer()
	p := &crawl.Page{Markdown: "# Title\n\n\n\nBody & more", HTML: "<p>ignored</p>"}

	got := n.Page(p)
	if got != "# Title\n\nBody & more" {
		t.Errorf("unexpected text: %q", got)
	}
}

func TestPage_ConvertsHTML(t *testing.T) {
	n := NewNormalizer()
	p := &crawl.Page{
		HTML:     `<h1>Hi</h1><p>Body <b>bold</b> <a href="/x">link</a></p><script>alert(1)</script>`,
		Metadata: crawl.PageMetadata{SourceURL: "https://a.test/page"},
	}

	got := n.Page(p)
	for _, want := range []string{"# Hi", "Body", "link"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in %q", want, got)
		}
	}
	if strings.Contains(got, "<") || strings.Contains(got, "alert") {
		t.Errorf("markup leaked: %q", got)
	}
}

func TestText_StripsTags(t *testing.T) {
	got := NewNormalizer().Text("a <span>b</span>\n<div>c</div>")
	if got != "a b\nc" {
		t.Errorf("unexpected text: %q", got)
	}
}

func TestPlain(t *testing.T) {
	got := NewNormalizer().Plain("<p>Jane   Doe</p>\n\n<p>works</p>")
	if got != "Jane Doe works" {
		t.Errorf("unexpected text: %q", got)
	}
}

func TestTruncate_RuneBoundary(t *testing.T) {
	s := strings.Repeat("é", 10) // 2 bytes each
	got := truncate(s, 5)
	if len(got) != 4 || !utf8.ValidString(got) {
		t.Errorf("expected 4 valid bytes, got %d %q", len(got), got)
	}
	if truncate("abc", 10) != "abc" {
		t.Error("short input must pass through")
	}
}
