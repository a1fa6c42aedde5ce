package extraction

import (
	"context"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kailas-cloud/vecgraph/internal/domain/graph"
)

// Limits keep extraction linear on very long pages.
const (
	maxEntities          = 100
	maxMentionsPerClause = 8
)

var (
	linkRe  = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
	urlRe   = regexp.MustCompile(`https?://\S+`)
	tokenRe = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}&'’.\-]*|&`)
	breakRe = regexp.MustCompile(`[.!?]+["')\]]*\s+|\n+`)
)

type relPattern struct {
	re      *regexp.Regexp
	rel     string
	reverse bool
	allow   func(src, tgt graph.EntityType) bool
}

func any2(_, _ graph.EntityType) bool { return true }

// Patterns are tried in order on the text between two adjacent mentions.
var relPatterns = []relPattern{
	{regexp.MustCompile(`\b(?:was|were|is|has been|had been)\s+acquired\s+by\b`), graph.RelAcquired, true, nonPersons},
	{regexp.MustCompile(`\b(?:acquired|acquires|bought|buys|purchased|took over|takes over)\b`), graph.RelAcquired, false, nonPersons},
	{regexp.MustCompile(`\b(?:was|were|is)\s+(?:co-)?founded\s+by\b`), graph.RelFounded, true, founderPair},
	{regexp.MustCompile(`\b(?:co-)?(?:founded|founds|established|establishes)\b`), graph.RelFounded, false, founderPair},
	{regexp.MustCompile(`\b(?:works?|working|worked|employed|joined|joins|hired)\b|\b(?:ceo|cto|cfo|president|director|engineer|researcher|employee|head)\s+(?:of|at)\b`), graph.RelWorksAt, false, workPair},
	{regexp.MustCompile(`\b(?:part|division|subsidiary|unit|member|branch|department)\s+of\b|\bbelongs?\s+to\b`), graph.RelPartOf, false, any2},
	{regexp.MustCompile(`\b(?:located|based|headquartered|situated|lives|living|resides)\s+in\b|^\s*(?:,|in|,\s*in)\s*$`), graph.RelLocatedIn, false, toLocation},
}

func nonPersons(src, tgt graph.EntityType) bool {
	return src != graph.TypePerson && tgt != graph.TypePerson
}

func founderPair(_, tgt graph.EntityType) bool {
	return tgt != graph.TypePerson && tgt != graph.TypeLocation
}

func workPair(src, tgt graph.EntityType) bool {
	return src == graph.TypePerson && tgt != graph.TypePerson && tgt != graph.TypeLocation
}

func toLocation(_, tgt graph.EntityType) bool { return tgt == graph.TypeLocation }

// Rules is a deterministic lexicon and pattern based extractor. It is pure
// and safe for concurrent use.
type Rules struct{}

// NewRules creates the rule-based extractor.
func NewRules() *Rules { return &Rules{} }

type token struct {
	text  string
	start int
	end   int
}

type candidate struct {
	entity graph.Entity
	order  int
}

// ExtractEntities finds capitalized phrases and classifies them. One text maps
// to one type per call; the most confident classification wins.
func (r *Rules) ExtractEntities(_ context.Context, text string) ([]graph.Entity, error) {
	byText := make(map[string]*candidate)
	order := 0

	for _, sentence := range sentences(clean(text)) {
		toks := tokenize(sentence)
		for _, c := range chunks(toks) {
			e, ok := classify(c, toks)
			if !ok || !e.Valid() {
				continue
			}
			if cur, seen := byText[e.Text]; seen {
				if e.Confidence > cur.entity.Confidence {
					cur.entity = e
				}
				continue
			}
			byText[e.Text] = &candidate{entity: e, order: order}
			order++
		}
	}

	out := make([]candidate, 0, len(byText))
	for _, c := range byText {
		out = append(out, *c)
	}
	slices.SortFunc(out, func(a, b candidate) int { return a.order - b.order })
	if len(out) > maxEntities {
		out = out[:maxEntities]
	}

	entities := make([]graph.Entity, len(out))
	for i := range out {
		entities[i] = out[i].entity
	}
	return entities, nil
}

// ExtractRelationships links entities mentioned in the same sentence. Verb
// patterns between adjacent mentions give typed edges; remaining co-mentions
// get RELATED_TO.
func (r *Rules) ExtractRelationships(
	_ context.Context, text string, entities []graph.Entity,
) ([]graph.Relationship, error) {
	if len(entities) < 2 {
		return nil, nil
	}

	seen := make(map[string]struct{})
	var rels []graph.Relationship
	add := func(rel graph.Relationship) {
		if rel.SourceID == rel.TargetID {
			return
		}
		if _, dup := seen[rel.Key()]; dup {
			return
		}
		seen[rel.Key()] = struct{}{}
		rels = append(rels, rel)
	}

	for _, sentence := range sentences(clean(text)) {
		ms := mentions(sentence, entities)
		if len(ms) < 2 {
			continue
		}
		typed := make(map[[2]int]bool)

		for i := 0; i+1 < len(ms); i++ {
			a, b := ms[i], ms[i+1]
			between := strings.ToLower(sentence[a.end:b.start])
			for _, p := range relPatterns {
				src, tgt := entities[a.entity], entities[b.entity]
				if p.reverse {
					src, tgt = tgt, src
				}
				if !p.re.MatchString(between) || !p.allow(src.Type, tgt.Type) {
					continue
				}
				add(graph.Relationship{
					SourceID: src.ID(),
					TargetID: tgt.ID(),
					Type:     p.rel,
					Metadata: map[string]string{
						"extractor": "rules",
						"evidence":  strings.TrimSpace(p.re.FindString(between)),
					},
				})
				typed[[2]int{a.entity, b.entity}] = true
				typed[[2]int{b.entity, a.entity}] = true
				break
			}
		}

		for i := range ms {
			for j := i + 1; j < len(ms); j++ {
				a, b := ms[i].entity, ms[j].entity
				if a == b || typed[[2]int{a, b}] {
					continue
				}
				add(graph.Relationship{
					SourceID: entities[a].ID(),
					TargetID: entities[b].ID(),
					Type:     graph.RelRelatedTo,
					Metadata: map[string]string{"extractor": "rules"},
				})
			}
		}
	}
	return rels, nil
}

// clean drops link targets and bare URLs so they do not read as words.
func clean(text string) string {
	text = linkRe.ReplaceAllString(text, "$1")
	return urlRe.ReplaceAllString(text, " ")
}

// sentences splits on terminal punctuation and newlines, but not after an
// honorific, a company abbreviation or a single-letter initial.
func sentences(text string) []string {
	var out []string
	start := 0
	for _, loc := range breakRe.FindAllStringIndex(text, -1) {
		if text[loc[0]] == '.' && abbreviationBefore(text[start:loc[0]]) {
			continue
		}
		if s := strings.TrimSpace(text[start:loc[0]]); s != "" {
			out = append(out, s)
		}
		start = loc[1]
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func abbreviationBefore(s string) bool {
	i := strings.LastIndexFunc(s, unicode.IsSpace)
	word := s[i+1:]
	if _, ok := titles[word+"."]; ok {
		return true
	}
	if _, ok := orgSuffixes[word+"."]; ok {
		return true
	}
	r, size := utf8.DecodeRuneInString(word)
	return size == len(word) && unicode.IsUpper(r)
}

func tokenize(sentence string) []token {
	idx := tokenRe.FindAllStringIndex(sentence, -1)
	toks := make([]token, 0, len(idx))
	for _, loc := range idx {
		t := sentence[loc[0]:loc[1]]
		for _, suffix := range []string{"'s", "’s"} {
			t = strings.TrimSuffix(t, suffix)
		}
		t = strings.TrimRight(t, ".-'’")
		if t == "" {
			continue
		}
		toks = append(toks, token{text: t, start: loc[0], end: loc[0] + len(t)})
	}
	return toks
}

// chunk is a run of capitalized tokens [from, to) within a sentence.
type chunk struct {
	from, to int
	titled   bool
}

func chunks(toks []token) []chunk {
	var out []chunk
	for i := 0; i < len(toks); {
		if !startsUpper(toks[i].text) {
			i++
			continue
		}
		j := i + 1
		for j < len(toks) {
			if continues(toks[j].text) {
				j++
				continue
			}
			if _, ok := connectors[toks[j].text]; ok && j+1 < len(toks) && startsUpper(toks[j+1].text) {
				j += 2
				continue
			}
			break
		}

		c := chunk{from: i, to: j}
		for c.from < c.to {
			w := toks[c.from].text
			if _, ok := titles[w]; ok {
				c.titled = true
				c.from++
				continue
			}
			if _, ok := stopwords[w]; ok {
				c.from++
				continue
			}
			break
		}
		for c.to > c.from {
			if _, ok := stopwords[toks[c.to-1].text]; !ok {
				break
			}
			c.to--
		}
		if c.from < c.to {
			out = append(out, c)
		}
		i = j
	}
	return out
}

func classify(c chunk, toks []token) (graph.Entity, bool) {
	words := make([]string, 0, c.to-c.from)
	for _, t := range toks[c.from:c.to] {
		words = append(words, t.text)
	}
	text := strings.Join(words, " ")
	last := words[len(words)-1]
	entity := func(t graph.EntityType, conf float64) (graph.Entity, bool) {
		return graph.Entity{Type: t, Text: text, Confidence: conf}, true
	}

	if c.titled && allNameWords(words) {
		return entity(graph.TypePerson, 0.9)
	}
	if len(words) > 1 && slices.ContainsFunc(words, isOrgWord) {
		return entity(graph.TypeOrg, 0.9)
	}
	if _, ok := gazetteer[text]; ok {
		return entity(graph.TypeLocation, 0.9)
	}
	if _, ok := eventSuffixes[last]; ok && len(words) > 1 {
		return entity(graph.TypeEvent, 0.8)
	}
	if c.from > 0 {
		if t, ok := cues[strings.ToLower(toks[c.from-1].text)]; ok {
			if t != graph.TypeLocation || len(words) <= 3 {
				return entity(t, 0.6)
			}
		}
	}
	if slices.ContainsFunc(words, hasDigit) {
		return entity(graph.TypeProduct, 0.6)
	}
	if len(words) >= 2 && len(words) <= 3 && allNameWords(words) {
		return entity(graph.TypePerson, 0.7)
	}
	if len(words) == 1 && c.from == 0 {
		// a lone capital at sentence start is usually just grammar
		return graph.Entity{}, false
	}
	return entity(graph.TypeConcept, 0.5)
}

type mention struct {
	start, end int
	entity     int
}

// mentions locates entity texts in the sentence on word boundaries. Overlaps
// resolve to the longer, earlier mention.
func mentions(sentence string, entities []graph.Entity) []mention {
	var all []mention
	for i, e := range entities {
		if e.Text == "" {
			continue
		}
		for off := 0; off < len(sentence); {
			k := strings.Index(sentence[off:], e.Text)
			if k < 0 {
				break
			}
			s, end := off+k, off+k+len(e.Text)
			if boundary(sentence, s, end) {
				all = append(all, mention{start: s, end: end, entity: i})
			}
			off = end
		}
	}
	slices.SortFunc(all, func(a, b mention) int {
		if a.start != b.start {
			return a.start - b.start
		}
		return (b.end - b.start) - (a.end - a.start)
	})

	out := make([]mention, 0, len(all))
	for _, m := range all {
		if len(out) > 0 && m.start < out[len(out)-1].end {
			continue
		}
		out = append(out, m)
		if len(out) == maxMentionsPerClause {
			break
		}
	}
	return out
}

func boundary(s string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:start])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	if end < len(s) {
		r, _ := utf8.DecodeRuneInString(s[end:])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func startsUpper(w string) bool {
	r, _ := utf8.DecodeRuneInString(w)
	return unicode.IsUpper(r)
}

func continues(w string) bool {
	r, _ := utf8.DecodeRuneInString(w)
	return unicode.IsUpper(r) || unicode.IsDigit(r)
}

func isOrgWord(w string) bool {
	_, ok := orgSuffixes[w]
	return ok
}

func hasDigit(w string) bool { return strings.IndexFunc(w, unicode.IsDigit) >= 0 }

// allNameWords reports whether every word looks like a personal name part.
func allNameWords(words []string) bool {
	for _, w := range words {
		if !startsUpper(w) || strings.IndexFunc(w, func(r rune) bool { return !unicode.IsLetter(r) && r != '-' && r != '\'' }) >= 0 {
			return false
		}
		if _, ok := orgSuffixes[w]; ok {
			return false
		}
	}
	return true
}
