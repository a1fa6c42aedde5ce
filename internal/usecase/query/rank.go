package query

import (
	"cmp"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/kailas-cloud/vecgraph/internal/domain/search/result"
)

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// merge de-duplicates hits by identity. An item found by both paths keeps its
// vector score and becomes hybrid.
func merge(vectorHits, graphHits []result.Hit) []result.Hit {
	index := make(map[string]int, len(vectorHits)+len(graphHits))
	out := make([]result.Hit, 0, len(vectorHits)+len(graphHits))
	for _, list := range [][]result.Hit{vectorHits, graphHits} {
		for _, h := range list {
			if i, ok := index[h.Key()]; ok {
				out[i].Merge(h)
				continue
			}
			index[h.Key()] = len(out)
			out = append(out, h)
		}
	}
	return out
}

// sortHits orders vector-scored hits by score, then graph-only hits by depth.
// Ties go to the newer timestamp, then the id.
func sortHits(hits []result.Hit) {
	slices.SortStableFunc(hits, func(a, b result.Hit) int {
		av, bv := a.HasVectorScore(), b.HasVectorScore()
		switch {
		case av && !bv:
			return -1
		case !av && bv:
			return 1
		case av && bv:
			if c := cmp.Compare(*b.VectorScore, *a.VectorScore); c != 0 {
				return c
			}
		default:
			if c := cmp.Compare(depthOf(a), depthOf(b)); c != 0 {
				return c
			}
		}
		return tieBreak(a, b)
	})
}

// rerankLexical fuses the base ordering with a query-term overlap ordering via
// Reciprocal Rank Fusion. score(h) = 1/(k + base rank) + 1/(k + overlap rank).
func rerankLexical(query string, hits []result.Hit) []result.Hit {
	sortHits(hits)
	terms := tokenSet(query)

	overlap := make([]float64, len(hits))
	lexical := make([]int, len(hits))
	for i := range hits {
		overlap[i] = overlapRatio(terms, hits[i].Title+" "+hits[i].Text)
		lexical[i] = i
	}
	slices.SortStableFunc(lexical, func(a, b int) int {
		return cmp.Compare(overlap[b], overlap[a])
	})

	scores := make([]float64, len(hits))
	for rank, i := range lexical {
		scores[i] += 1.0 / float64(rrfK+rank+1)
	}
	for rank := range hits {
		scores[rank] += 1.0 / float64(rrfK+rank+1)
	}

	out := make([]result.Hit, len(hits))
	order := make([]int, len(hits))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		if c := cmp.Compare(scores[b], scores[a]); c != 0 {
			return c
		}
		return tieBreak(hits[a], hits[b])
	})
	for pos, i := range order {
		h := hits[i]
		h.Score = scores[i]
		out[pos] = h
	}
	return out
}

func tieBreak(a, b result.Hit) int {
	if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

func depthOf(h result.Hit) int {
	if h.GraphDepth == nil {
		return 1 << 30
	}
	return *h.GraphDepth
}

func overlapRatio(terms map[string]struct{}, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	var n int
	for t := range tokenSet(text) {
		if _, ok := terms[t]; ok {
			n++
		}
	}
	return float64(n) / float64(len(terms))
}

func tokenSet(s string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len(w) > 1 {
			set[w] = struct{}{}
		}
	}
	return set
}

func timeFromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
