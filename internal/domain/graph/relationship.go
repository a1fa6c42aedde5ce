package graph

import "strings"

// Relationship types produced by the extractors.
const (
	RelWorksAt     = "WORKS_AT"
	RelLocatedIn   = "LOCATED_IN"
	RelFounded     = "FOUNDED"
	RelAcquired    = "ACQUIRED"
	RelPartOf      = "PART_OF"
	RelRelatedTo   = "RELATED_TO"
	RelMentionedIn = "MENTIONED_IN"
)

// Relationship is a typed directed edge between two entity identifiers.
type Relationship struct {
	SourceID   string
	TargetID   string
	Type       string
	DocumentID string
	Metadata   map[string]string
}

// Key returns the merge key of the relationship.
func (r Relationship) Key() string {
	return r.SourceID + "|" + NormalizeRelType(r.Type) + "|" + r.TargetID
}

// NormalizeRelType upper-cases a relationship type and joins words with underscores.
func NormalizeRelType(t string) string {
	return string(NormalizeType(EntityType(strings.ReplaceAll(t, ".", "_"))))
}

// Edge is a stored relationship record.
type Edge struct {
	From    string            `json:"from"`
	Type    string            `json:"type"`
	To      string            `json:"to"`
	Attrs   map[string]string `json:"attrs,omitempty"`
	Weight  int               `json:"weight"`
	Sources []string          `json:"sources,omitempty"`
	Updated int64             `json:"updated"`
}
