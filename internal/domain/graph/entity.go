// Package graph holds the value records of the knowledge graph. Entities and
// relationships reference each other by derived string identifiers only.
package graph

import (
	"strings"
	"unicode"
)

// EntityType classifies an extracted entity.
type EntityType string

// Known entity types. Extractors may emit others; they are upper-cased on derivation.
const (
	TypePerson   EntityType = "PERSON"
	TypeOrg      EntityType = "ORG"
	TypeLocation EntityType = "LOCATION"
	TypeProduct  EntityType = "PRODUCT"
	TypeEvent    EntityType = "EVENT"
	TypeConcept  EntityType = "CONCEPT"

	// TypeDocument marks document nodes linked via MENTIONED_IN edges.
	TypeDocument EntityType = "DOCUMENT"
)

// Entity is a typed named thing found in text.
type Entity struct {
	Type       EntityType
	Text       string
	Confidence float64
}

// ID returns the derived identifier {TYPE}_{normalized text}.
func (e Entity) ID() string { return DeriveID(e.Type, e.Text) }

// Valid reports whether the entity normalizes to a usable identifier.
func (e Entity) Valid() bool {
	return NormalizeType(e.Type) != "" && NormalizeText(e.Text) != ""
}

// DeriveID builds the entity identifier. Two extractions of the same canonical
// text and type always yield the same identifier.
func DeriveID(t EntityType, text string) string {
	return string(NormalizeType(t)) + "_" + NormalizeText(text)
}

// NormalizeType upper-cases the type and maps separators to underscores.
func NormalizeType(t EntityType) EntityType {
	s := strings.ToUpper(strings.TrimSpace(string(t)))
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		case r == ' ' || r == '-':
			return '_'
		}
		return -1
	}, s)
	return EntityType(s)
}

// NormalizeText trims, strips punctuation, collapses whitespace and joins words
// with underscores. Case is preserved.
func NormalizeText(text string) string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == '_'
	})
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '&' || r == '.' || r == '\'' {
				return r
			}
			return -1
		}, w)
		w = strings.Trim(w, ".-'")
		if w != "" {
			out = append(out, w)
		}
	}
	return strings.Join(out, "_")
}

// Node is a stored graph vertex.
type Node struct {
	ID       string            `json:"id"`
	Type     EntityType        `json:"type"`
	Name     string            `json:"name"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Mentions int               `json:"mentions"`
	Created  int64             `json:"created"`
	Updated  int64             `json:"updated"`
}

// Connection is a node reached by traversal together with its hop distance.
type Connection struct {
	Node  Node
	Depth int
}
