package db

import (
	"errors"
	"fmt"
	"strings"
)

// DistanceCosine is the only metric the document index uses. Search scores are
// derived from it (similarity = 1 - distance).
const DistanceCosine = "COSINE"

// IndexFieldType is the schema type of an indexed hash field.
type IndexFieldType int

// Supported field types.
const (
	IndexFieldNumeric IndexFieldType = iota
	IndexFieldTag
	IndexFieldVector
)

func (t IndexFieldType) String() string {
	switch t {
	case IndexFieldNumeric:
		return "NUMERIC"
	case IndexFieldTag:
		return "TAG"
	case IndexFieldVector:
		return "VECTOR"
	}
	return fmt.Sprintf("IndexFieldType(%d)", int(t))
}

// IndexField is one SCHEMA entry. Vector fields are always FLOAT32 HNSW; zero M or
// EFConstruct leaves the server default.
type IndexField struct {
	Name        string
	Type        IndexFieldType
	Dim         int
	M           int
	EFConstruct int
}

// IndexDefinition describes an FT index over hashes.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Fields   []IndexField
}

// Validate rejects definitions the server would refuse.
func (idx *IndexDefinition) Validate() error {
	if !IsValidIdentifier(idx.Name) {
		return fmt.Errorf("invalid index name %q", idx.Name)
	}
	if len(idx.Fields) == 0 {
		return errors.New("at least one field is required")
	}
	seen := make(map[string]struct{}, len(idx.Fields))
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("field %d: name is required", i)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Type == IndexFieldVector && f.Dim <= 0 {
			return fmt.Errorf("vector field %q: dim must be positive", f.Name)
		}
	}
	return nil
}

// String renders the definition roughly as FT.CREATE would read it.
func (idx *IndexDefinition) String() string {
	var b strings.Builder
	b.WriteString("FT.CREATE ")
	b.WriteString(idx.Name)
	b.WriteString(" ON HASH")
	if len(idx.Prefixes) > 0 {
		b.WriteString(" PREFIX ")
		b.WriteString(strings.Join(idx.Prefixes, " "))
	}
	b.WriteString(" SCHEMA")
	for i := range idx.Fields {
		fmt.Fprintf(&b, " %s %s", idx.Fields[i].Name, idx.Fields[i].Type)
	}
	return b.String()
}

// IsValidIdentifier reports whether s is non-empty and made of [a-zA-Z0-9_:-].
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == ':' || r == '-':
		default:
			return false
		}
	}
	return true
}

// IndexBuilder assembles an IndexDefinition field by field.
type IndexBuilder struct {
	def IndexDefinition
}

// NewIndex starts a definition named name.
func NewIndex(name string) *IndexBuilder {
	return &IndexBuilder{def: IndexDefinition{Name: name}}
}

// Prefix restricts the index to keys with the given prefixes.
func (b *IndexBuilder) Prefix(prefixes ...string) *IndexBuilder {
	b.def.Prefixes = append(b.def.Prefixes, prefixes...)
	return b
}

// Tag adds an exact-match field.
func (b *IndexBuilder) Tag(name string) *IndexBuilder {
	return b.field(IndexField{Name: name, Type: IndexFieldTag})
}

// Numeric adds a range-queryable field.
func (b *IndexBuilder) Numeric(name string) *IndexBuilder {
	return b.field(IndexField{Name: name, Type: IndexFieldNumeric})
}

// Vector adds an HNSW cosine vector field.
func (b *IndexBuilder) Vector(name string, dim, m, efConstruct int) *IndexBuilder {
	return b.field(IndexField{Name: name, Type: IndexFieldVector, Dim: dim, M: m, EFConstruct: efConstruct})
}

func (b *IndexBuilder) field(f IndexField) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, f)
	return b
}

// Build validates and returns the definition.
func (b *IndexBuilder) Build() (*IndexDefinition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	return &b.def, nil
}
