package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/vecgraph/internal/db"
)

// CreateIndex creates an FT index from the given definition.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := buildCreateArgs(def)
	if err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

// IndexExists probes index existence via FT.INFO; "unknown index name" means absent.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") {
			return false, nil
		}
		return false, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
	return true, nil
}

// buildCreateArgs renders def as FT.CREATE arguments (without the command name).
func buildCreateArgs(def *db.IndexDefinition) ([]string, error) {
	if err := def.Validate(); err != nil {
		return nil, err //nolint:wrapcheck // validation message is self-describing
	}

	args := []string{def.Name, "ON", "HASH"}
	if len(def.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(def.Prefixes)))
		args = append(args, def.Prefixes...)
	}
	args = append(args, "SCHEMA")
	for i := range def.Fields {
		fa, err := buildFieldArgs(&def.Fields[i])
		if err != nil {
			return nil, err
		}
		args = append(args, fa...)
	}
	return args, nil
}

func buildFieldArgs(f *db.IndexField) ([]string, error) {
	if f.Name == "" {
		return nil, errors.New("field name is required")
	}
	switch f.Type {
	case db.IndexFieldNumeric, db.IndexFieldTag:
		return []string{f.Name, f.Type.String()}, nil
	case db.IndexFieldVector:
		if f.Dim <= 0 {
			return nil, fmt.Errorf("vector field %q: dim must be positive", f.Name)
		}
		attrs := []string{
			"TYPE", "FLOAT32",
			"DIM", strconv.Itoa(f.Dim),
			"DISTANCE_METRIC", db.DistanceCosine,
		}
		if f.M > 0 {
			attrs = append(attrs, "M", strconv.Itoa(f.M))
		}
		if f.EFConstruct > 0 {
			attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(f.EFConstruct))
		}
		out := make([]string, 0, 4+len(attrs))
		out = append(out, f.Name, "VECTOR", "HNSW", strconv.Itoa(len(attrs)))
		return append(out, attrs...), nil
	default:
		return nil, fmt.Errorf("field %q: unknown type %s", f.Name, f.Type)
	}
}
