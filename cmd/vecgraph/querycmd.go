package main

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/kailas-cloud/vecgraph/internal/transport/api"
	"github.com/kailas-cloud/vecgraph/internal/usecase/query"
)

func (rt *runtimeEnv) query(c *cli.Context) error {
	a, err := buildApp(c.Context, rt.cfg, rt.logger)
	if err != nil {
		return err
	}
	defer a.close()

	resp, err := a.query.Search(c.Context, queryRequest(c))
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(api.SearchResponse{ //nolint:wrapcheck // terminal output
		Results:  api.SearchResults(resp.Results),
		Strategy: string(resp.Strategy),
		Entities: resp.Entities,
	})
}

// queryRequest maps command flags to a request. Rerank stays nil unless the flag was given.
func queryRequest(c *cli.Context) query.Request {
	req := query.Request{
		Query:       c.String("text"),
		VectorLimit: c.Int("vector-limit"),
		GraphDepth:  c.Int("graph-depth"),
	}
	if c.IsSet("rerank") {
		rerank := c.Bool("rerank")
		req.Rerank = &rerank
	}
	return req
}
