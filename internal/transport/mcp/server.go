// Package mcp exposes hybrid search and entity lookups as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecgraph/internal/transport/api"
	"github.com/kailas-cloud/vecgraph/internal/usecase/query"
)

// Tool names.
const (
	ToolHybridSearch      = "hybrid_search"
	ToolEntityConnections = "entity_connections"
	ToolEntitySearch      = "entity_search"
)

// Server wraps an MCP server with the vecgraph tools registered.
type Server struct {
	srv      *sdk.Server
	searcher Searcher
	logger   *zap.Logger
}

type hybridSearchArgs struct {
	Query       string `json:"query"`
	VectorLimit int    `json:"vector_limit,omitempty"`
	GraphDepth  int    `json:"graph_depth,omitempty"`
	Rerank      *bool  `json:"rerank,omitempty"`
}

type entityConnectionsArgs struct {
	ID    string   `json:"id"`
	Depth int      `json:"depth,omitempty"`
	Types []string `json:"types,omitempty"`
}

type entitySearchArgs struct {
	Query string   `json:"query"`
	Types []string `json:"types,omitempty"`
	Limit int      `json:"limit,omitempty"`
}

// NewServer creates the MCP server and registers all tools.
func NewServer(searcher Searcher, version string, logger *zap.Logger) *Server {
	s := &Server{
		srv:      sdk.NewServer(&sdk.Implementation{Name: "vecgraph", Version: version}, nil),
		searcher: searcher,
		logger:   logger,
	}
	s.registerHybridSearch()
	s.registerEntityConnections()
	s.registerEntitySearch()
	return s
}

// MCP returns the underlying server, e.g. for in-memory transports.
func (s *Server) MCP() *sdk.Server { return s.srv }

// Handler serves the tools over the streamable HTTP transport.
func (s *Server) Handler() http.Handler {
	return sdk.NewStreamableHTTPHandler(func(*http.Request) *sdk.Server { return s.srv }, nil)
}

func inputSchema(properties map[string]any, required ...string) map[string]any {
	sc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sc["required"] = required
	}
	return sc
}

var typesSchema = map[string]any{
	"type":        "array",
	"items":       map[string]any{"type": "string"},
	"description": "Entity types to keep, e.g. PERSON, ORG, LOCATION",
}

func (s *Server) registerHybridSearch() {
	tool := &sdk.Tool{
		Name:        ToolHybridSearch,
		Description: "Search crawled pages by meaning and by the entities named in the query.",
		InputSchema: inputSchema(map[string]any{
			"query":        map[string]any{"type": "string", "description": "Natural-language query"},
			"vector_limit": map[string]any{"type": "integer", "description": "Vector hits to fetch (default 10, max 100)"},
			"graph_depth":  map[string]any{"type": "integer", "description": "Traversal depth (default 2, max 4)"},
			"rerank":       map[string]any{"type": "boolean", "description": "Rerank by query term overlap"},
		}, "query"),
	}
	s.register(tool, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var a hybridSearchArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		resp, err := s.searcher.Search(ctx, query.Request{
			Query:       a.Query,
			VectorLimit: a.VectorLimit,
			GraphDepth:  a.GraphDepth,
			Rerank:      a.Rerank,
		})
		if err != nil {
			return nil, err
		}
		return api.SearchResponse{
			Results:  api.SearchResults(resp.Results),
			Strategy: string(resp.Strategy),
			Entities: resp.Entities,
		}, nil
	})
}

func (s *Server) registerEntityConnections() {
	tool := &sdk.Tool{
		Name:        ToolEntityConnections,
		Description: "List entities connected to an entity id within a hop distance.",
		InputSchema: inputSchema(map[string]any{
			"id":    map[string]any{"type": "string", "description": "Entity id, e.g. PERSON_Jane_Doe"},
			"depth": map[string]any{"type": "integer", "description": "Traversal depth (default 2, max 4)"},
			"types": typesSchema,
		}, "id"),
	}
	s.register(tool, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var a entityConnectionsArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		conns, err := s.searcher.EntityConnections(ctx, a.ID, a.Depth, a.Types)
		if err != nil {
			return nil, err
		}
		return api.ConnectionsResponse{Connections: api.Connections(conns)}, nil
	})
}

func (s *Server) registerEntitySearch() {
	tool := &sdk.Tool{
		Name:        ToolEntitySearch,
		Description: "Find entities by name, most mentioned first.",
		InputSchema: inputSchema(map[string]any{
			"query": map[string]any{"type": "string", "description": "Name or name fragment"},
			"types": typesSchema,
			"limit": map[string]any{"type": "integer", "description": "Maximum entities (default 20, max 100)"},
		}, "query"),
	}
	s.register(tool, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var a entitySearchArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		nodes, err := s.searcher.SearchEntities(ctx, a.Query, a.Types, a.Limit)
		if err != nil {
			return nil, err
		}
		return api.EntitiesResponse{Entities: api.Entities(nodes)}, nil
	})
}

// register adds a tool whose endpoint result is returned as JSON text.
// Endpoint errors become tool errors, not protocol errors.
func (s *Server) register(tool *sdk.Tool, endpoint func(context.Context, json.RawMessage) (any, error)) {
	s.srv.AddTool(tool, func(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
		resp, err := endpoint(ctx, req.Params.Arguments)
		if err != nil {
			s.logger.Warn("MCP tool failed", zap.String("tool", tool.Name), zap.Error(err))
			var res sdk.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			var res sdk.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &sdk.CallToolResult{
			Content: []sdk.Content{&sdk.TextContent{Text: string(data)}},
		}, nil
	})
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
