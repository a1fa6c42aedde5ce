package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/kailas-cloud/vecgraph/internal/usecase/query"
)

// runCommand parses args through the real app and hands the resulting context
// of the named command to fn. Before and After are dropped so no config is loaded.
func runCommand(t *testing.T, name string, fn func(c *cli.Context), args ...string) {
	t.Helper()
	app := newApp()
	app.Before = nil
	app.After = nil
	cmd := app.Command(name)
	require.NotNil(t, cmd, "command %q", name)

	called := false
	cmd.Action = func(c *cli.Context) error {
		called = true
		fn(c)
		return nil
	}
	require.NoError(t, app.Run(append([]string{"vecgraph", name}, args...)))
	require.True(t, called, "command %q did not run", name)
}

func TestNewApp_Commands(t *testing.T) {
	app := newApp()
	for _, name := range []string{"serve", "replay", "query"} {
		assert.NotNil(t, app.Command(name), name)
	}
	assert.NotNil(t, app.Before)
	assert.NotNil(t, app.Action)
}

func TestQueryRequest(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantLimit  int
		wantDepth  int
		wantRerank *bool
	}{
		{
			name:      "defaults",
			args:      []string{"--text", "who founded acme"},
			wantLimit: 10,
			wantDepth: 2,
		},
		{
			name:       "explicit",
			args:       []string{"-t", "who founded acme", "--vector-limit", "5", "--graph-depth", "3", "--rerank"},
			wantLimit:  5,
			wantDepth:  3,
			wantRerank: boolPtr(true),
		},
		{
			name:      "long text flag",
			args:      []string{"--text", "who founded acme", "--vector-limit", "7"},
			wantLimit: 7,
			wantDepth: 2,
		},
		{
			name:       "rerank disabled",
			args:       []string{"-t", "who founded acme", "--rerank=false"},
			wantLimit:  10,
			wantDepth:  2,
			wantRerank: boolPtr(false),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req query.Request
			runCommand(t, "query", func(c *cli.Context) { req = queryRequest(c) }, tt.args...)

			assert.Equal(t, "who founded acme", req.Query)
			assert.Equal(t, tt.wantLimit, req.VectorLimit)
			assert.Equal(t, tt.wantDepth, req.GraphDepth)
			assert.Equal(t, tt.wantRerank, req.Rerank)
		})
	}
}

func boolPtr(b bool) *bool { return &b }
