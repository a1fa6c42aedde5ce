package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecgraph/internal/config"
	logpkg "github.com/kailas-cloud/vecgraph/internal/logger"
	"github.com/kailas-cloud/vecgraph/internal/version"
)

// runtimeEnv is what Before prepares for every command.
type runtimeEnv struct {
	env    string
	cfg    config.Config
	logger *zap.Logger
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	rt := &runtimeEnv{}
	return &cli.App{
		Name:    "vecgraph",
		Usage:   "Hybrid vector and knowledge-graph retrieval over crawled pages",
		Version: fmt.Sprintf("%s (%s, %s)", version.Version, version.Commit, version.Date),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Aliases: []string{"e"},
				Usage:   "Environment name, selects config/{env}.yaml",
				Value:   "local",
				EnvVars: []string{"ENV"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Explicit config file path, overrides --env",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Override logging level (debug, info, warn, error)",
			},
		},
		Before: rt.setup,
		After:  rt.teardown,
		Action: rt.serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, webhook receiver and MCP endpoint",
				Action: rt.serve,
			},
			{
				Name:   "replay",
				Usage:  "Feed recorded crawl events through the ingestion pipeline",
				Action: rt.replay,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "JSONL file with one crawl event per line",
						Required: true,
					},
				},
			},
			{
				Name:   "query",
				Usage:  "Run one hybrid query and print the result as JSON",
				Action: rt.query,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "text",
						Aliases:  []string{"t"},
						Usage:    "Query text",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "vector-limit",
						Usage: "Vector hits to fetch",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "graph-depth",
						Usage: "Traversal depth",
						Value: 2,
					},
					&cli.BoolFlag{
						Name:  "rerank",
						Usage: "Rerank by query term overlap",
					},
				},
			},
		},
	}
}

// setup loads configuration and builds the logger.
func (rt *runtimeEnv) setup(c *cli.Context) error {
	rt.env = c.String("env")

	var err error
	if path := c.String("config"); path != "" {
		rt.cfg, err = config.LoadFile(path)
	} else {
		rt.cfg, err = config.Load(rt.env)
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := rt.cfg.Logging.Level
	if l := c.String("log-level"); l != "" {
		level = l
	}
	rt.logger, err = logpkg.NewLogger(rt.env, level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	return nil
}

func (rt *runtimeEnv) teardown(*cli.Context) error {
	if rt.logger != nil {
		_ = rt.logger.Sync()
	}
	return nil
}
