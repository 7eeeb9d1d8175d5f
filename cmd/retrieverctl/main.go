package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kailas-cloud/retriever/internal/app"
	"github.com/kailas-cloud/retriever/internal/config"
	logpkg "github.com/kailas-cloud/retriever/internal/logger"
	"github.com/kailas-cloud/retriever/internal/transport/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand(newRetriever).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newRetriever wires the full pipeline for env. Logs go to stderr at warn level
// unless the config asks for something else.
func newRetriever(ctx context.Context, env string) (cli.Retriever, func(), error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, nil, err
	}

	level := cfg.Logging.Level
	if level == "" {
		level = "warn"
	}
	logger, err := logpkg.NewLogger(env, level)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	a, err := app.Build(ctx, &cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return a.Retrieval, func() {
		a.Close()
		_ = logger.Sync()
	}, nil
}
