package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/kailas-cloud/pdfrag/internal/app"
	"github.com/kailas-cloud/pdfrag/internal/config"
	logpkg "github.com/kailas-cloud/pdfrag/internal/logger"
	"github.com/kailas-cloud/pdfrag/internal/metrics"
	"github.com/kailas-cloud/pdfrag/internal/tui"
)

func main() {
	var k int
	flag.IntVar(&k, "k", 0, "chunks per question (0 = retrieval.default_k)")
	flag.Parse()
	paths := flag.Args()

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	// The UI owns the terminal, so only errors are logged.
	logger, err := logpkg.NewLogger(env, "error")
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	metrics.Register()
	ctx := logpkg.ContextWithLogger(context.Background(), logger)

	pipelines, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build pipelines", zap.Error(err))
	}
	defer pipelines.Close()

	if err := pipelines.Initialize(ctx); err != nil {
		logger.Fatal("Failed to initialize vector store", zap.Error(err))
	}

	chunks := 0
	for _, path := range paths {
		res, err := pipelines.Ingest.IngestFile(ctx, path, filepath.Base(path))
		if err != nil {
			logger.Fatal("Ingest failed", zap.String("path", path), zap.Error(err))
		}
		fmt.Printf("Ingested %s: %d chunks (document %s)\n", path, res.ChunksUploaded, res.DocumentID)
		chunks += res.ChunksUploaded
	}

	summary := fmt.Sprintf("%d document(s), %d chunks ingested into %q via %s",
		len(paths), chunks, cfg.VectorStore.Collection, pipelines.Store.Backend())
	if len(paths) == 0 {
		summary = fmt.Sprintf("Querying existing collection %q via %s",
			cfg.VectorStore.Collection, pipelines.Store.Backend())
	}

	m := tui.New(pipelines.Retrieval, summary, k)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		logger.Fatal("UI error", zap.Error(err))
	}
}
