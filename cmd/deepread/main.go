// Deepread server: accepts video URLs and documents over HTTP, runs the
// staged interpretation pipeline on a bounded worker pool, and serves the
// finished Markdown reports.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"

	"github.com/deepread-ai/deepread/pkg/api"
	"github.com/deepread-ai/deepread/pkg/config"
	"github.com/deepread-ai/deepread/pkg/llm"
	"github.com/deepread-ai/deepread/pkg/observe"
	"github.com/deepread-ai/deepread/pkg/postproc"
	"github.com/deepread-ai/deepread/pkg/queue"
	"github.com/deepread-ai/deepread/pkg/service"
	"github.com/deepread-ai/deepread/pkg/source"
	"github.com/deepread-ai/deepread/pkg/store"
	"github.com/deepread-ai/deepread/pkg/task"
	"github.com/deepread-ai/deepread/pkg/version"
	"github.com/deepread-ai/deepread/pkg/workflow"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// Parse command-line flags
	configDir := flag.String("config-dir",
		getEnv("DEEPREAD_CONFIG_DIR", "./config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	slog.Info("Starting deepread",
		"version", version.GitCommit,
		"config_dir", *configDir)

	ctx := context.Background()
	log := slog.Default()

	// 1. Initialize configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize telemetry
	if cfg.Telemetry.Enabled {
		shutdownTelemetry, terr := observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: version.GitCommit,
		})
		if terr != nil {
			slog.Error("Failed to initialize telemetry", "error", terr)
			os.Exit(1)
		}
		defer func() {
			if err := shutdownTelemetry(context.Background()); err != nil {
				slog.Error("Error shutting down telemetry", "error", err)
			}
		}()
	}
	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("Failed to create metrics", "error", err)
		os.Exit(1)
	}

	// 3. Initialize document storage and hash registry
	docs, err := store.NewDocumentStore(cfg.Storage, log)
	if err != nil {
		slog.Error("Failed to initialize document storage", "error", err)
		os.Exit(1)
	}
	registry := store.NewHashRegistry(docs, log)
	if err := registry.Scan(); err != nil {
		slog.Error("Failed to scan document directory", "error", err)
		os.Exit(1)
	}
	slog.Info("Document registry loaded", "documents", registry.Len())

	if cfg.Storage.Watch {
		watcher, werr := store.NewRegistryWatcher(registry, cfg.Storage.DocumentsDir, log)
		if werr != nil {
			slog.Error("Failed to create registry watcher", "error", werr)
			os.Exit(1)
		}
		if err := watcher.Start(ctx); err != nil {
			slog.Error("Failed to start registry watcher", "error", err)
			os.Exit(1)
		}
		defer watcher.Stop()
	}

	// 4. Initialize task tracking
	manager := task.NewManager(cfg.Generation.LogHistory)
	janitor := task.NewJanitor(manager, cfg.Queue.TaskRetention, cfg.Queue.CleanupInterval)
	janitor.Start(ctx)
	defer janitor.Stop()

	// 5. Create the LLM client stack: rate limiter under the provider
	// client, retries on top so every retry re-enters the limiter.
	limiter := llm.NewRateLimiter(cfg.LLM.RateLimitInterval)
	gemini := llm.NewGeminiClient(cfg.LLM, limiter, metrics, log)
	client := llm.NewRetryingClient(gemini, cfg.LLM, metrics, log)
	slog.Info("LLM client initialized",
		"provider", cfg.LLM.Provider, "model", cfg.LLM.Model)

	// 6. Create the worker pool and the submission service
	pool := queue.NewWorkerPool(cfg.Queue, manager, metrics, log)
	svc := service.New(manager, pool, registry, docs, cfg.Limits, metrics, log)

	// 7. Assemble the post-processing pipeline. The visualization step
	// must precede the browser exports that render its output.
	renderer := postproc.NewRenderer(cfg.Postproc.BrowserBin, log)
	pipeline := postproc.NewPipeline(cfg.Postproc.StopOnError, log)
	pipeline.Register(postproc.NewVisualizationProcessor(docs, cfg.Postproc.Visualization, log))
	pipeline.Register(postproc.NewPDFExportProcessor(docs, renderer, cfg.Postproc.PDFExport, log))
	pipeline.Register(postproc.NewScreenshotProcessor(docs, renderer, cfg.Postproc.Screenshot, log))
	pipeline.Register(postproc.NewTTSProcessor(docs, cfg.Postproc, log))
	pipeline.Register(postproc.NewVisualTaskProcessor(svc, cfg.Postproc.VisualFollowUp, log))

	// 8. Wire the interpretation workflows to their task kinds
	engine := workflow.NewEngine(client, docs, registry, manager, pipeline, cfg.Generation, metrics, log)
	fetcher := source.NewYtDlpFetcher(cfg.Source, log)
	extractor := source.NewDocumentExtractor(cfg.Source, log)
	pool.RegisterRunner(task.KindVideo, workflow.NewVideoWorkflow(engine, fetcher, log))
	pool.RegisterRunner(task.KindDocument, workflow.NewDocumentWorkflow(engine, extractor, log))
	pool.RegisterRunner(task.KindUltraReprocess, workflow.NewUltraReprocessWorkflow(engine, log))
	pool.RegisterRunner(task.KindVisual, workflow.NewVisualWorkflow(engine, renderer, log))

	// 9. Start worker pool (before HTTP server)
	if err := pool.Start(ctx); err != nil {
		slog.Error("Failed to start worker pool", "error", err)
		os.Exit(1)
	}

	// 10. Start HTTP server (non-blocking)
	httpServer := api.NewServer(cfg.Server, cfg.Limits, svc,
		manager, pool, registry, docs, metrics, log)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.Server.Addr)
		if err := httpServer.Start(cfg.Server.Addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Deepread started successfully",
		"workers", cfg.Queue.Workers,
		"queue_capacity", cfg.Queue.Capacity)

	// 11. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 12. Graceful shutdown: let active interpretations finish
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Queue.GracefulShutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Worker pool stopped gracefully")
	case <-shutdownCtx.Done():
		slog.Warn("Shutdown timeout exceeded, abandoning active tasks")
	}

	// Stop HTTP server with its own timeout budget
	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
