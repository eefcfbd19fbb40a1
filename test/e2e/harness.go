// Package e2e boots complete deepread instances against scripted LLM
// responses and exercises them over real HTTP and WebSocket connections.
package e2e

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

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
	"github.com/deepread-ai/deepread/pkg/workflow"
)

// TestApp boots a complete deepread instance for e2e testing. Storage
// lives in a per-test temp directory; the LLM is scripted; everything
// else is the real wiring from cmd/deepread.
type TestApp struct {
	Config   *config.Config
	Store    *store.DocumentStore
	Registry *store.HashRegistry
	Manager  *task.Manager
	Pool     *queue.WorkerPool
	Service  *service.Service
	Server   *api.Server

	// Test wiring
	LLM     *ScriptedClient
	Fetcher *StubFetcher
	Reader  *sdkmetric.ManualReader

	BaseURL string // e.g. "http://127.0.0.1:54321"

	t *testing.T
}

// testAppConfig holds options accumulated before creating the TestApp.
type testAppConfig struct {
	llm            *ScriptedClient
	workers        int
	capacity       int
	maxRetries     int
	confirmation   bool
	visualFollowUp bool
	transcript     string
}

// TestAppOption configures the test app.
type TestAppOption func(*testAppConfig)

// WithLLM sets a pre-scripted LLM client.
func WithLLM(client *ScriptedClient) TestAppOption {
	return func(c *testAppConfig) { c.llm = client }
}

// WithWorkers sets the worker pool size.
func WithWorkers(n int) TestAppOption {
	return func(c *testAppConfig) { c.workers = n }
}

// WithQueueCapacity sets the pending-queue bound.
func WithQueueCapacity(n int) TestAppOption {
	return func(c *testAppConfig) { c.capacity = n }
}

// WithMaxRetries overrides the per-call transient retry budget.
func WithMaxRetries(n int) TestAppOption {
	return func(c *testAppConfig) { c.maxRetries = n }
}

// WithConfirmation pauses video tasks after pre-analysis until the test
// confirms them.
func WithConfirmation() TestAppOption {
	return func(c *testAppConfig) { c.confirmation = true }
}

// WithVisualFollowUp enqueues a visual interpretation task after every
// completed report.
func WithVisualFollowUp() TestAppOption {
	return func(c *testAppConfig) { c.visualFollowUp = true }
}

// WithTranscript sets the transcript the stub fetcher returns.
func WithTranscript(text string) TestAppOption {
	return func(c *testAppConfig) { c.transcript = text }
}

// NewTestApp creates and starts a full deepread test instance.
// Shutdown is registered via t.Cleanup automatically.
func NewTestApp(t *testing.T, opts ...TestAppOption) *TestApp {
	t.Helper()

	tc := &testAppConfig{
		workers:    2,
		capacity:   10,
		maxRetries: config.DefaultLLMConfig().MaxRetries,
		transcript: defaultTranscript,
	}
	for _, opt := range opts {
		opt(tc)
	}
	if tc.llm == nil {
		tc.llm = NewScriptedClient()
	}

	cfg := defaultTestConfig(t)
	cfg.Queue.Workers = tc.workers
	cfg.Queue.Capacity = tc.capacity
	cfg.LLM.MaxRetries = tc.maxRetries
	cfg.Generation.RequireConfirmation = tc.confirmation
	cfg.Postproc.VisualFollowUp = tc.visualFollowUp

	log := slog.Default()
	ctx := context.Background()

	// 1. Metrics behind a manual reader so tests can assert counters.
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := observe.NewMetrics(mp)
	require.NoError(t, err)

	// 2. Storage in the per-test temp directory.
	docs, err := store.NewDocumentStore(cfg.Storage, log)
	require.NoError(t, err)
	registry := store.NewHashRegistry(docs, log)
	require.NoError(t, registry.Scan())

	// 3. Task tracking.
	manager := task.NewManager(cfg.Generation.LogHistory)

	// 4. The scripted client sits below the real retry layer so the
	// retry and metrics paths are genuinely exercised.
	client := llm.NewRetryingClient(tc.llm, cfg.LLM, metrics, log)

	// 5. Pool and submission service.
	pool := queue.NewWorkerPool(cfg.Queue, manager, metrics, log)
	svc := service.New(manager, pool, registry, docs, cfg.Limits, metrics, log)

	// 6. Post-processing. The browser steps stay off; screenshots for
	// visual tasks come from a stub.
	renderer := postproc.NewRenderer(cfg.Postproc.BrowserBin, log)
	pipeline := postproc.NewPipeline(cfg.Postproc.StopOnError, log)
	pipeline.Register(postproc.NewVisualizationProcessor(docs, cfg.Postproc.Visualization, log))
	pipeline.Register(postproc.NewPDFExportProcessor(docs, renderer, cfg.Postproc.PDFExport, log))
	pipeline.Register(postproc.NewScreenshotProcessor(docs, renderer, cfg.Postproc.Screenshot, log))
	pipeline.Register(postproc.NewTTSProcessor(docs, cfg.Postproc, log))
	pipeline.Register(postproc.NewVisualTaskProcessor(svc, cfg.Postproc.VisualFollowUp, log))

	// 7. Workflows.
	engine := workflow.NewEngine(client, docs, registry, manager, pipeline, cfg.Generation, metrics, log)
	fetcher := &StubFetcher{Transcript: tc.transcript}
	extractor := source.NewDocumentExtractor(cfg.Source, log)
	pool.RegisterRunner(task.KindVideo, workflow.NewVideoWorkflow(engine, fetcher, log))
	pool.RegisterRunner(task.KindDocument, workflow.NewDocumentWorkflow(engine, extractor, log))
	pool.RegisterRunner(task.KindUltraReprocess, workflow.NewUltraReprocessWorkflow(engine, log))
	pool.RegisterRunner(task.KindVisual, workflow.NewVisualWorkflow(engine, stubShots{}, log))

	require.NoError(t, pool.Start(ctx))

	// 8. HTTP server on an OS-assigned port.
	server := api.NewServer(cfg.Server, cfg.Limits, svc, manager, pool, registry, docs, metrics, log)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		_ = server.StartWithListener(ln)
	}()

	app := &TestApp{
		Config:   cfg,
		Store:    docs,
		Registry: registry,
		Manager:  manager,
		Pool:     pool,
		Service:  svc,
		Server:   server,
		LLM:      tc.llm,
		Fetcher:  fetcher,
		Reader:   reader,
		BaseURL:  fmt.Sprintf("http://%s", ln.Addr().String()),
		t:        t,
	}

	t.Cleanup(func() {
		pool.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	})

	return app
}

// defaultTestConfig builds a config with production defaults tightened
// for tests: temp-dir storage, no chapter stagger, millisecond retry
// backoff, no rate limiting.
func defaultTestConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()

	cfg := &config.Config{
		Server:     config.DefaultServerConfig(),
		Queue:      config.DefaultQueueConfig(),
		LLM:        config.DefaultLLMConfig(),
		Generation: config.DefaultGenerationConfig(),
		Source:     config.DefaultSourceConfig(),
		Storage: &config.StorageConfig{
			DocumentsDir: base + "/documents",
			TasksDir:     base + "/tasks",
			UploadsDir:   base + "/uploads",
		},
		Limits:    config.DefaultLimitsConfig(),
		Postproc:  config.DefaultPostprocConfig(),
		Telemetry: &config.TelemetryConfig{Enabled: false},
	}

	cfg.Queue.TaskTimeout = 30 * time.Second
	cfg.Queue.GracefulShutdownTimeout = 5 * time.Second
	cfg.Generation.ConcurrentDelay = 0
	cfg.LLM.RetryBackoffBase = time.Millisecond
	cfg.LLM.RateLimitInterval = 0
	cfg.Server.HeartbeatInterval = time.Second
	return cfg
}

const defaultTranscript = "大家好，今天我们聊一聊分布式系统里的时间与顺序问题。" +
	"先从物理时钟讲起，再到逻辑时钟，最后落到实际工程里的取舍。"

// StubFetcher satisfies source.TranscriptFetcher with a canned
// transcript and records the URLs it was asked for.
type StubFetcher struct {
	mu         sync.Mutex
	Transcript string
	Err        error
	calls      []string
}

func (f *StubFetcher) FetchTranscript(_ context.Context, videoURL string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, videoURL)
	f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	return f.Transcript, nil
}

// Calls returns the URLs fetched so far.
func (f *StubFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// stubShots satisfies workflow.ScreenshotTaker without a browser.
type stubShots struct{}

func (stubShots) Screenshot(_ context.Context, _, outPath string) error {
	return os.WriteFile(outPath, []byte("png"), 0o600)
}
