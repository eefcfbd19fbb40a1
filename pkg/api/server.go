// Package api exposes the HTTP surface: submission endpoints, task
// queries, progress streams (WebSocket and SSE), report downloads,
// health, and Prometheus metrics. Handlers translate between transport
// and the submission service; no interpretation logic lives here.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deepread-ai/deepread/pkg/config"
	"github.com/deepread-ai/deepread/pkg/observe"
	"github.com/deepread-ai/deepread/pkg/queue"
	"github.com/deepread-ai/deepread/pkg/service"
	"github.com/deepread-ai/deepread/pkg/store"
	"github.com/deepread-ai/deepread/pkg/task"
)

// Server wires the HTTP routes to the submission service and the
// read-side collaborators.
type Server struct {
	cfg      *config.ServerConfig
	limits   *config.LimitsConfig
	svc      *service.Service
	manager  *task.Manager
	pool     *queue.WorkerPool
	registry *store.HashRegistry
	docs     *store.DocumentStore
	metrics  *observe.Metrics
	log      *slog.Logger

	http *http.Server
}

// NewServer creates the API server. metrics may be nil.
func NewServer(cfg *config.ServerConfig, limits *config.LimitsConfig, svc *service.Service,
	manager *task.Manager, pool *queue.WorkerPool, registry *store.HashRegistry,
	docs *store.DocumentStore, metrics *observe.Metrics, log *slog.Logger) *Server {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Server{
		cfg:      cfg,
		limits:   limits,
		svc:      svc,
		manager:  manager,
		pool:     pool,
		registry: registry,
		docs:     docs,
		metrics:  metrics,
		log:      log.With("component", "api"),
	}
}

// Router builds the gin engine with all routes and middleware attached.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog(), s.httpMetrics(), securityHeaders())

	r.GET("/health", s.getHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/videos", s.postVideo)
		v1.POST("/documents", s.postDocument)

		v1.GET("/tasks", s.listTasks)
		v1.GET("/tasks/:id", s.getTask)
		v1.POST("/tasks/:id/confirm", s.postConfirm)
		v1.GET("/tasks/:id/ws", s.streamTaskWS)
		v1.GET("/tasks/:id/events", s.streamTaskSSE)

		v1.GET("/stats", s.getStats)

		v1.GET("/documents", s.listDocuments)
		v1.GET("/documents/:hash", s.getDocument)
		v1.GET("/documents/:hash/versions", s.getDocumentVersions)
		v1.POST("/documents/:hash/reprocess", s.postReprocess)
	}

	return r
}

// Start begins serving on addr. Blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}
	return s.http.ListenAndServe()
}

// StartWithListener serves on an existing listener. Tests use it to bind
// an OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.http = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}
	return s.http.Serve(ln)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
