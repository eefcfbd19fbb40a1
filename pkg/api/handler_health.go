package api

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

// getHealth handles GET /health. It reports only deepread's own
// components (worker pool, document storage); the LLM backend is
// deliberately excluded so an upstream outage cannot make an
// orchestrator restart a healthy process.
func (s *Server) getHealth(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Documents: s.registry.Len(),
	}

	if s.pool != nil {
		resp.WorkerPool = s.pool.Health()
		if !resp.WorkerPool.IsHealthy {
			resp.Status = "unhealthy"
			resp.Error = "worker pool is not running"
		}
	}

	if _, err := os.Stat(s.docs.DocumentsDir()); err != nil {
		resp.Status = "unhealthy"
		resp.Error = "document storage is unreachable: " + err.Error()
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
