package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// getTask handles GET /api/v1/tasks/:id.
func (s *Server) getTask(c *gin.Context) {
	snap, err := s.manager.Snapshot(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// listTasks handles GET /api/v1/tasks.
func (s *Server) listTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": s.manager.List()})
}

// getStats handles GET /api/v1/stats.
func (s *Server) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, &StatsResponse{
		Queue:     s.pool.Stats(),
		Active:    s.pool.List(),
		Documents: s.registry.Len(),
	})
}
