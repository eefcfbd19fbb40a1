package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/deepread-ai/deepread/pkg/service"
	"github.com/deepread-ai/deepread/pkg/task"
)

// postVideo handles POST /api/v1/videos.
func (s *Server) postVideo(c *gin.Context) {
	var req SubmitVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, task.NewError(task.ErrKindInvalidInput, "invalid request body: %v", err))
		return
	}

	sub, err := s.svc.SubmitVideo(c.Request.Context(), service.SubmitVideoInput{
		URL:      req.URL,
		Priority: req.Priority,
		Mode:     req.Mode,
		Force:    req.Force,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(submissionResponse(sub))
}

// postDocument handles POST /api/v1/documents (multipart upload).
// Form fields: file (required), mode, priority, force.
func (s *Server) postDocument(c *gin.Context) {
	// Cap the whole request a little above the largest accepted document
	// so oversized uploads fail while reading instead of buffering fully.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.limits.MaxBinaryFileSize+1<<20)

	header, err := c.FormFile("file")
	if err != nil {
		s.writeError(c, task.NewError(task.ErrKindInvalidInput, "missing file field: %v", err))
		return
	}
	file, err := header.Open()
	if err != nil {
		s.writeError(c, task.NewError(task.ErrKindInvalidInput, "unreadable upload: %v", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(c, task.NewError(task.ErrKindInvalidInput, "reading upload: %v", err))
		return
	}

	sub, err := s.svc.SubmitDocument(c.Request.Context(), service.SubmitDocumentInput{
		Data:     data,
		Filename: header.Filename,
		Priority: c.PostForm("priority"),
		Mode:     c.PostForm("mode"),
		Force:    c.PostForm("force") == "true",
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(submissionResponse(sub))
}

// postConfirm handles POST /api/v1/tasks/:id/confirm.
func (s *Server) postConfirm(c *gin.Context) {
	var req ConfirmRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.writeError(c, task.NewError(task.ErrKindInvalidInput, "invalid request body: %v", err))
			return
		}
	}

	if err := s.svc.ConfirmPreAnalysis(c.Param("id"), req.Overrides); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "confirmed", "message": "分析方案已确认，任务继续处理"})
}

// postReprocess handles POST /api/v1/documents/:hash/reprocess.
func (s *Server) postReprocess(c *gin.Context) {
	var req ReprocessRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.writeError(c, task.NewError(task.ErrKindInvalidInput, "invalid request body: %v", err))
			return
		}
	}

	sub, err := s.svc.SubmitUltraReprocess(c.Request.Context(), c.Param("hash"), req.Priority, req.Force)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(submissionResponse(sub))
}
