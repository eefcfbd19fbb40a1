package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"github.com/deepread-ai/deepread/pkg/task"
)

// streamTaskWS handles GET /api/v1/tasks/:id/ws. The subscription is
// taken before the upgrade so an unknown task still gets a plain 404.
// History is replayed first, then live events; for a finished task the
// manager closes the channel right after the replay.
func (s *Server) streamTaskWS(c *gin.Context) {
	sub, err := s.manager.Subscribe(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	defer s.manager.Unsubscribe(sub)

	s.metrics.StreamSubscribers.Add(context.Background(), 1)
	defer s.metrics.StreamSubscribers.Add(context.Background(), -1)

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "task_id", sub.TaskID, "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Progress streams are write-only; CloseRead surfaces client
	// disconnects through the returned context.
	ctx := conn.CloseRead(c.Request.Context())

	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case raw, ok := <-sub.C:
			if !ok {
				return
			}
			if err := s.writeWS(ctx, conn, raw); err != nil {
				return
			}
		case <-ticker.C:
			hb, err := json.Marshal(task.NewHeartbeatEvent())
			if err != nil {
				s.log.Error("Failed to marshal heartbeat", "error", err)
				continue
			}
			if err := s.writeWS(ctx, conn, hb); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// writeWS sends one text frame with a bounded write deadline so a
// stalled client cannot pin the handler goroutine.
func (s *Server) writeWS(ctx context.Context, conn *websocket.Conn, data []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, s.cfg.StreamWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

// streamTaskSSE handles GET /api/v1/tasks/:id/events, the same event
// stream as the WebSocket endpoint in Server-Sent Events framing.
func (s *Server) streamTaskSSE(c *gin.Context) {
	sub, err := s.manager.Subscribe(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	defer s.manager.Unsubscribe(sub)

	s.metrics.StreamSubscribers.Add(context.Background(), 1)
	defer s.metrics.StreamSubscribers.Add(context.Background(), -1)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case raw, ok := <-sub.C:
			if !ok {
				return
			}
			if err := writeSSE(c.Writer, raw); err != nil {
				return
			}
		case <-ticker.C:
			hb, err := json.Marshal(task.NewHeartbeatEvent())
			if err != nil {
				s.log.Error("Failed to marshal heartbeat", "error", err)
				continue
			}
			if err := writeSSE(c.Writer, hb); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func writeSSE(w gin.ResponseWriter, data []byte) error {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	w.Flush()
	return nil
}
