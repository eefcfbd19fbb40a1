package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepread-ai/deepread/pkg/task"
)

// parseSSE splits a text/event-stream body into its data payloads.
func parseSSE(t *testing.T, body string) []map[string]any {
	t.Helper()
	var events []map[string]any
	for _, frame := range strings.Split(body, "\n\n") {
		frame = strings.TrimSpace(frame)
		if frame == "" {
			continue
		}
		require.True(t, strings.HasPrefix(frame, "data: "), frame)
		var ev map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func TestSSEReplaysFinishedTask(t *testing.T) {
	f := newAPIFixture(t, 10)
	f.finishTask(t, "t-sse")

	rec := f.getJSON(t, "/api/v1/tasks/t-sse/events")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 4)
	assert.Equal(t, task.EventTypeProgress, events[0]["type"])
	assert.Equal(t, string(task.StatusQueued), events[0]["status"])
	assert.Equal(t, float64(42), events[2]["progress"])

	last := events[len(events)-1]
	assert.Equal(t, task.EventTypeResult, last["type"])
	assert.Equal(t, float64(100), last["progress"])
	result, ok := last["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "existing-interpretation_v1.md", result["file"])
}

func TestSSEUnknownTask(t *testing.T) {
	f := newAPIFixture(t, 10)
	rec := f.getJSON(t, "/api/v1/tasks/nope/events")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Kind)
}

func dialTaskWS(t *testing.T, server *httptest.Server, taskID string) *websocket.Conn {
	t.Helper()
	url := "ws" + server.URL[len("http"):] + "/api/v1/tasks/" + taskID + "/ws"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

// readUntilClosed drains text frames until the server closes the stream.
func readUntilClosed(t *testing.T, conn *websocket.Conn) []map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var events []map[string]any
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
			return events
		}
		var ev map[string]any
		require.NoError(t, json.Unmarshal(data, &ev))
		events = append(events, ev)
	}
}

func TestWebSocketReplaysFinishedTask(t *testing.T) {
	f := newAPIFixture(t, 10)
	f.finishTask(t, "t-ws")

	server := httptest.NewServer(f.router)
	t.Cleanup(server.Close)

	conn := dialTaskWS(t, server, "t-ws")
	events := readUntilClosed(t, conn)
	require.Len(t, events, 4)
	assert.Equal(t, task.EventTypeResult, events[3]["type"])
}

func TestWebSocketForwardsLiveEvents(t *testing.T) {
	f := newAPIFixture(t, 10)
	_, err := f.manager.Create(task.Task{
		ID:       "t-live",
		Kind:     task.KindVideo,
		Mode:     task.ModeDeep,
		Priority: task.PriorityNormal,
		SourceID: "https://www.youtube.com/watch?v=AAAAAAAAAAA",
		DocHash:  "cafe0123",
	})
	require.NoError(t, err)

	server := httptest.NewServer(f.router)
	t.Cleanup(server.Close)

	conn := dialTaskWS(t, server, "t-live")

	require.NoError(t, f.manager.Begin("t-live"))
	f.manager.UpdateProgress("t-live", 25, "outline", "正在规划章节大纲")
	f.manager.SendResult("t-live", task.Result{DocHash: "cafe0123", File: "live_v1.md", Title: "实时", Version: 1})

	events := readUntilClosed(t, conn)
	require.Len(t, events, 4)
	assert.Equal(t, string(task.StatusQueued), events[0]["status"])
	assert.Equal(t, "outline", events[2]["stage"])
	assert.Equal(t, task.EventTypeResult, events[3]["type"])
}

func TestWebSocketUnknownTaskRejected(t *testing.T) {
	f := newAPIFixture(t, 10)
	server := httptest.NewServer(f.router)
	t.Cleanup(server.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + server.URL[len("http"):] + "/api/v1/tasks/nope/ws"
	conn, resp, err := websocket.Dial(ctx, url, nil)
	require.Error(t, err)
	require.Nil(t, conn)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
