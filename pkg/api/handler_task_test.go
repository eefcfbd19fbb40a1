package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepread-ai/deepread/pkg/task"
)

func TestGetTaskSnapshot(t *testing.T) {
	f := newAPIFixture(t, 10)
	sub := decodeSubmission(t, f.postJSON(t, "/api/v1/videos", gin.H{
		"url": "https://www.youtube.com/watch?v=AAAAAAAAAAA",
	}))

	rec := f.getJSON(t, "/api/v1/tasks/"+sub.TaskID)
	require.Equal(t, http.StatusOK, rec.Code)

	var snap task.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, sub.TaskID, snap.TaskID)
	assert.Equal(t, task.KindVideo, snap.Kind)
	assert.Equal(t, task.StatusQueued, snap.Status)
	assert.Equal(t, 0, snap.Progress)
	assert.Equal(t, sub.DocHash, snap.DocHash)
}

func TestGetTaskNotFound(t *testing.T) {
	f := newAPIFixture(t, 10)
	rec := f.getJSON(t, "/api/v1/tasks/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Kind)
}

func TestListTasks(t *testing.T) {
	f := newAPIFixture(t, 10)
	f.postJSON(t, "/api/v1/videos", gin.H{"url": "https://www.youtube.com/watch?v=AAAAAAAAAAA"})
	f.postJSON(t, "/api/v1/videos", gin.H{"url": "https://www.youtube.com/watch?v=CCCCCCCCCCC"})

	rec := f.getJSON(t, "/api/v1/tasks")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Tasks []task.State `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Tasks, 2)
}
