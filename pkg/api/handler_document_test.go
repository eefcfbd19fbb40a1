package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListDocumentsIncludesHash(t *testing.T) {
	f := newAPIFixture(t, 10)
	hash, name := f.seedReport(t, "https://www.youtube.com/watch?v=BBBBBBBBBBB")

	rec := f.getJSON(t, "/api/v1/documents")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Documents []DocumentInfo `json:"documents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Documents, 1)
	assert.Equal(t, name, resp.Documents[0].File)
	assert.Equal(t, hash, resp.Documents[0].DocHash)
}

func TestGetDocumentServesMarkdown(t *testing.T) {
	f := newAPIFixture(t, 10)
	hash, name := f.seedReport(t, "https://www.youtube.com/watch?v=BBBBBBBBBBB")

	rec := f.getJSON(t, "/api/v1/documents/"+hash)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, name, rec.Header().Get("X-Document-File"))
	assert.Contains(t, rec.Body.String(), "已有解读")
	assert.Contains(t, rec.Body.String(), "正文。")
}

func TestGetDocumentUnknownHash(t *testing.T) {
	f := newAPIFixture(t, 10)
	rec := f.getJSON(t, "/api/v1/documents/deadbeef")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Kind)
}

func TestGetDocumentVersions(t *testing.T) {
	f := newAPIFixture(t, 10)
	hash, name := f.seedReport(t, "https://www.youtube.com/watch?v=BBBBBBBBBBB")

	rec := f.getJSON(t, "/api/v1/documents/"+hash+"/versions")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp VersionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, hash, resp.DocHash)
	assert.Equal(t, name, resp.Default)
	assert.Equal(t, []string{name}, resp.Versions)
}

func TestGetDocumentVersionsUnknownHash(t *testing.T) {
	f := newAPIFixture(t, 10)
	rec := f.getJSON(t, "/api/v1/documents/deadbeef/versions")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
