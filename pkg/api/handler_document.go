package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/deepread-ai/deepread/pkg/store"
)

// listDocuments handles GET /api/v1/documents.
func (s *Server) listDocuments(c *gin.Context) {
	files, err := s.docs.ListDocuments()
	if err != nil {
		s.writeError(c, err)
		return
	}

	infos := make([]DocumentInfo, 0, len(files))
	for _, f := range files {
		info := DocumentInfo{File: f}
		if hash, ok := s.registry.HashFor(f); ok {
			info.DocHash = hash
		}
		infos = append(infos, info)
	}
	c.JSON(http.StatusOK, gin.H{"documents": infos})
}

// getDocument handles GET /api/v1/documents/:hash. Serves the default
// (newest) version as raw Markdown.
func (s *Server) getDocument(c *gin.Context) {
	hash := c.Param("hash")
	filename, ok := s.registry.Lookup(hash)
	if !ok {
		c.JSON(http.StatusNotFound, &ErrorResponse{Error: ErrorBody{
			Kind:    "not_found",
			Message: "no document for hash " + hash,
		}})
		return
	}

	content, err := s.docs.ReadDocument(filename)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, &ErrorResponse{Error: ErrorBody{
				Kind:    "not_found",
				Message: "document file is missing: " + filename,
			}})
			return
		}
		s.writeError(c, err)
		return
	}

	c.Header("X-Document-File", filename)
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(content))
}

// getDocumentVersions handles GET /api/v1/documents/:hash/versions.
func (s *Server) getDocumentVersions(c *gin.Context) {
	hash := c.Param("hash")
	versions := s.registry.Versions(hash)
	if len(versions) == 0 {
		c.JSON(http.StatusNotFound, &ErrorResponse{Error: ErrorBody{
			Kind:    "not_found",
			Message: "no document for hash " + hash,
		}})
		return
	}

	def, _ := s.registry.Lookup(hash)
	c.JSON(http.StatusOK, &VersionsResponse{
		DocHash:  hash,
		Default:  def,
		Versions: versions,
	})
}
