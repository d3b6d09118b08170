package devserver

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/contextanchor/anchorctl/internal/api"
)

var acceptedExtensions = map[string]bool{
	".pdf":  true,
	".txt":  true,
	".md":   true,
	".docx": true,
}

func (s *Server) listDocuments(c echo.Context) error {
	u := currentUser(c)
	s.mu.Lock()
	docs := make([]api.Document, 0, len(s.documents))
	for _, d := range s.documents {
		if d.tenantID == u.tenantID {
			docs = append(docs, d.Document)
		}
	}
	s.mu.Unlock()
	sort.Slice(docs, func(i, j int) bool { return docs[i].CreatedAt.After(docs[j].CreatedAt) })
	return c.JSON(http.StatusOK, docs)
}

func (s *Server) getDocument(c echo.Context) error {
	u := currentUser(c)
	s.mu.Lock()
	d := s.documents[c.Param("id")]
	s.mu.Unlock()
	if d == nil || d.tenantID != u.tenantID {
		return echo.NewHTTPError(http.StatusNotFound, "document not found")
	}
	return c.JSON(http.StatusOK, d.Document)
}

func (s *Server) uploadDocument(c echo.Context) error {
	u := currentUser(c)
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field 'file' is required")
	}
	if fh.Size > s.cfg.MaxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !acceptedExtensions[ext] {
		s.recordAudit(u, "DOCUMENT_UPLOAD", "document", "", c, false, "unsupported file type "+ext)
		return echo.NewHTTPError(http.StatusBadRequest, "unsupported file type "+ext)
	}

	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer src.Close()
	preview := make([]byte, 240)
	n, _ := io.ReadFull(src, preview)

	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	now := time.Now()
	d := &document{
		Document: api.Document{
			ID:           uuid.NewString(),
			OriginalName: fh.Filename,
			ContentType:  contentType,
			FileSize:     fh.Size,
			Status:       api.StatusUploaded,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		tenantID: u.tenantID,
		preview:  strings.ToValidUTF8(string(preview[:n]), ""),
	}

	s.mu.Lock()
	s.documents[d.ID] = d
	s.mu.Unlock()

	s.recordAudit(u, "DOCUMENT_UPLOAD", "document", d.ID, c, true, "")
	go s.runPipeline(d.ID)
	return c.JSON(http.StatusCreated, d.Document)
}

func (s *Server) deleteDocument(c echo.Context) error {
	u := currentUser(c)
	id := c.Param("id")
	s.mu.Lock()
	d := s.documents[id]
	if d != nil && d.tenantID == u.tenantID {
		delete(s.documents, id)
	} else {
		d = nil
	}
	s.mu.Unlock()
	if d == nil {
		return echo.NewHTTPError(http.StatusNotFound, "document not found")
	}
	s.recordAudit(u, "DOCUMENT_DELETE", "document", id, c, true, "")
	return c.NoContent(http.StatusNoContent)
}

// runPipeline advances a document through the processing stages on a timer,
// imitating the platform's extraction, chunking, and embedding workers. It
// bails out if the document was deleted mid-flight.
func (s *Server) runPipeline(id string) {
	stages := []api.DocumentStatus{
		api.StatusProcessing,
		api.StatusChunking,
		api.StatusEmbedding,
		api.StatusReady,
	}
	for _, stage := range stages {
		time.Sleep(s.cfg.PipelineStep)
		s.mu.Lock()
		d := s.documents[id]
		if d == nil {
			s.mu.Unlock()
			return
		}
		d.Status = stage
		d.UpdatedAt = time.Now()
		if stage == api.StatusChunking {
			d.ChunkCount = int(d.FileSize/500) + 1
		}
		if stage == api.StatusReady {
			d.PageCount = int(d.FileSize/2000) + 1
		}
		s.mu.Unlock()
	}
}
