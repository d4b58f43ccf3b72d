package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/bull/docqa/internal/domain"
	"github.com/bull/docqa/internal/ingest"
)

// DocumentService manages the document collection.
type DocumentService interface {
	Ingest(ctx context.Context, f ingest.File) (domain.Document, error)
	Get(ctx context.Context, id string) (domain.Document, error)
	List(ctx context.Context) ([]domain.Document, error)
	Delete(ctx context.Context, id string) error
}

type documentResponse struct {
	DocumentID string                  `json:"document_id"`
	Filename   string                  `json:"filename"`
	Metadata   domain.DocumentMetadata `json:"metadata"`
	ChunkCount int                     `json:"chunk_count"`
	Text       string                  `json:"text,omitempty"`
}

func toResponse(d domain.Document) documentResponse {
	return documentResponse{
		DocumentID: d.ID,
		Filename:   d.Filename,
		Metadata:   d.Metadata,
		ChunkCount: d.ChunkCount,
	}
}

type documentHandler struct {
	svc            DocumentService
	maxUploadBytes int64
}

func (h *documentHandler) upload(c *gin.Context) {
	const op = "api.upload"
	if h.maxUploadBytes > 0 {
		// leave room for the multipart envelope; the exact limit is checked on the file
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1<<20)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondError(c, domain.Errorf(domain.KindInvalidRequest, op, "upload exceeds %d bytes", h.maxUploadBytes))
			return
		}
		RespondError(c, domain.Errorf(domain.KindInvalidRequest, op, "multipart field \"file\" is required"))
		return
	}
	if h.maxUploadBytes > 0 && fh.Size > h.maxUploadBytes {
		RespondError(c, domain.Errorf(domain.KindInvalidRequest, op, "%q is %d bytes, limit is %d", fh.Filename, fh.Size, h.maxUploadBytes))
		return
	}

	f, err := fh.Open()
	if err != nil {
		RespondError(c, domain.E(domain.KindInternal, op, err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		RespondError(c, domain.E(domain.KindInternal, op, err))
		return
	}

	doc, err := h.svc.Ingest(c.Request.Context(), ingest.File{Name: filepath.Base(fh.Filename), Data: data})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toResponse(doc))
}

func (h *documentHandler) list(c *gin.Context) {
	docs, err := h.svc.List(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	out := make([]documentResponse, len(docs))
	for i, d := range docs {
		out[i] = toResponse(d)
	}
	RespondOK(c, gin.H{"documents": out, "count": len(out)})
}

func (h *documentHandler) get(c *gin.Context) {
	doc, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	resp := toResponse(doc)
	if c.Query("include_text") == "true" {
		resp.Text = doc.Text
	}
	RespondOK(c, resp)
}

func (h *documentHandler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
