package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/ufdrlab-backend/internal/platform/apierr"
	"github.com/yungbote/ufdrlab-backend/internal/platform/logger"
	"github.com/yungbote/ufdrlab-backend/internal/services"
)

type IngestHandler struct {
	log           *logger.Logger
	ingestService services.IngestService
}

func NewIngestHandler(log *logger.Logger, isvc services.IngestService) *IngestHandler {
	return &IngestHandler{
		log:           log.With("handler", "IngestHandler"),
		ingestService: isvc,
	}
}

// POST /api/upload
// Multipart upload of one UFDR archive; responds with the ingest summary.
func (h *IngestHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeBadRequest, fmt.Errorf("multipart field 'file' is required: %w", err))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeBadRequest, fmt.Errorf("open upload: %w", err))
		return
	}
	defer f.Close()

	summary, err := h.ingestService.Ingest(c.Request.Context(), f, fileHeader.Filename)
	if err != nil {
		h.log.Error("Archive ingestion failed", "filename", fileHeader.Filename, "error", err)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"success": true, "summary": summary})
}

// POST /api/reset
// Wipes the relational store and the derived vector entries.
func (h *IngestHandler) Reset(c *gin.Context) {
	if err := h.ingestService.Reset(c.Request.Context()); err != nil {
		h.log.Error("Store reset failed", "error", err)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "reset"})
}
