package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/ufdrlab-backend/internal/platform/logger"
	"github.com/yungbote/ufdrlab-backend/internal/repos"
	"github.com/yungbote/ufdrlab-backend/internal/services"
)

// EvidenceHandler serves the paginated browse endpoints over the primary
// store plus the caption requeue operation.
type EvidenceHandler struct {
	log            *logger.Logger
	contacts       repos.ContactRepo
	messages       repos.MessageRepo
	sysinfo        repos.SystemInfoRepo
	images         repos.ImageRepo
	captionService services.CaptionService
}

func NewEvidenceHandler(
	log *logger.Logger,
	contacts repos.ContactRepo,
	messages repos.MessageRepo,
	sysinfo repos.SystemInfoRepo,
	images repos.ImageRepo,
	csvc services.CaptionService,
) *EvidenceHandler {
	return &EvidenceHandler{
		log:            log.With("handler", "EvidenceHandler"),
		contacts:       contacts,
		messages:       messages,
		sysinfo:        sysinfo,
		images:         images,
		captionService: csvc,
	}
}

// GET /api/messages?search=&limit=&offset=
func (h *EvidenceHandler) ListMessages(c *gin.Context) {
	limit, offset := Pagination(c)
	rows, total, err := h.messages.List(c.Request.Context(), nil, c.Query("search"), limit, offset)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"items": rows, "total": total, "limit": limit, "offset": offset})
}

// GET /api/contacts?search=&limit=&offset=
func (h *EvidenceHandler) ListContacts(c *gin.Context) {
	limit, offset := Pagination(c)
	rows, total, err := h.contacts.List(c.Request.Context(), nil, c.Query("search"), limit, offset)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"items": rows, "total": total, "limit": limit, "offset": offset})
}

// GET /api/system-info?category=&search=&limit=&offset=
func (h *EvidenceHandler) ListSystemInfo(c *gin.Context) {
	limit, offset := Pagination(c)
	rows, total, err := h.sysinfo.List(c.Request.Context(), nil, c.Query("category"), c.Query("search"), limit, offset)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"items": rows, "total": total, "limit": limit, "offset": offset})
}

// GET /api/images?limit=&offset=
func (h *EvidenceHandler) ListImages(c *gin.Context) {
	limit, offset := Pagination(c)
	rows, total, err := h.images.List(c.Request.Context(), nil, limit, offset)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"items": rows, "total": total, "limit": limit, "offset": offset})
}

// POST /api/images/recaption
// Requeues errored and stuck images and kicks a background caption run.
func (h *EvidenceHandler) RecaptionImages(c *gin.Context) {
	requeued, err := h.captionService.RecaptionPending(c.Request.Context())
	if err != nil {
		h.log.Error("Recaption requeue failed", "error", err)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"requeued": requeued})
}
