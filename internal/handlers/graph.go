package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/ufdrlab-backend/internal/platform/logger"
	"github.com/yungbote/ufdrlab-backend/internal/services"
)

type GraphHandler struct {
	log       *logger.Logger
	graphSync services.GraphSyncService
}

func NewGraphHandler(log *logger.Logger, gsvc services.GraphSyncService) *GraphHandler {
	return &GraphHandler{
		log:       log.With("handler", "GraphHandler"),
		graphSync: gsvc,
	}
}

type resyncRequest struct {
	ClearFirst bool `json:"clear_first"`
}

// POST /api/graph/resync?clear_first=bool
func (h *GraphHandler) Resync(c *gin.Context) {
	var req resyncRequest
	// Body is optional; default is an additive resync.
	_ = c.ShouldBindJSON(&req)
	if raw := c.Query("clear_first"); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			req.ClearFirst = parsed
		}
	}

	stats, err := h.graphSync.Resync(c.Request.Context(), req.ClearFirst)
	if err != nil {
		h.log.Error("Graph resync failed", "error", err)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, stats)
}

// POST /api/graph/reset
func (h *GraphHandler) Reset(c *gin.Context) {
	if err := h.graphSync.Reset(c.Request.Context()); err != nil {
		h.log.Error("Graph reset failed", "error", err)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "reset"})
}

// GET /api/graph and GET /api/graph/:term
func (h *GraphHandler) Fetch(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	view, err := h.graphSync.FetchGraph(c.Request.Context(), c.Param("term"), limit)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, view)
}
