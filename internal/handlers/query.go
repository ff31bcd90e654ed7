package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/ufdrlab-backend/internal/platform/apierr"
	"github.com/yungbote/ufdrlab-backend/internal/platform/logger"
	"github.com/yungbote/ufdrlab-backend/internal/services"
)

type QueryHandler struct {
	log          *logger.Logger
	queryService services.QueryService
}

func NewQueryHandler(log *logger.Logger, qsvc services.QueryService) *QueryHandler {
	return &QueryHandler{
		log:          log.With("handler", "QueryHandler"),
		queryService: qsvc,
	}
}

// POST /api/query
func (h *QueryHandler) Ask(c *gin.Context) {
	var req services.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	answer, err := h.queryService.Ask(c.Request.Context(), req)
	if err != nil {
		h.log.Error("Query failed", "error", err)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, answer)
}
