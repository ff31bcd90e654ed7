package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/ufdrlab-backend/internal/server"
)

func wireRouter(handlerset Handlers, cfg Config) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		IngestHandler:   handlerset.Ingest,
		EvidenceHandler: handlerset.Evidence,
		GraphHandler:    handlerset.Graph,
		QueryHandler:    handlerset.Query,
		AllowOrigins:    cfg.AllowOrigins,
	})
}
