package app

import (
	"github.com/yungbote/ufdrlab-backend/internal/handlers"
	"github.com/yungbote/ufdrlab-backend/internal/platform/logger"
)

type Handlers struct {
	Ingest   *handlers.IngestHandler
	Evidence *handlers.EvidenceHandler
	Graph    *handlers.GraphHandler
	Query    *handlers.QueryHandler
}

func wireHandlers(log *logger.Logger, reposet Repos, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Ingest: handlers.NewIngestHandler(log, serviceset.Ingest),
		Evidence: handlers.NewEvidenceHandler(
			log,
			reposet.Contact,
			reposet.Message,
			reposet.SystemInfo,
			reposet.Image,
			serviceset.Caption,
		),
		Graph: handlers.NewGraphHandler(log, serviceset.GraphSync),
		Query: handlers.NewQueryHandler(log, serviceset.Query),
	}
}
