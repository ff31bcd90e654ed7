package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/ufdrlab-backend/internal/archive"
	"github.com/yungbote/ufdrlab-backend/internal/platform/logger"
	"github.com/yungbote/ufdrlab-backend/internal/platform/neo4jdb"
	"github.com/yungbote/ufdrlab-backend/internal/platform/openai"
	"github.com/yungbote/ufdrlab-backend/internal/platform/qdrant"
	"github.com/yungbote/ufdrlab-backend/internal/services"
)

type Services struct {
	Ingest    services.IngestService
	GraphSync services.GraphSyncService
	Caption   services.CaptionService
	Query     services.QueryService
}

// wireServices builds the optional platform clients first (each one is nil
// when its environment is absent) and threads them through the service set.
// The returned neo4j client is handed back so App can close it on shutdown.
func wireServices(db *gorm.DB, log *logger.Logger, reposet Repos) (Services, *neo4jdb.Client, error) {
	log.Info("Wiring services...")

	neoClient, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		return Services{}, nil, fmt.Errorf("init neo4j: %w", err)
	}
	vectors, err := qdrant.NewFromEnv(log)
	if err != nil {
		return Services{}, nil, fmt.Errorf("init qdrant: %w", err)
	}
	ai, err := openai.NewFromEnv(log)
	if err != nil {
		return Services{}, nil, fmt.Errorf("init openai: %w", err)
	}
	captioner, err := services.NewCaptionerFromEnv(log, ai)
	if err != nil {
		return Services{}, nil, fmt.Errorf("init captioner: %w", err)
	}
	loader, err := archive.NewLoader(log)
	if err != nil {
		return Services{}, nil, fmt.Errorf("init archive loader: %w", err)
	}

	graphSync := services.NewGraphSyncService(log, neoClient, reposet.Contact, reposet.Message, reposet.Image)
	caption := services.NewCaptionService(log, reposet.Image, captioner, ai, vectors)
	ingest := services.NewIngestService(
		log, db, loader,
		reposet.Contact, reposet.Message, reposet.SystemInfo, reposet.Image,
		graphSync, caption, ai, vectors,
	)
	query := services.NewQueryService(log, reposet.Message, reposet.Image, ai, vectors)

	return Services{
		Ingest:    ingest,
		GraphSync: graphSync,
		Caption:   caption,
		Query:     query,
	}, neoClient, nil
}
