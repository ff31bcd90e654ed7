package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yungbote/ufdrlab-backend/internal/handlers"
)

type RouterConfig struct {
	IngestHandler   *handlers.IngestHandler
	EvidenceHandler *handlers.EvidenceHandler
	GraphHandler    *handlers.GraphHandler
	QueryHandler    *handlers.QueryHandler
	AllowOrigins    []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5173",
		}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		// Ingestion
		api.POST("/upload", cfg.IngestHandler.Upload)
		api.POST("/reset", cfg.IngestHandler.Reset)

		// Evidence browsing
		api.GET("/messages", cfg.EvidenceHandler.ListMessages)
		api.GET("/contacts", cfg.EvidenceHandler.ListContacts)
		api.GET("/system-info", cfg.EvidenceHandler.ListSystemInfo)
		api.GET("/images", cfg.EvidenceHandler.ListImages)
		api.POST("/images/recaption", cfg.EvidenceHandler.RecaptionImages)

		// Evidence graph
		api.POST("/graph/resync", cfg.GraphHandler.Resync)
		api.POST("/graph/reset", cfg.GraphHandler.Reset)
		api.GET("/graph", cfg.GraphHandler.Fetch)
		api.GET("/graph/:term", cfg.GraphHandler.Fetch)

		// Semantic query
		api.POST("/query", cfg.QueryHandler.Ask)
	}

	return router
}
