package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/ufdrlab-backend/internal/platform/logger"
	"github.com/yungbote/ufdrlab-backend/internal/repos"
)

type Repos struct {
	Contact    repos.ContactRepo
	Message    repos.MessageRepo
	SystemInfo repos.SystemInfoRepo
	Image      repos.ImageRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Contact:    repos.NewContactRepo(db, log),
		Message:    repos.NewMessageRepo(db, log),
		SystemInfo: repos.NewSystemInfoRepo(db, log),
		Image:      repos.NewImageRepo(db, log),
	}
}
