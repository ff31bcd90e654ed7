package app

import (
	"strings"

	"github.com/yungbote/ufdrlab-backend/internal/platform/envutil"
	"github.com/yungbote/ufdrlab-backend/internal/platform/logger"
)

type Config struct {
	Port         string
	AllowOrigins []string
}

func LoadConfig(log *logger.Logger) Config {
	port := envutil.GetEnv("PORT", "8080", log)

	var origins []string
	if raw := envutil.GetEnv("ALLOW_ORIGINS", "", log); raw != "" {
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}

	return Config{
		Port:         port,
		AllowOrigins: origins,
	}
}
