package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/seoflow-backend/internal/data/repos"
	"github.com/yungbote/seoflow-backend/internal/http"
	httpH "github.com/yungbote/seoflow-backend/internal/http/handlers"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
	"github.com/yungbote/seoflow-backend/internal/realtime"
)

type Handlers struct {
	Health        *httpH.HealthHandler
	ArticleEvents *httpH.ArticleEventsHandler
	Keyword       *httpH.KeywordHandler
	Site          *httpH.SiteHandler
	Job           *httpH.JobHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, set *repos.Set, services Services, hub *realtime.SSEHub) Handlers {
	log.Info("Wiring handlers...")
	var pinger httpH.Pinger
	if sqlDB, err := db.DB(); err == nil {
		pinger = sqlDB
	}
	return Handlers{
		Health:        httpH.NewHealthHandler(pinger),
		ArticleEvents: httpH.NewArticleEventsHandler(log, set.Articles, set.AgentEvents, hub),
		Keyword:       httpH.NewKeywordHandler(log, set.Keywords, services.Enqueuer),
		Site:          httpH.NewSiteHandler(set.Sites, services.Enqueuer),
		Job:           httpH.NewJobHandler(set.JobRuns),
	}
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers) *http.Server {
	return http.NewServer(http.RouterConfig{
		Log:                  log,
		ServiceName:          cfg.ServiceName,
		CORSOrigins:          cfg.CORSOrigins,
		HealthHandler:        handlers.Health,
		ArticleEventsHandler: handlers.ArticleEvents,
		KeywordHandler:       handlers.Keyword,
		SiteHandler:          handlers.Site,
		JobHandler:           handlers.Job,
	})
}
