package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/seoflow-backend/internal/http/handlers"
	httpMW "github.com/yungbote/seoflow-backend/internal/http/middleware"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	CORSOrigins string

	HealthHandler        *httpH.HealthHandler
	ArticleEventsHandler *httpH.ArticleEventsHandler
	KeywordHandler       *httpH.KeywordHandler
	SiteHandler          *httpH.SiteHandler
	JobHandler           *httpH.JobHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		// Article progress
		if cfg.ArticleEventsHandler != nil {
			api.GET("/articles/:id/events", cfg.ArticleEventsHandler.History)
			api.GET("/articles/:id/events/stream", cfg.ArticleEventsHandler.Stream)
		}

		// Keywords
		if cfg.KeywordHandler != nil {
			api.POST("/keywords/:id/generate", cfg.KeywordHandler.Generate)
		}

		// Sites
		if cfg.SiteHandler != nil {
			api.POST("/sites/:id/plan", cfg.SiteHandler.Plan)
			api.POST("/sites/:id/discover", cfg.SiteHandler.Discover)
		}

		// Job
		if cfg.JobHandler != nil {
			api.GET("/jobs/:id", cfg.JobHandler.GetJob)
		}
	}

	return r
}
