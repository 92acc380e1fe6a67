package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/seoflow-backend/internal/data/repos/content"
	"github.com/yungbote/seoflow-backend/internal/data/repos/events"
	"github.com/yungbote/seoflow-backend/internal/data/repos/jobs"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

type SiteRepo = content.SiteRepo
type KeywordRepo = content.KeywordRepo
type ArticleRepo = content.ArticleRepo
type ScheduleRepo = content.ScheduleRepo
type AgentEventRepo = events.AgentEventRepo
type JobRunRepo = jobs.JobRunRepo

// Set bundles every repository so wiring code can pass one value around.
type Set struct {
	Sites       SiteRepo
	Keywords    KeywordRepo
	Articles    ArticleRepo
	Schedule    ScheduleRepo
	AgentEvents AgentEventRepo
	JobRuns     JobRunRepo
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) *Set {
	return &Set{
		Sites:       content.NewSiteRepo(db, baseLog),
		Keywords:    content.NewKeywordRepo(db, baseLog),
		Articles:    content.NewArticleRepo(db, baseLog),
		Schedule:    content.NewScheduleRepo(db, baseLog),
		AgentEvents: events.NewAgentEventRepo(db, baseLog),
		JobRuns:     jobs.NewJobRunRepo(db, baseLog),
	}
}
