package article_publish

import (
	"time"

	"github.com/yungbote/seoflow-backend/internal/data/repos"
	jobrt "github.com/yungbote/seoflow-backend/internal/jobs/runtime"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
	"github.com/yungbote/seoflow-backend/internal/publisher"
)

type Pipeline struct {
	log       *logger.Logger
	sites     repos.SiteRepo
	articles  repos.ArticleRepo
	schedule  repos.ScheduleRepo
	publisher publisher.Publisher
	now       func() time.Time
}

func New(baseLog *logger.Logger, set *repos.Set, pub publisher.Publisher) *Pipeline {
	return &Pipeline{
		log:       baseLog.With("job", jobrt.JobArticlePublish),
		sites:     set.Sites,
		articles:  set.Articles,
		schedule:  set.Schedule,
		publisher: pub,
		now:       time.Now,
	}
}

func (p *Pipeline) Type() string { return jobrt.JobArticlePublish }

func (p *Pipeline) Policy() jobrt.Policy {
	return jobrt.Policy{MaxAttempts: 5, Backoff: 2 * time.Minute, Timeout: 2 * time.Minute}
}
