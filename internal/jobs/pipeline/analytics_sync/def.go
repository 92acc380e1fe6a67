package analytics_sync

import (
	"time"

	"github.com/yungbote/seoflow-backend/internal/data/repos"
	jobrt "github.com/yungbote/seoflow-backend/internal/jobs/runtime"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
	"github.com/yungbote/seoflow-backend/internal/publisher/analytics"
)

type Pipeline struct {
	log      *logger.Logger
	sites    repos.SiteRepo
	keywords repos.KeywordRepo
	source   analytics.Source
}

func New(baseLog *logger.Logger, set *repos.Set, source analytics.Source) *Pipeline {
	return &Pipeline{
		log:      baseLog.With("job", jobrt.JobAnalyticsSync),
		sites:    set.Sites,
		keywords: set.Keywords,
		source:   source,
	}
}

func (p *Pipeline) Type() string { return jobrt.JobAnalyticsSync }

func (p *Pipeline) Policy() jobrt.Policy {
	return jobrt.Policy{MaxAttempts: 3, Backoff: 10 * time.Minute, Timeout: 10 * time.Minute}
}
