package article_link_insert

import (
	"time"

	"github.com/yungbote/seoflow-backend/internal/agentbridge"
	"github.com/yungbote/seoflow-backend/internal/data/repos"
	"github.com/yungbote/seoflow-backend/internal/events"
	jobrt "github.com/yungbote/seoflow-backend/internal/jobs/runtime"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
	"github.com/yungbote/seoflow-backend/internal/seo/linking"
)

type Pipeline struct {
	log      *logger.Logger
	sites    repos.SiteRepo
	articles repos.ArticleRepo
	keywords repos.KeywordRepo
	agents   agentbridge.AgentRunner
	emitter  events.Emitter
	opts     linking.Options
}

// New wires link insertion. runner may be nil; placement then runs in-process.
func New(baseLog *logger.Logger, set *repos.Set, runner agentbridge.AgentRunner, emitter events.Emitter) *Pipeline {
	if emitter == nil {
		emitter = events.Discard
	}
	return &Pipeline{
		log:      baseLog.With("job", jobrt.JobArticleLinkInsert),
		sites:    set.Sites,
		articles: set.Articles,
		keywords: set.Keywords,
		agents:   runner,
		emitter:  emitter,
		opts:     linking.DefaultOptions(),
	}
}

func (p *Pipeline) Type() string { return jobrt.JobArticleLinkInsert }

func (p *Pipeline) Policy() jobrt.Policy {
	return jobrt.Policy{MaxAttempts: 2, Backoff: time.Minute, Timeout: 5 * time.Minute}
}
