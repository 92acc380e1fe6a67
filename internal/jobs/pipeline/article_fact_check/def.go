package article_fact_check

import (
	"time"

	"github.com/yungbote/seoflow-backend/internal/agentbridge"
	"github.com/yungbote/seoflow-backend/internal/agents"
	"github.com/yungbote/seoflow-backend/internal/data/repos"
	"github.com/yungbote/seoflow-backend/internal/events"
	jobrt "github.com/yungbote/seoflow-backend/internal/jobs/runtime"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

// rawTailLines is how much of an unparseable agent output is kept on the article.
const rawTailLines = 40

type Pipeline struct {
	log      *logger.Logger
	articles repos.ArticleRepo
	keywords repos.KeywordRepo
	agents   agentbridge.AgentRunner
	checker  *agents.FactChecker
	emitter  events.Emitter
}

// New wires the fact check. The agent process is preferred; checker runs the
// same check in-process when no runner is configured. With neither, articles
// pass through unchecked.
func New(baseLog *logger.Logger, set *repos.Set, runner agentbridge.AgentRunner, checker *agents.FactChecker, emitter events.Emitter) *Pipeline {
	if emitter == nil {
		emitter = events.Discard
	}
	return &Pipeline{
		log:      baseLog.With("job", jobrt.JobArticleFactCheck),
		articles: set.Articles,
		keywords: set.Keywords,
		agents:   runner,
		checker:  checker,
		emitter:  emitter,
	}
}

func (p *Pipeline) Type() string { return jobrt.JobArticleFactCheck }

func (p *Pipeline) Policy() jobrt.Policy {
	return jobrt.Policy{MaxAttempts: 2, Backoff: time.Minute, Timeout: 10 * time.Minute}
}
