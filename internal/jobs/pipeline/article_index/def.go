package article_index

import (
	"time"

	"github.com/yungbote/seoflow-backend/internal/data/repos"
	jobrt "github.com/yungbote/seoflow-backend/internal/jobs/runtime"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
	"github.com/yungbote/seoflow-backend/internal/publisher/indexing"
)

type Pipeline struct {
	log      *logger.Logger
	articles repos.ArticleRepo
	indexer  indexing.Indexer
	now      func() time.Time
}

func New(baseLog *logger.Logger, set *repos.Set, indexer indexing.Indexer) *Pipeline {
	return &Pipeline{
		log:      baseLog.With("job", jobrt.JobArticleIndex),
		articles: set.Articles,
		indexer:  indexer,
		now:      time.Now,
	}
}

func (p *Pipeline) Type() string { return jobrt.JobArticleIndex }

func (p *Pipeline) Policy() jobrt.Policy {
	return jobrt.Policy{MaxAttempts: 5, Backoff: 5 * time.Minute, Timeout: time.Minute}
}
