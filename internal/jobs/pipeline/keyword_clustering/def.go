package keyword_clustering

import (
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/seoflow-backend/internal/data/repos"
	jobrt "github.com/yungbote/seoflow-backend/internal/jobs/runtime"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
	"github.com/yungbote/seoflow-backend/internal/seo/clustering"
)

type Pipeline struct {
	db        *gorm.DB
	log       *logger.Logger
	sites     repos.SiteRepo
	keywords  repos.KeywordRepo
	threshold float64
}

func New(db *gorm.DB, baseLog *logger.Logger, set *repos.Set) *Pipeline {
	return &Pipeline{
		db:        db,
		log:       baseLog.With("job", jobrt.JobKeywordClustering),
		sites:     set.Sites,
		keywords:  set.Keywords,
		threshold: clustering.DefaultThreshold,
	}
}

func (p *Pipeline) Type() string { return jobrt.JobKeywordClustering }

func (p *Pipeline) Policy() jobrt.Policy {
	return jobrt.Policy{MaxAttempts: 3, Backoff: 30 * time.Second, Timeout: 2 * time.Minute}
}
