package keyword_discovery

import (
	"time"

	"github.com/yungbote/seoflow-backend/internal/data/repos"
	jobrt "github.com/yungbote/seoflow-backend/internal/jobs/runtime"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
	"github.com/yungbote/seoflow-backend/internal/seo/discovery"
)

// ClusterDelay lets a burst of discovery jobs land before the site is clustered.
const ClusterDelay = 30 * time.Second

type Pipeline struct {
	log        *logger.Logger
	sites      repos.SiteRepo
	keywords   repos.KeywordRepo
	discoverer *discovery.Discoverer
}

func New(baseLog *logger.Logger, set *repos.Set, discoverer *discovery.Discoverer) *Pipeline {
	return &Pipeline{
		log:        baseLog.With("job", jobrt.JobKeywordDiscovery),
		sites:      set.Sites,
		keywords:   set.Keywords,
		discoverer: discoverer,
	}
}

func (p *Pipeline) Type() string { return jobrt.JobKeywordDiscovery }

func (p *Pipeline) Policy() jobrt.Policy {
	return jobrt.Policy{MaxAttempts: 3, Backoff: time.Minute, Timeout: 5 * time.Minute}
}
