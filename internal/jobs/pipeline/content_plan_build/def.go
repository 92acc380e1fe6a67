package content_plan_build

import (
	"time"

	jobrt "github.com/yungbote/seoflow-backend/internal/jobs/runtime"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
	"github.com/yungbote/seoflow-backend/internal/seo/schedule"
)

type Pipeline struct {
	log     *logger.Logger
	planner *schedule.Planner
}

func New(baseLog *logger.Logger, planner *schedule.Planner) *Pipeline {
	return &Pipeline{
		log:     baseLog.With("job", jobrt.JobContentPlanBuild),
		planner: planner,
	}
}

func (p *Pipeline) Type() string { return jobrt.JobContentPlanBuild }

func (p *Pipeline) Policy() jobrt.Policy {
	return jobrt.Policy{MaxAttempts: 3, Backoff: 30 * time.Second, Timeout: 2 * time.Minute}
}
