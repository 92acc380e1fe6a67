package article_generate

import (
	"time"

	"github.com/yungbote/seoflow-backend/internal/generation"
	jobrt "github.com/yungbote/seoflow-backend/internal/jobs/runtime"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

type Pipeline struct {
	log       *logger.Logger
	generator *generation.Generator
}

func New(baseLog *logger.Logger, generator *generation.Generator) *Pipeline {
	return &Pipeline{
		log:       baseLog.With("job", jobrt.JobArticleGenerate),
		generator: generator,
	}
}

func (p *Pipeline) Type() string { return jobrt.JobArticleGenerate }

func (p *Pipeline) Policy() jobrt.Policy {
	return jobrt.Policy{MaxAttempts: 3, Backoff: 2 * time.Minute, Timeout: 30 * time.Minute}
}
