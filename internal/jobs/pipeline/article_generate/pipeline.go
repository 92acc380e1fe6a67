package article_generate

import (
	"context"
	"errors"

	"github.com/yungbote/seoflow-backend/internal/generation"
	jobrt "github.com/yungbote/seoflow-backend/internal/jobs/runtime"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	article, err := p.generator.Generate(jc.Ctx, generation.Request{
		KeywordID:      jc.EntityID(),
		CompetitorURLs: jc.PayloadStrings("competitor_urls"),
		JobID:          jc.Job.ID.String(),
		Final:          jc.FinalAttempt(),
	})
	if err != nil {
		return err
	}
	if article == nil {
		return nil
	}
	jc.Chain(jobrt.EnqueueRequest{
		JobType:    jobrt.JobArticleFactCheck,
		EntityType: jobrt.EntityArticle,
		EntityID:   article.ID,
		Unique:     true,
	})
	return nil
}

/*
Failed runs once the job is out of attempts, including when the row was reaped
after a crash and Generate never reached its own cleanup. A retry of a reaped
run takes its claim back in Generate, so a validation failure here means this
job never held the keyword and there is nothing to release.
*/
func (p *Pipeline) Failed(jc *jobrt.Context, cause error) {
	if jc == nil || jc.Job == nil {
		return
	}
	var verr *apperr.ValidationError
	if errors.As(cause, &verr) {
		return
	}
	ctx := jc.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	p.generator.Release(ctx, jc.EntityID(), cause)
	jc.Log.Warn("Keyword released after failed generation", "keyword_id", jc.EntityID(), "error", cause)
}
