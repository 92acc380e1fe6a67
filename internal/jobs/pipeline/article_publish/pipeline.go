package article_publish

import (
	"fmt"

	"github.com/yungbote/seoflow-backend/internal/domain"
	jobrt "github.com/yungbote/seoflow-backend/internal/jobs/runtime"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
	"github.com/yungbote/seoflow-backend/internal/publisher"
)

var publishable = []string{domain.ArticleReady, domain.ArticleApproved}

// Run pushes a ready or approved article to the site's CMS. Publishing an
// already published article is a no-op, so a retried job never posts twice
// once the status is stored.
func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	dbc := dbctx.Context{Ctx: jc.Ctx}
	article, err := p.articles.GetByID(dbc, jc.EntityID())
	if err != nil {
		return apperr.Persistence("article.get", err)
	}
	if article == nil {
		return apperr.Validation("article_id", fmt.Sprintf("article %d not found", jc.EntityID()))
	}
	switch article.Status {
	case domain.ArticlePublished:
		jc.Log.Info("Article already published", "article_id", article.ID, "url", article.PublishedURL)
		return nil
	case domain.ArticleReady, domain.ArticleApproved:
	default:
		return apperr.Validation("status", fmt.Sprintf("article %d is %s and cannot be published", article.ID, article.Status))
	}
	if p.publisher == nil {
		return apperr.Validation("publisher", "publishing is not configured")
	}
	site, err := p.sites.GetByID(dbc, article.SiteID)
	if err != nil {
		return apperr.Persistence("site.get", err)
	}
	if site == nil {
		return apperr.Validation("site_id", fmt.Sprintf("site %d not found", article.SiteID))
	}

	url, err := p.publisher.Publish(jc.Ctx, publisher.RequestFor(site, article))
	if err != nil {
		return err
	}
	now := p.now().UTC()
	won, err := p.articles.UpdateStatusFrom(dbc, article.ID, publishable, domain.ArticlePublished, map[string]interface{}{
		"published_url": url,
		"published_at":  now,
		"error_message": "",
	})
	if err != nil {
		return apperr.Persistence("article.publish", err)
	}
	if !won {
		jc.Log.Warn("Article changed status while publishing", "article_id", article.ID)
		return nil
	}
	if _, err := p.schedule.UpdateStatusByKeyword(dbc, article.KeywordID,
		[]string{domain.ScheduleReady}, domain.SchedulePublished, &article.ID); err != nil {
		jc.Log.Warn("Schedule update failed", "error", err)
	}
	jc.Log.Info("Article published", "article_id", article.ID, "url", url)

	jc.Chain(jobrt.EnqueueRequest{
		JobType:    jobrt.JobArticleIndex,
		EntityType: jobrt.EntityArticle,
		EntityID:   article.ID,
		Unique:     true,
	})
	return nil
}
