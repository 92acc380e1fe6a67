package article_index

import (
	"errors"
	"fmt"

	"github.com/yungbote/seoflow-backend/internal/domain"
	jobrt "github.com/yungbote/seoflow-backend/internal/jobs/runtime"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
	"github.com/yungbote/seoflow-backend/internal/publisher/indexing"
)

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
	if article.Status != domain.ArticlePublished || article.PublishedURL == "" {
		return apperr.Validation("status", fmt.Sprintf("article %d has no published url", article.ID))
	}
	if article.IndexedAt != nil {
		return nil
	}
	if p.indexer == nil {
		jc.Log.Info("Indexing not configured", "article_id", article.ID)
		return nil
	}

	err = p.indexer.Submit(jc.Ctx, []string{article.PublishedURL})
	if errors.Is(err, indexing.ErrDisabled) {
		jc.Log.Info("Indexing disabled", "article_id", article.ID)
		return nil
	}
	if err != nil {
		return err
	}
	if err := p.articles.UpdateFields(dbc, article.ID, map[string]interface{}{
		"indexed_at": p.now().UTC(),
	}); err != nil {
		return apperr.Persistence("article.indexed", err)
	}
	jc.Log.Info("Indexing requested", "article_id", article.ID, "url", article.PublishedURL)
	return nil
}
