package article_link_insert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/seoflow-backend/internal/agentbridge"
	"github.com/yungbote/seoflow-backend/internal/agents"
	"github.com/yungbote/seoflow-backend/internal/domain"
	"github.com/yungbote/seoflow-backend/internal/events"
	jobrt "github.com/yungbote/seoflow-backend/internal/jobs/runtime"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
	"github.com/yungbote/seoflow-backend/internal/seo/linking"
)

var linkable = []string{domain.ArticleReady, domain.ArticleReview, domain.ArticleApproved, domain.ArticlePublished}

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
	if article.Status != domain.ArticleReady && article.Status != domain.ArticleReview {
		jc.Log.Info("Link insertion skipped", "article_id", article.ID, "status", article.Status)
		return nil
	}
	site, err := p.sites.GetByID(dbc, article.SiteID)
	if err != nil {
		return apperr.Persistence("site.get", err)
	}
	if site == nil {
		return apperr.Validation("site_id", fmt.Sprintf("site %d not found", article.SiteID))
	}

	targets, err := p.targets(dbc, site, article.ID)
	if err != nil {
		return err
	}
	var suggestions []linking.Suggestion
	if len(article.LinkCandidates) > 0 {
		if err := json.Unmarshal(article.LinkCandidates, &suggestions); err != nil {
			jc.Log.Warn("Stored link candidates unreadable", "error", err)
		}
	}
	in := agents.LinkInput{Content: article.Content, Targets: targets, Suggestions: suggestions, Options: p.opts}

	out, err := p.insert(jc, article.ID, in)
	if err != nil {
		return err
	}
	rep := linking.Report{Placed: out.Placed, Rejected: out.Rejected}
	updates := map[string]interface{}{
		"content":     out.Content,
		"link_report": domain.EncodeJSON(rep),
	}
	if err := p.articles.UpdateFields(dbc, article.ID, updates); err != nil {
		return apperr.Persistence("article.save", err)
	}
	jc.Log.Info("Internal links inserted",
		"article_id", article.ID,
		"targets", len(targets),
		"placed", len(out.Placed),
		"rejected", len(out.Rejected),
	)

	if site.AutoPublish && article.Status == domain.ArticleReady {
		jc.Chain(jobrt.EnqueueRequest{
			JobType:    jobrt.JobArticlePublish,
			EntityType: jobrt.EntityArticle,
			EntityID:   article.ID,
			Unique:     true,
		})
	}
	return nil
}

// targets are the site's other finished articles that have a URL.
func (p *Pipeline) targets(dbc dbctx.Context, site *domain.Site, self uint) ([]linking.Target, error) {
	list, err := p.articles.ListBySite(dbc, site.ID, linkable)
	if err != nil {
		return nil, apperr.Persistence("article.list", err)
	}
	ids := make([]uint, 0, len(list))
	for _, a := range list {
		ids = append(ids, a.KeywordID)
	}
	kws, err := p.keywords.GetByIDs(dbc, ids)
	if err != nil {
		return nil, apperr.Persistence("keyword.list", err)
	}
	byID := make(map[uint]string, len(kws))
	for _, k := range kws {
		byID[k.ID] = k.Keyword
	}

	out := make([]linking.Target, 0, len(list))
	for _, a := range list {
		if a.ID == self {
			continue
		}
		url := strings.TrimSpace(a.PublishedURL)
		if url == "" && a.Slug != "" && site.BaseURL() != "" {
			url = site.BaseURL() + "/" + a.Slug
		}
		if url == "" {
			continue
		}
		out = append(out, linking.Target{URL: url, Title: a.Title, Keyword: byID[a.KeywordID]})
	}
	return out, nil
}

// insert prefers the agent process and falls back to placing links in-process
// when no runner is configured or the agent's answer is unreadable.
func (p *Pipeline) insert(jc *jobrt.Context, articleID uint, in agents.LinkInput) (*agents.LinkOutput, error) {
	if p.agents != nil {
		targets, _ := json.Marshal(in.Targets)
		suggestions, _ := json.Marshal(in.Suggestions)
		res, err := p.agents.RunAgent(jc.Ctx, agentbridge.AgentLinkInsert, agentbridge.Args{
			Flags: map[string]string{"article-id": fmt.Sprint(articleID)},
			Files: map[string]string{
				"article":     in.Content,
				"targets":     string(targets),
				"suggestions": string(suggestions),
			},
			JSON: map[string]any{"options": in.Options},
		})
		var perr *apperr.ProtocolError
		switch {
		case err == nil:
			var out agents.LinkOutput
			if derr := res.Decode(&out); derr == nil && strings.TrimSpace(out.Content) != "" {
				return &out, nil
			}
			jc.Log.Warn("Link agent result unreadable, placing in-process")
		case errors.As(err, &perr):
			jc.Log.Warn("Link agent returned no result, placing in-process", "error", err)
		default:
			return nil, err
		}
	}

	run := events.NewRun(p.emitter, articleID, agentbridge.AgentLinkInsert)
	_ = run.Started(jc.Ctx, "Placing internal links")
	out, err := agents.InsertLinks(jc.Ctx, run, in)
	if err != nil {
		_ = run.Fail(context.WithoutCancel(jc.Ctx), err.Error(), events.WithMetadata(map[string]any{
			"error_kind": string(apperr.KindOf(err)),
		}))
		return nil, err
	}
	_ = run.Completed(jc.Ctx, fmt.Sprintf("Placed %d internal links", len(out.Placed)))
	return out, nil
}
