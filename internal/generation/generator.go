package generation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/yungbote/seoflow-backend/internal/agentbridge"
	"github.com/yungbote/seoflow-backend/internal/data/repos"
	"github.com/yungbote/seoflow-backend/internal/domain"
	"github.com/yungbote/seoflow-backend/internal/events"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

// AgentType is the agent name used for the writer's own progress events.
const AgentType = "article_writer"

type Request struct {
	KeywordID      uint
	CompetitorURLs []string
	// JobID names the job run holding the claim. A retry of the same run may
	// take the keyword back from generating after a crash.
	JobID string
	// Final marks the last attempt the job system will make.
	Final bool
}

type Generator struct {
	log      *logger.Logger
	sites    repos.SiteRepo
	keywords repos.KeywordRepo
	articles repos.ArticleRepo
	schedule repos.ScheduleRepo
	writer   *Writer
	agents   agentbridge.AgentRunner
	emitter  events.Emitter
}

// NewGenerator wires the article pipeline. agents may be nil, in which case
// research runs in-process and competitor pages are not scanned.
func NewGenerator(baseLog *logger.Logger, set *repos.Set, writer *Writer, agents agentbridge.AgentRunner, emitter events.Emitter) *Generator {
	if emitter == nil {
		emitter = events.Discard
	}
	return &Generator{
		log:      baseLog.With("component", "ArticleGenerator"),
		sites:    set.Sites,
		keywords: set.Keywords,
		articles: set.Articles,
		schedule: set.Schedule,
		writer:   writer,
		agents:   agents,
		emitter:  emitter,
	}
}

func (g *Generator) Generate(ctx context.Context, req Request) (*domain.Article, error) {
	dbc := dbctx.Context{Ctx: ctx}
	kw, err := g.keywords.GetByID(dbc, req.KeywordID)
	if err != nil {
		return nil, apperr.Persistence("keyword.get", err)
	}
	if kw == nil {
		return nil, apperr.Validation("keyword_id", fmt.Sprintf("keyword %d not found", req.KeywordID))
	}
	site, err := g.sites.GetByID(dbc, kw.SiteID)
	if err != nil {
		return nil, apperr.Persistence("site.get", err)
	}
	if site == nil {
		return nil, apperr.Validation("site_id", fmt.Sprintf("site %d not found", kw.SiteID))
	}

	won, err := TransitionKeyword(dbc, g.keywords, kw.ID,
		[]string{domain.KeywordPending, domain.KeywordQueued}, domain.KeywordGenerating,
		map[string]interface{}{"last_error": "", "claim_job_id": req.JobID})
	if err != nil {
		return nil, err
	}
	if !won && req.JobID != "" {
		if won, err = g.keywords.Reclaim(dbc, kw.ID, req.JobID); err != nil {
			return nil, apperr.Persistence("keyword.reclaim", err)
		}
		if won {
			g.log.Info("Keyword reclaimed by retried job", "keyword_id", kw.ID, "job_id", req.JobID)
		}
	}
	if !won {
		return nil, apperr.Validation("keyword_id", fmt.Sprintf("keyword %d is not available for generation (status %s)", kw.ID, kw.Status))
	}

	article, err := g.prepareArticle(dbc, kw)
	if err != nil {
		g.releaseKeyword(dbc, kw.ID, err)
		return nil, err
	}
	log := g.log.With("keyword_id", kw.ID, "article_id", article.ID)
	if _, err := g.schedule.UpdateStatusByKeyword(dbc, kw.ID,
		[]string{domain.SchedulePlanned}, domain.ScheduleGenerating, &article.ID); err != nil {
		log.Warn("Schedule update failed", "error", err)
	}

	run := events.NewRun(g.emitter, article.ID, AgentType)
	g.emit(log, run.Started(ctx, fmt.Sprintf("Writing article for %q", kw.Keyword)))

	brief := Brief{Keyword: kw.Keyword, SiteName: site.Name, Niche: site.Niche, Language: site.Language}
	g.gather(ctx, log, run, article.ID, &brief, req.CompetitorURLs)

	draft, err := g.writer.Write(ctx, brief, func(ctx context.Context, ev StepEvent) {
		if _, err := g.articles.RaiseCost(dbc, article.ID, ev.TotalCost, ev.InputTokens, ev.OutputTokens); err != nil {
			log.Warn("Cost update failed", "error", err)
		}
		msg := stepMessage(ev.Step)
		g.emit(log, run.Progress(ctx, msg, ev.Done, ev.Total, events.WithMetadata(map[string]any{
			"step":       ev.Step.Step,
			"provider":   ev.Step.Provider,
			"model":      ev.Step.Model,
			"step_cost":  ev.Step.Cost,
			"total_cost": ev.TotalCost,
		})))
	})
	if err != nil {
		return nil, g.fail(dbc, log, run, kw.ID, article.ID, err, req.Final)
	}

	updates := map[string]interface{}{
		"title":            draft.Title,
		"slug":             Slugify(kw.Keyword),
		"meta_title":       draft.MetaTitle,
		"meta_description": draft.MetaDescription,
		"content":          draft.Content,
		"status":           domain.ArticleReady,
		"word_count":       draft.WordCount,
		"llm_used":         domain.EncodeModels(draft.Models),
		"seo_score":        draft.SEOScore,
		"link_candidates":  domain.EncodeJSON(draft.LinkAnchors),
		"error_message":    "",
	}
	if err := g.articles.UpdateFields(dbc, article.ID, updates); err != nil {
		return nil, g.fail(dbc, log, run, kw.ID, article.ID, apperr.Persistence("article.save", err), req.Final)
	}
	if _, err := g.articles.RaiseCost(dbc, article.ID, draft.Cost, draft.InputTokens, draft.OutputTokens); err != nil {
		log.Warn("Final cost update failed", "error", err)
	}
	if _, err := TransitionKeyword(dbc, g.keywords, kw.ID, []string{domain.KeywordGenerating}, domain.KeywordCompleted, nil); err != nil {
		log.Warn("Keyword completion failed", "error", err)
	}
	if _, err := g.schedule.UpdateStatusByKeyword(dbc, kw.ID, []string{domain.ScheduleGenerating}, domain.ScheduleReady, &article.ID); err != nil {
		log.Warn("Schedule update failed", "error", err)
	}

	g.emit(log, run.Completed(ctx, "Article ready", events.WithMetadata(map[string]any{
		"word_count": draft.WordCount,
		"cost":       draft.Cost,
		"polished":   draft.Polished,
		"models":     draft.Models,
	})))
	log.Info("Article generated",
		"words", draft.WordCount,
		"cost", draft.Cost,
		"polished", draft.Polished,
	)
	return g.articles.GetByID(dbc, article.ID)
}

// Release undoes a claim after the job system gave up on the keyword. Both
// updates are conditional, so repeated calls are harmless.
func (g *Generator) Release(ctx context.Context, keywordID uint, cause error) {
	dbc := dbctx.Context{Ctx: ctx}
	msg := errorMessage(cause)
	g.releaseKeyword(dbc, keywordID, cause)
	if a, err := g.articles.GetReusableForKeyword(dbc, keywordID); err == nil && a != nil {
		if _, err := g.articles.UpdateStatusFrom(dbc, a.ID, []string{domain.ArticleDraft}, domain.ArticleFailed,
			map[string]interface{}{"error_message": msg}); err != nil {
			g.log.Warn("Marking article failed", "article_id", a.ID, "error", err)
		}
	}
}

func (g *Generator) prepareArticle(dbc dbctx.Context, kw *domain.Keyword) (*domain.Article, error) {
	a, err := g.articles.GetReusableForKeyword(dbc, kw.ID)
	if err != nil {
		return nil, apperr.Persistence("article.get", err)
	}
	if a != nil {
		err := g.articles.UpdateFields(dbc, a.ID, map[string]interface{}{
			"status":          domain.ArticleDraft,
			"error_message":   "",
			"generation_cost": 0,
			"input_tokens":    0,
			"output_tokens":   0,
		})
		if err != nil {
			return nil, apperr.Persistence("article.reset", err)
		}
		return a, nil
	}
	a = &domain.Article{
		SiteID:    kw.SiteID,
		KeywordID: kw.ID,
		Title:     titleCase(kw.Keyword),
		Slug:      Slugify(kw.Keyword),
		Status:    domain.ArticleDraft,
		LLMUsed:   domain.EncodeModels(nil),
	}
	if err := g.articles.Create(dbc, a); err != nil {
		return nil, apperr.Persistence("article.create", err)
	}
	return a, nil
}

// gather fills the brief from agents. Every failure degrades to in-process
// research instead of failing the run.
func (g *Generator) gather(ctx context.Context, log *logger.Logger, run *events.Run, articleID uint, b *Brief, urls []string) {
	if g.agents == nil {
		return
	}
	idFlag := map[string]string{"article-id": fmt.Sprint(articleID)}
	if len(urls) > 0 {
		g.emit(log, run.Step(ctx, fmt.Sprintf("Scanning %d competitor pages", len(urls))))
		res, err := g.agents.RunAgent(ctx, agentbridge.AgentCompetitorScan, agentbridge.Args{
			Flags: idFlag,
			JSON:  map[string]any{"urls": urls},
		})
		var perr *apperr.ProtocolError
		switch {
		case err == nil:
			b.Competitors = CompetitorDigest(res)
		case errors.As(err, &perr):
			b.Competitors = tailLines(perr.RawOutput, 40)
		default:
			log.Warn("Competitor scan failed", "error", err)
		}
	}

	res, err := g.agents.RunAgent(ctx, agentbridge.AgentResearch, agentbridge.Args{
		Flags: map[string]string{
			"article-id": fmt.Sprint(articleID),
			"keyword":    b.Keyword,
			"niche":      b.Niche,
			"language":   b.Language,
		},
		Files: map[string]string{"competitors": b.Competitors},
	})
	if err != nil {
		log.Warn("Research agent failed, researching in-process", "error", err)
		return
	}
	var out struct {
		Brief ResearchBrief `json:"brief"`
	}
	if err := res.Decode(&out); err != nil {
		log.Warn("Research agent result unreadable", "error", err)
		return
	}
	b.Research = &out.Brief
}

func (g *Generator) fail(dbc dbctx.Context, log *logger.Logger, run *events.Run, keywordID, articleID uint, cause error, final bool) error {
	// The job context may already be cancelled by its timeout.
	dbc = dbctx.Context{Ctx: context.WithoutCancel(dbc.Ctx)}
	msg := errorMessage(cause)
	g.emit(log, run.Fail(dbc.Ctx, msg, events.WithMetadata(map[string]any{
		"error_kind": string(apperr.KindOf(cause)),
		"final":      final,
	})))
	g.releaseKeyword(dbc, keywordID, cause)
	if _, err := g.schedule.UpdateStatusByKeyword(dbc, keywordID, []string{domain.ScheduleGenerating}, domain.SchedulePlanned, nil); err != nil {
		log.Warn("Schedule rollback failed", "error", err)
	}
	if final {
		if _, err := g.articles.UpdateStatusFrom(dbc, articleID, []string{domain.ArticleDraft}, domain.ArticleFailed,
			map[string]interface{}{"error_message": msg}); err != nil {
			log.Error("Marking article failed", "error", err)
		}
		log.Error("Article generation failed", "error", cause, "final", true)
	} else {
		log.Warn("Article generation attempt failed", "error", cause)
	}
	return cause
}

func (g *Generator) releaseKeyword(dbc dbctx.Context, keywordID uint, cause error) {
	if _, err := TransitionKeyword(dbc, g.keywords, keywordID,
		[]string{domain.KeywordGenerating}, domain.KeywordPending,
		map[string]interface{}{"last_error": errorMessage(cause), "claim_job_id": ""}); err != nil {
		g.log.Warn("Keyword release failed", "keyword_id", keywordID, "error", err)
	}
}

func (g *Generator) emit(log *logger.Logger, err error) {
	if err != nil {
		log.Warn("Progress event not delivered", "error", err)
	}
}

func stepMessage(sc StepCost) string {
	switch sc.Step {
	case StepResearch:
		return "Research complete"
	case StepOutline:
		return "Outline ready"
	case StepSection:
		return fmt.Sprintf("Section %d drafted", sc.Index)
	case StepPolish:
		return "Polish pass finished"
	default:
		return sc.Step
	}
}

// CompetitorDigest turns a competitor_scan result into prompt text.
func CompetitorDigest(res *agentbridge.Result) string {
	var out struct {
		Pages []struct {
			URL       string   `json:"url"`
			Title     string   `json:"title"`
			Headings  []string `json:"headings"`
			WordCount int      `json:"word_count"`
		} `json:"pages"`
	}
	if err := res.Decode(&out); err != nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range out.Pages {
		fmt.Fprintf(&sb, "- %s (%s, %d words): %s\n", p.Title, p.URL, p.WordCount, strings.Join(p.Headings, " | "))
	}
	return sb.String()
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return truncate(err.Error(), 500)
}

func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func Slugify(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}
