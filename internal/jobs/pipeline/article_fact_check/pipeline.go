package article_fact_check

import (
	"context"
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
)

// report is what gets stored in article.fact_check.
type report struct {
	Checked  bool                `json:"checked"`
	Claims   int                 `json:"claims"`
	Issues   []agents.ClaimCheck `json:"issues"`
	Checks   []agents.ClaimCheck `json:"checks,omitempty"`
	Cost     float64             `json:"cost"`
	Degraded bool                `json:"degraded,omitempty"`
	Raw      string              `json:"raw,omitempty"`
	Error    string              `json:"error,omitempty"`
}

/*
Run checks a ready article and always moves on to link insertion:
	- issues found -> article goes to review
	- agent answered without a parseable result -> raw output tail is kept
	- nothing configured -> article passes unchecked
*/
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
	if article.Status != domain.ArticleReady {
		jc.Log.Info("Fact check skipped", "article_id", article.ID, "status", article.Status)
		return nil
	}
	kw, err := p.keywords.GetByID(dbc, article.KeywordID)
	if err != nil {
		return apperr.Persistence("keyword.get", err)
	}
	keyword := article.Title
	if kw != nil {
		keyword = kw.Keyword
	}

	rep, err := p.check(jc.Ctx, article, keyword)
	if err != nil {
		return err
	}
	updates := map[string]interface{}{"fact_check": domain.EncodeJSON(rep)}
	if err := p.articles.UpdateFields(dbc, article.ID, updates); err != nil {
		return apperr.Persistence("article.save", err)
	}
	if rep.Cost > 0 {
		if _, err := p.articles.RaiseCost(dbc, article.ID, article.GenerationCost+rep.Cost,
			article.InputTokens, article.OutputTokens); err != nil {
			jc.Log.Warn("Cost update failed", "error", err)
		}
	}
	if len(rep.Issues) > 0 {
		if _, err := p.articles.UpdateStatusFrom(dbc, article.ID,
			[]string{domain.ArticleReady}, domain.ArticleReview, nil); err != nil {
			return apperr.Persistence("article.review", err)
		}
	}
	jc.Log.Info("Fact check done",
		"article_id", article.ID,
		"claims", rep.Claims,
		"issues", len(rep.Issues),
		"degraded", rep.Degraded,
	)
	p.chainLinks(jc, article.ID)
	return nil
}

func (p *Pipeline) check(ctx context.Context, article *domain.Article, keyword string) (*report, error) {
	if p.agents != nil {
		res, err := p.agents.RunAgent(ctx, agentbridge.AgentFactCheck, agentbridge.Args{
			Flags: map[string]string{
				"article-id": fmt.Sprint(article.ID),
				"keyword":    keyword,
			},
			Files: map[string]string{"article": article.Content},
		})
		var perr *apperr.ProtocolError
		if errors.As(err, &perr) {
			return &report{Degraded: true, Raw: tail(perr.RawOutput, rawTailLines)}, nil
		}
		if err != nil {
			return nil, err
		}
		var out agents.FactCheckOutput
		if err := res.Decode(&out); err != nil {
			return &report{Degraded: true, Raw: tail(res.Stdout, rawTailLines)}, nil
		}
		return fromOutput(&out), nil
	}
	if p.checker != nil {
		run := events.NewRun(p.emitter, article.ID, agentbridge.AgentFactCheck)
		_ = run.Started(ctx, "Checking facts")
		out, err := p.checker.Check(ctx, run, keyword, article.Content)
		if err != nil {
			_ = run.Fail(context.WithoutCancel(ctx), err.Error(), events.WithMetadata(map[string]any{
				"error_kind": string(apperr.KindOf(err)),
			}))
			return nil, err
		}
		_ = run.Completed(ctx, fmt.Sprintf("%d claims checked, %d issues", out.Claims, len(out.Issues)))
		return fromOutput(out), nil
	}
	return &report{}, nil
}

// Failed keeps the pipeline moving: the error is recorded on the article and
// links are still inserted.
func (p *Pipeline) Failed(jc *jobrt.Context, cause error) {
	if jc == nil || jc.Job == nil {
		return
	}
	var verr *apperr.ValidationError
	if errors.As(cause, &verr) {
		return
	}
	dbc := dbctx.Context{Ctx: context.WithoutCancel(jc.Ctx)}
	rep := &report{Error: cause.Error()}
	if err := p.articles.UpdateFields(dbc, jc.EntityID(), map[string]interface{}{
		"fact_check": domain.EncodeJSON(rep),
	}); err != nil {
		jc.Log.Warn("Recording fact check failure", "error", err)
	}
	p.chainLinks(jc, jc.EntityID())
}

func (p *Pipeline) chainLinks(jc *jobrt.Context, articleID uint) {
	jc.Chain(jobrt.EnqueueRequest{
		JobType:    jobrt.JobArticleLinkInsert,
		EntityType: jobrt.EntityArticle,
		EntityID:   articleID,
		Unique:     true,
	})
}

func fromOutput(out *agents.FactCheckOutput) *report {
	issues := out.Issues
	if issues == nil {
		issues = []agents.ClaimCheck{}
	}
	return &report{Checked: true, Claims: out.Claims, Issues: issues, Checks: out.Checks, Cost: out.Cost}
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
