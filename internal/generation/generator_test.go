package generation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/seoflow-backend/internal/agentbridge"
	"github.com/yungbote/seoflow-backend/internal/data/repos"
	"github.com/yungbote/seoflow-backend/internal/data/repos/testutil"
	"github.com/yungbote/seoflow-backend/internal/domain"
	"github.com/yungbote/seoflow-backend/internal/events"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
)

type fakeAgents struct {
	calls  []string
	result map[string]string
	errs   map[string]error
}

func (f *fakeAgents) RunAgent(_ context.Context, agentType string, _ agentbridge.Args) (*agentbridge.Result, error) {
	f.calls = append(f.calls, agentType)
	if err := f.errs[agentType]; err != nil {
		return nil, err
	}
	return &agentbridge.Result{Agent: agentType, Raw: json.RawMessage(f.result[agentType])}, nil
}

type fixture struct {
	db   *gorm.DB
	set  *repos.Set
	kw   *domain.Keyword
	rec  *events.Recorder
	llm  *scriptedProvider
	gen  *Generator
	dbc  dbctx.Context
	site *domain.Site
}

func newFixture(t *testing.T, agents agentbridge.AgentRunner) *fixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	f := &fixture{db: db, set: repos.NewSet(db, log), rec: &events.Recorder{}, llm: newScripted(), dbc: dbctx.Context{Ctx: context.Background()}}
	f.site = testutil.SeedSite(t, db)
	f.kw = testutil.SeedKeyword(t, db, f.site.ID, "pour over coffee", 55)
	f.gen = NewGenerator(log, f.set, NewWriter(f.llm, log), agents, f.rec)
	return f
}

func (f *fixture) keyword(t *testing.T) *domain.Keyword {
	t.Helper()
	k, err := f.set.Keywords.GetByID(f.dbc, f.kw.ID)
	if err != nil || k == nil {
		t.Fatalf("keyword: %v", err)
	}
	return k
}

func (f *fixture) articleFor(t *testing.T) *domain.Article {
	t.Helper()
	list, err := f.set.Articles.ListBySite(f.dbc, f.site.ID, nil)
	if err != nil || len(list) != 1 {
		t.Fatalf("articles: %d %v", len(list), err)
	}
	return list[0]
}

func assertRunShape(t *testing.T, evs []events.AgentEvent, terminal events.EventType) {
	t.Helper()
	if len(evs) < 2 || evs[0].EventType != events.Started {
		t.Fatalf("events: %+v", evs)
	}
	terminals := 0
	for i, ev := range evs {
		if ev.EventType.Terminal() {
			terminals++
		}
		if i > 0 && ev.Timestamp < evs[i-1].Timestamp {
			t.Fatalf("timestamps went backwards at %d", i)
		}
	}
	if terminals != 1 || evs[len(evs)-1].EventType != terminal {
		t.Fatalf("want exactly one terminal %s event, got %+v", terminal, evs)
	}
}

func TestGenerateSuccess(t *testing.T) {
	f := newFixture(t, nil)
	entry := &domain.ScheduledArticle{SiteID: f.site.ID, KeywordID: f.kw.ID, ScheduledDate: time.Now().UTC(), Status: domain.SchedulePlanned}
	if err := f.db.Create(entry).Error; err != nil {
		t.Fatalf("seed schedule: %v", err)
	}

	a, err := f.gen.Generate(context.Background(), Request{KeywordID: f.kw.ID})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if a.Status != domain.ArticleReady || a.SEOScore != 87 || a.Slug != "pour-over-coffee" || a.MetaTitle != "Polished title" {
		t.Fatalf("article: %+v", a)
	}
	if a.GenerationCost < 0.0499 || a.InputTokens != 50 || a.OutputTokens != 100 {
		t.Fatalf("cost: %v in=%d out=%d", a.GenerationCost, a.InputTokens, a.OutputTokens)
	}
	if m := a.Models(); len(m) != 1 || m[0] != "fake/m1" {
		t.Fatalf("models: %v", m)
	}
	if k := f.keyword(t); k.Status != domain.KeywordCompleted {
		t.Fatalf("keyword status: %s", k.Status)
	}
	rows, _ := f.set.Schedule.ListBySite(f.dbc, f.site.ID, nil)
	if len(rows) != 1 || rows[0].Status != domain.ScheduleReady || rows[0].ArticleID == nil || *rows[0].ArticleID != a.ID {
		t.Fatalf("schedule: %+v", rows[0])
	}
	evs := f.rec.Events()
	assertRunShape(t, evs, events.Completed)
	for _, ev := range evs {
		if ev.ArticleID != a.ID || ev.AgentType != AgentType {
			t.Fatalf("event routed wrong: %+v", ev)
		}
	}
}

func TestGenerateNonFinalFailureReleasesKeyword(t *testing.T) {
	f := newFixture(t, nil)
	f.llm.errs[StepOutline] = &apperr.ExternalProviderError{Provider: "fake", StatusCode: 500, Err: errors.New("boom")}

	_, err := f.gen.Generate(context.Background(), Request{KeywordID: f.kw.ID})
	var pe *apperr.ExternalProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("want provider error, got %v", err)
	}
	k := f.keyword(t)
	if k.Status != domain.KeywordPending || k.LastError == "" {
		t.Fatalf("keyword after failure: %+v", k)
	}
	a := f.articleFor(t)
	if a.Status != domain.ArticleDraft || a.ErrorMessage != "" {
		t.Fatalf("non-final failure must not fail the article: %+v", a)
	}
	assertRunShape(t, f.rec.Events(), events.Error)

	// The retry reuses the same article row.
	delete(f.llm.errs, StepOutline)
	got, err := f.gen.Generate(context.Background(), Request{KeywordID: f.kw.ID})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got.ID != a.ID || got.Status != domain.ArticleReady {
		t.Fatalf("retry article: %+v", got)
	}
}

func TestGenerateFinalFailureMarksArticleFailed(t *testing.T) {
	f := newFixture(t, nil)
	f.llm.errs[StepResearch] = &apperr.ExternalProviderError{Provider: "fake", StatusCode: 429, Err: errors.New("rate limited")}

	if _, err := f.gen.Generate(context.Background(), Request{KeywordID: f.kw.ID, Final: true}); err == nil {
		t.Fatalf("expected error")
	}
	a := f.articleFor(t)
	if a.Status != domain.ArticleFailed || a.ErrorMessage == "" {
		t.Fatalf("article: %+v", a)
	}
	if k := f.keyword(t); k.Status != domain.KeywordPending {
		t.Fatalf("keyword: %s", k.Status)
	}
}

func TestGenerateRefusesClaimedKeyword(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.db.Model(&domain.Keyword{}).Where("id = ?", f.kw.ID).Update("status", domain.KeywordGenerating).Error; err != nil {
		t.Fatalf("update: %v", err)
	}
	_, err := f.gen.Generate(context.Background(), Request{KeywordID: f.kw.ID})
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want ValidationError, got %v", err)
	}
	if f.llm.count(StepOutline) != 0 {
		t.Fatalf("provider must not be called for a claimed keyword")
	}
}

func TestGenerateUsesAgents(t *testing.T) {
	agents := &fakeAgents{
		result: map[string]string{
			agentbridge.AgentCompetitorScan: `{"pages":[{"url":"https://a.example","title":"A","headings":["h"],"word_count":900}]}`,
			agentbridge.AgentResearch:       `{"brief":{"suggested_angle":"agent angle","target_word_count":1000}}`,
		},
	}
	f := newFixture(t, agents)
	a, err := f.gen.Generate(context.Background(), Request{KeywordID: f.kw.ID, CompetitorURLs: []string{"https://a.example"}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(agents.calls) != 2 || agents.calls[0] != agentbridge.AgentCompetitorScan || agents.calls[1] != agentbridge.AgentResearch {
		t.Fatalf("agent calls: %v", agents.calls)
	}
	if f.llm.count(StepResearch) != 0 {
		t.Fatalf("research should come from the agent")
	}
	if a.Status != domain.ArticleReady {
		t.Fatalf("article: %+v", a)
	}
}

func TestGenerateDegradesWhenResearchAgentFails(t *testing.T) {
	agents := &fakeAgents{errs: map[string]error{
		agentbridge.AgentResearch: &apperr.AgentProcessError{Agent: agentbridge.AgentResearch, ExitCode: 2},
	}}
	f := newFixture(t, agents)
	if _, err := f.gen.Generate(context.Background(), Request{KeywordID: f.kw.ID}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if f.llm.count(StepResearch) != 1 {
		t.Fatalf("research should fall back to the provider")
	}
}

func TestSlugify(t *testing.T) {
	if got := Slugify("  Best Pour-Over: 2026 Edition! "); got != "best-pour-over-2026-edition" {
		t.Fatalf("slug: %q", got)
	}
}

func TestGenerateClaimRecordsJobAndReleaseClearsIt(t *testing.T) {
	f := newFixture(t, nil)
	f.llm.errs[StepOutline] = &apperr.ExternalProviderError{Provider: "fake", StatusCode: 500, Err: errors.New("boom")}
	if _, err := f.gen.Generate(context.Background(), Request{KeywordID: f.kw.ID, JobID: "run-1"}); err == nil {
		t.Fatalf("expected error")
	}
	if k := f.keyword(t); k.Status != domain.KeywordPending || k.ClaimJobID != "" {
		t.Fatalf("released keyword = %+v", k)
	}

	// A crash leaves the claim behind; only the owning run may take it back.
	if err := f.db.Model(&domain.Keyword{}).Where("id = ?", f.kw.ID).
		Updates(map[string]interface{}{"status": domain.KeywordGenerating, "claim_job_id": "run-1"}).Error; err != nil {
		t.Fatalf("update: %v", err)
	}
	delete(f.llm.errs, StepOutline)
	_, err := f.gen.Generate(context.Background(), Request{KeywordID: f.kw.ID, JobID: "run-2"})
	var verr *apperr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("other run: want validation error, got %v", err)
	}
	a, err := f.gen.Generate(context.Background(), Request{KeywordID: f.kw.ID, JobID: "run-1"})
	if err != nil {
		t.Fatalf("owning run: %v", err)
	}
	if a.Status != domain.ArticleReady || f.keyword(t).Status != domain.KeywordCompleted {
		t.Fatalf("article %+v", a)
	}
}
