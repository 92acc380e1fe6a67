package article_fact_check

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/yungbote/seoflow-backend/internal/agentbridge"
	"github.com/yungbote/seoflow-backend/internal/data/repos"
	"github.com/yungbote/seoflow-backend/internal/data/repos/testutil"
	"github.com/yungbote/seoflow-backend/internal/domain"
	"github.com/yungbote/seoflow-backend/internal/jobs/pipeline/pipelinetest"
	jobrt "github.com/yungbote/seoflow-backend/internal/jobs/runtime"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
)

type fakeAgent struct {
	raw  string
	err  error
	args agentbridge.Args
}

func (f *fakeAgent) RunAgent(_ context.Context, agentType string, args agentbridge.Args) (*agentbridge.Result, error) {
	f.args = args
	if f.err != nil {
		return nil, f.err
	}
	return &agentbridge.Result{Agent: agentType, Raw: json.RawMessage(f.raw)}, nil
}

type fixture struct {
	set     *repos.Set
	article *domain.Article
	dbc     dbctx.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	set := repos.NewSet(db, testutil.Logger(t))
	site := testutil.SeedSite(t, db)
	kw := testutil.SeedKeyword(t, db, site.ID, "espresso grinder", 50)
	a := testutil.SeedArticle(t, db, site.ID, kw.ID, domain.ArticleReady)
	if err := db.Model(a).Update("content", "<p>Grinders were invented in 1920.</p>").Error; err != nil {
		t.Fatalf("content: %v", err)
	}
	return &fixture{set: set, article: a, dbc: dbctx.Context{Ctx: context.Background()}}
}

func (f *fixture) reload(t *testing.T) (*domain.Article, report) {
	t.Helper()
	a, err := f.set.Articles.GetByID(f.dbc, f.article.ID)
	if err != nil || a == nil {
		t.Fatalf("article: %v", err)
	}
	var rep report
	if len(a.FactCheck) > 0 {
		if err := json.Unmarshal(a.FactCheck, &rep); err != nil {
			t.Fatalf("fact_check json: %v", err)
		}
	}
	return a, rep
}

func TestRunMovesArticleWithIssuesToReview(t *testing.T) {
	f := newFixture(t)
	agent := &fakeAgent{raw: `{"claims":2,"checks":[{"claim":"a","verdict":"supported"},{"claim":"b","verdict":"incorrect"}],"issues":[{"claim":"b","verdict":"incorrect","suggestion":"1935"}],"cost":0.02}`}
	p := New(testutil.Logger(t), f.set, agent, nil, nil)
	enq := &pipelinetest.Enqueuer{}
	if err := p.Run(pipelinetest.Context(t, enq, p.Type(), jobrt.EntityArticle, f.article.ID, nil)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if agent.args.Flags["keyword"] != "espresso grinder" || agent.args.Files["article"] == "" {
		t.Fatalf("agent args = %+v", agent.args)
	}
	a, rep := f.reload(t)
	if a.Status != domain.ArticleReview {
		t.Fatalf("status = %s, want review", a.Status)
	}
	if !rep.Checked || rep.Claims != 2 || len(rep.Issues) != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if a.GenerationCost < 0.0199 {
		t.Fatalf("cost = %v", a.GenerationCost)
	}
	if _, ok := enq.Find(jobrt.JobArticleLinkInsert); !ok {
		t.Fatalf("link insert not chained: %v", enq.Types())
	}
}

func TestRunCleanArticleStaysReady(t *testing.T) {
	f := newFixture(t)
	p := New(testutil.Logger(t), f.set, &fakeAgent{raw: `{"claims":1,"issues":[],"cost":0}`}, nil, nil)
	if err := p.Run(pipelinetest.Context(t, &pipelinetest.Enqueuer{}, p.Type(), jobrt.EntityArticle, f.article.ID, nil)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if a, _ := f.reload(t); a.Status != domain.ArticleReady {
		t.Fatalf("status = %s", a.Status)
	}
}

func TestRunKeepsRawOutputOnProtocolError(t *testing.T) {
	f := newFixture(t)
	agent := &fakeAgent{err: &apperr.ProtocolError{Agent: agentbridge.AgentFactCheck, RawOutput: "thinking...\nno json here\n"}}
	p := New(testutil.Logger(t), f.set, agent, nil, nil)
	enq := &pipelinetest.Enqueuer{}
	if err := p.Run(pipelinetest.Context(t, enq, p.Type(), jobrt.EntityArticle, f.article.ID, nil)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	a, rep := f.reload(t)
	if !rep.Degraded || rep.Raw != "thinking...\nno json here" || a.Status != domain.ArticleReady {
		t.Fatalf("report = %+v status = %s", rep, a.Status)
	}
	if len(enq.Types()) != 1 {
		t.Fatalf("chained = %v", enq.Types())
	}
}

func TestRunReturnsAgentFailure(t *testing.T) {
	f := newFixture(t)
	p := New(testutil.Logger(t), f.set, &fakeAgent{err: errors.New("exit status 1")}, nil, nil)
	enq := &pipelinetest.Enqueuer{}
	if err := p.Run(pipelinetest.Context(t, enq, p.Type(), jobrt.EntityArticle, f.article.ID, nil)); err == nil {
		t.Fatalf("expected error")
	}
	if len(enq.Types()) != 0 {
		t.Fatalf("chained = %v", enq.Types())
	}
}

func TestFailedRecordsErrorAndChainsLinks(t *testing.T) {
	f := newFixture(t)
	p := New(testutil.Logger(t), f.set, nil, nil, nil)
	enq := &pipelinetest.Enqueuer{}
	jc := pipelinetest.Final(pipelinetest.Context(t, enq, p.Type(), jobrt.EntityArticle, f.article.ID, nil))
	p.Failed(jc, errors.New("agent timed out"))
	if _, rep := f.reload(t); rep.Error != "agent timed out" {
		t.Fatalf("report = %+v", rep)
	}
	if _, ok := enq.Find(jobrt.JobArticleLinkInsert); !ok {
		t.Fatalf("link insert not chained")
	}
}

func TestRunSkipsArticlesNotReady(t *testing.T) {
	f := newFixture(t)
	if _, err := f.set.Articles.UpdateStatusFrom(f.dbc, f.article.ID, nil, domain.ArticlePublished, nil); err != nil {
		t.Fatalf("status: %v", err)
	}
	agent := &fakeAgent{}
	p := New(testutil.Logger(t), f.set, agent, nil, nil)
	enq := &pipelinetest.Enqueuer{}
	if err := p.Run(pipelinetest.Context(t, enq, p.Type(), jobrt.EntityArticle, f.article.ID, nil)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if agent.args.Flags != nil || len(enq.Types()) != 0 {
		t.Fatalf("published article was checked")
	}
}
