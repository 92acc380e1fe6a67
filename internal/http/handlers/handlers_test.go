package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/seoflow-backend/internal/data/repos"
	"github.com/yungbote/seoflow-backend/internal/data/repos/testutil"
	"github.com/yungbote/seoflow-backend/internal/domain"
	"github.com/yungbote/seoflow-backend/internal/events"
	"github.com/yungbote/seoflow-backend/internal/jobs/pipeline/pipelinetest"
	jobrt "github.com/yungbote/seoflow-backend/internal/jobs/runtime"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
	"github.com/yungbote/seoflow-backend/internal/realtime"
)

type fixture struct {
	db     *gorm.DB
	set    *repos.Set
	enq    *pipelinetest.Enqueuer
	hub    *realtime.SSEHub
	router *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	log := testutil.Logger(t)
	f := &fixture{
		db:  db,
		set: repos.NewSet(db, log),
		enq: &pipelinetest.Enqueuer{},
		hub: realtime.NewSSEHub(log),
	}
	ev := NewArticleEventsHandler(log, f.set.Articles, f.set.AgentEvents, f.hub)
	kw := NewKeywordHandler(log, f.set.Keywords, f.enq)
	site := NewSiteHandler(f.set.Sites, f.enq)
	jobs := NewJobHandler(f.set.JobRuns)

	r := gin.New()
	r.GET("/healthcheck", NewHealthHandler(nil).HealthCheck)
	r.GET("/api/articles/:id/events", ev.History)
	r.GET("/api/articles/:id/events/stream", ev.Stream)
	r.POST("/api/keywords/:id/generate", kw.Generate)
	r.POST("/api/sites/:id/plan", site.Plan)
	r.POST("/api/sites/:id/discover", site.Discover)
	r.GET("/api/jobs/:id", jobs.GetJob)
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func seedEvents(t *testing.T, f *fixture, articleID uint, evs ...events.AgentEvent) {
	t.Helper()
	rows := make([]*domain.AgentEventRecord, 0, len(evs))
	for i, ev := range evs {
		ev.ArticleID = articleID
		ev.Timestamp = int64(1000 + i)
		rows = append(rows, ev.Record())
	}
	if err := f.set.AgentEvents.Create(dbctx.Context{Ctx: context.Background()}, rows); err != nil {
		t.Fatalf("seed events: %v", err)
	}
}

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthcheck", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("health = %d %q", rec.Code, rec.Body.String())
	}
}

type downDB struct{}

func (downDB) PingContext(context.Context) error { return errors.New("gone") }

func TestHealthCheckReportsDatabaseDown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/healthcheck", NewHealthHandler(downDB{}).HealthCheck)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestArticleEventHistoryWithActiveAgents(t *testing.T) {
	f := newFixture(t)
	site := testutil.SeedSite(t, f.db)
	article := testutil.SeedArticle(t, f.db, site.ID, 1, domain.ArticleDraft)
	seedEvents(t, f, article.ID,
		events.AgentEvent{AgentType: "research", EventType: events.Started, Message: "go", RunID: "r1", Seq: 1},
		events.AgentEvent{AgentType: "research", EventType: events.Completed, Message: "done", RunID: "r1", Seq: 2},
		events.AgentEvent{AgentType: "writer", EventType: events.Started, Message: "writing", RunID: "w1", Seq: 1},
	)

	rec := f.do(t, http.MethodGet, "/api/articles/"+itoa(article.ID)+"/events", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		ArticleID    uint                `json:"article_id"`
		Events       []events.AgentEvent `json:"events"`
		ActiveAgents []string            `json:"active_agents"`
	}
	decode(t, rec, &body)
	if body.ArticleID != article.ID || len(body.Events) != 3 {
		t.Fatalf("body = %+v", body)
	}
	if body.Events[0].Seq != 1 || body.Events[2].AgentType != "writer" {
		t.Fatalf("events out of order: %+v", body.Events)
	}
	if len(body.ActiveAgents) != 1 || body.ActiveAgents[0] != "writer" {
		t.Fatalf("active = %v", body.ActiveAgents)
	}
}

func TestArticleEventsNotFoundAndBadID(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(t, http.MethodGet, "/api/articles/999/events", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing article = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/articles/abc/events", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id = %d", rec.Code)
	}
}

func TestArticleEventStreamReplaysHistory(t *testing.T) {
	f := newFixture(t)
	site := testutil.SeedSite(t, f.db)
	article := testutil.SeedArticle(t, f.db, site.ID, 1, domain.ArticleDraft)
	seedEvents(t, f, article.ID,
		events.AgentEvent{AgentType: "writer", EventType: events.Started, Message: "writing", RunID: "w1", Seq: 1},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/articles/"+itoa(article.ID)+"/events/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	out := rec.Body.String()
	if !strings.Contains(out, "event: AgentEvent\n") || !strings.Contains(out, `"message":"writing"`) {
		t.Fatalf("stream = %q", out)
	}
	if n := f.hub.Subscribers(realtime.ArticleChannel(article.ID)); n != 0 {
		t.Fatalf("client not removed, subscribers = %d", n)
	}
}

func TestGenerateQueuesKeyword(t *testing.T) {
	f := newFixture(t)
	db := f.db
	site := testutil.SeedSite(t, db)
	kw := testutil.SeedKeyword(t, db, site.ID, "espresso grinder", 70)

	rec := f.do(t, http.MethodPost, "/api/keywords/"+itoa(kw.ID)+"/generate", `{"competitor_urls":["https://a.example/x"]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	req, ok := f.enq.Find(jobrt.JobArticleGenerate)
	if !ok || req.EntityType != jobrt.EntityKeyword || req.EntityID != kw.ID {
		t.Fatalf("requests = %+v", f.enq.Requests)
	}
	if urls, _ := req.Payload["competitor_urls"].([]string); len(urls) != 1 {
		t.Fatalf("payload = %+v", req.Payload)
	}
	got, _ := f.set.Keywords.GetByID(dbctx.Context{Ctx: context.Background()}, kw.ID)
	if got.Status != domain.KeywordQueued {
		t.Fatalf("status = %s", got.Status)
	}

	// The keyword is no longer pending.
	if rec := f.do(t, http.MethodPost, "/api/keywords/"+itoa(kw.ID)+"/generate", ""); rec.Code != http.StatusConflict {
		t.Fatalf("second request = %d", rec.Code)
	}
	if len(f.enq.Requests) != 1 {
		t.Fatalf("requests = %d", len(f.enq.Requests))
	}
}

func TestGenerateUnknownKeyword(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(t, http.MethodPost, "/api/keywords/42/generate", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSitePlanAndDiscover(t *testing.T) {
	f := newFixture(t)
	db := f.db
	site := testutil.SeedSite(t, db)

	if rec := f.do(t, http.MethodPost, "/api/sites/"+itoa(site.ID)+"/plan", ""); rec.Code != http.StatusAccepted {
		t.Fatalf("plan = %d", rec.Code)
	}
	rec := f.do(t, http.MethodPost, "/api/sites/"+itoa(site.ID)+"/discover", `{"seeds":["grinders"],"limit":10}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("discover = %d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		Job domain.JobRun `json:"job"`
	}
	decode(t, rec, &body)
	if body.Job.ID == uuid.Nil || body.Job.JobType != jobrt.JobKeywordDiscovery {
		t.Fatalf("job = %+v", body.Job)
	}

	plan, ok := f.enq.Find(jobrt.JobContentPlanBuild)
	if !ok || !plan.Unique || plan.EntityID != site.ID {
		t.Fatalf("plan request = %+v", plan)
	}
	disc, _ := f.enq.Find(jobrt.JobKeywordDiscovery)
	if disc.Payload["limit"] != 10 {
		t.Fatalf("discover payload = %+v", disc.Payload)
	}

	if rec := f.do(t, http.MethodPost, "/api/sites/"+itoa(site.ID)+"/discover", `{"limit":500}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("limit over max = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/sites/777/plan", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown site = %d", rec.Code)
	}
}

func TestGetJob(t *testing.T) {
	f := newFixture(t)
	created, err := f.set.JobRuns.Create(dbctx.Context{Ctx: context.Background()}, []*domain.JobRun{{
		JobType:    jobrt.JobAnalyticsSync,
		EntityType: jobrt.EntitySite,
		EntityID:   3,
	}})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	rec := f.do(t, http.MethodGet, "/api/jobs/"+created[0].ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Job domain.JobRun `json:"job"`
	}
	decode(t, rec, &body)
	if body.Job.ID != created[0].ID || body.Job.Status != domain.JobQueued {
		t.Fatalf("job = %+v", body.Job)
	}

	if rec := f.do(t, http.MethodGet, "/api/jobs/"+uuid.NewString(), ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing job = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/jobs/nope", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id = %d", rec.Code)
	}
}
