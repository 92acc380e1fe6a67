package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yungbote/seoflow-backend/internal/data/repos"
	"github.com/yungbote/seoflow-backend/internal/data/repos/testutil"
	"github.com/yungbote/seoflow-backend/internal/domain"
	"github.com/yungbote/seoflow-backend/internal/jobs/pipeline/pipelinetest"
	jobrt "github.com/yungbote/seoflow-backend/internal/jobs/runtime"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
)

type failingEnqueuer struct{}

func (failingEnqueuer) Enqueue(context.Context, jobrt.EnqueueRequest) (*domain.JobRun, error) {
	return nil, errors.New("queue down")
}

func TestSweepAnalyticsOnlyConnectedSites(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	connected := testutil.SeedSite(t, db)
	if err := db.Model(connected).Update("analytics_connected", true).Error; err != nil {
		t.Fatalf("connect: %v", err)
	}
	testutil.SeedSite(t, db)

	enq := &pipelinetest.Enqueuer{}
	s := New(log, repos.NewSet(db, log), enq, Config{})
	n, err := s.SweepAnalytics(context.Background())
	if err != nil {
		t.Fatalf("SweepAnalytics: %v", err)
	}
	if n != 1 || len(enq.Requests) != 1 {
		t.Fatalf("enqueued=%d requests=%v", n, enq.Types())
	}
	req := enq.Requests[0]
	if req.JobType != jobrt.JobAnalyticsSync || req.EntityID != connected.ID || !req.Unique {
		t.Fatalf("request = %+v", req)
	}
}

func seedEntry(t *testing.T, s *Scheduler, siteID, keywordID uint, day time.Time) {
	t.Helper()
	err := s.schedule.CreateMany(dbctx.Context{Ctx: context.Background()}, []*domain.ScheduledArticle{{
		SiteID:        siteID,
		KeywordID:     keywordID,
		ScheduledDate: day,
		Status:        domain.SchedulePlanned,
	}})
	if err != nil {
		t.Fatalf("seed entry: %v", err)
	}
}

func TestSweepDueQueuesPendingKeywords(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	site := testutil.SeedSite(t, db)
	due := testutil.SeedKeyword(t, db, site.ID, "espresso grinder", 70)
	busy := testutil.SeedKeyword(t, db, site.ID, "moka pot", 60)
	later := testutil.SeedKeyword(t, db, site.ID, "cold brew ratio", 50)
	if err := db.Model(busy).Update("status", domain.KeywordGenerating).Error; err != nil {
		t.Fatalf("busy: %v", err)
	}

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	enq := &pipelinetest.Enqueuer{}
	s := New(log, repos.NewSet(db, log), enq, Config{})
	s.now = func() time.Time { return now }
	seedEntry(t, s, site.ID, due.ID, now.AddDate(0, 0, -1))
	seedEntry(t, s, site.ID, busy.ID, now)
	seedEntry(t, s, site.ID, later.ID, now.AddDate(0, 0, 2))

	n, err := s.SweepDue(context.Background())
	if err != nil {
		t.Fatalf("SweepDue: %v", err)
	}
	if n != 1 || len(enq.Requests) != 1 {
		t.Fatalf("enqueued=%d requests=%+v", n, enq.Requests)
	}
	req := enq.Requests[0]
	if req.JobType != jobrt.JobArticleGenerate || req.EntityType != jobrt.EntityKeyword || req.EntityID != due.ID {
		t.Fatalf("request = %+v", req)
	}
	got, err := s.keywords.GetByID(dbctx.Context{Ctx: context.Background()}, due.ID)
	if err != nil || got.Status != domain.KeywordQueued {
		t.Fatalf("keyword = %+v err=%v", got, err)
	}

	// A second sweep finds the keyword already queued.
	if n, err := s.SweepDue(context.Background()); err != nil || n != 0 {
		t.Fatalf("second sweep: n=%d err=%v", n, err)
	}
}

func TestSweepDueReleasesKeywordWhenEnqueueFails(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	site := testutil.SeedSite(t, db)
	kw := testutil.SeedKeyword(t, db, site.ID, "espresso grinder", 70)

	s := New(log, repos.NewSet(db, log), failingEnqueuer{}, Config{})
	seedEntry(t, s, site.ID, kw.ID, time.Now().UTC())

	if n, err := s.SweepDue(context.Background()); err != nil || n != 0 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	got, err := s.keywords.GetByID(dbctx.Context{Ctx: context.Background()}, kw.ID)
	if err != nil || got.Status != domain.KeywordPending {
		t.Fatalf("keyword = %+v err=%v", got, err)
	}
}

func TestStartRejectsBadSpec(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	s := New(log, repos.NewSet(db, log), &pipelinetest.Enqueuer{}, Config{AnalyticsSpec: "not a spec"})
	if err := s.Start(context.Background()); err == nil {
		s.Stop()
		t.Fatalf("want error for bad spec")
	}
}
