package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/seoflow-backend/internal/data/repos"
	"github.com/yungbote/seoflow-backend/internal/data/repos/jobs"
	"github.com/yungbote/seoflow-backend/internal/data/repos/testutil"
	"github.com/yungbote/seoflow-backend/internal/domain"
	"github.com/yungbote/seoflow-backend/internal/jobs/runtime"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
)

type flakyHandler struct {
	failFirst int
	maxAtt    int
	calls     atomic.Int32
	succeeded atomic.Int32
	failed    atomic.Int32
}

func (h *flakyHandler) Type() string { return runtime.JobArticleFactCheck }
func (h *flakyHandler) Policy() runtime.Policy {
	return runtime.Policy{MaxAttempts: h.maxAtt, Backoff: time.Minute, Timeout: time.Minute}
}
func (h *flakyHandler) Run(c *runtime.Context) error {
	n := int(h.calls.Add(1))
	if n <= h.failFirst {
		return &apperr.AgentProcessError{Agent: "fact_check", ExitCode: 1, Err: errors.New("exit status 1")}
	}
	h.succeeded.Add(1)
	return nil
}
func (h *flakyHandler) Failed(*runtime.Context, error) { h.failed.Add(1) }

type harness struct {
	db    *gorm.DB
	repo  repos.JobRunRepo
	enq   *runtime.QueueEnqueuer
	w     *Worker
	clock time.Time
}

func newHarness(t *testing.T, h runtime.Handler) *harness {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := jobs.NewJobRunRepo(db, log)
	reg := runtime.NewRegistry()
	if err := reg.Register(h); err != nil {
		t.Fatalf("Register: %v", err)
	}
	enq := runtime.NewEnqueuer(log, repo, reg)
	ex := runtime.NewExecutor(log, repo, reg, enq)
	hs := &harness{db: db, repo: repo, enq: enq, clock: time.Now().UTC()}
	hs.w = NewWorker(log, repo, ex, Config{Concurrency: 1})
	hs.w.now = func() time.Time { return hs.clock }
	return hs
}

func (hs *harness) enqueue(t *testing.T) *domain.JobRun {
	t.Helper()
	job, err := hs.enq.Enqueue(context.Background(), runtime.EnqueueRequest{
		JobType:    runtime.JobArticleFactCheck,
		EntityType: runtime.EntityArticle,
		EntityID:   11,
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return job
}

func (hs *harness) get(t *testing.T, job *domain.JobRun) *domain.JobRun {
	t.Helper()
	got, err := hs.repo.GetByID(dbctx.Context{Ctx: context.Background()}, job.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: %v", err)
	}
	return got
}

// step advances the clock past the backoff and runs one job.
func (hs *harness) step(t *testing.T) bool {
	t.Helper()
	hs.clock = hs.clock.Add(2 * time.Minute)
	ran, err := hs.w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	return ran
}

func TestRetryThenSucceed(t *testing.T) {
	h := &flakyHandler{failFirst: 2, maxAtt: 3}
	hs := newHarness(t, h)
	job := hs.enqueue(t)

	if !hs.step(t) {
		t.Fatalf("first attempt did not run")
	}
	got := hs.get(t, job)
	if got.Status != domain.JobQueued || got.Attempts != 1 || got.ErrorKind != string(apperr.KindAgentProcess) {
		t.Fatalf("after attempt 1: %+v", got)
	}
	if got.RunAt.Before(time.Now().UTC().Add(50 * time.Second)) {
		t.Fatalf("backoff not applied: run_at=%v", got.RunAt)
	}

	hs.step(t)
	hs.step(t)
	got = hs.get(t, job)
	if got.Status != domain.JobSucceeded || got.Attempts != 3 {
		t.Fatalf("after attempt 3: %+v", got)
	}
	if h.succeeded.Load() != 1 || h.failed.Load() != 0 {
		t.Fatalf("succeeded=%d failed hooks=%d", h.succeeded.Load(), h.failed.Load())
	}
	if hs.step(t) {
		t.Fatalf("nothing should be left to run")
	}
}

func TestExhaustionFailsOnce(t *testing.T) {
	h := &flakyHandler{failFirst: 100, maxAtt: 3}
	hs := newHarness(t, h)
	job := hs.enqueue(t)

	for i := 0; i < 5; i++ {
		hs.step(t)
	}
	got := hs.get(t, job)
	if got.Status != domain.JobFailed || got.Attempts != 3 || got.FinishedAt == nil {
		t.Fatalf("row: %+v", got)
	}
	if h.calls.Load() != 3 || h.failed.Load() != 1 {
		t.Fatalf("calls=%d failed hooks=%d", h.calls.Load(), h.failed.Load())
	}
}

func TestReapStaleRequeuesThenFails(t *testing.T) {
	h := &flakyHandler{maxAtt: 2}
	hs := newHarness(t, h)
	job := hs.enqueue(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}

	claim := func() {
		t.Helper()
		hs.clock = hs.clock.Add(2 * time.Minute)
		got, err := hs.repo.ClaimNextRunnable(dbc, hs.clock)
		if err != nil || got == nil {
			t.Fatalf("claim: %v %v", got, err)
		}
	}

	claim()
	hs.clock = hs.clock.Add(time.Hour)
	n, err := hs.w.ReapStale(ctx)
	if err != nil || n != 1 {
		t.Fatalf("ReapStale #1: n=%d err=%v", n, err)
	}
	if got := hs.get(t, job); got.Status != domain.JobQueued {
		t.Fatalf("stale job with attempts left should be requeued: %+v", got)
	}

	hs.clock = hs.clock.Add(time.Hour)
	claim()
	hs.clock = hs.clock.Add(time.Hour)
	if n, err := hs.w.ReapStale(ctx); err != nil || n != 1 {
		t.Fatalf("ReapStale #2: n=%d err=%v", n, err)
	}
	if got := hs.get(t, job); got.Status != domain.JobFailed {
		t.Fatalf("stale job out of attempts should fail: %+v", got)
	}
	if h.failed.Load() != 1 || h.calls.Load() != 0 {
		t.Fatalf("failed hooks=%d calls=%d", h.failed.Load(), h.calls.Load())
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	h := &flakyHandler{maxAtt: 1}
	hs := newHarness(t, h)
	hs.w.cfg.PollInterval = 10 * time.Millisecond
	hs.w.now = time.Now
	job := hs.enqueue(t)

	ctx, cancel := context.WithCancel(context.Background())
	hs.w.Start(ctx)
	deadline := time.Now().Add(5 * time.Second)
	for h.succeeded.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	hs.w.Wait()
	if got := hs.get(t, job); got.Status != domain.JobSucceeded {
		t.Fatalf("job: %+v", got)
	}
}
