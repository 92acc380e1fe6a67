package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/seoflow-backend/internal/data/repos/testutil"
	"github.com/yungbote/seoflow-backend/internal/domain"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
)

func newJob(jobType string, maxAttempts int, runAt time.Time) *domain.JobRun {
	return &domain.JobRun{
		JobType:        jobType,
		EntityType:     "keyword",
		EntityID:       7,
		Status:         domain.JobQueued,
		MaxAttempts:    maxAttempts,
		BackoffSeconds: 60,
		TimeoutSeconds: 600,
		RunAt:          runAt,
	}
}

func TestJobRunRepoClaimOrderAndAttempts(t *testing.T) {
	db := testutil.DB(t)
	repo := NewJobRunRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	now := time.Now().UTC()
	older := newJob("a", 3, now.Add(-2*time.Minute))
	newer := newJob("b", 3, now.Add(-1*time.Minute))
	future := newJob("c", 3, now.Add(time.Hour))
	if _, err := repo.Create(dbc, []*domain.JobRun{newer, older, future}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, err := repo.ClaimNextRunnable(dbc, now)
	if err != nil || first == nil {
		t.Fatalf("ClaimNextRunnable #1: job=%v err=%v", first, err)
	}
	if first.ID != older.ID {
		t.Fatalf("expected oldest run_at first: want=%v got=%v", older.ID, first.ID)
	}
	if first.Attempts != 1 || first.Status != domain.JobRunning {
		t.Fatalf("claimed row: attempts=%d status=%s", first.Attempts, first.Status)
	}

	second, err := repo.ClaimNextRunnable(dbc, now)
	if err != nil || second == nil || second.ID != newer.ID {
		t.Fatalf("ClaimNextRunnable #2: job=%v err=%v", second, err)
	}

	none, err := repo.ClaimNextRunnable(dbc, now)
	if err != nil {
		t.Fatalf("ClaimNextRunnable #3: %v", err)
	}
	if none != nil {
		t.Fatalf("future job must not be claimed, got %v", none.ID)
	}
}

func TestJobRunRepoTransitionsAreCompareAndSwap(t *testing.T) {
	db := testutil.DB(t)
	repo := NewJobRunRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	now := time.Now().UTC()
	job := newJob("a", 1, now.Add(-time.Second))
	if _, err := repo.Create(dbc, []*domain.JobRun{job}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	claimed, err := repo.ClaimNextRunnable(dbc, now)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v %v", claimed, err)
	}

	// attempts == max_attempts: requeue is refused.
	ok, err := repo.Requeue(dbc, job.ID, now, "boom", "agent_process")
	if err != nil || ok {
		t.Fatalf("Requeue past budget: ok=%v err=%v", ok, err)
	}

	ok, err = repo.MarkFailed(dbc, job.ID, "boom", "agent_process")
	if err != nil || !ok {
		t.Fatalf("MarkFailed #1: ok=%v err=%v", ok, err)
	}
	ok, err = repo.MarkFailed(dbc, job.ID, "boom", "agent_process")
	if err != nil || ok {
		t.Fatalf("MarkFailed #2 must be a no-op: ok=%v err=%v", ok, err)
	}

	got, err := repo.GetByID(dbc, job.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: %v %v", got, err)
	}
	if got.Status != domain.JobFailed || got.Attempts != 1 || got.ErrorKind != "agent_process" {
		t.Fatalf("final row: status=%s attempts=%d kind=%s", got.Status, got.Attempts, got.ErrorKind)
	}
	if got.Attempts > got.MaxAttempts {
		t.Fatalf("attempts exceeded max: %d > %d", got.Attempts, got.MaxAttempts)
	}
}

func TestJobRunRepoRequeueAndStale(t *testing.T) {
	db := testutil.DB(t)
	repo := NewJobRunRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	now := time.Now().UTC()
	job := newJob("a", 3, now.Add(-time.Second))
	if _, err := repo.Create(dbc, []*domain.JobRun{job}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := repo.ClaimNextRunnable(dbc, now); err != nil {
		t.Fatalf("claim: %v", err)
	}

	stale, err := repo.ListStaleRunning(dbc, now.Add(time.Minute), 10)
	if err != nil || len(stale) != 1 {
		t.Fatalf("ListStaleRunning: n=%d err=%v", len(stale), err)
	}

	ok, err := repo.Requeue(dbc, job.ID, now.Add(time.Hour), "later", "external_provider")
	if err != nil || !ok {
		t.Fatalf("Requeue: ok=%v err=%v", ok, err)
	}
	if c, _ := repo.ClaimNextRunnable(dbc, now); c != nil {
		t.Fatalf("requeued job must wait for run_at")
	}
	c, err := repo.ClaimNextRunnable(dbc, now.Add(2*time.Hour))
	if err != nil || c == nil || c.Attempts != 2 {
		t.Fatalf("claim after backoff: job=%v err=%v", c, err)
	}

	busy, err := repo.HasRunnableForEntity(dbc, "keyword", 7, "a")
	if err != nil || !busy {
		t.Fatalf("HasRunnableForEntity: busy=%v err=%v", busy, err)
	}
}

func TestJobRunRepoClaimByID(t *testing.T) {
	db := testutil.DB(t)
	repo := NewJobRunRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	j := newJob("a", 1, time.Now().UTC().Add(time.Hour))
	if _, err := repo.Create(dbc, []*domain.JobRun{j}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.ClaimByID(dbc, j.ID, time.Now().UTC())
	if err != nil || got == nil || got.Status != domain.JobRunning || got.Attempts != 1 {
		t.Fatalf("ClaimByID: job=%+v err=%v", got, err)
	}
	again, err := repo.ClaimByID(dbc, j.ID, time.Now().UTC())
	if err != nil || again != nil {
		t.Fatalf("second claim must miss: job=%v err=%v", again, err)
	}
}
