package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yungbote/seoflow-backend/internal/data/repos"
	"github.com/yungbote/seoflow-backend/internal/jobs/runtime"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
	"github.com/yungbote/seoflow-backend/internal/platform/envutil"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

type Config struct {
	Concurrency  int
	PollInterval time.Duration
	ReapInterval time.Duration
	// StaleGrace is added to a job's timeout before a silent running row is reaped.
	StaleGrace time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		Concurrency:  envutil.Int("WORKER_CONCURRENCY", 4),
		PollInterval: envutil.Millis("WORKER_POLL_INTERVAL_MS", time.Second),
		ReapInterval: envutil.Seconds("WORKER_REAP_INTERVAL_SECONDS", time.Minute),
		StaleGrace:   envutil.Seconds("WORKER_STALE_GRACE_SECONDS", 2*time.Minute),
	}
}

type Worker struct {
	log  *logger.Logger
	repo repos.JobRunRepo
	exec *runtime.Executor
	cfg  Config
	now  func() time.Time
	wg   sync.WaitGroup
}

func NewWorker(baseLog *logger.Logger, repo repos.JobRunRepo, exec *runtime.Executor, cfg Config) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = time.Minute
	}
	if cfg.StaleGrace <= 0 {
		cfg.StaleGrace = 2 * time.Minute
	}
	return &Worker{
		log:  baseLog.With("component", "JobWorker"),
		repo: repo,
		exec: exec,
		cfg:  cfg,
		now:  time.Now,
	}
}

// Start launches the pool and the stale-job reaper. Wait blocks until they
// have all returned after ctx is done.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting job worker pool", "concurrency", w.cfg.Concurrency)
	for i := 0; i < w.cfg.Concurrency; i++ {
		workerID := i + 1
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runLoop(ctx, workerID)
		}()
	}
	w.StartReaper(ctx)
}

// StartReaper runs only the stale-job reaper, for deployments where Temporal
// drives the attempts but rows can still be orphaned by a crashed activity.
func (w *Worker) StartReaper(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.reapLoop(ctx)
	}()
}

func (w *Worker) Wait() { w.wg.Wait() }

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			// Drain everything due before sleeping again.
			for ctx.Err() == nil {
				ran, err := w.RunOnce(ctx)
				if err != nil {
					w.log.Warn("Job claim failed", "worker_id", workerID, "error", err)
					break
				}
				if !ran {
					break
				}
			}
		}
	}
}

// RunOnce claims at most one due job, runs it and settles it.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, w.now().UTC())
	if err != nil {
		return false, apperr.Persistence("job.claim", err)
	}
	if job == nil {
		return false, nil
	}
	runErr := w.exec.Attempt(ctx, job)
	if _, err := w.exec.Settle(ctx, job, runErr); err != nil {
		w.log.Error("Job settlement failed", "job_id", job.ID, "job_type", job.JobType, "error", err)
	}
	return true, nil
}

func (w *Worker) reapLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := w.ReapStale(ctx); err != nil {
				w.log.Warn("Stale job reap failed", "error", err)
			} else if n > 0 {
				w.log.Warn("Reaped stale jobs", "count", n)
			}
		}
	}
}

// ReapStale settles running jobs whose heartbeat is older than their timeout
// plus the grace period, as if their last attempt had failed.
func (w *Worker) ReapStale(ctx context.Context) (int, error) {
	now := w.now().UTC()
	rows, err := w.repo.ListStaleRunning(dbctx.Context{Ctx: ctx}, now.Add(-w.cfg.StaleGrace), 100)
	if err != nil {
		return 0, apperr.Persistence("job.list_stale", err)
	}
	reaped := 0
	for _, job := range rows {
		last := job.RunAt
		if job.HeartbeatAt != nil {
			last = *job.HeartbeatAt
		}
		limit := time.Duration(job.TimeoutSeconds)*time.Second + w.cfg.StaleGrace
		if now.Sub(last) < limit {
			continue
		}
		out, err := w.exec.Settle(ctx, job, errStale)
		if err != nil {
			return reaped, err
		}
		if out != runtime.OutcomeLost {
			reaped++
		}
	}
	return reaped, nil
}

var errStale = errors.New("job stopped heartbeating")
