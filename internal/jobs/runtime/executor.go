package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/seoflow-backend/internal/data/repos"
	"github.com/yungbote/seoflow-backend/internal/domain"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/ctxutil"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeRequeued  Outcome = "requeued"
	OutcomeFailed    Outcome = "failed"
	// OutcomeLost means another actor settled the row first.
	OutcomeLost Outcome = "lost"
)

const failureHookTimeout = time.Minute

// Executor runs one attempt of a claimed job and settles the row. The queue
// worker and the Temporal activities share it.
type Executor struct {
	log       *logger.Logger
	repo      repos.JobRunRepo
	registry  *Registry
	enqueue   Enqueuer
	heartbeat time.Duration
	now       func() time.Time
}

func NewExecutor(baseLog *logger.Logger, repo repos.JobRunRepo, registry *Registry, enq Enqueuer) *Executor {
	return &Executor{
		log:       baseLog.With("component", "JobExecutor"),
		repo:      repo,
		registry:  registry,
		enqueue:   enq,
		heartbeat: 30 * time.Second,
		now:       time.Now,
	}
}

func (e *Executor) SetHeartbeat(d time.Duration) {
	if d > 0 {
		e.heartbeat = d
	}
}

func (e *Executor) jobLog(job *domain.JobRun) *logger.Logger {
	return e.log.With("job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts, "max_attempts", job.MaxAttempts)
}

// Attempt runs the handler once under the job's timeout. Panics become errors.
func (e *Executor) Attempt(ctx context.Context, job *domain.JobRun) (err error) {
	h, ok := e.registry.Get(job.JobType)
	if !ok {
		return apperr.Validation("job_type", fmt.Sprintf("no handler registered for job_type=%s", job.JobType))
	}
	timeout := time.Duration(job.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = h.Policy().normalized().Timeout
	}

	ctx, span := otel.Tracer("seoflow/jobs").Start(ctx, "job."+job.JobType)
	span.SetAttributes(
		attribute.String("job.id", job.ID.String()),
		attribute.String("job.type", job.JobType),
		attribute.Int("job.attempt", job.Attempts),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	stopHB := e.startHeartbeat(runCtx, job)
	defer stopHB()

	runCtx = ctxutil.ForJob(runCtx, job.ID.String())
	log := e.jobLog(job)
	if tid := ctxutil.GetTraceData(runCtx).TraceID; tid != "" {
		log = log.With("trace_id", tid)
	}
	jc := NewContext(runCtx, job, log, e.enqueue)
	started := e.now()
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Job handler panic", "panic", r)
				err = fmt.Errorf("job handler panic: %v", r)
			}
		}()
		err = h.Run(jc)
	}()
	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("job timed out after %s: %w", timeout, err)
	}
	log.Debug("Job attempt finished", "duration", e.now().Sub(started), "error", err)
	return err
}

/*
Settle records the result of an attempt:
	- nil error -> succeeded
	- ValidationError -> failed without retry
	- other error with attempts left -> queued again at now + backoff
	- otherwise -> failed
Every transition is a compare-and-swap from running, so the failure hook
runs only for the caller that actually failed the row.
*/
func (e *Executor) Settle(ctx context.Context, job *domain.JobRun, runErr error) (Outcome, error) {
	ctx = context.WithoutCancel(ctx)
	dbc := dbctx.Context{Ctx: ctx}
	log := e.jobLog(job)

	if runErr == nil {
		ok, err := e.repo.MarkSucceeded(dbc, job.ID)
		if err != nil {
			return "", apperr.Persistence("job.succeed", err)
		}
		if !ok {
			log.Warn("Job settled elsewhere before success was recorded")
			return OutcomeLost, nil
		}
		job.Status = domain.JobSucceeded
		log.Info("Job succeeded")
		return OutcomeSucceeded, nil
	}

	if apperr.IsRetryable(runErr) && job.Attempts < job.MaxAttempts {
		runAt := e.now().UTC().Add(time.Duration(job.BackoffSeconds) * time.Second)
		ok, err := e.repo.Requeue(dbc, job.ID, runAt, truncateErr(runErr), string(apperr.KindOf(runErr)))
		if err != nil {
			return "", apperr.Persistence("job.requeue", err)
		}
		if ok {
			job.Status = domain.JobQueued
			log.Warn("Job attempt failed, retrying", "run_at", runAt, "error", runErr)
			return OutcomeRequeued, nil
		}
	}
	return e.Fail(ctx, job, runErr)
}

// Fail moves a running job to failed and, if this call won, runs the
// handler's failure hook.
func (e *Executor) Fail(ctx context.Context, job *domain.JobRun, cause error) (Outcome, error) {
	ctx = context.WithoutCancel(ctx)
	log := e.jobLog(job)
	ok, err := e.repo.MarkFailed(dbctx.Context{Ctx: ctx}, job.ID, truncateErr(cause), string(apperr.KindOf(cause)))
	if err != nil {
		return "", apperr.Persistence("job.fail", err)
	}
	if !ok {
		return OutcomeLost, nil
	}
	job.Status = domain.JobFailed
	log.Error("Job failed", "error", cause, "error_kind", string(apperr.KindOf(cause)))
	e.runFailureHook(ctx, job, cause)
	return OutcomeFailed, nil
}

func (e *Executor) runFailureHook(ctx context.Context, job *domain.JobRun, cause error) {
	h, ok := e.registry.Get(job.JobType)
	if !ok {
		return
	}
	fh, ok := h.(FailureHandler)
	if !ok {
		return
	}
	hctx, cancel := context.WithTimeout(ctx, failureHookTimeout)
	defer cancel()
	log := e.jobLog(job)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Job failure hook panic", "panic", r)
		}
	}()
	fh.Failed(NewContext(hctx, job, log, e.enqueue), cause)
}

func (e *Executor) startHeartbeat(ctx context.Context, job *domain.JobRun) func() {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(e.heartbeat)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				if err := e.repo.Heartbeat(dbctx.Context{Ctx: ctx}, job.ID); err != nil {
					e.log.Warn("Job heartbeat failed", "job_id", job.ID, "error", err)
				}
			}
		}
	}()
	return func() { close(done) }
}

func truncateErr(err error) string {
	if err == nil {
		return ""
	}
	s := err.Error()
	if len(s) > 2000 {
		s = s[:2000]
	}
	return s
}
