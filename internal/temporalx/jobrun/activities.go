package jobrun

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/yungbote/seoflow-backend/internal/data/repos"
	"github.com/yungbote/seoflow-backend/internal/domain"
	jobrt "github.com/yungbote/seoflow-backend/internal/jobs/runtime"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

const heartbeatEvery = 10 * time.Second

type Activities struct {
	Log  *logger.Logger
	Jobs repos.JobRunRepo
	Exec *jobrt.Executor
	now  func() time.Time
}

func (a *Activities) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}

// Attempt claims the job row, runs one attempt and settles it. The row stays
// the source of truth: Temporal only decides when the next attempt happens.
func (a *Activities) Attempt(ctx context.Context, jobID string) (AttemptResult, error) {
	res := AttemptResult{JobID: strings.TrimSpace(jobID)}
	id, err := uuid.Parse(res.JobID)
	if err != nil || id == uuid.Nil {
		return res, temporal.NewNonRetryableApplicationError("invalid job id", "invalid_job_id", err)
	}
	dbc := dbctx.Context{Ctx: ctx}
	job, err := a.Jobs.ClaimByID(dbc, id, a.clock().UTC())
	if err != nil {
		return res, err
	}
	if job == nil {
		current, err := a.Jobs.GetByID(dbc, id)
		if err != nil {
			return res, err
		}
		if current == nil {
			res.Outcome = string(jobrt.OutcomeLost)
			return res, nil
		}
		res.Status = current.Status
		switch current.Status {
		case domain.JobRunning:
			res.Outcome = OutcomeBusy
		case domain.JobQueued:
			// Out of attempts but not yet failed; let the reaper settle it.
			res.Outcome = OutcomeBusy
		default:
			res.Outcome = string(jobrt.OutcomeLost)
		}
		return res, nil
	}

	stop := startHeartbeat(ctx)
	runErr := a.Exec.Attempt(ctx, job)
	stop()
	out, err := a.Exec.Settle(ctx, job, runErr)
	if err != nil {
		return res, err
	}
	res.Outcome = string(out)
	res.Status = job.Status
	if out == jobrt.OutcomeRequeued {
		res.Wait = time.Duration(job.BackoffSeconds) * time.Second
	}
	return res, nil
}

// Fail settles a job whose attempt activity kept failing at the
// infrastructure level.
func (a *Activities) Fail(ctx context.Context, jobID, reason string) error {
	id, err := uuid.Parse(strings.TrimSpace(jobID))
	if err != nil {
		return temporal.NewNonRetryableApplicationError("invalid job id", "invalid_job_id", err)
	}
	job, err := a.Jobs.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil || job == nil {
		return err
	}
	if job.Status != domain.JobRunning && job.Status != domain.JobQueued {
		return nil
	}
	if job.Status == domain.JobQueued {
		// MarkFailed only moves running rows; claim first so the hook still runs.
		claimed, err := a.Jobs.ClaimByID(dbctx.Context{Ctx: ctx}, id, a.clock().UTC())
		if err != nil || claimed == nil {
			return err
		}
		job = claimed
	}
	_, err = a.Exec.Fail(ctx, job, errors.New(reason))
	if err != nil {
		return fmt.Errorf("jobrun: fail %s: %w", jobID, err)
	}
	return nil
}

func startHeartbeat(ctx context.Context) func() {
	if !activity.IsActivity(ctx) {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(heartbeatEvery)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}
