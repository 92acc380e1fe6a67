package jobrun

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	jobrt "github.com/yungbote/seoflow-backend/internal/jobs/runtime"
)

const (
	busyPollInterval     = 30 * time.Second
	continueAttemptLimit = 500
	continueHistoryLimit = 10000
)

/*
Workflow drives one job row until it settles:
	- requeued -> sleep the job's backoff and attempt again
	- busy -> another owner holds the row, poll until it is released
	- succeeded, failed or lost -> done
When the attempt activity itself keeps failing, the row is failed so the
handler's failure hook still runs.
*/
func Workflow(ctx workflow.Context, jobID string) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return fmt.Errorf("jobrun: missing job_id")
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Hour,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 1,
			MaximumAttempts:    3,
		},
	})

	for attempt := 1; ; attempt++ {
		var out AttemptResult
		if err := workflow.ExecuteActivity(ctx, ActivityAttempt, jobID).Get(ctx, &out); err != nil {
			failErr := workflow.ExecuteActivity(ctx, ActivityFail, jobID, err.Error()).Get(ctx, nil)
			if failErr != nil {
				workflow.GetLogger(ctx).Error("Job fail activity failed", "job_id", jobID, "error", failErr)
			}
			return err
		}

		var wait time.Duration
		switch out.Outcome {
		case string(jobrt.OutcomeRequeued):
			wait = out.Wait
		case OutcomeBusy:
			wait = busyPollInterval
		default:
			return nil
		}
		if wait > 0 {
			if err := workflow.Sleep(ctx, wait); err != nil {
				return err
			}
		}
		if attempt >= continueAttemptLimit || workflow.GetInfo(ctx).GetCurrentHistoryLength() >= continueHistoryLimit {
			return workflow.NewContinueAsNewError(ctx, Workflow, jobID)
		}
	}
}
