package temporalx

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/seoflow-backend/internal/domain"
	"github.com/yungbote/seoflow-backend/internal/temporalx/jobrun"
)

// Dispatcher starts one job_run workflow per stored job. The workflow id is
// the job id, so a job is never started twice.
type Dispatcher struct {
	client    temporalsdkclient.Client
	taskQueue string
}

func NewDispatcher(c temporalsdkclient.Client, cfg Config) *Dispatcher {
	return &Dispatcher{client: c, taskQueue: cfg.TaskQueue}
}

func (d *Dispatcher) Dispatch(ctx context.Context, job *domain.JobRun, delay time.Duration) error {
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:         job.ID.String(),
		TaskQueue:  d.taskQueue,
		StartDelay: delay,
	}
	_, err := d.client.ExecuteWorkflow(ctx, opts, jobrun.WorkflowName, job.ID.String())
	var started *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &started) {
		return nil
	}
	return err
}
