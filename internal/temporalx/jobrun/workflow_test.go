package jobrun

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	jobrt "github.com/yungbote/seoflow-backend/internal/jobs/runtime"
)

func newEnv(t *testing.T, attempt func(context.Context, string) (AttemptResult, error), fail func(context.Context, string, string) error) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var s testsuite.WorkflowTestSuite
	env := s.NewTestWorkflowEnvironment()
	env.RegisterWorkflowWithOptions(Workflow, workflow.RegisterOptions{Name: WorkflowName})
	env.RegisterActivityWithOptions(attempt, activity.RegisterOptions{Name: ActivityAttempt})
	env.RegisterActivityWithOptions(fail, activity.RegisterOptions{Name: ActivityFail})
	return env
}

func noFail(context.Context, string, string) error { return nil }

func TestWorkflowRetriesUntilSucceeded(t *testing.T) {
	calls := 0
	env := newEnv(t, func(_ context.Context, id string) (AttemptResult, error) {
		calls++
		if calls < 3 {
			return AttemptResult{JobID: id, Outcome: string(jobrt.OutcomeRequeued), Wait: time.Minute}, nil
		}
		return AttemptResult{JobID: id, Outcome: string(jobrt.OutcomeSucceeded)}, nil
	}, noFail)

	env.ExecuteWorkflow(WorkflowName, "job-1")
	if !env.IsWorkflowCompleted() {
		t.Fatalf("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("attempts = %d, want 3", calls)
	}
}

func TestWorkflowStopsOnFailedOutcome(t *testing.T) {
	calls := 0
	env := newEnv(t, func(_ context.Context, id string) (AttemptResult, error) {
		calls++
		return AttemptResult{JobID: id, Outcome: string(jobrt.OutcomeFailed)}, nil
	}, noFail)
	env.ExecuteWorkflow(WorkflowName, "job-2")
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("attempts = %d, want 1", calls)
	}
}

func TestWorkflowFailsRowWhenActivityKeepsErroring(t *testing.T) {
	var failed string
	env := newEnv(t, func(context.Context, string) (AttemptResult, error) {
		return AttemptResult{}, errors.New("database unavailable")
	}, func(_ context.Context, id, reason string) error {
		failed = id
		return nil
	})
	env.ExecuteWorkflow(WorkflowName, "job-3")
	if env.GetWorkflowError() == nil {
		t.Fatalf("expected workflow error")
	}
	if failed != "job-3" {
		t.Fatalf("fail activity got %q", failed)
	}
}
