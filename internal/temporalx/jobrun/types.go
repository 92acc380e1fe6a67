package jobrun

import "time"

const (
	WorkflowName    = "job_run"
	ActivityAttempt = "job_run_attempt"
	ActivityFail    = "job_run_fail"
)

// OutcomeBusy means the row is running under another owner, usually a worker
// that crashed and has not been reaped yet.
const OutcomeBusy = "busy"

type AttemptResult struct {
	JobID   string        `json:"job_id"`
	Outcome string        `json:"outcome"`
	Status  string        `json:"status"`
	Wait    time.Duration `json:"wait,omitempty"`
}
