// Package pipelinetest builds job contexts for pipeline tests.
package pipelinetest

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/seoflow-backend/internal/data/repos/testutil"
	"github.com/yungbote/seoflow-backend/internal/domain"
	jobrt "github.com/yungbote/seoflow-backend/internal/jobs/runtime"
)

// Enqueuer records chained requests instead of storing them.
type Enqueuer struct {
	mu       sync.Mutex
	Requests []jobrt.EnqueueRequest
}

func (e *Enqueuer) Enqueue(_ context.Context, req jobrt.EnqueueRequest) (*domain.JobRun, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Requests = append(e.Requests, req)
	return &domain.JobRun{ID: uuid.New(), JobType: req.JobType, EntityType: req.EntityType, EntityID: req.EntityID}, nil
}

// Types lists the chained job types in order.
func (e *Enqueuer) Types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.Requests))
	for _, r := range e.Requests {
		out = append(out, r.JobType)
	}
	return out
}

func (e *Enqueuer) Find(jobType string) (jobrt.EnqueueRequest, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.Requests {
		if r.JobType == jobType {
			return r, true
		}
	}
	return jobrt.EnqueueRequest{}, false
}

// Context returns a first-attempt context of a job with three attempts.
func Context(tb testing.TB, enq jobrt.Enqueuer, jobType, entityType string, entityID uint, payload map[string]any) *jobrt.Context {
	tb.Helper()
	p := map[string]any{}
	for k, v := range payload {
		p[k] = v
	}
	p[entityType+"_id"] = entityID
	raw, err := json.Marshal(p)
	if err != nil {
		tb.Fatalf("payload: %v", err)
	}
	job := &domain.JobRun{
		ID:          uuid.New(),
		JobType:     jobType,
		EntityType:  entityType,
		EntityID:    entityID,
		Status:      domain.JobRunning,
		Attempts:    1,
		MaxAttempts: 3,
		Payload:     datatypes.JSON(raw),
	}
	return jobrt.NewContext(context.Background(), job, testutil.Logger(tb), enq)
}

// Final marks jc as the last attempt.
func Final(jc *jobrt.Context) *jobrt.Context {
	jc.Job.Attempts = jc.Job.MaxAttempts
	return jc
}
