package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/seoflow-backend/internal/data/repos"
	"github.com/yungbote/seoflow-backend/internal/domain"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

// ErrAlreadyQueued is returned for Unique requests when the entity already
// has a queued or running job of that type.
var ErrAlreadyQueued = errors.New("job already queued for entity")

type EnqueueRequest struct {
	JobType    string
	EntityType string
	EntityID   uint
	Payload    map[string]any
	Delay      time.Duration
	Tags       []string
	Unique     bool
}

type Enqueuer interface {
	Enqueue(ctx context.Context, req EnqueueRequest) (*domain.JobRun, error)
}

// Dispatcher hands a freshly stored job to an external runner.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *domain.JobRun, delay time.Duration) error
}

type QueueEnqueuer struct {
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *Registry
	dispatch Dispatcher
	now      func() time.Time
}

func NewEnqueuer(baseLog *logger.Logger, repo repos.JobRunRepo, registry *Registry) *QueueEnqueuer {
	return &QueueEnqueuer{
		log:      baseLog.With("component", "JobEnqueuer"),
		repo:     repo,
		registry: registry,
		now:      time.Now,
	}
}

// SetDispatcher routes new jobs to d after they are stored.
func (e *QueueEnqueuer) SetDispatcher(d Dispatcher) { e.dispatch = d }

func (e *QueueEnqueuer) Enqueue(ctx context.Context, req EnqueueRequest) (*domain.JobRun, error) {
	h, ok := e.registry.Get(req.JobType)
	if !ok {
		return nil, apperr.Validation("job_type", fmt.Sprintf("unknown job type %q", req.JobType))
	}
	if req.EntityType == "" || req.EntityID == 0 {
		return nil, apperr.Validation("entity", "entity type and id are required")
	}
	dbc := dbctx.Context{Ctx: ctx}
	if req.Unique {
		exists, err := e.repo.HasRunnableForEntity(dbc, req.EntityType, req.EntityID, req.JobType)
		if err != nil {
			return nil, apperr.Persistence("job.lookup", err)
		}
		if exists {
			return nil, ErrAlreadyQueued
		}
	}

	payload := map[string]any{}
	for k, v := range req.Payload {
		payload[k] = v
	}
	payload[req.EntityType+"_id"] = req.EntityID
	rawPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, apperr.Validation("payload", err.Error())
	}
	rawTags, _ := json.Marshal(Tags(req))

	p := h.Policy().normalized()
	delay := req.Delay
	if delay < 0 {
		delay = 0
	}
	job := &domain.JobRun{
		JobType:        req.JobType,
		EntityType:     req.EntityType,
		EntityID:       req.EntityID,
		Status:         domain.JobQueued,
		MaxAttempts:    p.MaxAttempts,
		BackoffSeconds: int(p.Backoff / time.Second),
		TimeoutSeconds: int(p.Timeout / time.Second),
		Tags:           datatypes.JSON(rawTags),
		Payload:        datatypes.JSON(rawPayload),
		RunAt:          e.now().UTC().Add(delay),
	}
	if _, err := e.repo.Create(dbc, []*domain.JobRun{job}); err != nil {
		return nil, apperr.Persistence("job.create", err)
	}
	if e.dispatch != nil {
		if err := e.dispatch.Dispatch(ctx, job, delay); err != nil {
			// Nothing polls queued rows in dispatch mode, so an undispatched row
			// would block Unique requests for the entity forever.
			derr := fmt.Errorf("dispatch job %s: %w", job.ID, err)
			if ok, aerr := e.repo.Abandon(dbctx.Context{Ctx: context.WithoutCancel(ctx)}, job.ID, truncateErr(derr), string(apperr.KindOf(derr))); aerr != nil {
				e.log.Error("Abandoning undispatched job failed", "job_id", job.ID, "error", aerr)
			} else if ok {
				job.Status = domain.JobFailed
			}
			return job, derr
		}
	}
	e.log.Debug("Job enqueued", "job_id", job.ID, "job_type", job.JobType, "entity_id", job.EntityID, "delay", delay)
	return job, nil
}

// Tags are the job kind, "<entity_type>:<id>" and any extra tags.
func Tags(req EnqueueRequest) []string {
	out := []string{req.JobType, fmt.Sprintf("%s:%d", req.EntityType, req.EntityID)}
	for _, t := range req.Tags {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
