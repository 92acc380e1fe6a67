package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/yungbote/seoflow-backend/internal/domain"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

/*
Context is the execution handle of a single job attempt.
It wraps:
	- Ctx: bounded by the job type's timeout
	- Job: the claimed job_run row (attempts already counts this attempt)
	- Log: a logger tagged with job id and type
	- the enqueuer used for chaining follow-up jobs
Handlers never touch job_run directly; settlement belongs to the executor.
*/
type Context struct {
	Ctx     context.Context
	Job     *domain.JobRun
	Log     *logger.Logger
	enqueue Enqueuer
	payload map[string]any
}

func NewContext(ctx context.Context, job *domain.JobRun, log *logger.Logger, enq Enqueuer) *Context {
	c := &Context{Ctx: ctx, Job: job, Log: log, enqueue: enq}
	_ = c.decodePayload()
	return c
}

/*
decodePayload parses Job.Payload into a map.
A malformed payload leaves an empty map; handlers validate their own fields.
*/
func (c *Context) decodePayload() error {
	c.payload = map[string]any{}
	if c.Job == nil || len(c.Job.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(c.Job.Payload, &c.payload)
}

// Payload never returns nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

// DecodePayload unmarshals the raw payload into a typed struct.
func (c *Context) DecodePayload(out any) error {
	if c.Job == nil || len(c.Job.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(c.Job.Payload, out)
}

// PayloadUint reads a positive integer field. JSON numbers and numeric
// strings are both accepted.
func (c *Context) PayloadUint(key string) (uint, bool) {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return 0, false
	}
	switch x := v.(type) {
	case float64:
		if x <= 0 || x != float64(uint(x)) {
			return 0, false
		}
		return uint(x), true
	case string:
		n, err := strconv.ParseUint(strings.TrimSpace(x), 10, 64)
		if err != nil || n == 0 {
			return 0, false
		}
		return uint(n), true
	}
	return 0, false
}

func (c *Context) PayloadStrings(key string) []string {
	raw, ok := c.Payload()[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if v == nil {
			continue
		}
		if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// EntityID is the job's owning entity id.
func (c *Context) EntityID() uint {
	if c.Job == nil {
		return 0
	}
	return c.Job.EntityID
}

func (c *Context) Attempt() int {
	if c.Job == nil {
		return 0
	}
	return c.Job.Attempts
}

// FinalAttempt reports whether a failure now will not be retried.
func (c *Context) FinalAttempt() bool {
	return c.Job != nil && c.Job.Attempts >= c.Job.MaxAttempts
}

/*
Chain enqueues a follow-up job. It is fire-and-forget: an enqueue failure is
logged and never fails the current job, because the work already done stays
valid.
*/
func (c *Context) Chain(req EnqueueRequest) {
	if c.enqueue == nil {
		c.Log.Warn("Chained job dropped, no enqueuer", "next_job_type", req.JobType)
		return
	}
	ctx := context.WithoutCancel(c.Ctx)
	job, err := c.enqueue.Enqueue(ctx, req)
	if err != nil {
		c.Log.Warn("Chained job enqueue failed",
			"next_job_type", req.JobType,
			"entity_type", req.EntityType,
			"entity_id", req.EntityID,
			"error", err,
		)
		return
	}
	if job != nil {
		c.Log.Debug("Chained job enqueued", "next_job_type", req.JobType, "next_job_id", job.ID)
	}
}
