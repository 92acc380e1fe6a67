package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrRunClosed = errors.New("agent run already reported a terminal event")

type Option func(*AgentEvent)

func WithReasoning(s string) Option {
	return func(ev *AgentEvent) {
		if s != "" {
			ev.Reasoning = &s
		}
	}
}

func WithMetadata(m map[string]any) Option {
	return func(ev *AgentEvent) {
		if len(m) > 0 {
			ev.Metadata = m
		}
	}
}

// Run sequences the events of one agent run for one article. Timestamps never go
// backwards and at most one terminal event is emitted.
type Run struct {
	mu        sync.Mutex
	emitter   Emitter
	articleID uint
	agentType string
	runID     string
	seq       int
	last      int64
	closed    bool
	now       func() time.Time
}

func NewRun(emitter Emitter, articleID uint, agentType string) *Run {
	if emitter == nil {
		emitter = Discard
	}
	return &Run{
		emitter:   emitter,
		articleID: articleID,
		agentType: agentType,
		runID:     uuid.NewString(),
		now:       time.Now,
	}
}

func (r *Run) ID() string { return r.runID }

func (r *Run) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Run) Started(ctx context.Context, msg string, opts ...Option) error {
	return r.emit(ctx, Started, msg, nil, nil, opts)
}

// Step is a progress event without counts.
func (r *Run) Step(ctx context.Context, msg string, opts ...Option) error {
	return r.emit(ctx, Progress, msg, nil, nil, opts)
}

func (r *Run) Progress(ctx context.Context, msg string, current, total int, opts ...Option) error {
	if current > total {
		current = total
	}
	return r.emit(ctx, Progress, msg, &current, &total, opts)
}

func (r *Run) Completed(ctx context.Context, msg string, opts ...Option) error {
	return r.emit(ctx, Completed, msg, nil, nil, opts)
}

func (r *Run) Fail(ctx context.Context, msg string, opts ...Option) error {
	return r.emit(ctx, Error, msg, nil, nil, opts)
}

func (r *Run) emit(ctx context.Context, typ EventType, msg string, cur, total *int, opts []Option) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRunClosed
	}
	ts := r.now().UnixMilli()
	if ts < r.last {
		ts = r.last
	}
	r.last = ts
	r.seq++
	if typ.Terminal() {
		r.closed = true
	}
	ev := AgentEvent{
		ArticleID:       r.articleID,
		AgentType:       r.agentType,
		EventType:       typ,
		Message:         msg,
		ProgressCurrent: cur,
		ProgressTotal:   total,
		Timestamp:       ts,
		RunID:           r.runID,
		Seq:             r.seq,
	}
	for _, o := range opts {
		o(&ev)
	}
	// Emitting under the lock keeps the emitter's view in sequence order.
	defer r.mu.Unlock()
	return r.emitter.Emit(ctx, ev)
}
