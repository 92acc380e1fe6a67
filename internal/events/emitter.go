package events

import (
	"context"
	"encoding/json"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

type Emitter interface {
	Emit(ctx context.Context, ev AgentEvent) error
}

type EmitterFunc func(ctx context.Context, ev AgentEvent) error

func (f EmitterFunc) Emit(ctx context.Context, ev AgentEvent) error { return f(ctx, ev) }

// Discard drops every event.
var Discard Emitter = EmitterFunc(func(context.Context, AgentEvent) error { return nil })

type RedisEmitter struct {
	rdb      goredis.Cmdable
	log      *logger.Logger
	queueKey string
}

func NewRedisEmitter(rdb goredis.Cmdable, log *logger.Logger) *RedisEmitter {
	return &RedisEmitter{rdb: rdb, log: log.With("component", "RedisEmitter"), queueKey: QueueKey}
}

// Emit publishes and enqueues in one round trip. A failed publish is only logged;
// a failed enqueue is a PersistenceError since the event would be lost from history.
func (e *RedisEmitter) Emit(ctx context.Context, ev AgentEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return apperr.Validation("event", err.Error())
	}
	pipe := e.rdb.Pipeline()
	pub := pipe.Publish(ctx, Channel(ev.ArticleID), raw)
	push := pipe.RPush(ctx, e.queueKey, raw)
	_, _ = pipe.Exec(ctx)

	if err := pub.Err(); err != nil {
		e.log.Warn("Transient publish failed", "article_id", ev.ArticleID, "agent", ev.AgentType, "error", err)
	}
	if err := push.Err(); err != nil {
		return apperr.Persistence("enqueue agent event", err)
	}
	return nil
}

// Recorder keeps emitted events in memory. Useful as a sink in tests and dry runs.
type Recorder struct {
	mu     sync.Mutex
	events []AgentEvent
}

func (r *Recorder) Emit(_ context.Context, ev AgentEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Events() []AgentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AgentEvent, len(r.events))
	copy(out, r.events)
	return out
}
