package events

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/seoflow-backend/internal/domain"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
	"github.com/yungbote/seoflow-backend/internal/platform/envutil"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
	"github.com/yungbote/seoflow-backend/internal/realtime"
)

// Queue is the durable side of the bus as seen by its single consumer.
// Take moves one payload into an in-flight area; Ack removes it from there;
// Nack returns it to the head of the queue.
type Queue interface {
	Take(ctx context.Context, wait time.Duration) (string, error)
	Ack(ctx context.Context, raw string) error
	Nack(ctx context.Context, raw string) error
	// Recover moves payloads left in flight by a crashed consumer back to the queue.
	Recover(ctx context.Context) (int, error)
}

// ErrEmpty is returned by Take when nothing arrived within the wait.
var ErrEmpty = errors.New("queue empty")

type Store interface {
	Create(dbc dbctx.Context, rows []*domain.AgentEventRecord) error
}

type Broadcaster interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
}

type DrainerConfig struct {
	BlockTimeout time.Duration
	RetryBackoff time.Duration
}

func DrainerConfigFromEnv() DrainerConfig {
	return DrainerConfig{
		BlockTimeout: envutil.Seconds("EVENT_DRAIN_BLOCK_SECONDS", 5*time.Second),
		RetryBackoff: envutil.Millis("EVENT_DRAIN_RETRY_MS", 2*time.Second),
	}
}

type Drainer struct {
	log   *logger.Logger
	queue Queue
	store Store
	out   Broadcaster
	cfg   DrainerConfig
}

func NewDrainer(log *logger.Logger, queue Queue, store Store, out Broadcaster, cfg DrainerConfig) *Drainer {
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 2 * time.Second
	}
	return &Drainer{log: log.With("component", "EventDrainer"), queue: queue, store: store, out: out, cfg: cfg}
}

// Run consumes the queue until ctx is done. Delivery is at-least-once: a payload
// leaves the in-flight area only after it has been persisted.
func (d *Drainer) Run(ctx context.Context) error {
	if n, err := d.queue.Recover(ctx); err != nil {
		d.log.Warn("Recovering in-flight events failed", "error", err)
	} else if n > 0 {
		d.log.Info("Requeued in-flight events", "count", n)
	}
	for {
		if ctx.Err() != nil {
			return nil
		}
		raw, err := d.queue.Take(ctx, d.cfg.BlockTimeout)
		if errors.Is(err, ErrEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			d.log.Warn("Event queue read failed", "error", err)
			d.sleep(ctx)
			continue
		}
		d.Handle(ctx, raw)
	}
}

// Handle processes a single in-flight payload.
func (d *Drainer) Handle(ctx context.Context, raw string) {
	ev, err := Decode([]byte(raw))
	if err != nil {
		d.log.Error("Discarding malformed agent event", "error", err, "payload", truncate(raw, 300))
		if ackErr := d.queue.Ack(ctx, raw); ackErr != nil {
			d.log.Warn("Ack of malformed event failed", "error", ackErr)
		}
		return
	}

	if err := d.store.Create(dbctx.Context{Ctx: ctx}, []*domain.AgentEventRecord{ev.Record()}); err != nil {
		perr := apperr.Persistence("persist agent event", err)
		d.log.Error("Persisting agent event failed; returning it to the queue",
			"article_id", ev.ArticleID, "agent", ev.AgentType, "error", perr)
		if nackErr := d.queue.Nack(ctx, raw); nackErr != nil {
			d.log.Error("Nack failed; event stays in flight until restart", "error", nackErr)
		}
		d.sleep(ctx)
		return
	}
	if err := d.queue.Ack(ctx, raw); err != nil {
		d.log.Warn("Ack failed; event may be persisted twice", "error", err)
	}

	if d.out != nil {
		msg := realtime.SSEMessage{Channel: realtime.ArticleChannel(ev.ArticleID), Event: realtime.SSEEventAgentEvent, Data: ev}
		if err := d.out.Publish(ctx, msg); err != nil {
			d.log.Warn("Broadcasting persisted event failed", "article_id", ev.ArticleID, "error", err)
		}
	}
}

func (d *Drainer) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(d.cfg.RetryBackoff):
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// RedisQueue is the reliable-queue pattern over two lists: BLMOVE into a
// processing list, LREM on ack.
type RedisQueue struct {
	rdb           *goredis.Client
	queueKey      string
	processingKey string
}

func NewRedisQueue(rdb *goredis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb, queueKey: QueueKey, processingKey: QueueKey + ":processing"}
}

func (q *RedisQueue) Take(ctx context.Context, wait time.Duration) (string, error) {
	raw, err := q.rdb.BLMove(ctx, q.queueKey, q.processingKey, "LEFT", "RIGHT", wait).Result()
	if errors.Is(err, goredis.Nil) {
		return "", ErrEmpty
	}
	return raw, err
}

func (q *RedisQueue) Ack(ctx context.Context, raw string) error {
	return q.rdb.LRem(ctx, q.processingKey, 1, raw).Err()
}

func (q *RedisQueue) Nack(ctx context.Context, raw string) error {
	pipe := q.rdb.TxPipeline()
	pipe.LRem(ctx, q.processingKey, 1, raw)
	pipe.LPush(ctx, q.queueKey, raw)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		// RIGHT->LEFT keeps the original order at the head of the queue.
		_, err := q.rdb.LMove(ctx, q.processingKey, q.queueKey, "RIGHT", "LEFT").Result()
		if errors.Is(err, goredis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}
