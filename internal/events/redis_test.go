package events

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

func testRedis(t *testing.T) *goredis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis integration tests")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()
	_ = rdb.Del(ctx, QueueKey, QueueKey+":processing").Err()
	return rdb
}

func TestRedisEmitterPublishesAndEnqueues(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, Channel(77))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	em := NewRedisEmitter(rdb, logger.Nop())
	ev := AgentEvent{ArticleID: 77, AgentType: "research", EventType: Started, Message: "go", Timestamp: time.Now().UnixMilli()}
	if err := em.Emit(ctx, ev); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	select {
	case m := <-sub.Channel():
		if _, err := Decode([]byte(m.Payload)); err != nil {
			t.Fatalf("live payload: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no live message")
	}

	q := NewRedisQueue(rdb)
	raw, err := q.Take(ctx, time.Second)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if err := q.Nack(ctx, raw); err != nil {
		t.Fatalf("Nack: %v", err)
	}
	again, err := q.Take(ctx, time.Second)
	if err != nil || again != raw {
		t.Fatalf("Take after Nack: %q %v", again, err)
	}
	n, err := q.Recover(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Recover: n=%d err=%v", n, err)
	}
	if _, err := q.Take(ctx, time.Second); err != nil {
		t.Fatalf("Take after Recover: %v", err)
	}
	if err := q.Ack(ctx, raw); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	if l, _ := rdb.LLen(ctx, QueueKey+":processing").Result(); l != 0 {
		t.Fatalf("processing list not empty: %d", l)
	}
}
