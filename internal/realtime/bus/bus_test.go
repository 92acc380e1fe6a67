package bus

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/seoflow-backend/internal/events"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
	"github.com/yungbote/seoflow-backend/internal/realtime"
)

func TestForwardLiveRoutesToArticleChannel(t *testing.T) {
	hub := realtime.NewSSEHub(logger.Nop())
	client := hub.NewSSEClient()
	hub.AddChannel(client, realtime.ArticleChannel(8))

	payload := []byte(`{"article_id":8,"agent_type":"research","event_type":"progress","message":"x","timestamp":1}`)
	if !ForwardLive(hub, logger.Nop(), events.Channel(8), payload) {
		t.Fatalf("ForwardLive rejected a valid payload")
	}
	select {
	case msg := <-client.Outbound:
		if msg.Event != realtime.SSEEventAgentEventLive {
			t.Fatalf("event: %s", msg.Event)
		}
	case <-time.After(time.Second):
		t.Fatalf("no message forwarded")
	}

	// article id in payload must match the channel
	if ForwardLive(hub, logger.Nop(), events.Channel(9), payload) {
		t.Fatalf("mismatched channel accepted")
	}
}

func TestRedisBusRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis integration tests")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	defer rdb.Close()

	b, err := NewRedisBus(logger.Nop(), rdb)
	if err != nil {
		t.Fatalf("NewRedisBus: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan realtime.SSEMessage, 1)
	if err := b.StartForwarder(ctx, func(m realtime.SSEMessage) { got <- m }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}
	if err := b.Publish(ctx, realtime.SSEMessage{Channel: "article:1", Event: realtime.SSEEventAgentEvent}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case m := <-got:
		if m.Channel != "article:1" {
			t.Fatalf("channel: %s", m.Channel)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out")
	}
}
