package bus

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/seoflow-backend/internal/events"
	"github.com/yungbote/seoflow-backend/internal/platform/envutil"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
	"github.com/yungbote/seoflow-backend/internal/realtime"
)

type redisBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewRedisBus carries persisted events from the drainer to every server's hub.
func NewRedisBus(log *logger.Logger, rdb *goredis.Client) (Bus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &redisBus{
		log:     log.With("service", "RedisSSEBus"),
		rdb:     rdb,
		channel: envutil.String("REDIS_SSE_CHANNEL", "seoflow:sse"),
	}, nil
}

func (b *redisBus) Publish(ctx context.Context, msg realtime.SSEMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *redisBus) StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error {
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}
	go pump(ctx, sub, b.log, func(m *goredis.Message) {
		var msg realtime.SSEMessage
		if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
			b.log.Warn("bad redis SSE payload", "error", err)
			return
		}
		onMsg(msg)
	})
	return nil
}

// StartAgentEventForwarder subscribes to every article's transient channel and
// hands live events to the hub. Loss here is acceptable; history comes from the drainer.
func StartAgentEventForwarder(ctx context.Context, log *logger.Logger, rdb *goredis.Client, hub *realtime.SSEHub) error {
	log = log.With("service", "AgentEventForwarder")
	sub := rdb.PSubscribe(ctx, events.ChannelPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis psubscribe: %w", err)
	}
	go pump(ctx, sub, log, func(m *goredis.Message) {
		ForwardLive(hub, log, m.Channel, []byte(m.Payload))
	})
	return nil
}

// ForwardLive decodes one transient payload and broadcasts it on the article's hub channel.
func ForwardLive(hub *realtime.SSEHub, log *logger.Logger, channel string, payload []byte) bool {
	articleID, ok := events.ArticleIDFromChannel(channel)
	if !ok {
		return false
	}
	ev, err := events.Decode(payload)
	if err != nil || ev.ArticleID != articleID {
		log.Warn("bad live agent event", "channel", channel, "error", err)
		return false
	}
	hub.Broadcast(realtime.SSEMessage{
		Channel: realtime.ArticleChannel(articleID),
		Event:   realtime.SSEEventAgentEventLive,
		Data:    ev,
	})
	return true
}

func pump(ctx context.Context, sub *goredis.PubSub, log *logger.Logger, handle func(*goredis.Message)) {
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			_ = sub.Close()
			return
		case m, ok := <-ch:
			if !ok || m == nil {
				_ = sub.Close()
				log.Debug("pubsub channel closed")
				return
			}
			handle(m)
		}
	}
}
