package events

import (
	"context"

	"github.com/yungbote/seoflow-backend/internal/domain"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
	"github.com/yungbote/seoflow-backend/internal/realtime"
)

// Direct persists and broadcasts each event in the emitting process. It stands
// in for the Redis queue and drainer when the server runs without Redis.
type Direct struct {
	store Store
	out   Broadcaster
}

func NewDirect(store Store, out Broadcaster) *Direct {
	return &Direct{store: store, out: out}
}

func (d *Direct) Emit(ctx context.Context, ev AgentEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	if err := d.store.Create(dbctx.Context{Ctx: ctx}, []*domain.AgentEventRecord{ev.Record()}); err != nil {
		return apperr.Persistence("persist agent event", err)
	}
	if d.out == nil {
		return nil
	}
	return d.out.Publish(ctx, realtime.SSEMessage{
		Channel: realtime.ArticleChannel(ev.ArticleID),
		Event:   realtime.SSEEventAgentEvent,
		Data:    ev,
	})
}
