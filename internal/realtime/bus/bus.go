// Package bus moves hub messages between server processes through Redis pub/sub.
package bus

import (
	"context"

	"github.com/yungbote/seoflow-backend/internal/realtime"
)

type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
}

// Local delivers straight into a hub. It serves single-process setups and tests.
type Local struct {
	Hub *realtime.SSEHub
}

func (l Local) Publish(_ context.Context, msg realtime.SSEMessage) error {
	l.Hub.Broadcast(msg)
	return nil
}

func (l Local) StartForwarder(context.Context, func(realtime.SSEMessage)) error { return nil }
