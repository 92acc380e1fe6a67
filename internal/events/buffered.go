package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

var ErrEmitterClosed = errors.New("emitter closed")

// BufferedEmitter decouples callers from the transport. Events reach the
// underlying emitter in the order Emit accepted them. Flush returns once every
// event accepted before it has been handed over; agent processes Close before exit
// so their terminal event is queued before the bridge sees the process end.
type BufferedEmitter struct {
	next Emitter
	log  *logger.Logger

	mu     sync.RWMutex
	closed bool
	ch     chan bufferedItem
	loop   chan struct{}

	errMu sync.Mutex
	errs  []error

	attempts int
	backoff  time.Duration
}

type bufferedItem struct {
	ev      AgentEvent
	flushed chan struct{}
}

func NewBufferedEmitter(next Emitter, size int, log *logger.Logger) *BufferedEmitter {
	if size <= 0 {
		size = 256
	}
	b := &BufferedEmitter{
		next:     next,
		log:      log.With("component", "BufferedEmitter"),
		ch:       make(chan bufferedItem, size),
		loop:     make(chan struct{}),
		attempts: 3,
		backoff:  200 * time.Millisecond,
	}
	go b.run()
	return b
}

func (b *BufferedEmitter) Emit(ctx context.Context, ev AgentEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	return b.enqueue(ctx, bufferedItem{ev: ev})
}

func (b *BufferedEmitter) enqueue(ctx context.Context, it bufferedItem) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrEmitterClosed
	}
	select {
	case b.ch <- it:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *BufferedEmitter) run() {
	defer close(b.loop)
	for it := range b.ch {
		if it.flushed != nil {
			close(it.flushed)
			continue
		}
		b.deliver(it.ev)
	}
}

func (b *BufferedEmitter) deliver(ev AgentEvent) {
	var err error
	for attempt := 1; attempt <= b.attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = b.next.Emit(ctx, ev)
		cancel()
		if err == nil {
			return
		}
		if attempt < b.attempts {
			time.Sleep(time.Duration(attempt) * b.backoff)
		}
	}
	b.log.Error("Dropping agent event after retries",
		"article_id", ev.ArticleID, "agent", ev.AgentType, "event_type", ev.EventType, "error", err)
	b.errMu.Lock()
	b.errs = append(b.errs, err)
	b.errMu.Unlock()
}

// Flush waits for every event accepted so far and returns the delivery errors
// collected since the previous Flush.
func (b *BufferedEmitter) Flush(ctx context.Context) error {
	done := make(chan struct{})
	err := b.enqueue(ctx, bufferedItem{flushed: done})
	if errors.Is(err, ErrEmitterClosed) {
		return b.takeErrs()
	}
	if err != nil {
		return err
	}
	select {
	case <-done:
		return b.takeErrs()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events and waits until the buffer has drained.
func (b *BufferedEmitter) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.ch)
	b.mu.Unlock()

	select {
	case <-b.loop:
		return b.takeErrs()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *BufferedEmitter) takeErrs() error {
	b.errMu.Lock()
	defer b.errMu.Unlock()
	err := errors.Join(b.errs...)
	b.errs = nil
	return err
}
