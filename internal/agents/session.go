// Package agents implements the work done inside agent processes. Each agent
// reports progress for one article and ends with a single JSON result.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/yungbote/seoflow-backend/internal/events"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

const flushTimeout = 10 * time.Second

type SessionConfig struct {
	// Emitter receives progress events; nil drops them.
	Emitter events.Emitter
	// Stdout gets the result as its last line.
	Stdout io.Writer
	// Result is the dedicated result channel, may be nil.
	Result io.Writer
}

/*
Session is one agent invocation.
Events go through a buffer so slow transport never stalls the work; the buffer
is drained before the result is printed, so the terminal event is queued before
the parent sees the process exit.
*/
type Session struct {
	Log    *logger.Logger
	Run    *events.Run
	buffer *events.BufferedEmitter
	cfg    SessionConfig
}

func NewSession(baseLog *logger.Logger, cfg SessionConfig, agentType string, articleID uint) *Session {
	log := baseLog.With("agent", agentType, "article_id", articleID)
	next := cfg.Emitter
	if next == nil {
		next = events.Discard
	}
	buf := events.NewBufferedEmitter(next, 128, log)
	var sink events.Emitter = buf
	if articleID == 0 {
		// events are keyed by article; without one there is nobody to tell
		sink = events.Discard
	}
	return &Session{
		Log:    log,
		Run:    events.NewRun(sink, articleID, agentType),
		buffer: buf,
		cfg:    cfg,
	}
}

// Execute runs fn between a started and a terminal event and writes its output.
// An error from fn is reported as an error event and returned unchanged.
func (s *Session) Execute(ctx context.Context, startMsg string, fn func(ctx context.Context) (any, error)) error {
	s.emit(s.Run.Started(ctx, startMsg))
	out, err := fn(ctx)
	var raw []byte
	if err == nil {
		raw, err = json.Marshal(out)
		if err != nil {
			err = fmt.Errorf("encode result: %w", err)
		}
	}

	done := context.WithoutCancel(ctx)
	if err != nil {
		s.emit(s.Run.Fail(done, err.Error(), events.WithMetadata(map[string]any{
			"error_kind": string(apperr.KindOf(err)),
		})))
		s.close(done)
		s.Log.Error("Agent failed", "error", err)
		return err
	}
	s.emit(s.Run.Completed(done, "Done"))
	s.close(done)

	if s.cfg.Result != nil {
		if _, werr := s.cfg.Result.Write(raw); werr != nil {
			s.Log.Warn("Result pipe write failed", "error", werr)
		}
	}
	if s.cfg.Stdout != nil {
		if _, werr := fmt.Fprintf(s.cfg.Stdout, "%s\n", raw); werr != nil {
			return fmt.Errorf("write result: %w", werr)
		}
	}
	return nil
}

func (s *Session) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	if err := s.buffer.Close(ctx); err != nil {
		s.Log.Warn("Progress events not fully delivered", "error", err)
	}
}

func (s *Session) emit(err error) {
	if err != nil {
		s.Log.Warn("Progress event dropped", "error", err)
	}
}
