// Package events carries structured progress updates from agents to observers.
//
// Every emission takes two paths: a best-effort publish on the article's transient
// channel for whoever is watching now, and an append to one durable queue that a
// single drainer persists and re-broadcasts. Order is only meaningful inside one
// agent run for one article.
package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/yungbote/seoflow-backend/internal/domain"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
)

type EventType string

const (
	Started   EventType = "started"
	Progress  EventType = "progress"
	Completed EventType = "completed"
	Error     EventType = "error"
)

func (t EventType) Valid() bool {
	switch t {
	case Started, Progress, Completed, Error:
		return true
	}
	return false
}

func (t EventType) Terminal() bool { return t == Completed || t == Error }

const (
	ChannelPrefix = "agent-events:"
	QueueKey      = "agent-events-queue"
)

// Channel is the transient broadcast channel of one article.
func Channel(articleID uint) string {
	return ChannelPrefix + strconv.FormatUint(uint64(articleID), 10)
}

// ArticleIDFromChannel parses a transient channel name back into an article id.
func ArticleIDFromChannel(ch string) (uint, bool) {
	rest, ok := strings.CutPrefix(ch, ChannelPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(rest, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// AgentEvent is the wire format shared by agents, the queue and SSE clients.
// Timestamp is unix milliseconds. RunID and Seq identify the emitting run and are
// omitted by producers that do not sequence their events.
type AgentEvent struct {
	ArticleID       uint           `json:"article_id"`
	AgentType       string         `json:"agent_type"`
	EventType       EventType      `json:"event_type"`
	Message         string         `json:"message"`
	Reasoning       *string        `json:"reasoning"`
	Metadata        map[string]any `json:"metadata"`
	ProgressCurrent *int           `json:"progress_current"`
	ProgressTotal   *int           `json:"progress_total"`
	Timestamp       int64          `json:"timestamp"`
	RunID           string         `json:"run_id,omitempty"`
	Seq             int            `json:"seq,omitempty"`
}

func (e AgentEvent) Validate() error {
	if e.ArticleID == 0 {
		return apperr.Validation("article_id", "required")
	}
	if strings.TrimSpace(e.AgentType) == "" {
		return apperr.Validation("agent_type", "required")
	}
	if !e.EventType.Valid() {
		return apperr.Validation("event_type", fmt.Sprintf("unknown %q", e.EventType))
	}
	if (e.ProgressCurrent == nil) != (e.ProgressTotal == nil) {
		return apperr.Validation("progress", "current and total must be set together")
	}
	if e.ProgressCurrent != nil {
		if *e.ProgressCurrent < 0 || *e.ProgressTotal <= 0 || *e.ProgressCurrent > *e.ProgressTotal {
			return apperr.Validation("progress", fmt.Sprintf("invalid %d/%d", *e.ProgressCurrent, *e.ProgressTotal))
		}
	}
	if e.Timestamp <= 0 {
		return apperr.Validation("timestamp", "required")
	}
	return nil
}

func Decode(raw []byte) (AgentEvent, error) {
	var ev AgentEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return AgentEvent{}, apperr.Validation("event", err.Error())
	}
	return ev, ev.Validate()
}

func (e AgentEvent) Record() *domain.AgentEventRecord {
	rec := &domain.AgentEventRecord{
		ArticleID:       e.ArticleID,
		RunID:           e.RunID,
		Seq:             e.Seq,
		AgentType:       e.AgentType,
		EventType:       string(e.EventType),
		Message:         e.Message,
		Reasoning:       e.Reasoning,
		ProgressCurrent: e.ProgressCurrent,
		ProgressTotal:   e.ProgressTotal,
		Timestamp:       e.Timestamp,
	}
	if e.Metadata != nil {
		rec.Metadata = domain.EncodeJSON(e.Metadata)
	}
	return rec
}

func FromRecord(rec *domain.AgentEventRecord) AgentEvent {
	ev := AgentEvent{
		ArticleID:       rec.ArticleID,
		AgentType:       rec.AgentType,
		EventType:       EventType(rec.EventType),
		Message:         rec.Message,
		Reasoning:       rec.Reasoning,
		ProgressCurrent: rec.ProgressCurrent,
		ProgressTotal:   rec.ProgressTotal,
		Timestamp:       rec.Timestamp,
		RunID:           rec.RunID,
		Seq:             rec.Seq,
	}
	if len(rec.Metadata) > 0 {
		_ = json.Unmarshal(rec.Metadata, &ev.Metadata)
	}
	return ev
}
