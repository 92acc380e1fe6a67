package domain

import (
	"time"

	"gorm.io/datatypes"
)

// AgentEventRecord is the persisted form of a progress event, written by the drainer.
type AgentEventRecord struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	ArticleID       uint           `gorm:"column:article_id;not null;index:idx_agent_event_article" json:"article_id"`
	RunID           string         `gorm:"column:run_id;index" json:"run_id,omitempty"`
	Seq             int            `gorm:"column:seq;not null;default:0" json:"seq"`
	AgentType       string         `gorm:"column:agent_type;not null" json:"agent_type"`
	EventType       string         `gorm:"column:event_type;not null" json:"event_type"`
	Message         string         `gorm:"column:message" json:"message"`
	Reasoning       *string        `gorm:"column:reasoning" json:"reasoning"`
	Metadata        datatypes.JSON `gorm:"column:metadata" json:"metadata"`
	ProgressCurrent *int           `gorm:"column:progress_current" json:"progress_current"`
	ProgressTotal   *int           `gorm:"column:progress_total" json:"progress_total"`
	Timestamp       int64          `gorm:"column:timestamp;not null;index:idx_agent_event_article" json:"timestamp"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (AgentEventRecord) TableName() string { return "agent_event" }
