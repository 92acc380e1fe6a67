package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
)

type JobRun struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	JobType        string         `gorm:"column:job_type;not null;index" json:"job_type"`
	EntityType     string         `gorm:"column:entity_type;index:idx_job_run_entity" json:"entity_type,omitempty"`
	EntityID       uint           `gorm:"column:entity_id;index:idx_job_run_entity" json:"entity_id,omitempty"`
	Status         string         `gorm:"column:status;not null;index" json:"status"`
	Attempts       int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	MaxAttempts    int            `gorm:"column:max_attempts;not null;default:3" json:"max_attempts"`
	BackoffSeconds int            `gorm:"column:backoff_seconds;not null;default:60" json:"backoff_seconds"`
	TimeoutSeconds int            `gorm:"column:timeout_seconds;not null;default:600" json:"timeout_seconds"`
	Tags           datatypes.JSON `gorm:"column:tags" json:"tags"`
	Payload        datatypes.JSON `gorm:"column:payload" json:"payload"`
	Error          string         `gorm:"column:error" json:"error,omitempty"`
	ErrorKind      string         `gorm:"column:error_kind" json:"error_kind,omitempty"`
	RunAt          time.Time      `gorm:"column:run_at;not null;index" json:"run_at"`
	LockedAt       *time.Time     `gorm:"column:locked_at" json:"locked_at,omitempty"`
	HeartbeatAt    *time.Time     `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	LastErrorAt    *time.Time     `gorm:"column:last_error_at" json:"last_error_at,omitempty"`
	FinishedAt     *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt      time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (JobRun) TableName() string { return "job_run" }

func (j *JobRun) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.RunAt.IsZero() {
		j.RunAt = time.Now().UTC()
	}
	if j.Status == "" {
		j.Status = JobQueued
	}
	return nil
}

func (j *JobRun) TagList() []string {
	var out []string
	if len(j.Tags) > 0 {
		_ = json.Unmarshal(j.Tags, &out)
	}
	return out
}

func (j *JobRun) Terminal() bool {
	return j.Status == JobSucceeded || j.Status == JobFailed
}
