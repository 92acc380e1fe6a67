package domain

import "time"

const (
	KeywordPending    = "pending"
	KeywordQueued     = "queued"
	KeywordGenerating = "generating"
	KeywordCompleted  = "completed"
)

type Keyword struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SiteID     uint      `gorm:"column:site_id;not null;uniqueIndex:idx_keyword_site_keyword" json:"site_id"`
	Keyword    string    `gorm:"column:keyword;not null;uniqueIndex:idx_keyword_site_keyword" json:"keyword"`
	Volume     *int      `gorm:"column:volume" json:"volume,omitempty"`
	Difficulty *int      `gorm:"column:difficulty" json:"difficulty,omitempty"`
	Position   *int      `gorm:"column:position" json:"position,omitempty"`
	Relevance  *float64  `gorm:"column:relevance" json:"relevance,omitempty"`
	Score      float64   `gorm:"column:score;not null;default:0;index" json:"score"`
	Status     string    `gorm:"column:status;not null;default:'pending';index" json:"status"`
	ClusterID  *uint     `gorm:"column:cluster_id;index" json:"cluster_id,omitempty"`
	Source     string    `gorm:"column:source;not null;default:'manual'" json:"source"`
	Intent     string    `gorm:"column:intent" json:"intent,omitempty"`
	LastError  string    `gorm:"column:last_error" json:"last_error,omitempty"`
	// ClaimJobID is the job run that moved the keyword to generating.
	ClaimJobID string    `gorm:"column:claim_job_id" json:"claim_job_id,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Keyword) TableName() string { return "keyword" }
