package domain

import "time"

const (
	SchedulePlanned    = "planned"
	ScheduleGenerating = "generating"
	ScheduleReady      = "ready"
	SchedulePublished  = "published"
	ScheduleSkipped    = "skipped"
)

type ScheduledArticle struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SiteID        uint      `gorm:"column:site_id;not null;index:idx_schedule_site_date" json:"site_id"`
	KeywordID     uint      `gorm:"column:keyword_id;not null;index" json:"keyword_id"`
	ArticleID     *uint     `gorm:"column:article_id" json:"article_id,omitempty"`
	ScheduledDate time.Time `gorm:"column:scheduled_date;not null;index:idx_schedule_site_date" json:"scheduled_date"`
	Status        string    `gorm:"column:status;not null;default:'planned';index" json:"status"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ScheduledArticle) TableName() string { return "scheduled_article" }
