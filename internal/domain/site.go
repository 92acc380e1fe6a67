package domain

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Site owns keywords and articles and carries the planning settings the scheduler reads.
type Site struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	Name               string         `gorm:"column:name;not null" json:"name"`
	Domain             string         `gorm:"column:domain;not null;index" json:"domain"`
	Niche              string         `gorm:"column:niche" json:"niche,omitempty"`
	Language           string         `gorm:"column:language;not null;default:'en'" json:"language"`
	PublishDays        datatypes.JSON `gorm:"column:publish_days" json:"publish_days"`
	ArticlesPerWeek    int            `gorm:"column:articles_per_week;not null;default:3" json:"articles_per_week"`
	PlanHorizonDays    int            `gorm:"column:plan_horizon_days;not null;default:30" json:"plan_horizon_days"`
	AnalyticsConnected bool           `gorm:"column:analytics_connected;not null;default:false;index" json:"analytics_connected"`
	AutoPublish        bool           `gorm:"column:auto_publish;not null;default:false" json:"auto_publish"`
	PublishWebhookURL  string         `gorm:"column:publish_webhook_url" json:"publish_webhook_url,omitempty"`
	CreatedAt          time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Site) TableName() string { return "site" }

// Weekdays returns the configured publish days, lower-cased three letter names.
func (s *Site) Weekdays() []string {
	if s == nil || len(s.PublishDays) == 0 {
		return nil
	}
	var days []string
	if err := json.Unmarshal(s.PublishDays, &days); err != nil {
		return nil
	}
	for i := range days {
		days[i] = strings.ToLower(strings.TrimSpace(days[i]))
	}
	return days
}

func (s *Site) SetWeekdays(days []string) {
	s.PublishDays = toJSON(days)
}

// BaseURL is the https origin of the site, used to build internal link targets.
func (s *Site) BaseURL() string {
	d := strings.TrimSpace(s.Domain)
	if d == "" {
		return ""
	}
	if strings.HasPrefix(d, "http://") || strings.HasPrefix(d, "https://") {
		return strings.TrimRight(d, "/")
	}
	return "https://" + strings.TrimRight(d, "/")
}
