package domain

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

const (
	ArticleDraft     = "draft"
	ArticleReady     = "ready"
	ArticleReview    = "review"
	ArticleApproved  = "approved"
	ArticlePublished = "published"
	ArticleFailed    = "failed"
)

type Article struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	SiteID          uint           `gorm:"column:site_id;not null;index" json:"site_id"`
	KeywordID       uint           `gorm:"column:keyword_id;not null;index" json:"keyword_id"`
	Title           string         `gorm:"column:title" json:"title"`
	Slug            string         `gorm:"column:slug;index" json:"slug"`
	MetaTitle       string         `gorm:"column:meta_title" json:"meta_title"`
	MetaDescription string         `gorm:"column:meta_description" json:"meta_description"`
	Content         string         `gorm:"column:content;type:text" json:"content"`
	Status          string         `gorm:"column:status;not null;default:'draft';index" json:"status"`
	GenerationCost  float64        `gorm:"column:generation_cost;not null;default:0" json:"generation_cost"`
	InputTokens     int            `gorm:"column:input_tokens;not null;default:0" json:"input_tokens"`
	OutputTokens    int            `gorm:"column:output_tokens;not null;default:0" json:"output_tokens"`
	WordCount       int            `gorm:"column:word_count;not null;default:0" json:"word_count"`
	LLMUsed         datatypes.JSON `gorm:"column:llm_used" json:"llm_used"`
	SEOScore        int            `gorm:"column:seo_score;not null;default:0" json:"seo_score"`
	LinkCandidates  datatypes.JSON `gorm:"column:link_candidates" json:"link_candidates,omitempty"`
	FactCheck       datatypes.JSON `gorm:"column:fact_check" json:"fact_check,omitempty"`
	LinkReport      datatypes.JSON `gorm:"column:link_report" json:"link_report,omitempty"`
	PublishedURL    string         `gorm:"column:published_url" json:"published_url,omitempty"`
	ErrorMessage    string         `gorm:"column:error_message" json:"error_message,omitempty"`
	PublishedAt     *time.Time     `gorm:"column:published_at" json:"published_at,omitempty"`
	IndexedAt       *time.Time     `gorm:"column:indexed_at" json:"indexed_at,omitempty"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Article) TableName() string { return "article" }

func (a *Article) Models() []string {
	var out []string
	if len(a.LLMUsed) == 0 {
		return out
	}
	_ = json.Unmarshal(a.LLMUsed, &out)
	return out
}

func EncodeModels(models []string) datatypes.JSON {
	if models == nil {
		models = []string{}
	}
	return toJSON(models)
}

func EncodeJSON(v any) datatypes.JSON { return toJSON(v) }
