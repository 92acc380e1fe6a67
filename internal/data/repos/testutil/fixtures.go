package testutil

import (
	"testing"

	"gorm.io/gorm"

	"github.com/yungbote/seoflow-backend/internal/domain"
)

func SeedSite(tb testing.TB, db *gorm.DB, days ...string) *domain.Site {
	tb.Helper()
	s := &domain.Site{
		Name:            "Example",
		Domain:          "example.com",
		Niche:           "home coffee",
		Language:        "en",
		ArticlesPerWeek: 2,
		PlanHorizonDays: 14,
	}
	if len(days) == 0 {
		days = []string{"mon", "wed", "fri"}
	}
	s.SetWeekdays(days)
	if err := db.Create(s).Error; err != nil {
		tb.Fatalf("seed site: %v", err)
	}
	return s
}

func SeedKeyword(tb testing.TB, db *gorm.DB, siteID uint, kw string, score float64) *domain.Keyword {
	tb.Helper()
	k := &domain.Keyword{
		SiteID:  siteID,
		Keyword: kw,
		Score:   score,
		Status:  domain.KeywordPending,
		Source:  "manual",
	}
	if err := db.Create(k).Error; err != nil {
		tb.Fatalf("seed keyword: %v", err)
	}
	return k
}

func SeedArticle(tb testing.TB, db *gorm.DB, siteID, keywordID uint, status string) *domain.Article {
	tb.Helper()
	a := &domain.Article{
		SiteID:    siteID,
		KeywordID: keywordID,
		Title:     "Draft",
		Status:    status,
		LLMUsed:   domain.EncodeModels(nil),
	}
	if err := db.Create(a).Error; err != nil {
		tb.Fatalf("seed article: %v", err)
	}
	return a
}
