package content

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yungbote/seoflow-backend/internal/data/repos/testutil"
	"github.com/yungbote/seoflow-backend/internal/domain"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
)

func intPtr(v int) *int { return &v }

func TestKeywordTransitionStatusOnlyOneWinner(t *testing.T) {
	db := testutil.DB(t)
	site := testutil.SeedSite(t, db)
	kw := testutil.SeedKeyword(t, db, site.ID, "pour over ratio", 40)
	repo := NewKeywordRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	from := []string{domain.KeywordPending, domain.KeywordQueued}
	won, err := repo.TransitionStatus(dbc, kw.ID, from, domain.KeywordGenerating, nil)
	if err != nil || !won {
		t.Fatalf("first claim: won=%v err=%v", won, err)
	}
	won, err = repo.TransitionStatus(dbc, kw.ID, from, domain.KeywordGenerating, nil)
	if err != nil || won {
		t.Fatalf("second claim must lose: won=%v err=%v", won, err)
	}

	won, err = repo.TransitionStatus(dbc, kw.ID, []string{domain.KeywordGenerating}, domain.KeywordPending,
		map[string]interface{}{"last_error": "provider down"})
	if err != nil || !won {
		t.Fatalf("release: won=%v err=%v", won, err)
	}
	got, _ := repo.GetByID(dbc, kw.ID)
	if got.Status != domain.KeywordPending || got.LastError != "provider down" {
		t.Fatalf("after release: %+v", got)
	}
}

func TestKeywordCreateDuplicateIsValidation(t *testing.T) {
	db := testutil.DB(t)
	site := testutil.SeedSite(t, db)
	repo := NewKeywordRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	if err := repo.Create(dbc, &domain.Keyword{SiteID: site.ID, Keyword: "Cold Brew"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := repo.Create(dbc, &domain.Keyword{SiteID: site.ID, Keyword: "  cold   brew "})
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want ValidationError, got %v", err)
	}
}

func TestKeywordUpsertRefreshesMetricsKeepsStatus(t *testing.T) {
	db := testutil.DB(t)
	site := testutil.SeedSite(t, db)
	repo := NewKeywordRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	if _, err := repo.Upsert(dbc, []*domain.Keyword{
		{SiteID: site.ID, Keyword: "grinder", Volume: intPtr(100), Source: "discovery"},
		{SiteID: site.ID, Keyword: "Grinder", Volume: intPtr(1)},
	}); err != nil {
		t.Fatalf("Upsert #1: %v", err)
	}
	rows, _ := repo.ListBySite(dbc, site.ID, nil)
	if len(rows) != 1 {
		t.Fatalf("dedupe: want 1 row got %d", len(rows))
	}
	if _, err := repo.TransitionStatus(dbc, rows[0].ID, []string{domain.KeywordPending}, domain.KeywordCompleted, nil); err != nil {
		t.Fatalf("transition: %v", err)
	}

	if _, err := repo.Upsert(dbc, []*domain.Keyword{
		{SiteID: site.ID, Keyword: "grinder", Volume: intPtr(900), Difficulty: intPtr(20)},
	}); err != nil {
		t.Fatalf("Upsert #2: %v", err)
	}
	got, _ := repo.GetByID(dbc, rows[0].ID)
	if got.Volume == nil || *got.Volume != 900 || got.Difficulty == nil || *got.Difficulty != 20 {
		t.Fatalf("metrics not refreshed: %+v", got)
	}
	if got.Status != domain.KeywordCompleted {
		t.Fatalf("status must survive upsert, got %s", got.Status)
	}
}

func TestArticleRaiseCostNeverLowers(t *testing.T) {
	db := testutil.DB(t)
	site := testutil.SeedSite(t, db)
	kw := testutil.SeedKeyword(t, db, site.ID, "espresso", 10)
	a := testutil.SeedArticle(t, db, site.ID, kw.ID, domain.ArticleDraft)
	repo := NewArticleRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	if ok, err := repo.RaiseCost(dbc, a.ID, 0.02, 100, 50); err != nil || !ok {
		t.Fatalf("RaiseCost up: ok=%v err=%v", ok, err)
	}
	if ok, err := repo.RaiseCost(dbc, a.ID, 0.01, 10, 5); err != nil || ok {
		t.Fatalf("RaiseCost down must be refused: ok=%v err=%v", ok, err)
	}
	got, _ := repo.GetByID(dbc, a.ID)
	if got.GenerationCost != 0.02 || got.InputTokens != 100 {
		t.Fatalf("cost row: %+v", got)
	}

	reuse, err := repo.GetReusableForKeyword(dbc, kw.ID)
	if err != nil || reuse == nil || reuse.ID != a.ID {
		t.Fatalf("GetReusableForKeyword: %v %v", reuse, err)
	}
}

func TestScheduleDeletePlannedKeepsStarted(t *testing.T) {
	db := testutil.DB(t)
	site := testutil.SeedSite(t, db)
	kw1 := testutil.SeedKeyword(t, db, site.ID, "a", 1)
	kw2 := testutil.SeedKeyword(t, db, site.ID, "b", 2)
	repo := NewScheduleRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if err := repo.CreateMany(dbc, []*domain.ScheduledArticle{
		{SiteID: site.ID, KeywordID: kw1.ID, ScheduledDate: day, Status: domain.SchedulePlanned},
		{SiteID: site.ID, KeywordID: kw2.ID, ScheduledDate: day.AddDate(0, 0, 2), Status: domain.ScheduleGenerating},
	}); err != nil {
		t.Fatalf("CreateMany: %v", err)
	}

	due, err := repo.ListDue(dbc, day, 0)
	if err != nil || len(due) != 1 || due[0].KeywordID != kw1.ID {
		t.Fatalf("ListDue: %v %v", due, err)
	}

	n, err := repo.DeletePlanned(dbc, site.ID)
	if err != nil || n != 1 {
		t.Fatalf("DeletePlanned: n=%d err=%v", n, err)
	}
	left, _ := repo.ListBySite(dbc, site.ID, nil)
	if len(left) != 1 || left[0].Status != domain.ScheduleGenerating {
		t.Fatalf("remaining: %+v", left)
	}
}
