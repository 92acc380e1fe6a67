package content

import (
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/seoflow-backend/internal/domain"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

type ScheduleRepo interface {
	CreateMany(dbc dbctx.Context, rows []*domain.ScheduledArticle) error
	ListBySite(dbc dbctx.Context, siteID uint, statuses []string) ([]*domain.ScheduledArticle, error)
	DeletePlanned(dbc dbctx.Context, siteID uint) (int64, error)
	// ListDue returns planned entries scheduled on or before the given day.
	ListDue(dbc dbctx.Context, day time.Time, limit int) ([]*domain.ScheduledArticle, error)
	UpdateStatusByKeyword(dbc dbctx.Context, keywordID uint, from []string, to string, articleID *uint) (int64, error)
}

type scheduleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewScheduleRepo(db *gorm.DB, baseLog *logger.Logger) ScheduleRepo {
	return &scheduleRepo{db: db, log: baseLog.With("repo", "ScheduleRepo")}
}

func (r *scheduleRepo) CreateMany(dbc dbctx.Context, rows []*domain.ScheduledArticle) error {
	if len(rows) == 0 {
		return nil
	}
	return dbc.DB(r.db).Create(&rows).Error
}

func (r *scheduleRepo) ListBySite(dbc dbctx.Context, siteID uint, statuses []string) ([]*domain.ScheduledArticle, error) {
	var out []*domain.ScheduledArticle
	q := dbc.DB(r.db).Where("site_id = ?", siteID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	err := q.Order("scheduled_date ASC, id ASC").Find(&out).Error
	return out, err
}

func (r *scheduleRepo) DeletePlanned(dbc dbctx.Context, siteID uint) (int64, error) {
	res := dbc.DB(r.db).
		Where("site_id = ? AND status = ?", siteID, domain.SchedulePlanned).
		Delete(&domain.ScheduledArticle{})
	return res.RowsAffected, res.Error
}

func (r *scheduleRepo) ListDue(dbc dbctx.Context, day time.Time, limit int) ([]*domain.ScheduledArticle, error) {
	if limit <= 0 {
		limit = 200
	}
	end := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	var out []*domain.ScheduledArticle
	err := dbc.DB(r.db).
		Where("status = ? AND scheduled_date < ?", domain.SchedulePlanned, end).
		Order("scheduled_date ASC, id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *scheduleRepo) UpdateStatusByKeyword(dbc dbctx.Context, keywordID uint, from []string, to string, articleID *uint) (int64, error) {
	updates := map[string]interface{}{"status": to, "updated_at": time.Now().UTC()}
	if articleID != nil {
		updates["article_id"] = *articleID
	}
	q := dbc.DB(r.db).Model(&domain.ScheduledArticle{}).Where("keyword_id = ?", keywordID)
	if len(from) > 0 {
		q = q.Where("status IN ?", from)
	}
	res := q.Updates(updates)
	return res.RowsAffected, res.Error
}
