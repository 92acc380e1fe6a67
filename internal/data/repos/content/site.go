package content

import (
	"gorm.io/gorm"

	"github.com/yungbote/seoflow-backend/internal/domain"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

type SiteRepo interface {
	Create(dbc dbctx.Context, site *domain.Site) error
	GetByID(dbc dbctx.Context, id uint) (*domain.Site, error)
	ListAnalyticsConnected(dbc dbctx.Context) ([]*domain.Site, error)
	ListAll(dbc dbctx.Context) ([]*domain.Site, error)
}

type siteRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSiteRepo(db *gorm.DB, baseLog *logger.Logger) SiteRepo {
	return &siteRepo{db: db, log: baseLog.With("repo", "SiteRepo")}
}

func (r *siteRepo) Create(dbc dbctx.Context, site *domain.Site) error {
	return dbc.DB(r.db).Create(site).Error
}

func (r *siteRepo) GetByID(dbc dbctx.Context, id uint) (*domain.Site, error) {
	if id == 0 {
		return nil, nil
	}
	var s domain.Site
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&s).Error; err != nil {
		return nil, err
	}
	if s.ID == 0 {
		return nil, nil
	}
	return &s, nil
}

func (r *siteRepo) ListAnalyticsConnected(dbc dbctx.Context) ([]*domain.Site, error) {
	var out []*domain.Site
	err := dbc.DB(r.db).Where("analytics_connected = ?", true).Order("id ASC").Find(&out).Error
	return out, err
}

func (r *siteRepo) ListAll(dbc dbctx.Context) ([]*domain.Site, error) {
	var out []*domain.Site
	err := dbc.DB(r.db).Order("id ASC").Find(&out).Error
	return out, err
}
