package content

import (
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/seoflow-backend/internal/domain"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

type ArticleRepo interface {
	Create(dbc dbctx.Context, a *domain.Article) error
	GetByID(dbc dbctx.Context, id uint) (*domain.Article, error)
	// GetReusableForKeyword returns the latest draft or failed article of a keyword, if any.
	GetReusableForKeyword(dbc dbctx.Context, keywordID uint) (*domain.Article, error)
	ListBySite(dbc dbctx.Context, siteID uint, statuses []string) ([]*domain.Article, error)
	UpdateFields(dbc dbctx.Context, id uint, updates map[string]interface{}) error
	// RaiseCost writes running totals only if they do not lower the stored cost.
	RaiseCost(dbc dbctx.Context, id uint, cost float64, inputTokens, outputTokens int) (bool, error)
	UpdateStatusFrom(dbc dbctx.Context, id uint, from []string, to string, extra map[string]interface{}) (bool, error)
}

type articleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewArticleRepo(db *gorm.DB, baseLog *logger.Logger) ArticleRepo {
	return &articleRepo{db: db, log: baseLog.With("repo", "ArticleRepo")}
}

func (r *articleRepo) Create(dbc dbctx.Context, a *domain.Article) error {
	if a.Status == "" {
		a.Status = domain.ArticleDraft
	}
	if len(a.LLMUsed) == 0 {
		a.LLMUsed = domain.EncodeModels(nil)
	}
	return dbc.DB(r.db).Create(a).Error
}

func (r *articleRepo) GetByID(dbc dbctx.Context, id uint) (*domain.Article, error) {
	if id == 0 {
		return nil, nil
	}
	var a domain.Article
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&a).Error; err != nil {
		return nil, err
	}
	if a.ID == 0 {
		return nil, nil
	}
	return &a, nil
}

func (r *articleRepo) GetReusableForKeyword(dbc dbctx.Context, keywordID uint) (*domain.Article, error) {
	var a domain.Article
	err := dbc.DB(r.db).
		Where("keyword_id = ? AND status IN ?", keywordID, []string{domain.ArticleDraft, domain.ArticleFailed}).
		Order("id DESC").
		Limit(1).
		Find(&a).Error
	if err != nil {
		return nil, err
	}
	if a.ID == 0 {
		return nil, nil
	}
	return &a, nil
}

func (r *articleRepo) ListBySite(dbc dbctx.Context, siteID uint, statuses []string) ([]*domain.Article, error) {
	var out []*domain.Article
	q := dbc.DB(r.db).Where("site_id = ?", siteID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	err := q.Order("id ASC").Find(&out).Error
	return out, err
}

func (r *articleRepo) UpdateFields(dbc dbctx.Context, id uint, updates map[string]interface{}) error {
	if id == 0 {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.DB(r.db).Model(&domain.Article{}).Where("id = ?", id).Updates(updates).Error
}

func (r *articleRepo) RaiseCost(dbc dbctx.Context, id uint, cost float64, inputTokens, outputTokens int) (bool, error) {
	if id == 0 {
		return false, nil
	}
	res := dbc.DB(r.db).
		Model(&domain.Article{}).
		Where("id = ? AND generation_cost <= ?", id, cost).
		Updates(map[string]interface{}{
			"generation_cost": cost,
			"input_tokens":    inputTokens,
			"output_tokens":   outputTokens,
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *articleRepo) UpdateStatusFrom(dbc dbctx.Context, id uint, from []string, to string, extra map[string]interface{}) (bool, error) {
	if id == 0 {
		return false, nil
	}
	updates := map[string]interface{}{"status": to, "updated_at": time.Now().UTC()}
	for k, v := range extra {
		updates[k] = v
	}
	q := dbc.DB(r.db).Model(&domain.Article{}).Where("id = ?", id)
	if len(from) > 0 {
		q = q.Where("status IN ?", from)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
