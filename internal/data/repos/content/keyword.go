package content

import (
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/seoflow-backend/internal/domain"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

type KeywordRepo interface {
	Create(dbc dbctx.Context, kw *domain.Keyword) error
	// Upsert inserts new keywords and refreshes metrics of existing (site, keyword) pairs.
	// Status, cluster and score of existing rows are left alone.
	Upsert(dbc dbctx.Context, kws []*domain.Keyword) (int64, error)
	GetByID(dbc dbctx.Context, id uint) (*domain.Keyword, error)
	GetByIDs(dbc dbctx.Context, ids []uint) ([]*domain.Keyword, error)
	ListBySite(dbc dbctx.Context, siteID uint, statuses []string) ([]*domain.Keyword, error)
	// ListRanked returns pending keywords of a site by descending score.
	ListRanked(dbc dbctx.Context, siteID uint, limit int) ([]*domain.Keyword, error)
	UpdateFields(dbc dbctx.Context, id uint, updates map[string]interface{}) error
	// TransitionStatus is a compare-and-swap on status. It reports whether this caller won.
	TransitionStatus(dbc dbctx.Context, id uint, from []string, to string, extra map[string]interface{}) (bool, error)
	// Reclaim succeeds only while jobID still holds the generating claim.
	Reclaim(dbc dbctx.Context, id uint, jobID string) (bool, error)
	AssignCluster(dbc dbctx.Context, ids []uint, clusterID uint) error
}

type keywordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewKeywordRepo(db *gorm.DB, baseLog *logger.Logger) KeywordRepo {
	return &keywordRepo{db: db, log: baseLog.With("repo", "KeywordRepo")}
}

func normalizeKeyword(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func (r *keywordRepo) Create(dbc dbctx.Context, kw *domain.Keyword) error {
	kw.Keyword = normalizeKeyword(kw.Keyword)
	if kw.Keyword == "" {
		return apperr.Validation("keyword", "must not be empty")
	}
	if kw.Status == "" {
		kw.Status = domain.KeywordPending
	}
	err := dbc.DB(r.db).Create(kw).Error
	if isUniqueViolation(err) {
		return apperr.Validation("keyword", "already exists for this site")
	}
	return err
}

func (r *keywordRepo) Upsert(dbc dbctx.Context, kws []*domain.Keyword) (int64, error) {
	rows := make([]*domain.Keyword, 0, len(kws))
	seen := map[string]bool{}
	for _, k := range kws {
		if k == nil {
			continue
		}
		k.Keyword = normalizeKeyword(k.Keyword)
		key := k.Keyword
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if k.Status == "" {
			k.Status = domain.KeywordPending
		}
		rows = append(rows, k)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	res := dbc.DB(r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "site_id"}, {Name: "keyword"}},
		DoUpdates: clause.AssignmentColumns([]string{"volume", "difficulty", "position", "updated_at"}),
	}).Create(&rows)
	if res.Error != nil {
		return 0, apperr.Persistence("keyword upsert", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *keywordRepo) GetByID(dbc dbctx.Context, id uint) (*domain.Keyword, error) {
	if id == 0 {
		return nil, nil
	}
	var k domain.Keyword
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&k).Error; err != nil {
		return nil, err
	}
	if k.ID == 0 {
		return nil, nil
	}
	return &k, nil
}

func (r *keywordRepo) GetByIDs(dbc dbctx.Context, ids []uint) ([]*domain.Keyword, error) {
	var out []*domain.Keyword
	if len(ids) == 0 {
		return out, nil
	}
	err := dbc.DB(r.db).Where("id IN ?", ids).Find(&out).Error
	return out, err
}

func (r *keywordRepo) ListBySite(dbc dbctx.Context, siteID uint, statuses []string) ([]*domain.Keyword, error) {
	var out []*domain.Keyword
	q := dbc.DB(r.db).Where("site_id = ?", siteID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	err := q.Order("score DESC, id ASC").Find(&out).Error
	return out, err
}

func (r *keywordRepo) ListRanked(dbc dbctx.Context, siteID uint, limit int) ([]*domain.Keyword, error) {
	var out []*domain.Keyword
	q := dbc.DB(r.db).
		Where("site_id = ? AND status = ?", siteID, domain.KeywordPending).
		Order("score DESC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

func (r *keywordRepo) UpdateFields(dbc dbctx.Context, id uint, updates map[string]interface{}) error {
	if id == 0 {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.DB(r.db).Model(&domain.Keyword{}).Where("id = ?", id).Updates(updates).Error
}

func (r *keywordRepo) TransitionStatus(dbc dbctx.Context, id uint, from []string, to string, extra map[string]interface{}) (bool, error) {
	if id == 0 || len(from) == 0 {
		return false, nil
	}
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	for k, v := range extra {
		updates[k] = v
	}
	res := dbc.DB(r.db).
		Model(&domain.Keyword{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *keywordRepo) Reclaim(dbc dbctx.Context, id uint, jobID string) (bool, error) {
	if id == 0 || jobID == "" {
		return false, nil
	}
	res := dbc.DB(r.db).
		Model(&domain.Keyword{}).
		Where("id = ? AND status = ? AND claim_job_id = ?", id, domain.KeywordGenerating, jobID).
		Update("updated_at", time.Now().UTC())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *keywordRepo) AssignCluster(dbc dbctx.Context, ids []uint, clusterID uint) error {
	if len(ids) == 0 {
		return nil
	}
	return dbc.DB(r.db).
		Model(&domain.Keyword{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{"cluster_id": clusterID, "updated_at": time.Now().UTC()}).Error
}
