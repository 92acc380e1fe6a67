package events

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/seoflow-backend/internal/domain"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

type AgentEventRepo interface {
	// Create skips rows whose (run_id, seq) is already stored, so a redelivered
	// event is recorded once.
	Create(dbc dbctx.Context, rows []*domain.AgentEventRecord) error
	// ListByArticle returns the history of an article in emission order.
	ListByArticle(dbc dbctx.Context, articleID uint, limit int) ([]*domain.AgentEventRecord, error)
}

type agentEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAgentEventRepo(db *gorm.DB, baseLog *logger.Logger) AgentEventRepo {
	return &agentEventRepo{db: db, log: baseLog.With("repo", "AgentEventRepo")}
}

func (r *agentEventRepo) Create(dbc dbctx.Context, rows []*domain.AgentEventRecord) error {
	if len(rows) == 0 {
		return nil
	}
	return dbc.DB(r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func (r *agentEventRepo) ListByArticle(dbc dbctx.Context, articleID uint, limit int) ([]*domain.AgentEventRecord, error) {
	if limit <= 0 {
		limit = 500
	}
	var out []*domain.AgentEventRecord
	err := dbc.DB(r.db).
		Where("article_id = ?", articleID).
		Order("timestamp ASC, id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
