package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/seoflow-backend/internal/domain"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

type JobRunRepo interface {
	Create(dbc dbctx.Context, jobs []*domain.JobRun) ([]*domain.JobRun, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.JobRun, error)
	ListByEntity(dbc dbctx.Context, entityType string, entityID uint, limit int) ([]*domain.JobRun, error)
	HasRunnableForEntity(dbc dbctx.Context, entityType string, entityID uint, jobType string) (bool, error)

	// ClaimNextRunnable moves the oldest due queued job to running and bumps attempts.
	// The claim is a conditional update, so two workers never get the same row.
	ClaimNextRunnable(dbc dbctx.Context, now time.Time) (*domain.JobRun, error)
	// ClaimByID claims one specific queued job, for runners that own dispatch.
	ClaimByID(dbc dbctx.Context, id uuid.UUID, now time.Time) (*domain.JobRun, error)
	Heartbeat(dbc dbctx.Context, id uuid.UUID) error

	// The transitions out of running are compare-and-swap; false means another
	// actor already moved the row and the caller must not run side effects.
	MarkSucceeded(dbc dbctx.Context, id uuid.UUID) (bool, error)
	Requeue(dbc dbctx.Context, id uuid.UUID, runAt time.Time, errMsg, errKind string) (bool, error)
	MarkFailed(dbc dbctx.Context, id uuid.UUID, errMsg, errKind string) (bool, error)
	// Abandon fails a job that never started, e.g. when dispatch was refused.
	Abandon(dbc dbctx.Context, id uuid.UUID, errMsg, errKind string) (bool, error)

	ListStaleRunning(dbc dbctx.Context, cutoff time.Time, limit int) ([]*domain.JobRun, error)
}

type jobRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return &jobRunRepo{
		db:  db,
		log: baseLog.With("repo", "JobRunRepo"),
	}
}

func (r *jobRunRepo) Create(dbc dbctx.Context, jobs []*domain.JobRun) ([]*domain.JobRun, error) {
	if len(jobs) == 0 {
		return []*domain.JobRun{}, nil
	}
	if err := dbc.DB(r.db).Create(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.JobRun, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var job domain.JobRun
	err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, nil
	}
	return &job, nil
}

func (r *jobRunRepo) ListByEntity(dbc dbctx.Context, entityType string, entityID uint, limit int) ([]*domain.JobRun, error) {
	var out []*domain.JobRun
	if entityType == "" || entityID == 0 {
		return out, nil
	}
	if limit <= 0 {
		limit = 50
	}
	err := dbc.DB(r.db).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *jobRunRepo) HasRunnableForEntity(dbc dbctx.Context, entityType string, entityID uint, jobType string) (bool, error) {
	if entityType == "" || entityID == 0 || jobType == "" {
		return false, nil
	}
	var count int64
	err := dbc.DB(r.db).
		Model(&domain.JobRun{}).
		Where("entity_type = ? AND entity_id = ? AND job_type = ? AND status IN ?",
			entityType, entityID, jobType, []string{domain.JobQueued, domain.JobRunning},
		).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *jobRunRepo) ClaimNextRunnable(dbc dbctx.Context, now time.Time) (*domain.JobRun, error) {
	var claimed *domain.JobRun
	err := dbc.DB(r.db).Transaction(func(txx *gorm.DB) error {
		var job domain.JobRun
		q := txx.Where("status = ? AND run_at <= ? AND attempts < max_attempts", domain.JobQueued, now).
			Order("run_at ASC, created_at ASC")
		if txx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		qErr := q.First(&job).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		res := txx.Model(&domain.JobRun{}).
			Where("id = ? AND status = ? AND attempts < max_attempts", job.ID, domain.JobQueued).
			Updates(map[string]interface{}{
				"status":       domain.JobRunning,
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"updated_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		job.Status = domain.JobRunning
		job.Attempts++
		job.LockedAt = &now
		job.HeartbeatAt = &now
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *jobRunRepo) ClaimByID(dbc dbctx.Context, id uuid.UUID, now time.Time) (*domain.JobRun, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	res := dbc.DB(r.db).Model(&domain.JobRun{}).
		Where("id = ? AND status = ? AND attempts < max_attempts", id, domain.JobQueued).
		Updates(map[string]interface{}{
			"status":       domain.JobRunning,
			"attempts":     gorm.Expr("attempts + 1"),
			"locked_at":    now,
			"heartbeat_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return r.GetByID(dbc, id)
}

func (r *jobRunRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	return dbc.DB(r.db).
		Model(&domain.JobRun{}).
		Where("id = ? AND status = ?", id, domain.JobRunning).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error
}

func (r *jobRunRepo) MarkSucceeded(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	now := time.Now().UTC()
	return r.transition(dbc, id, map[string]interface{}{
		"status":      domain.JobSucceeded,
		"error":       "",
		"error_kind":  "",
		"finished_at": now,
		"updated_at":  now,
	}, "")
}

func (r *jobRunRepo) Requeue(dbc dbctx.Context, id uuid.UUID, runAt time.Time, errMsg, errKind string) (bool, error) {
	now := time.Now().UTC()
	return r.transition(dbc, id, map[string]interface{}{
		"status":        domain.JobQueued,
		"run_at":        runAt,
		"error":         errMsg,
		"error_kind":    errKind,
		"last_error_at": now,
		"locked_at":     nil,
		"heartbeat_at":  nil,
		"updated_at":    now,
	}, "attempts < max_attempts")
}

func (r *jobRunRepo) MarkFailed(dbc dbctx.Context, id uuid.UUID, errMsg, errKind string) (bool, error) {
	now := time.Now().UTC()
	return r.transition(dbc, id, map[string]interface{}{
		"status":        domain.JobFailed,
		"error":         errMsg,
		"error_kind":    errKind,
		"last_error_at": now,
		"finished_at":   now,
		"updated_at":    now,
	}, "")
}

func (r *jobRunRepo) Abandon(dbc dbctx.Context, id uuid.UUID, errMsg, errKind string) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	now := time.Now().UTC()
	res := dbc.DB(r.db).
		Model(&domain.JobRun{}).
		Where("id = ? AND status = ?", id, domain.JobQueued).
		Updates(map[string]interface{}{
			"status":        domain.JobFailed,
			"error":         errMsg,
			"error_kind":    errKind,
			"last_error_at": now,
			"finished_at":   now,
			"updated_at":    now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *jobRunRepo) transition(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}, extraWhere string) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	q := dbc.DB(r.db).
		Model(&domain.JobRun{}).
		Where("id = ? AND status = ?", id, domain.JobRunning)
	if extraWhere != "" {
		q = q.Where(extraWhere)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *jobRunRepo) ListStaleRunning(dbc dbctx.Context, cutoff time.Time, limit int) ([]*domain.JobRun, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []*domain.JobRun
	err := dbc.DB(r.db).
		Where("status = ? AND (heartbeat_at IS NULL OR heartbeat_at < ?)", domain.JobRunning, cutoff).
		Order("heartbeat_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
