package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/seoflow-backend/internal/domain"
)

// Partial indexes gorm tags cannot express. Both postgres and sqlite accept
// this syntax.
var partialIndexes = []struct{ name, ddl string }{
	{
		"idx_job_run_claimable",
		"CREATE INDEX IF NOT EXISTS idx_job_run_claimable ON job_run (run_at, id) WHERE status = '" + domain.JobQueued + "'",
	},
	{
		"idx_agent_event_run_seq",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_agent_event_run_seq ON agent_event (run_id, seq) WHERE run_id <> ''",
	},
	{
		"idx_job_run_stale",
		"CREATE INDEX IF NOT EXISTS idx_job_run_stale ON job_run (heartbeat_at) WHERE status = '" + domain.JobRunning + "'",
	},
}

// AutoMigrateAll creates or updates every table, then the partial indexes the
// job claim and reaper queries and agent event de-duplication rely on.
func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(domain.Models()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	for _, ix := range partialIndexes {
		if err := db.Exec(ix.ddl).Error; err != nil {
			return fmt.Errorf("create index %s: %w", ix.name, err)
		}
	}
	return nil
}
