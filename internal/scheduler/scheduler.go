// Package scheduler runs the periodic sweeps that feed the job queue: the
// nightly analytics refresh and the pickup of plan entries that have come due.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron"

	"github.com/yungbote/seoflow-backend/internal/data/repos"
	"github.com/yungbote/seoflow-backend/internal/domain"
	"github.com/yungbote/seoflow-backend/internal/generation"
	jobrt "github.com/yungbote/seoflow-backend/internal/jobs/runtime"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
	"github.com/yungbote/seoflow-backend/internal/platform/envutil"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

/*
Config holds cron specs in the six-field form (seconds first).
  - AnalyticsSpec: enqueue analytics_sync for every site with analytics connected.
  - DueSpec: queue generation for plan entries scheduled today or earlier.
An empty spec disables that sweep.
*/
type Config struct {
	AnalyticsSpec string
	DueSpec       string
	DueBatch      int
}

func ConfigFromEnv() Config {
	return Config{
		AnalyticsSpec: envutil.String("CRON_ANALYTICS_SPEC", "0 0 3 * * *"),
		DueSpec:       envutil.String("CRON_DUE_SPEC", "0 */15 * * * *"),
		DueBatch:      envutil.Int("CRON_DUE_BATCH", 50),
	}
}

type Scheduler struct {
	log      *logger.Logger
	sites    repos.SiteRepo
	keywords repos.KeywordRepo
	schedule repos.ScheduleRepo
	enq      jobrt.Enqueuer
	cfg      Config
	now      func() time.Time
	cron     *cron.Cron
}

func New(baseLog *logger.Logger, set *repos.Set, enq jobrt.Enqueuer, cfg Config) *Scheduler {
	if cfg.DueBatch <= 0 {
		cfg.DueBatch = 50
	}
	return &Scheduler{
		log:      baseLog.With("component", "Scheduler"),
		sites:    set.Sites,
		keywords: set.Keywords,
		schedule: set.Schedule,
		enq:      enq,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Start registers the sweeps and starts the cron runner. Every sweep runs
// with ctx, so cancelling it aborts in-flight work; Stop halts the timer.
func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.NewWithLocation(time.UTC)
	if s.cfg.AnalyticsSpec != "" {
		if err := c.AddFunc(s.cfg.AnalyticsSpec, func() { s.run(ctx, "analytics", s.SweepAnalytics) }); err != nil {
			return fmt.Errorf("analytics cron spec %q: %w", s.cfg.AnalyticsSpec, err)
		}
	}
	if s.cfg.DueSpec != "" {
		if err := c.AddFunc(s.cfg.DueSpec, func() { s.run(ctx, "due", s.SweepDue) }); err != nil {
			return fmt.Errorf("due cron spec %q: %w", s.cfg.DueSpec, err)
		}
	}
	c.Start()
	s.cron = c
	s.log.Info("Scheduler started", "analytics_spec", s.cfg.AnalyticsSpec, "due_spec", s.cfg.DueSpec)
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func (s *Scheduler) run(ctx context.Context, name string, sweep func(context.Context) (int, error)) {
	if ctx.Err() != nil {
		return
	}
	n, err := sweep(ctx)
	if err != nil {
		s.log.Warn("Sweep failed", "sweep", name, "enqueued", n, "error", err)
		return
	}
	s.log.Debug("Sweep finished", "sweep", name, "enqueued", n)
}

// SweepAnalytics enqueues one analytics_sync per connected site. A failed
// enqueue is logged and the sweep carries on with the next site.
func (s *Scheduler) SweepAnalytics(ctx context.Context) (int, error) {
	sites, err := s.sites.ListAnalyticsConnected(dbctx.Context{Ctx: ctx})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, site := range sites {
		if _, err := s.enq.Enqueue(ctx, jobrt.EnqueueRequest{
			JobType:    jobrt.JobAnalyticsSync,
			EntityType: jobrt.EntitySite,
			EntityID:   site.ID,
			Unique:     true,
		}); err != nil {
			s.log.Warn("Analytics enqueue failed", "site_id", site.ID, "error", err)
			continue
		}
		n++
	}
	return n, nil
}

// SweepDue moves the keyword of every due plan entry from pending to queued
// and enqueues its generation. Entries whose keyword is already taken are
// skipped; a failed enqueue puts the keyword back to pending.
func (s *Scheduler) SweepDue(ctx context.Context) (int, error) {
	dbc := dbctx.Context{Ctx: ctx}
	due, err := s.schedule.ListDue(dbc, s.now().UTC(), s.cfg.DueBatch)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, entry := range due {
		won, err := generation.TransitionKeyword(dbc, s.keywords, entry.KeywordID,
			[]string{domain.KeywordPending}, domain.KeywordQueued, nil)
		if err != nil {
			s.log.Warn("Keyword queue failed", "keyword_id", entry.KeywordID, "error", err)
			continue
		}
		if !won {
			continue
		}
		if _, err := s.enq.Enqueue(ctx, jobrt.EnqueueRequest{
			JobType:    jobrt.JobArticleGenerate,
			EntityType: jobrt.EntityKeyword,
			EntityID:   entry.KeywordID,
			Unique:     true,
		}); err != nil {
			s.log.Warn("Generation enqueue failed", "keyword_id", entry.KeywordID, "error", err)
			if _, rerr := generation.TransitionKeyword(dbc, s.keywords, entry.KeywordID,
				[]string{domain.KeywordQueued}, domain.KeywordPending, nil); rerr != nil {
				s.log.Warn("Keyword release failed", "keyword_id", entry.KeywordID, "error", rerr)
			}
			continue
		}
		n++
	}
	return n, nil
}
