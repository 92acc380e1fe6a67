package schedule

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/seoflow-backend/internal/data/repos"
	"github.com/yungbote/seoflow-backend/internal/domain"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

const candidateLimit = 500

type Result struct {
	SiteID  uint         `json:"site_id"`
	Removed int64        `json:"removed"`
	Kept    int          `json:"kept"`
	Entries []Assignment `json:"entries"`
}

type Planner struct {
	db       *gorm.DB
	log      *logger.Logger
	sites    repos.SiteRepo
	keywords repos.KeywordRepo
	schedule repos.ScheduleRepo
	now      func() time.Time
}

func NewPlanner(db *gorm.DB, baseLog *logger.Logger, set *repos.Set) *Planner {
	return &Planner{
		db:       db,
		log:      baseLog.With("component", "ContentPlanner"),
		sites:    set.Sites,
		keywords: set.Keywords,
		schedule: set.Schedule,
		now:      time.Now,
	}
}

// Rebuild replaces every planned entry of the site with a fresh plan. Entries
// in any other status stay and consume their week's quota.
func (p *Planner) Rebuild(ctx context.Context, siteID uint) (*Result, error) {
	site, err := p.sites.GetByID(dbctx.Context{Ctx: ctx}, siteID)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, apperr.Validation("site_id", fmt.Sprintf("site %d not found", siteID))
	}
	days, err := ParseWeekdays(site.Weekdays())
	if err != nil {
		return nil, apperr.Validation("publish_days", err.Error())
	}
	params := Params{Days: days, PerWeek: site.ArticlesPerWeek, HorizonDays: site.PlanHorizonDays}
	now := p.now()

	res := &Result{SiteID: siteID}
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		removed, err := p.schedule.DeletePlanned(dbc, siteID)
		if err != nil {
			return err
		}
		res.Removed = removed

		kept, err := p.schedule.ListBySite(dbc, siteID, nil)
		if err != nil {
			return err
		}
		res.Kept = len(kept)
		taken := make([]time.Time, 0, len(kept))
		scheduled := map[uint]bool{}
		for _, e := range kept {
			taken = append(taken, e.ScheduledDate)
			scheduled[e.KeywordID] = true
		}

		ranked, err := p.keywords.ListRanked(dbc, siteID, candidateLimit)
		if err != nil {
			return err
		}
		cands := make([]Candidate, 0, len(ranked))
		for _, k := range ranked {
			if scheduled[k.ID] {
				continue
			}
			cands = append(cands, Candidate{KeywordID: k.ID, Keyword: k.Keyword, Score: k.Score})
		}

		res.Entries = Plan(now, params, cands, taken)
		rows := make([]*domain.ScheduledArticle, 0, len(res.Entries))
		for _, a := range res.Entries {
			rows = append(rows, &domain.ScheduledArticle{
				SiteID:        siteID,
				KeywordID:     a.KeywordID,
				ScheduledDate: a.Date,
				Status:        domain.SchedulePlanned,
			})
		}
		return p.schedule.CreateMany(dbc, rows)
	})
	if err != nil {
		return nil, apperr.Persistence("schedule.rebuild", err)
	}
	p.log.Info("Content plan rebuilt",
		"site_id", siteID,
		"removed", res.Removed,
		"kept", res.Kept,
		"planned", len(res.Entries),
	)
	return res, nil
}
