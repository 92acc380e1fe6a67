package analytics_sync

import (
	"fmt"
	"math"
	"strings"

	"github.com/yungbote/seoflow-backend/internal/domain"
	jobrt "github.com/yungbote/seoflow-backend/internal/jobs/runtime"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
	"github.com/yungbote/seoflow-backend/internal/seo/discovery"
	"github.com/yungbote/seoflow-backend/internal/seo/scoring"
)

/*
Run refreshes search positions for a site:
	- tracked keywords get the new position and a recomputed score
	- unseen queries the site already ranks for become pending keywords
Updated scores reorder the content plan, so the plan is rebuilt afterwards.
*/
func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	if p.source == nil {
		jc.Log.Info("Analytics source not configured")
		return nil
	}
	dbc := dbctx.Context{Ctx: jc.Ctx}
	site, err := p.sites.GetByID(dbc, jc.EntityID())
	if err != nil {
		return apperr.Persistence("site.get", err)
	}
	if site == nil {
		return apperr.Validation("site_id", fmt.Sprintf("site %d not found", jc.EntityID()))
	}
	rows, err := p.source.Positions(jc.Ctx, site)
	if err != nil {
		return err
	}

	tracked, err := p.keywords.ListBySite(dbc, site.ID, nil)
	if err != nil {
		return apperr.Persistence("keyword.list", err)
	}
	byKeyword := make(map[string]*domain.Keyword, len(tracked))
	for _, k := range tracked {
		byKeyword[normalize(k.Keyword)] = k
	}

	var (
		updated int
		fresh   []*domain.Keyword
	)
	for _, row := range rows {
		kw := normalize(row.Keyword)
		pos := int(math.Round(row.Position))
		if kw == "" || pos <= 0 {
			continue
		}
		if k, ok := byKeyword[kw]; ok {
			k.Position = &pos
			if err := p.keywords.UpdateFields(dbc, k.ID, map[string]interface{}{
				"position": pos,
				"score":    scoring.ForKeyword(k).Total,
			}); err != nil {
				return apperr.Persistence("keyword.position", err)
			}
			updated++
			continue
		}
		k := &domain.Keyword{
			SiteID:   site.ID,
			Keyword:  kw,
			Position: &pos,
			Status:   domain.KeywordPending,
			Source:   discovery.SourceAnalytics,
		}
		k.Score = scoring.ForKeyword(k).Total
		byKeyword[kw] = k
		fresh = append(fresh, k)
	}
	added, err := p.keywords.Upsert(dbc, fresh)
	if err != nil {
		return apperr.Persistence("keyword.upsert", err)
	}
	jc.Log.Info("Analytics synced", "site_id", site.ID, "rows", len(rows), "updated", updated, "added", added)

	if updated > 0 || added > 0 {
		jc.Chain(jobrt.EnqueueRequest{
			JobType:    jobrt.JobContentPlanBuild,
			EntityType: jobrt.EntitySite,
			EntityID:   site.ID,
			Unique:     true,
		})
	}
	return nil
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
