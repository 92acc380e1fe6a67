package keyword_discovery

import (
	"fmt"

	jobrt "github.com/yungbote/seoflow-backend/internal/jobs/runtime"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
	"github.com/yungbote/seoflow-backend/internal/seo/discovery"
)

/*
Run adds keywords to a site. Payload:
	- keywords: explicit keywords, stored as-is with source "manual"
	- seeds: topics handed to the model when no keywords are given
	- limit: how many ideas to ask for
Either way the site is re-clustered afterwards.
*/
func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
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

	tracked, err := p.keywords.ListBySite(dbc, site.ID, nil)
	if err != nil {
		return apperr.Persistence("keyword.list", err)
	}
	existing := make([]string, 0, len(tracked))
	for _, k := range tracked {
		existing = append(existing, k.Keyword)
	}

	var (
		ideas  []discovery.Idea
		source = discovery.SourceDiscovery
	)
	if manual := jc.PayloadStrings("keywords"); len(manual) > 0 {
		source = discovery.SourceManual
		ideas = discovery.Normalize(discovery.Manual(manual), existing, discovery.MaxLimit)
	} else {
		if p.discoverer == nil {
			return apperr.Validation("keywords", "no keywords given and discovery is not configured")
		}
		limit, _ := jc.PayloadUint("limit")
		found, comp, err := p.discoverer.Ideas(jc.Ctx, discovery.Request{
			Site:     site,
			Seeds:    jc.PayloadStrings("seeds"),
			Existing: existing,
			Limit:    int(limit),
		})
		if err != nil {
			return err
		}
		ideas = found
		if comp != nil {
			jc.Log.Debug("Discovery completion", "model", comp.Label(), "cost", comp.Cost)
		}
	}

	rows := discovery.Keywords(site.ID, ideas, source)
	added, err := p.keywords.Upsert(dbc, rows)
	if err != nil {
		return apperr.Persistence("keyword.upsert", err)
	}
	jc.Log.Info("Keywords discovered", "site_id", site.ID, "source", source, "ideas", len(ideas), "stored", added)

	jc.Chain(jobrt.EnqueueRequest{
		JobType:    jobrt.JobKeywordClustering,
		EntityType: jobrt.EntitySite,
		EntityID:   site.ID,
		Delay:      ClusterDelay,
		Unique:     true,
	})
	return nil
}
