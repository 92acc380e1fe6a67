package keyword_clustering

import (
	"fmt"

	"gorm.io/gorm"

	jobrt "github.com/yungbote/seoflow-backend/internal/jobs/runtime"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
	"github.com/yungbote/seoflow-backend/internal/seo/clustering"
)

// Run regroups every keyword of the site and then rebuilds its content plan,
// since cluster heads shift which keywords are worth scheduling first.
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

	kws, err := p.keywords.ListBySite(dbc, site.ID, nil)
	if err != nil {
		return apperr.Persistence("keyword.list", err)
	}
	items := make([]clustering.Item, 0, len(kws))
	for _, k := range kws {
		items = append(items, clustering.Item{ID: k.ID, Keyword: k.Keyword, Score: k.Score})
	}
	clusters := clustering.Group(items, p.threshold)

	err = p.db.WithContext(jc.Ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: jc.Ctx, Tx: tx}
		for _, c := range clusters {
			if err := p.keywords.AssignCluster(txc, c.Members, c.HeadID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperr.Persistence("keyword.cluster", err)
	}
	jc.Log.Info("Keywords clustered", "site_id", site.ID, "keywords", len(items), "clusters", len(clusters))

	jc.Chain(jobrt.EnqueueRequest{
		JobType:    jobrt.JobContentPlanBuild,
		EntityType: jobrt.EntitySite,
		EntityID:   site.ID,
		Unique:     true,
	})
	return nil
}
