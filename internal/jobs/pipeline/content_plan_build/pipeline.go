package content_plan_build

import (
	jobrt "github.com/yungbote/seoflow-backend/internal/jobs/runtime"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	res, err := p.planner.Rebuild(jc.Ctx, jc.EntityID())
	if err != nil {
		return err
	}
	jc.Log.Info("Content plan built",
		"site_id", res.SiteID,
		"planned", len(res.Entries),
		"kept", res.Kept,
		"removed", res.Removed,
	)
	return nil
}
