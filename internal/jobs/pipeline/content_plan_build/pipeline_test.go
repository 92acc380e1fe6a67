package content_plan_build

import (
	"context"
	"testing"

	"github.com/yungbote/seoflow-backend/internal/data/repos"
	"github.com/yungbote/seoflow-backend/internal/data/repos/testutil"
	"github.com/yungbote/seoflow-backend/internal/jobs/pipeline/pipelinetest"
	jobrt "github.com/yungbote/seoflow-backend/internal/jobs/runtime"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
	"github.com/yungbote/seoflow-backend/internal/seo/schedule"
)

func TestRunPlansPendingKeywords(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	set := repos.NewSet(db, log)
	site := testutil.SeedSite(t, db)
	for i, kw := range []string{"a grinder", "b kettle", "c scale"} {
		testutil.SeedKeyword(t, db, site.ID, kw, float64(90-i))
	}

	p := New(log, schedule.NewPlanner(db, log, set))
	if err := p.Run(pipelinetest.Context(t, nil, p.Type(), jobrt.EntitySite, site.ID, nil)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	rows, err := set.Schedule.ListBySite(dbctx.Context{Ctx: context.Background()}, site.ID, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("planned = %d, want 3", len(rows))
	}
}

func TestRunUnknownSite(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	p := New(log, schedule.NewPlanner(db, log, repos.NewSet(db, log)))
	err := p.Run(pipelinetest.Context(t, nil, p.Type(), jobrt.EntitySite, 99, nil))
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("err = %v, want validation", err)
	}
}
