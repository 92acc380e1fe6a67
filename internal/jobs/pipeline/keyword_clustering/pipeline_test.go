package keyword_clustering

import (
	"context"
	"testing"

	"github.com/yungbote/seoflow-backend/internal/data/repos"
	"github.com/yungbote/seoflow-backend/internal/data/repos/testutil"
	"github.com/yungbote/seoflow-backend/internal/jobs/pipeline/pipelinetest"
	jobrt "github.com/yungbote/seoflow-backend/internal/jobs/runtime"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
)

func TestRunAssignsClusterHeads(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	set := repos.NewSet(db, log)
	site := testutil.SeedSite(t, db)
	head := testutil.SeedKeyword(t, db, site.ID, "espresso grinder", 80)
	member := testutil.SeedKeyword(t, db, site.ID, "best espresso grinders", 40)
	lone := testutil.SeedKeyword(t, db, site.ID, "cold brew ratio", 60)

	p := New(db, log, set)
	enq := &pipelinetest.Enqueuer{}
	if err := p.Run(pipelinetest.Context(t, enq, p.Type(), jobrt.EntitySite, site.ID, nil)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	dbc := dbctx.Context{Ctx: context.Background()}
	want := map[uint]uint{head.ID: head.ID, member.ID: head.ID, lone.ID: lone.ID}
	for id, cluster := range want {
		k, err := set.Keywords.GetByID(dbc, id)
		if err != nil || k == nil {
			t.Fatalf("get %d: %v", id, err)
		}
		if k.ClusterID == nil || *k.ClusterID != cluster {
			t.Fatalf("keyword %q cluster = %v, want %d", k.Keyword, k.ClusterID, cluster)
		}
	}
	if got := enq.Types(); len(got) != 1 || got[0] != jobrt.JobContentPlanBuild {
		t.Fatalf("chained = %v", got)
	}
}
