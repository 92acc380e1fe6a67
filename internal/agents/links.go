package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/seoflow-backend/internal/events"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/seo/linking"
)

type LinkInput struct {
	Content     string
	Targets     []linking.Target
	Suggestions []linking.Suggestion
	Options     linking.Options
}

type LinkOutput struct {
	Content    string              `json:"content"`
	Candidates int                 `json:"candidates"`
	Placed     []linking.Placement `json:"placed"`
	Rejected   []linking.Rejection `json:"rejected"`
}

// InsertLinks ranks anchor candidates for the targets and places them into the
// article.
func InsertLinks(ctx context.Context, run *events.Run, in LinkInput) (*LinkOutput, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, apperr.Validation("article", "empty content")
	}
	cands := linking.Rank(in.Targets, in.Suggestions)
	_ = run.Step(ctx, fmt.Sprintf("Ranked %d anchor candidates for %d articles", len(cands), len(in.Targets)))

	content, rep := linking.Place(in.Content, cands, in.Options)
	_ = run.Progress(ctx, fmt.Sprintf("Placed %d internal links", len(rep.Placed)), 1, 1, events.WithMetadata(map[string]any{
		"placed":   len(rep.Placed),
		"rejected": len(rep.Rejected),
	}))
	out := &LinkOutput{Content: content, Candidates: len(cands), Placed: rep.Placed, Rejected: rep.Rejected}
	if out.Placed == nil {
		out.Placed = []linking.Placement{}
	}
	if out.Rejected == nil {
		out.Rejected = []linking.Rejection{}
	}
	return out, nil
}
