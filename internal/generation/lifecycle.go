package generation

import (
	"fmt"

	"github.com/yungbote/seoflow-backend/internal/data/repos"
	"github.com/yungbote/seoflow-backend/internal/domain"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
)

var keywordTransitions = map[string]map[string]bool{
	domain.KeywordPending:    {domain.KeywordQueued: true, domain.KeywordGenerating: true},
	domain.KeywordQueued:     {domain.KeywordGenerating: true, domain.KeywordPending: true},
	domain.KeywordGenerating: {domain.KeywordCompleted: true, domain.KeywordPending: true},
}

// KeywordTransition rejects any keyword status move outside the lifecycle.
func KeywordTransition(from, to string) error {
	if keywordTransitions[from][to] {
		return nil
	}
	return apperr.Validation("status", fmt.Sprintf("keyword cannot move from %q to %q", from, to))
}

// TransitionKeyword validates every from->to pair and then performs the move
// as one conditional update. It reports whether this caller won.
func TransitionKeyword(dbc dbctx.Context, repo repos.KeywordRepo, id uint, from []string, to string, extra map[string]interface{}) (bool, error) {
	for _, f := range from {
		if err := KeywordTransition(f, to); err != nil {
			return false, err
		}
	}
	won, err := repo.TransitionStatus(dbc, id, from, to, extra)
	if err != nil {
		return false, apperr.Persistence("keyword.transition", err)
	}
	return won, nil
}
