package agents

import (
	"context"
	"strings"

	"github.com/yungbote/seoflow-backend/internal/events"
	"github.com/yungbote/seoflow-backend/internal/generation"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
)

type ResearchInput struct {
	Keyword     string
	Niche       string
	Language    string
	Competitors string
}

type ResearchOutput struct {
	Brief        generation.ResearchBrief `json:"brief"`
	Model        string                   `json:"model,omitempty"`
	Cost         float64                  `json:"cost"`
	InputTokens  int                      `json:"input_tokens"`
	OutputTokens int                      `json:"output_tokens"`
}

func Research(ctx context.Context, w *generation.Writer, run *events.Run, in ResearchInput) (*ResearchOutput, error) {
	if strings.TrimSpace(in.Keyword) == "" {
		return nil, apperr.Validation("keyword", "required")
	}
	msg := "Analysing search intent"
	if strings.TrimSpace(in.Competitors) != "" {
		msg = "Analysing search intent and competitor coverage"
	}
	_ = run.Step(ctx, msg)

	brief, c, err := w.Research(ctx, generation.Brief{
		Keyword:     in.Keyword,
		Niche:       in.Niche,
		Language:    in.Language,
		Competitors: in.Competitors,
	})
	if err != nil {
		return nil, err
	}
	_ = run.Progress(ctx, "Research brief ready", 1, 1, events.WithMetadata(map[string]any{
		"must_cover":        len(brief.MustCover),
		"target_word_count": brief.TargetWordCount,
	}))
	return &ResearchOutput{
		Brief:        *brief,
		Model:        c.Label(),
		Cost:         c.Cost,
		InputTokens:  c.InputTokens,
		OutputTokens: c.OutputTokens,
	}, nil
}
