package agents

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/seoflow-backend/internal/events"
	"github.com/yungbote/seoflow-backend/internal/generation"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/llm"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

const (
	VerdictSupported    = "supported"
	VerdictUnsupported  = "unsupported"
	VerdictIncorrect    = "incorrect"
	VerdictUnverifiable = "unverifiable"

	DefaultMaxClaims        = 12
	DefaultVerifyConcurrent = 4

	stepExtract = "extract"
	stepVerify  = "verify"
)

type ClaimCheck struct {
	Claim      string `json:"claim"`
	Verdict    string `json:"verdict"`
	Note       string `json:"note,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

type FactCheckOutput struct {
	Claims       int          `json:"claims"`
	Checks       []ClaimCheck `json:"checks"`
	Issues       []ClaimCheck `json:"issues"`
	Cost         float64      `json:"cost"`
	InputTokens  int          `json:"input_tokens"`
	OutputTokens int          `json:"output_tokens"`
	Models       []string     `json:"models"`
}

type FactChecker struct {
	provider  llm.Provider
	log       *logger.Logger
	maxClaims int
	limit     int
}

func NewFactChecker(provider llm.Provider, baseLog *logger.Logger) *FactChecker {
	return &FactChecker{
		provider:  provider,
		log:       baseLog.With("component", "FactChecker"),
		maxClaims: DefaultMaxClaims,
		limit:     DefaultVerifyConcurrent,
	}
}

// Check extracts checkable claims from the article and verifies each one.
// Extraction failures fail the check; a claim whose verification fails is
// reported as unverifiable.
func (f *FactChecker) Check(ctx context.Context, run *events.Run, keyword, content string) (*FactCheckOutput, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperr.Validation("article", "empty content")
	}
	ledger := &generation.Ledger{}

	_ = run.Step(ctx, "Extracting factual claims")
	c, err := f.provider.Complete(ctx, llm.Request{
		System:    "You are a meticulous fact checker. Answer with a single JSON object.",
		Prompt:    extractPrompt(keyword, content, f.maxClaims),
		MaxTokens: 1500,
		JSON:      true,
	})
	if err != nil {
		return nil, apperr.Provider(f.provider.Name(), err)
	}
	ledger.Record(stepExtract, 0, c)
	var extracted struct {
		Claims []string `json:"claims"`
	}
	if err := llm.DecodeObject(c.Content, &extracted); err != nil {
		return nil, apperr.Provider(c.Label(), fmt.Errorf("claims: %w", err))
	}
	claims := cleanClaims(extracted.Claims, f.maxClaims)

	checks := make([]ClaimCheck, len(claims))
	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.limit)
	for i, claim := range claims {
		g.Go(func() error {
			checks[i] = f.verify(gctx, ledger, i+1, keyword, claim)
			mu.Lock()
			done++
			n := done
			mu.Unlock()
			_ = run.Progress(ctx, fmt.Sprintf("Checked claim %d of %d", n, len(claims)), n, len(claims))
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &FactCheckOutput{Claims: len(claims), Checks: checks, Issues: []ClaimCheck{}}
	for _, ch := range checks {
		if ch.Verdict == VerdictIncorrect || ch.Verdict == VerdictUnsupported {
			out.Issues = append(out.Issues, ch)
		}
	}
	out.Cost = ledger.Total()
	out.InputTokens, out.OutputTokens = ledger.Tokens()
	out.Models = ledger.Models()
	return out, nil
}

func (f *FactChecker) verify(ctx context.Context, ledger *generation.Ledger, index int, keyword, claim string) ClaimCheck {
	check := ClaimCheck{Claim: claim, Verdict: VerdictUnverifiable}
	c, err := f.provider.Complete(ctx, llm.Request{
		System:    "You are a meticulous fact checker. Answer with a single JSON object.",
		Prompt:    verifyPrompt(keyword, claim),
		MaxTokens: 400,
		JSON:      true,
	})
	if err != nil {
		f.log.Warn("Claim verification failed", "claim", claim, "error", err)
		check.Note = "verification failed"
		return check
	}
	ledger.Record(stepVerify, index, c)
	var v struct {
		Verdict    string `json:"verdict"`
		Note       string `json:"note"`
		Suggestion string `json:"suggestion"`
	}
	if err := llm.DecodeObject(c.Content, &v); err != nil {
		check.Note = "verification unreadable"
		return check
	}
	switch verdict := strings.ToLower(strings.TrimSpace(v.Verdict)); verdict {
	case VerdictSupported, VerdictUnsupported, VerdictIncorrect, VerdictUnverifiable:
		check.Verdict = verdict
	}
	check.Note = strings.TrimSpace(v.Note)
	check.Suggestion = strings.TrimSpace(v.Suggestion)
	return check
}

func extractPrompt(keyword, content string, max int) string {
	return fmt.Sprintf(`List up to %d specific, checkable factual claims (numbers, dates, named facts) made in this article about %q.
Skip opinions and advice. Return {"claims":["..."]}.

ARTICLE:
%s`, max, keyword, content)
}

func verifyPrompt(keyword, claim string) string {
	return fmt.Sprintf(`An article about %q states: %q
Is this claim accurate? Return {"verdict":"supported|unsupported|incorrect|unverifiable","note":"one sentence","suggestion":"corrected wording if needed"}.`,
		keyword, claim)
}

func cleanClaims(in []string, max int) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		key := strings.ToLower(c)
		if c == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
		if len(out) == max {
			break
		}
	}
	return out
}
