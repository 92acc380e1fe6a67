// Package discovery proposes new keywords for a site with the LLM provider.
package discovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/seoflow-backend/internal/domain"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/llm"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
	"github.com/yungbote/seoflow-backend/internal/seo/scoring"
)

const (
	DefaultLimit = 30
	MaxLimit     = 100

	SourceDiscovery = "discovery"
	SourceManual    = "manual"
	SourceAnalytics = "analytics"
)

var intents = map[string]bool{
	"informational": true,
	"commercial":    true,
	"transactional": true,
	"navigational":  true,
}

type Idea struct {
	Keyword    string   `json:"keyword"`
	Volume     *int     `json:"volume"`
	Difficulty *int     `json:"difficulty"`
	Relevance  *float64 `json:"relevance"`
	Intent     string   `json:"intent"`
}

type Request struct {
	Site     *domain.Site
	Seeds    []string
	Existing []string
	Limit    int
}

type Discoverer struct {
	provider llm.Provider
	log      *logger.Logger
}

func NewDiscoverer(provider llm.Provider, baseLog *logger.Logger) *Discoverer {
	return &Discoverer{provider: provider, log: baseLog.With("component", "KeywordDiscovery")}
}

// Ideas asks the provider for keyword ideas and returns them normalised, with
// keywords the site already tracks removed.
func (d *Discoverer) Ideas(ctx context.Context, req Request) ([]Idea, *llm.Completion, error) {
	if req.Site == nil {
		return nil, nil, apperr.Validation("site", "missing")
	}
	limit := clampLimit(req.Limit)
	c, err := d.provider.Complete(ctx, llm.Request{
		System:      "You are an SEO strategist. Answer with a single JSON object.",
		Prompt:      prompt(req, limit),
		JSON:        true,
		Temperature: llm.Float(0.7),
	})
	if err != nil {
		return nil, nil, apperr.Provider(d.provider.Name(), err)
	}
	var out struct {
		Keywords []Idea `json:"keywords"`
	}
	if err := llm.DecodeObject(c.Content, &out); err != nil {
		return nil, c, apperr.Provider(c.Label(), fmt.Errorf("keyword ideas: %w", err))
	}
	ideas := Normalize(out.Keywords, req.Existing, limit)
	d.log.Debug("Keyword ideas", "site_id", req.Site.ID, "proposed", len(out.Keywords), "kept", len(ideas))
	return ideas, c, nil
}

func prompt(req Request, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Suggest up to %d search keywords a website named %q", limit, req.Site.Name)
	if req.Site.Niche != "" {
		fmt.Fprintf(&b, " about %s", req.Site.Niche)
	}
	fmt.Fprintf(&b, " could rank for (language %s).\n", req.Site.Language)
	if len(req.Seeds) > 0 {
		fmt.Fprintf(&b, "Start from these seed topics: %s.\n", strings.Join(req.Seeds, ", "))
	}
	if len(req.Existing) > 0 {
		n := len(req.Existing)
		if n > 50 {
			n = 50
		}
		fmt.Fprintf(&b, "Do not repeat keywords already tracked: %s.\n", strings.Join(req.Existing[:n], ", "))
	}
	b.WriteString(`Return {"keywords":[{"keyword":"...","volume":<monthly searches>,"difficulty":<0-100>,` +
		`"relevance":<0-100 fit for the site>,"intent":"informational|commercial|transactional|navigational"}]}`)
	return b.String()
}

// Normalize lower-cases and de-duplicates ideas, clamps metrics to their
// ranges, drops unknown intents and existing keywords, and caps the list.
func Normalize(ideas []Idea, existing []string, limit int) []Idea {
	limit = clampLimit(limit)
	seen := map[string]bool{}
	for _, e := range existing {
		seen[normalize(e)] = true
	}
	out := make([]Idea, 0, len(ideas))
	for _, in := range ideas {
		kw := normalize(in.Keyword)
		if kw == "" || len(kw) > 120 || seen[kw] {
			continue
		}
		seen[kw] = true
		in.Keyword = kw
		if in.Volume != nil && *in.Volume < 0 {
			in.Volume = nil
		}
		if in.Difficulty != nil {
			v := clampInt(*in.Difficulty, 0, 100)
			in.Difficulty = &v
		}
		if in.Relevance != nil {
			v := *in.Relevance
			if v < 0 {
				v = 0
			}
			if v > 100 {
				v = 100
			}
			in.Relevance = &v
		}
		in.Intent = strings.ToLower(strings.TrimSpace(in.Intent))
		if !intents[in.Intent] {
			in.Intent = ""
		}
		out = append(out, in)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// Keywords turns ideas into scored keyword rows for a site.
func Keywords(siteID uint, ideas []Idea, source string) []*domain.Keyword {
	out := make([]*domain.Keyword, 0, len(ideas))
	for _, in := range ideas {
		k := &domain.Keyword{
			SiteID:     siteID,
			Keyword:    in.Keyword,
			Volume:     in.Volume,
			Difficulty: in.Difficulty,
			Relevance:  in.Relevance,
			Intent:     in.Intent,
			Status:     domain.KeywordPending,
			Source:     source,
		}
		k.Score = scoring.ForKeyword(k).Total
		out = append(out, k)
	}
	return out
}

// Manual turns plain keyword strings into ideas.
func Manual(keywords []string) []Idea {
	out := make([]Idea, 0, len(keywords))
	for _, k := range keywords {
		out = append(out, Idea{Keyword: k})
	}
	return out
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func clampLimit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
