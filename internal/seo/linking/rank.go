package linking

import (
	"sort"
	"strings"

	"github.com/yungbote/seoflow-backend/internal/seo/terms"
)

// KeywordAnchorRelevance is the relevance given to a target's own keyword used
// verbatim as anchor text.
const KeywordAnchorRelevance = 0.7

// Target is another article of the same site that may receive a link.
type Target struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Keyword string `json:"keyword"`
}

// Suggestion is an anchor phrase proposed for the source article, with the
// topic it should point to.
type Suggestion struct {
	Anchor    string  `json:"anchor"`
	Topic     string  `json:"topic"`
	Relevance float64 `json:"relevance"`
}

// Rank builds link candidates from targets and anchor suggestions. A target's
// keyword is always a candidate; a suggestion becomes a candidate for every
// target whose keyword or title covers at least half of the suggestion topic,
// scaled by that coverage. Duplicate (anchor, target) pairs keep the highest
// relevance. The result is sorted by relevance, then anchor.
func Rank(targets []Target, suggestions []Suggestion) []Candidate {
	best := map[string]Candidate{}
	add := func(c Candidate) {
		c.Anchor = strings.TrimSpace(c.Anchor)
		if c.Anchor == "" || c.TargetURL == "" {
			return
		}
		key := strings.ToLower(c.Anchor) + "\x00" + c.TargetURL
		if prev, ok := best[key]; ok && prev.Relevance >= c.Relevance {
			return
		}
		best[key] = c
	}

	for _, t := range targets {
		add(Candidate{Anchor: t.Keyword, TargetURL: t.URL, Relevance: KeywordAnchorRelevance})
		covers := terms.Tokens(t.Keyword + " " + t.Title)
		for _, s := range suggestions {
			topic := terms.Tokens(s.Topic)
			if len(topic) == 0 {
				topic = terms.Tokens(s.Anchor)
			}
			sim := terms.Overlap(topic, covers)
			if sim < 0.5 {
				continue
			}
			rel := clamp01(s.Relevance) * sim
			add(Candidate{Anchor: s.Anchor, TargetURL: t.URL, Relevance: float64(int(rel*1000+0.5)) / 1000})
		}
	}

	out := make([]Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Relevance != out[j].Relevance {
			return out[i].Relevance > out[j].Relevance
		}
		if out[i].Anchor != out[j].Anchor {
			return out[i].Anchor < out[j].Anchor
		}
		return out[i].TargetURL < out[j].TargetURL
	})
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
