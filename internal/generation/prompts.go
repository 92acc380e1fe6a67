package generation

import (
	"fmt"
	"strings"
)

const systemWriter = "You are a senior SEO content strategist and writer. Follow instructions exactly."

func researchPrompt(b Brief) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Research the search intent for the keyword %q", b.Keyword)
	if b.Niche != "" {
		fmt.Fprintf(&sb, " on a site about %s", b.Niche)
	}
	sb.WriteString(".\n")
	if b.Competitors != "" {
		sb.WriteString("Competitor pages currently ranking:\n")
		sb.WriteString(b.Competitors)
		sb.WriteString("\n")
	}
	sb.WriteString(`Return a JSON object with keys: competitor_insights (string[]), must_cover (string[]),
content_gaps (string[]), suggested_angle (string), target_word_count (int).`)
	return sb.String()
}

func outlinePrompt(b Brief, r ResearchBrief) string {
	return fmt.Sprintf(`Write an article outline in %s for the keyword %q.
Angle: %s
Must cover: %s
Content gaps to exploit: %s
The section target_words must add up to about %d words.
Return a JSON object with keys: title, meta_title (<= 60 chars), meta_description (<= 160 chars),
sections ([{heading, target_words, key_points[]}]).`,
		languageName(b.Language), b.Keyword, r.SuggestedAngle,
		strings.Join(r.MustCover, "; "), strings.Join(r.ContentGaps, "; "), r.TargetWordCount)
}

func sectionPrompt(b Brief, o Outline, s OutlineSection) string {
	return fmt.Sprintf(`You are writing the article %q (keyword %q) in %s.
Write the body of the section %q in about %d words.
Cover these points: %s
Return HTML paragraphs only. Do not repeat the heading.`,
		o.Title, b.Keyword, languageName(b.Language), s.Heading, s.TargetWords, strings.Join(s.KeyPoints, "; "))
}

func polishPrompt(b Brief, o Outline, draft string) string {
	return fmt.Sprintf(`Edit this HTML article for flow and grammar without shortening it. Keyword: %q.
Title: %s
---
%s
---
Return a JSON object with keys: content (the edited HTML), meta_title, meta_description,
link_anchors ([{anchor, topic, relevance 0..1}] for phrases worth linking to related articles),
seo_score (0..100).`, b.Keyword, o.Title, draft)
}

func languageName(code string) string {
	switch strings.ToLower(code) {
	case "", "en":
		return "English"
	case "de":
		return "German"
	case "fr":
		return "French"
	case "es":
		return "Spanish"
	default:
		return code
	}
}
