package generation

import (
	"errors"
	"strings"
	"unicode"
)

const (
	DefaultTargetWords = 1500
	MinTargetWords     = 600
	MaxTargetWords     = 5000
	minSectionWords    = 100
	metaTitleMax       = 60
	metaDescriptionMax = 160
)

var (
	ErrEmptyOutline = errors.New("outline has no sections")
	ErrEmptyPolish  = errors.New("polish returned no content")
)

// ResearchBrief is the research step output.
type ResearchBrief struct {
	CompetitorInsights []string `json:"competitor_insights"`
	MustCover          []string `json:"must_cover"`
	ContentGaps        []string `json:"content_gaps"`
	SuggestedAngle     string   `json:"suggested_angle"`
	TargetWordCount    int      `json:"target_word_count"`
}

func (r *ResearchBrief) Normalize(keyword string) {
	r.CompetitorInsights = cleanList(r.CompetitorInsights)
	r.MustCover = cleanList(r.MustCover)
	r.ContentGaps = cleanList(r.ContentGaps)
	r.SuggestedAngle = strings.TrimSpace(r.SuggestedAngle)
	if r.SuggestedAngle == "" {
		r.SuggestedAngle = "A practical, complete guide to " + keyword
	}
	switch {
	case r.TargetWordCount <= 0:
		r.TargetWordCount = DefaultTargetWords
	case r.TargetWordCount < MinTargetWords:
		r.TargetWordCount = MinTargetWords
	case r.TargetWordCount > MaxTargetWords:
		r.TargetWordCount = MaxTargetWords
	}
}

type OutlineSection struct {
	Heading     string   `json:"heading"`
	TargetWords int      `json:"target_words"`
	KeyPoints   []string `json:"key_points"`
}

type Outline struct {
	Title           string           `json:"title"`
	MetaTitle       string           `json:"meta_title"`
	MetaDescription string           `json:"meta_description"`
	Sections        []OutlineSection `json:"sections"`
}

// Normalize fills defaults and spreads the word target over sections that
// did not get one.
func (o *Outline) Normalize(keyword string, targetWords int) error {
	sections := o.Sections[:0]
	for _, s := range o.Sections {
		s.Heading = strings.TrimSpace(s.Heading)
		if s.Heading == "" {
			continue
		}
		s.KeyPoints = cleanList(s.KeyPoints)
		sections = append(sections, s)
	}
	o.Sections = sections
	if len(o.Sections) == 0 {
		return ErrEmptyOutline
	}
	if targetWords <= 0 {
		targetWords = DefaultTargetWords
	}
	per := targetWords / len(o.Sections)
	for i := range o.Sections {
		if o.Sections[i].TargetWords <= 0 {
			o.Sections[i].TargetWords = per
		}
		if o.Sections[i].TargetWords < minSectionWords {
			o.Sections[i].TargetWords = minSectionWords
		}
	}
	o.Title = strings.TrimSpace(o.Title)
	if o.Title == "" {
		o.Title = titleCase(keyword)
	}
	o.MetaTitle = truncate(firstNonEmpty(o.MetaTitle, o.Title), metaTitleMax)
	o.MetaDescription = truncate(firstNonEmpty(o.MetaDescription,
		"Everything you need to know about "+keyword+"."), metaDescriptionMax)
	return nil
}

// TotalWords is the sum of section targets.
func (o *Outline) TotalWords() int {
	n := 0
	for _, s := range o.Sections {
		n += s.TargetWords
	}
	return n
}

type AnchorSuggestion struct {
	Anchor    string  `json:"anchor"`
	Topic     string  `json:"topic"`
	Relevance float64 `json:"relevance"`
}

// Polished is the polish step output.
type Polished struct {
	Content         string             `json:"content"`
	MetaTitle       string             `json:"meta_title"`
	MetaDescription string             `json:"meta_description"`
	LinkAnchors     []AnchorSuggestion `json:"link_anchors"`
	SEOScore        int                `json:"seo_score"`
}

func (p *Polished) Normalize(outline *Outline) error {
	p.Content = strings.TrimSpace(p.Content)
	if p.Content == "" {
		return ErrEmptyPolish
	}
	p.MetaTitle = truncate(firstNonEmpty(p.MetaTitle, outline.MetaTitle), metaTitleMax)
	p.MetaDescription = truncate(firstNonEmpty(p.MetaDescription, outline.MetaDescription), metaDescriptionMax)
	anchors := p.LinkAnchors[:0]
	for _, a := range p.LinkAnchors {
		a.Anchor = strings.TrimSpace(a.Anchor)
		if a.Anchor == "" {
			continue
		}
		a.Topic = firstNonEmpty(a.Topic, a.Anchor)
		switch {
		case a.Relevance <= 0:
			a.Relevance = 0.5
		case a.Relevance > 1:
			a.Relevance = 1
		}
		anchors = append(anchors, a)
	}
	p.LinkAnchors = anchors
	if p.SEOScore < 0 {
		p.SEOScore = 0
	}
	if p.SEOScore > 100 {
		p.SEOScore = 100
	}
	return nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	cut := string(r[:n])
	if i := strings.LastIndex(cut, " "); i > n/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
