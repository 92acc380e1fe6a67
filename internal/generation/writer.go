// Package generation owns the keyword lifecycle and the four-step article
// writer: research, outline, section drafting, polish.
package generation

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/yungbote/seoflow-backend/internal/platform/llm"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
	"github.com/yungbote/seoflow-backend/internal/seo/linking"
)

type Brief struct {
	Keyword  string
	SiteName string
	Niche    string
	Language string
	// Competitors is a plain-text digest of ranking pages, may be empty.
	Competitors string
	// Research skips the research step when set.
	Research *ResearchBrief
}

// StepEvent is passed to the observer after every step.
type StepEvent struct {
	Step         StepCost
	Done         int
	Total        int
	TotalCost    float64
	InputTokens  int
	OutputTokens int
}

type Observer func(ctx context.Context, ev StepEvent)

type Draft struct {
	Title           string
	MetaTitle       string
	MetaDescription string
	Content         string
	WordCount       int
	SEOScore        int
	Research        ResearchBrief
	Outline         Outline
	LinkAnchors     []AnchorSuggestion
	Polished        bool
	PolishError     string
	Cost            float64
	InputTokens     int
	OutputTokens    int
	Models          []string
	Steps           []StepCost
}

type Writer struct {
	provider llm.Provider
	log      *logger.Logger
}

func NewWriter(provider llm.Provider, baseLog *logger.Logger) *Writer {
	return &Writer{provider: provider, log: baseLog.With("component", "ArticleWriter")}
}

// Write runs the pipeline. Research and outline failures abort; a polish
// failure returns the unpolished draft with the outline's meta fields.
func (w *Writer) Write(ctx context.Context, b Brief, onStep Observer) (*Draft, error) {
	if strings.TrimSpace(b.Keyword) == "" {
		return nil, fmt.Errorf("writer: empty keyword")
	}
	ledger := &Ledger{}
	done, total := 0, 3
	step := func(sc StepCost) {
		done++
		if onStep == nil {
			return
		}
		in, out := ledger.Tokens()
		onStep(ctx, StepEvent{Step: sc, Done: done, Total: total, TotalCost: ledger.Total(), InputTokens: in, OutputTokens: out})
	}

	var research ResearchBrief
	if b.Research != nil {
		research = *b.Research
		research.Normalize(b.Keyword)
		step(StepCost{Step: StepResearch, Provider: "agent"})
	} else {
		r, c, err := w.Research(ctx, b)
		var sc StepCost
		if c != nil {
			sc = ledger.Record(StepResearch, 0, c)
		}
		if err != nil {
			if c != nil {
				step(sc)
			}
			return nil, err
		}
		research = *r
		step(sc)
	}

	var outline Outline
	c, err := w.provider.Complete(ctx, llm.Request{System: systemWriter, Prompt: outlinePrompt(b, research), MaxTokens: 1500, JSON: true})
	if err != nil {
		return nil, fmt.Errorf("outline: %w", err)
	}
	// A paid completion is reported even when its body is unusable.
	sc := ledger.Record(StepOutline, 0, c)
	if err := llm.DecodeObject(c.Content, &outline); err != nil {
		step(sc)
		return nil, fmt.Errorf("outline: decode: %w", err)
	}
	if err := outline.Normalize(b.Keyword, research.TargetWordCount); err != nil {
		step(sc)
		return nil, fmt.Errorf("outline: %w", err)
	}
	total += len(outline.Sections)
	step(sc)

	parts := make([]string, 0, len(outline.Sections))
	for i, s := range outline.Sections {
		c, err := w.provider.Complete(ctx, llm.Request{
			System:    systemWriter,
			Prompt:    sectionPrompt(b, outline, s),
			MaxTokens: s.TargetWords * 2,
		})
		if err != nil {
			return nil, fmt.Errorf("section %d %q: %w", i+1, s.Heading, err)
		}
		parts = append(parts, renderSection(s.Heading, c.Content))
		step(ledger.Record(StepSection, i+1, c))
	}
	concatenated := strings.Join(parts, "\n")

	d := &Draft{
		Title:           outline.Title,
		MetaTitle:       outline.MetaTitle,
		MetaDescription: outline.MetaDescription,
		Content:         concatenated,
		Research:        research,
		Outline:         outline,
	}

	polished, psc, perr := w.polish(ctx, b, outline, concatenated, ledger)
	if perr != nil {
		w.log.Warn("Polish failed, keeping unpolished draft", "keyword", b.Keyword, "error", perr)
		d.PolishError = perr.Error()
		d.SEOScore = EstimateSEOScore(b.Keyword, d.MetaTitle, d.MetaDescription, d.Content, outline.TotalWords())
	} else {
		d.Content = polished.Content
		d.MetaTitle = polished.MetaTitle
		d.MetaDescription = polished.MetaDescription
		d.LinkAnchors = polished.LinkAnchors
		d.SEOScore = polished.SEOScore
		d.Polished = true
	}
	step(psc)

	d.WordCount = linking.WordCount(d.Content)
	d.Cost = ledger.Total()
	d.InputTokens, d.OutputTokens = ledger.Tokens()
	d.Models = ledger.Models()
	d.Steps = ledger.Steps()
	return d, nil
}

// Research runs the research step alone. The completion is returned whenever
// the provider answered, so callers can account for its cost.
func (w *Writer) Research(ctx context.Context, b Brief) (*ResearchBrief, *llm.Completion, error) {
	c, err := w.provider.Complete(ctx, llm.Request{System: systemWriter, Prompt: researchPrompt(b), MaxTokens: 1200, JSON: true})
	if err != nil {
		return nil, nil, fmt.Errorf("research: %w", err)
	}
	var r ResearchBrief
	if err := llm.DecodeObject(c.Content, &r); err != nil {
		return nil, c, fmt.Errorf("research: decode: %w", err)
	}
	r.Normalize(b.Keyword)
	return &r, c, nil
}

func (w *Writer) polish(ctx context.Context, b Brief, o Outline, draft string, ledger *Ledger) (*Polished, StepCost, error) {
	c, err := w.provider.Complete(ctx, llm.Request{
		System:    systemWriter,
		Prompt:    polishPrompt(b, o, draft),
		MaxTokens: 8000,
		JSON:      true,
	})
	if err != nil {
		return nil, StepCost{Step: StepPolish}, err
	}
	sc := ledger.Record(StepPolish, 0, c)
	var p Polished
	if err := llm.DecodeObject(c.Content, &p); err != nil {
		return nil, sc, fmt.Errorf("decode: %w", err)
	}
	if err := p.Normalize(&o); err != nil {
		return nil, sc, err
	}
	return &p, sc, nil
}

func renderSection(heading, body string) string {
	body = strings.TrimSpace(body)
	if !strings.Contains(body, "<p") {
		var paras []string
		for _, p := range strings.Split(body, "\n\n") {
			if p = strings.TrimSpace(p); p != "" {
				paras = append(paras, "<p>"+p+"</p>")
			}
		}
		body = strings.Join(paras, "\n")
	}
	return "<h2>" + html.EscapeString(heading) + "</h2>\n" + body
}

// EstimateSEOScore is a rough on-page score used when the polish step gave none.
func EstimateSEOScore(keyword, metaTitle, metaDescription, content string, targetWords int) int {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	score := 0
	if strings.Contains(strings.ToLower(metaTitle), kw) {
		score += 25
	}
	if strings.Contains(strings.ToLower(metaDescription), kw) {
		score += 15
	}
	lc := strings.ToLower(content)
	if end := strings.Index(lc, "</p>"); end > 0 && strings.Contains(lc[:end], kw) {
		score += 20
	}
	if targetWords > 0 && linking.WordCount(content)*5 >= targetWords*4 {
		score += 25
	}
	if strings.Count(lc, "<h2") >= 3 {
		score += 15
	}
	return score
}
