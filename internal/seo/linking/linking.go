// Package linking places internal links into HTML article bodies.
package linking

import (
	"html"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	ReasonNotFound        = "not_found"
	ReasonInIntro         = "in_intro"
	ReasonTooClose        = "too_close"
	ReasonDuplicateTarget = "duplicate_target"
	ReasonBelowThreshold  = "below_threshold"
	ReasonLimitReached    = "limit_reached"
)

type Candidate struct {
	Anchor    string  `json:"anchor"`
	TargetURL string  `json:"target_url"`
	Relevance float64 `json:"relevance"`
}

type Options struct {
	MinRelevance         float64 `json:"min_relevance"`
	SkipIntroWords       int     `json:"skip_intro_words"`
	MinWordsBetweenLinks int     `json:"min_words_between_links"`
	// MaxLinks caps accepted links; zero means no cap.
	MaxLinks int `json:"max_links"`
}

func DefaultOptions() Options {
	return Options{MinRelevance: 0.5, SkipIntroWords: 100, MinWordsBetweenLinks: 150, MaxLinks: 8}
}

type Placement struct {
	Candidate
	WordOffset int `json:"word_offset"`
}

type Rejection struct {
	Candidate
	Reason     string `json:"reason"`
	WordOffset int    `json:"word_offset,omitempty"`
}

type Report struct {
	Placed   []Placement `json:"placed"`
	Rejected []Rejection `json:"rejected"`
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

// Place processes candidates by descending relevance and wraps the first
// eligible occurrence of each anchor. Eligible text is outside markup, outside
// existing links and headings, and bounded by non-word characters.
func Place(content string, candidates []Candidate, opts Options) (string, Report) {
	ranked := append([]Candidate(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Relevance > ranked[j].Relevance })

	var rep Report
	for _, c := range ranked {
		anchor := strings.TrimSpace(c.Anchor)
		switch {
		case c.Relevance < opts.MinRelevance:
			rep.Rejected = append(rep.Rejected, Rejection{Candidate: c, Reason: ReasonBelowThreshold})
			continue
		case opts.MaxLinks > 0 && len(rep.Placed) >= opts.MaxLinks:
			rep.Rejected = append(rep.Rejected, Rejection{Candidate: c, Reason: ReasonLimitReached})
			continue
		}

		idx := locate(content, anchor)
		if idx < 0 {
			rep.Rejected = append(rep.Rejected, Rejection{Candidate: c, Reason: ReasonNotFound})
			continue
		}
		offset := WordCount(content[:idx])
		if offset < opts.SkipIntroWords {
			rep.Rejected = append(rep.Rejected, Rejection{Candidate: c, Reason: ReasonInIntro, WordOffset: offset})
			continue
		}
		if Linked(content, c.TargetURL) {
			rep.Rejected = append(rep.Rejected, Rejection{Candidate: c, Reason: ReasonDuplicateTarget, WordOffset: offset})
			continue
		}
		if tooClose(rep.Placed, offset, opts.MinWordsBetweenLinks) {
			rep.Rejected = append(rep.Rejected, Rejection{Candidate: c, Reason: ReasonTooClose, WordOffset: offset})
			continue
		}

		end := idx + len(anchor)
		content = content[:idx] +
			`<a href="` + html.EscapeString(c.TargetURL) + `">` + content[idx:end] + `</a>` +
			content[end:]
		rep.Placed = append(rep.Placed, Placement{Candidate: c, WordOffset: offset})
	}
	return content, rep
}

// Linked reports whether content already links to url.
func Linked(content, url string) bool {
	if url == "" {
		return false
	}
	return strings.Contains(content, `href="`+url+`"`) ||
		strings.Contains(content, `href="`+html.EscapeString(url)+`"`)
}

// WordCount counts words of the visible text, ignoring markup.
func WordCount(s string) int {
	return len(strings.Fields(tagRe.ReplaceAllString(s, " ")))
}

func tooClose(placed []Placement, offset, window int) bool {
	for _, p := range placed {
		d := offset - p.WordOffset
		if d < 0 {
			d = -d
		}
		if d < window {
			return true
		}
	}
	return false
}

// locate returns the byte index of the first case-insensitive, whole-word
// match of anchor in linkable text, or -1.
func locate(content, anchor string) int {
	if anchor == "" {
		return -1
	}
	mask := linkable(content)
	lc := strings.ToLower(content)
	la := strings.ToLower(anchor)
	if len(lc) != len(content) || len(la) != len(anchor) {
		// Lowercasing changed byte lengths; fall back to exact matching.
		lc, la = content, anchor
	}
	for from := 0; from < len(lc); {
		i := strings.Index(lc[from:], la)
		if i < 0 {
			return -1
		}
		i += from
		end := i + len(la)
		if spanLinkable(mask, i, end) && boundary(content, i, end) {
			return i
		}
		_, size := utf8.DecodeRuneInString(lc[i:])
		from = i + size
	}
	return -1
}

var blockedTags = map[string]bool{"a": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true}

// linkable marks bytes of visible text that are not inside a link or heading.
func linkable(content string) []bool {
	mask := make([]bool, len(content))
	depth := 0
	for i := 0; i < len(content); {
		if content[i] == '<' {
			j := strings.IndexByte(content[i:], '>')
			if j < 0 {
				break
			}
			name, closing := tagName(content[i+1 : i+j])
			if blockedTags[name] {
				if closing {
					if depth > 0 {
						depth--
					}
				} else {
					depth++
				}
			}
			i += j + 1
			continue
		}
		mask[i] = depth == 0
		i++
	}
	return mask
}

func tagName(inner string) (string, bool) {
	inner = strings.TrimSpace(inner)
	closing := strings.HasPrefix(inner, "/")
	inner = strings.TrimPrefix(inner, "/")
	end := strings.IndexFunc(inner, func(r rune) bool { return unicode.IsSpace(r) || r == '/' })
	if end >= 0 {
		inner = inner[:end]
	}
	return strings.ToLower(inner), closing
}

func spanLinkable(mask []bool, start, end int) bool {
	for i := start; i < end; i++ {
		if !mask[i] {
			return false
		}
	}
	return true
}

func boundary(s string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:start])
		if isWord(r) {
			return false
		}
	}
	if end < len(s) {
		r, _ := utf8.DecodeRuneInString(s[end:])
		if isWord(r) {
			return false
		}
	}
	return true
}

func isWord(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' }
