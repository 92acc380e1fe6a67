// Package terms tokenizes keyword phrases for similarity checks.
package terms

import (
	"strings"
	"unicode"
)

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "for": true,
	"to": true, "of": true, "in": true, "on": true, "with": true, "at": true,
	"by": true, "is": true, "are": true, "how": true, "what": true, "why": true,
	"best": true, "top": true, "vs": true, "my": true, "your": true, "do": true,
}

// Tokens lower-cases s, splits on anything that is not a letter or digit,
// drops stopwords and folds simple plurals. Order is kept, duplicates dropped.
func Tokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	seen := map[string]bool{}
	for _, f := range fields {
		if stopwords[f] {
			continue
		}
		f = singular(f)
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

func singular(w string) string {
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		return w[:len(w)-1]
	}
	return w
}

// Jaccard is |a∩b| / |a∪b|; zero when both are empty.
func Jaccard(a, b []string) float64 {
	inter, union := counts(a, b)
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Overlap is |a∩b| / min(|a|,|b|); zero when either is empty.
func Overlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter, _ := counts(a, b)
	m := len(a)
	if len(b) < m {
		m = len(b)
	}
	return float64(inter) / float64(m)
}

func counts(a, b []string) (inter, union int) {
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	union = len(set)
	seen := map[string]bool{}
	for _, t := range b {
		if seen[t] {
			continue
		}
		seen[t] = true
		if set[t] {
			inter++
		} else {
			union++
		}
	}
	return inter, union
}
