package terms

import (
	"reflect"
	"testing"
)

func TestTokens(t *testing.T) {
	cases := map[string][]string{
		"Best Espresso Grinders":      {"espresso", "grinder"},
		"how to clean a burr grinder": {"clean", "burr", "grinder"},
		"coffee accessories, coffee":  {"coffee", "accessory"},
		"glass":                       {"glass"},
		"":                            {},
	}
	for in, want := range cases {
		if got := Tokens(in); !reflect.DeepEqual(got, want) {
			t.Fatalf("Tokens(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	a := Tokens("espresso grinder")
	b := Tokens("espresso grinders under 100")
	if got := Jaccard(a, b); got != 0.5 {
		t.Fatalf("Jaccard = %v, want 0.5", got)
	}
	if got := Overlap(a, b); got != 1 {
		t.Fatalf("Overlap = %v, want 1", got)
	}
	if Jaccard(nil, nil) != 0 || Overlap(a, nil) != 0 {
		t.Fatalf("empty sets must score zero")
	}
}
