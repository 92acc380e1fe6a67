package linking

import "testing"

func TestRank(t *testing.T) {
	targets := []Target{
		{URL: "https://example.com/espresso-grinder", Title: "Espresso Grinder Guide", Keyword: "espresso grinder"},
		{URL: "https://example.com/pour-over", Title: "Pour Over Basics", Keyword: "pour over coffee"},
	}
	suggestions := []Suggestion{
		{Anchor: "burr grinder for espresso", Topic: "espresso grinders", Relevance: 0.9},
		{Anchor: "brewing by hand", Topic: "pour over", Relevance: 0.6},
		{Anchor: "cold brew", Topic: "cold brew", Relevance: 1},
		{Anchor: "espresso grinder", Topic: "espresso grinder", Relevance: 0.4},
	}
	got := Rank(targets, suggestions)

	want := []Candidate{
		{Anchor: "burr grinder for espresso", TargetURL: "https://example.com/espresso-grinder", Relevance: 0.9},
		{Anchor: "espresso grinder", TargetURL: "https://example.com/espresso-grinder", Relevance: 0.7},
		{Anchor: "pour over coffee", TargetURL: "https://example.com/pour-over", Relevance: 0.7},
		{Anchor: "brewing by hand", TargetURL: "https://example.com/pour-over", Relevance: 0.6},
	}
	if len(got) != len(want) {
		t.Fatalf("Rank = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Rank[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestRankFeedsPlace(t *testing.T) {
	cands := Rank([]Target{{URL: "/a", Keyword: "milk frother"}}, nil)
	body := "<p>" + filler("w", 120) + " a milk frother helps.</p>"
	_, rep := Place(body, cands, DefaultOptions())
	if len(rep.Placed) != 1 || rep.Placed[0].TargetURL != "/a" {
		t.Fatalf("report = %+v", rep)
	}
}
