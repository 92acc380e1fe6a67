package scoring

import (
	"math"
	"testing"
)

func ip(v int) *int { return &v }

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestCalculateQuickWinExample(t *testing.T) {
	b := Calculate(Input{Volume: ip(1000), Difficulty: ip(50), Position: ip(7)})
	if !near(b.QuickWin, 100) || !near(b.Difficulty, 50) || !near(b.Relevance, 50) {
		t.Fatalf("breakdown: %+v", b)
	}
	if math.Abs(b.Volume-75) > 1e-9 {
		t.Fatalf("volume score: %v", b.Volume)
	}
	if !near(b.Total, 70) {
		t.Fatalf("total: want=70 got=%v", b.Total)
	}
}

func TestVolumeScoreLogScale(t *testing.T) {
	cases := map[int]float64{0: 0, 10: 25, 100: 50, 1000: 75, 10000: 100, 1000000: 100}
	for v, want := range cases {
		if got := VolumeScore(ip(v)); math.Abs(got-want) > 1e-9 {
			t.Fatalf("volume %d: want=%v got=%v", v, want, got)
		}
	}
	if VolumeScore(nil) != 0 {
		t.Fatalf("nil volume must score 0")
	}
}

func TestQuickWinSteps(t *testing.T) {
	cases := []struct {
		pos  *int
		want float64
	}{
		{nil, 0}, {ip(1), 20}, {ip(4), 20}, {ip(5), 100}, {ip(10), 100}, {ip(11), 80},
		{ip(20), 80}, {ip(21), 60}, {ip(30), 60}, {ip(31), 30}, {ip(50), 30}, {ip(51), 0},
	}
	for _, tc := range cases {
		if got := QuickWinScore(tc.pos); got != tc.want {
			t.Fatalf("position %v: want=%v got=%v", tc.pos, tc.want, got)
		}
	}
}

func TestScoreFloorIsRelevanceDefault(t *testing.T) {
	got := Score(Input{Volume: ip(0), Difficulty: ip(100)})
	if !near(got, 0.15*DefaultRelevance) {
		t.Fatalf("floor: want=%v got=%v", 0.15*DefaultRelevance, got)
	}
}

func TestScoreMonotonic(t *testing.T) {
	prev := -1.0
	for _, v := range []int{0, 1, 5, 50, 500, 5000, 50000} {
		s := Score(Input{Volume: ip(v), Difficulty: ip(40), Position: ip(12)})
		if s < prev {
			t.Fatalf("score decreased with volume %d: %v < %v", v, s, prev)
		}
		prev = s
	}
	prev = math.Inf(1)
	for d := 0; d <= 100; d += 10 {
		s := Score(Input{Volume: ip(800), Difficulty: ip(d)})
		if s > prev {
			t.Fatalf("score increased with difficulty %d: %v > %v", d, s, prev)
		}
		prev = s
	}
}
