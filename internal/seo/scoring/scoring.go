// Package scoring ranks keywords by opportunity. Every term is normalised to
// [0,100] and the weighted total drives generation priority and calendar order.
package scoring

import (
	"math"

	"github.com/yungbote/seoflow-backend/internal/domain"
)

const (
	WeightVolume     = 0.30
	WeightDifficulty = 0.30
	WeightQuickWin   = 0.25
	WeightRelevance  = 0.15

	DefaultRelevance = 50.0
)

// Input carries the optional signals. Nil means "no data".
type Input struct {
	Volume     *int
	Difficulty *int
	Position   *int
	Relevance  *float64
}

type Breakdown struct {
	Volume     float64 `json:"volume"`
	Difficulty float64 `json:"difficulty"`
	QuickWin   float64 `json:"quick_win"`
	Relevance  float64 `json:"relevance"`
	Total      float64 `json:"total"`
}

// VolumeScore is 25 points per order of magnitude, capped at 100.
func VolumeScore(volume *int) float64 {
	if volume == nil || *volume <= 0 {
		return 0
	}
	return math.Min(100, 25*math.Log10(float64(*volume)))
}

// DifficultyScore rewards easy keywords. Unknown difficulty earns nothing.
func DifficultyScore(difficulty *int) float64 {
	if difficulty == nil {
		return 0
	}
	return math.Max(0, 100-float64(clamp(*difficulty, 0, 100)))
}

// QuickWinScore favours keywords ranking just outside the top results.
func QuickWinScore(position *int) float64 {
	if position == nil || *position <= 0 {
		return 0
	}
	p := *position
	switch {
	case p < 5:
		return 20
	case p <= 10:
		return 100
	case p <= 20:
		return 80
	case p <= 30:
		return 60
	case p <= 50:
		return 30
	default:
		return 0
	}
}

func RelevanceScore(relevance *float64) float64 {
	if relevance == nil {
		return DefaultRelevance
	}
	return math.Max(0, math.Min(100, *relevance))
}

func Calculate(in Input) Breakdown {
	b := Breakdown{
		Volume:     VolumeScore(in.Volume),
		Difficulty: DifficultyScore(in.Difficulty),
		QuickWin:   QuickWinScore(in.Position),
		Relevance:  RelevanceScore(in.Relevance),
	}
	b.Total = round2(WeightVolume*b.Volume +
		WeightDifficulty*b.Difficulty +
		WeightQuickWin*b.QuickWin +
		WeightRelevance*b.Relevance)
	return b
}

func Score(in Input) float64 { return Calculate(in).Total }

func ForKeyword(k *domain.Keyword) Breakdown {
	return Calculate(Input{Volume: k.Volume, Difficulty: k.Difficulty, Position: k.Position, Relevance: k.Relevance})
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
