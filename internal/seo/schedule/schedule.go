// Package schedule turns a ranked keyword list into a publishing calendar.
package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Params are a site's planning settings.
type Params struct {
	Days        []time.Weekday
	PerWeek     int
	HorizonDays int
}

// Candidate is a keyword eligible for a slot.
type Candidate struct {
	KeywordID uint
	Keyword   string
	Score     float64
}

type Assignment struct {
	Date      time.Time
	KeywordID uint
	Keyword   string
	Score     float64
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

func ParseWeekdays(names []string) ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(names))
	seen := map[time.Weekday]bool{}
	for _, n := range names {
		d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", n)
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out, nil
}

// Day truncates t to a UTC calendar date in t's own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeekKey identifies an ISO week, e.g. "2026-W42".
func WeekKey(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", y, w)
}

// Slots walks from tomorrow through tomorrow+HorizonDays and returns the
// allowed days whose ISO week still has room. Dates in taken are skipped and
// count toward their week's cap.
func Slots(now time.Time, p Params, taken []time.Time) []time.Time {
	if p.PerWeek <= 0 || p.HorizonDays <= 0 || len(p.Days) == 0 {
		return nil
	}
	allowed := map[time.Weekday]bool{}
	for _, d := range p.Days {
		allowed[d] = true
	}
	perWeek := map[string]int{}
	occupied := map[time.Time]bool{}
	for _, t := range taken {
		day := Day(t)
		occupied[day] = true
		perWeek[WeekKey(day)]++
	}

	start := Day(now).AddDate(0, 0, 1)
	var out []time.Time
	for i := 0; i <= p.HorizonDays; i++ {
		day := start.AddDate(0, 0, i)
		if !allowed[day.Weekday()] || occupied[day] {
			continue
		}
		wk := WeekKey(day)
		if perWeek[wk] >= p.PerWeek {
			continue
		}
		perWeek[wk]++
		out = append(out, day)
	}
	return out
}

// Assign pairs slots with candidates in descending score order; ties keep
// the lower keyword id first.
func Assign(slots []time.Time, candidates []Candidate) []Assignment {
	ranked := append([]Candidate(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].KeywordID < ranked[j].KeywordID
	})
	n := len(slots)
	if len(ranked) < n {
		n = len(ranked)
	}
	out := make([]Assignment, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Assignment{
			Date:      slots[i],
			KeywordID: ranked[i].KeywordID,
			Keyword:   ranked[i].Keyword,
			Score:     ranked[i].Score,
		})
	}
	return out
}

func Plan(now time.Time, p Params, candidates []Candidate, taken []time.Time) []Assignment {
	return Assign(Slots(now, p, taken), candidates)
}
