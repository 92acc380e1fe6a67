// Package clustering groups a site's keywords into topic clusters. Each
// cluster is named after its highest scoring keyword.
package clustering

import (
	"sort"

	"github.com/yungbote/seoflow-backend/internal/seo/terms"
)

const DefaultThreshold = 0.5

type Item struct {
	ID      uint
	Keyword string
	Score   float64
}

type Cluster struct {
	HeadID  uint
	Head    string
	Members []uint
}

// Group assigns every item to exactly one cluster. Items are visited by
// descending score (id ascending on ties); an item joins the cluster whose head
// it is most similar to, when that similarity reaches threshold, and otherwise
// starts a new cluster.
func Group(items []Item, threshold float64) []Cluster {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	sorted := append([]Item(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].ID < sorted[j].ID
	})

	var (
		out   []Cluster
		heads [][]string
	)
	for _, it := range sorted {
		toks := terms.Tokens(it.Keyword)
		best, bestSim := -1, 0.0
		for i, h := range heads {
			if sim := terms.Jaccard(toks, h); sim >= threshold && sim > bestSim {
				best, bestSim = i, sim
			}
		}
		if best < 0 {
			out = append(out, Cluster{HeadID: it.ID, Head: it.Keyword, Members: []uint{it.ID}})
			heads = append(heads, toks)
			continue
		}
		out[best].Members = append(out[best].Members, it.ID)
	}
	return out
}
