// Package rank implements Reciprocal Rank Fusion for merging lexical and
// vector result lists.
package rank

import "sort"

// DefaultK is the Reciprocal Rank Fusion constant (standard value from
// Cormack et al. 2009).
const DefaultK = 60

// Entry is one ranked item. Score carries the backend score on input and the
// fused RRF score on output.
type Entry struct {
	ID    string
	Score float64
}

// Entries pairs ids with scores, preserving order. Shorter of the two slices
// bounds the result.
func Entries(ids []string, scores []float64) []Entry {
	n := len(ids)
	if len(scores) < n {
		n = len(scores)
	}
	out := make([]Entry, n)
	for i := 0; i < n; i++ {
		out[i] = Entry{ID: ids[i], Score: scores[i]}
	}
	return out
}

// Fuse merges two ranked lists via Reciprocal Rank Fusion.
// score(d) = sum of 1/(k + rank_i(d)) over the lists where d appears, with
// 1-based ranks. The result is sorted by fused score descending, ties broken
// by ID ascending, and capped at topN (topN <= 0 means no cap).
func Fuse(a, b []Entry, k, topN int) []Entry {
	if k <= 0 {
		k = DefaultK
	}

	fused := make(map[string]float64, len(a)+len(b))
	for rank, e := range a {
		fused[e.ID] += 1.0 / float64(k+rank+1)
	}
	for rank, e := range b {
		fused[e.ID] += 1.0 / float64(k+rank+1)
	}

	out := make([]Entry, 0, len(fused))
	for id, score := range fused {
		out = append(out, Entry{ID: id, Score: score})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})

	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}
