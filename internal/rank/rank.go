// Package rank re-ranks approximate search candidates by exact cosine
// similarity against the query embedding.
package rank

import (
	"math"
	"sort"

	"github.com/hunterwarburton/pantry/internal/core"
)

// CosineSimilarity returns dot(a,b) / (|a| * |b|). The dot product runs over
// the common prefix while each norm covers its whole vector. Zero when either
// norm is zero.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}

	na, nb := norm(a), norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (na * nb)
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Rank scores every candidate that carries a vector and returns them sorted
// by similarity, highest first. Ties keep candidate order.
func Rank(query []float32, candidates []core.Record) []core.RankedResult {
	results := make([]core.RankedResult, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Embedding) == 0 {
			continue
		}
		results = append(results, core.RankedResult{
			Text:       c.Text,
			Similarity: CosineSimilarity(query, c.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	return results
}

// Top truncates results to at most limit entries. A non-positive limit
// returns results unchanged.
func Top(results []core.RankedResult, limit int) []core.RankedResult {
	if limit <= 0 || len(results) <= limit {
		return results
	}
	return results[:limit]
}
