package memory

import (
	"math"
	"strings"
)

// cosineSimilarity computes the cosine similarity of two vectors with
// float64 accumulation. Mismatched or empty vectors and zero-magnitude
// vectors score 0 rather than erroring; retrieval treats that the same as
// "no signal".
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na2, nb2 float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return 0
	}
	return dot / (math.Sqrt(na2) * math.Sqrt(nb2))
}

// heuristicScore scores text against query without embeddings.
// A full substring match scores 1.0. Otherwise the score is
// 0.1 * (distinct query words present in text) / (distinct query words),
// so partial word overlap contributes a small, non-zero signal.
func heuristicScore(query, text string) float64 {
	q := strings.ToLower(query)
	t := strings.ToLower(text)
	if q != "" && strings.Contains(t, q) {
		return 1.0
	}

	words := strings.Fields(q)
	if len(words) == 0 {
		return 0
	}
	distinct := make(map[string]struct{}, len(words))
	for _, w := range words {
		distinct[w] = struct{}{}
	}
	common := 0
	for w := range distinct {
		if strings.Contains(t, w) {
			common++
		}
	}
	return 0.1 * float64(common) / float64(len(distinct))
}
