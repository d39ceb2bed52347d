package rag

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	"case-rag/internal/models"
)

// DimensionPolicy decides how embeddings of different length are compared.
type DimensionPolicy string

const (
	// PolicyTruncate scores over the shared prefix and logs a warning.
	PolicyTruncate DimensionPolicy = "truncate"
	// PolicyReject scores mismatched pairs as 0, which drops them from results.
	PolicyReject DimensionPolicy = "reject"
)

// CosineSimilarity computes dot(a,b)/(|a||b|) over the first min(len(a), len(b))
// components. Empty or zero-magnitude input scores 0.
func CosineSimilarity(a, b models.Vector) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(sim) {
		return 0
	}
	return sim
}

// Ranker scores stored chunks against a query embedding and keeps the top K
// strictly positive matches.
type Ranker struct {
	K      int
	Policy DimensionPolicy
}

func (r Ranker) Rank(query models.Vector, chunks []models.Chunk) []models.ScoredContext {
	if len(query) == 0 || len(chunks) == 0 || r.K <= 0 {
		return nil
	}

	scored := make([]models.ScoredContext, 0, len(chunks))
	mismatched := 0
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			continue
		}

		if len(c.Embedding) != len(query) {
			mismatched++
			if r.Policy == PolicyReject {
				continue
			}
		}
		score := CosineSimilarity(query, c.Embedding)
		if score <= 0 {
			continue
		}
		scored = append(scored, models.ScoredContext{
			Label:   Label(c.DocumentName, c.Index),
			Content: c.Content,
			Score:   score,
		})
	}

	if mismatched > 0 {
		log.Warn().
			Err(models.ErrDimensionMismatch).
			Int("query_dims", len(query)).
			Int("mismatched", mismatched).
			Str("policy", string(r.Policy)).
			Msg("Embedding dimensions differ from query")
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > r.K {
		scored = scored[:r.K]
	}
	return scored
}

// Label is the user-facing chunk reference; storage indices are zero-based.
func Label(displayName string, index int) string {
	return fmt.Sprintf("%s#%d", displayName, index+1)
}
