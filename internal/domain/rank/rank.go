// Package rank implements the two-stage hybrid reranker: a cosine pre-selection
// followed by a fused score of cosine, BM25 over expanded query terms, and
// heuristic bonuses.
package rank

import (
	"sort"

	"github.com/kailas-cloud/siteqa/internal/domain/index"
)

// Fusion weights and the stage-1 candidate floor.
const (
	WeightCosine  = 0.55
	WeightLexical = 0.35
	WeightBonus   = 0.10

	MinCandidates = 50
)

// Scored is a ranked chunk with its score components.
type Scored struct {
	Chunk   *index.Chunk
	Score   float64
	Cosine  float64
	Lexical float64
	Bonus   float64
}

// Rank orders the chunks of idx for the query. Ties keep the stage-1 order,
// which itself keeps index order for equal similarity.
func Rank(question string, queryVec []float32, idx *index.Index, take int) []Scored {
	if idx == nil || len(idx.Chunks) == 0 || take <= 0 {
		return nil
	}

	candidates := make([]Scored, len(idx.Chunks))
	for i := range idx.Chunks {
		c := &idx.Chunks[i]
		candidates[i] = Scored{Chunk: c, Cosine: Cosine(queryVec, c.Embedding)}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Cosine > candidates[j].Cosine
	})
	if keep := max(take, MinCandidates); len(candidates) > keep {
		candidates = candidates[:keep]
	}

	q := ParseQuery(question)
	for i := range candidates {
		s := &candidates[i]
		s.Lexical = BM25(q.Terms, s.Chunk, idx)
		s.Bonus = q.Bonus(s.Chunk.Text, s.Chunk.SourceID)
		s.Score = WeightCosine*s.Cosine + WeightLexical*s.Lexical + WeightBonus*s.Bonus
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if len(candidates) > take {
		candidates = candidates[:take]
	}
	return candidates
}

// PrimarySource returns the source of the top-ranked chunk, or "" when nothing ranked.
func PrimarySource(picks []Scored) string {
	if len(picks) == 0 {
		return ""
	}
	return picks[0].Chunk.SourceID
}
