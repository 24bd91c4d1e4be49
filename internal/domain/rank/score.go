package rank

import (
	"math"

	"github.com/kailas-cloud/siteqa/internal/domain/index"
)

// BM25 parameters.
const (
	BM25K1 = 1.5
	BM25B  = 0.75
)

// Cosine returns the cosine similarity over the shared prefix of a and b.
// Empty or zero-norm vectors yield 0.
func Cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// BM25 scores chunk against terms using the corpus statistics of idx.
// Terms absent from the chunk or the corpus contribute nothing.
//
// idf is the non-negative variant ln(1 + (N-df+0.5)/(df+0.5)), so terms present in
// most chunks still score slightly above zero instead of going negative.
func BM25(terms []string, chunk *index.Chunk, idx *index.Index) float64 {
	if idx.TotalDocs == 0 || idx.AvgDocLen == 0 {
		return 0
	}
	n := float64(idx.TotalDocs)
	lengthNorm := BM25K1 * (1 - BM25B + BM25B*float64(chunk.TokenLen)/idx.AvgDocLen)

	var score float64
	for _, term := range terms {
		f := float64(chunk.TermFreq[term])
		if f <= 0 {
			continue
		}
		df := float64(idx.DocFreq[term])
		if df <= 0 {
			continue
		}
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		score += idf * (f * (BM25K1 + 1) / (f + lengthNorm))
	}
	return score
}
