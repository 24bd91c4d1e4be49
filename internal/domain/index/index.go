// Package index holds the per-session hybrid index: chunks with their embeddings
// and term statistics, plus the corpus statistics BM25 needs.
package index

import (
	"net/url"
	"strconv"
	"time"

	"github.com/kailas-cloud/siteqa/internal/domain/text"
)

// Chunk is a bounded text segment plus its derived statistics and embedding.
// Chunks are immutable once appended to an Index.
type Chunk struct {
	ID        string
	SourceID  string
	Text      string
	Embedding []float32
	TermFreq  map[string]int
	TokenLen  int
}

// NewChunk tokenizes chunkText and derives the term statistics.
// ordinal is the window position inside the source text.
func NewChunk(sourceID string, ordinal int, chunkText string, embedding []float32) Chunk {
	tokens := text.Tokenize(chunkText)
	return Chunk{
		ID:        ChunkID(sourceID, ordinal),
		SourceID:  sourceID,
		Text:      chunkText,
		Embedding: embedding,
		TermFreq:  text.TermFrequency(tokens),
		TokenLen:  len(tokens),
	}
}

// ChunkID derives a chunk identifier from its source and ordinal.
func ChunkID(sourceID string, ordinal int) string {
	return sourceID + "#" + strconv.Itoa(ordinal)
}

// Meta describes how an index was built.
type Meta struct {
	EmbedModel string
	GenModel   string
	Scope      string
}

// Index is the hybrid search index of one session.
//
// Invariants: DocFreq[t] is the number of chunks whose TermFreq contains t,
// TotalDocs == len(Chunks), AvgDocLen is the mean TokenLen over Chunks.
type Index struct {
	EmbedModel string
	GenModel   string
	Chunks     []Chunk
	CreatedAt  time.Time
	Scope      string
	DocFreq    map[string]int
	TotalDocs  int
	AvgDocLen  float64
}

// New creates an empty index.
func New(meta Meta, createdAt time.Time) *Index {
	return &Index{
		EmbedModel: meta.EmbedModel,
		GenModel:   meta.GenModel,
		CreatedAt:  createdAt,
		Scope:      meta.Scope,
		DocFreq:    make(map[string]int),
	}
}

// Merge appends chunks and folds their statistics into the corpus totals.
// The average length is recomputed from the merged totals, never by rescanning.
func (idx *Index) Merge(chunks []Chunk) {
	if len(chunks) == 0 {
		return
	}
	if idx.DocFreq == nil {
		idx.DocFreq = make(map[string]int)
	}

	newTokens := 0
	for _, c := range chunks {
		newTokens += c.TokenLen
		for term := range c.TermFreq {
			idx.DocFreq[term]++
		}
	}

	oldDocs := idx.TotalDocs
	idx.Chunks = append(idx.Chunks, chunks...)
	idx.TotalDocs = oldDocs + len(chunks)
	idx.AvgDocLen = (idx.AvgDocLen*float64(oldDocs) + float64(newTokens)) / float64(idx.TotalDocs)
}

// Sources returns distinct chunk sources in first-seen order.
func (idx *Index) Sources() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range idx.Chunks {
		if _, ok := seen[c.SourceID]; ok {
			continue
		}
		seen[c.SourceID] = struct{}{}
		out = append(out, c.SourceID)
	}
	return out
}

// HasOrigin reports whether any indexed source shares scheme and host with u.
// Upload sources never match.
func (idx *Index) HasOrigin(u *url.URL) bool {
	if idx == nil || u == nil {
		return false
	}
	for _, src := range idx.Sources() {
		su, err := url.Parse(src)
		if err != nil {
			continue
		}
		if su.Scheme == u.Scheme && su.Host == u.Host {
			return true
		}
	}
	return false
}
