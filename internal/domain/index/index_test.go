package index

import (
	"math"
	"net/url"
	"testing"
	"time"
)

func buildChunks(source string, texts ...string) []Chunk {
	out := make([]Chunk, len(texts))
	for i, t := range texts {
		out[i] = NewChunk(source, i, t, []float32{1, 0})
	}
	return out
}

func assertInvariants(t *testing.T, idx *Index) {
	t.Helper()
	if idx.TotalDocs != len(idx.Chunks) {
		t.Fatalf("TotalDocs=%d, len(Chunks)=%d", idx.TotalDocs, len(idx.Chunks))
	}

	df := make(map[string]int)
	tokens := 0
	for _, c := range idx.Chunks {
		tokens += c.TokenLen
		for term := range c.TermFreq {
			df[term]++
		}
	}
	if len(df) != len(idx.DocFreq) {
		t.Fatalf("DocFreq has %d terms, want %d", len(idx.DocFreq), len(df))
	}
	for term, n := range df {
		if idx.DocFreq[term] != n {
			t.Errorf("DocFreq[%q]=%d, want %d", term, idx.DocFreq[term], n)
		}
	}

	want := 0.0
	if len(idx.Chunks) > 0 {
		want = float64(tokens) / float64(len(idx.Chunks))
	}
	if math.Abs(idx.AvgDocLen-want) > 1e-9 {
		t.Errorf("AvgDocLen=%f, want %f", idx.AvgDocLen, want)
	}
}

func TestNewChunk(t *testing.T) {
	c := NewChunk("https://example.org/a", 3, "Apply apply now", nil)
	if c.ID != "https://example.org/a#3" {
		t.Errorf("unexpected id %q", c.ID)
	}
	if c.TokenLen != 3 {
		t.Errorf("TokenLen=%d, want 3", c.TokenLen)
	}
	if c.TermFreq["apply"] != 2 || c.TermFreq["now"] != 1 {
		t.Errorf("unexpected tf %v", c.TermFreq)
	}
}

func TestMerge_Empty(t *testing.T) {
	idx := New(Meta{}, time.Now())
	idx.Merge(nil)
	if idx.TotalDocs != 0 || idx.AvgDocLen != 0 {
		t.Fatalf("expected empty stats, got docs=%d avg=%f", idx.TotalDocs, idx.AvgDocLen)
	}
	assertInvariants(t, idx)
}

func TestMerge_RepeatedTermCountsOncePerChunk(t *testing.T) {
	idx := New(Meta{}, time.Now())
	idx.Merge(buildChunks("s", "date date date", "date"))
	if idx.DocFreq["date"] != 2 {
		t.Errorf("DocFreq[date]=%d, want 2", idx.DocFreq["date"])
	}
	assertInvariants(t, idx)
}

func TestMerge_ExtendMatchesRebuild(t *testing.T) {
	first := buildChunks("a", "the closing date is march one", "admissions office room 12")
	second := buildChunks("b", "ects credits for the thesis module", "short", "contact the head of department")

	extended := New(Meta{}, time.Now())
	extended.Merge(first)
	extended.Merge(second)

	rebuilt := New(Meta{}, time.Now())
	rebuilt.Merge(append(append([]Chunk{}, first...), second...))

	if extended.TotalDocs != len(first)+len(second) {
		t.Fatalf("TotalDocs=%d", extended.TotalDocs)
	}
	if math.Abs(extended.AvgDocLen-rebuilt.AvgDocLen) > 1e-9 {
		t.Errorf("AvgDocLen extended=%f rebuilt=%f", extended.AvgDocLen, rebuilt.AvgDocLen)
	}
	for term, n := range rebuilt.DocFreq {
		if extended.DocFreq[term] != n {
			t.Errorf("DocFreq[%q] extended=%d rebuilt=%d", term, extended.DocFreq[term], n)
		}
	}
	assertInvariants(t, extended)
}

func TestSources(t *testing.T) {
	idx := New(Meta{}, time.Now())
	idx.Merge(buildChunks("a", "x", "y"))
	idx.Merge(buildChunks("b", "z"))
	idx.Merge(buildChunks("a", "w"))

	got := idx.Sources()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Sources()=%v", got)
	}
}

func TestHasOrigin(t *testing.T) {
	idx := New(Meta{}, time.Now())
	u, _ := url.Parse("https://uni.example/programs")
	if idx.HasOrigin(u) {
		t.Fatal("empty index must not match")
	}

	idx.Merge(buildChunks("https://uni.example/start", "hello"))
	if !idx.HasOrigin(u) {
		t.Error("expected same origin to match")
	}
	other, _ := url.Parse("http://uni.example/programs")
	if idx.HasOrigin(other) {
		t.Error("scheme change must not match")
	}
}

func TestHasOrigin_AnySource(t *testing.T) {
	idx := New(Meta{}, time.Now())
	idx.Merge(buildChunks("upload://notes.txt", "exam office"))
	idx.Merge(buildChunks("https://a.example/", "site a"))
	idx.Merge(buildChunks("https://b.example/about", "site b"))

	for _, raw := range []string{"https://a.example/x", "https://b.example"} {
		u, _ := url.Parse(raw)
		if !idx.HasOrigin(u) {
			t.Errorf("expected %s to match a later source", raw)
		}
	}
	c, _ := url.Parse("https://c.example")
	if idx.HasOrigin(c) {
		t.Error("unindexed origin must not match")
	}
	var nilIdx *Index
	if nilIdx.HasOrigin(c) {
		t.Error("nil index must not match")
	}
}
