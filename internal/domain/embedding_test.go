package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
)

func TestSanitizeTemperature(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{math.NaN(), DefaultTemperature},
		{-0.5, 0},
		{0, 0},
		{0.25, 0.25},
		{1.7, 1},
		{math.Inf(1), 1},
	}
	for _, tt := range tests {
		if got := SanitizeTemperature(tt.in); got != tt.want {
			t.Errorf("SanitizeTemperature(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestContextLimit(t *testing.T) {
	ctx := context.Background()
	if got := ContextLimitFrom(ctx); got != 0 {
		t.Errorf("expected 0 without hint, got %d", got)
	}
	ctx = WithContextLimit(ctx, 2048)
	if got := ContextLimitFrom(WithContextLimit(ctx, 1024)); got != 1024 {
		t.Errorf("inner hint must win, got %d", got)
	}
}

func TestEmbeddingUsage_Concurrent(t *testing.T) {
	ctx, usage := NewContextWithUsage(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			UsageFromContext(ctx).Record(3)
		}()
	}
	wg.Wait()

	if usage.Calls() != 50 || usage.TotalTokens() != 150 {
		t.Errorf("calls=%d tokens=%d", usage.Calls(), usage.TotalTokens())
	}
}

func TestEmbeddingUsage_NilSafe(t *testing.T) {
	u := UsageFromContext(context.Background())
	u.Record(10)
	if u.Calls() != 0 || u.TotalTokens() != 0 {
		t.Error("nil collector must report zero")
	}
}

func TestLooksLikeContextLength(t *testing.T) {
	tests := []struct {
		message, code string
		want          bool
	}{
		{"input length exceeds the context length", "", true},
		{"Prompt TOO LONG", "", true},
		{"", "context_length_exceeded", true},
		{"rate limit exceeded", "rate_limit", false},
		{"", "", false},
	}
	for _, tt := range tests {
		if got := LooksLikeContextLength(tt.message, tt.code); got != tt.want {
			t.Errorf("LooksLikeContextLength(%q, %q) = %v, want %v", tt.message, tt.code, got, tt.want)
		}
	}
}

func TestIsClientFault(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{fmt.Errorf("index: %w", ErrEmptyCrawl), true},
		{ErrNoIndex, true},
		{&FileError{Name: "a.pdf", Err: ErrUnsupportedFileType}, true},
		{fmt.Errorf("%w: %w", ErrEmbeddingFailed, ErrContextLength), false},
		{errors.New("boom"), false},
	}
	for _, tt := range tests {
		if got := IsClientFault(tt.err); got != tt.want {
			t.Errorf("IsClientFault(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestFileError(t *testing.T) {
	err := &FileError{Name: "notes.docx", Err: ErrExtractionFailed}
	if err.Error() != "notes.docx: extraction failed" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrExtractionFailed) {
		t.Error("FileError must unwrap to its cause")
	}
}
