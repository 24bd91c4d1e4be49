package text

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Closing date: March 1", []string{"closing", "date", "march", "1"}},
		{"uni-assist / APS", []string{"uni", "assist", "aps"}},
		{"Akademische Prüfstelle", []string{"akademische", "prüfstelle"}},
		{"   ", nil},
		{"room42", []string{"room42"}},
	}
	for _, tc := range tests {
		got := Tokenize(tc.in)
		if strings.Join(got, "|") != strings.Join(tc.want, "|") {
			t.Errorf("Tokenize(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestTermFrequency(t *testing.T) {
	tf := TermFrequency([]string{"a", "b", "a"})
	if tf["a"] != 2 || tf["b"] != 1 || len(tf) != 2 {
		t.Fatalf("unexpected tf: %v", tf)
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	got := NormalizeWhitespace("  a \n\t b   c ")
	if got != "a b c" {
		t.Errorf("got %q", got)
	}
}

func TestClamp(t *testing.T) {
	t.Run("within budget unchanged", func(t *testing.T) {
		if got := Clamp("hello world", 20); got != "hello world" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("cuts at last whitespace", func(t *testing.T) {
		got := Clamp("alpha beta gamma", 12)
		if got != "alpha beta" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("no whitespace falls back to rune boundary", func(t *testing.T) {
		got := Clamp("abcdefghij", 4)
		if got != "abcd" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("multi-byte runes never split", func(t *testing.T) {
		s := strings.Repeat("ü", 10)
		got := Clamp(s, 3)
		if !utf8.ValidString(got) {
			t.Fatalf("invalid utf8: %q", got)
		}
		if utf8.RuneCountInString(got) != 3 {
			t.Errorf("expected 3 runes, got %d", utf8.RuneCountInString(got))
		}
	})

	t.Run("zero budget", func(t *testing.T) {
		if got := Clamp("abc", 0); got != "" {
			t.Errorf("got %q", got)
		}
	})
}
