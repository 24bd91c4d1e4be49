package segment

import (
	"errors"
	"strings"
	"testing"
)

func TestSplit_Blank(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\t"} {
		got, err := Split(in, 10, 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("Split(%q) = %v, want empty", in, got)
		}
	}
}

func TestSplit_InvalidWindow(t *testing.T) {
	cases := []struct{ size, overlap int }{
		{10, 10},
		{10, 11},
		{0, 0},
		{5, -1},
	}
	for _, c := range cases {
		if _, err := Split("some text", c.size, c.overlap); !errors.Is(err, ErrInvalidWindow) {
			t.Errorf("size=%d overlap=%d: expected ErrInvalidWindow, got %v", c.size, c.overlap, err)
		}
	}
}

func TestSplit_ShortText(t *testing.T) {
	got, err := Split("hello", 10, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != "hello" {
		t.Errorf("got %v", got)
	}
}

func TestSplit_OverlapAndCoverage(t *testing.T) {
	inputs := []string{
		"abcdefghijklmnopqrstuvwxyz",
		strings.Repeat("Grüße aus München. ", 17),
		"日本語のテキストを分割するテストです。",
	}
	windows := []struct{ size, overlap int }{
		{5, 2}, {7, 0}, {10, 9}, {3, 1},
	}

	for _, in := range inputs {
		for _, w := range windows {
			got, err := Split(in, w.size, w.overlap)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertWindows(t, in, got, w.size, w.overlap)
		}
	}
}

func assertWindows(t *testing.T, in string, got []string, size, overlap int) {
	t.Helper()
	runes := []rune(in)

	var rebuilt []rune
	for i, win := range got {
		wr := []rune(win)
		if i < len(got)-1 && len(wr) != size {
			t.Fatalf("window %d has %d runes, want %d", i, len(wr), size)
		}
		if len(wr) > size {
			t.Fatalf("window %d longer than size", i)
		}
		if i == 0 {
			rebuilt = append(rebuilt, wr...)
			continue
		}
		prev := []rune(got[i-1])
		if string(prev[len(prev)-overlap:]) != string(wr[:overlap]) {
			t.Fatalf("windows %d and %d do not overlap by %d runes", i-1, i, overlap)
		}
		rebuilt = append(rebuilt, wr[overlap:]...)
	}

	if string(rebuilt) != string(runes) {
		t.Fatalf("windows do not cover input exactly (size=%d overlap=%d)", size, overlap)
	}
}
