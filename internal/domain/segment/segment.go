// Package segment splits normalized text into overlapping fixed-size rune windows.
package segment

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidWindow signals window parameters that cannot make progress.
var ErrInvalidWindow = errors.New("invalid segment window")

// Split returns consecutive windows of size runes; each window after the first
// starts overlap runes before the end of the previous one. The last window may be
// shorter. Blank text yields no windows.
func Split(text string, size, overlap int) ([]string, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidWindow, size, overlap)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); {
		end := min(start+size, len(runes))
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
		start = end - overlap
	}
	return out, nil
}
