package qa

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/kailas-cloud/siteqa/internal/domain"
)

const wrappingChars = "\"'“”„«»<>()[]{}"

// SanitizeURL turns user-typed input into an absolute http(s) URL. Only the first
// whitespace-separated token is used; quotes and brackets around it are dropped;
// "//host", "www.host" and bare hosts get https.
func SanitizeURL(raw string) (*url.URL, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty url: %w", domain.ErrInvalidURL)
	}
	s := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, fields[0])
	s = strings.Trim(s, wrappingChars)

	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(s, "//"):
		s = "https:" + s
	case strings.HasPrefix(lower, "www."):
		s = "https://" + s
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
	default:
		s = "https://" + strings.TrimPrefix(s, "://")
	}

	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", raw, domain.ErrInvalidURL)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Host == "" {
		return nil, fmt.Errorf("%q has no host: %w", raw, domain.ErrInvalidURL)
	}
	return u, nil
}
