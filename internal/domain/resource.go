package domain

// Resource is a fetched page or document body.
type Resource struct {
	URL         string // final URL after redirects
	ContentType string
	Body        []byte
}
