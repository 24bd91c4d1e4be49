package health

import "context"

// CachePinger checks the embedding cache backend.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker checks embedding/generation provider availability.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}

// SessionCounter reports how many sessions hold state.
type SessionCounter interface {
	Len() int
}
