package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates the cache is down; answers still work, slower.
	Degraded Status = "degraded"
	// Unhealthy indicates the model provider is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names used in Report.Checks.
const (
	ComponentCache    = "cache"
	ComponentProvider = "provider"
)

// Report aggregates health check results.
type Report struct {
	Status   Status
	Checks   map[string]CheckResult
	Sessions int
}

// Service coordinates health checks.
type Service struct {
	cache    CachePinger
	provider ProviderChecker
	sessions SessionCounter
}

// New creates a Service. cache and sessions can be nil.
func New(cache CachePinger, provider ProviderChecker, sessions SessionCounter) *Service {
	return &Service{cache: cache, provider: provider, sessions: sessions}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	status := Healthy

	if s.cache != nil {
		checks[ComponentCache] = result(s.cache.Ping(ctx))
		if checks[ComponentCache] == CheckError {
			status = Degraded
		}
	}

	if s.provider != nil {
		checks[ComponentProvider] = result(s.provider.HealthCheck(ctx))
		if checks[ComponentProvider] == CheckError {
			status = Unhealthy
		}
	}

	r := Report{Status: status, Checks: checks}
	if s.sessions != nil {
		r.Sessions = s.sessions.Len()
	}
	return r
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
