package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockCachePinger struct {
	err error
}

func (m *mockCachePinger) Ping(_ context.Context) error { return m.err }

type mockProviderChecker struct {
	err error
}

func (m *mockProviderChecker) HealthCheck(_ context.Context) error { return m.err }

type fixedCounter int

func (c fixedCounter) Len() int { return int(c) }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockCachePinger{}, &mockProviderChecker{}, fixedCounter(3))
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks[ComponentCache] != CheckOK {
		t.Errorf("expected cache %q, got %q", CheckOK, r.Checks[ComponentCache])
	}
	if r.Checks[ComponentProvider] != CheckOK {
		t.Errorf("expected provider %q, got %q", CheckOK, r.Checks[ComponentProvider])
	}
	if r.Sessions != 3 {
		t.Errorf("expected 3 sessions, got %d", r.Sessions)
	}
}

func TestCheck_CacheError(t *testing.T) {
	svc := New(&mockCachePinger{err: errors.New("conn refused")}, &mockProviderChecker{}, nil)
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks[ComponentCache] != CheckError {
		t.Errorf("expected cache %q, got %q", CheckError, r.Checks[ComponentCache])
	}
}

func TestCheck_ProviderError(t *testing.T) {
	svc := New(&mockCachePinger{err: errors.New("conn refused")}, &mockProviderChecker{err: errors.New("timeout")}, nil)
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Checks[ComponentProvider] != CheckError {
		t.Errorf("expected provider %q, got %q", CheckError, r.Checks[ComponentProvider])
	}
}

func TestCheck_NoCache(t *testing.T) {
	svc := New(nil, &mockProviderChecker{}, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, ok := r.Checks[ComponentCache]; ok {
		t.Error("cache check must be skipped when no cache is configured")
	}
}
