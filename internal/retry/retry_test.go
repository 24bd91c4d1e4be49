package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLinear(t *testing.T) {
	l := &Linear{Step: 200 * time.Millisecond}
	for i, want := range []time.Duration{200 * time.Millisecond, 400 * time.Millisecond, 600 * time.Millisecond} {
		if got := l.NextBackOff(); got != want {
			t.Errorf("step %d: got %v, want %v", i, got, want)
		}
	}
	l.Reset()
	if got := l.NextBackOff(); got != 200*time.Millisecond {
		t.Errorf("after reset: got %v", got)
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	var waits []time.Duration
	got, err := Do(context.Background(), Policy{Attempts: 3, Step: time.Millisecond},
		func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", errors.New("flaky")
			}
			return "ok", nil
		},
		func(_ error, wait time.Duration) { waits = append(waits, wait) },
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || calls != 3 {
		t.Errorf("got %q after %d calls", got, calls)
	}
	if len(waits) != 2 || waits[0] != time.Millisecond || waits[1] != 2*time.Millisecond {
		t.Errorf("unexpected waits %v", waits)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	_, err := Do(context.Background(), Policy{Attempts: 3, Step: time.Millisecond},
		func(context.Context) (int, error) {
			calls++
			return 0, boom
		}, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	bad := errors.New("bad input")
	_, err := Do(context.Background(), DefaultPolicy,
		func(context.Context) (int, error) {
			calls++
			return 0, Permanent(bad)
		}, nil)
	if !errors.Is(err, bad) {
		t.Fatalf("expected bad input, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := Do(ctx, Policy{Attempts: 5, Step: time.Hour},
		func(context.Context) (int, error) {
			calls++
			return 0, errors.New("fail")
		}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls > 1 {
		t.Errorf("expected at most 1 call, got %d", calls)
	}
}
