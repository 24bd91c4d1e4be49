package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/siteqa/internal/db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(Config{MaxEntries: 1000})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestStore_SetGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "k"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	if err := s.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("unexpected value %q", got)
	}
}

func TestStore_Del(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.Set(ctx, "k", []byte("v"))
	if err := s.Del(ctx, "k"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound after delete, got %v", err)
	}
}

func TestStore_Closed(t *testing.T) {
	s, err := NewStore(Config{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	s.Close()
	s.Close()

	if err := s.Ping(context.Background()); !errors.Is(err, db.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := s.Get(context.Background(), "k"); !errors.Is(err, db.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
