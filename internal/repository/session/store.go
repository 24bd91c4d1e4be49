// Package session keeps one hybrid index per session for the life of the process.
package session

import (
	"sync"
	"sync/atomic"

	"github.com/kailas-cloud/siteqa/internal/domain/index"
)

// Session guards one index. Readers share the index; a writer has it exclusively
// for the whole build or extend.
type Session struct {
	ID string

	mu      sync.RWMutex
	idx     *index.Index
	indexed atomic.Bool
}

// Read runs fn under the read lock. idx is nil when nothing was indexed yet.
// fn must not retain idx after it returns.
func (s *Session) Read(fn func(idx *index.Index) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.idx)
}

// Write runs fn under the write lock and installs the index it returns.
// On error the current index is kept.
func (s *Session) Write(fn func(cur *index.Index) (*index.Index, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fn(s.idx)
	if err != nil {
		return err
	}
	s.idx = next
	s.indexed.Store(next != nil)
	return nil
}

// Store maps session IDs to sessions.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Get returns the session or false until a write to it has succeeded.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || !sess.indexed.Load() {
		return nil, false
	}
	return sess, true
}

// GetOrCreate returns the session, creating an empty one on first use.
// An empty session is invisible to Get and Len until a write succeeds.
func (s *Store) GetOrCreate(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &Session{ID: id}
		s.sessions[id] = sess
	}
	return sess
}

// Len returns the number of sessions holding an index.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.indexed.Load() {
			n++
		}
	}
	return n
}
