// Package memory keeps report history in process memory. Nothing survives a
// restart.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/ArionMiles/ledgerview/pkg/api"
)

// Store is an in-memory history and sequence store.
type Store struct {
	mu    sync.Mutex
	snaps []api.ReportSnapshot
	seq   int
}

var _ api.Store = (*Store)(nil)

// New returns an empty store whose sequence starts at 1.
func New() *Store {
	return &Store{seq: 1}
}

// Load returns every snapshot, oldest first.
func (s *Store) Load(_ context.Context) ([]api.ReportSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.snaps), nil
}

// Append adds a snapshot.
func (s *Store) Append(_ context.Context, snap api.ReportSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
	return nil
}

// Clear drops every snapshot.
func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = nil
	return nil
}

// Current returns the next sequence number.
func (s *Store) Current(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq, nil
}

// Advance increments the sequence and returns the new value.
func (s *Store) Advance(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq, nil
}

// Release rewinds the sequence to seq if nothing advanced it since.
func (s *Store) Release(_ context.Context, seq int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq != seq+1 {
		return false, nil
	}
	s.seq = seq
	return true, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
