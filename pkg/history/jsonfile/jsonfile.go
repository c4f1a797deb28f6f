// Package jsonfile persists report history and the sequence counter in a
// single JSON file.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/ArionMiles/ledgerview/pkg/api"
)

// state is the on-disk document. The key names are kept stable so existing
// files stay readable.
type state struct {
	Reports  []api.ReportSnapshot `json:"recentReports"`
	Sequence int                  `json:"reportSequence"`
}

// Store keeps history in a JSON file. Every operation re-reads the file, so
// concurrent processes see each other's writes; the last writer wins.
type Store struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

var _ api.Store = (*Store)(nil)

// New creates a store backed by path, creating parent directories.
func New(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return nil, errors.New("history file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	s := &Store{path: path, logger: logger}
	st, err := s.read()
	if err != nil {
		return nil, err
	}

	logger.Info("json history store initialized", "file", path, "existing_count", len(st.Reports))
	return s, nil
}

// Load returns every snapshot, oldest first.
func (s *Store) Load(_ context.Context) ([]api.ReportSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil {
		return nil, err
	}
	return st.Reports, nil
}

// Append adds a snapshot and rewrites the file.
func (s *Store) Append(_ context.Context, snap api.ReportSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil {
		return err
	}
	st.Reports = append(st.Reports, snap)
	return s.write(st)
}

// Clear removes every snapshot but keeps the sequence.
func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil {
		return err
	}
	st.Reports = nil
	return s.write(st)
}

// Current returns the next sequence number.
func (s *Store) Current(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil {
		return 0, err
	}
	return st.Sequence, nil
}

// Advance increments the sequence and returns the new value.
func (s *Store) Advance(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil {
		return 0, err
	}
	st.Sequence++
	if err := s.write(st); err != nil {
		return 0, err
	}
	return st.Sequence, nil
}

// Release rewinds the sequence to seq if nothing advanced it since.
func (s *Store) Release(_ context.Context, seq int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil {
		return false, err
	}
	if st.Sequence != seq+1 {
		return false, nil
	}
	st.Sequence = seq
	if err := s.write(st); err != nil {
		return false, err
	}
	return true, nil
}

// Close is a no-op; the file is not held open.
func (s *Store) Close() error { return nil }

// read loads the file. A missing or empty file is an empty history.
func (s *Store) read() (state, error) {
	st := state{Sequence: 1}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return st, fmt.Errorf("reading history file: %w", err)
	}
	if len(data) == 0 {
		return st, nil
	}

	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("parsing history file: %w", err)
	}
	if st.Sequence < 1 {
		st.Sequence = 1
	}
	return st, nil
}

// write replaces the file atomically.
func (s *Store) write(st state) error {
	if st.Reports == nil {
		st.Reports = []api.ReportSnapshot{}
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling history: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("writing history file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing history file: %w", err)
	}

	s.logger.Debug("wrote history", "file", s.path, "count", len(st.Reports), "sequence", st.Sequence)
	return nil
}
