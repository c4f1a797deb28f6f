// Package sqlite stores report history in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/ArionMiles/ledgerview/pkg/api"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a SQLite backed api.Store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ api.Store = (*Store)(nil)

// New opens (or creates) the database at path and applies migrations.
func New(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return nil, errors.New("sqlite database path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serializes writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(path); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger.Info("sqlite history store initialized", "path", path)
	return &Store{db: db, logger: logger}, nil
}

func runMigrations(path string) error {
	migrateDB, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	driver, err := migratesqlite.WithInstance(migrateDB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Load returns every snapshot, oldest first.
func (s *Store) Load(ctx context.Context) ([]api.ReportSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at, format, item_count, sequence, filters
		FROM report_snapshots
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []api.ReportSnapshot
	for rows.Next() {
		var (
			snap      api.ReportSnapshot
			createdAt string
			format    string
			filters   string
		)
		if err := rows.Scan(&snap.ID, &snap.Name, &createdAt, &format, &snap.ItemCount, &snap.Sequence, &filters); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.Format = api.Format(format)
		if snap.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at of %s: %w", snap.ID, err)
		}
		if err := json.Unmarshal([]byte(filters), &snap.Filter); err != nil {
			return nil, fmt.Errorf("decode filters of %s: %w", snap.ID, err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snaps, nil
}

// Append inserts a snapshot at the end of the history.
func (s *Store) Append(ctx context.Context, snap api.ReportSnapshot) error {
	filters, err := json.Marshal(snap.Filter)
	if err != nil {
		return fmt.Errorf("encode filters: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO report_snapshots (id, name, created_at, format, item_count, sequence, filters)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		snap.ID,
		snap.Name,
		snap.CreatedAt.UTC().Format(time.RFC3339Nano),
		string(snap.Format),
		snap.ItemCount,
		snap.Sequence,
		string(filters),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	s.logger.DebugContext(ctx, "snapshot saved to SQLite", "id", snap.ID, "sequence", snap.Sequence)
	return nil
}

// Clear deletes every snapshot. The sequence row is untouched.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM report_snapshots`); err != nil {
		return fmt.Errorf("delete snapshots: %w", err)
	}
	return nil
}

// Current returns the next sequence number.
func (s *Store) Current(ctx context.Context) (int, error) {
	var next int
	err := s.db.QueryRowContext(ctx, `SELECT next FROM report_sequence WHERE singleton = 1`).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("read sequence: %w", err)
	}
	return next, nil
}

// Advance increments the sequence and returns the new value.
func (s *Store) Advance(ctx context.Context) (int, error) {
	var next int
	err := s.db.QueryRowContext(ctx, `
		UPDATE report_sequence SET next = next + 1
		WHERE singleton = 1
		RETURNING next
	`).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("advance sequence: %w", err)
	}
	return next, nil
}

// Release rewinds the sequence to seq if nothing advanced it since.
func (s *Store) Release(ctx context.Context, seq int) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE report_sequence SET next = ? WHERE singleton = 1 AND next = ?`, seq, seq+1)
	if err != nil {
		return false, fmt.Errorf("release sequence: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("release sequence: %w", err)
	}
	return n == 1, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
