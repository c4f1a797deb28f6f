// Package postgres provides a PostgreSQL backed report history store.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ArionMiles/ledgerview/pkg/api"
)

//go:embed 001_create_report_history.sql
var migrationSQL string

// Config holds the PostgreSQL store configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// DSN overrides the individual connection fields when set.
	DSN string

	// MaxPoolSize is the maximum number of connections in the pool.
	MaxPoolSize int
}

// Store persists snapshots and the sequence counter in PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ api.Store = (*Store)(nil)

// New connects, verifies the connection and runs migrations.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 4
	}

	connStr := cfg.DSN
	if connStr == "" {
		connStr = fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
		)
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxPoolSize)
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("connected to PostgreSQL",
		"host", poolConfig.ConnConfig.Host,
		"port", poolConfig.ConnConfig.Port,
		"database", poolConfig.ConnConfig.Database,
	)

	s := &Store{pool: pool, logger: logger}
	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *Store) runMigrations(ctx context.Context) error {
	s.logger.Info("running database migrations")
	if _, err := s.pool.Exec(ctx, migrationSQL); err != nil {
		return fmt.Errorf("executing migration: %w", err)
	}
	s.logger.Info("migrations completed successfully")
	return nil
}

// Load returns every snapshot, oldest first.
func (s *Store) Load(ctx context.Context) ([]api.ReportSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, created_at, format, item_count, sequence, filters
		FROM report_snapshots
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}

	snaps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (api.ReportSnapshot, error) {
		var (
			snap    api.ReportSnapshot
			format  string
			filters []byte
		)
		if err := row.Scan(&snap.ID, &snap.Name, &snap.CreatedAt, &format, &snap.ItemCount, &snap.Sequence, &filters); err != nil {
			return snap, err
		}
		snap.Format = api.Format(format)
		snap.CreatedAt = snap.CreatedAt.UTC()
		if err := json.Unmarshal(filters, &snap.Filter); err != nil {
			return snap, fmt.Errorf("decoding filters of %s: %w", snap.ID, err)
		}
		return snap, nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading snapshots: %w", err)
	}
	return snaps, nil
}

// Append inserts a snapshot at the end of the history.
func (s *Store) Append(ctx context.Context, snap api.ReportSnapshot) error {
	filters, err := json.Marshal(snap.Filter)
	if err != nil {
		return fmt.Errorf("encoding filters: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO report_snapshots (id, name, created_at, format, item_count, sequence, filters)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		snap.ID,
		snap.Name,
		snap.CreatedAt,
		string(snap.Format),
		snap.ItemCount,
		snap.Sequence,
		filters,
	)
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}
	return nil
}

// Clear deletes every snapshot in one transaction. The sequence survives.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM report_snapshots`)
	if err != nil {
		return fmt.Errorf("deleting snapshots: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Info("cleared report history", "deleted", tag.RowsAffected())
	return nil
}

// Current returns the next sequence number.
func (s *Store) Current(ctx context.Context) (int, error) {
	var next int
	if err := s.pool.QueryRow(ctx, `SELECT next FROM report_sequence`).Scan(&next); err != nil {
		return 0, fmt.Errorf("reading sequence: %w", err)
	}
	return next, nil
}

// Advance increments the sequence and returns the new value.
func (s *Store) Advance(ctx context.Context) (int, error) {
	var next int
	err := s.pool.QueryRow(ctx, `UPDATE report_sequence SET next = next + 1 RETURNING next`).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("advancing sequence: %w", err)
	}
	return next, nil
}

// Release rewinds the sequence to seq if nothing advanced it since.
func (s *Store) Release(ctx context.Context, seq int) (bool, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE report_sequence SET next = $1 WHERE next = $2`, seq, seq+1)
	if err != nil {
		return false, fmt.Errorf("releasing sequence: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
		s.logger.Info("closed PostgreSQL connection pool")
	}
	return nil
}

// reset empties both tables. Used by tests sharing one database.
func (s *Store) reset(ctx context.Context) error {
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM report_snapshots`)
	batch.Queue(`UPDATE report_sequence SET next = 1`)
	return s.pool.SendBatch(ctx, batch).Close()
}
