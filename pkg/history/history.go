// Package history selects and opens the configured report history backend.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ArionMiles/ledgerview/pkg/api"
	"github.com/ArionMiles/ledgerview/pkg/history/jsonfile"
	"github.com/ArionMiles/ledgerview/pkg/history/memory"
	"github.com/ArionMiles/ledgerview/pkg/history/postgres"
	"github.com/ArionMiles/ledgerview/pkg/history/sqlite"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendJSON     = "json"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Backends lists every supported backend name.
var Backends = []string{BackendJSON, BackendMemory, BackendPostgres, BackendSQLite}

// Config selects a backend and carries the settings each one needs.
type Config struct {
	Backend    string
	JSONPath   string
	SQLitePath string
	Postgres   postgres.Config
}

// Open returns the store named by cfg.Backend. An empty backend means json.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (api.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = BackendJSON
	}
	logger = logger.With("history_backend", backend)

	var (
		store api.Store
		err   error
	)
	switch backend {
	case BackendMemory:
		store = memory.New()
	case BackendJSON:
		store, err = jsonfile.New(cfg.JSONPath, logger)
	case BackendSQLite:
		store, err = sqlite.New(cfg.SQLitePath, logger)
	case BackendPostgres:
		store, err = postgres.New(ctx, cfg.Postgres, logger)
	default:
		return nil, fmt.Errorf("unknown history backend %q (want one of %s)", cfg.Backend, strings.Join(Backends, ", "))
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s history: %w", backend, err)
	}
	return store, nil
}
