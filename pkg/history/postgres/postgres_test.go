package postgres

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/ArionMiles/ledgerview/pkg/api"
	"github.com/ArionMiles/ledgerview/pkg/history/historytest"
)

// TestNew_ConnectionFailure tests that the store returns an error when connection fails.
func TestNew_ConnectionFailure(t *testing.T) {
	cfg := Config{
		Host:     "nonexistent-host",
		Port:     5432,
		Database: "ledgerview",
		User:     "ledgerview",
		Password: "password",
		SSLMode:  "disable",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := New(ctx, cfg, slog.New(slog.NewTextHandler(os.Stdout, nil)))
	if err == nil {
		t.Error("expected error when connecting to nonexistent host, got nil")
	}
}

// TestNew_InvalidDSN tests that a malformed DSN is rejected before dialing.
func TestNew_InvalidDSN(t *testing.T) {
	_, err := New(context.Background(), Config{DSN: "postgres://%zz"}, nil)
	if err == nil {
		t.Error("expected error for malformed DSN, got nil")
	}
}

// TestStore_Environment runs the shared history behaviour against a database
// configured through TEST_POSTGRES_* variables.
func TestStore_Environment(t *testing.T) {
	if os.Getenv("TEST_POSTGRES_HOST") == "" {
		t.Skip("TEST_POSTGRES_HOST not set, skipping integration test")
	}

	cfg := Config{
		Host:     os.Getenv("TEST_POSTGRES_HOST"),
		Database: os.Getenv("TEST_POSTGRES_DB"),
		User:     os.Getenv("TEST_POSTGRES_USER"),
		Password: os.Getenv("TEST_POSTGRES_PASSWORD"),
	}
	runShared(t, cfg)
}

// TestStore_Container starts a disposable PostgreSQL container.
func TestStore_Container(t *testing.T) {
	if os.Getenv("LEDGERVIEW_TESTCONTAINERS") != "1" {
		t.Skip("LEDGERVIEW_TESTCONTAINERS not set, skipping container test")
	}

	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("ledgerview"),
		tcpostgres.WithUsername("ledgerview"),
		tcpostgres.WithPassword("ledgerview"),
		tcpostgres.BasicWaitStrategies(),
	)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	runShared(t, Config{DSN: dsn})
}

func runShared(t *testing.T, cfg Config) {
	t.Helper()

	store, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	historytest.Run(t, func(t *testing.T) api.Store {
		require.NoError(t, store.reset(context.Background()))
		return store
	})
}
