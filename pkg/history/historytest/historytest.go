// Package historytest holds the behaviour every history backend must share.
package historytest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/ledgerview/pkg/api"
)

// Snapshot builds a snapshot with a distinguishable id and filter.
func Snapshot(n int) api.ReportSnapshot {
	start := time.Date(2025, 1, n, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return api.ReportSnapshot{
		ID:        fmt.Sprintf("snap-%d", n),
		Name:      fmt.Sprintf("Audit Report #%d (%d Items)", n, n*2),
		CreatedAt: time.Date(2025, 3, 1, 10, n, 0, 0, time.UTC),
		Format:    api.FormatPDF,
		ItemCount: n * 2,
		Sequence:  n,
		Filter: api.FilterCriteria{
			Status:     "verified",
			Categories: []string{"Travel", "Meals"},
			DateStart:  &start,
			DateEnd:    &end,
		},
	}
}

// Run exercises a fresh store returned by newStore.
func Run(t *testing.T, newStore func(t *testing.T) api.Store) {
	t.Helper()

	t.Run("empty", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		snaps, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, snaps)

		seq, err := s.Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, seq)
	})

	t.Run("append keeps insertion order", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		for i := 1; i <= 3; i++ {
			require.NoError(t, s.Append(ctx, Snapshot(i)))
		}
		require.NoError(t, s.Append(ctx, Snapshot(1)), "duplicates are allowed")

		snaps, err := s.Load(ctx)
		require.NoError(t, err)
		require.Len(t, snaps, 4)
		assert.Equal(t, "snap-1", snaps[0].ID)
		assert.Equal(t, "snap-3", snaps[2].ID)
		assert.Equal(t, "snap-1", snaps[3].ID)

		want := Snapshot(2)
		got := snaps[1]
		assert.Equal(t, want.Name, got.Name)
		assert.Equal(t, want.Format, got.Format)
		assert.Equal(t, want.ItemCount, got.ItemCount)
		assert.Equal(t, want.Sequence, got.Sequence)
		assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
		assert.Equal(t, want.Filter.Status, got.Filter.Status)
		assert.Equal(t, want.Filter.Categories, got.Filter.Categories)
		require.NotNil(t, got.Filter.DateStart)
		assert.True(t, want.Filter.DateStart.Equal(*got.Filter.DateStart))
	})

	t.Run("sequence advances", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		next, err := s.Advance(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, next)

		next, err = s.Advance(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, next)

		seq, err := s.Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, seq)
	})

	t.Run("release rewinds only the latest reservation", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		_, err := s.Advance(ctx)
		require.NoError(t, err)
		_, err = s.Advance(ctx)
		require.NoError(t, err)

		ok, err := s.Release(ctx, 1)
		require.NoError(t, err)
		assert.False(t, ok, "number 2 was handed out after 1")

		ok, err = s.Release(ctx, 2)
		require.NoError(t, err)
		assert.True(t, ok)

		seq, err := s.Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, seq)
	})

	t.Run("clear keeps sequence", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.Append(ctx, Snapshot(1)))
		_, err := s.Advance(ctx)
		require.NoError(t, err)

		require.NoError(t, s.Clear(ctx))

		snaps, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, snaps)

		seq, err := s.Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, seq)
	})
}
