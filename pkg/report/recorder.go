// Package report generates report files and keeps the replayable history of
// the parameters they were generated with.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/ArionMiles/ledgerview/pkg/api"
)

// DisplayLimit is how many history entries are shown before "show more".
const DisplayLimit = 5

// Recorder appends report snapshots to a history store and hands out
// sequence numbers.
type Recorder struct {
	history  api.HistoryStore
	sequence api.SequenceStore
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
}

// RecorderOption customizes a Recorder.
type RecorderOption func(*Recorder)

// WithClock overrides the time source.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// WithIDGenerator overrides how snapshot ids are generated.
func WithIDGenerator(newID func() string) RecorderOption {
	return func(r *Recorder) { r.newID = newID }
}

// NewRecorder creates a recorder over the given stores.
func NewRecorder(history api.HistoryStore, sequence api.SequenceStore, logger *slog.Logger, opts ...RecorderOption) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		history:  history,
		sequence: sequence,
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SnapshotName is the display name of a generated report.
func SnapshotName(seq, count int) string {
	return fmt.Sprintf("Audit Report #%d (%d Items)", seq, count)
}

// NextSequence returns the sequence number the next reservation will get.
func (r *Recorder) NextSequence(ctx context.Context) (int, error) {
	seq, err := r.sequence.Current(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading report sequence: %w", err)
	}
	return seq, nil
}

// Reserve claims the next sequence number. Concurrent callers never get the
// same number. Hand it back with Release when the generation fails.
func (r *Recorder) Reserve(ctx context.Context) (int, error) {
	next, err := r.sequence.Advance(ctx)
	if err != nil {
		return 0, fmt.Errorf("reserving report sequence: %w", err)
	}
	return next - 1, nil
}

// Release returns an unused reservation. If a later number has been handed
// out in the meantime the counter stays put and seq is skipped.
func (r *Recorder) Release(ctx context.Context, seq int) {
	ok, err := r.sequence.Release(ctx, seq)
	switch {
	case err != nil:
		r.logger.Warn("releasing report sequence failed", "sequence", seq, "error", err)
	case !ok:
		r.logger.Debug("report sequence skipped", "sequence", seq)
	}
}

// Commit appends the snapshot of a successful generation under a reserved
// sequence number.
func (r *Recorder) Commit(ctx context.Context, seq int, format api.Format, filter api.FilterCriteria, count int) (api.ReportSnapshot, error) {
	snap := api.ReportSnapshot{
		ID:        r.newID(),
		Name:      SnapshotName(seq, count),
		CreatedAt: r.now().UTC(),
		Format:    format,
		ItemCount: count,
		Sequence:  seq,
		Filter:    cloneCriteria(filter),
	}

	if err := r.history.Append(ctx, snap); err != nil {
		return api.ReportSnapshot{}, fmt.Errorf("appending report snapshot: %w", err)
	}

	r.logger.Info("recorded report snapshot",
		"id", snap.ID,
		"sequence", seq,
		"format", format,
		"items", count,
	)
	return snap, nil
}

// Record reserves a sequence number and commits a snapshot with it.
// Identical parameters are recorded again every time.
func (r *Recorder) Record(ctx context.Context, format api.Format, filter api.FilterCriteria, count int) (api.ReportSnapshot, error) {
	seq, err := r.Reserve(ctx)
	if err != nil {
		return api.ReportSnapshot{}, err
	}
	snap, err := r.Commit(ctx, seq, format, filter, count)
	if err != nil {
		r.Release(ctx, seq)
		return api.ReportSnapshot{}, err
	}
	return snap, nil
}

// List returns every snapshot, most recent first.
func (r *Recorder) List(ctx context.Context) ([]api.ReportSnapshot, error) {
	snaps, err := r.history.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading report history: %w", err)
	}
	slices.Reverse(snaps)
	return snaps, nil
}

// Page is a truncated view of the history.
type Page struct {
	Items []api.ReportSnapshot `json:"items"`
	Total int                  `json:"total"`
	More  bool                 `json:"more"`
}

// Recent returns up to limit snapshots, most recent first, and whether more
// exist. A non-positive limit returns everything.
func (r *Recorder) Recent(ctx context.Context, limit int) (Page, error) {
	snaps, err := r.List(ctx)
	if err != nil {
		return Page{}, err
	}
	page := Page{Items: snaps, Total: len(snaps)}
	if limit > 0 && len(snaps) > limit {
		page.Items = snaps[:limit]
		page.More = true
	}
	if page.Items == nil {
		page.Items = []api.ReportSnapshot{}
	}
	return page, nil
}

// Get returns the snapshot with the given id.
func (r *Recorder) Get(ctx context.Context, id string) (api.ReportSnapshot, error) {
	snaps, err := r.history.Load(ctx)
	if err != nil {
		return api.ReportSnapshot{}, fmt.Errorf("loading report history: %w", err)
	}
	for _, s := range snaps {
		if s.ID == id {
			return s, nil
		}
	}
	return api.ReportSnapshot{}, fmt.Errorf("%w: %s", api.ErrSnapshotNotFound, id)
}

// Clear removes every snapshot. It refuses to run unless confirmed. The
// sequence counter is left untouched so filenames keep increasing.
func (r *Recorder) Clear(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return api.ErrClearNotConfirmed
	}
	if err := r.history.Clear(ctx); err != nil {
		return fmt.Errorf("clearing report history: %w", err)
	}
	r.logger.Info("cleared report history")
	return nil
}

// CountBand classifies a report's item count for history badges.
func CountBand(count int) string {
	switch {
	case count <= 1:
		return "single"
	case count <= 3:
		return "small"
	case count <= 8:
		return "medium"
	default:
		return "large"
	}
}

func cloneCriteria(c api.FilterCriteria) api.FilterCriteria {
	c.Categories = slices.Clone(c.Categories)
	if c.DateStart != nil {
		t := *c.DateStart
		c.DateStart = &t
	}
	if c.DateEnd != nil {
		t := *c.DateEnd
		c.DateEnd = &t
	}
	return c
}
