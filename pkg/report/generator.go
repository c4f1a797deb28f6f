package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ArionMiles/ledgerview/pkg/api"
	"github.com/ArionMiles/ledgerview/pkg/export"
	"github.com/ArionMiles/ledgerview/pkg/ledger"
)

// Sink stores generated files and returns where they ended up.
type Sink interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// Mirror receives the rows of every generated report.
type Mirror interface {
	Mirror(ctx context.Context, name string, rows []export.Row) error
}

// Notifier announces generated reports.
type Notifier interface {
	ReportGenerated(ctx context.Context, snapshot api.ReportSnapshot, location string) error
}

// ChartRenderer draws a PNG of a time series.
type ChartRenderer interface {
	Render(title string, series []api.Bucket) ([]byte, error)
}

// Request describes a report to generate.
type Request struct {
	Format api.Format         `json:"format"`
	Filter api.FilterCriteria `json:"filter"`
	// Sort orders the rows. Nil keeps feed order.
	Sort *api.SortSpec `json:"sort,omitempty"`
}

// Artifact is a rendered report file.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
	// Location is where the sink stored the file, if a sink is configured.
	Location string
	Count    int
	// Snapshot is set for fresh generations and nil for re-downloads.
	Snapshot *api.ReportSnapshot
}

// TrendTitle is the title of rendered trend charts.
const TrendTitle = "Spend trend"

// Config holds configuration for the generator.
type Config struct {
	// Label prefixes generated filenames. Defaults to DefaultLabel.
	Label string
}

// Generator renders report files from the live feed and records them.
type Generator struct {
	feed     api.Feed
	recorder *Recorder
	encoders *export.Registry
	label    string
	sink     Sink
	mirror   Mirror
	notifier Notifier
	chart    ChartRenderer
	now      func() time.Time
	logger   *slog.Logger
}

// GeneratorOption customizes a Generator.
type GeneratorOption func(*Generator)

// WithSink stores every rendered file.
func WithSink(s Sink) GeneratorOption { return func(g *Generator) { g.sink = s } }

// WithMirror copies the rows of generated reports elsewhere.
func WithMirror(m Mirror) GeneratorOption { return func(g *Generator) { g.mirror = m } }

// WithNotifier announces generated reports.
func WithNotifier(n Notifier) GeneratorOption { return func(g *Generator) { g.notifier = n } }

// WithChart embeds a trend chart in formats that support images.
func WithChart(c ChartRenderer) GeneratorOption { return func(g *Generator) { g.chart = c } }

// WithGeneratorClock overrides the time source.
func WithGeneratorClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) { g.now = now }
}

// NewGenerator creates a generator.
func NewGenerator(feed api.Feed, recorder *Recorder, encoders *export.Registry, cfg Config, logger *slog.Logger, opts ...GeneratorOption) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Label == "" {
		cfg.Label = DefaultLabel
	}
	g := &Generator{
		feed:     feed,
		recorder: recorder,
		encoders: encoders,
		label:    cfg.Label,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate renders a report for the receipts matching req.Filter, stores it
// and records a snapshot. Concurrent generations get distinct sequence
// numbers; a failed step releases its number.
func (g *Generator) Generate(ctx context.Context, req Request) (Artifact, error) {
	enc, err := g.encoders.Get(req.Format)
	if err != nil {
		return Artifact{}, err
	}

	all, err := g.feed.FetchAll(ctx)
	if err != nil {
		return Artifact{}, fmt.Errorf("fetching receipts: %w", err)
	}

	matched := ledger.Filter(all, req.Filter)
	if len(matched) == 0 {
		return Artifact{}, api.ErrNoMatchingData
	}
	if req.Sort != nil {
		matched = ledger.Sort(matched, *req.Sort)
	}

	seq, err := g.recorder.Reserve(ctx)
	if err != nil {
		return Artifact{}, err
	}

	art, err := g.render(ctx, enc, Filename(g.label, len(matched), seq, enc.Extension()), matched)
	if err != nil {
		g.recorder.Release(context.WithoutCancel(ctx), seq)
		return Artifact{}, err
	}

	snap, err := g.recorder.Commit(ctx, seq, req.Format, req.Filter, len(matched))
	if err != nil {
		g.recorder.Release(context.WithoutCancel(ctx), seq)
		return Artifact{}, err
	}
	art.Snapshot = &snap

	g.afterGenerate(ctx, snap, art, matched)
	return art, nil
}

// Redownload regenerates a stored report against the current feed. It never
// records a snapshot and never advances the sequence.
func (g *Generator) Redownload(ctx context.Context, id string) (Artifact, error) {
	snap, err := g.recorder.Get(ctx, id)
	if err != nil {
		return Artifact{}, err
	}

	enc, err := g.encoders.Get(snap.Format)
	if err != nil {
		return Artifact{}, err
	}

	all, err := g.feed.FetchAll(ctx)
	if err != nil {
		return Artifact{}, fmt.Errorf("fetching receipts: %w", err)
	}

	matched := Replay(snap, all)
	if len(matched) == 0 {
		return Artifact{}, api.ErrReplayEmpty
	}
	if n := len(matched); n != snap.ItemCount {
		g.logger.Info("replayed report differs from original",
			"id", snap.ID,
			"original_items", snap.ItemCount,
			"current_items", n,
		)
	}

	return g.render(ctx, enc, CopyFilename(g.label, snap.ItemCount, snap.Sequence, enc.Extension()), matched)
}

// Preview returns the first n matching receipts and the total match count.
func (g *Generator) Preview(ctx context.Context, filter api.FilterCriteria, n int) ([]api.Receipt, int, error) {
	all, err := g.feed.FetchAll(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("fetching receipts: %w", err)
	}
	matched := ledger.Filter(all, filter)
	if n >= 0 && len(matched) > n {
		return matched[:n], len(matched), nil
	}
	return matched, len(matched), nil
}

func (g *Generator) render(ctx context.Context, enc export.Encoder, filename string, receipts []api.Receipt) (Artifact, error) {
	doc := export.NewDocument(filename, receipts, g.now())

	if g.chart != nil && enc.Format() == api.FormatPDF {
		stats := ledger.Summarize(receipts)
		png, err := g.chart.Render(TrendTitle, stats.TimeSeries)
		if err != nil {
			g.logger.Warn("rendering trend chart failed, continuing without it", "error", err)
		} else {
			doc.Chart = png
		}
	}

	data, err := enc.Encode(doc)
	if err != nil {
		return Artifact{}, fmt.Errorf("encoding %s report: %w", enc.Format(), err)
	}

	art := Artifact{
		Filename:    filename,
		ContentType: enc.ContentType(),
		Data:        data,
		Count:       len(receipts),
	}

	if g.sink != nil {
		loc, err := g.sink.Save(ctx, filename, data)
		if err != nil {
			return Artifact{}, fmt.Errorf("saving %s: %w", filename, err)
		}
		art.Location = loc
	}

	g.logger.Info("rendered report", "file", filename, "items", len(receipts), "bytes", len(data))
	return art, nil
}

// afterGenerate runs the best-effort side effects of a generation.
func (g *Generator) afterGenerate(ctx context.Context, snap api.ReportSnapshot, art Artifact, receipts []api.Receipt) {
	var errs []error
	if g.mirror != nil {
		if err := g.mirror.Mirror(ctx, art.Filename, export.Project(receipts)); err != nil {
			errs = append(errs, fmt.Errorf("mirroring rows: %w", err))
		}
	}
	if g.notifier != nil {
		if err := g.notifier.ReportGenerated(ctx, snap, art.Location); err != nil {
			errs = append(errs, fmt.Errorf("publishing event: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		g.logger.Warn("report post-processing failed", "id", snap.ID, "error", err)
	}
}
