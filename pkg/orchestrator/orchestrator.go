// Package orchestrator wires the feed, history store, report generator and
// optional side effects together from a config.Config.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ArionMiles/ledgerview/pkg/api"
	"github.com/ArionMiles/ledgerview/pkg/artifact"
	"github.com/ArionMiles/ledgerview/pkg/chart"
	"github.com/ArionMiles/ledgerview/pkg/client"
	"github.com/ArionMiles/ledgerview/pkg/config"
	"github.com/ArionMiles/ledgerview/pkg/export"
	"github.com/ArionMiles/ledgerview/pkg/feed"
	"github.com/ArionMiles/ledgerview/pkg/history"
	"github.com/ArionMiles/ledgerview/pkg/history/postgres"
	"github.com/ArionMiles/ledgerview/pkg/ledger"
	"github.com/ArionMiles/ledgerview/pkg/logging"
	"github.com/ArionMiles/ledgerview/pkg/notify"
	"github.com/ArionMiles/ledgerview/pkg/report"
	"github.com/ArionMiles/ledgerview/pkg/writer/sheets"
)

// Service is the assembled application.
type Service struct {
	Feed      api.Feed
	Store     api.Store
	Recorder  *report.Recorder
	Generator *report.Generator

	chart   *chart.Renderer
	closers []io.Closer
	now     func() time.Time
	logger  *slog.Logger
}

type options struct {
	feed        api.Feed
	store       api.Store
	sheetsHTTP  *http.Client
	now         func() time.Time
	recorderOps []report.RecorderOption
}

// Option customizes New.
type Option func(*options)

// WithFeed replaces the configured feed.
func WithFeed(f api.Feed) Option { return func(o *options) { o.feed = f } }

// WithStore replaces the configured history backend. The service closes it.
func WithStore(s api.Store) Option { return func(o *options) { o.store = s } }

// WithSheetsHTTPClient skips the OAuth token lookup for the Sheets mirror.
func WithSheetsHTTPClient(c *http.Client) Option { return func(o *options) { o.sheetsHTTP = c } }

// WithClock overrides the time source for dashboards and snapshots.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
		o.recorderOps = append(o.recorderOps, report.WithClock(now))
	}
}

// New builds a Service. Every component opened before a failure is closed.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (svc *Service, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Service{
		chart:  chart.New(chart.DefaultConfig()),
		now:    o.now,
		logger: logger,
	}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	s.Feed = o.feed
	if s.Feed == nil {
		if s.Feed, err = NewFeed(cfg, logging.Component(logger, "feed")); err != nil {
			return nil, err
		}
	}

	s.Store = o.store
	if s.Store == nil {
		s.Store, err = history.Open(ctx, HistoryConfig(cfg), logging.Component(logger, "history"))
		if err != nil {
			return nil, fmt.Errorf("opening report history: %w", err)
		}
	}
	s.closers = append(s.closers, s.Store)

	s.Recorder = report.NewRecorder(s.Store, s.Store, logging.Component(logger, "recorder"), o.recorderOps...)

	genOpts := []report.GeneratorOption{report.WithGeneratorClock(o.now)}

	if cfg.ReportChart {
		genOpts = append(genOpts, report.WithChart(s.chart))
	}

	if sink := strings.ToLower(cfg.ArtifactSink); sink != "" && sink != "none" {
		artifacts, err := artifact.Open(ArtifactConfig(cfg), logging.Component(logger, "artifact"))
		if err != nil {
			return nil, fmt.Errorf("opening artifact sink: %w", err)
		}
		genOpts = append(genOpts, report.WithSink(artifacts))
	}

	if cfg.AMQPURL != "" {
		pub, err := notify.New(notify.Config{
			URL:        cfg.AMQPURL,
			Exchange:   cfg.AMQPExchange,
			RoutingKey: cfg.AMQPRoutingKey,
		}, logging.Component(logger, "notify"))
		if err != nil {
			return nil, fmt.Errorf("connecting report notifier: %w", err)
		}
		s.closers = append(s.closers, pub)
		genOpts = append(genOpts, report.WithNotifier(pub))
	}

	if cfg.SheetsEnabled() {
		mirror, err := newSheetsMirror(ctx, cfg, o.sheetsHTTP, logging.Component(logger, "sheets"))
		if err != nil {
			return nil, err
		}
		genOpts = append(genOpts, report.WithMirror(mirror))
	}

	s.Generator = report.NewGenerator(
		s.Feed,
		s.Recorder,
		export.DefaultRegistry(),
		report.Config{Label: cfg.ReportLabel},
		logging.Component(logger, "generator"),
		genOpts...,
	)
	return s, nil
}

// NewFeed returns the file-backed feed when FEED_FILE is set and the HTTP
// client otherwise.
func NewFeed(cfg *config.Config, logger *slog.Logger) (api.Feed, error) {
	if cfg.FeedFile != "" {
		f, err := feed.LoadFile(cfg.FeedFile)
		if err != nil {
			return nil, err
		}
		logger.Info("serving receipts from file", "path", cfg.FeedFile)
		return f, nil
	}
	c, err := feed.New(feed.Config{
		BaseURL: cfg.FeedBaseURL,
		Timeout: cfg.FeedTimeout,
		Token:   cfg.FeedToken,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating feed client: %w", err)
	}
	return c, nil
}

// HistoryConfig maps the application config onto the history backends.
func HistoryConfig(cfg *config.Config) history.Config {
	return history.Config{
		Backend:    cfg.HistoryBackend,
		JSONPath:   cfg.HistoryPath,
		SQLitePath: cfg.SQLiteDBPath,
		Postgres: postgres.Config{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			Database: cfg.PostgresDatabase,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPassword,
			SSLMode:  cfg.PostgresSSLMode,
			DSN:      cfg.PostgresDSN,
		},
	}
}

// ArtifactConfig maps the application config onto the artifact sinks.
func ArtifactConfig(cfg *config.Config) artifact.Config {
	return artifact.Config{
		Kind: cfg.ArtifactSink,
		Dir:  cfg.ExportDir,
		Blob: artifact.BlobConfig{
			ServiceURL: cfg.AzBlobServiceURL,
			Container:  cfg.AzBlobContainer,
		},
	}
}

func newSheetsMirror(ctx context.Context, cfg *config.Config, httpClient *http.Client, logger *slog.Logger) (*sheets.Writer, error) {
	if httpClient == nil {
		var err error
		httpClient, err = client.New(ctx, client.Config{
			SecretFile: cfg.GoogleClientSecretFile,
			TokenFile:  cfg.GoogleTokenFile,
		}, sheets.Scopes...)
		if err != nil {
			return nil, fmt.Errorf("creating Google client: %w", err)
		}
	}
	w, err := sheets.New(ctx, httpClient, sheets.Config{
		SheetTitle: cfg.GSheetsTitle,
		SheetID:    cfg.GSheetsID,
		SheetName:  cfg.GSheetsName,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating sheets mirror: %w", err)
	}
	return w, nil
}

// Dashboard aggregates the receipts inside r.
func (s *Service) Dashboard(ctx context.Context, r ledger.TimeRange) (ledger.Dashboard, error) {
	all, err := s.Feed.FetchAll(ctx)
	if err != nil {
		return ledger.Dashboard{}, err
	}
	return ledger.BuildDashboard(all, r, s.now()), nil
}

// TrendChart renders the dashboard time series of r as a PNG.
func (s *Service) TrendChart(ctx context.Context, r ledger.TimeRange) ([]byte, error) {
	d, err := s.Dashboard(ctx, r)
	if err != nil {
		return nil, err
	}
	return s.chart.Render(report.TrendTitle, d.Stats.TimeSeries)
}

// LedgerQuery selects and orders the ledger view.
type LedgerQuery struct {
	Filter api.FilterCriteria
	Sort   api.SortSpec
}

// LedgerView is the filtered, sorted receipt list with its summary.
type LedgerView struct {
	Items      []api.Receipt      `json:"items"`
	Stats      api.AggregateStats `json:"stats"`
	Categories []string           `json:"categories"`
}

// Ledger filters and sorts the current feed. Categories lists every
// category of the unfiltered feed.
func (s *Service) Ledger(ctx context.Context, q LedgerQuery) (LedgerView, error) {
	all, err := s.Feed.FetchAll(ctx)
	if err != nil {
		return LedgerView{}, err
	}
	items := ledger.Sort(ledger.Filter(all, q.Filter), q.Sort)
	if items == nil {
		items = []api.Receipt{}
	}
	return LedgerView{
		Items:      items,
		Stats:      ledger.Summarize(items),
		Categories: ledger.Categories(all),
	}, nil
}

// Receipt returns one receipt from the feed.
func (s *Service) Receipt(ctx context.Context, id string) (api.Receipt, error) {
	return s.Feed.FetchOne(ctx, id)
}

// Close releases the history store and the notifier connection.
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
