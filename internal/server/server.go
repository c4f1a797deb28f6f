// Package server exposes the ledger and report operations over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ArionMiles/ledgerview/pkg/api"
	"github.com/ArionMiles/ledgerview/pkg/chart"
	"github.com/ArionMiles/ledgerview/pkg/ledger"
	"github.com/ArionMiles/ledgerview/pkg/orchestrator"
	"github.com/ArionMiles/ledgerview/pkg/report"
)

// PreviewRows is how many rows the report preview returns.
const PreviewRows = 3

// dateLayout is the format of date query parameters and report bounds.
const dateLayout = time.DateOnly

// Ledger serves the read-only receipt views.
type Ledger interface {
	Dashboard(ctx context.Context, r ledger.TimeRange) (ledger.Dashboard, error)
	TrendChart(ctx context.Context, r ledger.TimeRange) ([]byte, error)
	Ledger(ctx context.Context, q orchestrator.LedgerQuery) (orchestrator.LedgerView, error)
	Receipt(ctx context.Context, id string) (api.Receipt, error)
}

// Reports renders report files.
type Reports interface {
	Generate(ctx context.Context, req report.Request) (report.Artifact, error)
	Redownload(ctx context.Context, id string) (report.Artifact, error)
	Preview(ctx context.Context, filter api.FilterCriteria, n int) ([]api.Receipt, int, error)
}

// History lists and clears report snapshots.
type History interface {
	Recent(ctx context.Context, limit int) (report.Page, error)
	Clear(ctx context.Context, confirmed bool) error
}

// Server routes HTTP requests to the ledger and report services.
type Server struct {
	ledger  Ledger
	reports Reports
	history History
	logger  *slog.Logger
	engine  *gin.Engine
}

// New creates a server and registers its routes.
func New(l Ledger, reports Reports, history History, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		ledger:  l,
		reports: reports,
		history: history,
		logger:  logger,
		engine:  gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger)
	s.routes()
	return s
}

// FromService creates a server over an assembled service.
func FromService(svc *orchestrator.Service, logger *slog.Logger) *Server {
	return New(svc, svc.Generator, svc.Recorder, logger)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	r := s.engine.Group("/api")

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/dashboard", s.handleDashboard)
	r.GET("/dashboard/trend.png", s.handleTrend)

	r.GET("/receipts", s.handleReceipts)
	r.GET("/receipts/:id", s.handleReceipt)

	r.POST("/reports", s.handleGenerate)
	r.GET("/reports/preview", s.handlePreview)
	r.GET("/reports/history", s.handleHistory)
	r.DELETE("/reports/history", s.handleClearHistory)
	r.POST("/reports/:id/redownload", s.handleRedownload)
}

func (s *Server) requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug("http request",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"duration", time.Since(start),
	)
}

func (s *Server) handleDashboard(c *gin.Context) {
	d, err := s.ledger.Dashboard(c.Request.Context(), ledger.ParseTimeRange(c.Query("range")))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) handleTrend(c *gin.Context) {
	png, err := s.ledger.TrendChart(c.Request.Context(), ledger.ParseTimeRange(c.Query("range")))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (s *Server) handleReceipts(c *gin.Context) {
	filter, err := filterFromQuery(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	sort := ledger.DefaultSort
	if token := c.Query("sort"); token != "" {
		sort = api.ParseSortSpec(token)
	}

	view, err := s.ledger.Ledger(c.Request.Context(), orchestrator.LedgerQuery{Filter: filter, Sort: sort})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleReceipt(c *gin.Context) {
	r, err := s.ledger.Receipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// reportRequest is the body of POST /api/reports.
type reportRequest struct {
	Format     string   `json:"format" binding:"required"`
	DateStart  string   `json:"dateStart"`
	DateEnd    string   `json:"dateEnd"`
	Categories []string `json:"categories"`
	Status     string   `json:"status"`
	Search     string   `json:"search"`
	Sort       string   `json:"sort"`
}

func (r reportRequest) toRequest() (report.Request, error) {
	start, err := parseDate("dateStart", r.DateStart)
	if err != nil {
		return report.Request{}, err
	}
	end, err := parseDate("dateEnd", r.DateEnd)
	if err != nil {
		return report.Request{}, err
	}
	req := report.Request{
		Format: api.ParseFormat(r.Format),
		Filter: api.FilterCriteria{
			Status:     r.Status,
			Categories: r.Categories,
			Search:     r.Search,
			DateStart:  start,
			DateEnd:    end,
		},
	}
	if r.Sort != "" {
		spec := api.ParseSortSpec(r.Sort)
		req.Sort = &spec
	}
	return req, nil
}

func (s *Server) handleGenerate(c *gin.Context) {
	var body reportRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report request: " + err.Error()})
		return
	}
	req, err := body.toRequest()
	if err != nil {
		s.fail(c, err)
		return
	}

	art, err := s.reports.Generate(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	if art.Snapshot != nil {
		c.Header("X-Report-Id", art.Snapshot.ID)
	}
	sendArtifact(c, art)
}

func (s *Server) handlePreview(c *gin.Context) {
	filter, err := filterFromQuery(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if cats := c.QueryArray("categories"); len(cats) > 0 {
		filter.Categories = cats
	}

	rows, total, err := s.reports.Preview(c.Request.Context(), filter, PreviewRows)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rows, "total": total})
}

func (s *Server) handleHistory(c *gin.Context) {
	limit := report.DisplayLimit
	if all, _ := strconv.ParseBool(c.Query("all")); all {
		limit = 0
	}
	page, err := s.history.Recent(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) handleClearHistory(c *gin.Context) {
	confirmed, _ := strconv.ParseBool(c.Query("confirm"))
	if err := s.history.Clear(c.Request.Context(), confirmed); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRedownload(c *gin.Context) {
	art, err := s.reports.Redownload(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	sendArtifact(c, art)
}

func sendArtifact(c *gin.Context, art report.Artifact) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Filename))
	c.Header("X-Report-Items", strconv.Itoa(art.Count))
	if art.Location != "" {
		c.Header("X-Report-Location", art.Location)
	}
	c.Data(http.StatusOK, art.ContentType, art.Data)
}

// badRequest marks errors caused by malformed input.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func filterFromQuery(c *gin.Context) (api.FilterCriteria, error) {
	start, err := parseDate("start", c.Query("start"))
	if err != nil {
		return api.FilterCriteria{}, err
	}
	end, err := parseDate("end", c.Query("end"))
	if err != nil {
		return api.FilterCriteria{}, err
	}
	return api.FilterCriteria{
		Status:    c.Query("status"),
		Category:  c.Query("category"),
		Search:    c.Query("q"),
		DateStart: start,
		DateEnd:   end,
	}, nil
}

func parseDate(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, badRequest{msg: fmt.Sprintf("invalid %s %q: expected YYYY-MM-DD", field, value)}
	}
	return &t, nil
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	var br badRequest
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest
	case errors.Is(err, api.ErrFeedUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, api.ErrNotFound), errors.Is(err, api.ErrSnapshotNotFound), errors.Is(err, chart.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, api.ErrNoMatchingData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, api.ErrReplayEmpty):
		return http.StatusConflict
	case errors.Is(err, api.ErrClearNotConfirmed), errors.Is(err, api.ErrUnknownFormat):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Request.URL.Path, "status", status, "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
