package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/ledgerview/pkg/api"
	"github.com/ArionMiles/ledgerview/pkg/config"
	"github.com/ArionMiles/ledgerview/pkg/feed"
	"github.com/ArionMiles/ledgerview/pkg/orchestrator"
	"github.com/ArionMiles/ledgerview/pkg/report"
)

var now = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

// switchFeed serves receipts until broken is set.
type switchFeed struct {
	receipts []api.Receipt
	broken   bool
}

func (f *switchFeed) FetchAll(ctx context.Context) ([]api.Receipt, error) {
	if f.broken {
		return nil, fmt.Errorf("%w: connection refused", api.ErrFeedUnavailable)
	}
	return feed.NewStatic(f.receipts).FetchAll(ctx)
}

func (f *switchFeed) FetchOne(ctx context.Context, id string) (api.Receipt, error) {
	if f.broken {
		return api.Receipt{}, fmt.Errorf("%w: connection refused", api.ErrFeedUnavailable)
	}
	return feed.NewStatic(f.receipts).FetchOne(ctx, id)
}

func receipt(id, vendor string, total int64, status api.Status, category string, date time.Time) api.Receipt {
	return api.Receipt{
		ID:       id,
		Vendor:   vendor,
		Date:     date,
		Total:    decimal.NewFromInt(total),
		Category: category,
		Status:   status,
		Blockchain: &api.Blockchain{
			TxHash: "0xabcdef0123456789",
		},
	}
}

func fixture() []api.Receipt {
	return []api.Receipt{
		receipt("R-1", "Garuda", 1500000, api.StatusVerified, "Travel", time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)),
		receipt("R-2", "Kopi Kenangan", 45000, api.StatusPending, "Meals", time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)),
		receipt("R-3", "Traveloka", 800000, api.StatusVerified, "Travel", time.Date(2023, 11, 2, 0, 0, 0, 0, time.UTC)),
	}
}

type testEnv struct {
	feed *switchFeed
	svc  *orchestrator.Service
	http http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.HistoryBackend = "memory"
	cfg.ReportChart = false

	f := &switchFeed{receipts: fixture()}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := orchestrator.New(context.Background(), &cfg, logger,
		orchestrator.WithFeed(f),
		orchestrator.WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	return &testEnv{feed: f, svc: svc, http: FromService(svc, logger).Handler()}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.http.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/dashboard?range=year", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[struct {
		Range string             `json:"range"`
		Stats api.AggregateStats `json:"stats"`
	}](t, rec)
	assert.Equal(t, "year", body.Range)
	assert.Equal(t, 2, body.Stats.TotalCount)
	assert.Equal(t, 1, body.Stats.CountsByStatus.Pending)
}

func TestTrendChart(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/dashboard/trend.png", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
}

func TestReceipts(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/receipts?category=Travel&sort=amount-desc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[orchestrator.LedgerView](t, rec)
	require.Len(t, view.Items, 2)
	assert.Equal(t, "R-1", view.Items[0].ID)
	assert.Equal(t, "R-3", view.Items[1].ID)
	assert.Contains(t, view.Categories, "Meals")

	rec = env.do(t, http.MethodGet, "/api/receipts", nil)
	view = decode[orchestrator.LedgerView](t, rec)
	require.Len(t, view.Items, 3)
	assert.Equal(t, "R-1", view.Items[0].ID, "newest first by default")

	rec = env.do(t, http.MethodGet, "/api/receipts?q=nothing", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"items":[]`)

	rec = env.do(t, http.MethodGet, "/api/receipts?start=2024-05-01&end=2024-05-31", nil)
	view = decode[orchestrator.LedgerView](t, rec)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "R-2", view.Items[0].ID)

	rec = env.do(t, http.MethodGet, "/api/receipts?start=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReceipt(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/receipts/R-3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Traveloka", decode[api.Receipt](t, rec).Vendor)

	rec = env.do(t, http.MethodGet, "/api/receipts/R-404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFeedUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.feed.broken = true

	for _, target := range []string{"/api/dashboard", "/api/receipts", "/api/receipts/R-1"} {
		rec := env.do(t, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadGateway, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "receipt feed unavailable", target)
	}
}

func TestGenerateReport(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/reports", map[string]any{
		"format":     "csv",
		"categories": []string{"Travel"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="AuditReport_2Items_1.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "2", rec.Header().Get("X-Report-Items"))
	assert.NotEmpty(t, rec.Header().Get("X-Report-Id"))
	assert.Contains(t, rec.Body.String(), "Garuda")
	assert.NotContains(t, rec.Body.String(), "Kopi Kenangan")

	rec = env.do(t, http.MethodPost, "/api/reports", map[string]any{
		"format":    "json",
		"dateStart": "2025-01-01",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/reports", map[string]any{"format": "docx"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/reports", map[string]any{"categories": []string{"Travel"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/reports", map[string]any{"format": "csv", "dateEnd": "June"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	seq, err := env.svc.Store.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, seq, "only the successful generation advances the sequence")
}

func TestPreview(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/reports/preview?categories=Travel&categories=Meals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Items []api.Receipt `json:"items"`
		Total int           `json:"total"`
	}](t, rec)
	assert.Equal(t, 3, body.Total)
	assert.Len(t, body.Items, PreviewRows)
}

func generate(t *testing.T, env *testEnv, n int) {
	t.Helper()
	for range n {
		rec := env.do(t, http.MethodPost, "/api/reports", map[string]any{"format": "json"})
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestHistory(t *testing.T) {
	env := newTestEnv(t)
	generate(t, env, report.DisplayLimit+2)

	rec := env.do(t, http.MethodGet, "/api/reports/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[report.Page](t, rec)
	assert.Len(t, page.Items, report.DisplayLimit)
	assert.True(t, page.More)
	assert.Equal(t, report.DisplayLimit+2, page.Total)
	assert.Equal(t, report.DisplayLimit+2, page.Items[0].Sequence, "most recent first")

	rec = env.do(t, http.MethodGet, "/api/reports/history?all=true", nil)
	page = decode[report.Page](t, rec)
	assert.Len(t, page.Items, report.DisplayLimit+2)
	assert.False(t, page.More)
}

func TestClearHistory(t *testing.T) {
	env := newTestEnv(t)
	generate(t, env, 2)

	rec := env.do(t, http.MethodDelete, "/api/reports/history", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/reports/history?confirm=true", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/reports/history", nil)
	page := decode[report.Page](t, rec)
	assert.Empty(t, page.Items)

	// The sequence survives a clear.
	rec = env.do(t, http.MethodPost, "/api/reports", map[string]any{"format": "csv"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "_3.csv")
}

func TestRedownload(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/reports", map[string]any{
		"format":     "csv",
		"categories": []string{"Meals"},
		"status":     "pending",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	id := rec.Header().Get("X-Report-Id")

	rec = env.do(t, http.MethodPost, "/api/reports/"+id+"/redownload", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasSuffix(rec.Header().Get("Content-Disposition"), `_Copy.csv"`))
	assert.Empty(t, rec.Header().Get("X-Report-Id"))

	env.feed.receipts = env.feed.receipts[:1]
	rec = env.do(t, http.MethodPost, "/api/reports/"+id+"/redownload", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/reports/unknown/redownload", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	seq, err := env.svc.Store.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, seq, "re-downloads never advance the sequence")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("fetching: %w", api.ErrFeedUnavailable), http.StatusBadGateway},
		{api.ErrNotFound, http.StatusNotFound},
		{api.ErrSnapshotNotFound, http.StatusNotFound},
		{api.ErrNoMatchingData, http.StatusUnprocessableEntity},
		{api.ErrReplayEmpty, http.StatusConflict},
		{api.ErrClearNotConfirmed, http.StatusBadRequest},
		{api.ErrUnknownFormat, http.StatusBadRequest},
		{badRequest{msg: "bad"}, http.StatusBadRequest},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
