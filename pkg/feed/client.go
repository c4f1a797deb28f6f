// Package feed reads receipts from the remote receipt feed.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/ArionMiles/ledgerview/pkg/api"
)

// DefaultTimeout bounds every feed request.
const DefaultTimeout = 15 * time.Second

// maxBodySize caps how much of a response body is read.
const maxBodySize = 32 << 20

// Config holds configuration for the feed client.
type Config struct {
	// BaseURL is the API root, e.g. http://localhost:3000/api.
	BaseURL string
	// Timeout bounds each request. Defaults to DefaultTimeout.
	Timeout time.Duration
	// Token is an optional bearer token sent with every request.
	Token string
	// HTTPClient overrides the transport. Mostly useful in tests.
	HTTPClient *http.Client
}

// Client fetches receipts over HTTP. It never caches and never retries.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	now        func() time.Time
	logger     *slog.Logger
}

var _ api.Feed = (*Client)(nil)

// envelope is the response wrapper used by every feed endpoint.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// New creates a feed client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.BaseURL == "" {
		return nil, errors.New("feed base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parsing feed base URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.Token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.Token,
			TokenType:   "Bearer",
		}))
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		httpClient: httpClient,
		now:        time.Now,
		logger:     logger,
	}, nil
}

// FetchAll returns every receipt in the feed, normalized, in feed order.
func (c *Client) FetchAll(ctx context.Context) ([]api.Receipt, error) {
	q := url.Values{}
	q.Set("t", strconv.FormatInt(c.now().UnixMilli(), 10))

	data, err := c.get(ctx, "/receipts?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var raw []RawReceipt
	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: decoding receipts: %w", api.ErrFeedUnavailable, err)
		}
	}

	receipts := make([]api.Receipt, 0, len(raw))
	for _, r := range raw {
		receipts = append(receipts, Normalize(r))
	}

	c.logger.Debug("fetched receipts", "count", len(receipts))
	return receipts, nil
}

// FetchOne returns a single receipt by id.
func (c *Client) FetchOne(ctx context.Context, id string) (api.Receipt, error) {
	if strings.TrimSpace(id) == "" {
		return api.Receipt{}, fmt.Errorf("%w: empty id", api.ErrNotFound)
	}

	data, err := c.get(ctx, "/receipts/"+url.PathEscape(id))
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusNotFound {
		return api.Receipt{}, fmt.Errorf("%w: %s", api.ErrNotFound, id)
	}
	if err != nil {
		return api.Receipt{}, err
	}
	if len(data) == 0 || string(data) == "null" {
		return api.Receipt{}, fmt.Errorf("%w: %s", api.ErrNotFound, id)
	}

	var raw RawReceipt
	if err := json.Unmarshal(data, &raw); err != nil {
		return api.Receipt{}, fmt.Errorf("%w: decoding receipt %s: %w", api.ErrFeedUnavailable, id, err)
	}

	return Normalize(raw), nil
}

// statusError is a non-2xx answer from the feed.
type statusError struct {
	code int
	msg  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%v: %s", api.ErrFeedUnavailable, e.msg)
}

func (e *statusError) Unwrap() error { return api.ErrFeedUnavailable }

// get performs a GET against the feed and returns the envelope payload.
// Every failure wraps api.ErrFeedUnavailable.
func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", api.ErrFeedUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("feed request failed", "path", path, "error", err)
		return nil, fmt.Errorf("%w: %w", api.ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", api.ErrFeedUnavailable, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := resp.Status
		if decodeErr == nil && env.Error != "" {
			msg = env.Error
		}
		c.logger.Warn("feed returned error status", "path", path, "status", resp.StatusCode)
		return nil, &statusError{code: resp.StatusCode, msg: msg}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: decoding envelope: %w", api.ErrFeedUnavailable, decodeErr)
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = "feed reported failure"
		}
		return nil, fmt.Errorf("%w: %s", api.ErrFeedUnavailable, msg)
	}

	return env.Data, nil
}
