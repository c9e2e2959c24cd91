// Package client provides the catalog backend HTTP client used by sitemap
// generation: single-attempt requests with bounded timeouts, error
// classification, and an optional shared cooldown gate.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/catalog-sitemap/pkg/catalog"
	"github.com/Sternrassler/catalog-sitemap/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Backend endpoints consumed by the sitemap generator.
const (
	CountEndpoint   = "/products/count"
	ListingEndpoint = "/games/sitemap/list"
)

// maxBodyBytes bounds how much of a backend response is read.
const maxBodyBytes = 16 << 20

// Prometheus metrics for backend client operations.
var (
	backendRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitemap_backend_requests_total",
		Help: "Total catalog backend requests by endpoint and status",
	}, []string{"endpoint", "status"})

	backendRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sitemap_backend_request_duration_seconds",
		Help:    "Catalog backend request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 8, 10},
	}, []string{"endpoint"})

	backendErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitemap_backend_errors_total",
		Help: "Total catalog backend errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of backend failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassMalformed represents 2xx responses with an undecodable payload.
	ErrorClassMalformed ErrorClass = "malformed"

	// ErrorClassCooldown represents requests skipped by the cooldown gate.
	ErrorClassCooldown ErrorClass = "cooldown"
)

// Client talks to the catalog backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cooldown   *ratelimit.Tracker
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the catalog backend, e.g. "https://api.example.com/v1"
	BaseURL string

	// User-Agent header sent with every request
	UserAgent string

	// Timeout bounds every single backend call
	Timeout time.Duration

	// Redis enables the shared cooldown gate (optional)
	Redis *redis.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, userAgent string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: userAgent,
		Timeout:   8 * time.Second,
	}
}

// New creates a new backend client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	logger := log.With().Str("component", "backend-client").Logger()

	var cooldown *ratelimit.Tracker
	if cfg.Redis != nil {
		cooldown = ratelimit.NewTracker(cfg.Redis, logger)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		cooldown: cooldown,
		config:   cfg,
		logger:   logger,
	}, nil
}

// Do performs a single backend request. Any non-2xx status is returned as a
// *BackendError with the response body already closed.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path

	startTime := time.Now()
	defer func() {
		backendRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	if c.cooldown != nil {
		allowed, err := c.cooldown.ShouldAllowRequest(ctx)
		if err != nil {
			// Gate state unavailable: the backend call itself is still bounded.
			c.logger.Warn().Err(err).Msg("Cooldown check failed")
		} else if !allowed {
			backendRequestsTotal.WithLabelValues(endpoint, "cooldown").Inc()
			backendErrorsTotal.WithLabelValues(string(ErrorClassCooldown)).Inc()
			return nil, &BackendError{
				Endpoint:   endpoint,
				ErrorClass: ErrorClassCooldown,
				Message:    "request skipped",
				Err:        ErrBackendCoolingDown,
			}
		}
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("query", req.URL.RawQuery).
		Msg("Executing backend request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errClass := c.classifyError(nil, err)
		backendErrorsTotal.WithLabelValues(string(errClass)).Inc()
		backendRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Backend request failed")
		return nil, &BackendError{
			Endpoint:   endpoint,
			ErrorClass: errClass,
			Message:    "request failed",
			Err:        err,
		}
	}

	if c.cooldown != nil {
		if err := c.cooldown.UpdateFromResponse(ctx, resp.StatusCode, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update cooldown from response")
		}
	}

	backendRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errClass := c.classifyError(resp, nil)
		backendErrorsTotal.WithLabelValues(string(errClass)).Inc()
		resp.Body.Close()

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Backend request error")

		return nil, &BackendError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    resp.Status,
		}
	}

	return resp, nil
}

// classifyError categorizes an error for observability and handling.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ErrorClassClient
	case resp.StatusCode >= 500:
		return ErrorClassServer
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		// Unexpected 1xx/3xx from an API that should answer 200.
		return ErrorClassServer
	default:
		return ""
	}
}

// get performs a bounded GET against endpoint and returns the response body.
func (c *Client) get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	target := c.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		backendErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &BackendError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read body",
			Err:        err,
		}
	}

	return body, nil
}

// FetchCount returns the number of indexable catalog entries.
func (c *Client) FetchCount(ctx context.Context) (int, error) {
	body, err := c.get(ctx, CountEndpoint, nil)
	if err != nil {
		return 0, err
	}

	count, err := parseCount(body)
	if err != nil {
		backendErrorsTotal.WithLabelValues(string(ErrorClassMalformed)).Inc()
		return 0, &BackendError{
			Endpoint:   CountEndpoint,
			StatusCode: http.StatusOK,
			ErrorClass: ErrorClassMalformed,
			Message:    "decode count",
			Err:        err,
		}
	}

	c.logger.Debug().Int("count", count).Msg("Fetched catalog count")
	return count, nil
}

// FetchSlugs returns one batch of the catalog listing.
func (c *Client) FetchSlugs(ctx context.Context, cursor catalog.FetchCursor) ([]catalog.SlugRecord, error) {
	if err := cursor.Validate(); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(cursor.Limit))
	query.Set("skip", strconv.Itoa(cursor.Skip))

	body, err := c.get(ctx, ListingEndpoint, query)
	if err != nil {
		return nil, err
	}

	var batch []catalog.SlugRecord
	if err := json.Unmarshal(body, &batch); err != nil {
		return nil, malformedListing(fmt.Errorf("%w: %v", ErrMalformedResponse, err))
	}
	// null decodes without error but is not an array
	if batch == nil {
		return nil, malformedListing(fmt.Errorf("%w: expected array, got null", ErrMalformedResponse))
	}

	return batch, nil
}

func malformedListing(err error) *BackendError {
	backendErrorsTotal.WithLabelValues(string(ErrorClassMalformed)).Inc()
	return &BackendError{
		Endpoint:   ListingEndpoint,
		StatusCode: http.StatusOK,
		ErrorClass: ErrorClassMalformed,
		Message:    "decode listing",
		Err:        err,
	}
}

// parseCount accepts either a bare JSON integer or {"count": n}.
func parseCount(body []byte) (int, error) {
	var n int64
	if err := json.Unmarshal(body, &n); err != nil {
		var wrapped struct {
			Count *int64 `json:"count"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil || wrapped.Count == nil {
			return 0, fmt.Errorf("%w: expected integer or {\"count\": n}", ErrMalformedResponse)
		}
		n = *wrapped.Count
	}

	if n < 0 {
		return 0, fmt.Errorf("%w: negative count %d", ErrMalformedResponse, n)
	}

	return int(n), nil
}

// Close closes the client and releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
