// Package testutil provides testing utilities for the catalog sitemap generator.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/catalog-sitemap/pkg/catalog"
)

// MockResponse defines the behavior for a mock backend response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// ListingFunc decides the listing response for the n-th call (0-based).
type ListingFunc func(call, skip, limit int) MockResponse

// MockBackend is a configurable mock catalog backend for testing.
type MockBackend struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
	listing  ListingFunc

	// Tracking
	RequestCount   int
	ListingCalls   int
	ListingQueries []url.Values
	LastUserAgent  string
}

// NewMockBackend creates a new mock backend server.
// Without configuration the count endpoint answers 0 and the listing is empty.
func NewMockBackend() *MockBackend {
	mock := &MockBackend{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastUserAgent = r.Header.Get("User-Agent")
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		if r.URL.Path == "/games/sitemap/list" {
			mock.listingHandler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockBackend) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockBackend) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockBackend) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.ListingCalls = 0
	m.ListingQueries = nil
	m.LastUserAgent = ""
}

// SetHandler sets a custom handler for a specific path.
func (m *MockBackend) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockBackend) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, resp)
	})
}

// SetCount configures the count endpoint to answer n.
func (m *MockBackend) SetCount(n int) {
	m.SetResponse("/products/count", NewJSONResponse(strconv.Itoa(n)))
}

// SetListing configures the listing endpoint.
func (m *MockBackend) SetListing(fn ListingFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listing = fn
}

// SetListingBatches serves batches[i] on the i-th listing call and an empty
// array afterwards.
func (m *MockBackend) SetListingBatches(batches ...[]catalog.SlugRecord) {
	m.SetListing(func(call, skip, limit int) MockResponse {
		if call >= len(batches) {
			return NewJSONResponse("[]")
		}
		return NewRecordsResponse(batches[call])
	})
}

// SetListingCatalog serves a fixed catalog honoring skip and limit.
func (m *MockBackend) SetListingCatalog(records []catalog.SlugRecord) {
	m.SetListing(func(call, skip, limit int) MockResponse {
		if skip >= len(records) {
			return NewJSONResponse("[]")
		}
		end := skip + limit
		if end > len(records) {
			end = len(records)
		}
		return NewRecordsResponse(records[skip:end])
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockBackend) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetListingCalls returns the number of listing requests.
func (m *MockBackend) GetListingCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ListingCalls
}

// GetListingQueries returns a copy of the listing query strings in call order.
func (m *MockBackend) GetListingQueries() []url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]url.Values, len(m.ListingQueries))
	copy(out, m.ListingQueries)
	return out
}

func (m *MockBackend) listingHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	skip, _ := strconv.Atoi(q.Get("skip"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	m.mu.Lock()
	call := m.ListingCalls
	m.ListingCalls++
	m.ListingQueries = append(m.ListingQueries, q)
	fn := m.listing
	m.mu.Unlock()

	if fn == nil {
		writeResponse(w, NewJSONResponse("[]"))
		return
	}
	writeResponse(w, fn(call, skip, limit))
}

// defaultHandler answers the count endpoint with 0 and anything else with 404.
func (m *MockBackend) defaultHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/products/count" {
		writeResponse(w, NewJSONResponse("0"))
		return
	}
	writeResponse(w, MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"error": "not found"}`,
	})
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}

	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewJSONResponse creates a 200 OK JSON response.
func NewJSONResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewRecordsResponse creates a 200 OK listing response for records.
func NewRecordsResponse(records []catalog.SlugRecord) MockResponse {
	if records == nil {
		records = []catalog.SlugRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		panic(fmt.Sprintf("marshal records: %v", err))
	}
	return NewJSONResponse(string(data))
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response with Retry-After.
func NewRateLimitResponse(retryAfter int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
		Headers: map[string]string{
			"Retry-After":  strconv.Itoa(retryAfter),
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// MakeRecords builds n sequential records starting at offset start.
func MakeRecords(start, n int) []catalog.SlugRecord {
	records := make([]catalog.SlugRecord, 0, n)
	for i := start; i < start+n; i++ {
		records = append(records, catalog.SlugRecord{
			Slug:        fmt.Sprintf("game-%d", i),
			Title:       fmt.Sprintf("Game %d", i),
			ConsoleName: "PlayStation 5",
			Genre:       "Action",
		})
	}
	return records
}
