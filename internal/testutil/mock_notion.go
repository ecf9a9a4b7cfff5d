// Package testutil provides testing utilities for the Notion page client.
package testutil

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// MockResponse defines the behavior of a mock Notion API endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// MockNotion is a configurable mock Notion v3 API server for testing.
type MockNotion struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	// Tracking
	RequestCount int
	LastToken    string
	LastBody     string
}

// NewMockNotion creates a new mock Notion API server.
func NewMockNotion() *MockNotion {
	mock := &MockNotion{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		mock.mu.Lock()
		mock.RequestCount++
		mock.LastBody = string(body)
		if c, err := r.Cookie("token_v2"); err == nil {
			mock.LastToken = c.Value
		}
		mock.mu.Unlock()

		endpoint := strings.TrimPrefix(r.URL.Path, "/api/v3/")

		mock.mu.RLock()
		handler, exists := mock.handlers[endpoint]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockNotion) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockNotion) Close() {
	m.server.Close()
}

// Reset clears all tracking state.
func (m *MockNotion) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastToken = ""
	m.LastBody = ""
}

// SetHandler sets a custom handler for an endpoint name
// (e.g. "loadPageChunk").
func (m *MockNotion) SetHandler(endpoint string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[endpoint] = handler
}

// SetResponse configures a fixed response for an endpoint.
func (m *MockNotion) SetResponse(endpoint string, resp MockResponse) {
	m.SetHandler(endpoint, func(w http.ResponseWriter, r *http.Request) {
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockNotion) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// defaultHandler returns an empty record map for unconfigured endpoints.
func (m *MockNotion) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"recordMap":{"block":{}}}`))
}

// BlockJSON renders one record-map block entry. Content and viewIDs may be
// empty.
func BlockJSON(id, blockType string, content, viewIDs []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `%q:{"role":"reader","value":{"id":%q,"type":%q`, id, id, blockType)
	if len(content) > 0 {
		sb.WriteString(`,"content":[`)
		for i, c := range content {
			if i > 0 {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, "%q", c)
		}
		sb.WriteString("]")
	}
	if len(viewIDs) > 0 {
		sb.WriteString(`,"view_ids":[`)
		for i, v := range viewIDs {
			if i > 0 {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, "%q", v)
		}
		sb.WriteString("]")
	}
	sb.WriteString("}}")
	return sb.String()
}

// RecordMapJSON assembles a {"recordMap": ...} envelope from rendered record
// tables. Empty tables are omitted.
func RecordMapJSON(blocks, collections, views []string) string {
	var tables []string
	if len(blocks) > 0 {
		tables = append(tables, `"block":{`+strings.Join(blocks, ",")+`}`)
	}
	if len(collections) > 0 {
		tables = append(tables, `"collection":{`+strings.Join(collections, ",")+`}`)
	}
	if len(views) > 0 {
		tables = append(tables, `"collection_view":{`+strings.Join(views, ",")+`}`)
	}
	return `{"recordMap":{` + strings.Join(tables, ",") + `}}`
}

// CollectionJSON renders one record-map collection entry.
func CollectionJSON(id, title string) string {
	return fmt.Sprintf(`%q:{"role":"reader","value":{"id":%q,"name":[[%q]],"schema":{"title":{"name":"Name","type":"title"}}}}`, id, id, title)
}

// ViewJSON renders one record-map collection_view entry.
func ViewJSON(id, viewType string) string {
	return fmt.Sprintf(`%q:{"role":"reader","value":{"id":%q,"type":%q,"name":"Default view"}}`, id, id, viewType)
}
