package notionapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for Notion API operations.
var (
	notionRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notion_api_requests_total",
		Help: "Total Notion API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	notionRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "notion_api_request_duration_seconds",
		Help:    "Notion API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	notionErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notion_api_errors_total",
		Help: "Total Notion API errors by class",
	}, []string{"class"})
)

// DefaultBaseURL is the production Notion v3 API origin.
const DefaultBaseURL = "https://www.notion.so"

// pageChunkLimit is the block count requested from loadPageChunk.
const pageChunkLimit = 100

// Client talks to the private Notion v3 API. It deliberately carries no
// retry logic: every request it issues is accounted against a per-assembly
// call budget, and a transport-level retry would issue outbound calls the
// budget cannot see.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API origin (override for tests).
	BaseURL string

	// UserAgent sent with every request.
	UserAgent string

	// Timeout per HTTP request. Timeout semantics live here, in the
	// transport, not in the assembly core.
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		UserAgent: "notion-page-client/1.0",
		Timeout:   30 * time.Second,
	}
}

// New creates a new Notion API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := log.With().Str("component", "notion-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: logger,
	}, nil
}

// loadPageChunkRequest is the payload for /api/v3/loadPageChunk.
type loadPageChunkRequest struct {
	PageID          string      `json:"pageId"`
	Limit           int         `json:"limit"`
	Cursor          chunkCursor `json:"cursor"`
	ChunkNumber     int         `json:"chunkNumber"`
	VerticalColumns bool        `json:"verticalColumns"`
}

type chunkCursor struct {
	Stack []json.RawMessage `json:"stack"`
}

// recordMapResponse is the envelope shared by loadPageChunk and
// syncRecordValues responses.
type recordMapResponse struct {
	RecordMap RecordMap `json:"recordMap"`
}

// FetchPage fetches a page's record set by ID.
func (c *Client) FetchPage(ctx context.Context, pageID, token string) (*RecordMap, error) {
	payload := loadPageChunkRequest{
		PageID:          pageID,
		Limit:           pageChunkLimit,
		Cursor:          chunkCursor{Stack: []json.RawMessage{}},
		ChunkNumber:     0,
		VerticalColumns: false,
	}

	var resp recordMapResponse
	if err := c.post(ctx, "loadPageChunk", payload, token, &resp); err != nil {
		return nil, err
	}
	return &resp.RecordMap, nil
}

// syncRecordValuesRequest is the payload for /api/v3/syncRecordValues.
type syncRecordValuesRequest struct {
	Requests []syncRecordRequest `json:"requests"`
}

type syncRecordRequest struct {
	ID      string `json:"id"`
	Table   string `json:"table"`
	Version int    `json:"version"`
}

// FetchBlocks fetches a batch of blocks by ID.
func (c *Client) FetchBlocks(ctx context.Context, ids []string, token string) (*RecordMap, error) {
	requests := make([]syncRecordRequest, 0, len(ids))
	for _, id := range ids {
		requests = append(requests, syncRecordRequest{ID: id, Table: "block", Version: -1})
	}

	var resp recordMapResponse
	if err := c.post(ctx, "syncRecordValues", syncRecordValuesRequest{Requests: requests}, token, &resp); err != nil {
		return nil, err
	}
	return &resp.RecordMap, nil
}

// queryCollectionRequest is the payload for /api/v3/queryCollection.
type queryCollectionRequest struct {
	CollectionID     string          `json:"collectionId"`
	CollectionViewID string          `json:"collectionViewId"`
	Loader           json.RawMessage `json:"loader"`
}

// queryCollectionResponse carries the row block IDs in result order plus the
// record map holding the row blocks themselves.
type queryCollectionResponse struct {
	Result struct {
		BlockIDs       []string `json:"blockIds"`
		ReducerResults struct {
			CollectionGroupResults struct {
				BlockIDs []string `json:"blockIds"`
			} `json:"collection_group_results"`
		} `json:"reducerResults"`
	} `json:"result"`
	RecordMap RecordMap `json:"recordMap"`
}

// collectionLoader is the reducer loader sent with every collection query.
var collectionLoader = json.RawMessage(`{"type":"reducer","reducers":{"collection_group_results":{"type":"results","limit":999}},"searchQuery":"","sort":[]}`)

// FetchTableData resolves the rows and schema of one collection view. It
// issues a single queryCollection call; result pagination is not chased.
func (c *Client) FetchTableData(ctx context.Context, collection *Collection, viewID, token string) (*TableData, error) {
	if collection == nil {
		return nil, fmt.Errorf("collection is required")
	}

	payload := queryCollectionRequest{
		CollectionID:     collection.ID,
		CollectionViewID: viewID,
		Loader:           collectionLoader,
	}

	var resp queryCollectionResponse
	if err := c.post(ctx, "queryCollection", payload, token, &resp); err != nil {
		return nil, err
	}

	rowIDs := resp.Result.ReducerResults.CollectionGroupResults.BlockIDs
	if len(rowIDs) == 0 {
		rowIDs = resp.Result.BlockIDs
	}

	return buildTableData(collection.Schema, rowIDs, &resp.RecordMap), nil
}

// buildTableData maps row blocks onto the collection schema, keeping the
// result order reported by the query.
func buildTableData(schema Schema, rowIDs []string, records *RecordMap) *TableData {
	blocksByID := make(map[string]*Block, len(records.Blocks))
	for _, rec := range records.Blocks {
		if rec.Block != nil {
			blocksByID[rec.ID] = rec.Block
		}
	}

	rows := make([]Row, 0, len(rowIDs))
	for _, id := range rowIDs {
		b, ok := blocksByID[id]
		if !ok {
			continue
		}
		row := Row{ID: b.ID, Fields: make(map[string]json.RawMessage, len(b.Properties))}
		for key, value := range b.Properties {
			col, ok := schema[key]
			if !ok {
				continue
			}
			row.Fields[col.Name] = value
		}
		rows = append(rows, row)
	}

	return &TableData{Schema: schema, Rows: rows}
}

// post executes one Notion v3 API call and decodes the response into out.
func (c *Client) post(ctx context.Context, endpoint string, payload interface{}, token string, out interface{}) error {
	startTime := time.Now()
	defer func() {
		notionRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/v3/"+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "token_v2", Value: token})
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Msg("Executing Notion API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		notionErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		notionRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("Notion API request failed")
		return &APIError{
			ErrorClass: ErrorClassNetwork,
			Endpoint:   endpoint,
			Message:    "request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	notionRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		errClass := classifyStatus(resp.StatusCode)
		notionErrorsTotal.WithLabelValues(string(errClass)).Inc()

		message := readErrorMessage(resp.Body)
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Notion API error")

		return &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Endpoint:   endpoint,
			Message:    message,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		notionErrorsTotal.WithLabelValues(string(ErrorClassServer)).Inc()
		return &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassServer,
			Endpoint:   endpoint,
			Message:    "malformed response",
			Err:        err,
		}
	}

	return nil
}

// errorBody is the shape of Notion's JSON error payloads.
type errorBody struct {
	Message string `json:"message"`
	Name    string `json:"name"`
}

// readErrorMessage extracts a human-readable message from an error response
// body, falling back to the raw body text.
func readErrorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(raw) == 0 {
		return "no error details"
	}

	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		return body.Message
	}
	return string(raw)
}
