package integration

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/pagegrove/notion-page-client/internal/testutil"
	"github.com/pagegrove/notion-page-client/pkg/assembler"
	"github.com/pagegrove/notion-page-client/pkg/notionapi"
)

const (
	rootID      = "root-page"
	viewBlockID = "cv-block"
)

// setupMockAPI configures a mock Notion API serving a root page with nested
// blocks and one embedded collection.
func setupMockAPI(t *testing.T) *testutil.MockNotion {
	t.Helper()

	mock := testutil.NewMockNotion()
	t.Cleanup(mock.Close)

	rootPage := testutil.RecordMapJSON(
		[]string{
			testutil.BlockJSON(rootID, "page", []string{"b-1", "b-2", viewBlockID}, nil),
			testutil.BlockJSON("b-1", "text", []string{"nested-1"}, nil),
			testutil.BlockJSON("b-2", "text", nil, nil),
			testutil.BlockJSON(viewBlockID, "collection_view", nil, []string{"view-1"}),
		},
		[]string{testutil.CollectionJSON("coll-1", "Tasks")},
		[]string{testutil.ViewJSON("view-1", "table")},
	)

	collectionPage := testutil.RecordMapJSON(
		[]string{testutil.BlockJSON(viewBlockID, "collection_view", nil, []string{"view-1"})},
		[]string{testutil.CollectionJSON("coll-1", "Tasks")},
		[]string{testutil.ViewJSON("view-1", "table")},
	)

	// loadPageChunk serves both the root page and the collection-view
	// block's defining page, keyed by the pageId in the request body.
	mock.SetHandler("loadPageChunk", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			PageID string `json:"pageId"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)

		w.Header().Set("Content-Type", "application/json")
		if payload.PageID == viewBlockID {
			w.Write([]byte(collectionPage))
			return
		}
		w.Write([]byte(rootPage))
	})

	mock.SetResponse("syncRecordValues", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body: testutil.RecordMapJSON(
			[]string{testutil.BlockJSON("nested-1", "text", nil, nil)},
			nil, nil,
		),
	})

	mock.SetResponse("queryCollection", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body: `{
			"result": {"reducerResults": {"collection_group_results": {"blockIds": ["row-1"]}}},
			"recordMap": {"block": {
				"row-1": {"role": "reader", "value": {"id": "row-1", "type": "page", "properties": {"title": [["Ship it"]]}}}
			}}
		}`,
	})

	return mock
}

func newPipeline(t *testing.T, mock *testutil.MockNotion, cfg assembler.Config) *assembler.Assembler {
	t.Helper()

	client, err := notionapi.New(notionapi.Config{
		BaseURL:   mock.URL(),
		UserAgent: "notion-page-client-integration/1.0",
		Timeout:   5 * time.Second,
	})
	if err != nil {
		t.Fatalf("notionapi.New: %v", err)
	}

	asm, err := assembler.New(client, cfg)
	if err != nil {
		t.Fatalf("assembler.New: %v", err)
	}
	return asm
}

func TestAssembly_EndToEnd(t *testing.T) {
	mock := setupMockAPI(t)
	asm := newPipeline(t, mock, assembler.DefaultConfig())

	graph, err := asm.Assemble(context.Background(), rootID, "integration-token")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	// Root page blocks plus the expanded nested block.
	for _, id := range []string{rootID, "b-1", "b-2", viewBlockID, "nested-1"} {
		if !graph.Has(id) {
			t.Errorf("graph missing %s; ids = %v", id, graph.IDs())
		}
	}

	annotated, _ := graph.Get(viewBlockID)
	if annotated.Collection == nil {
		t.Fatal("collection-view block not annotated")
	}
	if annotated.Collection.Title != "Tasks" {
		t.Errorf("Title = %q, want %q", annotated.Collection.Title, "Tasks")
	}
	if len(annotated.Collection.Data) != 1 || annotated.Collection.Data[0].ID != "row-1" {
		t.Errorf("Data = %+v, want one row", annotated.Collection.Data)
	}
	if len(annotated.Collection.Types) != 1 || annotated.Collection.Types[0] == nil {
		t.Errorf("Types = %+v, want the resolved view", annotated.Collection.Types)
	}

	// Root page + one block batch + collection page + table query.
	if got := mock.GetRequestCount(); got != 4 {
		t.Errorf("upstream requests = %d, want 4", got)
	}
	if mock.LastToken != "integration-token" {
		t.Errorf("token = %q, want integration-token", mock.LastToken)
	}

	// The payload shape: an ID-keyed object of blocks.
	data, err := json.Marshal(graph)
	if err != nil {
		t.Fatalf("marshal graph: %v", err)
	}
	if !strings.Contains(string(data), `"title":"Tasks"`) {
		t.Errorf("payload missing collection annotation: %s", data)
	}
}

func TestAssembly_BudgetCeilingEndToEnd(t *testing.T) {
	mock := setupMockAPI(t)
	asm := newPipeline(t, mock, assembler.Config{MaxCalls: 2, MaxRounds: 2, MaxBlocksPerRound: 20})

	_, err := asm.Assemble(context.Background(), rootID, "")
	if err == nil {
		t.Fatal("expected rate-limited failure")
	}

	var classified *assembler.AssemblyError
	if !errors.As(err, &classified) {
		t.Fatalf("error = %T, want *AssemblyError", err)
	}
	if classified.Kind != assembler.KindRateLimited {
		t.Errorf("Kind = %q, want rate_limited", classified.Kind)
	}
	if !strings.Contains(err.Error(), "while fetching collection page") {
		t.Errorf("error = %q, want the blocked call's label", err.Error())
	}

	// The ceiling bounds actual upstream traffic, not just bookkeeping.
	if got := mock.GetRequestCount(); got != 2 {
		t.Errorf("upstream requests = %d, want 2", got)
	}
}

func TestAssembly_UpstreamErrorEndToEnd(t *testing.T) {
	mock := setupMockAPI(t)
	mock.SetResponse("loadPageChunk", testutil.MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"message": "invalid token"}`,
	})

	asm := newPipeline(t, mock, assembler.DefaultConfig())
	_, err := asm.Assemble(context.Background(), rootID, "bad-token")
	if err == nil {
		t.Fatal("expected failure")
	}

	var classified *assembler.AssemblyError
	if !errors.As(err, &classified) {
		t.Fatalf("error = %T, want *AssemblyError", err)
	}
	if classified.Kind != assembler.KindInternal {
		t.Errorf("Kind = %q, want internal", classified.Kind)
	}

	var apiErr *notionapi.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("underlying error = %T, want *APIError", errors.Unwrap(err))
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", apiErr.StatusCode)
	}
}
