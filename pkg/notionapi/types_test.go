package notionapi

import (
	"encoding/json"
	"testing"
)

func TestRecordMap_PreservesDocumentOrder(t *testing.T) {
	// Keys chosen so that map iteration order would almost certainly differ
	// from document order for at least one of them.
	raw := `{
		"block": {
			"b-3": {"role": "reader", "value": {"id": "b-3", "type": "text"}},
			"b-1": {"role": "reader", "value": {"id": "b-1", "type": "page"}},
			"b-2": {"role": "reader", "value": {"id": "b-2", "type": "text"}}
		},
		"collection": {
			"c-2": {"role": "reader", "value": {"id": "c-2", "name": [["Second"]]}},
			"c-1": {"role": "reader", "value": {"id": "c-1", "name": [["First"]]}}
		},
		"collection_view": {
			"v-9": {"role": "reader", "value": {"id": "v-9", "type": "table"}},
			"v-0": {"role": "reader", "value": {"id": "v-0", "type": "list"}}
		}
	}`

	var m RecordMap
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	wantBlocks := []string{"b-3", "b-1", "b-2"}
	if len(m.Blocks) != len(wantBlocks) {
		t.Fatalf("len(Blocks) = %d, want %d", len(m.Blocks), len(wantBlocks))
	}
	for i, want := range wantBlocks {
		if m.Blocks[i].ID != want {
			t.Errorf("Blocks[%d].ID = %q, want %q", i, m.Blocks[i].ID, want)
		}
	}

	if m.Collections[0].ID != "c-2" || m.Collections[1].ID != "c-1" {
		t.Errorf("collection order = %q, %q; want c-2, c-1", m.Collections[0].ID, m.Collections[1].ID)
	}
	if m.Collections[0].Collection.Title() != "Second" {
		t.Errorf("first collection title = %q, want %q", m.Collections[0].Collection.Title(), "Second")
	}

	if m.Views[0].ID != "v-9" || m.Views[1].ID != "v-0" {
		t.Errorf("view order = %q, %q; want v-9, v-0", m.Views[0].ID, m.Views[1].ID)
	}
}

func TestRecordMap_NullAndMissingTables(t *testing.T) {
	var m RecordMap
	if err := json.Unmarshal([]byte(`{"block": null}`), &m); err != nil {
		t.Fatalf("unmarshal null table: %v", err)
	}
	if len(m.Blocks) != 0 || m.HasCollectionData() {
		t.Errorf("expected empty record map, got %d blocks", len(m.Blocks))
	}
}

func TestRecordMap_NullRecordValue(t *testing.T) {
	raw := `{"block": {"gone": {"role": "none", "value": null}}}`

	var m RecordMap
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(m.Blocks) != 1 {
		t.Fatalf("len(Blocks) = %d, want 1", len(m.Blocks))
	}
	if m.Blocks[0].Block != nil {
		t.Errorf("Block = %+v, want nil for null value", m.Blocks[0].Block)
	}
}

func TestRecordMap_HasCollectionData(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{
			name: "both present",
			raw:  `{"collection": {"c": {"role": "reader", "value": {"id": "c"}}}, "collection_view": {"v": {"role": "reader", "value": {"id": "v"}}}}`,
			want: true,
		},
		{
			name: "collection only",
			raw:  `{"collection": {"c": {"role": "reader", "value": {"id": "c"}}}}`,
			want: false,
		},
		{
			name: "view only",
			raw:  `{"collection_view": {"v": {"role": "reader", "value": {"id": "v"}}}}`,
			want: false,
		},
		{
			name: "neither",
			raw:  `{"block": {}}`,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m RecordMap
			if err := json.Unmarshal([]byte(tt.raw), &m); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got := m.HasCollectionData(); got != tt.want {
				t.Errorf("HasCollectionData() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecordMap_ViewByID(t *testing.T) {
	raw := `{"collection_view": {
		"v-1": {"role": "reader", "value": {"id": "v-1", "type": "table"}},
		"v-2": {"role": "reader", "value": {"id": "v-2", "type": "list"}}
	}}`

	var m RecordMap
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if v := m.ViewByID("v-2"); v == nil || v.Type != "list" {
		t.Errorf("ViewByID(v-2) = %+v, want list view", v)
	}
	if v := m.ViewByID("v-404"); v != nil {
		t.Errorf("ViewByID(v-404) = %+v, want nil", v)
	}
}

func TestRichTitle_Plain(t *testing.T) {
	tests := []struct {
		name  string
		title RichTitle
		want  string
	}{
		{name: "empty", title: nil, want: ""},
		{name: "single segment", title: RichTitle{{"Tasks"}}, want: "Tasks"},
		{name: "multiple segments", title: RichTitle{{"Road"}, {"map"}}, want: "Roadmap"},
		{name: "formatted segment keeps text", title: RichTitle{{"Bold", []interface{}{[]interface{}{"b"}}}}, want: "Bold"},
		{name: "empty segment skipped", title: RichTitle{{}, {"x"}}, want: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.title.Plain(); got != tt.want {
				t.Errorf("Plain() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBlock_TypePredicates(t *testing.T) {
	page := &Block{ID: "a", Type: BlockTypePage}
	view := &Block{ID: "b", Type: BlockTypeCollectionView}
	text := &Block{ID: "c", Type: "text"}

	if !page.IsPage() || page.IsCollectionView() {
		t.Error("page block misclassified")
	}
	if !view.IsCollectionView() || view.IsPage() {
		t.Error("collection_view block misclassified")
	}
	if text.IsPage() || text.IsCollectionView() {
		t.Error("text block misclassified")
	}
}
