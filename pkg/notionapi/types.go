// Package notionapi provides a client for the private Notion v3 API and the
// record types shared by the page assembly pipeline.
package notionapi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Block type tags used by the assembly pipeline. Notion block types are
// open-ended; only these two influence traversal and resolution.
const (
	BlockTypePage           = "page"
	BlockTypeCollectionView = "collection_view"
)

// Block is the atomic unit of page content. It may reference nested blocks
// via Content and, for collection-view blocks, saved views via ViewIDs.
type Block struct {
	ID           string                     `json:"id"`
	Type         string                     `json:"type"`
	ParentID     string                     `json:"parent_id,omitempty"`
	ParentTable  string                     `json:"parent_table,omitempty"`
	Content      []string                   `json:"content,omitempty"`
	ViewIDs      []string                   `json:"view_ids,omitempty"`
	CollectionID string                     `json:"collection_id,omitempty"`
	Properties   map[string]json.RawMessage `json:"properties,omitempty"`
	Format       json.RawMessage            `json:"format,omitempty"`

	// Collection is attached by the collection resolver and is absent on
	// every other block.
	Collection *CollectionData `json:"collection,omitempty"`
}

// IsPage reports whether the block is a page block.
func (b *Block) IsPage() bool { return b.Type == BlockTypePage }

// IsCollectionView reports whether the block embeds a collection view.
func (b *Block) IsCollectionView() bool { return b.Type == BlockTypeCollectionView }

// SchemaColumn describes one column of a collection.
type SchemaColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Schema maps Notion property keys to column definitions.
type Schema map[string]SchemaColumn

// RichTitle is Notion's rich-text representation of a title: a list of
// segments whose first element is the plain text.
type RichTitle [][]interface{}

// Plain concatenates the plain-text portion of every segment.
func (t RichTitle) Plain() string {
	var buf bytes.Buffer
	for _, segment := range t {
		if len(segment) == 0 {
			continue
		}
		if s, ok := segment[0].(string); ok {
			buf.WriteString(s)
		}
	}
	return buf.String()
}

// Collection is a table-like content entity referenced by a collection-view
// block.
type Collection struct {
	ID       string    `json:"id"`
	Name     RichTitle `json:"name,omitempty"`
	Schema   Schema    `json:"schema,omitempty"`
	ParentID string    `json:"parent_id,omitempty"`
}

// Title returns the collection's display title.
func (c *Collection) Title() string { return c.Name.Plain() }

// CollectionView is a saved configuration (columns, filters) for rendering a
// collection.
type CollectionView struct {
	ID     string          `json:"id"`
	Type   string          `json:"type,omitempty"`
	Name   string          `json:"name,omitempty"`
	Format json.RawMessage `json:"format,omitempty"`
	Query  json.RawMessage `json:"query2,omitempty"`
}

// Row is one record of table data, keyed by schema column name.
type Row struct {
	ID     string                     `json:"id"`
	Fields map[string]json.RawMessage `json:"fields"`
}

// TableData is the resolved contents of one collection view.
type TableData struct {
	Schema Schema `json:"schema"`
	Rows   []Row  `json:"rows"`
}

// CollectionData is the annotation the resolver attaches to a collection-view
// block: display title, column schema, resolved view definitions and row
// data. Types may contain nil placeholders for view IDs the defining page no
// longer knows about.
type CollectionData struct {
	Title  string            `json:"title"`
	Schema Schema            `json:"schema"`
	Types  []*CollectionView `json:"types"`
	Data   []Row             `json:"data"`
}

// BlockRecord is one entry of a record map's block table.
type BlockRecord struct {
	ID    string
	Role  string
	Block *Block
}

// CollectionRecord is one entry of a record map's collection table.
type CollectionRecord struct {
	ID         string
	Role       string
	Collection *Collection
}

// ViewRecord is one entry of a record map's collection_view table.
type ViewRecord struct {
	ID   string
	Role string
	View *CollectionView
}

// RecordMap is the record set returned by the Notion v3 API. The upstream
// payload is a JSON object per record table; decoding preserves the document
// order of each table so that every "first record wins" policy downstream is
// deterministic instead of depending on map iteration order.
type RecordMap struct {
	Blocks      []BlockRecord
	Collections []CollectionRecord
	Views       []ViewRecord
}

// HasCollectionData reports whether the record set contains at least one
// collection and one collection view.
func (m *RecordMap) HasCollectionData() bool {
	return len(m.Collections) > 0 && len(m.Views) > 0
}

// ViewByID returns the view record with the given ID, or nil when the record
// set does not contain it.
func (m *RecordMap) ViewByID(id string) *CollectionView {
	for _, rec := range m.Views {
		if rec.ID == id {
			return rec.View
		}
	}
	return nil
}

// recordEnvelope is the {role, value} wrapper around every record.
type recordEnvelope struct {
	Role  string          `json:"role"`
	Value json.RawMessage `json:"value"`
}

// rawRecord is one record of a table with its value still undecoded.
type rawRecord struct {
	id    string
	role  string
	value json.RawMessage
}

// decodeRecordTable walks a record table object with json.Decoder so that the
// JSON document order of its keys is preserved.
func decodeRecordTable(data []byte) ([]rawRecord, error) {
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("record table is not a JSON object")
	}

	var records []rawRecord
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("record table key is not a string")
		}

		var env recordEnvelope
		if err := dec.Decode(&env); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", key, err)
		}
		records = append(records, rawRecord{id: key, role: env.Role, value: env.Value})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return records, nil
}

// UnmarshalJSON decodes the raw record map, preserving per-table document
// order.
func (m *RecordMap) UnmarshalJSON(data []byte) error {
	var raw struct {
		Block          json.RawMessage `json:"block"`
		Collection     json.RawMessage `json:"collection"`
		CollectionView json.RawMessage `json:"collection_view"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	blockRecords, err := decodeRecordTable(raw.Block)
	if err != nil {
		return fmt.Errorf("decode block table: %w", err)
	}
	for _, rec := range blockRecords {
		br := BlockRecord{ID: rec.id, Role: rec.role}
		if len(rec.value) > 0 && !bytes.Equal(rec.value, []byte("null")) {
			var b Block
			if err := json.Unmarshal(rec.value, &b); err != nil {
				return fmt.Errorf("decode block %s: %w", rec.id, err)
			}
			br.Block = &b
		}
		m.Blocks = append(m.Blocks, br)
	}

	collectionRecords, err := decodeRecordTable(raw.Collection)
	if err != nil {
		return fmt.Errorf("decode collection table: %w", err)
	}
	for _, rec := range collectionRecords {
		cr := CollectionRecord{ID: rec.id, Role: rec.role}
		if len(rec.value) > 0 && !bytes.Equal(rec.value, []byte("null")) {
			var c Collection
			if err := json.Unmarshal(rec.value, &c); err != nil {
				return fmt.Errorf("decode collection %s: %w", rec.id, err)
			}
			cr.Collection = &c
		}
		m.Collections = append(m.Collections, cr)
	}

	viewRecords, err := decodeRecordTable(raw.CollectionView)
	if err != nil {
		return fmt.Errorf("decode collection_view table: %w", err)
	}
	for _, rec := range viewRecords {
		vr := ViewRecord{ID: rec.id, Role: rec.role}
		if len(rec.value) > 0 && !bytes.Equal(rec.value, []byte("null")) {
			var v CollectionView
			if err := json.Unmarshal(rec.value, &v); err != nil {
				return fmt.Errorf("decode collection_view %s: %w", rec.id, err)
			}
			vr.View = &v
		}
		m.Views = append(m.Views, vr)
	}

	return nil
}
