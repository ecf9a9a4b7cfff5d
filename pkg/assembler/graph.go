package assembler

import (
	"bytes"
	"encoding/json"

	"github.com/pagegrove/notion-page-client/pkg/notionapi"
)

// BlockGraph is the mapping from block ID to block built up during one page
// assembly. Insertion order is preserved so that candidate selection and
// "first record wins" policies are deterministic. Keys accumulate
// monotonically: Add never replaces an already-known block.
type BlockGraph struct {
	ids    []string
	blocks map[string]*notionapi.Block
}

// NewBlockGraph creates an empty block graph.
func NewBlockGraph() *BlockGraph {
	return &BlockGraph{
		blocks: make(map[string]*notionapi.Block),
	}
}

// Add inserts a block under its ID. It reports whether the block was new;
// an already-known ID is left untouched (idempotent merge).
func (g *BlockGraph) Add(b *notionapi.Block) bool {
	if b == nil || b.ID == "" {
		return false
	}
	if _, exists := g.blocks[b.ID]; exists {
		return false
	}
	g.ids = append(g.ids, b.ID)
	g.blocks[b.ID] = b
	return true
}

// Get returns the block stored under id.
func (g *BlockGraph) Get(id string) (*notionapi.Block, bool) {
	b, ok := g.blocks[id]
	return b, ok
}

// Has reports whether id is a key of the graph.
func (g *BlockGraph) Has(id string) bool {
	_, ok := g.blocks[id]
	return ok
}

// Len returns the number of blocks in the graph.
func (g *BlockGraph) Len() int { return len(g.ids) }

// IDs returns the block IDs in insertion order.
func (g *BlockGraph) IDs() []string {
	out := make([]string, len(g.ids))
	copy(out, g.ids)
	return out
}

// MarshalJSON emits the graph as an ID-keyed object in insertion order.
func (g *BlockGraph) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range g.ids {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(g.blocks[id])
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
