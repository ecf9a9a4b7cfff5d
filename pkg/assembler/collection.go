package assembler

import (
	"context"

	"github.com/pagegrove/notion-page-client/pkg/budget"
	"github.com/pagegrove/notion-page-client/pkg/notionapi"
)

// resolveCollection locates the first collection-view block in the graph and
// resolves its table: one guarded fetch of the block's defining page, one
// guarded table-data fetch, then an additive annotation on the block. Only
// one collection per page and one view per collection is ever resolved; that
// is a scope policy, not an API limitation.
//
// Guarded-call failures (including budget exhaustion) propagate unchanged: a
// half-resolved collection would be misleading to render.
func (a *Assembler) resolveCollection(ctx context.Context, tracker *budget.Tracker, graph *BlockGraph, token string) error {
	var target *notionapi.Block
	for _, id := range graph.ids {
		if b := graph.blocks[id]; b.IsCollectionView() {
			target = b
			break
		}
	}
	if target == nil {
		return nil
	}

	page, err := budget.Guard(ctx, tracker, "while fetching collection page",
		func(ctx context.Context) (*notionapi.RecordMap, error) {
			return a.source.FetchPage(ctx, target.ID, token)
		})
	if err != nil {
		return err
	}

	if len(page.Collections) == 0 || page.Collections[0].Collection == nil {
		a.logger.Debug().
			Str("block_id", target.ID).
			Msg("Collection-view block has no collection records, leaving unannotated")
		return nil
	}
	if len(page.Views) == 0 {
		a.logger.Debug().
			Str("block_id", target.ID).
			Msg("Collection-view block has no view records, leaving unannotated")
		return nil
	}

	collection := page.Collections[0].Collection
	view := page.Views[0]

	table, err := budget.Guard(ctx, tracker, "while fetching table data",
		func(ctx context.Context) (*notionapi.TableData, error) {
			return a.source.FetchTableData(ctx, collection, view.ID, token)
		})
	if err != nil {
		return err
	}

	// View definitions come from the original block's view_ids, capped to
	// one, looked up in the freshly fetched page. A stale ID yields a nil
	// placeholder rather than a failure.
	viewIDs := target.ViewIDs
	if len(viewIDs) > maxViewTypes {
		viewIDs = viewIDs[:maxViewTypes]
	}
	types := make([]*notionapi.CollectionView, 0, len(viewIDs))
	for _, id := range viewIDs {
		types = append(types, page.ViewByID(id))
	}

	target.Collection = &notionapi.CollectionData{
		Title:  collection.Title(),
		Schema: collection.Schema,
		Types:  types,
		Data:   table.Rows,
	}

	a.logger.Debug().
		Str("block_id", target.ID).
		Str("collection_id", collection.ID).
		Int("rows", len(table.Rows)).
		Msg("Collection resolved")

	return nil
}
