package assembler

import (
	"context"

	"github.com/pagegrove/notion-page-client/pkg/budget"
	"github.com/pagegrove/notion-page-client/pkg/notionapi"
)

// expand performs bounded breadth-first discovery of blocks referenced
// transitively from the root page. Each round collects the child IDs not yet
// present in the graph, truncates them to the per-round cap and issues one
// guarded batch fetch. Expansion stops at the round cap, at a fix point, or
// early (partial result, no error) when the call budget has no remaining
// capacity.
func (a *Assembler) expand(ctx context.Context, tracker *budget.Tracker, graph *BlockGraph, rootID, token string) error {
	for round := 0; round < a.cfg.MaxRounds; round++ {
		pending := pendingIDs(graph, rootID, a.cfg.MaxBlocksPerRound)
		if len(pending) == 0 {
			return nil
		}
		if tracker.Exhausted() {
			a.logger.Debug().
				Int("round", round).
				Int("pending", len(pending)).
				Msg("Expansion stopped early, call budget exhausted")
			return nil
		}

		records, err := budget.Guard(ctx, tracker, "while fetching blocks",
			func(ctx context.Context) (*notionapi.RecordMap, error) {
				return a.source.FetchBlocks(ctx, pending, token)
			})
		if err != nil {
			return err
		}

		added := 0
		for _, rec := range records.Blocks {
			if rec.Block == nil {
				continue
			}
			if graph.Add(rec.Block) {
				added++
			}
		}

		a.logger.Debug().
			Int("round", round).
			Int("requested", len(pending)).
			Int("added", added).
			Msg("Expansion round complete")
	}
	return nil
}

// pendingIDs collects the child block IDs referenced by the graph but not yet
// present in it, in graph insertion order and content-list order, truncated
// to cap. Content of page blocks other than the root page is never expanded;
// that fences the traversal off from unrelated documents reachable via links.
func pendingIDs(graph *BlockGraph, rootID string, limit int) []string {
	var out []string
	seen := make(map[string]bool)

	for _, id := range graph.ids {
		b := graph.blocks[id]
		if len(b.Content) == 0 {
			continue
		}
		if b.IsPage() && b.ID != rootID {
			continue
		}
		for _, child := range b.Content {
			if graph.Has(child) || seen[child] {
				continue
			}
			seen[child] = true
			out = append(out, child)
			if len(out) == limit {
				return out
			}
		}
	}
	return out
}
