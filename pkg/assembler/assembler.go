// Package assembler implements bounded assembly of a renderable page: it
// expands the block graph reachable from a root page and resolves at most one
// embedded collection, with every remote call gated by a per-request budget.
package assembler

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pagegrove/notion-page-client/pkg/budget"
	"github.com/pagegrove/notion-page-client/pkg/notionapi"
)

// Prometheus metrics for page assembly.
var (
	assembliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "page_assemblies_total",
		Help: "Total page assemblies by outcome",
	}, []string{"outcome"})

	assemblyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "page_assembly_duration_seconds",
		Help:    "Page assembly duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	assemblyCallsUsed = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "page_assembly_calls_used",
		Help:    "Guarded API calls consumed per assembly",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 45},
	})
)

// Expansion and resolution caps.
const (
	// DefaultMaxRounds bounds the number of block expansion rounds.
	DefaultMaxRounds = 2

	// DefaultMaxBlocksPerRound bounds the batch size of one expansion round.
	DefaultMaxBlocksPerRound = 20

	// maxViewTypes bounds the view definitions resolved per collection.
	maxViewTypes = 1
)

// Source is the remote API consumed by the assembler. *notionapi.Client
// implements it; tests substitute fakes.
type Source interface {
	FetchPage(ctx context.Context, pageID, token string) (*notionapi.RecordMap, error)
	FetchBlocks(ctx context.Context, ids []string, token string) (*notionapi.RecordMap, error)
	FetchTableData(ctx context.Context, collection *notionapi.Collection, viewID, token string) (*notionapi.TableData, error)
}

// Config holds the assembler configuration.
type Config struct {
	// MaxCalls is the call budget ceiling per assembly.
	MaxCalls int

	// MaxRounds is the block expansion round cap.
	MaxRounds int

	// MaxBlocksPerRound is the batch size cap per expansion round.
	MaxBlocksPerRound int
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		MaxCalls:          budget.DefaultCeiling,
		MaxRounds:         DefaultMaxRounds,
		MaxBlocksPerRound: DefaultMaxBlocksPerRound,
	}
}

// Assembler assembles pages from a Source. It is stateless across requests:
// each Assemble call owns a fresh budget tracker and block graph.
type Assembler struct {
	source Source
	cfg    Config
	logger zerolog.Logger
}

// New creates a new assembler.
func New(source Source, cfg Config) (*Assembler, error) {
	if source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if cfg.MaxCalls <= 0 {
		cfg.MaxCalls = budget.DefaultCeiling
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	if cfg.MaxBlocksPerRound <= 0 {
		cfg.MaxBlocksPerRound = DefaultMaxBlocksPerRound
	}

	return &Assembler{
		source: source,
		cfg:    cfg,
		logger: log.With().Str("component", "assembler").Logger(),
	}, nil
}

// Assemble builds the block graph for pageID. On success the graph is
// returned as-is, whether complete or truncated under budget pressure; the
// payload shape does not distinguish the two. On failure the error is an
// *AssemblyError classified as rate-limited or internal.
func (a *Assembler) Assemble(ctx context.Context, pageID, token string) (*BlockGraph, error) {
	tracker := budget.NewTracker(a.cfg.MaxCalls)
	startTime := time.Now()

	graph, err := a.assemble(ctx, tracker, pageID, token)

	assemblyDuration.Observe(time.Since(startTime).Seconds())
	assemblyCallsUsed.Observe(float64(tracker.Used()))

	if err != nil {
		classified := Classify(err)
		assembliesTotal.WithLabelValues(string(classified.Kind)).Inc()
		a.logger.Error().
			Err(err).
			Str("page_id", pageID).
			Str("kind", string(classified.Kind)).
			Int("calls_used", tracker.Used()).
			Msg("Page assembly failed")
		return nil, classified
	}

	assembliesTotal.WithLabelValues("success").Inc()
	a.logger.Info().
		Str("page_id", pageID).
		Int("blocks", graph.Len()).
		Int("calls_used", tracker.Used()).
		Dur("duration", time.Since(startTime)).
		Msg("Page assembled")

	return graph, nil
}

// assemble runs the pipeline: guarded root fetch, expansion, then collection
// resolution when the root record set carries collection data.
func (a *Assembler) assemble(ctx context.Context, tracker *budget.Tracker, pageID, token string) (*BlockGraph, error) {
	page, err := budget.Guard(ctx, tracker, "while fetching the page",
		func(ctx context.Context) (*notionapi.RecordMap, error) {
			return a.source.FetchPage(ctx, pageID, token)
		})
	if err != nil {
		return nil, err
	}

	graph := NewBlockGraph()
	for _, rec := range page.Blocks {
		graph.Add(rec.Block)
	}

	if err := a.expand(ctx, tracker, graph, pageID, token); err != nil {
		return nil, err
	}

	if page.HasCollectionData() {
		if err := a.resolveCollection(ctx, tracker, graph, token); err != nil {
			return nil, err
		}
	}

	return graph, nil
}
