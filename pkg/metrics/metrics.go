// Package metrics provides the centralized Prometheus registry reference for
// the Notion page client. All metrics are defined in their respective
// packages (notionapi, budget, assembler) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registerer used by the client.
// All metrics are automatically registered via promauto in their respective
// packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Budget Metrics (pkg/budget):
//   - call_budget_guarded_calls_total (Counter): Guarded calls admitted by the budget
//   - call_budget_blocks_total (Counter): Guarded calls blocked past the ceiling
//
// Notion API Metrics (pkg/notionapi):
//   - notion_api_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - notion_api_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - notion_api_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Assembly Metrics (pkg/assembler):
//   - page_assemblies_total{outcome} (Counter): Assemblies by outcome (success, rate_limited, internal)
//   - page_assembly_duration_seconds (Histogram): Assembly duration
//   - page_assembly_calls_used (Histogram): Guarded calls consumed per assembly
//
// Example Prometheus Queries:
//
//   # Rate-limited share of assemblies
//   sum(rate(page_assemblies_total{outcome="rate_limited"}[5m])) /
//   sum(rate(page_assemblies_total[5m]))
//
//   # Budget pressure
//   rate(call_budget_blocks_total[5m])
//
//   # P95 assembly latency
//   histogram_quantile(0.95, rate(page_assembly_duration_seconds_bucket[5m]))
//
//   # Upstream error rate by class
//   rate(notion_api_errors_total[5m])
