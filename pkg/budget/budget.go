// Package budget implements the per-request call budget that gates every
// outbound Notion API call. It enforces a hard ceiling on the number of
// remote calls a single page assembly may issue, failing fast once the
// ceiling is reached instead of exhausting the hosting runtime's own
// outbound-request quota.
package budget

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for budget tracking.
var (
	budgetBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "call_budget_blocks_total",
		Help: "Total number of guarded calls blocked because the call budget was exhausted",
	})

	guardedCallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "call_budget_guarded_calls_total",
		Help: "Total number of guarded calls admitted by the call budget",
	})
)

// DefaultCeiling is the default maximum number of guarded calls per request.
// It sits below the undisclosed hard cap of the hosting runtime's
// outbound-call limit to leave a safety margin.
const DefaultCeiling = 45

// Tracker counts guarded calls for one page assembly. A Tracker is created
// fresh at the start of every assembly and discarded at return; it is owned
// exclusively by the single in-flight request and needs no locking.
type Tracker struct {
	ceiling int
	calls   int
}

// NewTracker creates a tracker with the given ceiling.
// A ceiling <= 0 selects DefaultCeiling.
func NewTracker(ceiling int) *Tracker {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	return &Tracker{ceiling: ceiling}
}

// Ceiling returns the configured maximum number of guarded calls.
func (t *Tracker) Ceiling() int { return t.ceiling }

// Used returns the number of guarded calls admitted so far.
func (t *Tracker) Used() int { return t.calls }

// Remaining returns the number of guarded calls still permitted.
func (t *Tracker) Remaining() int {
	if t.calls >= t.ceiling {
		return 0
	}
	return t.ceiling - t.calls
}

// Exhausted reports whether the next guarded call would be blocked.
func (t *Tracker) Exhausted() bool { return t.calls >= t.ceiling }

// ExceededError is returned when a guarded call is attempted past the
// ceiling. Label identifies the attempted operation for diagnostics.
type ExceededError struct {
	Label   string
	Ceiling int
}

// Error implements the error interface.
func (e *ExceededError) Error() string {
	return fmt.Sprintf("too many API calls %s (limit %d)", e.Label, e.Ceiling)
}

// IsExceeded reports whether err is (or wraps) a budget ExceededError.
func IsExceeded(err error) bool {
	var exceeded *ExceededError
	return errors.As(err, &exceeded)
}

// Guard admits op through the call budget. If the tracker is exhausted it
// returns an ExceededError carrying label without invoking op and without
// incrementing the counter. Otherwise it increments the counter exactly once
// and returns op's outcome unchanged.
func Guard[T any](ctx context.Context, t *Tracker, label string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if t.calls >= t.ceiling {
		budgetBlocksTotal.Inc()
		return zero, &ExceededError{Label: label, Ceiling: t.ceiling}
	}
	t.calls++
	guardedCallsTotal.Inc()
	return op(ctx)
}
