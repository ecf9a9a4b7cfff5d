package assembler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/pagegrove/notion-page-client/pkg/budget"
	"github.com/pagegrove/notion-page-client/pkg/notionapi"
)

// ErrorKind classifies an assembly failure for the route layer.
type ErrorKind string

const (
	// KindRateLimited means the call budget was exhausted or the upstream
	// API signalled over-quota. Maps to HTTP 429.
	KindRateLimited ErrorKind = "rate_limited"

	// KindInternal covers every other failure. Maps to HTTP 500.
	KindInternal ErrorKind = "internal"
)

// AssemblyError is the classified failure returned by Assemble. The
// underlying error propagated unchanged through the pipeline; classification
// happens once, here.
type AssemblyError struct {
	Kind ErrorKind
	Err  error
}

// Error implements the error interface.
func (e *AssemblyError) Error() string {
	return fmt.Sprintf("page assembly failed (%s): %v", e.Kind, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *AssemblyError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code for the error kind.
func (e *AssemblyError) HTTPStatus() int {
	if e.Kind == KindRateLimited {
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// upstream message fragments that signal over-quota without a typed error
// (e.g. the hosting runtime's own subrequest cap).
var rateLimitFragments = []string{
	"too many api calls",
	"too many subrequests",
}

// Classify wraps err in an AssemblyError. Budget exhaustion and upstream
// rate-limit responses become KindRateLimited; everything else is
// KindInternal.
func Classify(err error) *AssemblyError {
	if budget.IsExceeded(err) {
		return &AssemblyError{Kind: KindRateLimited, Err: err}
	}

	var apiErr *notionapi.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorClass == notionapi.ErrorClassRateLimit {
		return &AssemblyError{Kind: KindRateLimited, Err: err}
	}

	message := strings.ToLower(err.Error())
	for _, fragment := range rateLimitFragments {
		if strings.Contains(message, fragment) {
			return &AssemblyError{Kind: KindRateLimited, Err: err}
		}
	}

	return &AssemblyError{Kind: KindInternal, Err: err}
}
