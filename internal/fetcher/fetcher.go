// Package fetcher defines the shared page retrieval contract used by the
// scan pipeline and the enrichment worker. Implementations live in the
// colly and headless subpackages.
package fetcher

import (
	"errors"
	"fmt"
	"time"
)

// Result holds the outcome of a completed HTTP exchange.
type Result struct {
	// StatusCode is the HTTP status of the final response.
	StatusCode int
	// Body is the raw response body.
	Body []byte
	// FinalURL is the URL the response was served from after redirects.
	FinalURL string
	// Duration measures the full fetch including redirects.
	Duration time.Duration
}

// StatusError reports a response that completed at the HTTP layer but
// carried a non-2xx status. Callers treat it as a retryable miss rather
// than a connectivity failure.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// ReceivedResponse reports whether err represents a fetch that reached the
// server and got an HTTP answer back. Transport failures return false.
func ReceivedResponse(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr)
}
