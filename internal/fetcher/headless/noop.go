package headless

import (
	"context"
	"errors"

	"github.com/seawork/vacancy-crawler/internal/fetcher"
)

// Noop satisfies the fetch contract but always fails, signalling that
// headless browsing is not available in the current configuration.
type Noop struct{}

// NewNoop creates a new Noop fetcher.
func NewNoop() *Noop {
	return &Noop{}
}

// Fetch returns an error since this is a stub implementation.
func (Noop) Fetch(_ context.Context, _ string) (fetcher.Result, error) {
	return fetcher.Result{}, errors.New("headless fetching is disabled")
}

// Close is a no-op.
func (Noop) Close() {}
