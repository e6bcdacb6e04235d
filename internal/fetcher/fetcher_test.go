package fetcher

import (
	"errors"
	"fmt"
	"testing"
)

func TestStatusErrorMessage(t *testing.T) {
	t.Parallel()

	err := &StatusError{Code: 404}
	if got := err.Error(); got != "unexpected status 404" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestReceivedResponse(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("fetch vacancy: %w", &StatusError{Code: 500})
	if !ReceivedResponse(wrapped) {
		t.Fatal("expected wrapped status error to count as a response")
	}
	if ReceivedResponse(errors.New("dial tcp: connection refused")) {
		t.Fatal("transport error must not count as a response")
	}
	if ReceivedResponse(nil) {
		t.Fatal("nil error must not count as a response")
	}
}
