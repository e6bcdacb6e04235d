// Package archive persists raw vacancy pages to a blob backend. Archiving
// is optional; the scan pipeline skips it when no backend is configured.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
)

// Store is the blob backend an Archiver writes through.
type Store interface {
	// PutObject persists the content under path and returns its URI.
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Hasher fingerprints page bodies for archive keys.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Archiver writes raw pages under {prefix}/{id}/{digest}.html, where the
// digest is the first 12 hex characters of the body hash.
type Archiver struct {
	store  Store
	hasher Hasher
	prefix string
}

// New creates an Archiver. An empty prefix defaults to "pages".
func New(store Store, hasher Hasher, prefix string) (*Archiver, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("hasher is required")
	}
	if prefix == "" {
		prefix = "pages"
	}
	return &Archiver{store: store, hasher: hasher, prefix: prefix}, nil
}

// SavePage archives one fetched page body and returns the stored URI.
func (a *Archiver) SavePage(ctx context.Context, id int64, body []byte) (string, error) {
	digest, err := a.hasher.Hash(body)
	if err != nil {
		return "", fmt.Errorf("hash page body: %w", err)
	}
	if len(digest) > 12 {
		digest = digest[:12]
	}
	key := fmt.Sprintf("%s/%d/%s.html", a.prefix, id, digest)
	uri, err := a.store.PutObject(ctx, key, "text/html", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("put page object: %w", err)
	}
	return uri, nil
}
