package scan

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/seawork/vacancy-crawler/internal/fetcher"
)

// Fetcher retrieves one page over HTTP.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (fetcher.Result, error)
}

// Resolver maps a scraped employer name to a company ID; zero means no
// association.
type Resolver interface {
	Resolve(ctx context.Context, name string) (int64, error)
}

// Archiver snapshots raw page bytes and returns the stored URI.
type Archiver interface {
	SavePage(ctx context.Context, id int64, body []byte) (string, error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator mints run identifiers.
type IDGenerator interface {
	NewRawID() (uuid.UUID, error)
}
