package scan

import "github.com/google/uuid"

// Summary reports one scan run's outcome.
type Summary struct {
	// RunID matches the scan_runs row and the progress events.
	RunID uuid.UUID
	// StartID is the first ID attempted; zero when the start position could
	// not be resolved.
	StartID int64
	// Processed counts attempted IDs; Stored and Missed split them by outcome.
	Processed int64
	Stored    int64
	Missed    int64
	// LastID is the highest ID reached, zero when nothing was processed.
	LastID int64
}
