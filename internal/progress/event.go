// Package progress defines the event structures emitted by the scan pipeline.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart Stage = "RUN_START"
	StageIDDone   Stage = "ID_DONE"
	StageRunDone  Stage = "RUN_DONE"
	StageRunError Stage = "RUN_ERROR"
)

// Outcome records how a single vacancy ID ended up.
type Outcome string

// Supported per-ID outcomes. An ID either yields a stored vacancy or a
// miss (no content after all attempts).
const (
	OutcomeStored Outcome = "stored"
	OutcomeMiss   Outcome = "miss"
)

// Event captures a single milestone of scan progress.
type Event struct {
	// RunID uniquely identifies a scan run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle or per-ID milestone occurred.
	Stage Stage
	// StartID is the first vacancy ID of the run (RUN_START only).
	StartID int64
	// EndID is the exclusive scan bound; nil for unbounded runs (RUN_START only).
	EndID *int64
	// VacancyID is the ID whose processing finished (ID_DONE only).
	VacancyID int64
	// Outcome classifies the finished ID (ID_DONE only).
	Outcome Outcome
	// Attempts counts fetch attempts spent on the ID, including the final one.
	Attempts int
	// Dur captures execution latency for IDs and run completions.
	Dur time.Duration
	// Note lets emitters attach low-volume context (e.g. the final error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart:
		if e.StartID <= 0 {
			return errors.New("run start requires a positive start id")
		}
	case StageIDDone:
		if e.VacancyID <= 0 {
			return errors.New("id done requires a positive vacancy id")
		}
		if e.Outcome != OutcomeStored && e.Outcome != OutcomeMiss {
			return fmt.Errorf("unknown outcome %q", e.Outcome)
		}
	case StageRunDone, StageRunError:
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID for repositories.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
