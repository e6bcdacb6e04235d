package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrScanActive is returned when a scan is requested while another one is
// still running. Only one scan may run at a time.
var ErrScanActive = errors.New("a scan is already active")

// State names the controller's lifecycle position.
type State string

const (
	StateIdle          State = "idle"
	StateRunning       State = "running"
	StateStopRequested State = "stop_requested"
)

// Status is a point-in-time snapshot of the controller.
type Status struct {
	State State
	// RunID identifies the active run; uuid.Nil when idle.
	RunID uuid.UUID
}

// Controller serializes scan execution. It owns the single background
// goroutine a scan runs on and exposes start, stop and status operations
// safe for concurrent use by the HTTP layer and the scheduler.
type Controller struct {
	scanner *Scanner
	logger  *zap.Logger
	baseCtx context.Context

	mu     sync.Mutex
	state  State
	runID  uuid.UUID
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController wires a controller around a scanner. Scans derive their
// context from base so an application shutdown cancels the active run.
func NewController(scanner *Scanner, base context.Context, logger *zap.Logger) *Controller {
	if base == nil {
		base = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		scanner: scanner,
		logger:  logger,
		baseCtx: base,
		state:   StateIdle,
	}
}

// Start launches a scan in the background and returns its run ID. A bounded
// scan covers [start, end); a nil end scans forward until the consecutive
// miss threshold. Returns ErrScanActive while a scan is in flight.
func (c *Controller) Start(start int64, end *int64) (uuid.UUID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return uuid.Nil, ErrScanActive
	}

	runID, err := c.scanner.ids.NewRawID()
	if err != nil {
		return uuid.Nil, fmt.Errorf("mint run id: %w", err)
	}

	runCtx, cancel := context.WithCancel(c.baseCtx)
	done := make(chan struct{})
	c.state = StateRunning
	c.runID = runID
	c.cancel = cancel
	c.done = done

	go func() {
		defer close(done)
		summary := c.scanner.scan(runCtx, runID, start, end)
		c.logger.Info("scan run finished",
			zap.Stringer("run_id", summary.RunID),
			zap.Int64("processed", summary.Processed),
			zap.Int64("stored", summary.Stored))
		c.finish()
	}()

	return runID, nil
}

func (c *Controller) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	c.state = StateIdle
	c.runID = uuid.Nil
	c.cancel = nil
	c.done = nil
}

// Stop requests cancellation of the active scan. It reports whether a scan
// was running; stopping an idle controller is a no-op.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning {
		return false
	}
	c.state = StateStopRequested
	c.cancel()
	return true
}

// Status reports the current state and active run ID.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{State: c.state, RunID: c.runID}
}

// Close cancels any active scan and waits for its goroutine to drain, or
// until ctx expires.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scan controller close wait: %w", ctx.Err())
	}
}
