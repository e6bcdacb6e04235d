// Package schedule triggers periodic unbounded scans so newly published
// postings are picked up without operator intervention.
package schedule

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/seawork/vacancy-crawler/internal/scan"
)

// Starter launches scans; the scan controller implements it.
type Starter interface {
	Start(start int64, end *int64) (uuid.UUID, error)
}

// Scheduler fires an unbounded scan on a fixed interval. A tick that lands
// while a scan is still running is skipped, not queued.
type Scheduler struct {
	cron   *cron.Cron
	ctrl   Starter
	spec   string
	logger *zap.Logger
}

// New creates a Scheduler that fires every intervalMinutes minutes
// (default 25).
func New(ctrl Starter, intervalMinutes int, logger *zap.Logger) *Scheduler {
	if intervalMinutes <= 0 {
		intervalMinutes = 25
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:   cron.New(),
		ctrl:   ctrl,
		spec:   fmt.Sprintf("@every %dm", intervalMinutes),
		logger: logger,
	}
}

// Start registers the scan job and starts the cron loop. The first scan
// fires after one full interval; there is no immediate run.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.trigger); err != nil {
		return fmt.Errorf("register scan schedule: %w", err)
	}
	s.cron.Start()
	s.logger.Info("scan schedule started", zap.String("spec", s.spec))
	return nil
}

func (s *Scheduler) trigger() {
	runID, err := s.ctrl.Start(0, nil)
	switch {
	case errors.Is(err, scan.ErrScanActive):
		s.logger.Debug("scheduled scan skipped, another scan is active")
	case err != nil:
		s.logger.Error("scheduled scan failed to start", zap.Error(err))
	default:
		s.logger.Info("scheduled scan started", zap.Stringer("run_id", runID))
	}
}

// Stop halts the cron loop and waits for an in-flight trigger to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scan schedule stopped")
}
