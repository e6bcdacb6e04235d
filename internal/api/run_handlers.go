package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seawork/vacancy-crawler/internal/scan"
	"github.com/seawork/vacancy-crawler/internal/store"
)

type startScanRequest struct {
	// Start is the first vacancy ID; zero resumes past the last known ID.
	Start int64 `json:"start"`
	// End bounds the scan exclusively; omitted means scan to the frontier.
	End *int64 `json:"end"`
}

func (s *Server) startScan(w http.ResponseWriter, r *http.Request) {
	var req startScanRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Start < 0 || (req.End != nil && *req.End < 0) {
		writeError(w, http.StatusBadRequest, "ids must not be negative")
		return
	}

	runID, err := s.deps.Controller.Start(req.Start, req.End)
	if err != nil {
		if errors.Is(err, scan.ErrScanActive) {
			writeError(w, http.StatusConflict, "a scan is already active")
			return
		}
		s.logger.Error("start scan failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start scan")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id": runID.String(),
		"state":  string(scan.StateRunning),
	})
}

func (s *Server) currentScan(w http.ResponseWriter, r *http.Request) {
	status := s.deps.Controller.Status()
	resp := scanStatusDTO{State: string(status.State)}

	if status.RunID != uuid.Nil {
		resp.RunID = status.RunID.String()
		run, err := s.deps.Runs.GetRun(r.Context(), status.RunID)
		switch {
		case err == nil:
			dto := toRunDTO(run)
			resp.Run = &dto
		case errors.Is(err, store.ErrNotFound):
			// The run row lags the controller by up to one batch flush.
		default:
			s.logger.Error("load current run failed",
				zap.Stringer("run_id", status.RunID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load current run")
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) stopScan(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"stopping": s.deps.Controller.Stop()})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parseLimitOffset(r, defaultRunLimit, maxRunLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var status *store.RunStatus
	if statusParam := strings.TrimSpace(r.URL.Query().Get("status")); statusParam != "" {
		statusVal, parseErr := parseRunStatus(statusParam)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, parseErr.Error())
			return
		}
		status = &statusVal
	}

	runs, err := s.deps.Runs.ListRuns(r.Context(), status, limit, offset)
	if err != nil {
		s.logger.Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	out := make([]runDTO, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunDTO(run))
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	runID, err := parseRunID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	run, err := s.deps.Runs.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		s.logger.Error("get run failed", zap.Stringer("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": toRunDTO(run)})
}

// decodeOptionalJSON tolerates an empty body, which stands for the zero
// request.
func decodeOptionalJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func parseRunID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "run_id")
	if raw == "" {
		return uuid.UUID{}, errors.New("run_id is required")
	}
	runID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, errors.New("invalid run_id")
	}
	return runID, nil
}

func parseRunStatus(input string) (store.RunStatus, error) {
	switch strings.ToLower(input) {
	case "running":
		return store.RunRunning, nil
	case "success":
		return store.RunSuccess, nil
	case "error", "failed", "failure":
		return store.RunError, nil
	default:
		return "", errors.New("invalid status")
	}
}

type scanStatusDTO struct {
	State string  `json:"state"`
	RunID string  `json:"run_id,omitempty"`
	Run   *runDTO `json:"run,omitempty"`
}

type runDTO struct {
	ID           string     `json:"id"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Status       string     `json:"status"`
	StartID      int64      `json:"start_id"`
	EndID        *int64     `json:"end_id,omitempty"`
	Processed    int64      `json:"processed"`
	Stored       int64      `json:"stored"`
	Missed       int64      `json:"missed"`
	LastID       *int64     `json:"last_id,omitempty"`
	ErrorMessage *string    `json:"error,omitempty"`
}

func toRunDTO(run store.ScanRun) runDTO {
	return runDTO{
		ID:           run.ID.String(),
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
		Status:       string(run.Status),
		StartID:      run.StartID,
		EndID:        run.EndID,
		Processed:    run.Processed,
		Stored:       run.Stored,
		Missed:       run.Missed,
		LastID:       run.LastID,
		ErrorMessage: run.ErrorMessage,
	}
}
