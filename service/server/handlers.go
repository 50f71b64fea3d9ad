package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"

	"github.com/brojonat/splflow/service/db"
	"github.com/brojonat/splflow/service/flow"
	"github.com/brojonat/splflow/service/temporal"
	"go.temporal.io/sdk/client"
)

const (
	maxRequestBodySize = 1 << 16
	maxRunIDLength     = 64
	defaultListLimit   = 50
	maxListLimit       = 500
)

// Run IDs are UUIDs by default; callers may pass their own slug.
var validRunIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// RunStore is the run history the API reads. *db.Store satisfies it.
type RunStore interface {
	GetRun(ctx context.Context, id string) (*db.Run, error)
	ListRuns(ctx context.Context, limit, offset int32) ([]*db.Run, error)
	ListSteps(ctx context.Context, runID string) ([]*db.Step, error)
}

// FlowStarter starts flow workflows. *temporal.Client satisfies it.
type FlowStarter interface {
	StartFlow(ctx context.Context, input temporal.SPLFlowInput) (client.WorkflowRun, error)
}

// startRunRequest is the optional body of POST /api/v1/runs.
type startRunRequest struct {
	RunID          string `json:"run_id"`
	TransferAmount uint64 `json:"transfer_amount"`
}

type startRunResponse struct {
	RunID         string `json:"run_id"`
	WorkflowID    string `json:"workflow_id"`
	TemporalRunID string `json:"temporal_run_id"`
}

// handleStartRun returns a handler that starts the flow as a workflow.
// POST /api/v1/runs
func handleStartRun(starter FlowStarter, supply uint64, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if starter == nil {
			writeError(w, "workflow execution is not configured", http.StatusServiceUnavailable)
			return
		}

		var req startRunRequest
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, "request body too large", http.StatusBadRequest)
				return
			}
			writeError(w, "invalid request body", http.StatusBadRequest)
			return
		}

		if req.RunID == "" {
			req.RunID = flow.NewRunID()
		} else if err := validateRunID(req.RunID); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if supply > 0 {
			if err := (flow.Config{Supply: supply}).CheckTransferAmount(req.TransferAmount); err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		run, err := starter.StartFlow(r.Context(), temporal.SPLFlowInput{
			RunID:          req.RunID,
			TransferAmount: req.TransferAmount,
		})
		if err != nil {
			logger.Error("failed to start flow", "run_id", req.RunID, "error", err)
			writeError(w, "failed to start run", http.StatusInternalServerError)
			return
		}

		logger.Info("flow started", "run_id", req.RunID, "workflow_id", run.GetID())
		writeJSON(w, startRunResponse{
			RunID:         req.RunID,
			WorkflowID:    run.GetID(),
			TemporalRunID: run.GetRunID(),
		}, http.StatusAccepted)
	})
}

// handleListRuns returns a handler that lists recorded runs, newest first.
// GET /api/v1/runs?limit=N&offset=N
func handleListRuns(store RunStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		limit, err := parseBoundedInt(query.Get("limit"), defaultListLimit, 1, maxListLimit)
		if err != nil {
			writeError(w, "invalid limit parameter: "+err.Error(), http.StatusBadRequest)
			return
		}
		offset, err := parseBoundedInt(query.Get("offset"), 0, 0, -1)
		if err != nil {
			writeError(w, "invalid offset parameter: "+err.Error(), http.StatusBadRequest)
			return
		}

		runs, err := store.ListRuns(r.Context(), int32(limit), int32(offset))
		if err != nil {
			logger.Error("failed to list runs", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		logger.Debug("runs listed", "count", len(runs))
		if runs == nil {
			runs = []*db.Run{}
		}
		writeJSON(w, map[string]interface{}{
			"runs":   runs,
			"count":  len(runs),
			"limit":  limit,
			"offset": offset,
		}, http.StatusOK)
	})
}

// runResponse is a run with its recorded steps.
type runResponse struct {
	*db.Run
	Steps []*db.Step `json:"steps"`
}

// handleGetRun returns a handler that retrieves one run and its steps.
// GET /api/v1/runs/{id}
func handleGetRun(store RunStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := validateRunID(id); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		run, err := store.GetRun(r.Context(), id)
		if errors.Is(err, db.ErrRunNotFound) {
			writeError(w, "run not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Error("failed to get run", "run_id", id, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		steps, err := store.ListSteps(r.Context(), id)
		if err != nil {
			logger.Error("failed to list steps", "run_id", id, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if steps == nil {
			steps = []*db.Step{}
		}

		writeJSON(w, runResponse{Run: run, Steps: steps}, http.StatusOK)
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, map[string]string{"error": message}, statusCode)
}

// validateRunID rejects IDs that could not have been generated or supplied
// through the flow. They also end up in NATS subjects, so dots and wildcards
// are excluded.
func validateRunID(id string) error {
	if id == "" {
		return errors.New("run id is required")
	}
	if len(id) > maxRunIDLength {
		return fmt.Errorf("run id too long: maximum length is %d characters", maxRunIDLength)
	}
	if !validRunIDRegex.MatchString(id) {
		return errors.New("invalid characters in run id")
	}
	return nil
}

// parseBoundedInt parses s, or returns def when s is empty. hi < 0 means no
// upper bound.
func parseBoundedInt(s string, def, lo, hi int) (int, error) {
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("must be an integer")
	}
	if v < lo {
		return 0, fmt.Errorf("must be at least %d", lo)
	}
	if hi >= 0 && v > hi {
		return 0, fmt.Errorf("cannot exceed %d", hi)
	}
	return v, nil
}
