package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// SnapshotStore reads persisted stats snapshots. Implemented by the
// PostgreSQL-backed store; nil when persistence is disabled.
type SnapshotStore interface {
	LatestSnapshot(ctx context.Context) (*AggregatedStats, error)
	ListSnapshots(ctx context.Context, limit int) ([]AggregatedStats, error)
}

// Handler serves the live aggregated statistics and, when a store is
// attached, historical snapshots.
type Handler struct {
	aggregator *Aggregator
	store      SnapshotStore
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

// WithStore attaches a snapshot store for the history endpoints.
func (h *Handler) WithStore(store SnapshotStore) *Handler {
	h.store = store
	return h
}

// Stats returns the current in-memory aggregated statistics.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.aggregator.Stats())
}

// Snapshots lists persisted snapshots, newest first. The limit query
// parameter caps the result, defaulting to 10.
func (h *Handler) Snapshots(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "snapshot persistence disabled"})
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be an integer between 1 and 1000"})
			return
		}
		limit = parsed
	}

	snapshots, err := h.store.ListSnapshots(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list snapshots", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list snapshots"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"snapshots": snapshots,
		"count":     len(snapshots),
	})
}

// LatestSnapshot returns the most recently persisted snapshot.
func (h *Handler) LatestSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "snapshot persistence disabled"})
		return
	}

	snapshot, err := h.store.LatestSnapshot(r.Context())
	if err != nil {
		h.logger.Error("failed to load latest snapshot", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load snapshot"})
		return
	}
	if snapshot == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no snapshots yet"})
		return
	}
	h.writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
