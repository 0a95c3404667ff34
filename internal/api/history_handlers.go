package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/playback-beacon/internal/store"
)

const (
	defaultBeaconLimit = 100
	maxBeaconLimit     = 1000
	historyTimeout     = 3 * time.Second
)

// HistoryHandler exposes persisted beacons read-only.
type HistoryHandler struct {
	repo    store.BeaconRepository
	timeout time.Duration
	logger  *zap.Logger
}

// NewHistoryHandler wires the repository and logger.
func NewHistoryHandler(repo store.BeaconRepository, logger *zap.Logger) *HistoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryHandler{
		repo:    repo,
		timeout: historyTimeout,
		logger:  logger,
	}
}

// ListSessionBeacons handles GET /v1/sessions/{session_id}/beacons?limit=.
// It returns {"beacons": [...]} on success, 400 for an invalid limit, 404
// when the repository reports store.ErrNotFound, 503 when no repository is
// configured, or 500 if the repository call fails. Sessions need not be live.
func (h *HistoryHandler) ListSessionBeacons(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "beacon history unavailable")
		return
	}
	limit, err := parseLimit(r, defaultBeaconLimit, maxBeaconLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := chi.URLParam(r, "session_id")
	rows, err := h.repo.ListSessionBeacons(ctx, sessionID, limit)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no beacons for session")
			return
		}
		h.logger.Error("list session beacons failed", zap.String("session_id", sessionID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list beacons")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"beacons": toBeaconDTOs(rows),
	})
}

type beaconDTO struct {
	ID             string    `json:"id"`
	Provider       string    `json:"provider"`
	Category       string    `json:"eventCategory"`
	Action         string    `json:"eventAction"`
	Label          string    `json:"eventLabel,omitempty"`
	Value          *float64  `json:"eventValue,omitempty"`
	NonInteraction bool      `json:"nonInteraction"`
	RecordedAt     time.Time `json:"recordedAt"`
}

func toBeaconDTOs(rows []store.BeaconRow) []beaconDTO {
	out := make([]beaconDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, beaconDTO{
			ID:             row.ID.String(),
			Provider:       row.Provider,
			Category:       row.Category,
			Action:         row.Action,
			Label:          row.Label,
			Value:          row.Value,
			NonInteraction: row.NonInteraction,
			RecordedAt:     row.RecordedAt.UTC(),
		})
	}
	return out
}

func parseLimit(r *http.Request, def, upper int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	if limit > upper {
		limit = upper
	}
	return limit, nil
}
