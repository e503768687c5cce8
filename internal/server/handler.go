package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tiertrack/tiertrack/internal/cache"
	"github.com/tiertrack/tiertrack/internal/engine"
	"github.com/tiertrack/tiertrack/internal/history"
)

// Handler exposes the engine's read/write contracts to the overlay UI: the
// cache registry get/put/clear/statistics surface and the history store's
// observation and query operations.
type Handler struct {
	engine *engine.Engine
	logger *slog.Logger
	mux    *http.ServeMux
}

// NewHandler builds the versioned API router around the engine.
func NewHandler(eng *engine.Engine, logger *slog.Logger) (*Handler, error) {
	if eng == nil {
		return nil, errors.New("server: engine required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		engine: eng,
		logger: logger.With(slog.String("agent", "api")),
		mux:    http.NewServeMux(),
	}

	h.mux.HandleFunc("GET /healthz", h.handleHealthz)
	h.mux.HandleFunc("GET /v1/stats", h.handleStats)

	h.mux.HandleFunc("POST /v1/observations", h.handleObservation)
	h.mux.HandleFunc("GET /v1/players/{id}/history", h.handleHistory)
	h.mux.HandleFunc("GET /v1/players/{id}/best", h.handleBest)
	h.mux.HandleFunc("GET /v1/players/{id}/trend", h.handleTrend)

	h.mux.HandleFunc("GET /v1/cache/identity/{name}", h.handleIdentityGet)
	h.mux.HandleFunc("PUT /v1/cache/identity/{name}", h.handleIdentityPut)
	h.mux.HandleFunc("GET /v1/cache/profiles/{id}", h.handleProfileGet)
	h.mux.HandleFunc("PUT /v1/cache/profiles/{id}", h.handleProfilePut)
	h.mux.HandleFunc("GET /v1/cache/listings/{mode}", h.handleListingGet)
	h.mux.HandleFunc("PUT /v1/cache/listings/{mode}", h.handleListingPut)
	h.mux.HandleFunc("POST /v1/cache/clear", h.handleCacheClear)

	return h, nil
}

// ServeHTTP dispatches to the versioned routes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		h.logger.Error("stats collection failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type observationRequest struct {
	PlayerID    string            `json:"playerId"`
	DisplayName string            `json:"displayName"`
	Tiers       map[string]string `json:"tiers"`
}

type observationResponse struct {
	PlayerID string                    `json:"playerId"`
	Result   history.ObservationResult `json:"result"`
	Error    string                    `json:"error,omitempty"`
}

func (h *Handler) handleObservation(w http.ResponseWriter, r *http.Request) {
	var req observationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.PlayerID) == "" {
		writeError(w, http.StatusBadRequest, "playerId required")
		return
	}

	result, err := h.engine.RecordObservation(req.PlayerID, req.DisplayName, req.Tiers)
	if err != nil {
		if errors.Is(err, history.ErrPersist) {
			// The snapshot is recorded in memory; only durability suffered.
			writeJSON(w, http.StatusInternalServerError, observationResponse{
				PlayerID: req.PlayerID,
				Result:   result,
				Error:    "history save failed",
			})
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, observationResponse{PlayerID: req.PlayerID, Result: result})
}

type historyResponse struct {
	PlayerID    string                            `json:"playerId"`
	DisplayName string                            `json:"displayName"`
	Categories  map[string][]history.TierSnapshot `json:"categories"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	playerID := r.PathValue("id")
	record, ok := h.engine.History(playerID)
	if !ok {
		writeError(w, http.StatusNotFound, "no history for player")
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{
		PlayerID:    record.PlayerID,
		DisplayName: record.DisplayName,
		Categories:  record.Categories,
	})
}

func (h *Handler) handleBest(w http.ResponseWriter, r *http.Request) {
	playerID := r.PathValue("id")
	best, ok := h.engine.BestRanking(playerID)
	if !ok {
		writeError(w, http.StatusNotFound, "no history for player")
		return
	}
	writeJSON(w, http.StatusOK, best)
}

type trendResponse struct {
	PlayerID string                 `json:"playerId"`
	Category string                 `json:"category"`
	Trend    history.TrendDirection `json:"trend"`
}

func (h *Handler) handleTrend(w http.ResponseWriter, r *http.Request) {
	playerID := r.PathValue("id")
	category := r.URL.Query().Get("category")
	if category == "" {
		writeError(w, http.StatusBadRequest, "category query parameter required")
		return
	}
	writeJSON(w, http.StatusOK, trendResponse{
		PlayerID: playerID,
		Category: category,
		Trend:    h.engine.Trend(playerID, category),
	})
}

func (h *Handler) handleIdentityGet(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	identity, ok, err := h.engine.LookupIdentity(r.Context(), name)
	if err != nil {
		h.logger.Error("identity lookup failed", slog.String("name", name), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "cache lookup failed")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "identity not cached")
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

func (h *Handler) handleIdentityPut(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var identity cache.PlayerIdentity
	if err := json.NewDecoder(r.Body).Decode(&identity); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(identity.UUID) == "" {
		writeError(w, http.StatusBadRequest, "uuid required")
		return
	}
	if identity.Name == "" {
		identity.Name = name
	}
	if err := h.engine.StoreIdentity(r.Context(), name, identity); err != nil {
		h.logger.Error("identity store failed", slog.String("name", name), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "cache store failed")
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

func (h *Handler) handleProfileGet(w http.ResponseWriter, r *http.Request) {
	playerID := r.PathValue("id")
	profile, ok, err := h.engine.LookupProfile(r.Context(), playerID)
	if err != nil {
		h.logger.Error("profile lookup failed", slog.String("player_id", playerID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "cache lookup failed")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "profile not cached")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleProfilePut(w http.ResponseWriter, r *http.Request) {
	playerID := r.PathValue("id")
	var profile cache.PlayerProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if profile.UUID == "" {
		profile.UUID = playerID
	}
	if err := h.engine.StoreProfile(r.Context(), playerID, profile); err != nil {
		h.logger.Error("profile store failed", slog.String("player_id", playerID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "cache store failed")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleListingGet(w http.ResponseWriter, r *http.Request) {
	mode := r.PathValue("mode")
	listing, ok, err := h.engine.LookupListing(r.Context(), mode)
	if err != nil {
		h.logger.Error("listing lookup failed", slog.String("mode", mode), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "cache lookup failed")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "listing not cached")
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (h *Handler) handleListingPut(w http.ResponseWriter, r *http.Request) {
	mode := r.PathValue("mode")
	var listing cache.Listing
	if err := json.NewDecoder(r.Body).Decode(&listing); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if listing.Mode == "" {
		listing.Mode = mode
	}
	if err := h.engine.StoreListing(r.Context(), mode, listing); err != nil {
		h.logger.Error("listing store failed", slog.String("mode", mode), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "cache store failed")
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (h *Handler) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.ClearCaches(r.Context()); err != nil {
		h.logger.Error("cache clear failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "cache clear failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
