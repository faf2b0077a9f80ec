package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ardaweather/weather-dashboard/internal/models"
	"github.com/ardaweather/weather-dashboard/internal/weather"
)

// Handler serves the snapshot CRUD routes.
type Handler struct {
	repo    Repository
	adapter weather.Adapter
	clk     clock.Clock
	logger  *zap.Logger
}

// NewHandler returns a new Handler.
func NewHandler(repo Repository, adapter weather.Adapter, clk clock.Clock, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, adapter: adapter, clk: clk, logger: logger}
}

// NewRouter wires the three snapshot routes. No authentication, matching
// the service's role as a trusted internal collaborator.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/weather/update/{city}", h.PostUpdate).Methods(http.MethodPost)
	r.HandleFunc("/api/weather/{city}", h.GetByCity).Methods(http.MethodGet)
	r.HandleFunc("/api/weather/{city}", h.DeleteByCity).Methods(http.MethodDelete)
	return r
}

// PostUpdate handles POST /api/weather/update/{city}: fetches one live
// snapshot from the provider and appends it as a new row.
func (h *Handler) PostUpdate(w http.ResponseWriter, r *http.Request) {
	city := mux.Vars(r)["city"]

	current, err := h.adapter.FetchCurrent(r.Context(), city)
	if err != nil {
		h.logger.Warn("provider fetch failed", zap.String("city", city), zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, weather.ErrCityNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{"message": "Failed to fetch data from API"})
		return
	}

	s := models.Snapshot{
		City:        city,
		Temp:        current.Sample.Temp,
		Humidity:    current.Sample.Humidity,
		WindSpeed:   current.Sample.WindSpeed,
		Description: current.Sample.Description,
		Time:        h.clk.Now().UTC().Format(time.RFC3339),
	}
	id, err := h.repo.Insert(r.Context(), s)
	if err != nil {
		h.logger.Error("insert failed", zap.String("city", city), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Database error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Weather data updated successfully",
		"id":      id,
	})
}

// GetByCity handles GET /api/weather/{city}: all rows, newest first.
func (h *Handler) GetByCity(w http.ResponseWriter, r *http.Request) {
	city := mux.Vars(r)["city"]

	rows, err := h.repo.ListByCity(r.Context(), city)
	if err != nil {
		h.logger.Error("list failed", zap.String("city", city), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Error reading from database"})
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// DeleteByCity handles DELETE /api/weather/{city}.
func (h *Handler) DeleteByCity(w http.ResponseWriter, r *http.Request) {
	city := mux.Vars(r)["city"]

	deleted, err := h.repo.DeleteByCity(r.Context(), city)
	if err != nil {
		h.logger.Error("delete failed", zap.String("city", city), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to delete data"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": fmt.Sprintf("Deleted %d record(s)", deleted),
		"deleted": deleted,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
