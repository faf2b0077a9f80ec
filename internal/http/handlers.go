package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ardaweather/weather-dashboard/internal/auth"
	"github.com/ardaweather/weather-dashboard/internal/export"
	"github.com/ardaweather/weather-dashboard/internal/lifecycle"
	"github.com/ardaweather/weather-dashboard/internal/models"
	"github.com/ardaweather/weather-dashboard/internal/service"
	"github.com/ardaweather/weather-dashboard/internal/store"
	"github.com/ardaweather/weather-dashboard/internal/validation"
	"github.com/ardaweather/weather-dashboard/internal/weather"
)

const (
	cityMinLen = 1
	cityMaxLen = 100
)

// HealthConfig holds the optional dependency probes for the health handler.
type HealthConfig struct {
	// StorePing, when set, is called to check store reachability. Used when
	// the backend is memcached.
	StorePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	aggregator    *service.Aggregator
	cacheStore    store.Store
	exporter      *export.Builder
	authManager   *auth.Manager
	healthConfig  *HealthConfig
	historyWindow time.Duration
	clk           clock.Clock
	logger        *zap.Logger
}

// NewHandler returns a new Handler.
func NewHandler(
	aggregator *service.Aggregator,
	cacheStore store.Store,
	exporter *export.Builder,
	authManager *auth.Manager,
	healthConfig *HealthConfig,
	historyWindow time.Duration,
	clk clock.Clock,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		aggregator:    aggregator,
		cacheStore:    cacheStore,
		exporter:      exporter,
		authManager:   authManager,
		healthConfig:  healthConfig,
		historyWindow: historyWindow,
		clk:           clk,
		logger:        logger,
	}
}

// GetCityWeather handles GET /api/weather/{city}?from=&to=&refresh=.
// Without an explicit range the history window defaults to the last seven
// days. refresh=true forces a provider refetch regardless of freshness.
func (h *Handler) GetCityWeather(w http.ResponseWriter, r *http.Request) {
	city, err := validation.ValidateCity(mux.Vars(r)["city"], cityMinLen, cityMaxLen)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", err.Error())
		return
	}

	q := r.URL.Query()
	fromStr, toStr := q.Get("from"), q.Get("to")

	var from, to time.Time
	if fromStr == "" && toStr == "" {
		now := h.clk.Now()
		from, to = now.Add(-h.historyWindow), now
	} else {
		from, to, err = validation.ParseDateRange(fromStr, toStr)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_DATE_RANGE", err.Error())
			return
		}
	}

	forceRefresh := q.Get("refresh") == "true"

	view, err := h.aggregator.GetCityView(r.Context(), city, from, to, forceRefresh)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// DeleteCityWeather handles DELETE /api/weather/{city}. Admin only.
func (h *Handler) DeleteCityWeather(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	city, err := validation.ValidateCity(mux.Vars(r)["city"], cityMinLen, cityMaxLen)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", err.Error())
		return
	}

	deleted, err := h.cacheStore.Delete(r.Context(), store.NormalizeCity(city))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": deleted})
}

// ExportCSV handles GET /api/export?cities=a,b&from=&to=. Admin only.
// Cities with no data in range are skipped and reported in the
// X-Export-Skipped header; only an entirely empty result is an error.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	q := r.URL.Query()
	rawCities := strings.Split(q.Get("cities"), ",")
	cities := make([]string, 0, len(rawCities))
	for _, c := range rawCities {
		city, err := validation.ValidateCity(c, cityMinLen, cityMaxLen)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_CITY", err.Error())
			return
		}
		cities = append(cities, city)
	}

	from, to, err := validation.ParseDateRange(q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_DATE_RANGE", err.Error())
		return
	}

	data, skipped, err := h.exporter.Build(r.Context(), cities, from, to)
	if errors.Is(err, export.ErrNoData) {
		writeError(w, r, http.StatusNotFound, "NO_DATA", "no data to export")
		return
	}
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	if len(skipped) > 0 {
		w.Header().Set("X-Export-Skipped", strings.Join(skipped, ","))
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(h.clk.Now())+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// PostLogin handles POST /api/admin/login.
func (h *Handler) PostLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "malformed login request")
		return
	}

	token, err := h.authManager.Login(r.Context(), body.Username, body.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid credentials")
		return
	}
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// PostLogout handles POST /api/admin/logout. Admin only.
func (h *Handler) PostLogout(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	if err := h.authManager.Logout(r.Context()); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSettings handles GET /api/settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.cacheStore.UserSettings(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// PutSettings handles PUT /api/settings.
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var settings models.UserSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "malformed settings")
		return
	}
	if settings.UnitPreference != "metric" && settings.UnitPreference != "imperial" {
		writeError(w, r, http.StatusBadRequest, "INVALID_UNITS", "unitPreference must be metric or imperial")
		return
	}
	if err := h.cacheStore.SaveUserSettings(r.Context(), settings); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// GetTheme handles GET /api/theme.
func (h *Handler) GetTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := h.cacheStore.Theme(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]models.Theme{"theme": theme})
}

// PutTheme handles PUT /api/theme.
func (h *Handler) PutTheme(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Theme models.Theme `json:"theme"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "malformed theme")
		return
	}
	if !body.Theme.Valid() {
		writeError(w, r, http.StatusBadRequest, "INVALID_THEME", "theme must be light or dark")
		return
	}
	if err := h.cacheStore.SaveTheme(r.Context(), body.Theme); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]models.Theme{"theme": body.Theme})
}

// GetHealth handles GET /health. Reports shutting-down with 503 while the
// process drains; otherwise healthy, with a store reachability check when
// one is configured.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	if lifecycle.IsShuttingDown() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "shutting-down",
			"service":   "weather-dashboard",
			"timestamp": h.clk.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	status := "healthy"
	statusCode := http.StatusOK
	checks := map[string]string{}
	if h.healthConfig != nil && h.healthConfig.StorePing != nil {
		if h.healthConfig.StorePing() == nil {
			checks["store"] = "healthy"
		} else {
			checks["store"] = "unhealthy"
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, statusCode, map[string]interface{}{
		"status":    status,
		"service":   "weather-dashboard",
		"checks":    checks,
		"timestamp": h.clk.Now().UTC().Format(time.RFC3339),
	})
}

// requireAdmin enforces the Bearer token check for admin routes. Writes
// the error response and returns false when the caller is not an admin.
func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	token := bearerToken(r)
	if token == "" {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing admin token")
		return false
	}
	ok, err := h.authManager.IsAdmin(r.Context(), token)
	if err != nil {
		h.writeDomainError(w, r, err)
		return false
	}
	if !ok {
		writeError(w, r, http.StatusForbidden, "FORBIDDEN", "invalid admin token")
		return false
	}
	return true
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// writeDomainError maps domain error kinds to HTTP responses.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, weather.ErrCityNotFound):
		writeError(w, r, http.StatusNotFound, "CITY_NOT_FOUND", "city could not be resolved")
	case errors.Is(err, validation.ErrValidation):
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, weather.ErrProvider):
		writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "unable to fetch weather data")
	case errors.Is(err, store.ErrStorage):
		writeError(w, r, http.StatusInternalServerError, "STORAGE_ERROR", "persistence unavailable")
	default:
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Debug("request failed", zap.Error(err))
	}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with
// code, message, and requestId (correlation ID) if available in request
// context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}
