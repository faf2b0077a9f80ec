package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ardaweather/weather-dashboard/internal/observability"
)

// NewRouter wires the dashboard routes and middleware chain. limiter may
// be nil to disable rate limiting; requestTimeout bounds the weather and
// export routes, which call the upstream provider.
func NewRouter(h *Handler, logger *zap.Logger, limiter *rate.Limiter, requestTimeout time.Duration) *mux.Router {
	r := mux.NewRouter()
	r.Use(CorrelationIDMiddleware(logger))
	r.Use(MetricsMiddleware)
	r.Use(RateLimitMiddleware(limiter))

	r.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	r.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	// Only the routes that reach the upstream provider get a deadline.
	timeout := TimeoutMiddleware(requestTimeout)
	api.Handle("/weather/{city}", timeout(http.HandlerFunc(h.GetCityWeather))).Methods(http.MethodGet)
	api.Handle("/export", timeout(http.HandlerFunc(h.ExportCSV))).Methods(http.MethodGet)

	api.HandleFunc("/weather/{city}", h.DeleteCityWeather).Methods(http.MethodDelete)
	api.HandleFunc("/admin/login", h.PostLogin).Methods(http.MethodPost)
	api.HandleFunc("/admin/logout", h.PostLogout).Methods(http.MethodPost)
	api.HandleFunc("/settings", h.GetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", h.PutSettings).Methods(http.MethodPut)
	api.HandleFunc("/theme", h.GetTheme).Methods(http.MethodGet)
	api.HandleFunc("/theme", h.PutTheme).Methods(http.MethodPut)

	return r
}
