package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ardaweather/weather-dashboard/internal/models"
)

// ErrStorage indicates the persistence medium is unavailable. Absence of a
// record is never an error; it is reported through the ok/bool results.
var ErrStorage = errors.New("storage unavailable")

// Store is the contract for per-city weather snapshot persistence plus the
// user settings, admin session marker, and theme documents. Every write
// persists durably before returning; there is no write-behind or batching.
//
// City keys are case-insensitive: implementations collapse the city argument
// to its lower-cased form before lookup or store.
type Store interface {
	// GetAll returns every cached city record keyed by normalized city key.
	// Returns an empty map when uninitialized.
	GetAll(ctx context.Context) (map[string]models.CityRecord, error)

	// Get returns the record for a city, reporting absence via ok=false.
	Get(ctx context.Context, city string) (models.CityRecord, bool, error)

	// Put replaces any existing record for the city with the given samples
	// and a lastUpdated stamp of now. Full overwrite; no merge, no append.
	Put(ctx context.Context, city string, samples []models.WeatherSample) error

	// Delete removes a city's record, reporting whether one existed.
	Delete(ctx context.Context, city string) (bool, error)

	// RangeQuery returns the subset of the city's stored samples whose time
	// falls in [from, to] inclusive, in stored order. Empty if city absent.
	RangeQuery(ctx context.Context, city string, from, to time.Time) ([]models.WeatherSample, error)

	// IsStale reports whether the city's record is missing or older than
	// maxAge. Pure read-time judgment of lastUpdated against the clock;
	// nothing is mutated or evicted.
	IsStale(ctx context.Context, city string, maxAge time.Duration) (bool, error)

	// UserSettings returns the settings singleton, created with defaults at
	// first run.
	UserSettings(ctx context.Context) (models.UserSettings, error)
	SaveUserSettings(ctx context.Context, s models.UserSettings) error

	// UpdateLastCity mutates only the lastCity field of the settings.
	UpdateLastCity(ctx context.Context, city string) error
	LastCity(ctx context.Context) (string, error)

	// AdminToken returns the opaque session token, or "" when absent.
	AdminToken(ctx context.Context) (string, error)
	SaveAdminToken(ctx context.Context, token string) error
	ClearAdminToken(ctx context.Context) error

	Theme(ctx context.Context) (models.Theme, error)
	SaveTheme(ctx context.Context, t models.Theme) error
}

// NormalizeCity collapses a city name to its cache lookup identity.
func NormalizeCity(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

// filterRange returns the samples whose time falls in [from, to], both
// bounds inclusive, preserving stored order.
func filterRange(samples []models.WeatherSample, from, to time.Time) []models.WeatherSample {
	out := []models.WeatherSample{}
	for _, s := range samples {
		if s.Time.Before(from) || s.Time.After(to) {
			continue
		}
		out = append(out, s)
	}
	return out
}
