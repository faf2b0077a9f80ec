package weather

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/ardaweather/weather-dashboard/internal/models"
)

var (
	// ErrCityNotFound means the geocoding provider returned zero matches.
	ErrCityNotFound = errors.New("city not found")
	// ErrProvider means a transport or HTTP failure from the weather source.
	ErrProvider = errors.New("provider failure")
)

// Adapter resolves city names to coordinates and fetches weather data from
// a remote provider. History is synthesized, not measured: callers must not
// treat it as ground truth.
type Adapter interface {
	// ResolveCity geocodes a city name to coordinates and canonical name.
	ResolveCity(ctx context.Context, name string) (models.Location, error)

	// FetchCurrent resolves the city, then returns the single most recent
	// observation.
	FetchCurrent(ctx context.Context, city string) (models.CurrentConditions, error)

	// FetchForecastWindow returns a 2-day hourly forecast capped at 24 points.
	FetchForecastWindow(ctx context.Context, city string) (models.Forecast, error)

	// SynthesizeHistory generates one sample every 3 hours across
	// [from, min(to, now)] by perturbing randomly chosen entries of a
	// just-fetched forecast window.
	SynthesizeHistory(ctx context.Context, city string, from, to time.Time) ([]models.WeatherSample, error)
}

// Rand is the random source behind history synthesis, injectable so tests
// can assert exact perturbation bounds.
type Rand interface {
	// Float64 returns a value in [0.0, 1.0).
	Float64() float64
	// Intn returns a value in [0, n).
	Intn(n int) int
}

// NewRand returns a Rand backed by math/rand with the given seed.
func NewRand(seed int64) Rand {
	return rand.New(rand.NewSource(seed))
}

// Perturbation bounds for the synthesized history, symmetric around the
// template value. Temperatures are degrees, humidity percent points,
// wind the provider's speed unit.
const (
	tempJitter     = 5.0
	feelsJitter    = 3.0
	humidityJitter = 10.0
	windJitter     = 2.0
)

// historyStep is the spacing between synthesized samples.
const historyStep = 3 * time.Hour
