package models

import "time"

// WeatherSample is one point-in-time observation. Immutable once created.
// Temp and FeelsLike are in the configured unit; Humidity is 0-100.
type WeatherSample struct {
	Time        time.Time `json:"time"`
	Temp        float64   `json:"temp"`
	FeelsLike   float64   `json:"feels_like"`
	Description string    `json:"description"`
	Main        string    `json:"main"`
	Icon        string    `json:"icon"`
	Humidity    int       `json:"humidity"`
	WindSpeed   float64   `json:"wind_speed"`
}

// CityRecord is the full cached state for one city: its sample sequence
// plus the instant the record was written. Samples keep insertion order
// from the fetch; they are not guaranteed time-sorted.
type CityRecord struct {
	City        string          `json:"city"`
	Samples     []WeatherSample `json:"samples"`
	LastUpdated time.Time       `json:"lastUpdated"`
}

// Location is a geocoding result for a city name.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name"`
	Country   string  `json:"country"`
}

// CurrentConditions is the most recent observation for a resolved city.
type CurrentConditions struct {
	City    string        `json:"city"`
	Country string        `json:"country"`
	Sample  WeatherSample `json:"sample"`
}

// ForecastEntry is one hourly forecast point. TempMin/TempMax are
// simulated around Temp; the provider's free tier does not supply them.
type ForecastEntry struct {
	WeatherSample
	TempMin float64 `json:"temp_min"`
	TempMax float64 `json:"temp_max"`
}

// Forecast is a short-horizon hourly forecast window for a resolved city.
type Forecast struct {
	City    string          `json:"city"`
	Country string          `json:"country"`
	Entries []ForecastEntry `json:"list"`
}

// CityView is the merged per-city view the presentation layer consumes.
// History is filtered to the requested date range.
type CityView struct {
	Current  CurrentConditions `json:"current"`
	Forecast Forecast          `json:"forecast"`
	History  []WeatherSample   `json:"history"`
}

// UserSettings is the singleton user preference record.
type UserSettings struct {
	LastCity       string `json:"lastCity,omitempty"`
	UnitPreference string `json:"unitPreference"`
}

// Theme is the UI theme preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Valid reports whether t is a known theme value.
func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

// Snapshot is one persisted weather row in the snapshot service.
// Time is ISO-8601 text, matching the table's column type.
type Snapshot struct {
	ID          int64   `json:"id"`
	City        string  `json:"city"`
	Temp        float64 `json:"temp"`
	Humidity    int     `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
	Description string  `json:"description"`
	Time        string  `json:"time"`
}
