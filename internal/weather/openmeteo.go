package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"code.cloudfoundry.org/clock"

	"github.com/ardaweather/weather-dashboard/internal/models"
	"github.com/ardaweather/weather-dashboard/internal/observability"
)

// OpenMeteoAdapter implements Adapter against the Open-Meteo geocoding and
// forecast endpoints. No API key is required.
type OpenMeteoAdapter struct {
	geocodingURL string
	forecastURL  string
	client       *http.Client
	rnd          Rand
	clk          clock.Clock
}

// NewOpenMeteoAdapter creates an adapter with the given endpoint URLs and
// request timeout. rnd drives history synthesis; clk bounds it to "now".
func NewOpenMeteoAdapter(geocodingURL, forecastURL string, timeout time.Duration, rnd Rand, clk clock.Clock) *OpenMeteoAdapter {
	return &OpenMeteoAdapter{
		geocodingURL: geocodingURL,
		forecastURL:  forecastURL,
		client:       &http.Client{Timeout: timeout},
		rnd:          rnd,
		clk:          clk,
	}
}

type geocodingResponse struct {
	Results []struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Name      string  `json:"name"`
		Country   string  `json:"country"`
	} `json:"results"`
}

type currentResponse struct {
	Current struct {
		Time             string  `json:"time"`
		Temperature2m    float64 `json:"temperature_2m"`
		RelativeHumidity int     `json:"relative_humidity_2m"`
		WeatherCode      int     `json:"weather_code"`
		WindSpeed10m     float64 `json:"wind_speed_10m"`
	} `json:"current"`
}

type hourlyResponse struct {
	Hourly struct {
		Time             []string  `json:"time"`
		Temperature2m    []float64 `json:"temperature_2m"`
		RelativeHumidity []int     `json:"relative_humidity_2m"`
		WeatherCode      []int     `json:"weather_code"`
		WindSpeed10m     []float64 `json:"wind_speed_10m"`
	} `json:"hourly"`
}

// doGet issues one instrumented GET and decodes the 2xx JSON body into out.
// Non-2xx responses and transport failures surface as ErrProvider.
func (a *OpenMeteoAdapter) doGet(ctx context.Context, endpoint, rawURL string, out any) error {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrProvider, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	duration := time.Since(start).Seconds()
	if err != nil {
		observability.ProviderCallsTotal.WithLabelValues(endpoint, "error").Inc()
		observability.ProviderCallDuration.WithLabelValues(endpoint, "error").Observe(duration)
		return fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	status := "success"
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		status = "error"
	}
	observability.ProviderCallsTotal.WithLabelValues(endpoint, status).Inc()
	observability.ProviderCallDuration.WithLabelValues(endpoint, status).Observe(duration)

	if status == "error" {
		return fmt.Errorf("%w: HTTP %d", ErrProvider, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response body: %v", ErrProvider, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: parse response: %v", ErrProvider, err)
	}
	return nil
}

// ResolveCity implements Adapter.ResolveCity.
func (a *OpenMeteoAdapter) ResolveCity(ctx context.Context, name string) (models.Location, error) {
	params := url.Values{}
	params.Set("name", name)
	params.Set("count", "1")
	params.Set("language", "en")
	params.Set("format", "json")

	var geo geocodingResponse
	if err := a.doGet(ctx, "geocoding", a.geocodingURL+"?"+params.Encode(), &geo); err != nil {
		return models.Location{}, fmt.Errorf("resolve %s: %w", name, err)
	}
	if len(geo.Results) == 0 {
		return models.Location{}, fmt.Errorf("%w: %q", ErrCityNotFound, name)
	}

	r := geo.Results[0]
	return models.Location{
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Name:      r.Name,
		Country:   r.Country,
	}, nil
}

// FetchCurrent implements Adapter.FetchCurrent.
func (a *OpenMeteoAdapter) FetchCurrent(ctx context.Context, city string) (models.CurrentConditions, error) {
	loc, err := a.ResolveCity(ctx, city)
	if err != nil {
		return models.CurrentConditions{}, err
	}

	params := url.Values{}
	params.Set("latitude", formatCoord(loc.Latitude))
	params.Set("longitude", formatCoord(loc.Longitude))
	params.Set("current", "temperature_2m,relative_humidity_2m,weather_code,wind_speed_10m")
	params.Set("daily", "weather_code,temperature_2m_max,temperature_2m_min")
	params.Set("timezone", "auto")
	params.Set("forecast_days", "1")

	var cur currentResponse
	if err := a.doGet(ctx, "forecast", a.forecastURL+"?"+params.Encode(), &cur); err != nil {
		return models.CurrentConditions{}, fmt.Errorf("current conditions for %s: %w", city, err)
	}

	info := conditionFor(cur.Current.WeatherCode)
	temp := math.Round(cur.Current.Temperature2m)
	return models.CurrentConditions{
		City:    loc.Name,
		Country: loc.Country,
		Sample: models.WeatherSample{
			Time:        parseProviderTime(cur.Current.Time, a.clk),
			Temp:        temp,
			FeelsLike:   temp, // provider free tier has no apparent temperature
			Description: info.Description,
			Main:        info.Main,
			Icon:        info.Icon,
			Humidity:    cur.Current.RelativeHumidity,
			WindSpeed:   cur.Current.WindSpeed10m,
		},
	}, nil
}

// forecastPointCap bounds the hourly window returned to callers.
const forecastPointCap = 24

// FetchForecastWindow implements Adapter.FetchForecastWindow.
func (a *OpenMeteoAdapter) FetchForecastWindow(ctx context.Context, city string) (models.Forecast, error) {
	loc, err := a.ResolveCity(ctx, city)
	if err != nil {
		return models.Forecast{}, err
	}

	params := url.Values{}
	params.Set("latitude", formatCoord(loc.Latitude))
	params.Set("longitude", formatCoord(loc.Longitude))
	params.Set("hourly", "temperature_2m,relative_humidity_2m,weather_code,wind_speed_10m")
	params.Set("forecast_days", "2")
	params.Set("timezone", "auto")

	var hourly hourlyResponse
	if err := a.doGet(ctx, "forecast", a.forecastURL+"?"+params.Encode(), &hourly); err != nil {
		return models.Forecast{}, fmt.Errorf("forecast for %s: %w", city, err)
	}

	n := len(hourly.Hourly.Time)
	if n > forecastPointCap {
		n = forecastPointCap
	}
	entries := make([]models.ForecastEntry, 0, n)
	for i := 0; i < n; i++ {
		info := conditionFor(at(hourly.Hourly.WeatherCode, i))
		temp := math.Round(at(hourly.Hourly.Temperature2m, i))
		entries = append(entries, models.ForecastEntry{
			WeatherSample: models.WeatherSample{
				Time:        parseProviderTime(hourly.Hourly.Time[i], a.clk),
				Temp:        temp,
				FeelsLike:   temp,
				Description: info.Description,
				Main:        info.Main,
				Icon:        info.Icon,
				Humidity:    at(hourly.Hourly.RelativeHumidity, i),
				WindSpeed:   at(hourly.Hourly.WindSpeed10m, i),
			},
			TempMin: temp - 2,
			TempMax: temp + 2,
		})
	}

	return models.Forecast{City: loc.Name, Country: loc.Country, Entries: entries}, nil
}

// SynthesizeHistory implements Adapter.SynthesizeHistory. This is explicitly
// a simulation derived from the forecast, not measured history.
func (a *OpenMeteoAdapter) SynthesizeHistory(ctx context.Context, city string, from, to time.Time) ([]models.WeatherSample, error) {
	forecast, err := a.FetchForecastWindow(ctx, city)
	if err != nil {
		return nil, err
	}
	if len(forecast.Entries) == 0 {
		return nil, fmt.Errorf("%w: empty forecast window for %s", ErrProvider, city)
	}

	end := to
	if now := a.clk.Now(); end.After(now) {
		end = now
	}

	samples := []models.WeatherSample{}
	for t := from; !t.After(end); t = t.Add(historyStep) {
		template := forecast.Entries[a.rnd.Intn(len(forecast.Entries))]

		humidity := int(math.Round(a.perturb(float64(template.Humidity), humidityJitter)))
		if humidity < 0 {
			humidity = 0
		} else if humidity > 100 {
			humidity = 100
		}
		wind := a.perturb(template.WindSpeed, windJitter)
		if wind < 0 {
			wind = 0
		}

		samples = append(samples, models.WeatherSample{
			Time:        t,
			Temp:        a.perturb(template.Temp, tempJitter),
			FeelsLike:   a.perturb(template.Temp, feelsJitter),
			Description: template.Description,
			Main:        template.Main,
			Icon:        template.Icon,
			Humidity:    humidity,
			WindSpeed:   wind,
		})
	}
	return samples, nil
}

// perturb shifts base by a bounded symmetric random offset, rounded to one
// decimal place.
func (a *OpenMeteoAdapter) perturb(base, maxDiff float64) float64 {
	diff := a.rnd.Float64()*maxDiff*2 - maxDiff
	return math.Round((base+diff)*10) / 10
}

// parseProviderTime parses the provider's local ISO-8601 timestamps, which
// omit seconds and zone. Falls back to the clock on parse failure.
func parseProviderTime(s string, clk clock.Clock) time.Time {
	for _, layout := range []string{"2006-01-02T15:04", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return clk.Now()
}

func formatCoord(v float64) string {
	return fmt.Sprintf("%g", v)
}

// at guards against the provider returning arrays of differing lengths.
func at[T int | float64](s []T, i int) T {
	if i < len(s) {
		return s[i]
	}
	var zero T
	return zero
}
