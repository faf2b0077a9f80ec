package weather

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"

	"github.com/ardaweather/weather-dashboard/internal/models"
)

// stubRand returns fixed values so perturbation and template choice are
// deterministic.
type stubRand struct {
	f float64
	n int
}

func (r stubRand) Float64() float64 { return r.f }
func (r stubRand) Intn(n int) int {
	if r.n >= n {
		return n - 1
	}
	return r.n
}

// newTestAdapter starts an httptest server answering both the geocoding and
// forecast paths and returns an adapter pointed at it.
func newTestAdapter(t *testing.T, geocodeBody, forecastBody string, status int) (*OpenMeteoAdapter, *fakeclock.FakeClock) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/geocode") {
			fmt.Fprint(w, geocodeBody)
			return
		}
		fmt.Fprint(w, forecastBody)
	}))
	t.Cleanup(srv.Close)

	clk := fakeclock.NewFakeClock(time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC))
	a := NewOpenMeteoAdapter(srv.URL+"/geocode", srv.URL+"/forecast", 2*time.Second, stubRand{f: 0.99, n: 0}, clk)
	return a, clk
}

const geocodeLondon = `{"results":[{"latitude":51.5,"longitude":-0.12,"name":"London","country":"United Kingdom"}]}`

func hourlyFixture(points int) string {
	var times, temps, hums, codes, winds []string
	base := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < points; i++ {
		times = append(times, fmt.Sprintf("%q", base.Add(time.Duration(i)*time.Hour).Format("2006-01-02T15:04")))
		temps = append(temps, fmt.Sprintf("%.1f", 10.0+float64(i)))
		hums = append(hums, "60")
		codes = append(codes, "2")
		winds = append(winds, "4.5")
	}
	return fmt.Sprintf(`{"hourly":{"time":[%s],"temperature_2m":[%s],"relative_humidity_2m":[%s],"weather_code":[%s],"wind_speed_10m":[%s]}}`,
		strings.Join(times, ","), strings.Join(temps, ","), strings.Join(hums, ","), strings.Join(codes, ","), strings.Join(winds, ","))
}

// TestResolveCity verifies geocoding success maps to a Location.
func TestResolveCity(t *testing.T) {
	a, _ := newTestAdapter(t, geocodeLondon, "{}", http.StatusOK)

	loc, err := a.ResolveCity(context.Background(), "London")
	if err != nil {
		t.Fatalf("ResolveCity() error = %v", err)
	}
	if loc.Name != "London" || loc.Country != "United Kingdom" {
		t.Errorf("ResolveCity() = %+v", loc)
	}
	if loc.Latitude != 51.5 || loc.Longitude != -0.12 {
		t.Errorf("ResolveCity() coords = %v,%v", loc.Latitude, loc.Longitude)
	}
}

// TestResolveCity_NotFound verifies empty results map to ErrCityNotFound.
func TestResolveCity_NotFound(t *testing.T) {
	a, _ := newTestAdapter(t, `{"results":[]}`, "{}", http.StatusOK)

	_, err := a.ResolveCity(context.Background(), "Atlantis")
	if err == nil {
		t.Fatal("ResolveCity() error = nil, want ErrCityNotFound")
	}
	if !errors.Is(err, ErrCityNotFound) {
		t.Errorf("ResolveCity() error = %v, want ErrCityNotFound", err)
	}
}

// TestResolveCity_ProviderError verifies non-2xx responses map to ErrProvider.
func TestResolveCity_ProviderError(t *testing.T) {
	a, _ := newTestAdapter(t, "", "", http.StatusBadGateway)

	_, err := a.ResolveCity(context.Background(), "London")
	if err == nil {
		t.Fatal("ResolveCity() error = nil, want ErrProvider")
	}
	if !errors.Is(err, ErrProvider) {
		t.Errorf("ResolveCity() error = %v, want ErrProvider", err)
	}
}

// TestFetchCurrent verifies the current-conditions mapping: rounded
// temperature reused as feels-like, condition table applied, canonical
// city name carried through.
func TestFetchCurrent(t *testing.T) {
	current := `{"current":{"time":"2024-01-10T12:00","temperature_2m":11.6,"relative_humidity_2m":72,"weather_code":61,"wind_speed_10m":5.4}}`
	a, _ := newTestAdapter(t, geocodeLondon, current, http.StatusOK)

	got, err := a.FetchCurrent(context.Background(), "london")
	if err != nil {
		t.Fatalf("FetchCurrent() error = %v", err)
	}
	if got.City != "London" {
		t.Errorf("City = %q, want canonical London", got.City)
	}
	if got.Sample.Temp != 12 || got.Sample.FeelsLike != 12 {
		t.Errorf("Temp/FeelsLike = %v/%v, want 12/12", got.Sample.Temp, got.Sample.FeelsLike)
	}
	if got.Sample.Description != "Slight rain" || got.Sample.Main != "Rain" || got.Sample.Icon != "10d" {
		t.Errorf("condition = %q/%q/%q", got.Sample.Description, got.Sample.Main, got.Sample.Icon)
	}
	if got.Sample.Humidity != 72 || got.Sample.WindSpeed != 5.4 {
		t.Errorf("Humidity/Wind = %v/%v", got.Sample.Humidity, got.Sample.WindSpeed)
	}
	want := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	if !got.Sample.Time.Equal(want) {
		t.Errorf("Time = %v, want %v", got.Sample.Time, want)
	}
}

// TestFetchForecastWindow_Cap verifies the hourly window is capped at 24
// points and min/max temps are simulated around the hourly temperature.
func TestFetchForecastWindow_Cap(t *testing.T) {
	a, _ := newTestAdapter(t, geocodeLondon, hourlyFixture(48), http.StatusOK)

	got, err := a.FetchForecastWindow(context.Background(), "london")
	if err != nil {
		t.Fatalf("FetchForecastWindow() error = %v", err)
	}
	if len(got.Entries) != 24 {
		t.Fatalf("Entries len = %d, want 24", len(got.Entries))
	}
	first := got.Entries[0]
	if first.TempMin != first.Temp-2 || first.TempMax != first.Temp+2 {
		t.Errorf("TempMin/TempMax = %v/%v around %v", first.TempMin, first.TempMax, first.Temp)
	}
}

// TestSynthesizeHistory verifies exact 3-hour spacing starting at from, the
// min(to, now) end bound, and that every perturbed field stays within its
// configured jitter of the template entry.
func TestSynthesizeHistory(t *testing.T) {
	a, clk := newTestAdapter(t, geocodeLondon, hourlyFixture(6), http.StatusOK)

	now := clk.Now()
	from := now.Add(-24 * time.Hour)
	to := now.Add(48 * time.Hour) // beyond now: must clamp

	samples, err := a.SynthesizeHistory(context.Background(), "london", from, to)
	if err != nil {
		t.Fatalf("SynthesizeHistory() error = %v", err)
	}
	if len(samples) == 0 {
		t.Fatal("SynthesizeHistory() returned no samples")
	}

	for i, s := range samples {
		want := from.Add(time.Duration(i) * historyStep)
		if !s.Time.Equal(want) {
			t.Errorf("samples[%d].Time = %v, want %v", i, s.Time, want)
		}
	}
	last := samples[len(samples)-1]
	if last.Time.After(now) {
		t.Errorf("last sample %v is after now %v", last.Time, now)
	}

	// stubRand.Intn(0) pins the template to the first forecast entry.
	template := models.WeatherSample{Temp: 10, Humidity: 60, WindSpeed: 4.5}
	for i, s := range samples {
		if math.Abs(s.Temp-template.Temp) > tempJitter+0.05 {
			t.Errorf("samples[%d].Temp = %v, outside ±%v of %v", i, s.Temp, tempJitter, template.Temp)
		}
		if math.Abs(s.FeelsLike-template.Temp) > feelsJitter+0.05 {
			t.Errorf("samples[%d].FeelsLike = %v, outside ±%v of %v", i, s.FeelsLike, feelsJitter, template.Temp)
		}
		if math.Abs(float64(s.Humidity)-float64(template.Humidity)) > humidityJitter+0.5 {
			t.Errorf("samples[%d].Humidity = %v, outside ±%v of %v", i, s.Humidity, humidityJitter, template.Humidity)
		}
		if math.Abs(s.WindSpeed-template.WindSpeed) > windJitter+0.05 {
			t.Errorf("samples[%d].WindSpeed = %v, outside ±%v of %v", i, s.WindSpeed, windJitter, template.WindSpeed)
		}
		if s.WindSpeed < 0 {
			t.Errorf("samples[%d].WindSpeed = %v, want non-negative", i, s.WindSpeed)
		}
		if s.Humidity < 0 || s.Humidity > 100 {
			t.Errorf("samples[%d].Humidity = %v, want 0-100", i, s.Humidity)
		}
		if s.Description != "Partly cloudy" || s.Main != "Clouds" {
			t.Errorf("samples[%d] condition = %q/%q, want template's", i, s.Description, s.Main)
		}
	}
}

// TestSynthesizeHistory_RoundsToOneDecimal verifies perturbed values carry
// at most one decimal place.
func TestSynthesizeHistory_RoundsToOneDecimal(t *testing.T) {
	a, clk := newTestAdapter(t, geocodeLondon, hourlyFixture(6), http.StatusOK)

	now := clk.Now()
	samples, err := a.SynthesizeHistory(context.Background(), "london", now.Add(-6*time.Hour), now)
	if err != nil {
		t.Fatalf("SynthesizeHistory() error = %v", err)
	}
	for i, s := range samples {
		for name, v := range map[string]float64{"Temp": s.Temp, "FeelsLike": s.FeelsLike, "WindSpeed": s.WindSpeed} {
			scaled := v * 10
			if math.Abs(scaled-math.Round(scaled)) > 1e-9 {
				t.Errorf("samples[%d].%s = %v, want one decimal place", i, name, v)
			}
		}
	}
}
