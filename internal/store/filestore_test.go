package store

import (
	"context"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"

	"github.com/ardaweather/weather-dashboard/internal/config"
	"github.com/ardaweather/weather-dashboard/internal/models"
)

var testKeys = config.StorageKeys{
	WeatherData:  "ardaWeather_data",
	UserSettings: "ardaWeather_settings",
	AdminToken:   "ardaWeather_admin_token",
	Theme:        "ardaWeather_theme",
}

func newTestStore(t *testing.T) (*FileStore, *fakeclock.FakeClock) {
	t.Helper()
	clk := fakeclock.NewFakeClock(time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC))
	s, err := NewFileStore(t.TempDir(), testKeys, "metric", clk)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	return s, clk
}

func sampleAt(ts time.Time, temp float64) models.WeatherSample {
	return models.WeatherSample{
		Time:        ts,
		Temp:        temp,
		FeelsLike:   temp - 1,
		Description: "Partly cloudy",
		Main:        "Clouds",
		Icon:        "03d",
		Humidity:    60,
		WindSpeed:   4.2,
	}
}

// TestFileStore_PutGetRoundTrip verifies Put followed by Get returns the
// samples exactly and a lastUpdated not before the instant of the call.
func TestFileStore_PutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, clk := newTestStore(t)

	samples := []models.WeatherSample{
		sampleAt(clk.Now().Add(-3*time.Hour), 10.5),
		sampleAt(clk.Now().Add(-6*time.Hour), 8.1),
	}
	before := clk.Now()
	if err := s.Put(ctx, "London", samples); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	rec, ok, err := s.Get(ctx, "London")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if len(rec.Samples) != len(samples) {
		t.Fatalf("Samples len = %d, want %d", len(rec.Samples), len(samples))
	}
	for i := range samples {
		if !rec.Samples[i].Time.Equal(samples[i].Time) || rec.Samples[i].Temp != samples[i].Temp {
			t.Errorf("Samples[%d] = %+v, want %+v", i, rec.Samples[i], samples[i])
		}
	}
	if rec.LastUpdated.Before(before) {
		t.Errorf("LastUpdated = %v, want >= %v", rec.LastUpdated, before)
	}
	if rec.City != "london" {
		t.Errorf("City = %q, want normalized %q", rec.City, "london")
	}
}

// TestFileStore_PutOverwrite verifies Put is a full replace: after a second
// Put only the second sample set is visible.
func TestFileStore_PutOverwrite(t *testing.T) {
	ctx := context.Background()
	s, clk := newTestStore(t)

	first := []models.WeatherSample{sampleAt(clk.Now().Add(-time.Hour), 1)}
	second := []models.WeatherSample{
		sampleAt(clk.Now().Add(-2*time.Hour), 2),
		sampleAt(clk.Now().Add(-4*time.Hour), 3),
	}

	if err := s.Put(ctx, "paris", first); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Put(ctx, "paris", second); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	rec, _, err := s.Get(ctx, "paris")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(rec.Samples) != 2 || rec.Samples[0].Temp != 2 {
		t.Errorf("Samples = %+v, want only the second set", rec.Samples)
	}
}

// TestFileStore_CaseInsensitiveKeys verifies put("Paris") resolves through
// get("paris") and get("PARIS").
func TestFileStore_CaseInsensitiveKeys(t *testing.T) {
	ctx := context.Background()
	s, clk := newTestStore(t)

	if err := s.Put(ctx, "Paris", []models.WeatherSample{sampleAt(clk.Now(), 12)}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	for _, name := range []string{"paris", "PARIS", "Paris"} {
		_, ok, err := s.Get(ctx, name)
		if err != nil {
			t.Fatalf("Get(%q) error = %v", name, err)
		}
		if !ok {
			t.Errorf("Get(%q) ok = false, want true", name)
		}
	}
}

// TestFileStore_Delete verifies delete on an absent city returns false and a
// present city returns true with a subsequent absent Get.
func TestFileStore_Delete(t *testing.T) {
	ctx := context.Background()
	s, clk := newTestStore(t)

	existed, err := s.Delete(ctx, "tokyo")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if existed {
		t.Error("Delete() on absent city = true, want false")
	}

	if err := s.Put(ctx, "tokyo", []models.WeatherSample{sampleAt(clk.Now(), 20)}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	existed, err = s.Delete(ctx, "Tokyo")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !existed {
		t.Error("Delete() on present city = false, want true")
	}
	if _, ok, _ := s.Get(ctx, "tokyo"); ok {
		t.Error("Get() after delete ok = true, want false")
	}
}

// TestFileStore_IsStale verifies the three staleness cases: no record,
// fresh record, and record older than the freshness window.
func TestFileStore_IsStale(t *testing.T) {
	ctx := context.Background()
	s, clk := newTestStore(t)

	stale, err := s.IsStale(ctx, "berlin", 15*time.Minute)
	if err != nil {
		t.Fatalf("IsStale() error = %v", err)
	}
	if !stale {
		t.Error("IsStale() for unknown city = false, want true")
	}

	if err := s.Put(ctx, "berlin", []models.WeatherSample{sampleAt(clk.Now(), 5)}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	stale, _ = s.IsStale(ctx, "berlin", 15*time.Minute)
	if stale {
		t.Error("IsStale() immediately after Put = true, want false")
	}

	clk.Increment(14 * time.Minute)
	stale, _ = s.IsStale(ctx, "berlin", 15*time.Minute)
	if stale {
		t.Error("IsStale() within window = true, want false")
	}

	clk.Increment(2 * time.Minute)
	stale, _ = s.IsStale(ctx, "berlin", 15*time.Minute)
	if !stale {
		t.Error("IsStale() past window = false, want true")
	}
}

// TestFileStore_RangeQuery verifies inclusive bounds on both ends, stored
// order preservation, and empty result for an absent city.
func TestFileStore_RangeQuery(t *testing.T) {
	ctx := context.Background()
	s, clk := newTestStore(t)

	from := clk.Now().Add(-24 * time.Hour)
	to := clk.Now().Add(-12 * time.Hour)
	samples := []models.WeatherSample{
		sampleAt(to, 4),                     // exactly at to: included
		sampleAt(from.Add(-time.Second), 1), // before from: excluded
		sampleAt(from, 2),                   // exactly at from: included
		sampleAt(from.Add(6*time.Hour), 3),  // inside: included
		sampleAt(to.Add(time.Second), 5),    // after to: excluded
	}
	if err := s.Put(ctx, "rome", samples); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := s.RangeQuery(ctx, "rome", from, to)
	if err != nil {
		t.Fatalf("RangeQuery() error = %v", err)
	}
	wantTemps := []float64{4, 2, 3} // stored order, not time order
	if len(got) != len(wantTemps) {
		t.Fatalf("RangeQuery() len = %d, want %d", len(got), len(wantTemps))
	}
	for i, w := range wantTemps {
		if got[i].Temp != w {
			t.Errorf("RangeQuery()[%d].Temp = %v, want %v", i, got[i].Temp, w)
		}
	}

	empty, err := s.RangeQuery(ctx, "atlantis", from, to)
	if err != nil {
		t.Fatalf("RangeQuery() error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("RangeQuery() for absent city len = %d, want 0", len(empty))
	}
}

// TestFileStore_GetAll verifies GetAll returns the empty map on a fresh
// store and every record after puts.
func TestFileStore_GetAll(t *testing.T) {
	ctx := context.Background()
	s, clk := newTestStore(t)

	all, err := s.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(all) != 0 {
		t.Errorf("GetAll() on fresh store len = %d, want 0", len(all))
	}

	_ = s.Put(ctx, "Oslo", []models.WeatherSample{sampleAt(clk.Now(), 1)})
	_ = s.Put(ctx, "Cairo", []models.WeatherSample{sampleAt(clk.Now(), 2)})

	all, err = s.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("GetAll() len = %d, want 2", len(all))
	}
	if _, ok := all["oslo"]; !ok {
		t.Error("GetAll() missing normalized key oslo")
	}
}

// TestFileStore_SettingsDefaults verifies first-run initialization: settings
// with the configured unit, no last city, theme light.
func TestFileStore_SettingsDefaults(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	settings, err := s.UserSettings(ctx)
	if err != nil {
		t.Fatalf("UserSettings() error = %v", err)
	}
	if settings.UnitPreference != "metric" {
		t.Errorf("UnitPreference = %q, want metric", settings.UnitPreference)
	}
	if settings.LastCity != "" {
		t.Errorf("LastCity = %q, want empty", settings.LastCity)
	}

	theme, err := s.Theme(ctx)
	if err != nil {
		t.Fatalf("Theme() error = %v", err)
	}
	if theme != models.ThemeLight {
		t.Errorf("Theme = %q, want light", theme)
	}
}

// TestFileStore_UpdateLastCity verifies only lastCity mutates.
func TestFileStore_UpdateLastCity(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	if err := s.UpdateLastCity(ctx, "Istanbul"); err != nil {
		t.Fatalf("UpdateLastCity() error = %v", err)
	}
	city, err := s.LastCity(ctx)
	if err != nil {
		t.Fatalf("LastCity() error = %v", err)
	}
	if city != "Istanbul" {
		t.Errorf("LastCity() = %q, want Istanbul", city)
	}
	settings, _ := s.UserSettings(ctx)
	if settings.UnitPreference != "metric" {
		t.Errorf("UnitPreference changed to %q, want metric", settings.UnitPreference)
	}
}

// TestFileStore_AdminToken verifies the save/read/clear cycle and that a
// cleared token reads back empty.
func TestFileStore_AdminToken(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	token, err := s.AdminToken(ctx)
	if err != nil {
		t.Fatalf("AdminToken() error = %v", err)
	}
	if token != "" {
		t.Errorf("AdminToken() on fresh store = %q, want empty", token)
	}

	if err := s.SaveAdminToken(ctx, "opaque-token"); err != nil {
		t.Fatalf("SaveAdminToken() error = %v", err)
	}
	token, _ = s.AdminToken(ctx)
	if token != "opaque-token" {
		t.Errorf("AdminToken() = %q, want opaque-token", token)
	}

	if err := s.ClearAdminToken(ctx); err != nil {
		t.Fatalf("ClearAdminToken() error = %v", err)
	}
	token, _ = s.AdminToken(ctx)
	if token != "" {
		t.Errorf("AdminToken() after clear = %q, want empty", token)
	}
}

// TestFileStore_ThemeRoundTrip verifies theme persistence survives a store
// reopen on the same directory.
func TestFileStore_ThemeRoundTrip(t *testing.T) {
	ctx := context.Background()
	clk := fakeclock.NewFakeClock(time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC))
	dir := t.TempDir()

	s, err := NewFileStore(dir, testKeys, "metric", clk)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	if err := s.SaveTheme(ctx, models.ThemeDark); err != nil {
		t.Fatalf("SaveTheme() error = %v", err)
	}

	reopened, err := NewFileStore(dir, testKeys, "metric", clk)
	if err != nil {
		t.Fatalf("NewFileStore() reopen error = %v", err)
	}
	theme, err := reopened.Theme(ctx)
	if err != nil {
		t.Fatalf("Theme() error = %v", err)
	}
	if theme != models.ThemeDark {
		t.Errorf("Theme() after reopen = %q, want dark", theme)
	}
}
