package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/bradfitz/gomemcache/memcache"

	"github.com/ardaweather/weather-dashboard/internal/config"
	"github.com/ardaweather/weather-dashboard/internal/models"
)

// MemcachedStore implements Store over memcached. City records live under
// one key per city; a separate index key lists the known city keys so
// GetAll can enumerate (memcached has no key scan). Entries are written
// without expiration: staleness is a read-time judgment, never an eviction.
type MemcachedStore struct {
	client *memcache.Client
	keys   config.StorageKeys
	units  string
	clk    clock.Clock
}

// NewMemcachedStore creates a MemcachedStore. addrs is a comma-separated
// server list; timeout and maxIdleConns use client defaults if zero.
func NewMemcachedStore(addrs string, timeout time.Duration, maxIdleConns int, keys config.StorageKeys, units string, clk clock.Clock) (*MemcachedStore, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedStore{client: client, keys: keys, units: units, clk: clk}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func (s *MemcachedStore) cityKey(city string) string {
	return s.keys.WeatherData + ":" + NormalizeCity(city)
}

func (s *MemcachedStore) indexKey() string {
	return s.keys.WeatherData + ":index"
}

// getJSON fetches and decodes one key. Misses report found=false.
func (s *MemcachedStore) getJSON(key string, v any) (bool, error) {
	item, err := s.client.Get(key)
	if err != nil {
		if err == memcache.ErrCacheMiss {
			return false, nil
		}
		return false, fmt.Errorf("%w: get %s: %v", ErrStorage, key, err)
	}
	if err := json.Unmarshal(item.Value, v); err != nil {
		return false, fmt.Errorf("%w: decode %s: %v", ErrStorage, key, err)
	}
	return true, nil
}

func (s *MemcachedStore) setJSON(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrStorage, key, err)
	}
	if err := s.client.Set(&memcache.Item{Key: key, Value: raw}); err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrStorage, key, err)
	}
	return nil
}

func (s *MemcachedStore) readIndex() ([]string, error) {
	var cities []string
	if _, err := s.getJSON(s.indexKey(), &cities); err != nil {
		return nil, err
	}
	return cities, nil
}

func (s *MemcachedStore) writeIndex(cities []string) error {
	sort.Strings(cities)
	return s.setJSON(s.indexKey(), cities)
}

// GetAll implements Store.GetAll by walking the city index.
func (s *MemcachedStore) GetAll(ctx context.Context) (map[string]models.CityRecord, error) {
	cities, err := s.readIndex()
	if err != nil {
		return nil, err
	}
	all := make(map[string]models.CityRecord, len(cities))
	for _, city := range cities {
		var rec models.CityRecord
		ok, err := s.getJSON(s.cityKey(city), &rec)
		if err != nil {
			return nil, err
		}
		if ok {
			all[city] = rec
		}
	}
	return all, nil
}

// Get implements Store.Get.
func (s *MemcachedStore) Get(ctx context.Context, city string) (models.CityRecord, bool, error) {
	var rec models.CityRecord
	ok, err := s.getJSON(s.cityKey(city), &rec)
	if err != nil {
		return models.CityRecord{}, false, err
	}
	return rec, ok, nil
}

// Put implements Store.Put and maintains the city index.
func (s *MemcachedStore) Put(ctx context.Context, city string, samples []models.WeatherSample) error {
	key := NormalizeCity(city)
	rec := models.CityRecord{
		City:        key,
		Samples:     samples,
		LastUpdated: s.clk.Now(),
	}
	if err := s.setJSON(s.cityKey(key), rec); err != nil {
		return err
	}
	cities, err := s.readIndex()
	if err != nil {
		return err
	}
	for _, c := range cities {
		if c == key {
			return nil
		}
	}
	return s.writeIndex(append(cities, key))
}

// Delete implements Store.Delete and removes the city from the index.
func (s *MemcachedStore) Delete(ctx context.Context, city string) (bool, error) {
	key := NormalizeCity(city)
	err := s.client.Delete(s.cityKey(key))
	if err == memcache.ErrCacheMiss {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: delete %s: %v", ErrStorage, key, err)
	}
	cities, err := s.readIndex()
	if err != nil {
		return true, err
	}
	kept := cities[:0]
	for _, c := range cities {
		if c != key {
			kept = append(kept, c)
		}
	}
	if err := s.writeIndex(kept); err != nil {
		return true, err
	}
	return true, nil
}

// RangeQuery implements Store.RangeQuery.
func (s *MemcachedStore) RangeQuery(ctx context.Context, city string, from, to time.Time) ([]models.WeatherSample, error) {
	rec, ok, err := s.Get(ctx, city)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []models.WeatherSample{}, nil
	}
	return filterRange(rec.Samples, from, to), nil
}

// IsStale implements Store.IsStale.
func (s *MemcachedStore) IsStale(ctx context.Context, city string, maxAge time.Duration) (bool, error) {
	rec, ok, err := s.Get(ctx, city)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return s.clk.Now().Sub(rec.LastUpdated) > maxAge, nil
}

// UserSettings implements Store.UserSettings, creating defaults on first read.
func (s *MemcachedStore) UserSettings(ctx context.Context) (models.UserSettings, error) {
	var settings models.UserSettings
	ok, err := s.getJSON(s.keys.UserSettings, &settings)
	if err != nil {
		return models.UserSettings{}, err
	}
	if !ok {
		settings = models.UserSettings{UnitPreference: s.units}
	}
	return settings, nil
}

// SaveUserSettings implements Store.SaveUserSettings.
func (s *MemcachedStore) SaveUserSettings(ctx context.Context, settings models.UserSettings) error {
	return s.setJSON(s.keys.UserSettings, settings)
}

// UpdateLastCity implements Store.UpdateLastCity.
func (s *MemcachedStore) UpdateLastCity(ctx context.Context, city string) error {
	settings, err := s.UserSettings(ctx)
	if err != nil {
		return err
	}
	settings.LastCity = city
	return s.SaveUserSettings(ctx, settings)
}

// LastCity implements Store.LastCity.
func (s *MemcachedStore) LastCity(ctx context.Context) (string, error) {
	settings, err := s.UserSettings(ctx)
	if err != nil {
		return "", err
	}
	return settings.LastCity, nil
}

// AdminToken implements Store.AdminToken.
func (s *MemcachedStore) AdminToken(ctx context.Context) (string, error) {
	var doc adminTokenDoc
	if _, err := s.getJSON(s.keys.AdminToken, &doc); err != nil {
		return "", err
	}
	return doc.Token, nil
}

// SaveAdminToken implements Store.SaveAdminToken.
func (s *MemcachedStore) SaveAdminToken(ctx context.Context, token string) error {
	return s.setJSON(s.keys.AdminToken, adminTokenDoc{Token: token})
}

// ClearAdminToken implements Store.ClearAdminToken.
func (s *MemcachedStore) ClearAdminToken(ctx context.Context) error {
	if err := s.client.Delete(s.keys.AdminToken); err != nil && err != memcache.ErrCacheMiss {
		return fmt.Errorf("%w: delete %s: %v", ErrStorage, s.keys.AdminToken, err)
	}
	return nil
}

// Theme implements Store.Theme.
func (s *MemcachedStore) Theme(ctx context.Context) (models.Theme, error) {
	var theme models.Theme
	ok, err := s.getJSON(s.keys.Theme, &theme)
	if err != nil {
		return "", err
	}
	if !ok || !theme.Valid() {
		return models.ThemeLight, nil
	}
	return theme, nil
}

// SaveTheme implements Store.SaveTheme.
func (s *MemcachedStore) SaveTheme(ctx context.Context, t models.Theme) error {
	return s.setJSON(s.keys.Theme, t)
}

// Ping checks if memcached is reachable. Used for health checks.
func (s *MemcachedStore) Ping() error {
	return s.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (s *MemcachedStore) Close() error {
	return s.client.Close()
}
