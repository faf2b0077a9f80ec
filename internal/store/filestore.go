package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"

	"github.com/ardaweather/weather-dashboard/internal/config"
	"github.com/ardaweather/weather-dashboard/internal/models"
)

// FileStore implements Store on JSON documents under a data directory, one
// file per storage key. It is the durable single-user store; concurrent
// writers from separate processes are last-writer-wins with no detection.
type FileStore struct {
	dir   string
	keys  config.StorageKeys
	units string
	clk   clock.Clock

	mu sync.Mutex
}

// adminTokenDoc wraps the opaque token so the file stays a JSON document.
type adminTokenDoc struct {
	Token string `json:"token"`
}

// NewFileStore creates the data directory if needed and initializes the
// settings and theme documents with defaults on first run.
func NewFileStore(dir string, keys config.StorageKeys, units string, clk clock.Clock) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create data dir: %v", ErrStorage, err)
	}
	s := &FileStore{dir: dir, keys: keys, units: units, clk: clk}
	if err := s.initDefaults(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) initDefaults() error {
	if _, err := os.Stat(s.path(s.keys.WeatherData)); os.IsNotExist(err) {
		if err := s.writeDoc(s.keys.WeatherData, map[string]models.CityRecord{}); err != nil {
			return err
		}
	}
	if _, err := os.Stat(s.path(s.keys.UserSettings)); os.IsNotExist(err) {
		defaults := models.UserSettings{UnitPreference: s.units}
		if err := s.writeDoc(s.keys.UserSettings, defaults); err != nil {
			return err
		}
	}
	if _, err := os.Stat(s.path(s.keys.Theme)); os.IsNotExist(err) {
		if err := s.writeDoc(s.keys.Theme, models.ThemeLight); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *FileStore) writeDoc(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrStorage, key, err)
	}
	if err := os.WriteFile(s.path(key), raw, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrStorage, key, err)
	}
	return nil
}

// readDoc decodes the document for key into v. Missing files report
// found=false and leave v untouched.
func (s *FileStore) readDoc(key string, v any) (bool, error) {
	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: read %s: %v", ErrStorage, key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("%w: decode %s: %v", ErrStorage, key, err)
	}
	return true, nil
}

func (s *FileStore) readAll() (map[string]models.CityRecord, error) {
	all := map[string]models.CityRecord{}
	if _, err := s.readDoc(s.keys.WeatherData, &all); err != nil {
		return nil, err
	}
	return all, nil
}

// GetAll implements Store.GetAll.
func (s *FileStore) GetAll(ctx context.Context) (map[string]models.CityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAll()
}

// Get implements Store.Get with case-insensitive key collapse.
func (s *FileStore) Get(ctx context.Context, city string) (models.CityRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.readAll()
	if err != nil {
		return models.CityRecord{}, false, err
	}
	rec, ok := all[NormalizeCity(city)]
	return rec, ok, nil
}

// Put implements Store.Put. The write is a wholesale replace of the city's
// record, stamped with the clock's current time.
func (s *FileStore) Put(ctx context.Context, city string, samples []models.WeatherSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.readAll()
	if err != nil {
		return err
	}
	key := NormalizeCity(city)
	all[key] = models.CityRecord{
		City:        key,
		Samples:     samples,
		LastUpdated: s.clk.Now(),
	}
	return s.writeDoc(s.keys.WeatherData, all)
}

// Delete implements Store.Delete.
func (s *FileStore) Delete(ctx context.Context, city string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.readAll()
	if err != nil {
		return false, err
	}
	key := NormalizeCity(city)
	if _, ok := all[key]; !ok {
		return false, nil
	}
	delete(all, key)
	if err := s.writeDoc(s.keys.WeatherData, all); err != nil {
		return false, err
	}
	return true, nil
}

// RangeQuery implements Store.RangeQuery.
func (s *FileStore) RangeQuery(ctx context.Context, city string, from, to time.Time) ([]models.WeatherSample, error) {
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
func (s *FileStore) IsStale(ctx context.Context, city string, maxAge time.Duration) (bool, error) {
	rec, ok, err := s.Get(ctx, city)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return s.clk.Now().Sub(rec.LastUpdated) > maxAge, nil
}

// UserSettings implements Store.UserSettings.
func (s *FileStore) UserSettings(ctx context.Context) (models.UserSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings := models.UserSettings{UnitPreference: s.units}
	if _, err := s.readDoc(s.keys.UserSettings, &settings); err != nil {
		return models.UserSettings{}, err
	}
	return settings, nil
}

// SaveUserSettings implements Store.SaveUserSettings.
func (s *FileStore) SaveUserSettings(ctx context.Context, settings models.UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeDoc(s.keys.UserSettings, settings)
}

// UpdateLastCity implements Store.UpdateLastCity.
func (s *FileStore) UpdateLastCity(ctx context.Context, city string) error {
	settings, err := s.UserSettings(ctx)
	if err != nil {
		return err
	}
	settings.LastCity = city
	return s.SaveUserSettings(ctx, settings)
}

// LastCity implements Store.LastCity.
func (s *FileStore) LastCity(ctx context.Context) (string, error) {
	settings, err := s.UserSettings(ctx)
	if err != nil {
		return "", err
	}
	return settings.LastCity, nil
}

// AdminToken implements Store.AdminToken.
func (s *FileStore) AdminToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var doc adminTokenDoc
	if _, err := s.readDoc(s.keys.AdminToken, &doc); err != nil {
		return "", err
	}
	return doc.Token, nil
}

// SaveAdminToken implements Store.SaveAdminToken.
func (s *FileStore) SaveAdminToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeDoc(s.keys.AdminToken, adminTokenDoc{Token: token})
}

// ClearAdminToken implements Store.ClearAdminToken.
func (s *FileStore) ClearAdminToken(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(s.keys.AdminToken)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: remove %s: %v", ErrStorage, s.keys.AdminToken, err)
	}
	return nil
}

// Theme implements Store.Theme.
func (s *FileStore) Theme(ctx context.Context) (models.Theme, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	theme := models.ThemeLight
	if _, err := s.readDoc(s.keys.Theme, &theme); err != nil {
		return "", err
	}
	if !theme.Valid() {
		theme = models.ThemeLight
	}
	return theme, nil
}

// SaveTheme implements Store.SaveTheme.
func (s *FileStore) SaveTheme(ctx context.Context, t models.Theme) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeDoc(s.keys.Theme, t)
}
