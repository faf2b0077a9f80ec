package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// StorageKeys names the durable documents the cache store writes.
type StorageKeys struct {
	WeatherData  string
	UserSettings string
	AdminToken   string
	Theme        string
}

// Config holds dashboard and snapshot service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	GeocodingURL    string
	ForecastURL     string
	ProviderTimeout time.Duration

	UpdateInterval time.Duration
	HistoryDays    int
	Units          string
	DefaultCities  []string

	StoreBackend          string // "file" or "memcached"
	DataDir               string
	Keys                  StorageKeys
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RateLimitRPS   int
	RateLimitBurst int

	AdminUsername string
	AdminPassword string

	SnapshotPort        string
	SnapshotDBBackend   string // "sqlite" or "postgres"
	SnapshotSQLitePath  string
	SnapshotPostgresDSN string

	ShutdownTimeout time.Duration
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Provider struct {
		GeocodingURL string `yaml:"geocoding_url"`
		ForecastURL  string `yaml:"forecast_url"`
		Timeout      string `yaml:"timeout"`
	} `yaml:"provider"`

	App struct {
		UpdateInterval string   `yaml:"update_interval"`
		HistoryDays    int      `yaml:"history_days"`
		Units          string   `yaml:"units"`
		DefaultCities  []string `yaml:"default_cities"`
	} `yaml:"app"`

	Storage struct {
		Backend string `yaml:"backend"`
		DataDir string `yaml:"data_dir"`
		Keys    struct {
			WeatherData  string `yaml:"weather_data"`
			UserSettings string `yaml:"user_settings"`
			AdminToken   string `yaml:"admin_token"`
			Theme        string `yaml:"theme"`
		} `yaml:"keys"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"storage"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Snapshot struct {
		Port        string `yaml:"port"`
		DBBackend   string `yaml:"db_backend"`
		SQLitePath  string `yaml:"sqlite_path"`
		PostgresDSN string `yaml:"postgres_dsn"`
	} `yaml:"snapshot"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

type secretsFile struct {
	AdminUsername string `yaml:"admin_username"`
	AdminPassword string `yaml:"admin_password"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev).
// A .env file, if present, is loaded into the environment first; admin
// credentials come from ADMIN_USERNAME/ADMIN_PASSWORD env or
// config/secrets.yaml. Call from project root.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.GeocodingURL = fc.Provider.GeocodingURL
	if cfg.GeocodingURL == "" {
		cfg.GeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	}
	cfg.ForecastURL = fc.Provider.ForecastURL
	if cfg.ForecastURL == "" {
		cfg.ForecastURL = "https://api.open-meteo.com/v1/forecast"
	}
	cfg.ProviderTimeout = parseDuration(fc.Provider.Timeout, 5*time.Second)

	cfg.UpdateInterval = parseDuration(fc.App.UpdateInterval, 15*time.Minute)
	cfg.HistoryDays = fc.App.HistoryDays
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = 7
	}
	cfg.Units = strings.TrimSpace(strings.ToLower(fc.App.Units))
	if cfg.Units == "" {
		cfg.Units = "metric"
	}
	cfg.DefaultCities = fc.App.DefaultCities
	if len(cfg.DefaultCities) == 0 {
		cfg.DefaultCities = []string{
			"London", "New York", "Tokyo", "Paris", "Istanbul",
			"Berlin", "Rome", "Sydney", "Cairo", "Rio de Janeiro",
		}
	}

	cfg.StoreBackend = strings.TrimSpace(strings.ToLower(os.Getenv("STORE_BACKEND")))
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = strings.TrimSpace(strings.ToLower(fc.Storage.Backend))
	}
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = "file"
	}
	cfg.DataDir = fc.Storage.DataDir
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	cfg.Keys = StorageKeys{
		WeatherData:  defaultString(fc.Storage.Keys.WeatherData, "ardaWeather_data"),
		UserSettings: defaultString(fc.Storage.Keys.UserSettings, "ardaWeather_settings"),
		AdminToken:   defaultString(fc.Storage.Keys.AdminToken, "ardaWeather_admin_token"),
		Theme:        defaultString(fc.Storage.Keys.Theme, "ardaWeather_theme"),
	}
	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Storage.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Storage.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Storage.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}

	cfg.AdminUsername = os.Getenv("ADMIN_USERNAME")
	cfg.AdminPassword = os.Getenv("ADMIN_PASSWORD")
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		secretsPath := filepath.Join(cwd, "config", "secrets.yaml")
		secretsData, err := os.ReadFile(secretsPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read secrets file: %w", err)
			}
		} else {
			var sec secretsFile
			if err := yaml.Unmarshal(secretsData, &sec); err != nil {
				return nil, fmt.Errorf("parse secrets file: %w", err)
			}
			if cfg.AdminUsername == "" {
				cfg.AdminUsername = sec.AdminUsername
			}
			if cfg.AdminPassword == "" {
				cfg.AdminPassword = sec.AdminPassword
			}
		}
	}
	if cfg.AdminUsername == "" {
		return nil, fmt.Errorf("ADMIN_USERNAME required (set env or config/secrets.yaml admin_username)")
	}
	if cfg.AdminPassword == "" {
		return nil, fmt.Errorf("ADMIN_PASSWORD required (set env or config/secrets.yaml admin_password)")
	}

	cfg.SnapshotPort = fc.Snapshot.Port
	if cfg.SnapshotPort == "" {
		cfg.SnapshotPort = "3001"
	}
	cfg.SnapshotDBBackend = strings.TrimSpace(strings.ToLower(os.Getenv("SNAPSHOT_DB_BACKEND")))
	if cfg.SnapshotDBBackend == "" {
		cfg.SnapshotDBBackend = strings.TrimSpace(strings.ToLower(fc.Snapshot.DBBackend))
	}
	if cfg.SnapshotDBBackend == "" {
		cfg.SnapshotDBBackend = "sqlite"
	}
	cfg.SnapshotSQLitePath = fc.Snapshot.SQLitePath
	if cfg.SnapshotSQLitePath == "" {
		cfg.SnapshotSQLitePath = "weather.db"
	}
	cfg.SnapshotPostgresDSN = os.Getenv("SNAPSHOT_POSTGRES_DSN")
	if cfg.SnapshotPostgresDSN == "" {
		cfg.SnapshotPostgresDSN = fc.Snapshot.PostgresDSN
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration parses a duration string and returns defaultVal if the string
// is empty, unparseable, or the result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func defaultString(s, defaultVal string) string {
	if strings.TrimSpace(s) == "" {
		return defaultVal
	}
	return s
}

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	switch cfg.Units {
	case "metric", "imperial":
	default:
		return fmt.Errorf("app.units must be metric or imperial, got %q", cfg.Units)
	}
	switch cfg.StoreBackend {
	case "file", "memcached":
	default:
		return fmt.Errorf("storage.backend must be file or memcached, got %q", cfg.StoreBackend)
	}
	switch cfg.SnapshotDBBackend {
	case "sqlite":
	case "postgres":
		if cfg.SnapshotPostgresDSN == "" {
			return fmt.Errorf("snapshot.postgres_dsn required when db_backend is postgres")
		}
	default:
		return fmt.Errorf("snapshot.db_backend must be sqlite or postgres, got %q", cfg.SnapshotDBBackend)
	}
	return nil
}
