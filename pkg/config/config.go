package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the complete application configuration.
type Config struct {
	OpenSky  OpenSkyConfig  `json:"opensky"`
	Poll     PollConfig     `json:"poll"`
	Database DatabaseConfig `json:"database"`
	Metrics  MetricsConfig  `json:"metrics"`
	Observer ObserverConfig `json:"observer"`
}

// OpenSkyConfig contains OpenSky Network API settings.
type OpenSkyConfig struct {
	// BaseURL is the API root (default: "https://opensky-network.org/api")
	BaseURL string `json:"base_url"`

	// Username for basic authentication. Anonymous access works but is
	// limited to 10 second time resolution and a smaller request quota.
	Username string `json:"username"`

	// Password for basic authentication (prefer the environment variable)
	Password string `json:"password"`

	// TimeoutSeconds is the per-request HTTP timeout
	TimeoutSeconds int `json:"timeout_seconds"`

	// ObservationLagSeconds is the assumed age of a state vector whose
	// position timestamp is missing upstream
	ObservationLagSeconds int `json:"observation_lag_seconds"`
}

// PollConfig controls the collector's fetch loop.
type PollConfig struct {
	// IntervalSeconds is how often to fetch a fresh snapshot.
	// Anonymous accounts get new data every 10 seconds at best.
	IntervalSeconds int `json:"interval_seconds"`

	// Region optionally restricts polling to a bounding box
	Region *RegionConfig `json:"region,omitempty"`

	// ICAO24 optionally restricts polling to one transponder address
	ICAO24 string `json:"icao24,omitempty"`

	// PredictionHorizonSeconds is how far ahead the collector projects
	// each snapshot between polls
	PredictionHorizonSeconds int `json:"prediction_horizon_seconds"`

	// CacheTTLSeconds is how long a fetched snapshot stays valid in the
	// in-memory cache
	CacheTTLSeconds int `json:"cache_ttl_seconds"`
}

// RegionConfig is a geographic bounding box for state queries.
type RegionConfig struct {
	// Name is a friendly identifier for this region
	Name string `json:"name"`

	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	// Enabled determines whether snapshots are persisted at all
	Enabled bool `json:"enabled"`

	// Host is the database server hostname
	Host string `json:"host"`

	// Port is the database server port
	Port int `json:"port"`

	// Database is the database name
	Database string `json:"database"`

	// Username for database authentication
	Username string `json:"username"`

	// Password for database authentication (should be loaded from environment)
	Password string `json:"password"`

	// SSLMode for PostgreSQL connections (disable, require, verify-ca, verify-full)
	SSLMode string `json:"ssl_mode"`

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int `json:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int `json:"max_idle_conns"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Enabled determines if the /metrics listener starts
	Enabled bool `json:"enabled"`

	// Addr is the listen address (default: ":9108")
	Addr string `json:"addr"`
}

// ObserverConfig contains the reference location used for distance ranking.
type ObserverConfig struct {
	// Name is a friendly identifier for this observer location
	Name string `json:"name"`

	// Latitude in decimal degrees (-90 to +90)
	Latitude float64 `json:"latitude"`

	// Longitude in decimal degrees (-180 to +180)
	Longitude float64 `json:"longitude"`
}

// Load reads configuration from a JSON file.
// If the file doesn't exist, returns a default configuration.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvironmentOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()

	return &cfg, nil
}

// Save writes the configuration to a JSON file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		OpenSky: OpenSkyConfig{
			BaseURL:               "https://opensky-network.org/api",
			TimeoutSeconds:        15,
			ObservationLagSeconds: 15,
		},
		Poll: PollConfig{
			IntervalSeconds:          10,
			PredictionHorizonSeconds: 5,
			CacheTTLSeconds:          10,
		},
		Database: DatabaseConfig{
			Enabled:      false,
			Host:         "localhost",
			Port:         5432,
			Database:     "openskyscope",
			Username:     "openskyscope",
			SSLMode:      "disable",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9108",
		},
		Observer: ObserverConfig{
			Name:      "Primary Observer",
			Latitude:  0.0,
			Longitude: 0.0,
		},
	}
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
// This allows sensitive data like passwords to be kept out of config files.
func (c *Config) applyEnvironmentOverrides() {
	if user := os.Getenv("SKYSCOPE_OPENSKY_USERNAME"); user != "" {
		c.OpenSky.Username = user
	}
	if pass := os.Getenv("SKYSCOPE_OPENSKY_PASSWORD"); pass != "" {
		c.OpenSky.Password = pass
	}
	if url := os.Getenv("SKYSCOPE_OPENSKY_URL"); url != "" {
		c.OpenSky.BaseURL = url
	}
	if dbPassword := os.Getenv("SKYSCOPE_DB_PASSWORD"); dbPassword != "" {
		c.Database.Password = dbPassword
	}
	if addr := os.Getenv("SKYSCOPE_METRICS_ADDR"); addr != "" {
		c.Metrics.Addr = addr
	}
}
