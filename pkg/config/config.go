package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the client configuration.
type Config struct {
	API    APIConfig    `yaml:"api"`
	Search SearchConfig `yaml:"search"`
	Log    LogConfig    `yaml:"log"`
	DB     DBConfig     `yaml:"db"`
}

// APIConfig holds settings for the places backend.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	Key     string `yaml:"key"`
}

// SearchConfig holds fetch orchestration settings.
type SearchConfig struct {
	MinRadius        Distance `yaml:"min_radius"`
	MaxRadius        Distance `yaml:"max_radius"`
	DefaultRadius    Distance `yaml:"default_radius"`
	CacheTTL         Duration `yaml:"cache_ttl"`
	ThrottleInterval Duration `yaml:"throttle_interval"`
	RetryDelay       Duration `yaml:"retry_delay"`
	RequestTimeout   Duration `yaml:"request_timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "https://emoji-map.example.com",
			Key:     "",
		},
		Search: SearchConfig{
			MinRadius:        Distance(500),   // 500m
			MaxRadius:        Distance(50000), // 50km
			DefaultRadius:    Distance(5000),  // 5km
			CacheTTL:         Duration(5 * time.Minute),
			ThrottleInterval: Duration(2 * time.Second),
			RetryDelay:       Duration(2 * time.Second),
			RequestTimeout:   Duration(15 * time.Second),
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
		},
		DB: DBConfig{
			Path: "./data/emojimap.db",
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// If the file exists, it merges defaults with existing values but does NOT
// save back to disk (to preserve user formatting and comments).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to save config file: %w", err)
		}
	}

	// Env fallbacks apply only when the file left the value empty.
	if cfg.API.Key == "" {
		if key := os.Getenv("EMOJIMAP_API_KEY"); key != "" {
			cfg.API.Key = key
		}
	}
	if cfg.API.BaseURL == "" {
		if base := os.Getenv("EMOJIMAP_BASE_URL"); base != "" {
			cfg.API.BaseURL = base
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	s := c.Search
	if s.MinRadius > s.MaxRadius {
		return fmt.Errorf("search.min_radius (%.0fm) exceeds search.max_radius (%.0fm)",
			s.MinRadius.Meters(), s.MaxRadius.Meters())
	}
	if s.DefaultRadius < s.MinRadius || s.DefaultRadius > s.MaxRadius {
		return fmt.Errorf("search.default_radius (%.0fm) outside [min_radius, max_radius]",
			s.DefaultRadius.Meters())
	}
	if s.RequestTimeout <= 0 {
		return fmt.Errorf("search.request_timeout must be positive")
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# emoji-map client configuration
# -------------------------------
# Supported units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
#   Distance: m (meters), km (kilometers), mi (miles), ft (feet)

`)
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return Save(path, DefaultConfig())
}
