// Package config loads the service configuration from YAML with
// environment overrides for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Address string `yaml:"address" validate:"required"`
}

type OpenAIConfig struct {
	// Key is normally supplied via OPENAI_API_KEY
	Key     string `yaml:"key"`
	BaseURL string `yaml:"baseURL" validate:"omitempty,url"`
	Model   string `yaml:"model" validate:"required"`
}

type GeoConfig struct {
	NominatimURL string `yaml:"nominatimURL" validate:"required,url"`
	// CacheTTLHours bounds how long a cell remembers its facts
	CacheTTLHours   int `yaml:"cacheTTLHours" validate:"gt=0"`
	CacheMaxEntries int `yaml:"cacheMaxEntries" validate:"gt=0"`
}

type TrackConfig struct {
	// IntervalsSecs is the set of fact intervals a session may choose from
	IntervalsSecs       []int `yaml:"intervalsSecs" validate:"required,min=1,dive,gt=0"`
	DefaultIntervalSecs int   `yaml:"defaultIntervalSecs" validate:"gt=0"`
	// ProduceTimeoutSecs bounds one whole fact-production attempt
	ProduceTimeoutSecs int `yaml:"produceTimeoutSecs" validate:"gt=0"`
	ResolveTimeoutSecs int `yaml:"resolveTimeoutSecs" validate:"gt=0"`
}

type DataConfig struct {
	// Path to the sqlite file; empty means in-memory only
	Path string `yaml:"path"`
}

type AppConfig struct {
	Server ServerConfig `yaml:"server" validate:"required"`
	OpenAI OpenAIConfig `yaml:"openai" validate:"required"`
	Geo    GeoConfig    `yaml:"geo" validate:"required"`
	Track  TrackConfig  `yaml:"track" validate:"required"`
	Data   DataConfig   `yaml:"data"`
}

// Default returns the built-in configuration used when no file is present.
func Default() AppConfig {
	return AppConfig{
		Server: ServerConfig{Address: ":9090"},
		OpenAI: OpenAIConfig{Model: "gpt-4o-mini"},
		Geo: GeoConfig{
			NominatimURL:    "https://nominatim.openstreetmap.org/search",
			CacheTTLHours:   24,
			CacheMaxEntries: 1000,
		},
		Track: TrackConfig{
			IntervalsSecs:       []int{300, 600, 1800, 3600},
			DefaultIntervalSecs: 600,
			ProduceTimeoutSecs:  60,
			ResolveTimeoutSecs:  10,
		},
		Data: DataConfig{Path: "wayfact.db"},
	}
}

// Load reads the config file at path, falling back to defaults when the
// file does not exist. OPENAI_API_KEY always overrides the file.
func Load(path string) (AppConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.OpenAI.Key = key
	}

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Interval returns secs as a duration if it is one of the configured
// choices, otherwise the default interval.
func (t TrackConfig) Interval(secs int) time.Duration {
	for _, s := range t.IntervalsSecs {
		if s == secs {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Duration(t.DefaultIntervalSecs) * time.Second
}

// ValidInterval reports whether secs is an allowed fact interval.
func (t TrackConfig) ValidInterval(secs int) bool {
	for _, s := range t.IntervalsSecs {
		if s == secs {
			return true
		}
	}
	return false
}
