// Package config loads pipeline configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"keiba-feature-lab/internal/domain"
)

// FetchConfig configures the page fetcher.
type FetchConfig struct {
	DBBaseURL   string `yaml:"db_base_url"`
	RaceBaseURL string `yaml:"race_base_url"`
	UserAgent   string `yaml:"user_agent"`
	DelayMillis int    `yaml:"delay_millis"`
	CacheDir    string `yaml:"cache_dir"`
	Workers     int    `yaml:"workers"`
}

// Delay returns the request pacing delay.
func (f FetchConfig) Delay() time.Duration {
	return time.Duration(f.DelayMillis) * time.Millisecond
}

// Config is the full pipeline configuration. Window 0 means the unbounded
// window; the default set matches the persisted feature schema.
type Config struct {
	Windows          []int  `yaml:"windows"`
	KeepNonFinishers bool   `yaml:"keep_non_finishers"`
	PostgresDSN      string `yaml:"postgres_dsn"`
	ClickhouseDSN    string `yaml:"clickhouse_dsn"`
	MetricsAddr      string `yaml:"metrics_addr"`

	Fetch FetchConfig `yaml:"fetch"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	windows := make([]int, 0, len(domain.DefaultWindows))
	for _, w := range domain.DefaultWindows {
		windows = append(windows, int(w))
	}
	return Config{
		Windows: windows,
		Fetch: FetchConfig{
			DelayMillis: 1000,
			CacheDir:    "cache",
			Workers:     4,
		},
	}
}

// Load reads a YAML config file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if len(c.Windows) == 0 {
		return fmt.Errorf("windows must not be empty")
	}
	seen := make(map[int]struct{}, len(c.Windows))
	for _, w := range c.Windows {
		if w < 0 {
			return fmt.Errorf("window %d is negative", w)
		}
		if _, dup := seen[w]; dup {
			return fmt.Errorf("window %d repeated", w)
		}
		seen[w] = struct{}{}
	}
	if c.Fetch.DelayMillis < 0 {
		return fmt.Errorf("fetch delay must not be negative")
	}
	if c.Fetch.Workers < 1 {
		return fmt.Errorf("fetch workers must be at least 1")
	}
	return nil
}

// DomainWindows converts the configured window sizes.
func (c Config) DomainWindows() []domain.Window {
	out := make([]domain.Window, 0, len(c.Windows))
	for _, w := range c.Windows {
		out = append(out, domain.Window(w))
	}
	return out
}
