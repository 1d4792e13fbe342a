// Package config provides configuration loading and structs for the annlab server and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Generator GeneratorConfig `yaml:"generator"`
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the dataset database path.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// GeneratorConfig selects and configures the upstream dataset generator.
type GeneratorConfig struct {
	// Provider is "gemini" or "random". Gemini falls back to random data on failure.
	Provider     string `yaml:"provider"`
	APIKey       string `yaml:"api_key"`
	Model        string `yaml:"model"`
	FallbackSize int    `yaml:"fallback_size"`
	Seed         *int64 `yaml:"seed,omitempty"`
}

// IndexConfig holds k-means training settings.
type IndexConfig struct {
	Clusters      int          `yaml:"clusters"`
	MaxIterations int          `yaml:"max_iterations"`
	MaxClusters   int          `yaml:"max_clusters"`
	Seed          *int64       `yaml:"seed,omitempty"`
	Bounds        BoundsConfig `yaml:"bounds"`
}

// BoundsConfig is the rectangle initial centroids are drawn from.
type BoundsConfig struct {
	MinX float64 `yaml:"min_x"`
	MaxX float64 `yaml:"max_x"`
	MinY float64 `yaml:"min_y"`
	MaxY float64 `yaml:"max_y"`
}

// SearchConfig holds defaults for query parameters omitted by callers.
type SearchConfig struct {
	TopK    int     `yaml:"top_k"`
	NProbes int     `yaml:"n_probes"`
	Mode    string  `yaml:"mode"`
	MaxTopK int     `yaml:"max_top_k"`
	QueryX  float64 `yaml:"query_x"`
	QueryY  float64 `yaml:"query_y"`
}

// WatchConfig lists dataset files reloaded on change.
type WatchConfig struct {
	Files      []string `yaml:"files"`
	DebounceMS int      `yaml:"debounce_ms"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if cfg.Generator.APIKey == "" {
		cfg.Generator.APIKey = APIKeyFromEnv()
	}

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	for i := range cfg.Watch.Files {
		cfg.Watch.Files[i] = expandPath(cfg.Watch.Files[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// APIKeyFromEnv returns GEMINI_API_KEY, or API_KEY when the former is unset.
func APIKeyFromEnv() string {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		return v
	}
	return os.Getenv("API_KEY")
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
