package config

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

// APIKeyEnv is read when api_key is empty.
const APIKeyEnv = "GOOGLE_MAPS_API_KEY"

type Expansion struct {
	MaxMultiplier float64 `yaml:"max_multiplier"`
	Increment     float64 `yaml:"increment"`
	MaxAttempts   int     `yaml:"max_attempts"`
}

type Config struct {
	APIKey          string `yaml:"api_key"`
	MinRequestDelay string `yaml:"min_request_delay"`
	PageTokenDelay  string `yaml:"page_token_delay"`

	CacheDir string `yaml:"cache_dir"`
	CacheTTL string `yaml:"cache_ttl"`

	TileSize    float64 `yaml:"tile_size"`
	Overlap     float64 `yaml:"overlap"`
	MaxTiles    int     `yaml:"max_tiles"`
	MinTileSize float64 `yaml:"min_tile_size"`

	TargetCount        int       `yaml:"target_count"`
	Expansion          Expansion `yaml:"expansion"`
	EmptyTileThreshold int       `yaml:"empty_tile_threshold"`
	SubdivideAt        int       `yaml:"subdivide_at"`

	OutputDir string `yaml:"output_dir"`
}

// ResolvedAPIKey returns api_key, or the environment fallback.
func (c *Config) ResolvedAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return os.Getenv(APIKeyEnv)
}

func (c *Config) MinRequestDelayDuration() time.Duration {
	return parseDuration(c.MinRequestDelay, 100*time.Millisecond)
}

func (c *Config) PageTokenDelayDuration() time.Duration {
	return parseDuration(c.PageTokenDelay, 2*time.Second)
}

func (c *Config) CacheTTLDuration() time.Duration {
	return parseDuration(c.CacheTTL, 24*time.Hour)
}

// ResolvedCacheDir returns cache_dir, defaulting to the XDG cache location.
func (c *Config) ResolvedCacheDir() string {
	if c.CacheDir != "" {
		return c.CacheDir
	}
	return DefaultCacheDir()
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "placetap", "config.yaml")
}

func DefaultCacheDir() string {
	return filepath.Join(xdg.CacheHome, "placetap", "api_cache")
}

// Default returns the embedded configuration.
func Default() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Load reads path over the embedded defaults, so a user file only needs the
// keys it changes. A missing file is created from the defaults.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Non-fatal: the embedded defaults still apply.
			_ = writeDefaults(path)
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o644)
}

// Validate checks value ranges and duration syntax.
func (c *Config) Validate() error {
	if c.TileSize <= 0 {
		return fmt.Errorf("tile_size must be positive, got %v", c.TileSize)
	}
	if c.Overlap < 0 || c.Overlap >= 1 {
		return fmt.Errorf("overlap must be in [0,1), got %v", c.Overlap)
	}
	if c.MaxTiles < 0 || c.MinTileSize < 0 {
		return errors.New("max_tiles and min_tile_size must not be negative")
	}
	if c.TargetCount < 0 {
		return fmt.Errorf("target_count must not be negative, got %d", c.TargetCount)
	}
	if c.Expansion.MaxMultiplier < 1 {
		return fmt.Errorf("expansion.max_multiplier must be at least 1, got %v", c.Expansion.MaxMultiplier)
	}
	if c.Expansion.Increment <= 0 {
		return fmt.Errorf("expansion.increment must be positive, got %v", c.Expansion.Increment)
	}
	if c.Expansion.MaxAttempts < 0 {
		return fmt.Errorf("expansion.max_attempts must not be negative, got %d", c.Expansion.MaxAttempts)
	}
	if c.EmptyTileThreshold < 0 || c.SubdivideAt < 0 {
		return errors.New("empty_tile_threshold and subdivide_at must not be negative")
	}
	for name, v := range map[string]string{
		"min_request_delay": c.MinRequestDelay,
		"page_token_delay":  c.PageTokenDelay,
		"cache_ttl":         c.CacheTTL,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
