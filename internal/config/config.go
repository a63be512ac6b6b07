// Package config loads the patrol viewer's JSON configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/patrol.defaults.json"

// Built-in fallbacks used when a field is absent from the file.
const (
	DefaultBackend        = "rest"
	DefaultBackendURL     = "http://localhost:8081"
	DefaultGridSize       = 10
	DefaultRangerCount    = 3
	DefaultMaxSteps       = 50
	DefaultAnimationDelay = 50 * time.Millisecond
	DefaultListen         = ":8080"
	DefaultRequestTimeout = 30 * time.Second
	DefaultDevListen      = ":8081"
	DefaultDevDBPath      = "patrol-dev.db"

	// MaxGridSize bounds generated maps so a request cannot allocate
	// unbounded memory.
	MaxGridSize = 200
)

// PatrolConfig is the root configuration. Every field is optional; the Get*
// accessors supply defaults, so partial files are safe.
type PatrolConfig struct {
	// Backend selects the endpoint layout: "rest" or "mode".
	Backend    *string `json:"backend,omitempty"`
	BackendURL *string `json:"backend_url,omitempty"`

	GridSize       *int    `json:"grid_size,omitempty"`
	RangerCount    *int    `json:"ranger_count,omitempty"`
	MaxSteps       *int    `json:"max_steps,omitempty"`
	AnimationDelay *string `json:"animation_delay,omitempty"` // duration string like "50ms"
	Seed           *int64  `json:"seed,omitempty"`

	Listen         *string `json:"listen,omitempty"`
	RequestTimeout *string `json:"request_timeout,omitempty"` // duration string like "30s"

	// Development backend
	DevListen *string `json:"dev_listen,omitempty"`
	DevDBPath *string `json:"dev_db_path,omitempty"`
}

// EmptyConfig returns a PatrolConfig with every field unset.
func EmptyConfig() *PatrolConfig {
	return &PatrolConfig{}
}

// LoadConfig loads a PatrolConfig from a JSON file. The path must have a .json
// extension and the file must be under 1MB.
func LoadConfig(path string) (*PatrolConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root. It panics if the file
// cannot be loaded and is intended for tests.
func MustLoadDefaultConfig() *PatrolConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,       // from cmd/
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/patrolview/
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the values that are set.
func (c *PatrolConfig) Validate() error {
	if c.Backend != nil {
		switch *c.Backend {
		case "rest", "mode":
		default:
			return fmt.Errorf("backend must be \"rest\" or \"mode\", got %q", *c.Backend)
		}
	}

	if c.GridSize != nil && (*c.GridSize < 1 || *c.GridSize > MaxGridSize) {
		return fmt.Errorf("grid_size must be between 1 and %d, got %d", MaxGridSize, *c.GridSize)
	}
	if c.RangerCount != nil && *c.RangerCount < 1 {
		return fmt.Errorf("ranger_count must be positive, got %d", *c.RangerCount)
	}
	if c.MaxSteps != nil && *c.MaxSteps < 1 {
		return fmt.Errorf("max_steps must be positive, got %d", *c.MaxSteps)
	}

	for name, v := range map[string]*string{
		"animation_delay": c.AnimationDelay,
		"request_timeout": c.RequestTimeout,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, d)
		}
	}

	return nil
}

// GetBackend returns the backend layout name.
func (c *PatrolConfig) GetBackend() string {
	if c.Backend == nil {
		return DefaultBackend
	}
	return *c.Backend
}

// GetBackendURL returns the backend base (rest) or endpoint (mode) URL.
func (c *PatrolConfig) GetBackendURL() string {
	if c.BackendURL == nil || *c.BackendURL == "" {
		return DefaultBackendURL
	}
	return *c.BackendURL
}

func (c *PatrolConfig) GetGridSize() int {
	if c.GridSize == nil {
		return DefaultGridSize
	}
	return *c.GridSize
}

func (c *PatrolConfig) GetRangerCount() int {
	if c.RangerCount == nil {
		return DefaultRangerCount
	}
	return *c.RangerCount
}

func (c *PatrolConfig) GetMaxSteps() int {
	if c.MaxSteps == nil {
		return DefaultMaxSteps
	}
	return *c.MaxSteps
}

// GetAnimationDelay parses AnimationDelay, falling back to the default on a
// missing or unparsable value.
func (c *PatrolConfig) GetAnimationDelay() time.Duration {
	return parseDuration(c.AnimationDelay, DefaultAnimationDelay)
}

// GetRequestTimeout parses RequestTimeout the same way.
func (c *PatrolConfig) GetRequestTimeout() time.Duration {
	return parseDuration(c.RequestTimeout, DefaultRequestTimeout)
}

// GetSeed returns the configured generator seed and whether one was set.
func (c *PatrolConfig) GetSeed() (int64, bool) {
	if c.Seed == nil {
		return 0, false
	}
	return *c.Seed, true
}

func (c *PatrolConfig) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return DefaultListen
	}
	return *c.Listen
}

func (c *PatrolConfig) GetDevListen() string {
	if c.DevListen == nil || *c.DevListen == "" {
		return DefaultDevListen
	}
	return *c.DevListen
}

func (c *PatrolConfig) GetDevDBPath() string {
	if c.DevDBPath == nil || *c.DevDBPath == "" {
		return DefaultDevDBPath
	}
	return *c.DevDBPath
}

func parseDuration(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}
