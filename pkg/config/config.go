// Package config loads ruggedgo's YAML configuration: ellipsoid and
// algorithm selection, geometric correction flags, tile cache sizing, the
// demo sensor registry used by cmd/ruggedgo, and logging/server settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Ellipsoid   EllipsoidConfig   `yaml:"ellipsoid"`
	Algorithm   AlgorithmConfig   `yaml:"algorithm"`
	Corrections CorrectionsConfig `yaml:"corrections"`
	Cache       CacheConfig       `yaml:"cache"`
	Dem         DemConfig         `yaml:"dem"`
	Sensors     map[string]Sensor `yaml:"sensors"`
	Log         LogConfig         `yaml:"log"`
	Server      ServerConfig      `yaml:"server"`
}

// DemConfig points at the ETOPO1 grid file backing the demo DEM tile
// source; see pkg/terrain/demodem.
type DemConfig struct {
	Etopo1Path string `yaml:"etopo1_path"`
}

// EllipsoidConfig selects the reference ellipsoid and rotation frame.
type EllipsoidConfig struct {
	// Model is one of: wgs84, grs80, iers96, iers2003.
	Model string `yaml:"model"`
}

// AlgorithmConfig selects the ray/terrain intersection algorithm.
type AlgorithmConfig struct {
	// Name is one of: duvenhage, duvenhage_flat_body,
	// basic_slow_exhaustive_scan_for_tests_only,
	// constant_elevation_over_ellipsoid, ignore_dem_use_ellipsoid.
	Name string `yaml:"name"`
	// ConstantElevation is used only by constant_elevation_over_ellipsoid.
	ConstantElevation float64 `yaml:"constant_elevation"`
}

// CorrectionsConfig toggles the light-time and aberration-of-light fixes.
type CorrectionsConfig struct {
	LightTime         bool `yaml:"light_time"`
	AberrationOfLight bool `yaml:"aberration_of_light"`
}

// CacheConfig sizes the tile cache.
type CacheConfig struct {
	MaxTiles    int  `yaml:"max_tiles"`
	Overlapping bool `yaml:"overlapping"`
}

// Sensor describes a registered line sensor for the demo CLI/API; the
// per-pixel line-of-sight function itself is supplied in code (it cannot
// be expressed in YAML), so this only carries the parameters needed to
// build a synthetic nadir-pointing fan for demos and smoke tests.
type Sensor struct {
	Pixels      int        `yaml:"pixels"`
	FOVDegrees  float64    `yaml:"fov_degrees"`
	LineRateHz  float64    `yaml:"line_rate_hz"`
	FirstLine   int        `yaml:"first_line"`
	LastLine    int        `yaml:"last_line"`
	PositionXYZ [3]float64 `yaml:"position_xyz"`
}

// LogSettings configures a single log sink.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// LogConfig groups the server and API-request log sinks.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
}

// ServerConfig configures the debug HTTP/websocket API.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Ellipsoid: EllipsoidConfig{
			Model: "wgs84",
		},
		Algorithm: AlgorithmConfig{
			Name: "duvenhage",
		},
		Corrections: CorrectionsConfig{
			LightTime:         true,
			AberrationOfLight: true,
		},
		Cache: CacheConfig{
			MaxTiles:    12,
			Overlapping: false,
		},
		Dem: DemConfig{
			Etopo1Path: "data/etopo1/etopo1_ice_g_i2.bin",
		},
		Sensors: map[string]Sensor{
			"demo": {
				Pixels:      2000,
				FOVDegrees:  10.0,
				LineRateHz:  20.0,
				FirstLine:   0,
				LastLine:    2000,
				PositionXYZ: [3]float64{0, 0, 0},
			},
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "logs/requests.log",
				Level: "INFO",
			},
		},
		Server: ServerConfig{
			Address: ":8089",
		},
	}
}

var validEllipsoids = map[string]bool{
	"wgs84": true, "grs80": true, "iers96": true, "iers2003": true,
}

var validAlgorithms = map[string]bool{
	"duvenhage":                                 true,
	"duvenhage_flat_body":                       true,
	"basic_slow_exhaustive_scan_for_tests_only":  true,
	"constant_elevation_over_ellipsoid":          true,
	"ignore_dem_use_ellipsoid":                   true,
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// If the file exists, it merges defaults with existing values but does
// NOT save back to disk (to preserve user formatting and comments).
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

		// .env / .env.local may carry secrets for a caller-supplied
		// TileUpdater (e.g. a DEM tile-server API key); the core itself
		// never reads these, but loading them here keeps a single
		// bootstrap path for the demo CLI.
		_ = godotenv.Load(".env.local", ".env")

		if err := validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if !validEllipsoids[cfg.Ellipsoid.Model] {
		return fmt.Errorf("invalid ellipsoid model %q: must be one of wgs84, grs80, iers96, iers2003", cfg.Ellipsoid.Model)
	}
	if !validAlgorithms[cfg.Algorithm.Name] {
		return fmt.Errorf("invalid algorithm %q", cfg.Algorithm.Name)
	}
	if cfg.Cache.MaxTiles < 1 {
		return fmt.Errorf("cache.max_tiles must be >= 1, got %d", cfg.Cache.MaxTiles)
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# ruggedgo configuration
# ---------------------
# ellipsoid.model: wgs84, grs80, iers96, iers2003
# algorithm.name: duvenhage, duvenhage_flat_body,
#   basic_slow_exhaustive_scan_for_tests_only,
#   constant_elevation_over_ellipsoid, ignore_dem_use_ellipsoid

`)
	data = append(header, data...)

	reAlgo := regexp.MustCompile(`(?m)^(\s+)name:`)
	data = reAlgo.ReplaceAll(data, []byte("${1}# Options: duvenhage, duvenhage_flat_body, basic_slow_exhaustive_scan_for_tests_only, constant_elevation_over_ellipsoid, ignore_dem_use_ellipsoid\n${1}name:"))

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
