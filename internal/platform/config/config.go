// Package config loads scanner settings from an optional YAML file with
// LABELSCAN_* environment overrides
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment override
const EnvPrefix = "LABELSCAN_"

// Config is the resolved application configuration
type Config struct {
	Scanner ScannerConfig
	Storage StorageConfig
	Log     LogConfig
}

// ScannerConfig tunes the detection loop
type ScannerConfig struct {
	Cooldown     time.Duration
	HistorySize  int
	TickInterval time.Duration
}

// StorageConfig selects the detection sinks
type StorageConfig struct {
	PostgresURL string
	ExportDir   string
}

// LogConfig configures the root logger
type LogConfig struct {
	Level  string
	Format string
}

type configFile struct {
	Scanner struct {
		Cooldown     string `yaml:"cooldown"`
		HistorySize  *int   `yaml:"history_size"`
		TickInterval string `yaml:"tick_interval"`
	} `yaml:"scanner"`
	Storage struct {
		PostgresURL string `yaml:"postgres_url"`
		ExportDir   string `yaml:"export_dir"`
	} `yaml:"storage"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns the built-in configuration
func Default() Config {
	exportDir := "qr_scanner_data"
	if home, err := os.UserHomeDir(); err == nil {
		exportDir = filepath.Join(home, "qr_scanner_data")
	}
	return Config{
		Scanner: ScannerConfig{
			Cooldown:     2 * time.Second,
			HistorySize:  10,
			TickInterval: 33 * time.Millisecond,
		},
		Storage: StorageConfig{
			ExportDir: exportDir,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load resolves defaults, then the YAML file at path (skipped when path is
// empty), then environment overrides. Unparseable values keep the previous
// layer's value and are reported on log.
func Load(path string, log zerolog.Logger) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		var file configFile
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
		applyFile(&cfg, file, log)
	}

	applyEnv(&cfg, log)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the scanner cannot run with
func (c Config) Validate() error {
	var errs []error
	if c.Scanner.HistorySize < 1 {
		errs = append(errs, fmt.Errorf("scanner.history_size must be positive, got %d", c.Scanner.HistorySize))
	}
	if c.Scanner.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("scanner.cooldown must not be negative, got %s", c.Scanner.Cooldown))
	}
	if c.Scanner.TickInterval < 0 {
		errs = append(errs, fmt.Errorf("scanner.tick_interval must not be negative, got %s", c.Scanner.TickInterval))
	}
	return errors.Join(errs...)
}

func applyFile(cfg *Config, f configFile, log zerolog.Logger) {
	cfg.Scanner.Cooldown = durationOr(f.Scanner.Cooldown, cfg.Scanner.Cooldown, "scanner.cooldown", log)
	cfg.Scanner.TickInterval = durationOr(f.Scanner.TickInterval, cfg.Scanner.TickInterval, "scanner.tick_interval", log)
	if f.Scanner.HistorySize != nil {
		cfg.Scanner.HistorySize = *f.Scanner.HistorySize
	}
	cfg.Storage.PostgresURL = stringOr(f.Storage.PostgresURL, cfg.Storage.PostgresURL)
	cfg.Storage.ExportDir = stringOr(f.Storage.ExportDir, cfg.Storage.ExportDir)
	cfg.Log.Level = stringOr(f.Log.Level, cfg.Log.Level)
	cfg.Log.Format = stringOr(f.Log.Format, cfg.Log.Format)
}

func applyEnv(cfg *Config, log zerolog.Logger) {
	cfg.Scanner.Cooldown = durationOr(env("COOLDOWN"), cfg.Scanner.Cooldown, EnvPrefix+"COOLDOWN", log)
	cfg.Scanner.TickInterval = durationOr(env("TICK_INTERVAL"), cfg.Scanner.TickInterval, EnvPrefix+"TICK_INTERVAL", log)
	if s := env("HISTORY_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			cfg.Scanner.HistorySize = n
		} else {
			log.Warn().Str("key", EnvPrefix+"HISTORY_SIZE").Str("value", s).Msg("invalid int; keeping previous value")
		}
	}
	cfg.Storage.PostgresURL = stringOr(env("DATABASE_URL"), cfg.Storage.PostgresURL)
	cfg.Storage.ExportDir = stringOr(env("EXPORT_DIR"), cfg.Storage.ExportDir)
	cfg.Log.Level = stringOr(env("LOG_LEVEL"), cfg.Log.Level)
	cfg.Log.Format = stringOr(env("LOG_FORMAT"), cfg.Log.Format)
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + key))
}

func stringOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func durationOr(v string, def time.Duration, key string, log zerolog.Logger) time.Duration {
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid duration (e.g. 250ms, 2s); keeping previous value")
		return def
	}
	return d
}
