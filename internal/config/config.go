// Package config loads dt settings. Sources are layered with later ones
// winning: built-in defaults, a YAML file, DT_ environment variables, then
// command-line flags that were explicitly set.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// DefaultFile is looked up in the working directory when no file is given.
const DefaultFile = "dt.yaml"

// EnvPrefix prefixes environment overrides: DT_PREVIEW_ROWS -> preview_rows.
const EnvPrefix = "DT_"

// ErrInvalid is returned for settings that fail validation.
var ErrInvalid = errors.New("invalid configuration")

// Config holds every dt setting.
type Config struct {
	HistoryLimit       int      `koanf:"history_limit"`
	PreviewRows        int      `koanf:"preview_rows"`
	Prompt             string   `koanf:"prompt"`
	ContinuationPrompt string   `koanf:"continuation_prompt"`
	HistoryFile        string   `koanf:"history_file"`
	LogLevel           string   `koanf:"log_level"`
	Optimize           bool     `koanf:"optimize"`
	Verbose            bool     `koanf:"verbose"`
	Sandbox            []string `koanf:"sandbox"` // empty: no sandbox

	// File is the config file that was loaded, if any.
	File string `koanf:"-"`
}

func defaults() map[string]any {
	return map[string]any{
		"history_limit":       10,
		"preview_rows":        10,
		"prompt":              ">> ",
		"continuation_prompt": ".. ",
		"history_file":        "",
		"log_level":           "warn",
		"optimize":            true,
		"verbose":             false,
		"sandbox":             []string{},
	}
}

// Load builds the configuration. cfgFile names an explicit YAML file that
// must exist; when empty, ./dt.yaml is used if present. flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	used := cfgFile
	if used == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			used = DefaultFile
		}
	}
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// 3. Environment
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags that were set
	if flags != nil {
		known := defaults()
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			if _, ok := known[key]; !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = used

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.HistoryLimit < 1 {
		return fmt.Errorf("%w: history_limit must be at least 1, got %d", ErrInvalid, c.HistoryLimit)
	}
	if c.PreviewRows < 1 {
		return fmt.Errorf("%w: preview_rows must be at least 1, got %d", ErrInvalid, c.PreviewRows)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level is the slog level for LogLevel. Verbose forces debug.
func (c *Config) Level() (slog.Level, error) {
	if c.Verbose {
		return slog.LevelDebug, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}
	return l, nil
}

// NewLogger returns a text logger writing to w at the configured level.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
