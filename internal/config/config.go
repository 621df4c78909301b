// Package config loads castd settings from the environment, after
// merging an optional .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Listen          string
	PresetDir       string
	Engine          string
	ControlInterval time.Duration
	PrerollLead     time.Duration
	ConsumerBuffer  int
	FrameInterval   time.Duration
	LogLevel        slog.Level
	LogFormat       string
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Listen:          ":8081",
		PresetDir:       "./presets",
		Engine:          "synthetic",
		ControlInterval: 40 * time.Millisecond,
		PrerollLead:     10 * time.Second,
		ConsumerBuffer:  64,
		FrameInterval:   33 * time.Millisecond,
		LogLevel:        slog.LevelInfo,
		LogFormat:       "text",
	}
}

// FromEnv loads .env files (missing ones are ignored) and reads the
// CASTD_* variables over the defaults.
func FromEnv(files ...string) (Config, error) {
	_ = godotenv.Load(files...)
	return Parse(os.Getenv)
}

// Parse reads settings through lookup, which returns "" for unset keys.
func Parse(lookup func(string) string) (Config, error) {
	c := Default()
	get := func(k, def string) string {
		if v := strings.TrimSpace(lookup(k)); v != "" {
			return v
		}
		return def
	}

	if port := lookup("PORT"); port != "" {
		c.Listen = ":" + strings.TrimPrefix(port, ":")
	}
	c.Listen = get("CASTD_LISTEN", c.Listen)
	c.PresetDir = get("CASTD_PRESET_DIR", c.PresetDir)
	c.Engine = get("CASTD_ENGINE", c.Engine)
	c.LogFormat = get("CASTD_LOG_FORMAT", c.LogFormat)

	var err error
	if c.ControlInterval, err = duration(get, "CASTD_CONTROL_INTERVAL", c.ControlInterval); err != nil {
		return c, err
	}
	if c.PrerollLead, err = duration(get, "CASTD_PREROLL_LEAD", c.PrerollLead); err != nil {
		return c, err
	}
	if c.FrameInterval, err = duration(get, "CASTD_FRAME_INTERVAL", c.FrameInterval); err != nil {
		return c, err
	}
	if v := get("CASTD_CONSUMER_BUFFER", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return c, fmt.Errorf("CASTD_CONSUMER_BUFFER: want a positive integer, got %q", v)
		}
		c.ConsumerBuffer = n
	}
	if v := get("CASTD_LOG_LEVEL", ""); v != "" {
		if err := c.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return c, fmt.Errorf("CASTD_LOG_LEVEL: %w", err)
		}
	}
	return c, c.Validate()
}

func duration(get func(k, def string) string, key string, def time.Duration) (time.Duration, error) {
	v := get(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func (c Config) Validate() error {
	switch c.Engine {
	case "synthetic", "null":
	default:
		return fmt.Errorf("unknown engine %q (want synthetic or null)", c.Engine)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", c.LogFormat)
	}
	if c.ControlInterval <= 0 || c.PrerollLead < 0 || c.FrameInterval <= 0 {
		return fmt.Errorf("intervals must be positive")
	}
	if c.ConsumerBuffer <= 0 {
		return fmt.Errorf("consumer buffer must be positive")
	}
	return nil
}

// Logger builds the process logger described by c.
func (c Config) Logger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
