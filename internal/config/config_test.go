package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestParseDefaults(t *testing.T) {
	c, err := Parse(env(nil))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c != Default() {
		t.Errorf("got %+v, want defaults", c)
	}
}

func TestParseOverrides(t *testing.T) {
	c, err := Parse(env(map[string]string{
		"PORT":                   "9000",
		"CASTD_PRESET_DIR":       "/srv/presets",
		"CASTD_ENGINE":           "null",
		"CASTD_CONTROL_INTERVAL": "20ms",
		"CASTD_PREROLL_LEAD":     "2s",
		"CASTD_CONSUMER_BUFFER":  "8",
		"CASTD_LOG_LEVEL":        "debug",
		"CASTD_LOG_FORMAT":       "json",
	}))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Listen != ":9000" || c.PresetDir != "/srv/presets" || c.Engine != "null" {
		t.Errorf("strings = %+v", c)
	}
	if c.ControlInterval != 20*time.Millisecond || c.PrerollLead != 2*time.Second || c.ConsumerBuffer != 8 {
		t.Errorf("numbers = %+v", c)
	}
	if c.LogLevel != slog.LevelDebug || c.LogFormat != "json" {
		t.Errorf("logging = %+v", c)
	}

	c, err = Parse(env(map[string]string{"PORT": "9000", "CASTD_LISTEN": "127.0.0.1:7000"}))
	if err != nil || c.Listen != "127.0.0.1:7000" {
		t.Errorf("CASTD_LISTEN should win over PORT: %q, %v", c.Listen, err)
	}
}

func TestParseRejectsBadValues(t *testing.T) {
	bad := []map[string]string{
		{"CASTD_CONTROL_INTERVAL": "soon"},
		{"CASTD_CONSUMER_BUFFER": "0"},
		{"CASTD_ENGINE": "gstreamer"},
		{"CASTD_LOG_LEVEL": "chatty"},
		{"CASTD_LOG_FORMAT": "xml"},
		{"CASTD_FRAME_INTERVAL": "-1s"},
	}
	for _, m := range bad {
		if _, err := Parse(env(m)); err == nil {
			t.Errorf("Parse(%v) succeeded", m)
		}
	}
}

func TestFromEnvReadsDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "castd.env")
	if err := os.WriteFile(path, []byte("CASTD_PRESET_DIR=/from/dotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if os.Getenv("CASTD_PRESET_DIR") != "" {
		t.Skip("CASTD_PRESET_DIR set in the test environment")
	}
	t.Cleanup(func() { os.Unsetenv("CASTD_PRESET_DIR") })
	c, err := FromEnv(path)
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if !strings.HasPrefix(c.PresetDir, "/from/dotenv") {
		t.Errorf("preset dir = %q", c.PresetDir)
	}
}
