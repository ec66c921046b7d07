package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEnvOverrides(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	cfg.Paths.ConfigPath = "/tmp/config" // avoid creation

	t.Setenv("TWOPASS_METRICS_ADDR", "1.2.3.4:9999")
	t.Setenv("TWOPASS_LOG_LEVEL", "debug")
	t.Setenv("TWOPASS_LOG_FORMAT", "json")
	t.Setenv("TWOPASS_ONLINE_ENGINE", "VOSK")
	t.Setenv("TWOPASS_HOOK_ENABLED", "1")
	t.Setenv("TWOPASS_TRANSCRIPTS_ENABLED", "false")

	applyEnvOverrides(cfg)

	if !cfg.Metrics.Enabled || cfg.Metrics.Addr != "1.2.3.4:9999" {
		t.Fatalf("metrics override failed: %+v", cfg.Metrics)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("logging overrides failed: %+v", cfg.Logging)
	}
	if cfg.Online.Engine != "vosk" {
		t.Fatalf("online engine override failed: %q", cfg.Online.Engine)
	}
	if !cfg.Hook.Enabled {
		t.Fatalf("hook should be enabled via env")
	}
	if cfg.Transcripts.Enabled {
		t.Fatalf("transcripts should be disabled via env")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.toml"

	cfg, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	cfg.Paths.ConfigPath = path
	cfg.Hook.Command = "/bin/echo"
	cfg.Refine.TailMS = 250

	if err := Save(cfg, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Hook.Command != "/bin/echo" {
		t.Fatalf("expected hook command to persist")
	}
	if loaded.Refine.TailMS != 250 {
		t.Fatalf("expected tail_ms to persist, got %d", loaded.Refine.TailMS)
	}
}

func TestLoadWritesTemplateWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Paths.ConfigPath != path {
		t.Fatalf("config path = %q", cfg.Paths.ConfigPath)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("template not written: %v", err)
	}
}

func TestDerivedSizes(t *testing.T) {
	cfg, _ := Default()
	if got := cfg.BlockSamples(); got != 1600 {
		t.Fatalf("block samples = %d, want 1600", got)
	}
	if got := cfg.TailSamples(); got != 8000 {
		t.Fatalf("tail samples = %d, want 8000", got)
	}
	if got := cfg.Cadence(); got != 100*time.Millisecond {
		t.Fatalf("cadence = %v, want 100ms", got)
	}
}

func TestDefaultsUseWhisperAndSegmentSnapshot(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if cfg.Online.Engine != "whisper" || cfg.Offline.Engine != "whisper" {
		t.Fatalf("engines = %q/%q, want whisper/whisper", cfg.Online.Engine, cfg.Offline.Engine)
	}
	if cfg.Recordings.FullSession {
		t.Fatalf("full_session should be opt-in")
	}
	if !cfg.Recordings.Enabled {
		t.Fatalf("recordings should be enabled by default")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"stereo", func(c *Config) { c.Audio.Channels = 2 }, false},
		{"24-bit", func(c *Config) { c.Audio.BitDepth = 24 }, false},
		{"zero rate", func(c *Config) { c.Audio.SampleRate = 0 }, false},
		{"zero cadence", func(c *Config) { c.Audio.CadenceMS = 0 }, false},
		{"negative tail", func(c *Config) { c.Refine.TailMS = -1 }, false},
	}
	for _, tc := range cases {
		cfg, _ := Default()
		tc.mutate(cfg)
		err := Validate(cfg)
		if (err == nil) != tc.ok {
			t.Fatalf("%s: Validate err=%v, want ok=%v", tc.name, err, tc.ok)
		}
	}
}
