package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultSampleRate      = 16000
	defaultCadenceMS       = 100
	defaultTailMS          = 500
	// DefaultMaxReadFailures is how many consecutive capture errors a
	// recording tolerates.
	DefaultMaxReadFailures = 10
	defaultStatusTail      = 10
	defaultStateDirLinux   = ".local/state/twopass"
	defaultConfigDir       = ".config/twopass"
)

// Config holds user configuration loaded from TOML.
type Config struct {
	Audio struct {
		DeviceName      string `toml:"device_name"`
		SampleRate      int    `toml:"sample_rate"`
		Channels        int    `toml:"channels"`
		BitDepth        int    `toml:"bit_depth"`
		CadenceMS       int    `toml:"cadence_ms"`
		MaxReadFailures int    `toml:"max_read_failures"`
	} `toml:"audio"`

	// Online is the fast streaming recognizer that produces partial text.
	Online struct {
		Engine         string  `toml:"engine"` // stub, whisper, vosk
		ModelPath      string  `toml:"model_path"`
		Language       string  `toml:"language"`
		SilenceMS      int     `toml:"silence_ms"`
		MaxSegmentMS   int     `toml:"max_segment_ms"`
		PartialEveryMS int     `toml:"partial_every_ms"`
		Aggressiveness int     `toml:"vad_aggressiveness"`
		EnergyThresh   float64 `toml:"energy_threshold"`
	} `toml:"online"`

	// Offline is the one-shot recognizer that refines each segment.
	Offline struct {
		Engine    string `toml:"engine"` // stub, whisper
		ModelPath string `toml:"model_path"`
		Language  string `toml:"language"`
		Threads   int    `toml:"threads"`
	} `toml:"offline"`

	Refine struct {
		TailMS     int     `toml:"tail_ms"`
		TimeoutSec float64 `toml:"timeout_sec"`
	} `toml:"refine"`

	Recordings struct {
		Enabled     bool   `toml:"enabled"`
		Dir         string `toml:"dir"`
		FullSession bool   `toml:"full_session"`
	} `toml:"recordings"`

	Hook struct {
		Enabled     bool              `toml:"enabled"`
		Command     string            `toml:"command"`
		Args        []string          `toml:"args"`
		Prefix      string            `toml:"prefix"`
		CooldownSec float64           `toml:"cooldown_sec"`
		MinChars    int               `toml:"min_chars"`
		QueueSize   int               `toml:"queue_size"`
		TimeoutSec  float64           `toml:"timeout_sec"`
		RedactPII   bool              `toml:"redact_pii"`
		Env         map[string]string `toml:"env"`
	} `toml:"hook"`

	Logging struct {
		Level  string `toml:"level"`  // debug, info, warn, error
		Format string `toml:"format"` // text, json
		Stdout bool   `toml:"stdout"`
	} `toml:"logging"`

	Paths struct {
		StateDir       string `toml:"state_dir"`
		LogPath        string `toml:"log_path"`
		TranscriptPath string `toml:"transcript_path"`
		ExportPath     string `toml:"export_path"`
		SocketPath     string `toml:"socket_path"`
		PidPath        string `toml:"pid_path"`
		ConfigPath     string `toml:"-"`
	} `toml:"paths"`

	UI struct {
		StatusTail int `toml:"status_tail"`
	} `toml:"ui"`

	Metrics struct {
		Enabled bool   `toml:"enabled"`
		Addr    string `toml:"addr"`
	} `toml:"metrics"`

	Transcripts struct {
		Enabled bool `toml:"enabled"`
	} `toml:"transcripts"`
}

// Default returns Config populated with defaults.
func Default() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	stateDir := filepath.Join(home, defaultStateDirLinux)
	// macOS prefers ~/Library/Application Support/twopass for state/logs
	if isMac() {
		stateDir = filepath.Join(home, "Library", "Application Support", "twopass")
	}

	cfg := &Config{}

	cfg.Audio.SampleRate = defaultSampleRate
	cfg.Audio.Channels = 1
	cfg.Audio.BitDepth = 16
	cfg.Audio.CadenceMS = defaultCadenceMS
	cfg.Audio.MaxReadFailures = DefaultMaxReadFailures

	cfg.Online.Engine = "whisper"
	cfg.Online.ModelPath = filepath.Join(stateDir, "models", "ggml-base-q5_1.bin")
	cfg.Online.Language = "auto"
	cfg.Online.SilenceMS = 800
	cfg.Online.MaxSegmentMS = 15000
	cfg.Online.PartialEveryMS = 1000
	cfg.Online.Aggressiveness = 2
	cfg.Online.EnergyThresh = 0.02

	cfg.Offline.Engine = "whisper"
	cfg.Offline.ModelPath = filepath.Join(stateDir, "models", "ggml-medium-q5_1.bin")
	cfg.Offline.Language = "auto"
	cfg.Offline.Threads = runtime.NumCPU()

	cfg.Refine.TailMS = defaultTailMS
	cfg.Refine.TimeoutSec = 60

	cfg.Recordings.Enabled = true
	cfg.Recordings.Dir = filepath.Join(stateDir, "recordings")
	cfg.Recordings.FullSession = false

	cfg.Hook.Enabled = false
	cfg.Hook.Prefix = ""
	cfg.Hook.CooldownSec = 0
	cfg.Hook.MinChars = 1
	cfg.Hook.QueueSize = 16
	cfg.Hook.TimeoutSec = 5
	cfg.Hook.Env = map[string]string{}

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	cfg.Paths.StateDir = stateDir
	cfg.Paths.LogPath = filepath.Join(stateDir, "twopass.log")
	cfg.Paths.TranscriptPath = filepath.Join(stateDir, "transcripts.log")
	cfg.Paths.ExportPath = filepath.Join(stateDir, "final_asr_export.txt")
	cfg.Paths.SocketPath = filepath.Join(stateDir, "twopass.sock")
	cfg.Paths.PidPath = filepath.Join(stateDir, "twopass.pid")

	cfg.UI.StatusTail = defaultStatusTail

	cfg.Metrics.Enabled = false
	cfg.Metrics.Addr = "127.0.0.1:9318"

	cfg.Transcripts.Enabled = true

	return cfg, nil
}

// Load loads config from file, applying defaults.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, defaultConfigDir, "config.toml")
	}

	// Read if exists; otherwise write template.
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := Save(cfg, path); err != nil {
				return nil, err
			}
			cfg.Paths.ConfigPath = path
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Paths.ConfigPath = path
	applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}

// Validate rejects settings the capture and decode path cannot honour.
func Validate(cfg *Config) error {
	if cfg.Audio.Channels != 1 {
		return fmt.Errorf("only mono input supported; set audio.channels = 1 (got %d)", cfg.Audio.Channels)
	}
	if cfg.Audio.BitDepth != 16 {
		return fmt.Errorf("only 16-bit capture supported; set audio.bit_depth = 16 (got %d)", cfg.Audio.BitDepth)
	}
	if cfg.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive (got %d)", cfg.Audio.SampleRate)
	}
	if cfg.Audio.CadenceMS <= 0 {
		return fmt.Errorf("audio.cadence_ms must be positive (got %d)", cfg.Audio.CadenceMS)
	}
	if cfg.Refine.TailMS < 0 {
		return fmt.Errorf("refine.tail_ms must not be negative (got %d)", cfg.Refine.TailMS)
	}
	return nil
}

// BlockSamples is the number of samples one capture read delivers.
func (c *Config) BlockSamples() int {
	return c.Audio.SampleRate * c.Audio.CadenceMS / 1000
}

// Cadence is the capture read interval.
func (c *Config) Cadence() time.Duration {
	return time.Duration(c.Audio.CadenceMS) * time.Millisecond
}

// TailSamples is the look-back context retained across a segment boundary.
func (c *Config) TailSamples() int {
	return c.Audio.SampleRate * c.Refine.TailMS / 1000
}

func isMac() bool {
	return runtime.GOOS == "darwin"
}

// MustStatePaths ensures state dirs exist.
func MustStatePaths(cfg *Config) error {
	for _, p := range []string{
		cfg.Paths.StateDir,
		filepath.Dir(cfg.Paths.LogPath),
		filepath.Dir(cfg.Paths.TranscriptPath),
		cfg.Recordings.Dir,
	} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(p, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TWOPASS_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
		cfg.Metrics.Enabled = true
	}
	if v := os.Getenv("TWOPASS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TWOPASS_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("TWOPASS_ONLINE_ENGINE"); v != "" {
		cfg.Online.Engine = strings.ToLower(v)
	}
	if v := os.Getenv("TWOPASS_OFFLINE_ENGINE"); v != "" {
		cfg.Offline.Engine = strings.ToLower(v)
	}
	if v := os.Getenv("TWOPASS_TRANSCRIPTS_ENABLED"); v != "" {
		cfg.Transcripts.Enabled = envBool(v)
	}
	if v := os.Getenv("TWOPASS_HOOK_ENABLED"); v != "" {
		cfg.Hook.Enabled = envBool(v)
	}
}

func envBool(v string) bool {
	return v != "0" && strings.ToLower(v) != "false"
}
