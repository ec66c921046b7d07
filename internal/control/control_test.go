package control

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"twopass/internal/asr"
	"twopass/internal/audio"
	"twopass/internal/capture"
	"twopass/internal/config"
	"twopass/internal/logging"
)

func TestTailFileKeepsLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	if err := os.WriteFile(path, []byte("a\nb\n\nc\nd\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := tailFile(&buf, path, 3); err != nil {
		t.Fatalf("tail: %v", err)
	}
	if buf.String() != "c\nd\n" {
		t.Fatalf("tail = %q", buf.String())
	}
	if err := tailFile(&buf, filepath.Join(t.TempDir(), "missing"), 3); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDeviceByIndex(t *testing.T) {
	devs := []capture.Device{{Index: 0, Name: "Built-in"}, {Index: 3, Name: "USB Mic"}}
	name, err := deviceByIndex(devs, 3)
	if err != nil || name != "USB Mic" {
		t.Fatalf("got %q, %v", name, err)
	}
	if _, err := deviceByIndex(devs, 7); err == nil {
		t.Fatalf("expected error for unknown index")
	}
}

func TestParseEnvPairs(t *testing.T) {
	env, err := parseEnvPairs([]string{"A=1", "B=x=y", "C="})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if env["A"] != "1" || env["B"] != "x=y" || env["C"] != "" {
		t.Fatalf("env = %v", env)
	}
	for _, bad := range []string{"novalue", "=1"} {
		if _, err := parseEnvPairs([]string{bad}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestResolveModel(t *testing.T) {
	cfg := &config.Config{}
	cfg.Paths.StateDir = "/state"
	if got := resolveModel(cfg, "ggml-base.en.bin"); got != filepath.Join("/state", "models", "ggml-base.en.bin") {
		t.Fatalf("bare name resolved to %s", got)
	}
	if got := resolveModel(cfg, "/opt/models/x.bin"); got != "/opt/models/x.bin" {
		t.Fatalf("path resolved to %s", got)
	}
}

func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, Status{
		Running:   true,
		UptimeSec: 2.5,
		Recording: true,
		Segment:   2,
		Display:   "0: hello\n1: world",
		LastWAV:   "/tmp/audio_1.wav",
		Transcripts: []Transcript{
			{Segment: 1, Text: "world", Refined: false, Timestamp: time.Date(2026, 1, 2, 9, 30, 0, 0, time.Local)},
		},
	})
	out := buf.String()
	for _, want := range []string{
		"state: recording (segment 2)",
		"last recording: /tmp/audio_1.wav",
		"0: hello\n1: world",
		"09:30:00  #1 world (unrefined)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("status missing %q:\n%s", want, out)
		}
	}
}

func writeSpeechWAV(t *testing.T, rate int) string {
	t.Helper()
	samples := make([]float32, rate*3/2)
	for i := 0; i < rate; i++ {
		samples[i] = 0.5
	}
	path, err := audio.WriteWAVFile(t.TempDir(), []audio.Block{{Samples: samples, SampleRate: rate}}, rate, time.Now())
	if err != nil {
		t.Fatalf("write wav: %v", err)
	}
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	dir := t.TempDir()
	cfg.Recordings.Dir = filepath.Join(dir, "recordings")
	cfg.Online.SilenceMS = 300
	cfg.Online.EnergyThresh = 0.01
	return cfg
}

func TestTranscribeFileRunsBothPasses(t *testing.T) {
	cfg := testConfig(t)
	wav := writeSpeechWAV(t, cfg.Audio.SampleRate)
	export := filepath.Join(t.TempDir(), "out", "export.txt")
	online := asr.NewStubStreamingEngine(cfg.Audio.SampleRate, cfg.Online.EnergyThresh, cfg.Online.SilenceMS)

	var out bytes.Buffer
	res, err := transcribeFile(context.Background(), cfg, logging.NewTestLogger(), online, asr.NewStubOfflineEngine(),
		transcribeOptions{File: wav, Export: export}, &out)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if out.String() != "0: [stub] refined 0.80s\n" {
		t.Fatalf("output = %q", out.String())
	}
	if res.Segments != 1 || res.WAVPath != "" {
		t.Fatalf("result = %+v", res)
	}
	data, err := os.ReadFile(export)
	if err != nil || string(data) != "0: [stub] refined 0.80s" {
		t.Fatalf("export = %q (%v)", data, err)
	}
}

func TestTranscribeFileSavesWAV(t *testing.T) {
	cfg := testConfig(t)
	cfg.Recordings.Enabled = false
	wav := writeSpeechWAV(t, cfg.Audio.SampleRate)
	online := asr.NewStubStreamingEngine(cfg.Audio.SampleRate, cfg.Online.EnergyThresh, cfg.Online.SilenceMS)

	var out bytes.Buffer
	res, err := transcribeFile(context.Background(), cfg, logging.NewTestLogger(), online, asr.NewStubOfflineEngine(),
		transcribeOptions{File: wav, SaveWAV: true}, &out)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if !strings.HasPrefix(res.WAVPath, cfg.Recordings.Dir) {
		t.Fatalf("wav path = %q, want under %s", res.WAVPath, cfg.Recordings.Dir)
	}
	if _, err := os.Stat(res.WAVPath); err != nil {
		t.Fatalf("archive missing: %v", err)
	}
}

func TestTranscribeFileMissingInput(t *testing.T) {
	cfg := testConfig(t)
	online := asr.NewStubStreamingEngine(cfg.Audio.SampleRate, cfg.Online.EnergyThresh, cfg.Online.SilenceMS)
	_, err := transcribeFile(context.Background(), cfg, logging.NewTestLogger(), online, asr.NewStubOfflineEngine(),
		transcribeOptions{File: filepath.Join(t.TempDir(), "nope.wav")}, &bytes.Buffer{})
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}
