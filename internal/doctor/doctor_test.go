package doctor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"twopass/internal/config"
)

func TestCheckEngine(t *testing.T) {
	model := filepath.Join(t.TempDir(), "ggml-base.bin")
	if err := os.WriteFile(model, []byte("x"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	cases := []struct {
		engine, path string
		pass         bool
	}{
		{"stub", "", true},
		{"whisper", model, true},
		{"whisper", model + ".missing", false},
		{"vosk", "", false},
		{"kaldi", model, false},
	}
	for _, c := range cases {
		if got := checkEngine("online", c.engine, c.path); got.Pass != c.pass {
			t.Fatalf("checkEngine(%q, %q) = %+v, want pass=%v", c.engine, c.path, got, c.pass)
		}
	}
}

func TestCheckHookExecutable(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "hook.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\n"), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	if r := checkHookExecutable(script); r.Pass || !strings.Contains(r.Detail, "not executable") {
		t.Fatalf("non-executable script passed: %+v", r)
	}
	if err := os.Chmod(script, 0o755); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	if r := checkHookExecutable(script + " --flag"); !r.Pass {
		t.Fatalf("executable script failed: %+v", r)
	}
	if r := checkHookExecutable(dir); r.Pass {
		t.Fatalf("directory passed")
	}
	if r := checkHookExecutable(""); r.Pass {
		t.Fatalf("empty command passed")
	}
}

func TestRunSkipsHookWhenDisabled(t *testing.T) {
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.Recordings.Dir = filepath.Join(t.TempDir(), "rec")
	cfg.Hook.Enabled = false
	for _, r := range Run(cfg) {
		if r.Name == "hook.command" {
			t.Fatalf("hook checked while disabled")
		}
	}
	cfg.Hook.Enabled = true
	found := false
	for _, r := range Run(cfg) {
		if r.Name == "hook.command" {
			found = true
		}
	}
	if !found {
		t.Fatalf("hook not checked when enabled")
	}
}
