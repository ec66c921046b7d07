package service

import (
	"bytes"
	"strings"
	"testing"
)

func TestRenderLaunchd(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, "darwin", Params{
		Label:  Label,
		Binary: "/usr/local/bin/twopass",
		Config: "/tmp/config.toml",
		Log:    "/tmp/twopass.log",
		Env:    map[string]string{"TWOPASS_METRICS_ADDR": "127.0.0.1:9318"},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"<string>com.twopass.agent</string>",
		"<string>serve</string>",
		"<key>TWOPASS_METRICS_ADDR</key><string>127.0.0.1:9318</string>",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("plist missing %q:\n%s", want, out)
		}
	}
}

func TestRenderSystemd(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, "linux", Params{
		Label:  Label,
		Binary: "/usr/bin/twopass",
		Config: "/home/u/.config/twopass/config.toml",
		Log:    "/home/u/.local/state/twopass/twopass.log",
		Env:    map[string]string{"TWOPASS_LOG_LEVEL": "debug"},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"ExecStart=/usr/bin/twopass serve --config /home/u/.config/twopass/config.toml",
		"Environment=TWOPASS_LOG_LEVEL=debug",
		"StandardOutput=append:/home/u/.local/state/twopass/twopass.log",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("unit missing %q:\n%s", want, out)
		}
	}
}

func TestPathFor(t *testing.T) {
	if got := pathFor("darwin", "/Users/u", Label); got != "/Users/u/Library/LaunchAgents/com.twopass.agent.plist" {
		t.Fatalf("darwin path = %s", got)
	}
	if got := pathFor("linux", "/home/u", Label); got != "/home/u/.config/systemd/user/com.twopass.agent.service" {
		t.Fatalf("linux path = %s", got)
	}
}

func TestStatusReportsMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if _, ok := Status(Label); ok {
		t.Fatalf("expected missing service definition")
	}
}
