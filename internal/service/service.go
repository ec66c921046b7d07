// Package service writes user-level service definitions: a launchd plist on
// macOS and a systemd user unit elsewhere.
package service

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"text/template"
)

// Label names the service on both platforms.
const Label = "com.twopass.agent"

const launchdTemplate = `<?xml version='1.0' encoding='UTF-8'?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
  <key>Label</key><string>{{.Label}}</string>
  <key>ProgramArguments</key>
  <array>
    <string>{{.Binary}}</string>
    <string>serve</string>
    <string>--config</string>
    <string>{{.Config}}</string>
  </array>
  <key>RunAtLoad</key><true/>
  <key>KeepAlive</key><dict><key>SuccessfulExit</key><false/></dict>
  <key>StandardOutPath</key><string>{{.Log}}</string>
  <key>StandardErrorPath</key><string>{{.Log}}</string>
  {{- if .Env }}
  <key>EnvironmentVariables</key>
  <dict>
    {{- range $k, $v := .Env }}
    <key>{{$k}}</key><string>{{$v}}</string>
    {{- end }}
  </dict>
  {{- end }}
</dict>
</plist>`

const systemdTemplate = `[Unit]
Description=twopass two-pass transcription daemon
After=sound.target

[Service]
ExecStart={{.Binary}} serve --config {{.Config}}
Restart=on-failure
{{- range $k, $v := .Env }}
Environment={{$k}}={{$v}}
{{- end }}
StandardOutput=append:{{.Log}}
StandardError=append:{{.Log}}

[Install]
WantedBy=default.target
`

type Params struct {
	Label  string
	Binary string
	Config string
	Log    string
	Env    map[string]string
}

// Path returns the service definition path for a label on this platform.
func Path(label string) string {
	return pathFor(runtime.GOOS, os.Getenv("HOME"), label)
}

func pathFor(goos, home, label string) string {
	if goos == "darwin" {
		return filepath.Join(home, "Library", "LaunchAgents", fmt.Sprintf("%s.plist", label))
	}
	return filepath.Join(home, ".config", "systemd", "user", fmt.Sprintf("%s.service", label))
}

// Render writes the definition for goos to w.
func Render(w io.Writer, goos string, params Params) error {
	src := systemdTemplate
	if goos == "darwin" {
		src = launchdTemplate
	}
	tpl := template.Must(template.New("service").Parse(src))
	return tpl.Execute(w, params)
}

// Write writes the user-level service definition and returns its path.
func Write(params Params) (string, error) {
	if err := os.MkdirAll(filepath.Dir(params.Config), 0o755); err != nil {
		return "", err
	}
	path := Path(params.Label)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := Render(f, runtime.GOOS, params); err != nil {
		return "", err
	}
	return path, f.Close()
}
