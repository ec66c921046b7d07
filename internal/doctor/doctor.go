// Package doctor runs environment checks for the configured engines,
// capture device and hook.
package doctor

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"twopass/internal/capture"
	"twopass/internal/config"
)

// Result represents a diagnostic check.
type Result struct {
	Name   string
	Pass   bool
	Detail string
}

// Run executes doctor checks.
func Run(cfg *config.Config) []Result {
	results := []Result{
		checkFile("config path", cfg.Paths.ConfigPath),
		checkEngine("online", cfg.Online.Engine, cfg.Online.ModelPath),
		checkEngine("offline", cfg.Offline.Engine, cfg.Offline.ModelPath),
		checkRecordingsDir(cfg),
	}
	if cfg.Hook.Enabled {
		results = append(results, checkHookExecutable(cfg.Hook.Command))
	}
	results = append(results, checkPortAudioPkgConfig(), checkCapture())
	return results
}

func checkFile(label, path string) Result {
	if path == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	if _, err := os.Stat(os.ExpandEnv(path)); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: path}
}

// checkEngine verifies the model for engines that load one. The stub needs
// nothing.
func checkEngine(pass, engine, modelPath string) Result {
	label := pass + " model"
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", "stub":
		return Result{Name: label, Pass: true, Detail: "stub engine (no model)"}
	case "whisper", "vosk":
		r := checkFile(label, modelPath)
		if r.Pass {
			r.Detail = fmt.Sprintf("%s: %s", engine, modelPath)
		}
		return r
	default:
		return Result{Name: label, Pass: false, Detail: fmt.Sprintf("unknown engine %q", engine)}
	}
}

func checkRecordingsDir(cfg *config.Config) Result {
	label := "recordings"
	if !cfg.Recordings.Enabled {
		return Result{Name: label, Pass: true, Detail: "disabled"}
	}
	if err := os.MkdirAll(cfg.Recordings.Dir, 0o755); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: cfg.Recordings.Dir}
}

func checkHookExecutable(cmd string) Result {
	label := "hook.command"
	if cmd == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	path := os.ExpandEnv(cmd)
	if fields := strings.Fields(path); len(fields) > 0 {
		path = fields[0]
	}
	// If contains a path separator, treat as explicit path.
	if strings.Contains(path, "/") || strings.Contains(path, "\\") {
		info, err := os.Stat(path)
		if err != nil {
			return Result{Name: label, Pass: false, Detail: err.Error()}
		}
		if info.IsDir() {
			return Result{Name: label, Pass: false, Detail: "is a directory; set hook.command to an executable file"}
		}
		if info.Mode().Perm()&0o111 == 0 {
			return Result{Name: label, Pass: false, Detail: "not executable; chmod +x or choose another command"}
		}
		return Result{Name: label, Pass: true, Detail: path}
	}
	// Else search PATH.
	resolved, err := exec.LookPath(path)
	if err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: resolved}
}

func checkPortAudioPkgConfig() Result {
	pkg, err := exec.LookPath("pkg-config")
	if err != nil {
		return Result{Name: "pkg-config", Pass: false, Detail: "pkg-config not found (brew install pkg-config)"}
	}
	cmd := exec.Command(pkg, "--exists", "portaudio-2.0")
	if err := cmd.Run(); err != nil {
		return Result{Name: "portaudio", Pass: false, Detail: "portaudio-2.0 not found (brew install portaudio)"}
	}
	// Optional display version
	versionCmd := exec.Command(pkg, "--modversion", "portaudio-2.0")
	if out, err := versionCmd.Output(); err == nil {
		return Result{Name: "portaudio", Pass: true, Detail: strings.TrimSpace(string(out))}
	}
	return Result{Name: "portaudio", Pass: true, Detail: "found via pkg-config"}
}

func checkCapture() Result {
	if err := capture.Probe(); err != nil {
		return Result{Name: "capture", Pass: false, Detail: err.Error()}
	}
	return Result{Name: "capture", Pass: true, Detail: "default input device ok"}
}
