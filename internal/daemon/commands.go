package daemon

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"twopass/internal/config"
	"twopass/internal/logging"
	"twopass/internal/run"

	"github.com/spf13/cobra"
)

// runFlags maps per-run flags to the env overrides config.Load applies.
var runFlags = []struct {
	name, env, usage string
}{
	{"metrics-addr", "TWOPASS_METRICS_ADDR", "enable metrics at address (e.g., 127.0.0.1:9318) for this run"},
	{"online-engine", "TWOPASS_ONLINE_ENGINE", "override online.engine for this run (stub, whisper, vosk)"},
	{"offline-engine", "TWOPASS_OFFLINE_ENGINE", "override offline.engine for this run (stub, whisper)"},
}

func addRunFlags(cmd *cobra.Command) {
	for _, f := range runFlags {
		cmd.Flags().String(f.name, "", f.usage)
	}
}

// runOverrides returns the env overrides set on cmd, keyed by variable.
func runOverrides(cmd *cobra.Command) map[string]string {
	out := map[string]string{}
	for _, f := range runFlags {
		flag := cmd.Flags().Lookup(f.name)
		if flag == nil {
			continue
		}
		if v := flag.Value.String(); v != "" {
			out[f.env] = v
		}
	}
	return out
}

// childEnv appends overrides to base in a stable order.
func childEnv(base []string, overrides map[string]string) []string {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := append([]string(nil), base...)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	return env
}

// NewStartCmd starts the daemon (background).
func NewStartCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start twopass daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			return startDaemon(cfg, runOverrides(cmd), cmd.OutOrStdout())
		},
	}
	addRunFlags(cmd)
	return cmd
}

func startDaemon(cfg *config.Config, overrides map[string]string, out io.Writer) error {
	if err := ensureNotRunning(cfg); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Paths.PidPath), 0o755); err != nil {
		return err
	}
	self, err := os.Executable()
	if err != nil {
		return err
	}
	child := exec.Command(self, "serve", "--config", cfg.Paths.ConfigPath)
	child.Env = childEnv(os.Environ(), overrides)
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	if err := child.Start(); err != nil {
		return err
	}
	if !waitForPIDFile(cfg.Paths.PidPath, 2*time.Second) {
		fmt.Fprintf(out, "twopass launched (pid %d) but has not written %s yet; see tail-log\n", child.Process.Pid, cfg.Paths.PidPath)
		return nil
	}
	fmt.Fprintf(out, "twopass started (pid %d)\n", child.Process.Pid)
	return nil
}

func waitForPIDFile(path string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if _, err := os.Stat(path); err == nil {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// NewServeCmd runs the daemon foreground (internal).
func NewServeCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:    "serve",
		Short:  "Run twopass daemon (internal)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			for k, v := range runOverrides(cmd) {
				if err := os.Setenv(k, v); err != nil {
					return fmt.Errorf("set %s: %w", k, err)
				}
			}
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			logger, err := logging.Configure(cfg)
			if err != nil {
				return err
			}
			return run.Serve(cfg, logger)
		},
	}
	addRunFlags(cmd)
	return cmd
}

// NewStopCmd stops the daemon.
func NewStopCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop twopass daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if err := signalDaemon(cfg.Paths.PidPath); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "stop signal sent")
			return nil
		},
	}
}

func signalDaemon(pidPath string) error {
	pid, err := readPID(pidPath)
	if err != nil {
		return err
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(syscall.SIGTERM)
}

// NewRestartCmd stops then starts, keeping any per-run overrides.
func NewRestartCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart twopass daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			_ = signalDaemon(cfg.Paths.PidPath) // not running is fine
			if err := waitForShutdown(cfg.Paths.PidPath, 5*time.Second); err != nil {
				return err
			}
			return startDaemon(cfg, runOverrides(cmd), cmd.OutOrStdout())
		},
	}
	addRunFlags(cmd)
	return cmd
}

func ensureNotRunning(cfg *config.Config) error {
	pid, err := readPID(cfg.Paths.PidPath)
	if err != nil {
		return nil
	}
	if processAlive(pid) {
		return fmt.Errorf("already running with pid %d", pid)
	}
	return nil
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0, err
	}
	return pid, nil
}

// waitForShutdown polls until the pid file is gone or names a dead process,
// removing a stale file.
func waitForShutdown(pidPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		pid, err := readPID(pidPath)
		if err != nil {
			return nil
		}
		if !processAlive(pid) {
			_ = os.Remove(pidPath)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("restart: daemon did not stop within %s", timeout)
}
