package hook

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"twopass/internal/config"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"
)

// Job is one committed segment handed to the hook command.
type Job struct {
	Segment   int
	Text      string
	Refined   bool
	Timestamp time.Time
}

// Runner executes the segment hook with cooldown and prefix handling.
type Runner struct {
	cfg      *config.Config
	logger   *logrus.Logger
	lastRun  time.Time
	mu       sync.Mutex
	hostname string
}

func NewRunner(cfg *config.Config, logger *logrus.Logger) *Runner {
	host, _ := os.Hostname()
	return &Runner{
		cfg:      cfg,
		logger:   logger,
		hostname: host,
	}
}

// Accept reports whether text is long enough and the cooldown has passed.
func (r *Runner) Accept(text string) bool {
	if !r.cfg.Hook.Enabled || r.cfg.Hook.Command == "" {
		return false
	}
	if len(strings.TrimSpace(text)) < r.cfg.Hook.MinChars {
		return false
	}
	return r.ShouldRun()
}

// ShouldRun returns whether cooldown allows a new hook.
func (r *Runner) ShouldRun() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cfg.Hook.CooldownSec <= 0 {
		return true
	}
	return time.Since(r.lastRun).Seconds() >= r.cfg.Hook.CooldownSec
}

// Command returns the executable and fixed arguments. A command with no
// configured args is split shell-style, so "notify-send -a twopass" works.
func (r *Runner) Command() (string, []string, error) {
	cmdStr := strings.TrimSpace(r.cfg.Hook.Command)
	if cmdStr == "" {
		return "", nil, fmt.Errorf("no hook.command configured")
	}
	if len(r.cfg.Hook.Args) > 0 {
		return cmdStr, append([]string{}, r.cfg.Hook.Args...), nil
	}
	parts, err := ParseArgs(cmdStr)
	if err != nil {
		return "", nil, fmt.Errorf("parse hook.command: %w", err)
	}
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("no hook.command configured")
	}
	return parts[0], parts[1:], nil
}

// Run executes the configured command with the segment text as last argument.
// It returns the combined output.
func (r *Runner) Run(ctx context.Context, job Job) (string, error) {
	r.mu.Lock()
	r.lastRun = time.Now()
	r.mu.Unlock()

	name, args, err := r.Command()
	if err != nil {
		return "", err
	}

	prefix := strings.ReplaceAll(r.cfg.Hook.Prefix, "${hostname}", r.hostname)
	text := job.Text
	if r.cfg.Hook.RedactPII {
		text = redactPII(text)
	}
	payload := strings.TrimSpace(prefix + text)
	args = append(args, payload)

	runCtx := ctx
	var cancel context.CancelFunc
	if r.cfg.Hook.TimeoutSec > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(float64(time.Second)*r.cfg.Hook.TimeoutSec))
		defer cancel()
	}
	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Env = os.Environ()
	for k, v := range r.cfg.Hook.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = append(cmd.Env,
		fmt.Sprintf("TWOPASS_TEXT=%s", text),
		fmt.Sprintf("TWOPASS_PREFIX=%s", prefix),
		fmt.Sprintf("TWOPASS_SEGMENT=%d", job.Segment),
		fmt.Sprintf("TWOPASS_REFINED=%s", strconv.FormatBool(job.Refined)),
	)

	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))
	if output != "" {
		r.logger.Infof("hook output: %s", output)
	}
	if err != nil {
		return output, fmt.Errorf("hook failed: %w", err)
	}
	return output, nil
}

// ParseArgs allows Hook.Args to be configured as a single string.
func ParseArgs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}
	return shlex.Split(raw)
}

var (
	emailRE = regexp.MustCompile(`[\w.+-]+@[\w.-]+\.[A-Za-z]{2,}`)
	phoneRE = regexp.MustCompile(`\+?\d[\d\s\-\(\)]{6,}\d`)
)

func redactPII(s string) string {
	s = emailRE.ReplaceAllString(s, "[redacted-email]")
	s = phoneRE.ReplaceAllString(s, "[redacted-phone]")
	return s
}
