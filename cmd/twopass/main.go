package main

import (
	"fmt"
	"os"

	"twopass/internal/control"
	"twopass/internal/daemon"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	root := &cobra.Command{
		Use:   "twopass",
		Short: "twopass: local two-pass dictation daemon",
		Long: `twopass records from your mic, shows streaming partial text from a fast recognizer,
and re-decodes every finished segment with a slower, more accurate one before committing it.

Key commands:
  start|stop|restart          Daemon lifecycle
  record start|stop|toggle    Control the recording session
  status [--json]             Live transcript + recent segments
  export [path]               Write the display transcript to a file
  transcribe <wav>            Run both passes over a WAV file
  mic list|set                Select microphone (alias: microphone, mics)
  doctor|setup                Check deps / download configured models
  models list|download|set    Manage whisper.cpp models
  service install|uninstall|status   launchd / systemd user service
  health|tail-log|test-hook   Liveness, log tail, manual hook

Notable flags/env:
  --metrics-addr <addr>       Enable /metrics (Prometheus text)
  --online-engine, --offline-engine   stub, whisper or vosk
  Env overrides: TWOPASS_METRICS_ADDR, TWOPASS_ONLINE_ENGINE, TWOPASS_OFFLINE_ENGINE,
                 TWOPASS_LOG_LEVEL/FORMAT, TWOPASS_TRANSCRIPTS_ENABLED,
                 TWOPASS_HOOK_ENABLED`,
		Example: `  twopass start --metrics-addr 127.0.0.1:9318
  twopass record toggle
  twopass status
  twopass transcribe meeting.wav --save-wav
  twopass models download ggml-small-q5_1.bin
  twopass models set --online ggml-base.en.bin
  twopass service install --env TWOPASS_METRICS_ADDR=127.0.0.1:9318`,
		DisableFlagsInUseLine: true,
	}

	root.Version = version
	root.SetVersionTemplate("twopass v{{.Version}}\n")

	cfgPath := root.PersistentFlags().StringP("config", "c", "", "Path to config file (TOML). Defaults to ~/.config/twopass/config.toml")
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(daemon.NewStartCmd(cfgPath))
	root.AddCommand(daemon.NewStopCmd(cfgPath))
	root.AddCommand(daemon.NewRestartCmd(cfgPath))
	root.AddCommand(control.NewStatusCmd(cfgPath))
	root.AddCommand(control.NewRecordCmd(cfgPath))
	root.AddCommand(control.NewExportCmd(cfgPath))
	root.AddCommand(control.NewTailLogCmd(cfgPath))
	root.AddCommand(control.NewMicCmd(cfgPath))
	root.AddCommand(control.NewTestHookCmd(cfgPath))
	root.AddCommand(control.NewDoctorCmd(cfgPath))
	root.AddCommand(control.NewServiceCmd(cfgPath))
	root.AddCommand(control.NewSetupCmd(cfgPath))
	root.AddCommand(control.NewHealthCmd(cfgPath))
	root.AddCommand(control.NewTranscribeCmd(cfgPath))
	root.AddCommand(control.NewModelsCmd(cfgPath))

	// Hidden internal serve command used by start.
	root.AddCommand(daemon.NewServeCmd(cfgPath))

	applyColorHelp(root)

	return root.Execute()
}

func applyColorHelp(root *cobra.Command) {
	const (
		boldBlue = "\033[1;34m"
		green    = "\033[32m"
		bold     = "\033[1m"
		dim      = "\033[2m"
		reset    = "\033[0m"
	)
	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if cmd != root {
			_, _ = fmt.Fprint(out, cmd.UsageString())
			return
		}
		write := func(format string, args ...any) { _, _ = fmt.Fprintf(out, format, args...) }
		writeln := func(line string) { _, _ = fmt.Fprintln(out, line) }

		write("%stwopass%s: local two-pass dictation daemon %s(v%s)%s\n", boldBlue, reset, dim, version, reset)
		write("%sStreams partial text while you speak, then refines each segment offline.%s\n\n", dim, reset)

		write("%sUsage%s\n", bold, reset)
		write("  twopass [command] [flags]\n\n")

		write("%sKey commands%s\n", bold, reset)
		writeln("  start|stop|restart          daemon lifecycle")
		writeln("  record start|stop|toggle    control the recording session")
		writeln("  status [--json]             live transcript + recent segments")
		writeln("  export [path]               write the display transcript")
		writeln("  transcribe <wav>            run both passes over a WAV file")
		writeln("  mic list|set                select input device (alias: microphone, mics)")
		writeln("  doctor                      check engines/models/hook/portaudio")
		writeln("  setup                       download configured whisper models")
		writeln("  models list|download|set    manage whisper.cpp models")
		writeln("  service install|uninstall|status manage the user service")
		writeln("  health                      control-socket liveness ping")
		writeln("  tail-log                    show last log lines")
		writeln("  test-hook \"text\"            invoke hook manually")
		writeln("")

		write("%sNotable flags & env%s\n", bold, reset)
		writeln("  --metrics-addr <addr>   enable /metrics (Prometheus)")
		writeln("  --online-engine <name>  streaming pass: stub, whisper, vosk")
		writeln("  --offline-engine <name> refinement pass: stub, whisper")
		writeln("  -c, --config <path>     config file (default ~/.config/twopass/config.toml)")
		writeln("  Env: TWOPASS_METRICS_ADDR=host:port, TWOPASS_ONLINE_ENGINE=vosk,")
		writeln("       TWOPASS_LOG_LEVEL=debug, TWOPASS_LOG_FORMAT=json,")
		writeln("       TWOPASS_TRANSCRIPTS_ENABLED=0, TWOPASS_HOOK_ENABLED=1")
		writeln("")

		write("%sExamples%s\n", bold, reset)
		writeln("  twopass start --metrics-addr 127.0.0.1:9318")
		writeln("  twopass record toggle")
		writeln("  twopass transcribe meeting.wav --save-wav")
		writeln("  twopass models download ggml-small-q5_1.bin")
		writeln("  twopass models set --online ggml-base.en.bin")
		writeln("  twopass service install --env TWOPASS_METRICS_ADDR=127.0.0.1:9318")
		writeln("")

		write("%sCommands%s\n", bold, reset)
		for _, c := range cmd.Commands() {
			if c.Hidden {
				continue
			}
			write("  %s%-15s%s %s\n", green, c.Name(), reset, c.Short)
		}
	})
}
