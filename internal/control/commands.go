package control

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"twopass/internal/config"
	"twopass/internal/doctor"
	"twopass/internal/hook"
	"twopass/internal/logging"

	"github.com/spf13/cobra"
)

// NewStatusCmd queries daemon status.
func NewStatusCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and the current transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			var status Status
			if err := Call(cfg.Paths.SocketPath, Request{Op: OpStatus}, &status); err != nil {
				return err
			}
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(status)
			}
			printStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "output JSON")
	return cmd
}

func printStatus(w io.Writer, status Status) {
	state := "idle"
	if status.Recording {
		state = "recording"
	}
	fmt.Fprintf(w, "running: %v\nuptime: %.1fs\nstate: %s (segment %d)\n", status.Running, status.UptimeSec, state, status.Segment)
	if status.Message != "" {
		fmt.Fprintf(w, "message: %s\n", status.Message)
	}
	if status.LastWAV != "" {
		fmt.Fprintf(w, "last recording: %s\n", status.LastWAV)
	}
	if status.Display != "" {
		fmt.Fprintf(w, "\n%s\n", status.Display)
	}
	if len(status.Transcripts) > 0 {
		fmt.Fprintln(w)
	}
	for _, t := range status.Transcripts {
		mark := ""
		if !t.Refined {
			mark = " (unrefined)"
		}
		fmt.Fprintf(w, "%s  #%d %s%s\n", t.Timestamp.Format("15:04:05"), t.Segment, t.Text, mark)
	}
}

// NewHealthCmd pings the control socket.
func NewHealthCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Ping the daemon control socket",
		RunE: func(cmd *cobra.Command, args []string) error {
			return simpleOp(cmd, cfgPath, Request{Op: OpHealth})
		},
	}
}

// NewRecordCmd starts, stops or toggles a recording in the daemon.
func NewRecordCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Start, stop or toggle recording in the daemon",
	}
	for _, op := range []struct{ name, short string }{
		{OpStart, "Open the microphone and start transcribing"},
		{OpStop, "Stop recording and save the session WAV"},
		{OpToggle, "Start when idle, stop when recording"},
	} {
		op := op
		cmd.AddCommand(&cobra.Command{
			Use:   op.name,
			Short: op.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return simpleOp(cmd, cfgPath, Request{Op: op.name})
			},
		})
	}
	return cmd
}

// NewExportCmd asks the daemon to write the displayed transcript to a file.
func NewExportCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "export [path]",
		Short: "Export the displayed transcript (default paths.export_path)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := Request{Op: OpExport}
			if len(args) == 1 {
				req.Path = args[0]
			}
			return simpleOp(cmd, cfgPath, req)
		},
	}
}

func simpleOp(cmd *cobra.Command, cfgPath *string, req Request) error {
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	var resp SimpleResponse
	if err := Call(cfg.Paths.SocketPath, req, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("%s failed: %s", req.Op, resp.Message)
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
	return nil
}

// NewTailLogCmd tails the main log file (simple last N lines).
func NewTailLogCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail-log",
		Short: "Show the last log lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			n, _ := cmd.Flags().GetInt("lines")
			return tailFile(cmd.OutOrStdout(), cfg.Paths.LogPath, n)
		},
	}
	cmd.Flags().IntP("lines", "n", 50, "number of lines")
	return cmd
}

func tailFile(w io.Writer, path string, n int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			fmt.Fprintln(w, l)
		}
	}
	return nil
}

// NewTestHookCmd triggers hook manually.
func NewTestHookCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "test-hook \"some text\"",
		Short: "Send sample text through the segment hook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			logger, err := logging.Configure(cfg)
			if err != nil {
				return err
			}
			r := hook.NewRunner(cfg, logger)
			job := hook.Job{Text: args[0], Refined: true, Timestamp: time.Now()}
			out, err := r.Run(cmd.Context(), job)
			if out != "" {
				fmt.Fprintln(cmd.OutOrStdout(), out)
			}
			return err
		},
	}
}

// NewDoctorCmd runs environment checks.
func NewDoctorCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check engines, models, capture and hook",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			results := doctor.Run(cfg)
			exitCode := 0
			for _, r := range results {
				status := "ok"
				if !r.Pass {
					status = "fail"
					exitCode = 1
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-14s %-4s %s\n", r.Name, status, r.Detail)
			}
			if exitCode != 0 {
				return fmt.Errorf("doctor found issues")
			}
			return nil
		},
	}
}

// NewServiceCmd manages the user service definition.
func NewServiceCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the user service (launchd on macOS, systemd elsewhere)",
	}

	cmd.AddCommand(newServiceInstallCmd(cfgPath))
	cmd.AddCommand(newServiceUninstallCmd())
	cmd.AddCommand(newServiceStatusCmd())
	return cmd
}
