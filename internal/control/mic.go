package control

import (
	"encoding/json"
	"fmt"
	"runtime"

	"twopass/internal/capture"
	"twopass/internal/config"

	"github.com/spf13/cobra"
)

// NewMicCmd groups mic subcommands.
func NewMicCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "mic",
		Aliases: []string{"microphone", "mics"},
		Short:   "Microphone management",
	}
	cmd.AddCommand(newMicListCmd())
	cmd.AddCommand(newMicSetCmd(cfgPath))
	return cmd
}

func newMicListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available microphones",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			devs, err := capture.ListDevices()
			if err != nil {
				return err
			}
			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(devs)
			}
			for _, m := range devs {
				defMark := ""
				if m.Default {
					defMark = " (default)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[%d] %s%s (in %d ch, latency %.2fms)\n", m.Index, m.Name, defMark, m.Channels, m.LatencyMs)
			}
			if len(devs) == 0 && runtime.GOOS == "darwin" {
				fmt.Fprintln(cmd.OutOrStdout(), "tip: if no devices appear, install PortAudio: brew install portaudio")
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "output JSON")
	return cmd
}

func newMicSetCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set [name]",
		Short: "Set microphone device name in config",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			name, err := micName(cmd, args)
			if err != nil {
				return err
			}
			cfg.Audio.DeviceName = name
			if err := config.Save(cfg, cfg.Paths.ConfigPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mic set to %q in %s\n", name, cfg.Paths.ConfigPath)
			return nil
		},
	}
	cmd.Flags().Int("index", -1, "device index from 'mic list'")
	return cmd
}

func micName(cmd *cobra.Command, args []string) (string, error) {
	idx, _ := cmd.Flags().GetInt("index")
	if idx < 0 {
		if len(args) == 0 {
			return "", fmt.Errorf("pass a device name or --index")
		}
		return args[0], nil
	}
	devs, err := capture.ListDevices()
	if err != nil {
		return "", err
	}
	return deviceByIndex(devs, idx)
}

func deviceByIndex(devs []capture.Device, idx int) (string, error) {
	for _, d := range devs {
		if d.Index == idx {
			return d.Name, nil
		}
	}
	return "", fmt.Errorf("no input device with index %d", idx)
}
