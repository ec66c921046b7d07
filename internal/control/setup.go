package control

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"twopass/internal/config"

	"github.com/spf13/cobra"
)

// NewSetupCmd downloads the whisper models named in the config if missing.
func NewSetupCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Download configured whisper models if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if err := config.MustStatePaths(cfg); err != nil {
				return err
			}
			for _, m := range []struct{ pass, engine, path string }{
				{"online", cfg.Online.Engine, cfg.Online.ModelPath},
				{"offline", cfg.Offline.Engine, cfg.Offline.ModelPath},
			} {
				if !strings.EqualFold(m.engine, "whisper") {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: engine %q needs no download\n", m.pass, m.engine)
					continue
				}
				modelPath := os.ExpandEnv(m.path)
				if _, err := os.Stat(modelPath); err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: model already present at %s\n", m.pass, modelPath)
					continue
				}
				url, ok := modelRegistry[filepath.Base(modelPath)]
				if !ok {
					return fmt.Errorf("%s: %s is missing and not a known model; see models list", m.pass, modelPath)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: downloading model to %s\n", m.pass, modelPath)
				if err := downloadFile(url, modelPath); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "setup complete")
			return nil
		},
	}
}
