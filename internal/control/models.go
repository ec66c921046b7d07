package control

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"twopass/internal/config"

	"github.com/spf13/cobra"
)

// simple registry of known ggml models.
var modelRegistry = map[string]string{
	"ggml-base-q5_1.bin":           "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base-q5_1.bin",
	"ggml-small-q5_1.bin":          "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small-q5_1.bin",
	"ggml-medium-q5_1.bin":         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-medium-q5_1.bin",
	"ggml-large-v3-q5_0.bin":       "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3-q5_0.bin",
	"ggml-large-v3-turbo-q8_0.bin": "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3-turbo-q8_0.bin",
}

// modelDir is where downloaded models live: <state_dir>/models.
func modelDir(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.StateDir, "models")
}

// NewModelsCmd wires up the models subcommands (list/download/set).
func NewModelsCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List/download/set whisper models",
	}
	cmd.AddCommand(newModelsListCmd(cfgPath))
	cmd.AddCommand(newModelsDownloadCmd(cfgPath))
	cmd.AddCommand(newModelsSetCmd(cfgPath))
	return cmd
}

func newModelsListCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known models and those present locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			local := map[string]bool{}
			entries, _ := os.ReadDir(modelDir(cfg))
			for _, e := range entries {
				local[e.Name()] = true
			}
			names := make([]string, 0, len(modelRegistry))
			for n := range modelRegistry {
				names = append(names, n)
			}
			for n := range local {
				if _, known := modelRegistry[n]; !known {
					names = append(names, n)
				}
			}
			sort.Strings(names)
			for _, n := range names {
				var tags []string
				if local[n] {
					tags = append(tags, "downloaded")
				}
				if filepath.Base(cfg.Online.ModelPath) == n {
					tags = append(tags, "online")
				}
				if filepath.Base(cfg.Offline.ModelPath) == n {
					tags = append(tags, "offline")
				}
				suffix := ""
				if len(tags) > 0 {
					suffix = " (" + strings.Join(tags, ", ") + ")"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "- %s%s\n", n, suffix)
			}
			return nil
		},
	}
}

func newModelsDownloadCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "download <model>",
		Short: "Download a model from the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			name := args[0]
			url, ok := modelRegistry[name]
			if !ok {
				return fmt.Errorf("unknown model %q; run models list", name)
			}
			dest := filepath.Join(modelDir(cfg), name)
			fmt.Fprintf(cmd.OutOrStdout(), "downloading %s -> %s\n", name, dest)
			return downloadFile(url, dest)
		},
	}
}

func newModelsSetCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <model-name-or-path>",
		Short: "Set offline.model_path (or online.model_path with --online)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			val := resolveModel(cfg, args[0])
			online, _ := cmd.Flags().GetBool("online")
			pass := "offline"
			if online {
				cfg.Online.ModelPath = val
				pass = "online"
			} else {
				cfg.Offline.ModelPath = val
			}
			if err := config.Save(cfg, cfg.Paths.ConfigPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s model set to %s\n", pass, val)
			return nil
		},
	}
	cmd.Flags().Bool("online", false, "set the streaming (first pass) model instead")
	return cmd
}

// resolveModel maps a bare model name into the model directory.
func resolveModel(cfg *config.Config, val string) string {
	if strings.ContainsRune(val, filepath.Separator) || strings.Contains(val, "/") {
		return val
	}
	return filepath.Join(modelDir(cfg), val)
}

func downloadFile(url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: %s", resp.Status)
	}
	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, dest)
}
