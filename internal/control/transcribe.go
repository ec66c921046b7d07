package control

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"twopass/internal/asr"
	"twopass/internal/capture"
	"twopass/internal/config"
	"twopass/internal/hook"
	"twopass/internal/logging"
	"twopass/internal/pipeline"
	"twopass/internal/transcript"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// transcribeOptions controls an offline run of the two-pass pipeline.
type transcribeOptions struct {
	File     string
	SaveWAV  bool
	Realtime bool
	Partials bool
	Hook     bool
	Export   string
}

// NewTranscribeCmd runs both passes over a WAV file and prints the committed
// segments.
func NewTranscribeCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcribe <wavfile>",
		Short: "Run the two-pass pipeline over a WAV file",
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
			opts := transcribeOptions{File: args[0]}
			opts.SaveWAV, _ = cmd.Flags().GetBool("save-wav")
			opts.Realtime, _ = cmd.Flags().GetBool("realtime")
			opts.Partials, _ = cmd.Flags().GetBool("partials")
			opts.Hook, _ = cmd.Flags().GetBool("hook")
			opts.Export, _ = cmd.Flags().GetString("export")

			online, err := asr.NewStreamingEngine(cfg, logger)
			if err != nil {
				return err
			}
			defer online.Close()
			offline, err := asr.NewOfflineEngine(cfg, logger)
			if err != nil {
				return err
			}
			defer offline.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			res, err := transcribeFile(ctx, cfg, logger, online, offline, opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if res.WAVPath != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "saved %s\n", res.WAVPath)
			}
			return nil
		},
	}
	cmd.Flags().Bool("save-wav", false, "archive the replayed audio like a live recording")
	cmd.Flags().Bool("realtime", false, "pace the file at the capture cadence")
	cmd.Flags().Bool("partials", false, "also print streaming partials")
	cmd.Flags().Bool("hook", false, "send each committed segment through the hook")
	cmd.Flags().String("export", "", "write the final display transcript to this path")
	return cmd
}

func transcribeFile(ctx context.Context, cfg *config.Config, logger *logrus.Logger, online asr.StreamingEngine, offline asr.OfflineEngine, opts transcribeOptions, out io.Writer) (pipeline.Result, error) {
	popts := pipeline.OptionsFromConfig(cfg, logger)
	if !opts.SaveWAV {
		popts.RecordingsDir = ""
	} else if popts.RecordingsDir == "" {
		popts.RecordingsDir = cfg.Recordings.Dir
	}
	capOpts := capture.OptionsFromConfig(cfg)
	capOpts.File = opts.File
	capOpts.Realtime = opts.Realtime
	popts.OpenSource = func() (capture.Source, error) {
		return capture.Open(capOpts, logger)
	}

	var (
		mu      sync.Mutex
		commits []hook.Job
	)
	popts.Publisher = pipeline.PublisherFunc(func(u transcript.Update) {
		switch u.Kind {
		case transcript.KindCommit:
			mark := ""
			if !u.Refined {
				mark = " (unrefined)"
			}
			fmt.Fprintf(out, "%d: %s%s\n", u.Segment, u.Text, mark)
			mu.Lock()
			commits = append(commits, hook.Job{Segment: u.Segment, Text: u.Text, Refined: u.Refined, Timestamp: u.Timestamp})
			mu.Unlock()
		case transcript.KindPartial:
			if opts.Partials && u.Text != "" {
				fmt.Fprintf(out, "   ... %d: %s\n", u.Segment, u.Text)
			}
		}
	})

	rec, err := pipeline.NewRecorder(online, offline, popts)
	if err != nil {
		return pipeline.Result{}, err
	}
	sess, err := rec.Start()
	if err != nil {
		return pipeline.Result{}, err
	}
	var res pipeline.Result
	select {
	case <-sess.Done():
		res = sess.Result()
	case <-ctx.Done():
		if res, err = rec.Stop(); err != nil {
			<-sess.Done()
			res = sess.Result()
		}
	}
	if res.Err != nil {
		return res, res.Err
	}

	if opts.Export != "" {
		if err := transcript.Export(opts.Export, strings.ToLower(res.Transcript)); err != nil {
			return res, err
		}
	}
	if opts.Hook {
		runner := hook.NewRunner(cfg, logger)
		mu.Lock()
		jobs := append([]hook.Job(nil), commits...)
		mu.Unlock()
		for _, job := range jobs {
			if len(strings.TrimSpace(job.Text)) < cfg.Hook.MinChars {
				continue
			}
			if _, err := runner.Run(ctx, job); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}
