package run

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"twopass/internal/asr"
	"twopass/internal/config"
	"twopass/internal/control"
	"twopass/internal/hook"
	"twopass/internal/pipeline"
	"twopass/internal/transcript"

	"github.com/sirupsen/logrus"
)

// Server owns the recorder and plays the presentation role: it receives
// transcript updates, keeps the current display and serves the control socket,
// hook dispatch and metrics.
type Server struct {
	cfg       *config.Config
	logger    *logrus.Logger
	hook      *hook.Runner
	recorder  *pipeline.Recorder
	startedAt time.Time

	stateMu     sync.Mutex
	display     string
	segment     int
	message     string
	lastWAV     string
	transcripts []control.Transcript

	metrics *metrics
	hookCh  chan hook.Job

	wg sync.WaitGroup
}

// Serve runs the daemon until interrupted.
func Serve(cfg *config.Config, logger *logrus.Logger) error {
	if err := config.MustStatePaths(cfg); err != nil {
		return err
	}
	// Write pid file.
	if err := os.WriteFile(cfg.Paths.PidPath, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(cfg.Paths.PidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warnf("remove pid file: %v", err)
		}
	}()
	// Ensure socket removed
	if err := os.Remove(cfg.Paths.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Debugf("remove stale socket: %v", err)
	}

	online, err := asr.NewStreamingEngine(cfg, logger)
	if err != nil {
		return fmt.Errorf("online engine: %w", err)
	}
	defer online.Close()
	offline, err := asr.NewOfflineEngine(cfg, logger)
	if err != nil {
		return fmt.Errorf("offline engine: %w", err)
	}
	defer offline.Close()

	srv, err := NewServer(cfg, logger, online, offline, pipeline.OptionsFromConfig(cfg, logger))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Control socket
	go srv.controlLoop(ctx)

	// Hook worker
	srv.wg.Add(1)
	go srv.hookWorker(ctx)

	// Metrics server
	if cfg.Metrics.Enabled {
		go srv.metricsServe(ctx.Done(), cfg.Metrics.Addr)
	}

	logger.Infof("twopass ready (online=%s offline=%s)", cfg.Online.Engine, cfg.Offline.Engine)

	// Handle signals
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	select {
	case s := <-sigCh:
		logger.Infof("received signal %s, shutting down", s)
	case <-ctx.Done():
	}
	if _, err := srv.recorder.Stop(); err != nil && !errors.Is(err, pipeline.ErrNotRecording) {
		logger.Warnf("stop recording: %v", err)
	}
	cancel()
	// Wait for hook worker to drain
	srv.wg.Wait()
	return nil
}

// NewServer wires a recorder whose updates and metrics flow into the server.
func NewServer(cfg *config.Config, logger *logrus.Logger, online asr.StreamingEngine, offline asr.OfflineEngine, opts pipeline.Options) (*Server, error) {
	srv := &Server{
		cfg:         cfg,
		logger:      logger,
		hook:        hook.NewRunner(cfg, logger),
		startedAt:   time.Now(),
		transcripts: make([]control.Transcript, 0, cfg.UI.StatusTail),
		metrics:     newMetrics(),
		hookCh:      make(chan hook.Job, max(1, cfg.Hook.QueueSize)),
	}
	opts.Publisher = srv
	opts.Metrics = srv.metrics
	rec, err := pipeline.NewRecorder(online, offline, opts)
	if err != nil {
		return nil, err
	}
	srv.recorder = rec
	return srv, nil
}

// Publish receives updates from the decode goroutine.
func (s *Server) Publish(u transcript.Update) {
	s.stateMu.Lock()
	s.display = u.Display
	switch u.Kind {
	case transcript.KindCommit:
		s.segment = u.Segment + 1
	default:
		s.segment = u.Segment
	}
	if u.Status != "" {
		s.message = u.Status
	}
	s.stateMu.Unlock()

	switch u.Kind {
	case transcript.KindCommit:
		s.logger.Infof("segment %d: %q (refined=%v)", u.Segment, u.Text, u.Refined)
		s.recordTranscript(u)
		s.dispatchHook(u)
	case transcript.KindStatus:
		s.logger.Info(u.Status)
	}
}

func (s *Server) dispatchHook(u transcript.Update) {
	if !s.hook.Accept(u.Text) {
		if s.cfg.Hook.Enabled {
			s.logger.Debug("hook skipped (cooldown or min_chars)")
			s.metrics.incHook("skipped")
		}
		return
	}
	job := hook.Job{
		Segment:   u.Segment,
		Text:      u.Text,
		Refined:   u.Refined,
		Timestamp: u.Timestamp,
	}
	select {
	case s.hookCh <- job:
	default:
		s.metrics.incHook("dropped")
		s.logger.Warn("hook queue full, dropping job")
	}
}

func (s *Server) recordTranscript(u transcript.Update) {
	if !s.cfg.Transcripts.Enabled {
		return
	}
	entry := control.Transcript{
		Segment:   u.Segment,
		Text:      u.Text,
		Refined:   u.Refined,
		Timestamp: u.Timestamp,
	}
	s.stateMu.Lock()
	s.transcripts = append(s.transcripts, entry)
	if len(s.transcripts) > s.cfg.UI.StatusTail {
		s.transcripts = s.transcripts[len(s.transcripts)-s.cfg.UI.StatusTail:]
	}
	s.stateMu.Unlock()
	if err := transcript.AppendLog(s.cfg.Paths.TranscriptPath, u); err != nil {
		s.logger.Warnf("write transcript: %v", err)
	}
}

func (s *Server) controlLoop(ctx context.Context) {
	ln, err := net.Listen("unix", s.cfg.Paths.SocketPath)
	if err != nil {
		s.logger.Errorf("control listen: %v", err)
		return
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Errorf("control accept: %v", err)
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer func() {
		if err := conn.Close(); err != nil && ctx.Err() == nil {
			s.logger.Warnf("control connection close: %v", err)
		}
	}()
	sc := bufio.NewScanner(conn)
	if !sc.Scan() {
		return
	}
	var req control.Request
	if err := json.Unmarshal(sc.Bytes(), &req); err != nil {
		_ = json.NewEncoder(conn).Encode(control.SimpleResponse{Message: "bad request"})
		return
	}
	if err := json.NewEncoder(conn).Encode(s.handle(req)); err != nil {
		s.logger.Warnf("control reply: %v", err)
	}
}

// handle executes one control request and returns the reply value.
func (s *Server) handle(req control.Request) any {
	switch req.Op {
	case control.OpStatus:
		return s.status()
	case control.OpHealth:
		return control.SimpleResponse{OK: true, Message: "ok"}
	case control.OpStart:
		return s.start()
	case control.OpStop:
		return s.stop()
	case control.OpToggle:
		if s.recorder.Recording() {
			return s.stop()
		}
		return s.start()
	case control.OpExport:
		return s.export(req.Path)
	default:
		return control.SimpleResponse{Message: fmt.Sprintf("unknown op %q", req.Op)}
	}
}

func (s *Server) status() control.Status {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	out := control.Status{
		Running:     true,
		UptimeSec:   time.Since(s.startedAt).Seconds(),
		Recording:   s.recorder.Recording(),
		Segment:     s.segment,
		Display:     s.display,
		Message:     s.message,
		LastWAV:     s.lastWAV,
		Transcripts: make([]control.Transcript, len(s.transcripts)),
	}
	copy(out.Transcripts, s.transcripts)
	return out
}

// start leaves the display alone on failure; on success the recorder
// publishes the cleared display itself.
func (s *Server) start() control.SimpleResponse {
	if _, err := s.recorder.Start(); err != nil {
		s.setMessage(fmt.Sprintf("start failed: %v", err))
		return control.SimpleResponse{Message: err.Error()}
	}
	return control.SimpleResponse{OK: true, Message: "recording"}
}

func (s *Server) stop() control.SimpleResponse {
	res, err := s.recorder.Stop()
	if err != nil {
		return control.SimpleResponse{Message: err.Error()}
	}
	msg := "stopped; nothing captured"
	if res.WAVPath != "" {
		msg = "stopped; saved " + res.WAVPath
	} else if !res.EncodeSkipped {
		msg = "stopped"
	}
	s.stateMu.Lock()
	if res.WAVPath != "" {
		s.lastWAV = res.WAVPath
	}
	s.stateMu.Unlock()
	s.setMessage(msg)
	return control.SimpleResponse{OK: true, Message: msg}
}

func (s *Server) export(path string) control.SimpleResponse {
	if strings.TrimSpace(path) == "" {
		path = s.cfg.Paths.ExportPath
	}
	s.stateMu.Lock()
	display := s.display
	s.stateMu.Unlock()
	if err := transcript.Export(path, display); err != nil {
		return control.SimpleResponse{Message: fmt.Sprintf("export failed: %v", err)}
	}
	s.logger.Infof("transcript exported to %s", path)
	return control.SimpleResponse{OK: true, Message: path}
}

func (s *Server) setMessage(msg string) {
	s.stateMu.Lock()
	s.message = msg
	s.stateMu.Unlock()
}
