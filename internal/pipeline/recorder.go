package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"twopass/internal/asr"
	"twopass/internal/audio"
	"twopass/internal/capture"
	"twopass/internal/config"
	"twopass/internal/transcript"

	"github.com/sirupsen/logrus"
)

// Publisher receives transcript updates from the decode goroutine. Publish
// must not block for long; it runs between capture reads.
type Publisher interface {
	Publish(transcript.Update)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(transcript.Update)

// Publish calls f(u).
func (f PublisherFunc) Publish(u transcript.Update) { f(u) }

// Metrics observes pipeline events. Implementations must be safe for
// concurrent use.
type Metrics interface {
	BlockCaptured()
	ReadFailed()
	SegmentCommitted(refined bool)
	RefinementObserved(d time.Duration, err error)
	RecordingChanged(active bool)
}

type nopMetrics struct{}

func (nopMetrics) BlockCaptured() {}
func (nopMetrics) ReadFailed() {}
func (nopMetrics) SegmentCommitted(bool) {}
func (nopMetrics) RefinementObserved(time.Duration, error) {}
func (nopMetrics) RecordingChanged(bool) {}

// Options configures a Recorder.
type Options struct {
	SampleRate   int
	BlockSamples int
	// TailSamples is the look-back kept across segment boundaries.
	TailSamples int
	// MaxReadFailures is how many consecutive capture errors a recording
	// tolerates; one more ends it.
	MaxReadFailures int
	RefineTimeout   time.Duration
	// RecordingsDir receives the WAV archive at stop. Empty disables it.
	RecordingsDir string
	// FullSession archives every captured block instead of the segment buffer.
	FullSession bool
	OpenSource  func() (capture.Source, error)
	Publisher   Publisher
	Metrics     Metrics
	Logger      *logrus.Logger
}

// OptionsFromConfig fills the tunables from cfg and opens the configured
// microphone. Publisher and Metrics are left for the caller.
func OptionsFromConfig(cfg *config.Config, logger *logrus.Logger) Options {
	opts := Options{
		SampleRate:      cfg.Audio.SampleRate,
		BlockSamples:    cfg.BlockSamples(),
		TailSamples:     cfg.TailSamples(),
		MaxReadFailures: cfg.Audio.MaxReadFailures,
		RefineTimeout:   time.Duration(cfg.Refine.TimeoutSec * float64(time.Second)),
		FullSession:     cfg.Recordings.FullSession,
		Logger:          logger,
	}
	if cfg.Recordings.Enabled {
		opts.RecordingsDir = cfg.Recordings.Dir
	}
	capOpts := capture.OptionsFromConfig(cfg)
	opts.OpenSource = func() (capture.Source, error) {
		return capture.Open(capOpts, logger)
	}
	return opts
}

// Result summarises a finished recording.
type Result struct {
	// WAVPath is the archive written at stop, if any.
	WAVPath string
	// EncodeSkipped is set when there was no audio to archive.
	EncodeSkipped bool
	Samples       int
	Segments      int
	Transcript    string
	// Err is the reason a recording ended on its own, nil for a normal stop
	// or end of input.
	Err      error
	Duration time.Duration
}

// Recorder owns the start/stop lifecycle. Start and Stop are called from the
// control side; each recording runs its own decode goroutine.
type Recorder struct {
	opts    Options
	online  asr.StreamingEngine
	offline asr.OfflineEngine

	// lifecycle serialises Start and Stop; mu guards active only and is
	// never held while waiting on a decode goroutine.
	lifecycle sync.Mutex
	mu        sync.Mutex
	active    *Session

	lastMu sync.Mutex
	last   transcript.Update
}

// NewRecorder validates opts and returns an idle Recorder.
func NewRecorder(online asr.StreamingEngine, offline asr.OfflineEngine, opts Options) (*Recorder, error) {
	if online == nil || offline == nil {
		return nil, errors.New("pipeline: both engines are required")
	}
	if opts.SampleRate <= 0 || opts.BlockSamples <= 0 {
		return nil, fmt.Errorf("pipeline: invalid rate=%d block=%d", opts.SampleRate, opts.BlockSamples)
	}
	if opts.OpenSource == nil {
		return nil, errors.New("pipeline: no capture source")
	}
	if opts.TailSamples < 0 {
		opts.TailSamples = TailSamples(opts.SampleRate)
	}
	if opts.MaxReadFailures <= 0 {
		opts.MaxReadFailures = config.DefaultMaxReadFailures
	}
	if opts.RefineTimeout <= 0 {
		opts.RefineTimeout = 30 * time.Second
	}
	if opts.Publisher == nil {
		opts.Publisher = PublisherFunc(func(transcript.Update) {})
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	return &Recorder{opts: opts, online: online, offline: offline}, nil
}

// Recording reports whether a recording is active.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// Active returns the running session or nil.
func (r *Recorder) Active() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Start opens the capture source, creates a fresh streaming session and
// spawns the decode goroutine. The transcript restarts at segment zero and
// an empty display is published before any partial. A session that ended on
// its own but is still finalising is waited for.
func (r *Recorder) Start() (*Session, error) {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	if prev := r.Active(); prev != nil {
		select {
		case <-prev.loopDone:
			<-prev.done
		default:
			return nil, ErrAlreadyRecording
		}
	}
	src, err := r.opts.OpenSource()
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	stream, err := r.online.NewStream()
	if err != nil {
		if cerr := src.Close(); cerr != nil {
			r.opts.Logger.Warnf("close capture: %v", cerr)
		}
		return nil, fmt.Errorf("create stream: %w", err)
	}
	s := &Session{
		rec:       r,
		source:    src,
		decoder:   NewDecoder(stream, r.opts.SampleRate, r.opts.Logger),
		refiner:   NewRefiner(r.offline, r.opts.SampleRate, r.opts.TailSamples),
		buf:       audio.NewBuffer(r.opts.SampleRate, r.opts.SampleRate*10),
		startedAt: time.Now(),
		loopDone:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	if r.opts.FullSession {
		s.archive = audio.NewBuffer(r.opts.SampleRate, 0)
	}
	s.recording.Store(true)
	r.mu.Lock()
	r.active = s
	r.mu.Unlock()
	r.opts.Metrics.RecordingChanged(true)
	r.opts.Logger.Infof("recording started (rate=%d block=%d)", r.opts.SampleRate, r.opts.BlockSamples)
	r.publish(transcript.Update{
		Kind:      transcript.KindStatus,
		Status:    "recording",
		Timestamp: time.Now(),
	})
	go r.run(s)
	return s, nil
}

// Stop clears the recording flag, waits for the decode goroutine to exit,
// releases the capture source and writes the WAV archive.
func (r *Recorder) Stop() (Result, error) {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	s := r.Active()
	if s == nil {
		return Result{}, ErrNotRecording
	}
	s.recording.Store(false)
	<-s.loopDone
	if s.selfExit {
		<-s.done
		return s.result, nil
	}
	res := s.finish()
	r.clearActive(s)
	s.markDone()
	return res, nil
}

func (r *Recorder) clearActive(s *Session) {
	r.mu.Lock()
	if r.active == s {
		r.active = nil
	}
	r.mu.Unlock()
}

// LastUpdate returns the most recent update published by any session.
func (r *Recorder) LastUpdate() transcript.Update {
	r.lastMu.Lock()
	defer r.lastMu.Unlock()
	return r.last
}

func (r *Recorder) publish(u transcript.Update) {
	r.lastMu.Lock()
	r.last = u
	r.lastMu.Unlock()
	r.opts.Publisher.Publish(u)
}

// run drives one session. A session that ends on its own stays active until
// it is finalised and its status is published.
func (r *Recorder) run(s *Session) {
	s.selfExit = s.loop()
	close(s.loopDone)
	if !s.selfExit {
		return
	}
	res := s.finish()
	msg := "recording ended"
	if res.Err != nil {
		msg = fmt.Sprintf("recording stopped: %v", res.Err)
	}
	if res.WAVPath != "" {
		msg += "; saved " + res.WAVPath
	}
	r.publish(transcript.Update{
		Kind:      transcript.KindStatus,
		Display:   strings.ToLower(res.Transcript),
		Segment:   res.Segments,
		Status:    msg,
		Timestamp: time.Now(),
	})
	r.clearActive(s)
	s.markDone()
}

// Session is one recording from Start to Stop.
type Session struct {
	rec       *Recorder
	recording atomic.Bool
	source    capture.Source
	decoder   *Decoder
	refiner   *Refiner
	buf       *audio.Buffer
	archive   *audio.Buffer
	asm       transcript.Assembler
	startedAt time.Time
	// pending is the open segment's last partial text.
	pending string

	// err and selfExit are written by the decode goroutine before loopDone
	// closes.
	err      error
	selfExit bool
	loopDone chan struct{}

	finishOnce sync.Once
	result     Result
	doneOnce   sync.Once
	done       chan struct{}
}

// Recording reports whether the decode goroutine is still reading.
func (s *Session) Recording() bool { return s.recording.Load() }

// Done is closed once the session has been finalised.
func (s *Session) Done() <-chan struct{} { return s.done }

// Result returns the final summary. It is valid after Done is closed.
func (s *Session) Result() Result { return s.result }

// loop reads and decodes until the flag clears. It reports whether it ended
// on its own (end of input or capture failure).
func (s *Session) loop() bool {
	opts := s.rec.opts
	defer s.decoder.Release()
	failures := 0
	for s.recording.Load() {
		blk, err := s.source.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				opts.Logger.Info("capture reached end of input")
				s.recording.Store(false)
				s.flushPending()
				return true
			}
			failures++
			opts.Metrics.ReadFailed()
			if failures > opts.MaxReadFailures {
				s.err = fmt.Errorf("%w: %d consecutive read errors: %v", ErrCaptureFailed, failures, err)
				opts.Logger.Errorf("%v", s.err)
				s.recording.Store(false)
				s.flushPending()
				return true
			}
			opts.Logger.Warnf("capture read: %v", err)
			continue
		}
		failures = 0
		if blk.Len() == 0 {
			continue
		}
		if blk.SampleRate != opts.SampleRate {
			s.err = fmt.Errorf("%w: block at %d Hz, recording at %d Hz", ErrRateMismatch, blk.SampleRate, opts.SampleRate)
			opts.Logger.Errorf("capture: %v", s.err)
			s.recording.Store(false)
			s.flushPending()
			return true
		}
		opts.Metrics.BlockCaptured()
		s.buf.Append(blk)
		if s.archive != nil {
			s.archive.Append(blk)
		}
		if !s.recording.Load() {
			return false
		}
		if err := s.step(blk); err != nil {
			s.err = err
			opts.Logger.Errorf("decode: %v", err)
			s.recording.Store(false)
			s.flushPending()
			return true
		}
	}
	return false
}

func (s *Session) step(blk audio.Block) error {
	partial, endpoint, err := s.decoder.Feed(blk)
	if err != nil {
		return err
	}
	if !endpoint {
		s.pending = partial
		s.rec.publish(s.asm.Partial(partial))
		return nil
	}
	s.pending = ""
	if strings.TrimSpace(partial) == "" {
		s.buf.Reset()
		s.rec.publish(s.asm.Partial(""))
		return nil
	}
	s.commit(partial)
	return nil
}

// flushPending closes the open segment with its last partial so that text
// already on screen survives the end of the session.
func (s *Session) flushPending() {
	if strings.TrimSpace(s.pending) == "" {
		return
	}
	s.commit(s.pending)
	s.pending = ""
}

// commit refines the buffered segment and closes it. Refinement failures
// fall back to the streaming text.
func (s *Session) commit(partial string) {
	opts := s.rec.opts
	ctx, cancel := context.WithTimeout(context.Background(), opts.RefineTimeout)
	started := time.Now()
	text, err := s.refiner.Refine(ctx, s.buf)
	cancel()
	opts.Metrics.RefinementObserved(time.Since(started), err)

	refined := true
	switch {
	case err != nil:
		opts.Logger.Warnf("segment %d: %v; keeping streaming text", s.asm.Segment(), err)
		text, refined = partial, false
	case text == "":
		opts.Logger.Warnf("segment %d: refinement returned no text; keeping streaming text", s.asm.Segment())
		text, refined = partial, false
	}
	u := s.asm.Commit(text, refined)
	opts.Metrics.SegmentCommitted(refined)
	opts.Logger.Infof("segment %d committed: %q", u.Segment, u.Text)
	s.rec.publish(u)
}

// finish releases the capture source and writes the archive exactly once.
// Concurrent callers block until the first has finished.
func (s *Session) finish() Result {
	s.finishOnce.Do(func() {
		opts := s.rec.opts
		if err := s.source.Close(); err != nil {
			opts.Logger.Warnf("close capture: %v", err)
		}
		opts.Metrics.RecordingChanged(false)

		src := s.buf
		if s.archive != nil {
			src = s.archive
		}
		res := Result{
			Samples:    src.Len(),
			Segments:   s.asm.Segment(),
			Transcript: s.asm.Finalized(),
			Err:        s.err,
			Duration:   time.Since(s.startedAt),
		}
		switch {
		case src.Empty():
			res.EncodeSkipped = true
		case opts.RecordingsDir != "":
			path, err := audio.WriteWAVFile(opts.RecordingsDir, src.Blocks(), opts.SampleRate, time.Now())
			if err != nil {
				opts.Logger.Errorf("write recording: %v", err)
			} else {
				res.WAVPath = path
				opts.Logger.Infof("recording saved to %s", path)
			}
		}
		opts.Logger.Infof("recording stopped after %s (%d segments)", res.Duration.Round(time.Millisecond), res.Segments)
		s.result = res
	})
	return s.result
}

func (s *Session) markDone() {
	s.doneOnce.Do(func() { close(s.done) })
}
