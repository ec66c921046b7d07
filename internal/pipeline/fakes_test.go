package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"twopass/internal/asr"
	"twopass/internal/audio"
	"twopass/internal/capture"
	"twopass/internal/transcript"
)

const testRate = 16000

// ramp returns n samples whose values encode their absolute position.
func ramp(start, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(start + i)
	}
	return out
}

func blocksOf(sizes ...int) []audio.Block {
	var out []audio.Block
	pos := 0
	for _, n := range sizes {
		out = append(out, audio.Block{Samples: ramp(pos, n), SampleRate: testRate})
		pos += n
	}
	return out
}

// fakeStream replays a script keyed by the 1-based block number.
type fakeStream struct {
	script func(block int) (text string, endpoint bool)

	blocks   int
	samples  int
	ready    int
	decodes  int
	text     string
	endpoint bool
	resets   int
	decodeEr error
	releases atomic.Int32
}

func (f *fakeStream) AcceptWaveform(samples []float32, _ int) {
	f.blocks++
	f.samples += len(samples)
	f.ready += 2
	if f.script != nil {
		f.text, f.endpoint = f.script(f.blocks)
	}
}

func (f *fakeStream) IsReady() bool { return f.ready > 0 }

func (f *fakeStream) Decode() error {
	f.decodes++
	if f.decodeEr != nil {
		return f.decodeEr
	}
	f.ready--
	return nil
}

func (f *fakeStream) IsEndpoint() bool { return f.endpoint }
func (f *fakeStream) Result() string   { return f.text }

func (f *fakeStream) Reset() {
	f.resets++
	f.text, f.endpoint = "", false
}

func (f *fakeStream) Release() { f.releases.Add(1) }

type fakeStreamingEngine struct {
	stream *fakeStream
	err    error
}

func (e *fakeStreamingEngine) NewStream() (asr.StreamingSession, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.stream, nil
}

func (e *fakeStreamingEngine) Close() error { return nil }

// fakeOffline records every sample slice it is asked to decode.
type fakeOffline struct {
	text string
	err  error
	gate chan struct{}

	mu    sync.Mutex
	calls [][]float32
}

func (e *fakeOffline) NewSession() (asr.OfflineSession, error) {
	return &fakeOfflineSession{engine: e}, nil
}

func (e *fakeOffline) Close() error { return nil }

func (e *fakeOffline) Calls() [][]float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]float32(nil), e.calls...)
}

type fakeOfflineSession struct {
	engine  *fakeOffline
	samples []float32
}

func (s *fakeOfflineSession) AcceptWaveform(samples []float32, _ int) {
	s.samples = append([]float32(nil), samples...)
}

func (s *fakeOfflineSession) Decode(ctx context.Context) error {
	if s.engine.gate != nil {
		select {
		case <-s.engine.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.engine.mu.Lock()
	s.engine.calls = append(s.engine.calls, s.samples)
	s.engine.mu.Unlock()
	return s.engine.err
}

func (s *fakeOfflineSession) Result() string { return s.engine.text }
func (s *fakeOfflineSession) Release()       {}

// fakeSource returns scripted blocks, then err (io.EOF when nil). With
// endless set it keeps producing blocks every delay until closed.
type fakeSource struct {
	blocks  []audio.Block
	err     error
	delay   time.Duration
	endless bool

	idx    int
	closed atomic.Int32
}

func (s *fakeSource) Read() (audio.Block, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.closed.Load() > 0 {
		return audio.Block{}, errors.New("source closed")
	}
	if s.idx < len(s.blocks) {
		b := s.blocks[s.idx]
		s.idx++
		return b, nil
	}
	if s.endless {
		return audio.Block{Samples: make([]float32, 160), SampleRate: testRate}, nil
	}
	if s.err != nil {
		return audio.Block{}, s.err
	}
	return audio.Block{}, io.EOF
}

func (s *fakeSource) Close() error {
	s.closed.Add(1)
	return nil
}

// collector is a Publisher that keeps every update.
type collector struct {
	mu      sync.Mutex
	updates []transcript.Update
}

func (c *collector) Publish(u transcript.Update) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, u)
}

func (c *collector) ofKind(k transcript.Kind) []transcript.Update {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []transcript.Update
	for _, u := range c.updates {
		if u.Kind == k {
			out = append(out, u)
		}
	}
	return out
}

type countingMetrics struct {
	blocks, failures, commits, fallbacks, refinements atomic.Int32
	active                                            atomic.Bool
}

func (m *countingMetrics) BlockCaptured() { m.blocks.Add(1) }
func (m *countingMetrics) ReadFailed()    { m.failures.Add(1) }
func (m *countingMetrics) SegmentCommitted(refined bool) {
	m.commits.Add(1)
	if !refined {
		m.fallbacks.Add(1)
	}
}
func (m *countingMetrics) RefinementObserved(time.Duration, error) { m.refinements.Add(1) }
func (m *countingMetrics) RecordingChanged(active bool)            { m.active.Store(active) }

func sourceOpener(src capture.Source) func() (capture.Source, error) {
	return func() (capture.Source, error) { return src, nil }
}

// gatedMetrics parks the first RecordingChanged(false) until release closes.
type gatedMetrics struct {
	countingMetrics
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedMetrics() *gatedMetrics {
	return &gatedMetrics{entered: make(chan struct{}), release: make(chan struct{})}
}

func (m *gatedMetrics) RecordingChanged(active bool) {
	if !active {
		m.once.Do(func() {
			close(m.entered)
			<-m.release
		})
	}
	m.countingMetrics.RecordingChanged(active)
}

// flakySource fails fail times before delivering its blocks, then EOF.
type flakySource struct {
	fail   int
	blocks []audio.Block
	idx    int
}

func (s *flakySource) Read() (audio.Block, error) {
	if s.fail > 0 {
		s.fail--
		return audio.Block{}, errors.New("transient")
	}
	if s.idx < len(s.blocks) {
		b := s.blocks[s.idx]
		s.idx++
		return b, nil
	}
	return audio.Block{}, io.EOF
}

func (s *flakySource) Close() error { return nil }
