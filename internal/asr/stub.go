package asr

import (
	"context"
	"fmt"
	"math"
)

// StubStreamingEngine produces deterministic partial text from signal energy
// without loading a model. It is useful for dry runs of the pipeline.
type StubStreamingEngine struct {
	sampleRate int
	threshold  float64
	silence    int
}

// NewStubStreamingEngine returns a streaming engine that treats blocks whose
// RMS reaches threshold as speech and reports an endpoint after silenceMS of
// trailing silence.
func NewStubStreamingEngine(sampleRate int, threshold float64, silenceMS int) *StubStreamingEngine {
	if silenceMS <= 0 {
		silenceMS = 800
	}
	return &StubStreamingEngine{
		sampleRate: sampleRate,
		threshold:  threshold,
		silence:    sampleRate * silenceMS / 1000,
	}
}

// NewStream implements StreamingEngine.
func (e *StubStreamingEngine) NewStream() (StreamingSession, error) {
	return &stubStream{engine: e, chunk: max(1, e.sampleRate/10)}, nil
}

// Close implements StreamingEngine.
func (e *StubStreamingEngine) Close() error { return nil }

type stubStream struct {
	engine  *StubStreamingEngine
	chunk   int
	pending int
	decoded int
	speech  int
	trail   int
	words   int
}

func (s *stubStream) AcceptWaveform(samples []float32, _ int) {
	if len(samples) == 0 {
		return
	}
	s.pending += len(samples)
	if rms(samples) >= s.engine.threshold {
		s.speech += len(samples)
		s.trail = 0
		return
	}
	s.trail += len(samples)
}

func (s *stubStream) IsReady() bool { return s.pending >= s.chunk }

func (s *stubStream) Decode() error {
	if s.pending < s.chunk {
		return nil
	}
	s.pending -= s.chunk
	s.decoded += s.chunk
	if s.speech > 0 {
		s.words = 1 + s.speech/max(1, s.engine.sampleRate/2)
	}
	return nil
}

func (s *stubStream) IsEndpoint() bool {
	if s.speech > 0 {
		return s.trail >= s.engine.silence
	}
	return s.trail >= 3*s.engine.silence
}

func (s *stubStream) Result() string {
	if s.words == 0 {
		return ""
	}
	return fmt.Sprintf("[stub] %d words", s.words)
}

func (s *stubStream) Reset() {
	*s = stubStream{engine: s.engine, chunk: s.chunk}
}

func (s *stubStream) Release() {}

// StubOfflineEngine reports how much audio each refinement received.
type StubOfflineEngine struct{}

// NewStubOfflineEngine returns an OfflineEngine that does no recognition.
func NewStubOfflineEngine() *StubOfflineEngine { return &StubOfflineEngine{} }

// NewSession implements OfflineEngine.
func (e *StubOfflineEngine) NewSession() (OfflineSession, error) {
	return &stubOffline{}, nil
}

// Close implements OfflineEngine.
func (e *StubOfflineEngine) Close() error { return nil }

type stubOffline struct {
	samples int
	rate    int
	text    string
}

func (s *stubOffline) AcceptWaveform(samples []float32, sampleRate int) {
	s.samples += len(samples)
	s.rate = sampleRate
}

func (s *stubOffline) Decode(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	secs := 0.0
	if s.rate > 0 {
		secs = float64(s.samples) / float64(s.rate)
	}
	s.text = fmt.Sprintf("[stub] refined %.2fs", secs)
	return nil
}

func (s *stubOffline) Result() string { return s.text }

func (s *stubOffline) Release() {}

func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
