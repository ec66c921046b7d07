package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"twopass/internal/asr"
	"twopass/internal/audio"
)

// TailSamples returns the look-back context kept across a segment boundary:
// 500ms of audio, 8000 samples at 16 kHz.
func TailSamples(sampleRate int) int {
	return sampleRate / 2
}

// Refiner runs the one-shot pass over a finished segment.
type Refiner struct {
	engine     asr.OfflineEngine
	sampleRate int
	tail       int
	busy       atomic.Bool
}

// NewRefiner returns a Refiner that keeps tail trailing samples in the
// buffer after each call.
func NewRefiner(engine asr.OfflineEngine, sampleRate, tail int) *Refiner {
	return &Refiner{engine: engine, sampleRate: sampleRate, tail: max(0, tail)}
}

// Refine decodes buf[0:cut) with a fresh offline session, where
// cut = max(0, N-tail), then compacts buf to its last min(tail, N) samples.
// The buffer is compacted even when decoding fails. Engine failures wrap
// ErrRefinementFailed.
func (r *Refiner) Refine(ctx context.Context, buf *audio.Buffer) (string, error) {
	if !r.busy.CompareAndSwap(false, true) {
		return "", ErrRefinementBusy
	}
	defer r.busy.Store(false)

	flat := buf.Flatten()
	cut := max(0, len(flat)-r.tail)
	text, err := r.decode(ctx, flat[:cut])
	buf.Retain(flat[cut:])
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (r *Refiner) decode(ctx context.Context, samples []float32) (string, error) {
	sess, err := r.engine.NewSession()
	if err != nil {
		return "", fmt.Errorf("%w: new session: %w", ErrRefinementFailed, err)
	}
	defer sess.Release()
	sess.AcceptWaveform(samples, r.sampleRate)
	if err := sess.Decode(ctx); err != nil {
		return "", fmt.Errorf("%w: %w", ErrRefinementFailed, err)
	}
	return sess.Result(), nil
}
