package capture

import (
	"fmt"
	"io"
	"time"

	"twopass/internal/audio"
)

// FileSource replays a WAV file as capture blocks, resampled to the target
// rate. Read returns io.EOF once the file is exhausted.
type FileSource struct {
	samples  []float32
	pos      int
	block    int
	rate     int
	realtime bool
	cadence  time.Duration
	next     time.Time
}

// OpenFile loads opts.File for replay.
func OpenFile(opts Options) (*FileSource, error) {
	info, samples, err := audio.ReadWAVFile(opts.File)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	if info.SampleRate != opts.SampleRate {
		samples = audio.Resample(samples, info.SampleRate, opts.SampleRate)
	}
	return NewFileSource(samples, opts), nil
}

// NewFileSource replays samples already at opts.SampleRate.
func NewFileSource(samples []float32, opts Options) *FileSource {
	cadence := opts.Cadence
	if cadence <= 0 && opts.SampleRate > 0 {
		cadence = time.Duration(opts.BlockSamples) * time.Second / time.Duration(opts.SampleRate)
	}
	return &FileSource{
		samples:  samples,
		block:    opts.BlockSamples,
		rate:     opts.SampleRate,
		realtime: opts.Realtime,
		cadence:  cadence,
	}
}

// Read returns the next block.
func (f *FileSource) Read() (audio.Block, error) {
	if f.pos >= len(f.samples) {
		return audio.Block{}, io.EOF
	}
	if f.realtime {
		now := time.Now()
		if f.next.IsZero() {
			f.next = now
		}
		if wait := f.next.Sub(now); wait > 0 {
			time.Sleep(wait)
		}
		f.next = f.next.Add(f.cadence)
	}
	end := min(f.pos+f.block, len(f.samples))
	out := make([]float32, end-f.pos)
	copy(out, f.samples[f.pos:end])
	f.pos = end
	return audio.Block{Samples: out, SampleRate: f.rate}, nil
}

// Close implements Source.
func (f *FileSource) Close() error {
	f.samples = nil
	return nil
}
