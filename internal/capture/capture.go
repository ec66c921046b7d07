// Package capture provides the audio sources a recording reads from.
package capture

import (
	"errors"
	"fmt"
	"time"

	"twopass/internal/audio"
	"twopass/internal/config"

	"github.com/sirupsen/logrus"
)

// ErrPermissionDenied reports that the capture device cannot be opened.
var ErrPermissionDenied = errors.New("capture device unavailable")

// Source delivers fixed-rate mono blocks. Read blocks for at most one
// cadence interval. A source is read from a single goroutine.
type Source interface {
	Read() (audio.Block, error)
	Close() error
}

// Options describes how to open a source.
type Options struct {
	Device     string
	SampleRate int
	// BlockSamples is the number of samples returned per Read.
	BlockSamples int
	// File replays a WAV file instead of opening a microphone.
	File string
	// Realtime paces file playback at the capture cadence.
	Realtime bool
	// Cadence is the read interval. Zero derives it from BlockSamples.
	Cadence time.Duration
}

// OptionsFromConfig returns microphone options for cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Device:       cfg.Audio.DeviceName,
		SampleRate:   cfg.Audio.SampleRate,
		BlockSamples: cfg.BlockSamples(),
		Cadence:      cfg.Cadence(),
	}
}

// Open returns a file source when opts.File is set and the microphone otherwise.
func Open(opts Options, logger *logrus.Logger) (Source, error) {
	if opts.SampleRate <= 0 || opts.BlockSamples <= 0 {
		return nil, fmt.Errorf("invalid capture options: rate=%d block=%d", opts.SampleRate, opts.BlockSamples)
	}
	if opts.File != "" {
		return OpenFile(opts)
	}
	return openMicrophone(opts, logger)
}

// Device describes an input device.
type Device struct {
	Index     int     `json:"index"`
	Name      string  `json:"name"`
	Channels  int     `json:"channels"`
	LatencyMs float64 `json:"latency_ms"`
	Default   bool    `json:"default"`
}
