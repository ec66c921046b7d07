// Package asr defines the recognizer capabilities the two decoding passes
// depend on, plus the engines that implement them.
package asr

import (
	"context"
	"fmt"
	"strings"

	"twopass/internal/config"

	"github.com/sirupsen/logrus"
)

// StreamingEngine creates streaming sessions for the fast first pass.
type StreamingEngine interface {
	NewStream() (StreamingSession, error)
	Close() error
}

// StreamingSession is one incremental decoding stream. It is owned by a single
// goroutine and must be released exactly once.
type StreamingSession interface {
	AcceptWaveform(samples []float32, sampleRate int)
	// IsReady reports whether a decode step can run on buffered audio.
	IsReady() bool
	Decode() error
	IsEndpoint() bool
	Result() string
	Reset()
	Release()
}

// OfflineEngine creates one-shot sessions for the refinement pass.
type OfflineEngine interface {
	NewSession() (OfflineSession, error)
	Close() error
}

// OfflineSession decodes a complete utterance once. Sessions are not reused.
type OfflineSession interface {
	AcceptWaveform(samples []float32, sampleRate int)
	Decode(ctx context.Context) error
	Result() string
	Release()
}

// NewStreamingEngine returns the first-pass engine named by cfg.Online.Engine.
func NewStreamingEngine(cfg *config.Config, logger *logrus.Logger) (StreamingEngine, error) {
	switch name := strings.ToLower(strings.TrimSpace(cfg.Online.Engine)); name {
	case "", "stub":
		return NewStubStreamingEngine(cfg.Audio.SampleRate, cfg.Online.EnergyThresh, cfg.Online.SilenceMS), nil
	case "whisper":
		return newWhisperStreamingEngine(cfg, logger)
	case "vosk":
		return newVoskStreamingEngine(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown online engine %q (want stub, whisper or vosk)", name)
	}
}

// NewOfflineEngine returns the refinement engine named by cfg.Offline.Engine.
func NewOfflineEngine(cfg *config.Config, logger *logrus.Logger) (OfflineEngine, error) {
	switch name := strings.ToLower(strings.TrimSpace(cfg.Offline.Engine)); name {
	case "", "stub":
		return NewStubOfflineEngine(), nil
	case "whisper":
		return newWhisperOfflineEngine(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown offline engine %q (want stub or whisper)", name)
	}
}
