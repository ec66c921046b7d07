//go:build whisper

package asr

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"twopass/internal/audio"
	"twopass/internal/config"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	webrtcvad "github.com/maxhawkins/go-webrtcvad"
	"github.com/sirupsen/logrus"
)

const vadFrameMS = 20

// whisperOfflineEngine refines complete segments with whisper.cpp.
type whisperOfflineEngine struct {
	model    whisper.Model
	language string
	threads  int
	logger   *logrus.Logger
}

func newWhisperOfflineEngine(cfg *config.Config, logger *logrus.Logger) (OfflineEngine, error) {
	model, err := whisper.New(cfg.Offline.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load offline model: %w", err)
	}
	return &whisperOfflineEngine{
		model:    model,
		language: cfg.Offline.Language,
		threads:  cfg.Offline.Threads,
		logger:   logger,
	}, nil
}

func (e *whisperOfflineEngine) NewSession() (OfflineSession, error) {
	return &whisperOffline{engine: e}, nil
}

func (e *whisperOfflineEngine) Close() error { return e.model.Close() }

type whisperOffline struct {
	engine  *whisperOfflineEngine
	samples []float32
	text    string
}

func (s *whisperOffline) AcceptWaveform(samples []float32, _ int) {
	s.samples = append(s.samples, samples...)
}

func (s *whisperOffline) Decode(ctx context.Context) error {
	text, err := transcribe(ctx, s.engine.model, s.samples, s.engine.language, s.engine.threads, s.engine.logger)
	if err != nil {
		return err
	}
	s.text = text
	return nil
}

func (s *whisperOffline) Result() string { return s.text }

func (s *whisperOffline) Release() { s.samples = nil }

// whisperStreamingEngine re-decodes the growing segment with a small whisper
// model and uses WebRTC VAD to find the trailing pause that ends it.
type whisperStreamingEngine struct {
	model      whisper.Model
	cfg        *config.Config
	logger     *logrus.Logger
	frame      int
	silence    int
	maxSegment int
	every      int
}

func newWhisperStreamingEngine(cfg *config.Config, logger *logrus.Logger) (StreamingEngine, error) {
	switch cfg.Audio.SampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return nil, fmt.Errorf("sample_rate must be 8k/16k/32k/48k for webrtc VAD (got %d)", cfg.Audio.SampleRate)
	}
	model, err := whisper.New(cfg.Online.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load online model: %w", err)
	}
	rate := cfg.Audio.SampleRate
	return &whisperStreamingEngine{
		model:      model,
		cfg:        cfg,
		logger:     logger,
		frame:      rate * vadFrameMS / 1000,
		silence:    rate * cfg.Online.SilenceMS / 1000,
		maxSegment: rate * cfg.Online.MaxSegmentMS / 1000,
		every:      max(1, rate*cfg.Online.PartialEveryMS/1000),
	}, nil
}

func (e *whisperStreamingEngine) NewStream() (StreamingSession, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("vad: %w", err)
	}
	if err := v.SetMode(e.cfg.Online.Aggressiveness); err != nil {
		return nil, fmt.Errorf("vad mode: %w", err)
	}
	if ok := v.ValidRateAndFrameLength(e.cfg.Audio.SampleRate, e.frame); !ok {
		return nil, fmt.Errorf("invalid vad frame %d for sample_rate %d", e.frame, e.cfg.Audio.SampleRate)
	}
	return &whisperStream{engine: e, vad: v}, nil
}

func (e *whisperStreamingEngine) Close() error { return e.model.Close() }

type whisperStream struct {
	engine *whisperStreamingEngine
	vad    *webrtcvad.VAD

	samples     []float32
	carry       []float32
	frameBytes  []byte
	sinceDecode int
	speech      bool
	trail       int
	text        string
}

func (s *whisperStream) AcceptWaveform(samples []float32, sampleRate int) {
	s.samples = append(s.samples, samples...)
	s.sinceDecode += len(samples)
	s.carry = append(s.carry, samples...)
	frame := s.engine.frame
	for len(s.carry) >= frame {
		voice, err := s.vad.Process(sampleRate, s.pcmFrame(s.carry[:frame]))
		if err != nil {
			s.engine.logger.Warnf("vad: %v", err)
		}
		if voice {
			s.speech = true
			s.trail = 0
		} else {
			s.trail += frame
		}
		s.carry = s.carry[frame:]
	}
}

func (s *whisperStream) pcmFrame(frame []float32) []byte {
	s.frameBytes = s.frameBytes[:0]
	for _, v := range frame {
		s.frameBytes = binary.LittleEndian.AppendUint16(s.frameBytes, uint16(audio.Quantize(v)))
	}
	return s.frameBytes
}

// IsReady schedules a partial re-decode every partial_every_ms of speech and
// one last pass before an endpoint is reported.
func (s *whisperStream) IsReady() bool {
	if !s.speech || s.sinceDecode == 0 {
		return false
	}
	return s.sinceDecode >= s.engine.every || s.endpointReached()
}

func (s *whisperStream) Decode() error {
	s.sinceDecode = 0
	text, err := transcribe(context.Background(), s.engine.model, s.samples, s.engine.cfg.Online.Language, 0, s.engine.logger)
	if err != nil {
		return err
	}
	s.text = strings.TrimSpace(text)
	return nil
}

func (s *whisperStream) endpointReached() bool {
	if s.speech {
		return s.trail >= s.engine.silence ||
			(s.engine.maxSegment > 0 && len(s.samples) >= s.engine.maxSegment)
	}
	return s.trail >= 3*s.engine.silence
}

func (s *whisperStream) IsEndpoint() bool {
	return s.endpointReached() && (!s.speech || s.sinceDecode == 0)
}

func (s *whisperStream) Result() string { return s.text }

func (s *whisperStream) Reset() {
	s.samples = s.samples[:0]
	s.carry = s.carry[:0]
	s.sinceDecode = 0
	s.speech = false
	s.trail = 0
	s.text = ""
}

func (s *whisperStream) Release() {
	s.samples = nil
	s.carry = nil
}

func transcribe(ctx context.Context, model whisper.Model, samples []float32, lang string, threads int, logger *logrus.Logger) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	wctx, err := model.NewContext()
	if err != nil {
		return "", err
	}
	if threads > 0 {
		wctx.SetThreads(uint(threads))
	}
	if lang = strings.TrimSpace(lang); lang != "" {
		if err := wctx.SetLanguage(lang); err != nil {
			logger.Warnf("set language: %v", err)
		}
	}
	if err := wctx.Process(samples, nil, nil); err != nil {
		return "", err
	}
	var b strings.Builder
	for {
		seg, err := wctx.NextSegment()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", err
		}
		b.WriteString(seg.Text)
		if !strings.HasSuffix(seg.Text, " ") {
			b.WriteRune(' ')
		}
	}
	return strings.TrimSpace(b.String()), ctx.Err()
}
