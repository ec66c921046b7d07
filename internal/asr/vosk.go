//go:build vosk

package asr

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"

	"twopass/internal/audio"
	"twopass/internal/config"

	vosk "github.com/alphacep/vosk-api/go"
	"github.com/sirupsen/logrus"
)

// voskStreamingEngine runs Kaldi streaming recognition via libvosk. Vosk
// decodes inside AcceptWaveform, so sessions never report a pending step.
type voskStreamingEngine struct {
	model      *vosk.VoskModel
	sampleRate int
	logger     *logrus.Logger
}

func newVoskStreamingEngine(cfg *config.Config, logger *logrus.Logger) (StreamingEngine, error) {
	vosk.SetLogLevel(-1)
	model, err := vosk.NewModel(cfg.Online.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load vosk model: %w", err)
	}
	return &voskStreamingEngine{model: model, sampleRate: cfg.Audio.SampleRate, logger: logger}, nil
}

func (e *voskStreamingEngine) NewStream() (StreamingSession, error) {
	rec, err := vosk.NewRecognizer(e.model, float64(e.sampleRate))
	if err != nil {
		return nil, fmt.Errorf("vosk recognizer: %w", err)
	}
	return &voskStream{rec: rec, logger: e.logger}, nil
}

func (e *voskStreamingEngine) Close() error {
	e.model.Free()
	return nil
}

type voskStream struct {
	rec      *vosk.VoskRecognizer
	logger   *logrus.Logger
	pcm      []byte
	text     string
	endpoint bool
}

type voskResult struct {
	Text    string `json:"text"`
	Partial string `json:"partial"`
}

func (s *voskStream) AcceptWaveform(samples []float32, _ int) {
	s.pcm = s.pcm[:0]
	for _, v := range samples {
		s.pcm = binary.LittleEndian.AppendUint16(s.pcm, uint16(audio.Quantize(v)))
	}
	if s.rec.AcceptWaveform(s.pcm) == 1 {
		s.endpoint = true
		s.text = s.parse(s.rec.Result()).Text
		return
	}
	s.text = s.parse(s.rec.PartialResult()).Partial
}

func (s *voskStream) parse(raw string) voskResult {
	var res voskResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		s.logger.Warnf("vosk result: %v", err)
	}
	res.Text = strings.TrimSpace(res.Text)
	res.Partial = strings.TrimSpace(res.Partial)
	return res
}

func (s *voskStream) IsReady() bool    { return false }
func (s *voskStream) Decode() error    { return nil }
func (s *voskStream) IsEndpoint() bool { return s.endpoint }
func (s *voskStream) Result() string   { return s.text }

func (s *voskStream) Reset() {
	s.rec.Reset()
	s.endpoint = false
	s.text = ""
}

func (s *voskStream) Release() { s.rec.Free() }
