package pipeline

import (
	"fmt"

	"twopass/internal/asr"
	"twopass/internal/audio"

	"github.com/sirupsen/logrus"
)

// Decoder drives one streaming session: it feeds blocks, drains every ready
// decode step and reports the partial text and endpoint state.
type Decoder struct {
	stream     asr.StreamingSession
	sampleRate int
	logger     *logrus.Logger
	released   bool
}

// NewDecoder takes ownership of stream.
func NewDecoder(stream asr.StreamingSession, sampleRate int, logger *logrus.Logger) *Decoder {
	return &Decoder{stream: stream, sampleRate: sampleRate, logger: logger}
}

// Feed pushes blk into the stream and returns the current partial text and
// whether the stream reports an endpoint. After an endpoint the stream is
// reset for the next segment. A failing decode step is logged and the drain
// stops for this block; the next block retries.
func (d *Decoder) Feed(blk audio.Block) (string, bool, error) {
	if blk.Len() == 0 {
		return "", false, ErrEmptyBlock
	}
	if blk.SampleRate != d.sampleRate {
		return "", false, fmt.Errorf("%w: block %d Hz, session %d Hz", ErrRateMismatch, blk.SampleRate, d.sampleRate)
	}
	d.stream.AcceptWaveform(blk.Samples, blk.SampleRate)
	for d.stream.IsReady() {
		if err := d.stream.Decode(); err != nil {
			d.logger.Warnf("decode step: %v", err)
			break
		}
	}
	endpoint := d.stream.IsEndpoint()
	text := d.stream.Result()
	if endpoint {
		d.stream.Reset()
	}
	return text, endpoint, nil
}

// Release frees the stream. Calls after the first are no-ops.
func (d *Decoder) Release() {
	if d.released {
		return
	}
	d.released = true
	d.stream.Release()
}
