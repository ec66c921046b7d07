package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/go-audio/wav"
)

// WAVHeaderSize is the size of the canonical PCM header written by EncodeWAV.
const WAVHeaderSize = 44

// wavHeader is the canonical 44-byte RIFF/WAVE PCM header.
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // data bytes + 36
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * 2
	BlockAlign    uint16 // NumChannels * 2
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // data bytes
}

// Quantize maps a normalised sample to 16-bit PCM, rounding and clamping to
// [-32768, 32767]. Positive samples scale by 32767 and negative ones by 32768
// so that both full-scale ends are reachable: 1.0 encodes to 32767 and -1.0 to
// -32768. A negative sample therefore lands at most one step below
// round(s*32767), e.g. -0.9 encodes to -29491. NaN maps to silence.
func Quantize(s float32) int16 {
	if s != s {
		return 0
	}
	scale := 32767.0
	if s < 0 {
		scale = 32768.0
	}
	v := math.Round(float64(s) * scale)
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}

// EncodeWAV renders blocks as a mono 16-bit PCM WAV stream. It is total over
// any finite input; an empty input yields a bare 44-byte header.
func EncodeWAV(blocks []Block, sampleRate int) []byte {
	total := 0
	for _, blk := range blocks {
		total += len(blk.Samples)
	}
	const channels = 1
	dataSize := uint32(total * 2)
	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     dataSize + 36,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   channels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * channels * 2,
		BlockAlign:    channels * 2,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	out := make([]byte, WAVHeaderSize, WAVHeaderSize+int(dataSize))
	buf := bytes.NewBuffer(out[:0])
	// Writes into a bytes.Buffer cannot fail.
	_ = binary.Write(buf, binary.LittleEndian, header)
	out = buf.Bytes()
	for _, blk := range blocks {
		for _, s := range blk.Samples {
			out = binary.LittleEndian.AppendUint16(out, uint16(Quantize(s)))
		}
	}
	return out
}

// WAVInfo describes a decoded WAV stream.
type WAVInfo struct {
	SampleRate    int `json:"sample_rate"`
	Channels      int `json:"channels"`
	BitsPerSample int `json:"bits_per_sample"`
	DataBytes     int `json:"data_size_bytes"`
	NumSamples    int `json:"num_samples"`
}

// Duration returns the playback length.
func (i WAVInfo) Duration() time.Duration {
	if i.SampleRate == 0 {
		return 0
	}
	return time.Duration(i.NumSamples) * time.Second / time.Duration(i.SampleRate)
}

// DecodeWAV parses a PCM WAV stream and returns its header info and the
// raw integer samples of the first channel.
func DecodeWAV(r io.ReadSeeker) (WAVInfo, []int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return WAVInfo{}, nil, errors.New("invalid WAV file")
	}
	if dec.WavAudioFormat != 1 {
		return WAVInfo{}, nil, fmt.Errorf("unsupported audio format: %d (only PCM is supported)", dec.WavAudioFormat)
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return WAVInfo{}, nil, fmt.Errorf("read pcm: %w", err)
	}
	channels := int(dec.NumChans)
	data := pcm.Data
	if channels > 1 {
		mono := make([]int, 0, len(data)/channels)
		for i := 0; i+channels <= len(data); i += channels {
			mono = append(mono, data[i])
		}
		data = mono
	}
	info := WAVInfo{
		SampleRate:    int(dec.SampleRate),
		Channels:      channels,
		BitsPerSample: int(dec.BitDepth),
		DataBytes:     len(pcm.Data) * int(dec.BitDepth) / 8,
		NumSamples:    len(data),
	}
	return info, data, nil
}

// ReadWAVFile loads a 16-bit WAV file as normalised mono samples.
func ReadWAVFile(path string) (WAVInfo, []float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return WAVInfo{}, nil, err
	}
	defer f.Close()
	info, data, err := DecodeWAV(f)
	if err != nil {
		return WAVInfo{}, nil, fmt.Errorf("%s: %w", path, err)
	}
	if info.BitsPerSample != 16 {
		return WAVInfo{}, nil, fmt.Errorf("%s: unsupported bit depth %d (only 16-bit is supported)", path, info.BitsPerSample)
	}
	samples := make([]float32, len(data))
	for i, s := range data {
		samples[i] = float32(s) / 32768.0
	}
	return info, samples, nil
}

// WriteWAVFile encodes blocks into dir under a name derived from the
// capture time and returns the written path.
func WriteWAVFile(dir string, blocks []Block, sampleRate int, at time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("audio_%d.wav", at.UnixMilli()))
	tmp := path + ".part"
	if err := os.WriteFile(tmp, EncodeWAV(blocks, sampleRate), 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", err
	}
	return path, nil
}

// Resample converts in from srcSR to dstSR by linear interpolation.
func Resample(in []float32, srcSR, dstSR int) []float32 {
	if srcSR == dstSR || len(in) == 0 {
		out := make([]float32, len(in))
		copy(out, in)
		return out
	}
	ratio := float64(dstSR) / float64(srcSR)
	outLen := int(float64(len(in))*ratio + 0.9999)
	out := make([]float32, outLen)
	for i := 0; i < outLen; i++ {
		pos := float64(i) / ratio
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = in[idx]*(1-frac) + in[idx+1]*frac
	}
	return out
}
