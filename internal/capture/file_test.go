package capture

import (
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"twopass/internal/audio"
	"twopass/internal/config"
	"twopass/internal/logging"
)

func TestFileSourceSplitsIntoCadenceBlocks(t *testing.T) {
	samples := make([]float32, 4000)
	src := NewFileSource(samples, Options{SampleRate: 16000, BlockSamples: 1600})
	var sizes []int
	for {
		blk, err := src.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if blk.SampleRate != 16000 {
			t.Fatalf("rate = %d", blk.SampleRate)
		}
		sizes = append(sizes, blk.Len())
	}
	if len(sizes) != 3 || sizes[0] != 1600 || sizes[1] != 1600 || sizes[2] != 800 {
		t.Fatalf("block sizes = %v", sizes)
	}
}

func TestFileSourceRealtimePacing(t *testing.T) {
	src := NewFileSource(make([]float32, 480), Options{SampleRate: 16000, BlockSamples: 160, Realtime: true})
	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := src.Read(); err != nil {
			t.Fatalf("read: %v", err)
		}
	}
	// Three 10ms blocks: the first is immediate, the next two wait one cadence each.
	if elapsed := time.Since(start); elapsed < 18*time.Millisecond {
		t.Fatalf("reads were not paced: %v", elapsed)
	}
}

func TestFileSourceUsesConfiguredCadence(t *testing.T) {
	src := NewFileSource(make([]float32, 480), Options{SampleRate: 16000, BlockSamples: 160, Realtime: true, Cadence: 20 * time.Millisecond})
	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := src.Read(); err != nil {
			t.Fatalf("read: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 38*time.Millisecond {
		t.Fatalf("reads ignored the configured cadence: %v", elapsed)
	}
}

func TestOptionsFromConfigCarriesCadence(t *testing.T) {
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	cfg.Audio.CadenceMS = 40
	opts := OptionsFromConfig(cfg)
	if opts.Cadence != 40*time.Millisecond || opts.BlockSamples != 640 {
		t.Fatalf("options = %+v", opts)
	}
}

func TestOpenFileResamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.wav")
	blk := audio.Block{Samples: make([]float32, 800), SampleRate: 8000}
	if _, err := audio.WriteWAVFile(filepath.Dir(path), []audio.Block{blk}, 8000, time.UnixMilli(1)); err != nil {
		t.Fatalf("write: %v", err)
	}
	path = filepath.Join(filepath.Dir(path), "audio_1.wav")

	src, err := Open(Options{File: path, SampleRate: 16000, BlockSamples: 1600}, logging.NewTestLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.Close()
	got, err := src.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Len() != 1600 {
		t.Fatalf("resampled block = %d samples, want 1600", got.Len())
	}
}

func TestOpenMissingFileIsPermissionDenied(t *testing.T) {
	_, err := Open(Options{File: "/does/not/exist.wav", SampleRate: 16000, BlockSamples: 1600}, logging.NewTestLogger())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
}

func TestOpenRejectsBadOptions(t *testing.T) {
	if _, err := Open(Options{SampleRate: 0, BlockSamples: 10}, logging.NewTestLogger()); err == nil {
		t.Fatalf("expected error")
	}
}
