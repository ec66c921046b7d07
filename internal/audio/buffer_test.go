package audio

import "testing"

func block(start, n int) Block {
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(start+i) / 100000
	}
	return Block{Samples: s, SampleRate: 16000}
}

func TestBufferLenIsSumOfBlocks(t *testing.T) {
	b := NewBuffer(16000, 8000)
	if !b.Empty() {
		t.Fatalf("new buffer should be empty")
	}
	b.Append(block(0, 1600))
	b.Append(Block{SampleRate: 16000})
	b.Append(block(1600, 400))
	if b.Len() != 2000 {
		t.Fatalf("len = %d, want 2000", b.Len())
	}
	if got := len(b.Blocks()); got != 2 {
		t.Fatalf("blocks = %d, want 2 (empty block ignored)", got)
	}
}

func TestBufferFlattenPreservesOrder(t *testing.T) {
	b := NewBuffer(16000, 0)
	b.Append(block(0, 3))
	b.Append(block(3, 2))
	flat := b.Flatten()
	if len(flat) != 5 {
		t.Fatalf("flat len = %d", len(flat))
	}
	for i, s := range flat {
		if s != float32(i)/100000 {
			t.Fatalf("flat[%d] = %v", i, s)
		}
	}
}

func TestBufferCompactTail(t *testing.T) {
	cases := []struct {
		name  string
		sizes []int
		keep  int
		want  int
	}{
		{"shorter than tail", []int{1600, 1600, 1600}, 8000, 4800},
		{"longer than tail", []int{10000, 10000}, 8000, 8000},
		{"exact", []int{8000}, 8000, 8000},
		{"zero keep", []int{100}, 0, 0},
	}
	for _, tc := range cases {
		b := NewBuffer(16000, 0)
		n := 0
		for _, sz := range tc.sizes {
			b.Append(block(n, sz))
			n += sz
		}
		b.CompactTail(tc.keep)
		if b.Len() != tc.want {
			t.Fatalf("%s: len = %d, want %d", tc.name, b.Len(), tc.want)
		}
		if tc.want == 0 {
			continue
		}
		blocks := b.Blocks()
		if len(blocks) != 1 {
			t.Fatalf("%s: expected a single retained block, got %d", tc.name, len(blocks))
		}
		if first := blocks[0].Samples[0]; first != float32(n-tc.want)/100000 {
			t.Fatalf("%s: retained tail starts at %v", tc.name, first)
		}
	}
}

func TestBufferRetainCopiesSamples(t *testing.T) {
	b := NewBuffer(16000, 0)
	b.Append(block(0, 10))
	flat := b.Flatten()
	b.Retain(flat[6:])
	b.Append(block(100, 4))
	// The next Flatten reuses scratch storage; the retained block must not alias it.
	again := b.Flatten()
	if len(again) != 8 {
		t.Fatalf("len = %d", len(again))
	}
	if again[0] != float32(6)/100000 || again[4] != float32(100)/100000 {
		t.Fatalf("unexpected contents: %v", again)
	}
}

func TestBufferReset(t *testing.T) {
	b := NewBuffer(16000, 0)
	b.Append(block(0, 10))
	b.Reset()
	if b.Len() != 0 || len(b.Blocks()) != 0 {
		t.Fatalf("reset left %d samples", b.Len())
	}
}

func TestNewBlockNormalises(t *testing.T) {
	blk := NewBlock([]int16{-32768, 0, 16384}, 16000)
	want := []float32{-1, 0, 0.5}
	for i := range want {
		if blk.Samples[i] != want[i] {
			t.Fatalf("sample %d = %v, want %v", i, blk.Samples[i], want[i])
		}
	}
}
