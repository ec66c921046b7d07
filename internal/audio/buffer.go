// Package audio holds captured sample blocks, the segment buffer shared by the
// refinement pass and the WAV writer, and WAV encoding.
package audio

// Block is one capture read of mono samples normalised to [-1, 1].
// A block is never modified after it is produced.
type Block struct {
	Samples    []float32
	SampleRate int
}

// Len returns the number of samples in the block.
func (b Block) Len() int { return len(b.Samples) }

// NewBlock converts signed 16-bit PCM into a normalised block.
func NewBlock(pcm []int16, sampleRate int) Block {
	samples := make([]float32, len(pcm))
	for i, s := range pcm {
		samples[i] = float32(s) / 32768.0
	}
	return Block{Samples: samples, SampleRate: sampleRate}
}

// Buffer is an ordered, append-only sequence of blocks. Insertion order is
// temporal order and Len always equals the sum of the block lengths.
// A Buffer is owned by a single goroutine and is not safe for concurrent use.
type Buffer struct {
	sampleRate int
	blocks     []Block
	n          int

	// scratch backs Flatten so that successive segments reuse one allocation.
	scratch []float32
}

// NewBuffer returns an empty buffer sized for roughly expected samples.
func NewBuffer(sampleRate, expected int) *Buffer {
	return &Buffer{
		sampleRate: sampleRate,
		blocks:     make([]Block, 0, 64),
		scratch:    make([]float32, 0, expected),
	}
}

// SampleRate returns the rate every block in the buffer was captured at.
func (b *Buffer) SampleRate() int { return b.sampleRate }

// Append adds blk at the end of the buffer. Empty blocks are ignored.
func (b *Buffer) Append(blk Block) {
	if len(blk.Samples) == 0 {
		return
	}
	b.blocks = append(b.blocks, blk)
	b.n += len(blk.Samples)
}

// Len returns the total number of buffered samples.
func (b *Buffer) Len() int { return b.n }

// Empty reports whether no samples are buffered.
func (b *Buffer) Empty() bool { return b.n == 0 }

// Blocks returns a copy of the block list in temporal order.
func (b *Buffer) Blocks() []Block {
	out := make([]Block, len(b.blocks))
	copy(out, b.blocks)
	return out
}

// Flatten concatenates every block into one sample slice. The returned slice
// is only valid until the next call to Flatten or Retain.
func (b *Buffer) Flatten() []float32 {
	if cap(b.scratch) < b.n {
		b.scratch = make([]float32, 0, b.n)
	}
	flat := b.scratch[:0]
	for _, blk := range b.blocks {
		flat = append(flat, blk.Samples...)
	}
	b.scratch = flat
	return flat
}

// Reset drops every buffered block.
func (b *Buffer) Reset() {
	clear(b.blocks)
	b.blocks = b.blocks[:0]
	b.n = 0
}

// Retain replaces the contents with a single block holding a copy of samples.
func (b *Buffer) Retain(samples []float32) {
	b.Reset()
	if len(samples) == 0 {
		return
	}
	tail := make([]float32, len(samples))
	copy(tail, samples)
	b.Append(Block{Samples: tail, SampleRate: b.sampleRate})
}

// CompactTail truncates the buffer from the front so that at most keep
// trailing samples remain, stored as one block.
func (b *Buffer) CompactTail(keep int) {
	if keep < 0 {
		keep = 0
	}
	flat := b.Flatten()
	cut := max(0, len(flat)-keep)
	b.Retain(flat[cut:])
}
