// ABOUTME: Lock-free single-producer single-consumer ring buffer
// ABOUTME: The only cross-thread sample handoff primitive in the audio hot path
package ring

import "sync/atomic"

// Buffer is a fixed-capacity SPSC queue of interleaved float32 samples.
//
// Exactly one goroutine may push and exactly one may pop. The write and read
// positions are independent monotonic counters, each advanced only by its
// owning side, so the two sides never contend on a lock. Neither operation
// blocks or allocates: a full buffer truncates the push and an empty buffer
// zero-fills the pop. Audio callbacks must complete within their deadline, so
// capacity exhaustion is a counted degradation, never an error.
type Buffer struct {
	data []float32

	writePos atomic.Uint64
	readPos  atomic.Uint64

	overruns  atomic.Uint64
	underruns atomic.Uint64
}

// New creates a ring buffer holding capacity samples. Callers typically size
// it at 4x the per-callback sample count to absorb scheduling jitter.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer{data: make([]float32, capacity)}
}

// Push writes samples, truncating if the buffer lacks space, and returns the
// number of samples actually written. Producer side only.
func (b *Buffer) Push(samples []float32) int {
	capacity := uint64(len(b.data))
	write := b.writePos.Load()
	read := b.readPos.Load()

	free := capacity - (write - read)
	n := uint64(len(samples))
	if n > free {
		b.overruns.Add(n - free)
		n = free
	}
	if n == 0 {
		return 0
	}

	start := write % capacity
	first := copy(b.data[start:], samples[:n])
	if uint64(first) < n {
		copy(b.data, samples[first:n])
	}

	// Release: the data copy above must be visible before the new write
	// position is observed by the consumer.
	b.writePos.Store(write + n)
	return int(n)
}

// Pop reads up to len(out) samples, zero-filling any shortfall, and returns
// the number of samples actually read. Consumer side only.
func (b *Buffer) Pop(out []float32) int {
	capacity := uint64(len(b.data))
	write := b.writePos.Load()
	read := b.readPos.Load()

	avail := write - read
	n := uint64(len(out))
	if n > avail {
		b.underruns.Add(n - avail)
		n = avail
	}

	if n > 0 {
		start := read % capacity
		first := copy(out[:n], b.data[start:])
		if uint64(first) < n {
			copy(out[first:n], b.data)
		}
		b.readPos.Store(read + n)
	}

	for i := n; i < uint64(len(out)); i++ {
		out[i] = 0
	}
	return int(n)
}

// Len returns the number of samples currently buffered.
func (b *Buffer) Len() int {
	return int(b.writePos.Load() - b.readPos.Load())
}

// Cap returns the buffer capacity in samples.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Overruns returns the cumulative count of samples dropped on push.
func (b *Buffer) Overruns() uint64 {
	return b.overruns.Load()
}

// Underruns returns the cumulative count of samples zero-filled on pop.
func (b *Buffer) Underruns() uint64 {
	return b.underruns.Load()
}
