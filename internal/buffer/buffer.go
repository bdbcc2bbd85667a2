// Package buffer implements the per-channel retry buffer: a time-bounded
// FIFO of recent audio used to replay the in-silence backlog after a
// recognizer reconnect, per spec §4.3.
package buffer

import (
	"log/slog"
	"sync"

	"github.com/nappa-audio/dcr-transcribe/internal/pcm"
)

// DropPolicy controls which end of the buffer is evicted when capacity is
// exceeded.
type DropPolicy int

const (
	DropOldest DropPolicy = iota
	DropNewest
	// Block is accepted from configuration but never honored on the
	// real-time path; Push treats it as DropOldest and logs a warning the
	// first time it does so, per spec §9's resolved Open Question.
	Block
)

// RetryBuffer is an ordered sequence of buffered chunks bounded by a
// sample-count budget. It is owned exclusively by one channel pipeline;
// no internal locking is required for that single-owner access pattern,
// but a mutex guards against cases where a pipeline's poller and
// processor tasks resolve to have separate goroutines read it (the
// spec's own model keeps access in one task, but the guard costs nothing
// and prevents an easy future bug).
type RetryBuffer struct {
	mu sync.Mutex

	capacitySamples int
	sampleRate      int
	policy          DropPolicy
	chunks          []pcm.Chunk
	totalSamples    int

	warnedBlock bool
	logger      *slog.Logger
}

// New constructs a retry buffer with capacitySeconds converted to samples
// at sampleRate.
func New(capacitySeconds float64, sampleRate int, policy DropPolicy, logger *slog.Logger) *RetryBuffer {
	if logger == nil {
		logger = slog.Default()
	}
	rb := &RetryBuffer{
		capacitySamples: int(capacitySeconds * float64(sampleRate)),
		sampleRate:      sampleRate,
		policy:          policy,
		logger:          logger,
	}
	return rb
}

// Push appends chunk and evicts per policy until total samples fit within
// capacity. Buffered chunks are never mutated once pushed.
func (b *RetryBuffer) Push(chunk pcm.Chunk) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.chunks = append(b.chunks, chunk.Clone())
	b.totalSamples += len(chunk.Samples)

	policy := b.policy
	if policy == Block {
		if !b.warnedBlock {
			b.logger.Warn("retry buffer: block drop policy is unsupported on the real-time path; using drop_oldest")
			b.warnedBlock = true
		}
		policy = DropOldest
	}

	for b.totalSamples > b.capacitySamples && len(b.chunks) > 0 {
		switch policy {
		case DropNewest:
			last := len(b.chunks) - 1
			b.totalSamples -= len(b.chunks[last].Samples)
			b.chunks = b.chunks[:last]
		default: // DropOldest
			b.totalSamples -= len(b.chunks[0].Samples)
			b.chunks = b.chunks[1:]
		}
	}
}

// TotalSamples returns the current total sample count across all buffered
// chunks.
func (b *RetryBuffer) TotalSamples() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalSamples
}

// Chunks returns a defensive copy of the buffer's chunk list, oldest
// first, for replay after reconnect.
func (b *RetryBuffer) Chunks() []pcm.Chunk {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]pcm.Chunk, len(b.chunks))
	copy(out, b.chunks)
	return out
}

// Clear empties the buffer, used after replaying the in-silence backlog
// on reconnect.
func (b *RetryBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = nil
	b.totalSamples = 0
}

// GetRange concatenates the sample slices of all chunks overlapping
// [fromNS, toNS), clipped at the endpoints.
func (b *RetryBuffer) GetRange(fromNS, toNS int64) []int16 {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []int16
	for _, c := range b.chunks {
		if len(c.Samples) == 0 {
			continue
		}
		start := c.TimestampNS
		end := c.EndNS()
		if end <= fromNS || start >= toNS {
			continue
		}
		perSampleNS := int64(1e9) / int64(c.SampleRate)
		lo := 0
		if fromNS > start {
			lo = int((fromNS - start) / perSampleNS)
		}
		hi := len(c.Samples)
		if toNS < end {
			hi = int((toNS - start) / perSampleNS)
		}
		if lo < 0 {
			lo = 0
		}
		if hi > len(c.Samples) {
			hi = len(c.Samples)
		}
		if lo >= hi {
			continue
		}
		out = append(out, c.Samples[lo:hi]...)
	}
	return out
}

// GetLatest walks chunks back-to-front accumulating samples until
// seconds*sampleRate are covered, returning them in chronological order.
// It returns at most ceil(seconds*sampleRate) samples.
func (b *RetryBuffer) GetLatest(seconds float64) []int16 {
	b.mu.Lock()
	defer b.mu.Unlock()

	target := int(seconds*float64(b.sampleRate) + 0.999999)
	if target <= 0 || len(b.chunks) == 0 {
		return nil
	}

	var collected int
	startIdx := len(b.chunks)
	for i := len(b.chunks) - 1; i >= 0; i-- {
		collected += len(b.chunks[i].Samples)
		startIdx = i
		if collected >= target {
			break
		}
	}

	var out []int16
	for i := startIdx; i < len(b.chunks); i++ {
		out = append(out, b.chunks[i].Samples...)
	}
	if len(out) > target {
		out = out[len(out)-target:]
	}
	return out
}

// ClearBefore drops chunks whose end timestamp is strictly before ns.
func (b *RetryBuffer) ClearBefore(ns int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := 0
	for i < len(b.chunks) && b.chunks[i].EndNS() < ns {
		b.totalSamples -= len(b.chunks[i].Samples)
		i++
	}
	b.chunks = b.chunks[i:]
}
