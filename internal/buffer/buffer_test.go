package buffer

import (
	"testing"

	"github.com/nappa-audio/dcr-transcribe/internal/pcm"
	"github.com/stretchr/testify/require"
)

func chunkOfSeconds(seconds float64, rate int, startNS int64) pcm.Chunk {
	n := int(seconds * float64(rate))
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(i % 100)
	}
	return pcm.Chunk{Samples: samples, SampleRate: rate, TimestampNS: startNS}
}

func TestRetryBuffer_CapacityEnforcedWithDropOldest(t *testing.T) {
	rb := New(2, 16000, DropOldest, nil)
	rb.Push(chunkOfSeconds(1.5, 16000, 0))
	rb.Push(chunkOfSeconds(1.5, 16000, int64(1.5e9)))
	rb.Push(chunkOfSeconds(1.5, 16000, int64(3e9)))

	require.LessOrEqual(t, rb.TotalSamples(), 32000)
	chunks := rb.Chunks()
	require.NotEmpty(t, chunks)
	// The earliest chunk (timestamp 0) must have been evicted.
	for _, c := range chunks {
		require.NotEqual(t, int64(0), c.TimestampNS)
	}
}

func TestRetryBuffer_DropNewestEvictsFromBack(t *testing.T) {
	rb := New(1, 16000, DropNewest, nil)
	rb.Push(chunkOfSeconds(0.8, 16000, 0))
	rb.Push(chunkOfSeconds(0.8, 16000, int64(0.8e9)))

	chunks := rb.Chunks()
	require.Len(t, chunks, 1)
	require.Equal(t, int64(0), chunks[0].TimestampNS)
}

func TestRetryBuffer_BlockPolicyPromotedToDropOldest(t *testing.T) {
	rb := New(1, 16000, Block, nil)
	rb.Push(chunkOfSeconds(0.8, 16000, 0))
	rb.Push(chunkOfSeconds(0.8, 16000, int64(0.8e9)))

	require.LessOrEqual(t, rb.TotalSamples(), 16000)
	require.True(t, rb.warnedBlock)
}

func TestRetryBuffer_GetRangeClipsToOneChunk(t *testing.T) {
	rb := New(5, 16000, DropOldest, nil)
	rb.Push(chunkOfSeconds(1, 16000, 0)) // covers [0, 1e9)

	samples := rb.GetRange(int64(0.25e9), int64(0.75e9))
	require.Len(t, samples, 8000)
}

func TestRetryBuffer_GetLatestReturnsChronologicalOrderBoundedByTarget(t *testing.T) {
	rb := New(5, 16000, DropOldest, nil)
	rb.Push(chunkOfSeconds(1, 16000, 0))
	rb.Push(chunkOfSeconds(1, 16000, int64(1e9)))

	latest := rb.GetLatest(1.5)
	require.LessOrEqual(t, len(latest), 24000)
	require.NotEmpty(t, latest)
}

func TestRetryBuffer_ClearBeforeDropsOldChunks(t *testing.T) {
	rb := New(5, 16000, DropOldest, nil)
	rb.Push(chunkOfSeconds(1, 16000, 0))
	rb.Push(chunkOfSeconds(1, 16000, int64(1e9)))

	rb.ClearBefore(int64(1.5e9))
	chunks := rb.Chunks()
	require.Len(t, chunks, 1)
	require.Equal(t, int64(1e9), chunks[0].TimestampNS)
}

func TestRetryBuffer_TimestampsNonDecreasingAfterPushes(t *testing.T) {
	rb := New(10, 16000, DropOldest, nil)
	var last int64 = -1
	for i := 0; i < 5; i++ {
		ts := int64(i) * int64(1e9)
		rb.Push(chunkOfSeconds(0.5, 16000, ts))
		chunks := rb.Chunks()
		for _, c := range chunks {
			require.GreaterOrEqual(t, c.TimestampNS, last)
			last = c.TimestampNS
		}
		last = -1
	}
}
