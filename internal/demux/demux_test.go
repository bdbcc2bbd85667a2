package demux

import (
	"encoding/binary"
	"testing"

	"github.com/nappa-audio/dcr-transcribe/internal/pcm"
	"github.com/stretchr/testify/require"
)

func le16Frame(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func TestDeliver_TwoChannelsSplitWithSharedTimestamp(t *testing.T) {
	chA := make(chan pcm.Chunk, 4)
	chB := make(chan pcm.Chunk, 4)
	d, err := New(pcm.FormatInt16, 16000, []Sink{chA, chB})
	require.NoError(t, err)

	frame := le16Frame(1, 2, 3, 4) // [a1,b1,a2,b2]
	require.NoError(t, d.Deliver(frame, 12345))

	a := <-chA
	b := <-chB
	require.Equal(t, []int16{1, 3}, a.Samples)
	require.Equal(t, []int16{2, 4}, b.Samples)
	require.Equal(t, int64(12345), a.TimestampNS)
	require.Equal(t, a.TimestampNS, b.TimestampNS)
}

func TestDeliver_FullQueueCountsDropAndNeverBlocks(t *testing.T) {
	ch := make(chan pcm.Chunk, 1)
	d, err := New(pcm.FormatInt16, 16000, []Sink{ch})
	require.NoError(t, err)

	frame := le16Frame(1, 2)
	require.NoError(t, d.Deliver(frame, 1))
	require.NoError(t, d.Deliver(frame, 2)) // queue now full, must not block

	require.Equal(t, int64(1), d.Stats(0).Full.Load())
	require.Len(t, ch, 1)
}

func TestDeliver_ClosedQueueCountsClosedAndNeverPanicsCaller(t *testing.T) {
	ch := make(chan pcm.Chunk, 1)
	close(ch)
	d, err := New(pcm.FormatInt16, 16000, []Sink{ch})
	require.NoError(t, err)

	require.NoError(t, d.Deliver(le16Frame(1, 2), 1))
	require.Equal(t, int64(1), d.Stats(0).Closed.Load())
}

func TestDeliver_NilSinkIsSkippedWithoutPanicking(t *testing.T) {
	chA := make(chan pcm.Chunk, 1)
	d, err := New(pcm.FormatInt16, 16000, []Sink{chA, nil})
	require.NoError(t, err)

	require.NoError(t, d.Deliver(le16Frame(10, 20), 1))
	a := <-chA
	require.Equal(t, []int16{10}, a.Samples)
}

func TestNew_RejectsUnsupportedFormatAtConstruction(t *testing.T) {
	_, err := New(pcm.Format(99), 16000, []Sink{make(chan pcm.Chunk, 1)})
	require.Error(t, err)
}

func TestNew_RejectsNonPositiveSampleRate(t *testing.T) {
	_, err := New(pcm.FormatInt16, 0, []Sink{make(chan pcm.Chunk, 1)})
	require.Error(t, err)
}
