// Package pcm defines the mono int16 sample types shared by every stage of
// the per-channel pipeline, from demultiplexing through the retry buffer to
// the recognizer session.
package pcm

// Chunk is an ordered run of mono int16 samples sharing one capture
// timestamp. Every sample that reaches a channel pipeline is int16 mono at
// SampleRate; conversion from the device's native format happens before a
// Chunk is ever constructed.
type Chunk struct {
	Samples     []int16
	SampleRate  int
	TimestampNS int64 // nanoseconds since the Unix epoch, shared across all channels of the same interleaved frame
}

// DurationMS returns the chunk's duration in milliseconds given its sample
// count and rate, per spec §4.2's d = len/rate*1000.
func (c Chunk) DurationMS() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate) * 1000
}

// EndNS returns the timestamp one sample past the chunk's last sample.
func (c Chunk) EndNS() int64 {
	if len(c.Samples) == 0 {
		return c.TimestampNS
	}
	perSampleNS := int64(1e9) / int64(c.SampleRate)
	return c.TimestampNS + int64(len(c.Samples))*perSampleNS
}

// Silent returns a chunk of the same length, rate, and timestamp but all
// zero samples. Used by the pipeline to keep a connected recognizer
// segment open during silence shorter than the disconnect threshold.
func Silent(length int, sampleRate int, timestampNS int64) Chunk {
	return Chunk{Samples: make([]int16, length), SampleRate: sampleRate, TimestampNS: timestampNS}
}

// Clone returns a deep copy so callers may retain a chunk beyond its
// producer's reuse of the backing array.
func (c Chunk) Clone() Chunk {
	out := Chunk{SampleRate: c.SampleRate, TimestampNS: c.TimestampNS}
	if c.Samples != nil {
		out.Samples = append([]int16(nil), c.Samples...)
	}
	return out
}
