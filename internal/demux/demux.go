// Package demux splits one interleaved capture-callback frame into N
// independent monaural chunks with a shared capture timestamp, and hands
// each off to its channel's bounded queue without ever blocking the
// real-time caller.
package demux

import (
	"fmt"
	"sync/atomic"

	"github.com/nappa-audio/dcr-transcribe/internal/pcm"
)

// Sink is one channel's inbound queue, as seen by the demultiplexer. It is
// a plain buffered channel; Demultiplexer never closes it.
type Sink = chan<- pcm.Chunk

// DropReason classifies why a frame's chunk for one channel was dropped.
type DropReason int

const (
	DropFull DropReason = iota
	DropClosed
)

// Stats accumulates per-channel drop counters. All fields are accessed via
// atomic.Int64 so the real-time callback never takes a lock.
type Stats struct {
	Full   atomic.Int64
	Closed atomic.Int64
}

// Demultiplexer converts interleaved device-native frames into per-channel
// mono int16 chunks. One instance is constructed per capture stream and
// lives as long as the stream.
type Demultiplexer struct {
	format     pcm.Format
	sampleRate int
	sinks      []Sink // indexed by channel position within the interleaved frame
	stats      []*Stats
}

// New constructs a demultiplexer for a K-channel interleaved stream. sinks
// must have exactly K entries in channel-index order; a nil entry means
// that device channel is not routed anywhere (its samples are discarded).
func New(format pcm.Format, sampleRate int, sinks []Sink) (*Demultiplexer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("demux: sample rate must be positive, got %d", sampleRate)
	}
	if len(sinks) == 0 {
		return nil, fmt.Errorf("demux: at least one channel sink is required")
	}
	// Validate the format up front so an unsupported device format fails
	// fatally at stream construction, never inside the hot callback path.
	if _, err := pcm.ToInt16(nil, format); err != nil {
		return nil, err
	}

	stats := make([]*Stats, len(sinks))
	for i := range stats {
		stats[i] = &Stats{}
	}
	return &Demultiplexer{format: format, sampleRate: sampleRate, sinks: sinks, stats: stats}, nil
}

// Stats returns the drop counters for channel index c.
func (d *Demultiplexer) Stats(c int) *Stats {
	return d.stats[c]
}

// Deliver processes one interleaved frame of rawFrame (device-native
// encoding, K channels interleaved) captured at timestampNS. It never
// blocks: a full or closed per-channel queue is counted and the chunk for
// that channel alone is dropped; other channels are unaffected.
func (d *Demultiplexer) Deliver(rawFrame []byte, timestampNS int64) error {
	samples, err := pcm.ToInt16(rawFrame, d.format)
	if err != nil {
		return err
	}

	k := len(d.sinks)
	if k == 0 || len(samples) == 0 {
		return nil
	}
	n := len(samples) / k

	for c := 0; c < k; c++ {
		sink := d.sinks[c]
		if sink == nil {
			continue
		}
		chunkSamples := make([]int16, n)
		for i := 0; i < n; i++ {
			chunkSamples[i] = samples[i*k+c]
		}
		chunk := pcm.Chunk{Samples: chunkSamples, SampleRate: d.sampleRate, TimestampNS: timestampNS}
		d.offer(c, sink, chunk)
	}
	return nil
}

// offer performs the zero-wait, non-blocking hand-off for one channel.
func (d *Demultiplexer) offer(c int, sink Sink, chunk pcm.Chunk) {
	defer func() {
		// A send on a closed channel panics; treat it identically to a
		// full queue being unable to accept more work, just with a
		// distinct counter, and never propagate the panic to the
		// real-time caller.
		if r := recover(); r != nil {
			d.stats[c].Closed.Add(1)
		}
	}()

	select {
	case sink <- chunk:
	default:
		d.stats[c].Full.Add(1)
	}
}
