// Package recognizer owns one upstream recognizer session per channel:
// adaptive codec-framed chunking, reconnect-on-voice-detected lifecycle,
// silence-based disconnect is driven by the pipeline, and timestamp-drift
// prevention across reconnects, per spec §4.4.
package recognizer

import (
	"context"
	"time"
)

// Token is one recognizer-reported word/phrase boundary with its
// stability flag, used to compute the fractional stability bucket for
// partial results.
type Token struct {
	Stable    bool
	StartTime float64
	EndTime   float64
}

// Alternative is one candidate transcription of a result.
type Alternative struct {
	Text   string
	Tokens []Token
}

// Result is one recognizer result, partial or final, within an Event.
type Result struct {
	IsPartial    bool
	Alternatives []Alternative
	// SegmentStart is the recognizer-reported segment start time in
	// elapsed seconds, when the backend provides one. Nil means the
	// session's own reference time should be used instead (§4.4).
	SegmentStart *float64
}

// Event is zero or more Results delivered per upstream frame.
type Event struct {
	Results []Result
}

// SessionConfig negotiates the outbound audio format and language at
// session start, per spec §6's upstream recognizer contract.
type SessionConfig struct {
	SampleRate   int
	Encoding     string
	LanguageCode string
	// ChunkDurationSecs only applies to non-streaming backends (§6's
	// Whisper binding): each blob covers this many seconds of audio.
	ChunkDurationSecs float64
	DialTimeout       time.Duration
}

// Conn is one open backend connection: the abstract upstream recognizer
// contract from spec §6, independent of any specific wire protocol.
type Conn interface {
	// SendFrame delivers one compressed (or, for non-streaming backends,
	// one whole blob) audio frame.
	SendFrame(frame []byte) error
	// Events yields recognition events as they arrive. The channel is
	// closed when the upstream ends the stream or the connection fails;
	// Err reports the terminal error, if any, once Events is closed.
	Events() <-chan Event
	Err() error
	// CloseSend signals end-of-audio to the upstream without tearing
	// down the receive side (streaming backends only; non-streaming
	// backends may treat this as a no-op).
	CloseSend() error
	// Close aborts the connection immediately.
	Close() error
}

// Backend opens a new Conn. Two concrete bindings are provided:
// awsbackend (streaming) and whisperbackend (non-streaming), per §6.
type Backend interface {
	Open(ctx context.Context, cfg SessionConfig) (Conn, error)
}
