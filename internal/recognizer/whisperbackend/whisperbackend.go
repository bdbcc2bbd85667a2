// Package whisperbackend binds the recognizer.Backend contract to
// OpenAI's non-streaming Whisper transcription endpoint: audio is
// accumulated into fixed-duration blobs and transcribed one blob at a
// time, so every delivered result is final (§6).
package whisperbackend

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/nappa-audio/dcr-transcribe/internal/recognizer"
	"github.com/nappa-audio/dcr-transcribe/internal/wavewriter"
)

// Config holds the Whisper-specific parameters read from the recognizer
// stanza (spec §6): model name and optional language hint.
type Config struct {
	Model    string
	Language string
}

// Backend opens non-streaming Whisper "sessions": each Conn buffers PCM
// in-process and issues one HTTP transcription request per accumulated
// chunk, rather than holding an upstream socket open.
type Backend struct {
	client openai.Client
	cfg    Config
	logger *slog.Logger
}

// New constructs a Backend from request options (e.g. option.WithAPIKey).
func New(cfg Config, logger *slog.Logger, opts ...option.RequestOption) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = openai.AudioModelWhisper1
	}
	return &Backend{client: openai.NewClient(opts...), cfg: cfg, logger: logger}
}

// Open starts a buffering Conn; no network call happens until enough
// audio has accumulated to form one chunk.
func (b *Backend) Open(ctx context.Context, cfg recognizer.SessionConfig) (recognizer.Conn, error) {
	if cfg.ChunkDurationSecs <= 0 {
		return nil, fmt.Errorf("whisperbackend: chunk_duration_secs must be positive")
	}
	samplesPerChunk := int(float64(cfg.SampleRate) * cfg.ChunkDurationSecs)

	c := &conn{
		backend:         b,
		sampleRate:      cfg.SampleRate,
		samplesPerChunk: samplesPerChunk,
		requestTimeout:  cfg.DialTimeout,
		events:          make(chan recognizer.Event, 8),
	}
	return c, nil
}

// conn buffers raw int16 PCM appended via SendFrame and transcribes one
// chunk's worth of audio per transcription request.
type conn struct {
	backend         *Backend
	sampleRate      int
	samplesPerChunk int
	requestTimeout  time.Duration

	mu      sync.Mutex
	acc     []int16
	recvErr error
	closed  bool

	events chan recognizer.Event
}

// SendFrame accepts a little-endian int16 PCM frame (matching the
// Session's default linear-PCM codec) and transcribes once enough audio
// has accumulated.
func (c *conn) SendFrame(frame []byte) error {
	samples := bytesToInt16(frame)

	c.mu.Lock()
	c.acc = append(c.acc, samples...)
	var toTranscribe []int16
	if len(c.acc) >= c.samplesPerChunk {
		toTranscribe = c.acc
		c.acc = nil
	}
	c.mu.Unlock()

	if len(toTranscribe) == 0 {
		return nil
	}
	c.transcribe(toTranscribe)
	return nil
}

// transcribe issues one Whisper API call and delivers the result as a
// final (non-partial) Event; failures are logged and dropped rather than
// torn down, matching the non-streaming backend's per-chunk independence.
func (c *conn) transcribe(samples []int16) {
	blob := wavewriter.EncodeToMemory(samples, c.sampleRate)

	params := openai.AudioTranscriptionNewParams{
		Model: c.backend.cfg.Model,
		File:  openai.File(bytes.NewReader(blob), "audio.wav", "audio/wav"),
	}
	if c.backend.cfg.Language != "" {
		params.Language = openai.String(c.backend.cfg.Language)
	}

	reqCtx := context.Background()
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(reqCtx, c.requestTimeout)
		defer cancel()
	}

	resp, err := c.backend.client.Audio.Transcriptions.New(reqCtx, params)
	if err != nil {
		c.backend.logger.Warn("whisper transcription request failed", "error", err)
		return
	}
	if resp.Text == "" {
		return
	}

	event := recognizer.Event{Results: []recognizer.Result{{
		IsPartial:    false,
		Alternatives: []recognizer.Alternative{{Text: resp.Text}},
	}}}

	select {
	case c.events <- event:
	default:
		c.backend.logger.Warn("whisper event queue full; dropping result")
	}
}

func (c *conn) Events() <-chan recognizer.Event { return c.events }

func (c *conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recvErr
}

// CloseSend flushes any partial remainder as a final transcription and
// closes the event channel; Whisper has no persistent socket to end.
func (c *conn) CloseSend() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	remainder := c.acc
	c.acc = nil
	c.mu.Unlock()

	if len(remainder) > 0 {
		c.transcribe(remainder)
	}
	close(c.events)
	return nil
}

func (c *conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	close(c.events)
	return nil
}

func bytesToInt16(raw []byte) []int16 {
	out := make([]int16, len(raw)/2)
	for i := range out {
		out[i] = int16(uint16(raw[i*2]) | uint16(raw[i*2+1])<<8)
	}
	return out
}
