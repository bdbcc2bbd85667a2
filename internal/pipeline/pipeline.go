// Package pipeline implements the per-channel orchestrator and its
// multi-channel supervisor (spec §4.5, §4.6): it owns one channel's wave
// writer, VAD, retry buffer, and recognizer session exclusively, and
// drives the voice/silence connect-disconnect-forward decision on every
// dequeued chunk.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nappa-audio/dcr-transcribe/internal/buffer"
	"github.com/nappa-audio/dcr-transcribe/internal/dashboard"
	"github.com/nappa-audio/dcr-transcribe/internal/pcm"
	"github.com/nappa-audio/dcr-transcribe/internal/recognizer"
	"github.com/nappa-audio/dcr-transcribe/internal/transcript"
	"github.com/nappa-audio/dcr-transcribe/internal/vad"
	"github.com/nappa-audio/dcr-transcribe/internal/wavewriter"
)

// inboundQueueDepth bounds the demultiplexer-to-pipeline hand-off; a full
// queue here is what the demultiplexer counts as a drop, never a block on
// the capture callback (spec §4.1/§5).
const inboundQueueDepth = 64

// idlePollInterval is how often a per-channel loop re-checks its running
// flag when it has no queue work to do, per spec §5 ("each loop checks a
// running flag between awaits").
const idlePollInterval = 50 * time.Millisecond

// Config configures one channel's pipeline, sourced from the channels[]
// and sibling stanzas of the loaded configuration (spec §6).
type Config struct {
	ChannelID   int
	ChannelName string
	SampleRate  int

	ThresholdDB                  float64
	HangoverDurationMS           int
	SilenceDisconnectThresholdMS float64

	BufferCapacitySeconds float64
	BufferDropPolicy      buffer.DropPolicy

	ConnectOnStartup        bool
	SendBufferedOnReconnect bool

	WavOutputDir string

	Recognizer recognizer.SessionConfig
}

// Pipeline is one channel's processor: start(), process_chunk(), and
// stop() per spec §4.5. It exclusively owns its VAD, buffer, wave
// writer, and recognizer session; no locking is needed for those fields
// because only this pipeline's own processor task ever touches them.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
	dash   *dashboard.Table

	// In is the bounded inbound queue the demultiplexer's Sink points at.
	// It is the only field of Pipeline touched from outside the
	// processor task (by the demultiplexer's non-blocking send) besides
	// the monitor sink below.
	In chan pcm.Chunk

	vadDet *vad.Detector
	buf    *buffer.RetryBuffer
	wav    *wavewriter.Writer
	sess   *recognizer.Session

	silenceMS float64

	monitorMu sync.Mutex
	monitor   chan<- pcm.Chunk

	stopped atomic.Bool
	done    chan struct{}
}

// New constructs a Pipeline and registers its channel with the dashboard.
func New(cfg Config, backend recognizer.Backend, dash *dashboard.Table, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	dash.Register(cfg.ChannelID, cfg.ChannelName, cfg.ThresholdDB)
	return &Pipeline{
		cfg:    cfg,
		logger: logger,
		dash:   dash,
		In:     make(chan pcm.Chunk, inboundQueueDepth),
		vadDet: vad.New(cfg.ThresholdDB, cfg.HangoverDurationMS),
		buf:    buffer.New(cfg.BufferCapacitySeconds, cfg.SampleRate, cfg.BufferDropPolicy, logger),
		sess:   recognizer.New(cfg.ChannelID, backend, nil, cfg.Recognizer, logger),
		done:   make(chan struct{}),
	}
}

// Start opens the wave file, optionally connects on startup, and spawns
// the processor and transcript-poller tasks.
func (p *Pipeline) Start(ctx context.Context) error {
	path := filepath.Join(p.cfg.WavOutputDir, fmt.Sprintf("channel_%d_%s.wav", p.cfg.ChannelID, time.Now().Format("20060102_150405")))
	w, err := wavewriter.Create(path, p.cfg.SampleRate)
	if err != nil {
		return fmt.Errorf("pipeline channel %d: %w", p.cfg.ChannelID, err)
	}
	p.wav = w

	if p.cfg.ConnectOnStartup {
		if err := p.sess.Reconnect(ctx); err != nil {
			p.logger.Warn("pipeline initial connect failed", "channel", p.cfg.ChannelID, "error", err)
			p.publishConnection(dashboard.StatusError)
		} else {
			p.publishConnection(dashboard.StatusConnected)
		}
	}

	go p.processLoop(ctx)
	go p.transcriptLoop()
	return nil
}

// Stop drops the recognizer's outbound sender, finalizes the wave
// writer, and publishes Disconnected. Idempotent.
func (p *Pipeline) Stop() {
	if !p.stopped.CompareAndSwap(false, true) {
		return
	}
	p.sess.Disconnect()
	if p.wav != nil {
		if err := p.wav.Close(); err != nil {
			p.logger.Warn("wave writer close failed", "channel", p.cfg.ChannelID, "error", err)
		}
	}
	p.publishConnection(dashboard.StatusDisconnected)
}

// SetMonitor installs sink as this channel's monitor-output destination;
// nil clears it. Safe to call concurrently with the processor task
// (the supervisor's playback router calls this from its own goroutine).
func (p *Pipeline) SetMonitor(sink chan<- pcm.Chunk) {
	p.monitorMu.Lock()
	p.monitor = sink
	p.monitorMu.Unlock()
}

// ClearMonitor removes this channel's monitor-output destination.
func (p *Pipeline) ClearMonitor() {
	p.SetMonitor(nil)
}

// processLoop consumes In until Stop is called, checking the running
// flag between awaits per spec §5.
func (p *Pipeline) processLoop(ctx context.Context) {
	defer close(p.done)
	for {
		if p.stopped.Load() {
			return
		}
		select {
		case chunk, ok := <-p.In:
			if !ok {
				return
			}
			p.processChunk(ctx, chunk)
		case <-time.After(idlePollInterval):
		case <-ctx.Done():
			return
		}
	}
}

// processChunk implements the spec §4.5 truth table, invoked once per
// dequeued chunk in order.
func (p *Pipeline) processChunk(ctx context.Context, chunk pcm.Chunk) {
	if p.wav != nil {
		if err := p.wav.WriteSamples(chunk.Samples); err != nil {
			p.logger.Warn("wave writer sample write failed", "channel", p.cfg.ChannelID, "error", err)
		}
	}
	backlogBeforeChunk := p.buf.Chunks()
	p.buf.Push(chunk)

	state := p.vadDet.Process(chunk)
	loudnessDB := p.vadDet.LastLoudnessDB()
	p.dash.UpdateChannel(p.cfg.ChannelID, func(s *dashboard.ChannelState) {
		s.LoudnessDB = loudnessDB
		s.VADState = state.String()
	})

	durationMS := chunk.DurationMS()
	connected := p.sess.State() == recognizer.Connected

	switch {
	case state == vad.Voice && !connected:
		p.onVoiceWhileDisconnected(ctx, chunk, backlogBeforeChunk)
	case state == vad.Voice && connected:
		p.forwardOrDisconnect(chunk)
		p.silenceMS = 0
	case state == vad.Silence && connected:
		p.silenceMS += durationMS
		if p.silenceMS >= p.cfg.SilenceDisconnectThresholdMS {
			p.sess.Disconnect()
			p.publishConnection(dashboard.StatusDisconnected)
		} else {
			p.forwardOrDisconnect(pcm.Silent(len(chunk.Samples), chunk.SampleRate, chunk.TimestampNS))
		}
	default:
		// silence && disconnected: no forwarding; the chunk still joined
		// the backlog above, to be replayed on the next reconnect.
	}

	p.forwardMonitor(chunk)
}

// onVoiceWhileDisconnected reconnects, optionally replays the buffered
// in-silence backlog, and forwards the current chunk. backlog is the
// buffer's contents as of just before chunk was pushed, so the chunk
// being forwarded below is never replayed a second time as its own
// backlog entry.
func (p *Pipeline) onVoiceWhileDisconnected(ctx context.Context, chunk pcm.Chunk, backlog []pcm.Chunk) {
	if err := p.sess.Reconnect(ctx); err != nil {
		p.logger.Warn("recognizer reconnect failed", "channel", p.cfg.ChannelID, "error", err)
		p.publishConnection(dashboard.StatusError)
		return
	}
	p.publishConnection(dashboard.StatusConnected)

	if p.cfg.SendBufferedOnReconnect {
		p.buf.Clear()
		for _, buffered := range backlog {
			if err := p.sess.SendAudio(buffered.Samples); err != nil {
				p.logger.Warn("recognizer backlog send failed", "channel", p.cfg.ChannelID, "error", err)
				p.sess.Disconnect()
				p.publishConnection(dashboard.StatusDisconnected)
				return
			}
		}
	}

	p.forwardOrDisconnect(chunk)
	p.silenceMS = 0
}

// forwardOrDisconnect sends samples to the recognizer session, demoting
// the session to Disconnected on any send failure (spec §4.5 step 8).
func (p *Pipeline) forwardOrDisconnect(chunk pcm.Chunk) {
	if err := p.sess.SendAudio(chunk.Samples); err != nil {
		p.logger.Warn("recognizer send failed; disconnecting", "channel", p.cfg.ChannelID, "error", err)
		p.sess.Disconnect()
		p.publishConnection(dashboard.StatusDisconnected)
	}
}

// forwardMonitor clones and try-sends chunk to the monitor sink, if any
// is installed; a full or absent sink is never a reason to slow the
// processor task down (spec §4.5 step 7).
func (p *Pipeline) forwardMonitor(chunk pcm.Chunk) {
	p.monitorMu.Lock()
	sink := p.monitor
	p.monitorMu.Unlock()
	if sink == nil {
		return
	}

	clone := append([]int16(nil), chunk.Samples...)
	select {
	case sink <- pcm.Chunk{Samples: clone, SampleRate: chunk.SampleRate, TimestampNS: chunk.TimestampNS}:
	default:
		p.logger.Warn("monitor output queue full; dropping", "channel", p.cfg.ChannelID)
	}
}

func (p *Pipeline) publishConnection(status dashboard.ConnectionStatus) {
	p.dash.UpdateChannel(p.cfg.ChannelID, func(s *dashboard.ChannelState) {
		s.Connection = status
	})
}

// transcriptLoop drains the recognizer session's transcript queue
// (poll_transcripts), applying output normalization to finals before
// they reach the dashboard and the structured transcript log.
func (p *Pipeline) transcriptLoop() {
	for {
		if p.stopped.Load() {
			return
		}
		ch := p.sess.Transcripts()
		if ch == nil {
			time.Sleep(idlePollInterval)
			continue
		}
		select {
		case tr, ok := <-ch:
			if ok {
				p.handleTranscript(tr)
			}
		case <-time.After(idlePollInterval):
		}
	}
}

func (p *Pipeline) handleTranscript(tr recognizer.Transcript) {
	if tr.IsPartial {
		p.dash.SetPartial(p.cfg.ChannelID, tr.Text, tr.WallClock)
		return
	}

	cleaned := transcript.Clean(tr.Text)
	if cleaned == "" {
		return
	}

	p.dash.PushFinal(p.cfg.ChannelID, dashboard.TranscriptLine{
		WallClock:      tr.WallClock,
		ElapsedSeconds: tr.ElapsedSeconds,
		Text:           cleaned,
	})

	// Structured transcript log line, per spec §6's exact schema; the
	// logging package's JSON sink renders these fields verbatim.
	p.logger.Info("transcript",
		"channel", p.cfg.ChannelID,
		"timestamp", tr.WallClock.Format(time.RFC3339),
		"timestamp_seconds", tr.ElapsedSeconds,
		"text", cleaned,
		"is_partial", false,
	)
}
