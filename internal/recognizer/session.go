package recognizer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/nappa-audio/dcr-transcribe/internal/fsm"
)

// State is the session's connection lifecycle state, per spec §3. It
// mirrors fsm.State one-for-one; Session keeps its own exported enum so
// callers never need to import the fsm package just to compare states.
type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

func (s State) toFSM() fsm.State {
	if s == Connected {
		return fsm.StateConnected
	}
	return fsm.StateDisconnected
}

func fromFSM(s fsm.State) State {
	if s == fsm.StateConnected {
		return Connected
	}
	return Disconnected
}

// compressionConcurrency bounds how many frames may be encoding at once,
// keeping the session task itself never CPU-blocked (spec §4.4/§5).
const compressionConcurrency = 4

// inboundQueueDepth bounds the outbound-to-upstream PCM queue; back-
// pressure here is what eventually shows up as drops at the demux, never
// as blocking in the real-time callback (spec §4.5).
const inboundQueueDepth = 64

// transcriptQueueDepth bounds the delivered-transcript queue drained by
// the pipeline's poller.
const transcriptQueueDepth = 64

// receiveTimeout is the data-timeout used by the session task to decide
// whether to flush a short frame, per spec §4.4/§5.
const receiveTimeout = 100 * time.Millisecond

// Session owns one channel's upstream recognizer connection: the PCM
// accumulator, its framer, the inbound transcript queue, and the
// background task driving all three. A Session is owned exclusively by
// one channel pipeline; Reconnect/Disconnect are only ever called from
// that pipeline's processor task (spec §5's serialization guarantee), but
// a mutex guards state because the background task's own receive-loop
// failure can concurrently flip Connected -> Disconnected.
type Session struct {
	channelID int
	backend   Backend
	codec     Codec
	logger    *slog.Logger
	sem       *semaphore.Weighted

	mu            sync.Mutex
	state         State
	conn          Conn
	outboundCh    chan []int16
	transcriptCh  chan Transcript
	referenceTime time.Time
	framer        *framer
	cfg           SessionConfig
	sessionID     string
}

// New constructs a Session in the Disconnected state.
func New(channelID int, backend Backend, codec Codec, cfg SessionConfig, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if codec == nil {
		codec = NewLinearPCMCodec()
	}
	return &Session{
		channelID: channelID,
		backend:   backend,
		codec:     codec,
		cfg:       cfg,
		logger:    logger,
		sem:       semaphore.NewWeighted(compressionConcurrency),
		state:     Disconnected,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transcripts returns the inbound transcript channel. Valid to call at
// any time; it is nil until the first successful Reconnect. After a
// disconnect it still returns the previous connection's channel until the
// next Reconnect replaces it.
func (s *Session) Transcripts() <-chan Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transcriptCh == nil {
		return nil
	}
	return s.transcriptCh
}

// Reconnect opens a new upstream connection and starts the background
// task. It is idempotent when already Connected (a no-op observable only
// via the absence of a new task spawn), per spec's testable property 5.
func (s *Session) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	if s.state == Connected {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	conn, err := s.backend.Open(ctx, s.cfg)
	if err != nil {
		s.logger.Error("recognizer session start failed", "channel", s.channelID, "error", err)
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.outboundCh = make(chan []int16, inboundQueueDepth)
	s.transcriptCh = make(chan Transcript, transcriptQueueDepth)
	// Resetting to "now" on every fresh connect keeps elapsed_seconds
	// monotonic within the session without accumulating drift across
	// reconnects (spec §4.4 / testable property 4/5).
	s.referenceTime = time.Now()
	s.framer = newFramer(s.cfg.SampleRate)
	s.sessionID = uuid.NewString()
	next, err := fsm.Transition(s.state.toFSM(), fsm.EventConnect)
	if err != nil {
		// Unreachable under the mutex given the Connected guard above,
		// but fail closed rather than silently keep stale state.
		s.mu.Unlock()
		return err
	}
	s.state = fromFSM(next)
	sessionID := s.sessionID
	s.mu.Unlock()

	s.logger.Info("recognizer session connected", "channel", s.channelID, "session_id", sessionID)

	go s.sendLoop()
	go s.recvLoop()
	return nil
}

// Disconnect drops the outbound sender; the send loop observes the
// closure, flushes, ends the stream, and exits. The caller does not wait
// for that exit (spec §4.4: "the handle is simply dropped").
func (s *Session) Disconnect() {
	s.mu.Lock()
	next, err := fsm.Transition(s.state.toFSM(), fsm.EventDisconnect)
	if err != nil {
		s.mu.Unlock()
		return
	}
	s.state = fromFSM(next)
	outbound := s.outboundCh
	s.outboundCh = nil
	s.mu.Unlock()

	closeOutbound(outbound)
}

// closeOutbound closes ch if non-nil; it is the only place that closes
// the outbound channel, so both an operator-initiated Disconnect and a
// background-task-detected failure converge on the same shutdown path
// for sendLoop.
func closeOutbound(ch chan []int16) {
	if ch != nil {
		close(ch)
	}
}

// SendAudio enqueues one chunk of PCM for framing and upload. It suspends
// the caller (a cooperative task, never the real-time callback) until the
// outbound queue accepts the chunk. An error return means the session is
// not Connected, or became Disconnected while sending; per spec §4.5 the
// caller must treat any such failure as an immediate transition to
// Disconnected.
func (s *Session) SendAudio(samples []int16) (err error) {
	s.mu.Lock()
	outbound := s.outboundCh
	connected := s.state == Connected
	s.mu.Unlock()

	if !connected || outbound == nil {
		return errors.New("recognizer session: not connected")
	}

	defer func() {
		// A send on a channel closed concurrently by the background
		// task's own failure detection panics; treat that race
		// identically to "not connected" rather than reporting success.
		if r := recover(); r != nil {
			err = errors.New("recognizer session: disconnected during send")
		}
	}()
	outbound <- samples
	return nil
}

// sendLoop frames, compresses, and uploads PCM until the outbound channel
// closes, then flushes the remainder and signals end-of-audio.
func (s *Session) sendLoop() {
	s.mu.Lock()
	outbound := s.outboundCh
	conn := s.conn
	fr := s.framer
	s.mu.Unlock()

	var wg sync.WaitGroup
	encode := func(frame []int16) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.sem.Acquire(context.Background(), 1)
			defer s.sem.Release(1)

			blob, err := s.codec.Encode(frame)
			if err != nil {
				s.logger.Warn("recognizer frame encode failed", "channel", s.channelID, "error", err)
				return
			}
			if err := conn.SendFrame(blob); err != nil {
				s.logger.Warn("recognizer frame send failed", "channel", s.channelID, "error", err)
			}
		}()
	}

	timer := time.NewTimer(receiveTimeout)
	defer timer.Stop()

loop:
	for {
		select {
		case samples, ok := <-outbound:
			if !ok {
				break loop
			}
			for _, frame := range fr.push(samples) {
				encode(frame)
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(receiveTimeout)
		case <-timer.C:
			if remainder := fr.flush(); len(remainder) > 0 {
				encode(remainder)
			}
			timer.Reset(receiveTimeout)
		}
	}

	if remainder := fr.flush(); len(remainder) > 0 {
		encode(remainder)
	}
	wg.Wait()
	_ = conn.CloseSend()

	s.transitionToDisconnected()
}

// recvLoop consumes upstream events, maps them to transcripts, and
// delivers them with try-send semantics until the upstream ends the
// stream or fails.
func (s *Session) recvLoop() {
	s.mu.Lock()
	conn := s.conn
	transcriptCh := s.transcriptCh
	reference := s.referenceTime
	channelID := s.channelID
	s.mu.Unlock()

	for event := range conn.Events() {
		for _, result := range event.Results {
			for _, alt := range result.Alternatives {
				t := Transcript{
					ChannelID: channelID,
					WallClock: time.Now(),
					Text:      alt.Text,
					IsPartial: result.IsPartial,
				}
				if result.SegmentStart != nil {
					t.ElapsedSeconds = *result.SegmentStart
				} else {
					t.ElapsedSeconds = time.Since(reference).Seconds()
				}
				if result.IsPartial {
					t.Stability = tokenStability(alt.Tokens)
				}

				select {
				case transcriptCh <- t:
				default:
					s.logger.Warn("recognizer transcript queue full; dropping", "channel", channelID)
				}
			}
		}
	}

	if err := conn.Err(); err != nil {
		s.logger.Warn("recognizer event stream ended with error", "channel", channelID, "error", err)
	}

	s.transitionToDisconnected()
}

// transitionToDisconnected is called by either background task on
// terminal failure/EOF; it is idempotent and also closes the outbound
// channel so the other background task (if still running) observes the
// closure and exits rather than leaking.
func (s *Session) transitionToDisconnected() {
	s.mu.Lock()
	next, err := fsm.Transition(s.state.toFSM(), fsm.EventDisconnect)
	if err != nil {
		s.mu.Unlock()
		return
	}
	s.state = fromFSM(next)
	outbound := s.outboundCh
	s.outboundCh = nil
	s.mu.Unlock()

	closeOutbound(outbound)
}
