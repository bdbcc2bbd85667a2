// Package awsbackend binds the recognizer.Backend contract to AWS
// Transcribe's bidirectional event-stream protocol, via aws-sdk-go's
// transcribestreamingservice client.
package awsbackend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/transcribestreamingservice"

	"github.com/nappa-audio/dcr-transcribe/internal/recognizer"
)

// Config holds the AWS Transcribe streaming parameters read from the
// region/config section of the recognizer stanza (spec §6).
type Config struct {
	Region string
	// VocabularyName optionally selects a custom vocabulary, left empty
	// to use Transcribe's defaults.
	VocabularyName string
}

// Backend opens AWS Transcribe streaming sessions.
type Backend struct {
	cfg    Config
	logger *slog.Logger
	sess   *session.Session
}

// New constructs a Backend from a pre-built AWS session, so credential
// resolution (env, shared config, instance role) is handled once at
// startup the way the AWS SDK's own examples do it.
func New(sess *session.Session, cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{cfg: cfg, logger: logger, sess: sess}
}

// Open starts one StartStreamTranscription session and returns a Conn
// wrapping its bidirectional event stream.
func (b *Backend) Open(ctx context.Context, cfg recognizer.SessionConfig) (recognizer.Conn, error) {
	client := transcribestreamingservice.New(b.sess, aws.NewConfig().WithRegion(b.cfg.Region))

	input := &transcribestreamingservice.StartStreamTranscriptionInput{
		LanguageCode:         aws.String(cfg.LanguageCode),
		MediaEncoding:        aws.String(transcribestreamingservice.MediaEncodingPcm),
		MediaSampleRateHertz: aws.Int64(int64(cfg.SampleRate)),
	}
	if b.cfg.VocabularyName != "" {
		input.VocabularyName = aws.String(b.cfg.VocabularyName)
	}

	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}

	resp, err := client.StartStreamTranscriptionWithContext(dialCtx, input)
	if err != nil {
		return nil, fmt.Errorf("start transcribe stream: %w", err)
	}

	c := &conn{
		stream: resp.GetStream(),
		events: make(chan recognizer.Event, 16),
		logger: b.logger,
	}
	if c.stream == nil {
		return nil, errors.New("start transcribe stream: nil event stream")
	}
	go c.recvLoop()
	return c, nil
}

// conn adapts transcribestreamingservice's EventStream to recognizer.Conn.
type conn struct {
	stream *transcribestreamingservice.StartStreamTranscriptionEventStream
	logger *slog.Logger

	events chan recognizer.Event

	mu      sync.Mutex
	recvErr error
	closed  bool
}

func (c *conn) SendFrame(frame []byte) error {
	event := &transcribestreamingservice.AudioEvent{AudioChunk: frame}
	return c.stream.Send(context.Background(), event)
}

func (c *conn) Events() <-chan recognizer.Event { return c.events }

func (c *conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recvErr
}

func (c *conn) CloseSend() error {
	return c.stream.Close()
}

func (c *conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.stream.Close()
}

// recvLoop drains the SDK's event channel, translating each
// TranscriptEvent into a recognizer.Event, until the stream closes.
func (c *conn) recvLoop() {
	defer close(c.events)

	for rawEvent := range c.stream.Events() {
		transcriptEvent, ok := rawEvent.(*transcribestreamingservice.TranscriptEvent)
		if !ok || transcriptEvent.Transcript == nil {
			continue
		}

		var results []recognizer.Result
		for _, r := range transcriptEvent.Transcript.Results {
			result := recognizer.Result{IsPartial: aws.BoolValue(r.IsPartial)}
			if r.StartTime != nil {
				start := aws.Float64Value(r.StartTime)
				result.SegmentStart = &start
			}
			for _, alt := range r.Alternatives {
				result.Alternatives = append(result.Alternatives, toAlternative(alt))
			}
			results = append(results, result)
		}
		if len(results) == 0 {
			continue
		}
		c.events <- recognizer.Event{Results: results}
	}

	if err := c.stream.Err(); err != nil {
		c.mu.Lock()
		c.recvErr = errors.Join(errors.New("transcribe stream ended"), err)
		c.mu.Unlock()
	}
}

func toAlternative(alt *transcribestreamingservice.Alternative) recognizer.Alternative {
	out := recognizer.Alternative{Text: aws.StringValue(alt.Transcript)}
	for _, item := range alt.Items {
		out.Tokens = append(out.Tokens, recognizer.Token{
			// Stable is only populated when partial-results stabilization is
			// enabled on the stream; a nil pointer means "not yet known",
			// which we treat as unstable rather than stable.
			Stable:    aws.BoolValue(item.Stable),
			StartTime: aws.Float64Value(item.StartTime),
			EndTime:   aws.Float64Value(item.EndTime),
		})
	}
	return out
}
