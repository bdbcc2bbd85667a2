// Package audio handles device discovery, multi-channel interleaved
// capture, and monitor playback over PulseAudio (spec §4.1, §6).
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"github.com/nappa-audio/dcr-transcribe/internal/demux"
	"github.com/nappa-audio/dcr-transcribe/internal/pcm"
)

// frameDuration bounds the granularity at which interleaved frames are
// handed to the demultiplexer; shorter frames lower end-to-end latency at
// the cost of more demux calls.
const frameDuration = 20 * time.Millisecond

const appName = "dcr-transcribe"

// Device describes one Pulse source or sink surfaced for --show-interfaces
// and config selection.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
	SampleRate  int
	Channels    int
}

// Selection is the resolved capture source plus optional fallback warning
// context.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

func newClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName(appName),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

// ListDevices returns available Pulse input sources with default/
// availability metadata.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}
	defaultID := defaultSource.ID()

	var sourceInfos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &sourceInfos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(sourceInfos))
	for _, source := range sourceInfos {
		if source == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          source.SourceName,
			Description: source.Device,
			State:       sourceStateString(source.State),
			Available:   sourceAvailable(source),
			Muted:       source.Mute,
			Default:     source.SourceName == defaultID,
			SampleRate:  int(source.SampleRate),
			Channels:    int(source.Channels),
		})
	}
	return devices, nil
}

// ListOutputDevices returns available Pulse sinks for monitor-output
// selection and --show-interfaces, symmetric to ListDevices.
func ListOutputDevices(_ context.Context) ([]Device, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	defaultSink, err := client.DefaultSink()
	if err != nil {
		return nil, fmt.Errorf("read default sink: %w", err)
	}
	defaultID := defaultSink.ID()

	var sinkInfos pulseproto.GetSinkInfoListReply
	if err := client.RawRequest(&pulseproto.GetSinkInfoList{}, &sinkInfos); err != nil {
		return nil, fmt.Errorf("list sinks: %w", err)
	}

	devices := make([]Device, 0, len(sinkInfos))
	for _, sink := range sinkInfos {
		if sink == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          sink.SinkName,
			Description: sink.Device,
			State:       sourceStateString(sink.State),
			Available:   true,
			Muted:       sink.Mute,
			Default:     sink.SinkName == defaultID,
			SampleRate:  int(sink.SampleRate),
			Channels:    int(sink.Channels),
		})
	}
	return devices, nil
}

// SelectDevice resolves audio.device_id against live input devices;
// "default" selects the Pulse-reported default source.
func SelectDevice(ctx context.Context, deviceID string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return selectDeviceFromList(devices, deviceID, "default")
}

// selectDeviceFromList applies selection policy to a pre-fetched device
// list: prefer the first device whose id or description contains input
// (case-insensitive), falling back to the fallback term's match or the
// reported default when it is unavailable or muted.
func selectDeviceFromList(devices []Device, input string, fallback string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no audio input devices found")
	}

	var (
		defaultDevice *Device
		byInput       *Device
		byFallback    *Device
	)

	input = strings.TrimSpace(strings.ToLower(input))
	fallback = strings.TrimSpace(strings.ToLower(fallback))

	for i := range devices {
		dev := &devices[i]
		if dev.Default {
			defaultDevice = dev
		}
		if byInput == nil && input != "" && input != "default" && deviceMatches(*dev, input) {
			byInput = dev
		}
		if byFallback == nil && fallback != "" && fallback != "default" && deviceMatches(*dev, fallback) {
			byFallback = dev
		}
	}

	chooseDefault := func() (*Device, error) {
		if defaultDevice == nil {
			return nil, errors.New("default audio source is unavailable")
		}
		return defaultDevice, nil
	}

	selectPrimary := func() (*Device, error) {
		if input == "" || input == "default" {
			return chooseDefault()
		}
		if byInput != nil {
			return byInput, nil
		}
		return nil, fmt.Errorf("audio.device_id %q did not match any device", input)
	}

	primary, err := selectPrimary()
	if err != nil {
		return Selection{}, err
	}
	if primary.Available && !primary.Muted {
		return Selection{Device: *primary}, nil
	}

	primaryReason := "unavailable"
	if primary.Muted {
		primaryReason = "muted"
	}

	fallbackDevice := primary
	if fallback != "" && fallback != "default" {
		if byFallback == nil {
			return Selection{}, fmt.Errorf("primary input %q is %s and fallback %q not found", primary.ID, primaryReason, fallback)
		}
		fallbackDevice = byFallback
	} else {
		d, derr := chooseDefault()
		if derr != nil {
			return Selection{}, fmt.Errorf("primary input %q is %s and no usable fallback: %w", primary.ID, primaryReason, derr)
		}
		fallbackDevice = d
	}

	if !fallbackDevice.Available {
		return Selection{}, fmt.Errorf("audio fallback device %q is not available", fallbackDevice.ID)
	}
	if fallbackDevice.Muted {
		return Selection{}, fmt.Errorf("audio fallback device %q is muted", fallbackDevice.ID)
	}

	return Selection{
		Device:   *fallbackDevice,
		Warning:  fmt.Sprintf("audio.device_id %q is %s; falling back to %q", primary.ID, primaryReason, fallbackDevice.ID),
		Fallback: primary.ID != fallbackDevice.ID,
	}, nil
}

// deviceMatches reports whether a search term matches a device id or
// description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	id := strings.ToLower(device.ID)
	desc := strings.ToLower(device.Description)
	return strings.Contains(id, term) || strings.Contains(desc, term)
}

// Capture streams interleaved device-native frames from one selected
// Pulse source directly into a demultiplexer, which does the per-channel
// split (spec §4.1). No single-channel chunking happens here: Capture's
// only job is turning the Pulse callback into fixed-duration frames with
// a shared timestamp.
type Capture struct {
	device     Device
	sampleRate int
	channels   int
	frameBytes int

	client *pulse.Client
	stream *pulse.RecordStream
	demux  *demux.Demultiplexer

	stopCh  chan struct{}
	stopped bool
	mu      sync.Mutex
	pending []byte

	startNS  int64
	frameSeq atomic.Int64

	inflight sync.WaitGroup
	bytes    atomic.Int64
}

// StartCapture creates and starts an interleaved record stream at
// sampleRate/channels (device-native int16 LE) and delivers every
// complete frame to dmx.
func StartCapture(ctx context.Context, selected Device, sampleRate, channels int, dmx *demux.Demultiplexer) (*Capture, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", selected.ID, err)
	}

	samplesPerFrame := int(float64(sampleRate) * frameDuration.Seconds())
	if samplesPerFrame <= 0 {
		samplesPerFrame = 1
	}

	capture := &Capture{
		device:     selected,
		sampleRate: sampleRate,
		channels:   channels,
		frameBytes: samplesPerFrame * channels * 2,
		demux:      dmx,
		stopCh:     make(chan struct{}),
		startNS:    time.Now().UnixNano(),
	}

	writer := pulse.NewWriter(writerFunc(capture.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordChannels(channelMapFor(channels)),
		pulse.RecordSampleRate(uint32(sampleRate)),
		pulse.RecordBufferFragmentSize(uint32(capture.frameBytes)),
		pulse.RecordMediaName(appName),
	)
	if err != nil {
		capture.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	capture.client = client
	capture.stream = stream
	stream.Start()

	go func() {
		<-ctx.Done()
		_ = capture.Stop()
	}()

	return capture, nil
}

// channelMapFor returns the simplest channel position map jfreymuth/pulse
// accepts for an N-channel device-native stream: mono and stereo use the
// library's named helpers; anything wider is left to aux-channel
// positions, which the server accepts without implying any speaker
// layout.
func channelMapFor(channels int) pulse.ChannelMap {
	switch channels {
	case 1:
		return pulse.ChannelMap{pulse.ChannelMono}
	case 2:
		return pulse.ChannelMap{pulse.ChannelLeft, pulse.ChannelRight}
	default:
		m := make(pulse.ChannelMap, channels)
		for i := range m {
			m[i] = pulse.ChannelAux(i)
		}
		return m
	}
}

// Device returns capture metadata for logging and diagnostics.
func (c *Capture) Device() Device { return c.device }

// BytesCaptured reports total bytes accepted from Pulse.
func (c *Capture) BytesCaptured() int64 { return c.bytes.Load() }

// Stop halts the stream and releases the Pulse connection. Idempotent.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.stopCh)
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}

	c.inflight.Wait()
	return nil
}

// Close is a convenience alias for Stop.
func (c *Capture) Close() { _ = c.Stop() }

// onPCM receives raw Pulse frames, accumulates them into frameBytes-sized
// interleaved frames, and delivers each to the demultiplexer with a
// timestamp derived from the stream's start time and frame sequence
// number, never wall-clock-per-callback, so timestamps stay monotonic and
// evenly spaced regardless of callback jitter.
func (c *Capture) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	select {
	case <-c.stopCh:
		return 0, io.EOF
	default:
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	c.inflight.Add(1)
	c.pending = append(c.pending, buffer...)

	var frames [][]byte
	for len(c.pending) >= c.frameBytes {
		frame := make([]byte, c.frameBytes)
		copy(frame, c.pending[:c.frameBytes])
		c.pending = c.pending[c.frameBytes:]
		frames = append(frames, frame)
	}
	c.mu.Unlock()
	defer c.inflight.Done()

	c.bytes.Add(int64(len(buffer)))

	for _, frame := range frames {
		seq := c.frameSeq.Add(1) - 1
		timestampNS := c.startNS + seq*frameDuration.Nanoseconds()
		if err := c.demux.Deliver(frame, timestampNS); err != nil {
			return 0, err
		}
	}

	return len(buffer), nil
}

// Monitor streams one channel's pcm.Chunk output to a Pulse playback
// sink, for the dashboard's selected-output digit-key routing (spec §6).
type Monitor struct {
	client *pulse.Client
	stream *pulse.PlaybackStream

	sink   chan pcm.Chunk
	stopCh chan struct{}
	once   sync.Once
}

// StartMonitor opens a playback stream to outputDeviceID ("default" for
// the Pulse-reported default sink) and returns the chan<- pcm.Chunk the
// supervisor's playback router installs on the selected pipeline.
func StartMonitor(ctx context.Context, outputDeviceID string, sampleRate int) (*Monitor, chan<- pcm.Chunk, error) {
	client, err := newClient()
	if err != nil {
		return nil, nil, err
	}

	m := &Monitor{
		client: client,
		sink:   make(chan pcm.Chunk, 32),
		stopCh: make(chan struct{}),
	}

	opts := []pulse.PlaybackOption{
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(uint32(sampleRate)),
		pulse.PlaybackMediaName(appName + " monitor"),
	}
	if strings.TrimSpace(outputDeviceID) != "" && strings.ToLower(outputDeviceID) != "default" {
		sink, err := client.SinkByID(outputDeviceID)
		if err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("resolve output device %q: %w", outputDeviceID, err)
		}
		opts = append(opts, pulse.PlaybackSink(sink))
	}

	reader := pulse.NewReader(readerFunc(m.onRead), pulseproto.FormatInt16LE)
	stream, err := client.NewPlayback(reader, opts...)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("create pulse playback stream: %w", err)
	}

	m.stream = stream
	stream.Start()

	go func() {
		<-ctx.Done()
		m.Stop()
	}()

	return m, m.sink, nil
}

// Stop halts the playback stream. Idempotent.
func (m *Monitor) Stop() {
	m.once.Do(func() {
		close(m.stopCh)
		if m.stream != nil {
			m.stream.Stop()
			m.stream.Close()
		}
		if m.client != nil {
			m.client.Close()
		}
	})
}

// onRead drains queued chunks into playback's pull-based buffer; an empty
// sink yields silence rather than blocking the Pulse I/O thread.
func (m *Monitor) onRead(buf []byte) (int, error) {
	select {
	case <-m.stopCh:
		return 0, io.EOF
	default:
	}

	select {
	case chunk := <-m.sink:
		n := copy(buf, int16LEBytes(chunk.Samples))
		return n, nil
	default:
		for i := range buf {
			buf[i] = 0
		}
		return len(buf), nil
	}
}

func int16LEBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) { return f(b) }

// readerFunc adapts a function to io.Reader for pulse.NewReader.
type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(b []byte) (int, error) { return f(b) }

// sourceStateString maps Pulse source/sink state constants to human-
// readable values.
func sourceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// sourceAvailable maps Pulse source port availability to a simple
// boolean.
func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	if len(source.Ports) == 0 {
		return true
	}
	for _, port := range source.Ports {
		if port.Name != source.ActivePortName {
			continue
		}
		// PulseAudio values: unknown=0, no=1, yes=2.
		return port.Available == 0 || port.Available == 2
	}
	return true
}
