// Package config resolves, parses, validates, and defaults dcr-transcribe
// configuration (spec §6).
package config

import "github.com/nappa-audio/dcr-transcribe/internal/buffer"

// Config is the fully materialized runtime configuration.
type Config struct {
	Audio      AudioConfig
	VAD        VADConfig
	Buffer     BufferConfig
	Transcribe TranscribeConfig
	Whisper    WhisperConfig
	Output     OutputConfig
	Channels   []ChannelConfig
}

// AudioConfig selects the capture device and its native format.
type AudioConfig struct {
	DeviceID       string
	SampleRate     int
	Channels       int
	OutputDeviceID string
}

// VADConfig controls the per-channel voice activity detector.
type VADConfig struct {
	ThresholdDB                  float64
	HangoverDurationMS           int
	SilenceDisconnectThresholdMS float64
}

// BufferConfig controls the per-channel retry buffer.
type BufferConfig struct {
	CapacitySeconds float64
	DropPolicy      buffer.DropPolicy
}

// TranscribeConfig selects the recognizer backend and its session
// parameters, shared by every channel.
type TranscribeConfig struct {
	Backend                 string
	Region                  string
	LanguageCode            string
	SampleRate              int
	MaxRetries              int
	TimeoutSeconds          int
	ConnectOnStartup        bool
	SendBufferedOnReconnect bool
}

// WhisperConfig holds the Whisper-specific parameters, read only when
// Transcribe.Backend == "whisper".
type WhisperConfig struct {
	APIKey            string
	Model             string
	Language          string
	SampleRate        int
	ChunkDurationSecs float64
}

// OutputConfig controls where wave files and logs are written.
type OutputConfig struct {
	WavOutputDir string
	LogLevel     string
}

// ChannelConfig is one entry of channels[].
type ChannelConfig struct {
	ID      int
	Name    string
	Enabled bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Message string
}
