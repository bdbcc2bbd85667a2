package config

import "github.com/nappa-audio/dcr-transcribe/internal/buffer"

// Default returns the canonical runtime configuration used when no file
// is present.
func Default() Config {
	return Config{
		Audio: AudioConfig{
			DeviceID:   "default",
			SampleRate: 16000,
			Channels:   1,
		},
		VAD: VADConfig{
			ThresholdDB:                  -40,
			HangoverDurationMS:           500,
			SilenceDisconnectThresholdMS: 5000,
		},
		Buffer: BufferConfig{
			CapacitySeconds: 30,
			DropPolicy:      buffer.DropOldest,
		},
		Transcribe: TranscribeConfig{
			Backend:                 "aws",
			Region:                  "us-east-1",
			LanguageCode:            "en-US",
			SampleRate:              16000,
			MaxRetries:              3,
			TimeoutSeconds:          10,
			ConnectOnStartup:        false,
			SendBufferedOnReconnect: true,
		},
		Whisper: WhisperConfig{
			Model:             "whisper-1",
			SampleRate:        16000,
			ChunkDurationSecs: 10,
		},
		Output: OutputConfig{
			WavOutputDir: "recordings",
			LogLevel:     "info",
		},
		Channels: []ChannelConfig{
			{ID: 0, Name: "channel-0", Enabled: true},
		},
	}
}
