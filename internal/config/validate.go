package config

import (
	"fmt"
	"strings"

	"github.com/nappa-audio/dcr-transcribe/internal/buffer"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.Audio.DeviceID) == "" {
		return nil, fmt.Errorf("audio.device_id must not be empty")
	}
	if cfg.Audio.SampleRate <= 0 {
		return nil, fmt.Errorf("audio.sample_rate must be > 0")
	}
	if cfg.Audio.Channels <= 0 {
		return nil, fmt.Errorf("audio.channels must be > 0")
	}

	if cfg.VAD.HangoverDurationMS < 0 {
		return nil, fmt.Errorf("vad.hangover_duration_ms must be >= 0")
	}
	if cfg.VAD.SilenceDisconnectThresholdMS <= 0 {
		return nil, fmt.Errorf("vad.silence_disconnect_threshold_ms must be > 0")
	}

	if cfg.Buffer.CapacitySeconds <= 0 {
		return nil, fmt.Errorf("buffer.capacity_seconds must be > 0")
	}
	if cfg.Buffer.DropPolicy == buffer.Block {
		warnings = append(warnings, Warning{Message: "buffer.drop_policy=block is not honored on the real-time path; using drop_oldest"})
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Transcribe.Backend))
	if backend == "" {
		return nil, fmt.Errorf("transcribe.backend must not be empty")
	}
	if backend != "aws" && backend != "whisper" {
		return nil, fmt.Errorf("transcribe.backend must be one of: aws, whisper")
	}
	if strings.TrimSpace(cfg.Transcribe.LanguageCode) == "" {
		return nil, fmt.Errorf("transcribe.language_code must not be empty")
	}
	if cfg.Transcribe.SampleRate <= 0 {
		return nil, fmt.Errorf("transcribe.sample_rate must be > 0")
	}
	if cfg.Transcribe.MaxRetries < 0 {
		return nil, fmt.Errorf("transcribe.max_retries must be >= 0")
	}
	if cfg.Transcribe.TimeoutSeconds <= 0 {
		return nil, fmt.Errorf("transcribe.timeout_seconds must be > 0")
	}
	if backend == "aws" && strings.TrimSpace(cfg.Transcribe.Region) == "" {
		return nil, fmt.Errorf("transcribe.region must not be empty when transcribe.backend=aws")
	}

	if backend == "whisper" {
		if strings.TrimSpace(cfg.Whisper.APIKey) == "" {
			return nil, fmt.Errorf("whisper.api_key must not be empty when transcribe.backend=whisper")
		}
		if strings.TrimSpace(cfg.Whisper.Model) == "" {
			return nil, fmt.Errorf("whisper.model must not be empty when transcribe.backend=whisper")
		}
		if cfg.Whisper.SampleRate <= 0 {
			return nil, fmt.Errorf("whisper.sample_rate must be > 0")
		}
		if cfg.Whisper.ChunkDurationSecs <= 0 {
			return nil, fmt.Errorf("whisper.chunk_duration_secs must be > 0")
		}
	}

	if strings.TrimSpace(cfg.Output.WavOutputDir) == "" {
		return nil, fmt.Errorf("output.wav_output_dir must not be empty")
	}
	if strings.TrimSpace(cfg.Output.LogLevel) == "" {
		return nil, fmt.Errorf("output.log_level must not be empty")
	}

	if len(cfg.Channels) == 0 {
		return nil, fmt.Errorf("channels must contain at least one entry")
	}
	seen := make(map[int]bool, len(cfg.Channels))
	anyEnabled := false
	for _, ch := range cfg.Channels {
		if strings.TrimSpace(ch.Name) == "" {
			return nil, fmt.Errorf("channels[%d].name must not be empty", ch.ID)
		}
		if seen[ch.ID] {
			return nil, fmt.Errorf("channels[%d].id is duplicated", ch.ID)
		}
		seen[ch.ID] = true
		anyEnabled = anyEnabled || ch.Enabled
	}
	if !anyEnabled {
		warnings = append(warnings, Warning{Message: "no channel is enabled"})
	}

	return warnings, nil
}
