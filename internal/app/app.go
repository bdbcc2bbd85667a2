// Package app wires parsed CLI arguments into a running dcr-transcribe
// process: config, logging, audio capture/monitor, the demultiplexer,
// and the per-channel pipeline supervisor (spec §6).
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/openai/openai-go/option"

	"github.com/nappa-audio/dcr-transcribe/internal/audio"
	"github.com/nappa-audio/dcr-transcribe/internal/cli"
	"github.com/nappa-audio/dcr-transcribe/internal/config"
	"github.com/nappa-audio/dcr-transcribe/internal/dashboard"
	"github.com/nappa-audio/dcr-transcribe/internal/demux"
	"github.com/nappa-audio/dcr-transcribe/internal/logging"
	"github.com/nappa-audio/dcr-transcribe/internal/pcm"
	"github.com/nappa-audio/dcr-transcribe/internal/pipeline"
	"github.com/nappa-audio/dcr-transcribe/internal/recognizer"
	"github.com/nappa-audio/dcr-transcribe/internal/recognizer/awsbackend"
	"github.com/nappa-audio/dcr-transcribe/internal/recognizer/whisperbackend"
	"github.com/nappa-audio/dcr-transcribe/internal/tui"
	"github.com/nappa-audio/dcr-transcribe/internal/version"
)

// Runner holds process-level dependencies used by command handlers.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// Execute is the package entrypoint used by cmd/dcr-transcribe/main.go.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

// Execute parses CLI arguments and dispatches to the matching one-shot
// command or the long-running dashboard.
func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("dcr-transcribe"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("dcr-transcribe"))
		return 0
	}

	if parsed.GenerateConfig {
		if err := config.GenerateDefault(parsed.GenerateConfigPath); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintf(r.Stdout, "wrote default config to %s\n", parsed.GenerateConfigPath)
		return 0
	}

	if parsed.ShowInterfaces {
		return r.commandShowInterfaces(ctx)
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		fmt.Fprintf(r.Stderr, "warning: %s\n", w.Message)
	}

	logRuntime, err := logging.New(cfgLoaded.Config.Output.WavOutputDir, cfgLoaded.Config.Output.LogLevel)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}
	logger.Info("dcr-transcribe starting",
		"version", version.String(),
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	return r.commandRun(ctx, cfgLoaded.Config, logger)
}

// commandShowInterfaces prints discovered input and output devices.
func (r Runner) commandShowInterfaces(ctx context.Context) int {
	inputs, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintln(r.Stdout, "input devices:")
	for _, d := range inputs {
		printDeviceLine(r.Stdout, d)
	}

	outputs, err := audio.ListOutputDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintln(r.Stdout, "output devices:")
	for _, d := range outputs {
		printDeviceLine(r.Stdout, d)
	}
	return 0
}

func printDeviceLine(w io.Writer, d audio.Device) {
	defaultMark := " "
	if d.Default {
		defaultMark = "*"
	}
	fmt.Fprintf(w, "%s id=%s | description=%q | sample_rate=%d | channels=%d | state=%s\n",
		defaultMark, d.ID, d.Description, d.SampleRate, d.Channels, d.State)
}

// commandRun builds the audio, demultiplexer, and per-channel pipelines
// and drives them until ctx is canceled (SIGINT per cmd/dcr-transcribe).
func (r Runner) commandRun(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	if err := os.MkdirAll(cfg.Output.WavOutputDir, 0o755); err != nil {
		fmt.Fprintf(r.Stderr, "error: create output dir: %v\n", err)
		return 1
	}

	backend, err := buildBackend(cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	selected, err := audio.SelectDevice(ctx, cfg.Audio.DeviceID)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: select input device: %v\n", err)
		return 1
	}
	if selected.Warning != "" {
		fmt.Fprintf(r.Stderr, "warning: %s\n", selected.Warning)
		logger.Warn("input device fallback", "warning", selected.Warning)
	}

	dash := dashboard.New()
	sv := pipeline.NewSupervisor(dash, logger)
	for _, ch := range cfg.Channels {
		if !ch.Enabled {
			continue
		}
		sv.AddChannel(pipeline.Config{
			ChannelID:                    ch.ID,
			ChannelName:                  ch.Name,
			SampleRate:                   cfg.Audio.SampleRate,
			ThresholdDB:                  cfg.VAD.ThresholdDB,
			HangoverDurationMS:           cfg.VAD.HangoverDurationMS,
			SilenceDisconnectThresholdMS: cfg.VAD.SilenceDisconnectThresholdMS,
			BufferCapacitySeconds:        cfg.Buffer.CapacitySeconds,
			BufferDropPolicy:             cfg.Buffer.DropPolicy,
			ConnectOnStartup:             cfg.Transcribe.ConnectOnStartup,
			SendBufferedOnReconnect:      cfg.Transcribe.SendBufferedOnReconnect,
			WavOutputDir:                 cfg.Output.WavOutputDir,
			Recognizer: recognizer.SessionConfig{
				SampleRate:        cfg.Transcribe.SampleRate,
				Encoding:          "pcm16",
				LanguageCode:      cfg.Transcribe.LanguageCode,
				ChunkDurationSecs: cfg.Whisper.ChunkDurationSecs,
				DialTimeout:       time.Duration(cfg.Transcribe.TimeoutSeconds) * time.Second,
			},
		}, backend)
	}

	dmx, err := demux.New(pcm.FormatInt16, cfg.Audio.SampleRate, sv.Sinks())
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: build demultiplexer: %v\n", err)
		return 1
	}

	capture, err := audio.StartCapture(ctx, selected.Device, cfg.Audio.SampleRate, cfg.Audio.Channels, dmx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: start capture: %v\n", err)
		return 1
	}
	defer capture.Close()

	monitor, monitorSink, err := audio.StartMonitor(ctx, cfg.Audio.OutputDeviceID, cfg.Audio.SampleRate)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: start monitor: %v\n", err)
		return 1
	}
	defer monitor.Stop()

	if err := sv.Start(ctx); err != nil {
		fmt.Fprintf(r.Stderr, "error: start pipelines: %v\n", err)
		return 1
	}
	defer sv.Shutdown()

	go sv.RunPlaybackRouter(ctx, monitorSink)

	logger.Info("dcr-transcribe running", "device", selected.Device.ID, "channels", len(cfg.Channels))

	tui.Run(ctx, dash, len(cfg.Channels), r.Stdout)

	logger.Info("dcr-transcribe shutting down", "bytes_captured", capture.BytesCaptured())
	return 0
}

// buildBackend selects the upstream recognizer binding named by
// cfg.Transcribe.Backend (spec §6).
func buildBackend(cfg config.Config, logger *slog.Logger) (recognizer.Backend, error) {
	switch cfg.Transcribe.Backend {
	case "aws":
		sess, err := session.NewSession(aws.NewConfig().WithRegion(cfg.Transcribe.Region))
		if err != nil {
			return nil, fmt.Errorf("build aws session: %w", err)
		}
		return awsbackend.New(sess, awsbackend.Config{Region: cfg.Transcribe.Region}, logger), nil
	case "whisper":
		if cfg.Whisper.APIKey == "" {
			return nil, fmt.Errorf("whisper backend selected but whisper.api_key is empty")
		}
		return whisperbackend.New(
			whisperbackend.Config{Model: cfg.Whisper.Model, Language: cfg.Whisper.Language},
			logger,
			option.WithAPIKey(cfg.Whisper.APIKey),
		), nil
	default:
		return nil, fmt.Errorf("unknown transcribe.backend %q", cfg.Transcribe.Backend)
	}
}
