package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nappa-audio/dcr-transcribe/internal/dashboard"
	"github.com/nappa-audio/dcr-transcribe/internal/demux"
	"github.com/nappa-audio/dcr-transcribe/internal/pcm"
	"github.com/nappa-audio/dcr-transcribe/internal/recognizer"
)

// Supervisor enumerates the configured channels, creates their
// pipelines, wires the demultiplexer's sink set in channel-id order, and
// owns the playback router and shutdown flag (spec §4.6).
type Supervisor struct {
	logger *slog.Logger
	dash   *dashboard.Table

	pipelines map[int]*Pipeline
	order     []int

	shuttingDown atomic.Bool
}

// NewSupervisor constructs an empty Supervisor; channels are added with
// AddChannel before Start.
func NewSupervisor(dash *dashboard.Table, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{logger: logger, dash: dash, pipelines: make(map[int]*Pipeline)}
}

// AddChannel constructs and registers one channel's pipeline. Must be
// called for every enabled channel before Start.
func (sv *Supervisor) AddChannel(cfg Config, backend recognizer.Backend) *Pipeline {
	p := New(cfg, backend, sv.dash, sv.logger)
	sv.pipelines[cfg.ChannelID] = p
	sv.order = append(sv.order, cfg.ChannelID)
	sort.Ints(sv.order)
	return p
}

// Sinks returns the demultiplexer sink list in channel-id order, the
// exact shape demux.New requires as its sinks argument.
func (sv *Supervisor) Sinks() []demux.Sink {
	out := make([]demux.Sink, len(sv.order))
	for i, id := range sv.order {
		out[i] = sv.pipelines[id].In
	}
	return out
}

// Start starts every registered pipeline concurrently — each Start opens
// a wave file and, for connect_on_startup channels, dials the
// recognizer backend, so channels need not wait on one another's I/O —
// and returns the first error, if any. Every pipeline runs under ctx
// itself, so its processor loop keeps running after Start returns; one
// channel's failure does not cancel the others' startup.
func (sv *Supervisor) Start(ctx context.Context) error {
	var eg errgroup.Group
	for _, id := range sv.order {
		p := sv.pipelines[id]
		eg.Go(func() error {
			if err := p.Start(ctx); err != nil {
				return fmt.Errorf("start channel %d pipeline: %w", p.cfg.ChannelID, err)
			}
			return nil
		})
	}
	return eg.Wait()
}

// playbackRouterPollInterval bounds how promptly a change to the
// dashboard's selected-output field is reflected in monitor routing.
const playbackRouterPollInterval = 50 * time.Millisecond

// RunPlaybackRouter watches the dashboard's selected-output field and,
// on change, atomically clears the monitor sender on the previously
// selected pipeline and installs it on the newly selected one. It blocks
// until ctx is done or Shutdown has been called; run it in its own
// goroutine.
func (sv *Supervisor) RunPlaybackRouter(ctx context.Context, monitorSink chan<- pcm.Chunk) {
	const none = -1
	current := none

	for {
		if sv.shuttingDown.Load() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(playbackRouterPollInterval):
		}

		selected := none
		if id, ok := sv.dash.GetSelectedChannelForOutput(); ok {
			selected = id
		}
		if selected == current {
			continue
		}
		if current != none {
			if p, ok := sv.pipelines[current]; ok {
				p.ClearMonitor()
			}
		}
		if selected != none {
			if p, ok := sv.pipelines[selected]; ok {
				p.SetMonitor(monitorSink)
			}
		}
		current = selected
	}
}

// Shutdown sets the shutdown flag observed by RunPlaybackRouter and
// stops every pipeline, in channel-id order, finalizing their wave
// files.
func (sv *Supervisor) Shutdown() {
	sv.shuttingDown.Store(true)
	for _, id := range sv.order {
		sv.pipelines[id].Stop()
	}
}
