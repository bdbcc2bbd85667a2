// Package tui renders the live per-channel dashboard to the terminal:
// one panel per channel (volume gauge, VAD/connection status, recent
// transcripts) refreshed on a tick, plus raw-mode key handling for
// output routing and quit confirmation (spec §6).
package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	xterm "github.com/charmbracelet/x/term"

	"github.com/nappa-audio/dcr-transcribe/internal/dashboard"
)

// pollInterval matches the original dashboard's redraw/input-poll cadence.
const pollInterval = 200 * time.Millisecond

const (
	minDB = -60.0
	maxDB = 0.0
)

var (
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).Width(40)
	titleStyle  = lipgloss.NewStyle().Bold(true)
	voiceStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	silenceSty  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	connOKStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	connErrSty  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	timeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	confirmSty  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
)

// Run drives the dashboard loop until ctx is canceled or the user quits
// (q/Esc then y, or Ctrl-C to force-exit immediately). stdin is read in
// raw mode when it is a terminal; otherwise keys are ignored and Run
// only returns on ctx cancellation.
func Run(ctx context.Context, dash *dashboard.Table, channelCount int, out io.Writer) {
	keys, restore := startKeyReader()
	defer restore()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	confirming := false
	render(out, dash, confirming)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			render(out, dash, confirming)
		case b, ok := <-keys:
			if !ok {
				keys = nil
				continue
			}
			switch {
			case b == 0x03: // Ctrl-C
				return
			case confirming && (b == 'y' || b == 'Y'):
				return
			case confirming:
				confirming = false
			case b == 'q' || b == 27: // 'q' or Esc
				confirming = true
			default:
				if digit, ok := digitChannel(b); ok {
					toggleOutput(dash, digit)
				}
			}
			render(out, dash, confirming)
		}
	}
}

// digitChannel maps '1'-'9' to channel ids 0-8.
func digitChannel(b byte) (int, bool) {
	if b < '1' || b > '9' {
		return 0, false
	}
	return int(b - '1'), true
}

// toggleOutput selects id as the monitor-output channel, or clears the
// selection if id is already selected (spec §6's digit-key toggle).
func toggleOutput(dash *dashboard.Table, id int) {
	if current, ok := dash.GetSelectedChannelForOutput(); ok && current == id {
		dash.ClearSelectedOutput()
		return
	}
	dash.SetSelectedOutput(id)
}

// startKeyReader puts stdin into raw mode, if it is a terminal, and
// returns a channel of raw bytes plus a restore function. When stdin is
// not a terminal the returned channel is nil and restore is a no-op.
func startKeyReader() (<-chan byte, func()) {
	fd := int(os.Stdin.Fd())
	if !xterm.IsTerminal(fd) {
		return nil, func() {}
	}

	prevState, err := xterm.MakeRaw(fd)
	if err != nil {
		return nil, func() {}
	}

	out := make(chan byte, 16)
	reader := bufio.NewReader(os.Stdin)
	go func() {
		defer close(out)
		for {
			b, err := reader.ReadByte()
			if err != nil {
				return
			}
			out <- b
		}
	}()

	return out, func() { _ = xterm.Restore(fd, prevState) }
}

// render redraws every channel panel in channel-id order, clearing the
// screen first so the dashboard reads as a live view rather than a log.
func render(out io.Writer, dash *dashboard.Table, confirming bool) {
	snapshots := dash.AllSnapshots()
	panels := make([]string, len(snapshots))
	selected, _ := dash.GetSelectedChannelForOutput()
	for i, snap := range snapshots {
		panels[i] = renderPanel(snap, selected == snap.ID)
	}

	fmt.Fprint(out, "\x1b[2J\x1b[H")
	fmt.Fprintln(out, lipgloss.JoinHorizontal(lipgloss.Top, panels...))
	if confirming {
		fmt.Fprintln(out, confirmSty.Render("Quit dcr-transcribe? (y to confirm, any other key to cancel)"))
	}
}

func renderPanel(s dashboard.ChannelState, isMonitorOutput bool) string {
	var b strings.Builder

	title := fmt.Sprintf("Channel %d - %s", s.ID, s.Name)
	if isMonitorOutput {
		title += " [monitor]"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(renderGauge(s.LoudnessDB, s.ThresholdDB))
	b.WriteString("\n")
	b.WriteString(renderStatus(s))
	b.WriteString("\n\n")

	for i := len(s.History) - 1; i >= 0; i-- {
		line := s.History[i]
		b.WriteString(timeStyle.Render("[" + line.WallClock.Format("15:04") + "] "))
		b.WriteString(line.Text)
		b.WriteString("\n")
	}
	if s.PartialText != "" {
		b.WriteString(silenceSty.Render("… " + s.PartialText))
	}

	return panelStyle.Render(b.String())
}

func renderGauge(loudnessDB, thresholdDB float64) string {
	const width = 30
	ratio := dbToRatio(loudnessDB)
	filled := int(ratio * float64(width))
	markPos := int(dbToRatio(thresholdDB) * float64(width))

	bar := make([]byte, width)
	for i := range bar {
		switch {
		case i == markPos:
			bar[i] = '|'
		case i < filled:
			bar[i] = '#'
		default:
			bar[i] = '-'
		}
	}
	return fmt.Sprintf("[%s] %.1f dB (threshold %.1f dB)", string(bar), loudnessDB, thresholdDB)
}

func dbToRatio(db float64) float64 {
	if db < minDB {
		db = minDB
	}
	if db > maxDB {
		db = maxDB
	}
	return (db - minDB) / (maxDB - minDB)
}

func renderStatus(s dashboard.ChannelState) string {
	vad := silenceSty.Render("silence")
	if s.VADState == "Voice" {
		vad = voiceStyle.Render("voice")
	}

	conn := connErrSty.Render(s.Connection.String())
	if s.Connection == dashboard.StatusConnected {
		conn = connOKStyle.Render(s.Connection.String())
	}

	return fmt.Sprintf("VAD: %s  Transcribe: %s", vad, conn)
}
