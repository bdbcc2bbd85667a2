// Package dashboard owns the process-wide per-channel snapshot table
// rendered by the terminal UI: volume, VAD state, connection status,
// bounded transcript history, and the selected monitor-output channel.
// State is reached only through a narrow API (spec §9) so the storage
// strategy behind it — here a single mutex guarding a map — stays an
// implementation detail.
package dashboard

import (
	"sort"
	"sync"
	"time"
)

// ConnectionStatus mirrors the recognizer session's observable state,
// plus an Error state surfaced only for a failed reconnect attempt.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnected
	StatusError
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusConnected:
		return "Connected"
	case StatusError:
		return "Error"
	default:
		return "Disconnected"
	}
}

// historyCap bounds the retained final-transcript history per channel
// (spec §3's dashboard channel state).
const historyCap = 100

// TranscriptLine is one committed final transcript line in a channel's
// bounded history.
type TranscriptLine struct {
	WallClock      time.Time
	ElapsedSeconds float64
	Text           string
}

// ChannelState is a cloneable snapshot of one channel, safe to read
// without further synchronization once returned from Snapshot.
type ChannelState struct {
	ID           int
	Name         string
	LoudnessDB   float64
	ThresholdDB  float64
	VADState     string
	Connection   ConnectionStatus
	History      []TranscriptLine
	PartialText  string
	PartialStart time.Time
}

// Table is the process-wide snapshot store. The zero value is not
// usable; construct with New.
type Table struct {
	mu       sync.Mutex
	channels map[int]*ChannelState

	selectedMu sync.Mutex
	selected   *int
}

// New constructs an empty Table.
func New() *Table {
	return &Table{channels: make(map[int]*ChannelState)}
}

// Register adds a channel with its static display fields. Calling it
// twice for the same id resets that channel's mutable state.
func (t *Table) Register(id int, name string, thresholdDB float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.channels[id] = &ChannelState{
		ID:          id,
		Name:        name,
		ThresholdDB: thresholdDB,
		VADState:    "Silence",
		Connection:  StatusDisconnected,
	}
}

// UpdateChannel applies fn to channel id's state under the table lock.
// fn must not retain the pointer past its call. A no-op if id is not
// registered.
func (t *Table) UpdateChannel(id int, fn func(*ChannelState)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.channels[id]
	if !ok {
		return
	}
	fn(state)
}

// PushFinal appends a final transcript line to channel id's history,
// evicting the oldest entry once historyCap is exceeded, and clears any
// partial overlay.
func (t *Table) PushFinal(id int, line TranscriptLine) {
	t.UpdateChannel(id, func(s *ChannelState) {
		s.History = append(s.History, line)
		if len(s.History) > historyCap {
			s.History = s.History[len(s.History)-historyCap:]
		}
		s.PartialText = ""
	})
}

// SetPartial overwrites channel id's partial overlay with the latest
// partial text, per spec §3 ("overwritten on each new partial").
func (t *Table) SetPartial(id int, text string, at time.Time) {
	t.UpdateChannel(id, func(s *ChannelState) {
		s.PartialText = text
		s.PartialStart = at
	})
}

// Snapshot returns a copy of channel id's current state.
func (t *Table) Snapshot(id int) (ChannelState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.channels[id]
	if !ok {
		return ChannelState{}, false
	}
	return cloneState(state), true
}

// AllSnapshots returns copies of every registered channel's state,
// ordered by channel id.
func (t *Table) AllSnapshots() []ChannelState {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]int, 0, len(t.channels))
	for id := range t.channels {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]ChannelState, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneState(t.channels[id]))
	}
	return out
}

func cloneState(s *ChannelState) ChannelState {
	out := *s
	out.History = append([]TranscriptLine(nil), s.History...)
	return out
}

// SetSelectedOutput installs id as the monitor-output target.
func (t *Table) SetSelectedOutput(id int) {
	t.selectedMu.Lock()
	defer t.selectedMu.Unlock()
	v := id
	t.selected = &v
}

// ClearSelectedOutput removes any monitor-output target.
func (t *Table) ClearSelectedOutput() {
	t.selectedMu.Lock()
	defer t.selectedMu.Unlock()
	t.selected = nil
}

// GetSelectedChannelForOutput returns the currently selected channel id,
// if any.
func (t *Table) GetSelectedChannelForOutput() (int, bool) {
	t.selectedMu.Lock()
	defer t.selectedMu.Unlock()
	if t.selected == nil {
		return 0, false
	}
	return *t.selected, true
}
