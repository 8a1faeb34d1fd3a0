package analysis

import (
	"fmt"
	"strings"
	"sync"
)

// DefaultWindowEntries is the sliding-window depth of retained analyses.
const DefaultWindowEntries = 10

// DefaultWindowBytes is the serialized-size budget of the window.
const DefaultWindowBytes = 4096

// Window is a bounded, time-ordered buffer of past frame analyses. It gives
// the model temporal memory: each entry serializes to one summary line that
// travels with the next request.
//
// Eviction drops oldest entries first until both the count ceiling and the
// byte budget hold. Entries tied to an open investigation are exempt from
// byte-budget eviction but still count against the hard ceiling. The newest
// entry is never evicted.
type Window struct {
	mu         sync.Mutex
	maxEntries int
	maxBytes   int
	entries    []windowEntry
	open       map[string]struct{}
}

type windowEntry struct {
	investigationID string
	line            string
}

// NewWindow creates a window with the given ceilings. Non-positive values
// fall back to the defaults.
func NewWindow(maxEntries, maxBytes int) *Window {
	if maxEntries <= 0 {
		maxEntries = DefaultWindowEntries
	}
	if maxBytes <= 0 {
		maxBytes = DefaultWindowBytes
	}
	return &Window{
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		open:       make(map[string]struct{}),
	}
}

// Append records one normalized analysis and prunes synchronously.
// investigationID may be empty for frames outside any investigation.
func (w *Window) Append(a FrameAnalysis, investigationID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.entries = append(w.entries, windowEntry{
		investigationID: investigationID,
		line:            summaryLine(a),
	})
	w.pruneLocked()
}

// Prune applies the eviction policy. Idempotent: pruning twice without an
// intervening append leaves the buffer unchanged.
func (w *Window) Prune() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked()
}

func (w *Window) pruneLocked() {
	// Hard count ceiling applies to everything, open investigations included.
	if excess := len(w.entries) - w.maxEntries; excess > 0 {
		w.entries = append([]windowEntry(nil), w.entries[excess:]...)
	}

	// Byte budget: evict oldest non-exempt entries, never the newest.
	for w.serializedLenLocked() > w.maxBytes {
		evicted := false
		for i := 0; i < len(w.entries)-1; i++ {
			if _, exempt := w.open[w.entries[i].investigationID]; exempt && w.entries[i].investigationID != "" {
				continue
			}
			w.entries = append(w.entries[:i:i], w.entries[i+1:]...)
			evicted = true
			break
		}
		if !evicted {
			return
		}
	}
}

func (w *Window) serializedLenLocked() int {
	n := 0
	for i, e := range w.entries {
		if i > 0 {
			n++ // newline
		}
		n += len(e.line)
	}
	return n
}

// Serialize returns the newline-separated history of recent detections, or
// empty when no history exists.
func (w *Window) Serialize() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.entries) == 0 {
		return ""
	}
	lines := make([]string, len(w.entries))
	for i, e := range w.entries {
		lines[i] = e.line
	}
	return strings.Join(lines, "\n")
}

// Len returns the number of retained entries.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// MarkOpen flags an investigation as unresolved, exempting its entries from
// byte-budget eviction.
func (w *Window) MarkOpen(investigationID string) {
	if investigationID == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.open[investigationID] = struct{}{}
}

// MarkClosed lifts the eviction exemption for an investigation.
func (w *Window) MarkClosed(investigationID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.open, investigationID)
}

// Reset clears the window entirely.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = nil
	w.open = make(map[string]struct{})
}

func summaryLine(a FrameAnalysis) string {
	return fmt.Sprintf("Frame %d: %s (%s, %d%% conf)", a.FrameNumber, a.Category, a.Severity, a.Confidence)
}
