package engine

import (
	"fmt"
)

// DefaultMaxSteps is the default bound on retained actions.
const DefaultMaxSteps = 1000

// DefaultMergeWindowMillis is the default window, in ticks, within which a
// same-named action may merge into its predecessor.
const DefaultMergeWindowMillis = 800

// History is the linear list of committed actions and the cursor into it.
//
// cursor is the index of the most recently applied action; -1 means nothing
// is applied. maxSteps of 0 means unbounded. mergeWindow of 0 means merging
// is not time-gated.
type History struct {
	actions     []*Action
	cursor      int
	version     *Clock
	maxSteps    int
	mergeWindow int64
}

// pushResult reports what push did to the history.
type pushResult struct {
	merged    bool
	truncated int
	evicted   int
}

func newHistory(maxSteps int, mergeWindow int64) *History {
	return &History{
		cursor:      -1,
		version:     NewClockAt(1),
		maxSteps:    maxSteps,
		mergeWindow: mergeWindow,
	}
}

// push commits a, merging it into the current action when allowed.
func (h *History) push(a *Action) pushResult {
	var res pushResult
	res.truncated = h.discardRedo()

	if h.cursor >= 0 {
		prev := h.actions[h.cursor]
		if prev.canMergeWith(a, a.mode) && h.withinWindow(prev, a) {
			prev.mergeFrom(a, a.mode)
			res.merged = true
			h.version.Next()
			return res
		}
	}

	a.applied = true
	h.actions = append(h.actions, a)
	h.cursor = len(h.actions) - 1

	for h.maxSteps > 0 && len(h.actions) > h.maxSteps {
		h.evictFront()
		res.evicted++
	}

	h.version.Next()
	return res
}

func (h *History) withinWindow(prev, next *Action) bool {
	if h.mergeWindow <= 0 {
		return true
	}
	return next.lastTick-prev.lastTick < h.mergeWindow
}

// discardRedo destroys the reverted tail after the cursor.
func (h *History) discardRedo() int {
	tail := h.actions[h.cursor+1:]
	for _, a := range tail {
		a.release()
	}
	n := len(tail)
	clear(tail)
	h.actions = h.actions[:h.cursor+1]
	return n
}

// evictFront destroys the oldest action and shifts the cursor so it still
// names the same action.
func (h *History) evictFront() {
	h.actions[0].release()
	h.actions[0] = nil
	h.actions = h.actions[1:]
	if h.cursor >= 0 {
		h.cursor--
	}
}

// peekBack returns the action an undo would revert, or nil.
func (h *History) peekBack() *Action {
	if h.cursor < 0 {
		return nil
	}
	return h.actions[h.cursor]
}

// stepBack returns the action at the cursor and moves the cursor back.
// Returns nil and leaves the version unchanged when nothing is applied.
func (h *History) stepBack() *Action {
	if h.cursor < 0 {
		return nil
	}
	a := h.actions[h.cursor]
	a.applied = false
	h.cursor--
	h.version.Next()
	return a
}

// stepForward advances the cursor and returns the action now applied.
// Returns nil and leaves the version unchanged when nothing is reverted.
func (h *History) stepForward() *Action {
	if h.cursor+1 >= len(h.actions) {
		return nil
	}
	h.cursor++
	a := h.actions[h.cursor]
	a.applied = true
	h.version.Next()
	return a
}

// clear destroys every action. It returns the number destroyed.
func (h *History) clear(bumpVersion bool) int {
	n := len(h.actions)
	for _, a := range h.actions {
		a.release()
	}
	h.actions = nil
	h.cursor = -1
	if bumpVersion {
		h.version.Next()
	}
	return n
}

func (h *History) currentName() string {
	if h.cursor < 0 || h.cursor >= len(h.actions) {
		return ""
	}
	return h.actions[h.cursor].name
}

func (h *History) hasUndo() bool { return h.cursor >= 0 }
func (h *History) hasRedo() bool { return h.cursor+1 < len(h.actions) }
func (h *History) len() int      { return len(h.actions) }

// Version returns the monotonic version counter.
func (h *History) Version() uint64 { return h.version.Current() }

func (h *History) names() []string {
	names := make([]string, len(h.actions))
	for i, a := range h.actions {
		names[i] = a.name
	}
	return names
}

// checkInvariants verifies cursor bounds and the applied/reverted split.
func (h *History) checkInvariants() error {
	if h.cursor < -1 || h.cursor >= len(h.actions) {
		return fmt.Errorf("cursor %d out of bounds for %d actions", h.cursor, len(h.actions))
	}
	for i, a := range h.actions {
		if a == nil {
			return fmt.Errorf("action %d is nil", i)
		}
		if want := i <= h.cursor; a.applied != want {
			return fmt.Errorf("action %d (%q) applied=%t, cursor=%d", i, a.name, a.applied, h.cursor)
		}
	}
	return nil
}
