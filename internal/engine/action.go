package engine

import (
	"fmt"
)

// MergeMode controls whether a committed action folds into its predecessor.
type MergeMode int

const (
	// MergeDisable never merges.
	MergeDisable MergeMode = iota
	// MergeEnds keeps the predecessor's undo list and appends the newcomer's
	// do list, so one undo restores the state before the whole run.
	MergeEnds
	// MergeAll overwrites repeated (target, member) writes in place.
	MergeAll
)

func (m MergeMode) String() string {
	switch m {
	case MergeDisable:
		return "disable"
	case MergeEnds:
		return "ends"
	case MergeAll:
		return "all"
	default:
		return fmt.Sprintf("merge(%d)", int(m))
	}
}

// ParseMergeMode accepts "disable", "ends" and "all".
func ParseMergeMode(s string) (MergeMode, error) {
	switch s {
	case "", "disable":
		return MergeDisable, nil
	case "ends", "ends_only":
		return MergeEnds, nil
	case "all":
		return MergeAll, nil
	default:
		return MergeDisable, fmt.Errorf("unknown merge mode %q: must be disable, ends or all", s)
	}
}

func (m MergeMode) valid() bool {
	return m >= MergeDisable && m <= MergeAll
}

// Action is a named, atomic group of forward and inverse operations.
//
// INVARIANTS:
//   - doOps and undoOps only grow while the action is in progress (not sealed)
//   - applied is true iff the action is at or before the history cursor
type Action struct {
	id       string
	name     string
	mode     MergeMode
	doOps    []Operation
	undoOps  []Operation
	lastTick int64
	sealed   bool
	applied  bool
}

func newAction(id, name string, mode MergeMode, tick int64) *Action {
	return &Action{
		id:       id,
		name:     name,
		mode:     mode,
		lastTick: tick,
	}
}

// ID returns the action's stable identity.
func (a *Action) ID() string { return a.id }

// Name returns the display name, which is also the merge key.
func (a *Action) Name() string { return a.name }

// Mode returns the merge mode the action was opened with.
func (a *Action) Mode() MergeMode { return a.mode }

// LastTick returns the tick of the most recent commit folded into this action.
func (a *Action) LastTick() int64 { return a.lastTick }

// DoOps returns a copy of the do list.
func (a *Action) DoOps() []Operation { return append([]Operation(nil), a.doOps...) }

// UndoOps returns a copy of the undo list.
func (a *Action) UndoOps() []Operation { return append([]Operation(nil), a.undoOps...) }

func (a *Action) appendDo(op Operation) error {
	if a.sealed {
		return newError(ErrCodeSealed, "append_do", StateIdle, "action %q is already committed", a.name)
	}
	a.doOps = append(a.doOps, op)
	return nil
}

func (a *Action) appendUndo(op Operation) error {
	if a.sealed {
		return newError(ErrCodeSealed, "append_undo", StateIdle, "action %q is already committed", a.name)
	}
	a.undoOps = append(a.undoOps, op)
	return nil
}

func (a *Action) seal() {
	a.sealed = true
}

func (a *Action) redo(inv *Invoker) Summary {
	return inv.Run(a.doOps, DirDo)
}

func (a *Action) undo(inv *Invoker) Summary {
	return inv.Run(a.undoOps, DirUndo)
}

// canMergeWith reports whether other may fold into a under mode.
// Names are compared bytewise.
func (a *Action) canMergeWith(other *Action, mode MergeMode) bool {
	return a.name == other.name && (mode == MergeEnds || mode == MergeAll)
}

// mergeFrom folds other into a. other is left empty and must be discarded.
func (a *Action) mergeFrom(other *Action, mode MergeMode) {
	switch mode {
	case MergeAll:
		a.mergeAll(other)
	case MergeEnds:
		a.doOps = append(a.doOps, other.doOps...)
		// a's undo list already restores the state before the whole run.
		for _, op := range other.undoOps {
			releaseOp(op)
		}
	}
	a.lastTick = other.lastTick
	other.doOps = nil
	other.undoOps = nil
}

func (a *Action) mergeAll(other *Action) {
	doIndex := make(map[mergeKey]int, len(a.doOps))
	for i, op := range a.doOps {
		if k, ok := keyOf(op); ok {
			if _, seen := doIndex[k]; !seen {
				doIndex[k] = i
			}
		}
	}
	for _, op := range other.doOps {
		if k, ok := keyOf(op); ok {
			if i, found := doIndex[k]; found {
				a.doOps[i] = op
				continue
			}
			doIndex[k] = len(a.doOps)
		}
		a.doOps = append(a.doOps, op)
	}

	undoKeys := make(map[mergeKey]bool, len(a.undoOps))
	for _, op := range a.undoOps {
		if k, ok := keyOf(op); ok {
			undoKeys[k] = true
		}
	}
	for _, op := range other.undoOps {
		if k, ok := keyOf(op); ok && undoKeys[k] {
			// The earlier undo entry already captures the pre-state.
			releaseOp(op)
			continue
		}
		a.undoOps = append(a.undoOps, op)
	}
}

// release drops every reference held by the action's operations.
func (a *Action) release() {
	for _, op := range a.doOps {
		releaseOp(op)
	}
	for _, op := range a.undoOps {
		releaseOp(op)
	}
}
