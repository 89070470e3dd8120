package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/rewind/internal/engine"
	"github.com/roach88/rewind/internal/object"
	"github.com/roach88/rewind/internal/value"
)

// Recorder turns engine notifications into journal entries.
//
// Method and property notifications are buffered until the step that
// produced them completes, then written together with the step.
type Recorder struct {
	store   *Store
	logger  *slog.Logger
	pending []Change
	err     error
}

// NewRecorder creates a recorder writing to s.
func NewRecorder(s *Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: s, logger: logger}
}

// Attach installs the recorder in the property, method and version
// observer slots of e. An entry is written on every version change, so a
// ClearHistory(false) is not journaled. The commit slot stays free for the
// host.
func (r *Recorder) Attach(e *engine.Engine) error {
	if err := e.SetPropertyObserver(func(_ any, target object.Handle, property string, v value.Value) {
		r.Property(target, property, v)
	}, nil); err != nil {
		return err
	}
	if err := e.SetMethodObserver(func(_ any, target object.Handle, method string, args [engine.MaxObserverArgs]value.Value) {
		r.Method(target, method, args)
	}, nil); err != nil {
		return err
	}
	return e.SetVersionObserver(func(_ any, _ uint64) {
		r.Step(e.LastOp())
	}, nil)
}

// Property buffers a property assignment.
func (r *Recorder) Property(target object.Handle, property string, v value.Value) {
	r.pending = append(r.pending, Change{
		Kind:    ChangeProperty,
		Target:  uint64(target),
		Member:  property,
		Payload: value.Clone(v),
	})
}

// Method buffers a method call with every observed argument position.
// Padding and a genuine trailing nil look the same to an observer, so
// nothing is trimmed.
func (r *Recorder) Method(target object.Handle, method string, args [engine.MaxObserverArgs]value.Value) {
	payload := make(value.Array, len(args))
	for i, a := range args {
		payload[i] = value.Clone(a)
	}
	r.pending = append(r.pending, Change{
		Kind:    ChangeMethod,
		Target:  uint64(target),
		Member:  method,
		Payload: payload,
	})
}

// Step writes op with the buffered changes. Write failures are logged and
// kept; the first one is returned by Err.
func (r *Recorder) Step(op engine.Op) {
	changes := r.pending
	r.pending = nil

	kind, err := entryKind(op.Event)
	if err != nil {
		r.fail(err)
		return
	}

	for i := range changes {
		changes[i].Ordinal = i
	}
	entry := Entry{
		Kind:       kind,
		ActionID:   op.ActionID,
		ActionName: op.ActionName,
		Version:    op.Version,
		Merged:     op.Merged,
		Applied:    op.Summary.Applied,
		Skipped:    op.Summary.Skipped,
		Failed:     op.Summary.Failed,
		Changes:    changes,
	}

	seq, err := r.store.AppendEntry(context.Background(), entry)
	if err != nil {
		r.fail(err)
		return
	}
	r.logger.Debug("audit entry written",
		"seq", seq,
		"kind", kind,
		"action", op.ActionName,
		"changes", len(changes),
	)
}

// Err returns the first write failure, or nil.
func (r *Recorder) Err() error {
	return r.err
}

func (r *Recorder) fail(err error) {
	r.logger.Error("audit write failed", "error", err)
	if r.err == nil {
		r.err = err
	}
}

func entryKind(ev engine.Event) (string, error) {
	switch ev {
	case engine.EventCommit:
		return KindCommit, nil
	case engine.EventUndo:
		return KindUndo, nil
	case engine.EventRedo:
		return KindRedo, nil
	case engine.EventClear:
		return KindClear, nil
	default:
		return "", fmt.Errorf("no journal kind for event %s", ev)
	}
}
