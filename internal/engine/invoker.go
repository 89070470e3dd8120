package engine

import (
	"fmt"
	"log/slog"

	"github.com/roach88/rewind/internal/object"
)

// Invoker executes operation lists against the host registry.
//
// It never panics outward: a host panic inside one operation is recovered
// and reported as a failure, and the remaining operations still run so an
// undo list recovers as much state as it can.
type Invoker struct {
	registry  object.Registry
	observers *Observers
	logger    *slog.Logger
}

// NewInvoker creates an invoker. observers may be nil.
func NewInvoker(reg object.Registry, observers *Observers, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{registry: reg, observers: observers, logger: logger}
}

// Run executes ops in stored order for DirDo and in reverse order for DirUndo.
//
// Each undo entry was recorded as the inverse of the do entry at the same
// position, so reversing keeps non-commuting operations correct.
func (inv *Invoker) Run(ops []Operation, dir Direction) Summary {
	var sum Summary
	if dir == DirUndo {
		for i := len(ops) - 1; i >= 0; i-- {
			inv.step(&sum, i, ops[i], dir)
		}
		return sum
	}
	for i, op := range ops {
		inv.step(&sum, i, op, dir)
	}
	return sum
}

func (inv *Invoker) step(sum *Summary, index int, op Operation, dir Direction) {
	outcome, err := inv.execute(op, dir)
	sum.record(index, op, outcome, err)
	recordOperation(outcome)

	switch outcome {
	case OutcomeApplied:
		inv.notify(op)
	case OutcomeSkippedDead:
		inv.logger.Debug("operation skipped: target dead",
			"op", op.String(),
			"direction", dir.String(),
		)
	case OutcomeFailed:
		inv.logger.Warn("operation failed",
			"op", op.String(),
			"direction", dir.String(),
			"error", err,
		)
	}
}

func (inv *Invoker) execute(op Operation, dir Direction) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = OutcomeFailed
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return op.execute(inv.registry, dir)
}

// notify fires the method or property observer before the next operation runs.
func (inv *Invoker) notify(op Operation) {
	if inv.observers == nil {
		return
	}
	switch o := op.(type) {
	case *MethodCall:
		inv.observers.notifyMethod(o.target, o.Method, o.Args)
	case *PropertySet:
		inv.observers.notifyProperty(o.target, o.Property, o.Value)
	}
}
