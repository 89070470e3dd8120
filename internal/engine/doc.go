// Package engine implements the reversible action engine behind an editor's
// mutation pipeline.
//
// Callers open an action, append forward ("do") and inverse ("undo")
// operations, and commit. Commit executes the do list once and moves the
// action into a strictly linear history. Undo and redo step a cursor through
// that history and replay the matching operation list.
//
// ARCHITECTURE:
//
// Single-threaded, cooperative:
// Every public method runs to completion on the caller's goroutine. There are
// no locks and no suspension points. Hosts that need multi-goroutine access
// serialize calls themselves.
//
// Execution flow:
//  1. BeginAction creates an in-progress Action (state RECORDING)
//  2. Add* appends Operations to its do/undo lists
//  3. CommitAction seals it, runs the do list through the Invoker
//     (state COMMITTING), and pushes it into the History
//  4. History either merges it into its predecessor or appends it,
//     truncating any redo tail and evicting the oldest action past MaxSteps
//  5. Undo/Redo move the cursor and run the undo/do list
//
// Observers (commit, method, property) fire at fixed points during 3 and 5.
// Any attempt to reenter a mutating method from inside execution is rejected
// with ErrCodeReentrant.
//
// INVARIANTS:
//   - cursor is in [-1, len(actions)-1]
//   - actions[0..cursor] are applied, actions[cursor+1..] are reverted
//   - version strictly increases on every commit, undo, redo and bumping clear
//   - an action's operation lists only grow while it is in progress
//
// A broken invariant poisons the engine; only ClearHistory(true) recovers.
package engine
