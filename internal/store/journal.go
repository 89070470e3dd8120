package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/rewind/internal/value"
)

// Entry kinds.
const (
	KindCommit = "commit"
	KindUndo   = "undo"
	KindRedo   = "redo"
	KindClear  = "clear"
)

// Change kinds.
const (
	ChangeProperty = "property"
	ChangeMethod   = "method"
)

// Entry is one journaled history step.
type Entry struct {
	// Seq is assigned by AppendEntry.
	Seq        int64
	Kind       string
	ActionID   string
	ActionName string
	Version    uint64
	Merged     bool
	Applied    int
	Skipped    int
	Failed     int
	Changes    []Change
}

// Change is one host mutation observed while a step executed.
//
// Payload is the assigned value for properties and an Array of the
// reported arguments for methods.
type Change struct {
	Ordinal int
	Kind    string
	Target  uint64
	Member  string
	Payload value.Value
}

// AppendEntry writes e and its changes in one transaction and returns the
// assigned seq.
func (s *Store) AppendEntry(ctx context.Context, e Entry) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("append entry: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		INSERT INTO entries
		(kind, action_id, action_name, version, merged, applied, skipped, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.Kind,
		e.ActionID,
		e.ActionName,
		int64(e.Version),
		boolToInt(e.Merged),
		e.Applied,
		e.Skipped,
		e.Failed,
	)
	if err != nil {
		return 0, fmt.Errorf("append entry: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append entry: get seq: %w", err)
	}

	for i, c := range e.Changes {
		payload, err := value.MarshalCanonical(c.Payload)
		if err != nil {
			return 0, fmt.Errorf("append entry: change %d payload: %w", i, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO changes
			(entry_seq, ordinal, kind, target, member, payload)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			seq,
			i,
			c.Kind,
			int64(c.Target),
			c.Member,
			string(payload),
		)
		if err != nil {
			return 0, fmt.Errorf("append entry: change %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("append entry: commit: %w", err)
	}
	return seq, nil
}

// ReadEntries returns every entry without changes, ordered by seq.
//
// Returns an empty slice (not nil) for an empty journal.
func (s *Store) ReadEntries(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, kind, action_id, action_name, version, merged, applied, skipped, failed
		FROM entries
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e       Entry
			version int64
			merged  int
		)
		if err := rows.Scan(&e.Seq, &e.Kind, &e.ActionID, &e.ActionName, &version, &merged, &e.Applied, &e.Skipped, &e.Failed); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Version = uint64(version)
		e.Merged = merged != 0
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// ReadChanges returns the changes recorded for one entry, in execution order.
func (s *Store) ReadChanges(ctx context.Context, seq int64) ([]Change, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ordinal, kind, target, member, payload
		FROM changes
		WHERE entry_seq = ?
		ORDER BY ordinal ASC
	`, seq)
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	changes := []Change{}
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changes: %w", err)
	}
	return changes, nil
}

func scanChange(rows *sql.Rows) (Change, error) {
	var (
		c       Change
		target  int64
		payload string
	)
	if err := rows.Scan(&c.Ordinal, &c.Kind, &target, &c.Member, &payload); err != nil {
		return Change{}, fmt.Errorf("scan change: %w", err)
	}
	c.Target = uint64(target)

	v, err := value.UnmarshalCanonical([]byte(payload))
	if err != nil {
		return Change{}, fmt.Errorf("change %d payload: %w", c.Ordinal, err)
	}
	c.Payload = v
	return c, nil
}

// Count returns the number of journaled entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
