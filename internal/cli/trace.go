package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/store"
	"github.com/roach88/rewind/internal/value"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Kind     string // optional - filter to one entry kind
	Action   string // optional - filter to one action name
}

// TraceChange is one journaled host mutation.
type TraceChange struct {
	Kind    string `json:"kind"`
	Target  uint64 `json:"target"`
	Member  string `json:"member"`
	Payload any    `json:"payload"`
}

// TraceEntry is one journaled step.
type TraceEntry struct {
	Seq        int64         `json:"seq"`
	Kind       string        `json:"kind"`
	ActionID   string        `json:"action_id,omitempty"`
	ActionName string        `json:"action_name,omitempty"`
	Version    uint64        `json:"version"`
	Merged     bool          `json:"merged,omitempty"`
	Applied    int           `json:"applied"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Changes    []TraceChange `json:"changes"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Entries []TraceEntry `json:"entries"`
	Stats   TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the journal.
type TraceStats struct {
	Total   int `json:"total"`
	Commits int `json:"commits"`
	Undos   int `json:"undos"`
	Redos   int `json:"redos"`
	Clears  int `json:"clears"`
	Changes int `json:"changes"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Print the audit journal",
		Long: `Print the audit journal written by "rewind run --audit-db".

Each entry is one commit, undo, redo or clear, followed by the property
assignments and method calls observed while it executed.

Examples:
  rewind trace --db ./audit.db
  rewind trace --db ./audit.db --kind undo
  rewind trace --db ./audit.db --action Drag --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite audit database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to commit, undo, redo or clear")
	cmd.Flags().StringVar(&opts.Action, "action", "", "filter to an action name")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	switch opts.Kind {
	case "", store.KindCommit, store.KindUndo, store.KindRedo, store.KindClear:
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid kind %q: must be commit, undo, redo or clear", opts.Kind))
	}

	if _, err := os.Stat(opts.Database); err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}

	st, err := store.OpenReadOnly(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	entries, err := st.ReadEntries(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	result := TraceResult{Entries: []TraceEntry{}}
	for _, e := range entries {
		if opts.Kind != "" && e.Kind != opts.Kind {
			continue
		}
		if opts.Action != "" && e.ActionName != opts.Action {
			continue
		}

		changes, err := st.ReadChanges(ctx, e.Seq)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read changes", err)
		}
		result.add(toTraceEntry(e, changes))
	}
	formatter.VerboseLog("Read %d of %d journal entries", len(result.Entries), len(entries))

	return formatter.Success(result, func(w io.Writer) { writeTrace(w, result) })
}

func toTraceEntry(e store.Entry, changes []store.Change) TraceEntry {
	te := TraceEntry{
		Seq:        e.Seq,
		Kind:       e.Kind,
		ActionID:   e.ActionID,
		ActionName: e.ActionName,
		Version:    e.Version,
		Merged:     e.Merged,
		Applied:    e.Applied,
		Skipped:    e.Skipped,
		Failed:     e.Failed,
		Changes:    make([]TraceChange, len(changes)),
	}
	for i, c := range changes {
		te.Changes[i] = TraceChange{
			Kind:    c.Kind,
			Target:  c.Target,
			Member:  c.Member,
			Payload: value.ToAny(c.Payload),
		}
	}
	return te
}

func (r *TraceResult) add(te TraceEntry) {
	r.Entries = append(r.Entries, te)
	r.Stats.Total++
	r.Stats.Changes += len(te.Changes)
	switch te.Kind {
	case store.KindCommit:
		r.Stats.Commits++
	case store.KindUndo:
		r.Stats.Undos++
	case store.KindRedo:
		r.Stats.Redos++
	case store.KindClear:
		r.Stats.Clears++
	}
}

func writeTrace(w io.Writer, result TraceResult) {
	if len(result.Entries) == 0 {
		fmt.Fprintln(w, "No journal entries found.")
		return
	}

	for _, e := range result.Entries {
		if e.Kind == store.KindClear {
			fmt.Fprintf(w, "[%d] clear v%d\n", e.Seq, e.Version)
			continue
		}
		merged := ""
		if e.Merged {
			merged = " merged"
		}
		fmt.Fprintf(w, "[%d] %s %q v%d applied=%d skipped=%d failed=%d%s\n",
			e.Seq, e.Kind, e.ActionName, e.Version, e.Applied, e.Skipped, e.Failed, merged)
		for _, c := range e.Changes {
			fmt.Fprintf(w, "      %s\n", renderChange(c))
		}
	}

	s := result.Stats
	fmt.Fprintf(w, "\n%d entries: %d commit, %d undo, %d redo, %d clear; %d change(s)\n",
		s.Total, s.Commits, s.Undos, s.Redos, s.Clears, s.Changes)
}

func renderChange(c TraceChange) string {
	payload, err := value.FromAny(c.Payload)
	if err != nil {
		payload = value.String(fmt.Sprint(c.Payload))
	}
	if c.Kind == store.ChangeMethod {
		if args, ok := payload.(value.Array); ok {
			parts := make([]string, len(args))
			for i, a := range args {
				parts[i] = a.String()
			}
			return fmt.Sprintf("call #%d.%s(%s)", c.Target, c.Member, strings.Join(parts, ", "))
		}
	}
	return fmt.Sprintf("set #%d.%s = %s", c.Target, c.Member, payload)
}
