package engine

import (
	"fmt"
	"strings"
)

// Summary counts the outcomes of executing an operation list.
type Summary struct {
	Applied  int
	Skipped  int
	Failed   int
	Failures []Failure
}

// Failure describes one operation that could not be applied.
type Failure struct {
	// Index is the operation's position in its stored list.
	Index int
	Op    string
	Err   error
}

func (f Failure) String() string {
	return fmt.Sprintf("[%d] %s: %v", f.Index, f.Op, f.Err)
}

// Total returns the number of operations executed.
func (s Summary) Total() int {
	return s.Applied + s.Skipped + s.Failed
}

// OK reports whether no operation failed. Skipped operations do not count.
func (s Summary) OK() bool {
	return s.Failed == 0
}

func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "applied=%d skipped=%d failed=%d", s.Applied, s.Skipped, s.Failed)
	for _, f := range s.Failures {
		b.WriteString("\n  ")
		b.WriteString(f.String())
	}
	return b.String()
}

func (s *Summary) record(index int, op Operation, outcome Outcome, err error) {
	switch outcome {
	case OutcomeApplied:
		s.Applied++
	case OutcomeSkippedDead:
		s.Skipped++
	default:
		s.Failed++
		s.Failures = append(s.Failures, Failure{Index: index, Op: op.String(), Err: err})
	}
}
