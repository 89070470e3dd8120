package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/rewind/internal/config"
)

func defaultBase() config.Config { return config.Default() }

func TestTraceEvent_String(t *testing.T) {
	tests := []struct {
		event TraceEvent
		want  string
	}{
		{TraceEvent{Type: EventBegin, Action: "Bump", Detail: "ends"}, `begin "Bump" ends`},
		{TraceEvent{Type: EventCommit, Action: "Bump", Version: 2, Detail: "applied=1 skipped=0 failed=0"}, `commit "Bump" v2 applied=1 skipped=0 failed=0`},
		{TraceEvent{Type: EventUndo, Action: "Bump", Version: 3, Detail: "applied=0 skipped=1 failed=0"}, `undo "Bump" v3 applied=0 skipped=1 failed=0`},
		{TraceEvent{Type: EventCancel, Action: "Temp"}, `cancel "Temp"`},
		{TraceEvent{Type: EventClear, Version: 9}, `clear v9`},
		{TraceEvent{Type: EventError, Action: "undo", Detail: "NOTHING_TO_UNDO"}, `error undo NOTHING_TO_UNDO`},
		{TraceEvent{Type: EventDestroy, Detail: "box"}, `destroy box`},
		{TraceEvent{Type: EventAdvance, Detail: "100ms"}, `advance 100ms`},
		{TraceEvent{Type: EventSet, Detail: "box.x = 1", Nested: true}, `  set box.x = 1`},
		{TraceEvent{Type: EventCall, Detail: "box.translate(1, 2)", Nested: true}, `  call box.translate(1, 2)`},
		{TraceEvent{Type: EventReenter, Action: "Nested", Detail: "REENTRANT", Nested: true}, `  reenter "Nested" REENTRANT`},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.String())
		})
	}
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)

	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}

func TestRenderTrace(t *testing.T) {
	r := NewResult()
	r.Trace = append(r.Trace,
		TraceEvent{Type: EventClear, Version: 2},
		TraceEvent{Type: EventSet, Detail: "a.b = 1", Nested: true},
	)
	assert.Equal(t, "# scenario: demo\nclear v2\n  set a.b = 1\n", string(RenderTrace("demo", r)))
}
