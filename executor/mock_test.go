package executor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/caffeineduck/jsbox/sandbox"
)

// mockRunner implements Runner for testing scheduling logic without the
// overhead of a real QuickJS engine.
type mockRunner struct {
	delay time.Duration

	// failNth makes every nth call fail with a script error.
	failNth int

	calls       atomic.Int64
	inflight    atomic.Int64
	maxInflight atomic.Int64
}

func (m *mockRunner) RunScript(ctx context.Context, script string, data []byte) sandbox.Result {
	n := m.calls.Add(1)

	cur := m.inflight.Add(1)
	for {
		max := m.maxInflight.Load()
		if cur <= max || m.maxInflight.CompareAndSwap(max, cur) {
			break
		}
	}
	defer m.inflight.Add(-1)

	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	if m.failNth > 0 && n%int64(m.failNth) == 0 {
		return sandbox.Result{Err: &sandbox.ScriptError{Text: "mock failure"}}
	}
	return sandbox.Result{Value: script}
}
