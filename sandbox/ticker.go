package sandbox

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// tickSource is the engine's clock for cooperative time limiting: one
// dedicated goroutine increments an atomic counter every interval. The
// counter is the only mutable state shared across instances and workers;
// readers use plain atomic loads, no locking.
//
// The timer starts lazily before the first limited run and stops when the
// engine closes, rather than per iteration, so timer setup cost never
// dominates short iterations.
type tickSource struct {
	interval  time.Duration
	ticks     atomic.Uint64
	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

func newTickSource(interval time.Duration) *tickSource {
	return &tickSource{
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (ts *tickSource) start() {
	ts.startOnce.Do(func() {
		go func() {
			t := time.NewTicker(ts.interval)
			defer t.Stop()
			for {
				select {
				case <-ts.done:
					return
				case <-t.C:
					ts.ticks.Add(1)
				}
			}
		}()
	})
}

func (ts *tickSource) stop() {
	ts.stopOnce.Do(func() {
		close(ts.done)
	})
}

func (ts *tickSource) now() uint64 {
	return ts.ticks.Load()
}

// deadlineTicks converts a wall-clock limit into a tick budget. A limit
// shorter than one interval still grants a single tick so the deadline is
// observable at all.
func (ts *tickSource) deadlineTicks(limit time.Duration) uint64 {
	n := uint64(limit / ts.interval)
	if n == 0 {
		n = 1
	}
	return n
}

// watch derives a context that is cancelled with cause ErrTimeLimit once
// the shared counter reaches "ticks at start + limit/interval". The running
// instance observes the cancellation at its next interpreter safe point and
// is forcibly unwound there; no further guest instructions execute.
func (ts *tickSource) watch(ctx context.Context, limit time.Duration) (context.Context, context.CancelFunc) {
	ts.start()
	deadline := ts.now() + ts.deadlineTicks(limit)

	ctx, cancel := context.WithCancelCause(ctx)
	go func() {
		t := time.NewTicker(ts.interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ts.done:
				return
			case <-t.C:
				if ts.now() >= deadline {
					cancel(ErrTimeLimit)
					return
				}
			}
		}
	}()

	return ctx, func() { cancel(nil) }
}
