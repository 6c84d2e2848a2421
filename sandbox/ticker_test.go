package sandbox

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTickSourceAdvances(t *testing.T) {
	ts := newTickSource(time.Millisecond)
	ts.start()
	defer ts.stop()

	deadline := time.Now().Add(2 * time.Second)
	for ts.now() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("tick counter never advanced")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestTickSourceStartIsIdempotent(t *testing.T) {
	ts := newTickSource(time.Millisecond)
	ts.start()
	ts.start()
	ts.stop()
	ts.stop()
}

func TestDeadlineTicks(t *testing.T) {
	tests := []struct {
		interval time.Duration
		limit    time.Duration
		want     uint64
	}{
		{time.Millisecond, 10 * time.Millisecond, 10},
		{time.Millisecond, time.Millisecond, 1},
		{time.Millisecond, 1500 * time.Microsecond, 1},
		// A limit shorter than one interval still grants a tick.
		{time.Millisecond, 100 * time.Microsecond, 1},
		{100 * time.Microsecond, time.Second, 10000},
	}
	for _, tt := range tests {
		ts := newTickSource(tt.interval)
		if got := ts.deadlineTicks(tt.limit); got != tt.want {
			t.Errorf("deadlineTicks(%v) with interval %v = %d, want %d",
				tt.limit, tt.interval, got, tt.want)
		}
	}
}

func TestWatchCancelsWithTimeLimitCause(t *testing.T) {
	ts := newTickSource(time.Millisecond)
	defer ts.stop()

	ctx, cancel := ts.watch(context.Background(), 5*time.Millisecond)
	defer cancel()

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("watch never cancelled past the deadline")
	}

	if cause := context.Cause(ctx); !errors.Is(cause, ErrTimeLimit) {
		t.Errorf("cause = %v, want ErrTimeLimit", cause)
	}
}

func TestWatchLeavesFastRunsAlone(t *testing.T) {
	ts := newTickSource(time.Millisecond)
	defer ts.stop()

	ctx, cancel := ts.watch(context.Background(), time.Minute)
	time.Sleep(10 * time.Millisecond)
	if ctx.Err() != nil {
		t.Fatalf("cancelled before the deadline: %v", context.Cause(ctx))
	}
	cancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("release did not cancel the watch context")
	}
	if cause := context.Cause(ctx); errors.Is(cause, ErrTimeLimit) {
		t.Error("clean release must not look like a timeout")
	}
}
