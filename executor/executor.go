package executor

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/caffeineduck/jsbox/sandbox"
)

// Runner executes one iteration of a script against a fresh instance.
// *sandbox.Engine is the production implementation.
type Runner interface {
	RunScript(ctx context.Context, script string, data []byte) sandbox.Result
}

// Batch binds a runner to one workload: the same script and payload run
// for every iteration.
type Batch struct {
	runner Runner
	script string
	data   []byte
}

// New returns a Batch running script with the given JSON payload (nil
// leaves the script's "data" global undefined).
func New(runner Runner, script string, data []byte) *Batch {
	return &Batch{
		runner: runner,
		script: script,
		data:   data,
	}
}

// Sequential runs iterations one after another on the calling goroutine
// and returns exactly one result per iteration, in submission order.
// Failed iterations are captured in their result; the batch continues.
func (b *Batch) Sequential(ctx context.Context, iterations int) []sandbox.Result {
	results := make([]sandbox.Result, iterations)
	for i := range results {
		results[i] = b.runner.RunScript(ctx, b.script, b.data)
		results[i].Index = i
	}
	return results
}

// Parallel runs iterations across a fixed pool of workers and returns
// exactly one result per iteration, indexed by originating iteration
// regardless of completion order. workers <= 0 means one worker per CPU.
//
// Workers pull iteration indices from a shared atomic cursor instead of a
// static split, so a few slow iterations cannot stall workers that
// finished their share early. Each worker performs the same
// create-inject-evaluate-teardown cycle as the sequential path; only the
// module image and the tick counter are shared between workers.
func (b *Batch) Parallel(ctx context.Context, iterations, workers int) []sandbox.Result {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > iterations {
		workers = iterations
	}

	results := make([]sandbox.Result, iterations)
	var cursor atomic.Int64

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				i := int(cursor.Add(1)) - 1
				if i >= iterations {
					return nil
				}
				results[i] = b.runner.RunScript(ctx, b.script, b.data)
				results[i].Index = i
			}
		})
	}
	// Workers never return errors; per-iteration failures live in the
	// result slots.
	_ = g.Wait()

	return results
}
