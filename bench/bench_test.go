// Package bench measures jsbox throughput under realistic workloads.
//
// Run with: go test -v -run=Test ./bench/
// Benchmarks: go test -bench=. -benchtime=3x ./bench/
//
// Every test here needs the embedded QuickJS image and skips without it.
package bench

import (
	"context"
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/caffeineduck/jsbox/executor"
	"github.com/caffeineduck/jsbox/sandbox"
)

const (
	trivialScript = "1 + 2"
	busyScript    = "let s = 0; for (let i = 0; i < 100000; i++) s += i * i; s"
)

func requireImage(tb testing.TB) []byte {
	tb.Helper()
	image := sandbox.DefaultModule()
	if len(image) == 0 {
		tb.Skip("no embedded quickjs.wasm; run internal/tools/download first")
	}
	return image
}

func newEngine(tb testing.TB, opts ...sandbox.Option) *sandbox.Engine {
	tb.Helper()
	eng, err := sandbox.New(requireImage(tb), opts...)
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() { eng.Close() })
	return eng
}

// --- Cold start (new engine each time) ---

func BenchmarkColdStart(b *testing.B) {
	image := requireImage(b)
	for i := 0; i < b.N; i++ {
		eng, err := sandbox.New(image)
		if err != nil {
			b.Fatal(err)
		}
		eng.RunScript(context.Background(), trivialScript, nil)
		eng.Close()
	}
}

// --- Warm start (shared engine, fresh instance per run) ---

func BenchmarkWarmStart(b *testing.B) {
	eng := newEngine(b)
	eng.RunScript(context.Background(), trivialScript, nil) // compile

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		eng.RunScript(context.Background(), trivialScript, nil)
	}
}

func BenchmarkWarmStart_Computation(b *testing.B) {
	eng := newEngine(b)
	eng.RunScript(context.Background(), trivialScript, nil) // warmup

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		eng.RunScript(context.Background(), busyScript, nil)
	}
}

// Time-limit supervision costs a watcher goroutine plus context checks at
// interpreter safe points. This quantifies that overhead against an
// unsupervised run of the same script.
func BenchmarkWarmStart_TimeLimited(b *testing.B) {
	eng := newEngine(b,
		sandbox.WithTimeLimit(time.Second),
		sandbox.WithCheckInterval(100*time.Microsecond))
	eng.RunScript(context.Background(), trivialScript, nil) // warmup

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		eng.RunScript(context.Background(), busyScript, nil)
	}
}

// --- Batch throughput: sequential vs worker pool ---

func BenchmarkBatch_Sequential(b *testing.B) {
	eng := newEngine(b)
	batch := executor.New(eng, busyScript, nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		batch.Sequential(context.Background(), 16)
	}
}

func BenchmarkBatch_Parallel(b *testing.B) {
	eng := newEngine(b)
	batch := executor.New(eng, busyScript, nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		batch.Parallel(context.Background(), 16, runtime.NumCPU())
	}
}

// --- Human readable comparison ---

func TestThroughputComparison(t *testing.T) {
	eng := newEngine(t)
	batch := executor.New(eng, busyScript, nil)
	eng.RunScript(context.Background(), trivialScript, nil) // compile

	const iterations = 32

	seqStart := time.Now()
	batch.Sequential(context.Background(), iterations)
	seq := time.Since(seqStart)

	parStart := time.Now()
	batch.Parallel(context.Background(), iterations, runtime.NumCPU())
	par := time.Since(parStart)

	fmt.Println()
	fmt.Printf("Platform: %s/%s, CPUs: %d, iterations: %d\n",
		runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), iterations)
	fmt.Printf("sequential: %v (%v/iteration)\n", seq, seq/iterations)
	fmt.Printf("parallel:   %v (%v/iteration)\n", par, par/iterations)
	if par > 0 {
		fmt.Printf("speedup:    %.1fx\n", float64(seq)/float64(par))
	}
	fmt.Println()

	t.Log("comparison complete - see stdout for results")
}

func TestMemoryUsage(t *testing.T) {
	var m runtime.MemStats

	runtime.GC()
	runtime.ReadMemStats(&m)
	before := m.Alloc

	eng := newEngine(t)
	for i := 0; i < 5; i++ {
		eng.RunScript(context.Background(), busyScript, nil)
	}

	runtime.ReadMemStats(&m)
	after := m.Alloc

	eng.Close()
	runtime.GC()
	runtime.ReadMemStats(&m)
	afterGC := m.Alloc

	t.Logf("Memory before: %d MB", before/1024/1024)
	t.Logf("Memory after 5 runs: %d MB", after/1024/1024)
	t.Logf("Memory after GC: %d MB", afterGC/1024/1024)
}
