// Package jsbox runs untrusted JavaScript inside a pre-initialized QuickJS
// WebAssembly snapshot, many iterations at a time, under strict memory and
// wall-clock budgets.
//
// # Overview
//
// jsbox instantiates a fresh, fully isolated WASM module per iteration from
// a shared immutable module image. Instances are never reused, so no state
// leaks between iterations. A memory ceiling denies linear-memory growth
// beyond a configured byte budget, and a cooperative time limiter unwinds
// runaway scripts at interpreter safe points.
//
// # Basic Usage
//
//	eng, _ := sandbox.New(sandbox.DefaultModule(),
//	    sandbox.WithMemoryLimit(64<<20),
//	    sandbox.WithTimeLimit(50*time.Millisecond))
//	defer eng.Close()
//
//	batch := executor.New(eng, script, payload)
//	results := batch.Sequential(ctx, 1000)
//
//	// Or fan out across a worker pool:
//	results = batch.Parallel(ctx, 1000, runtime.NumCPU())
//
// Scripts observe the injected payload as the global identifier "data" and
// deliver their final expression back to the host as a JSON-encoded result.
//
// See the [sandbox] and [executor] packages for detailed API documentation.
package jsbox
