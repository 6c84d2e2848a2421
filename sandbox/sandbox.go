package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

// wasmPageSize is the wasm linear-memory page granularity. Memory ceilings
// are byte-denominated and rounded up to whole pages.
const wasmPageSize = 64 * 1024

// maxMemoryPages is wazero's hard ceiling (4GB of linear memory).
const maxMemoryPages = 65536

// Engine hosts a compiled module image and runs one disposable instance
// per RunScript call. The image and the tick counter are the only state
// shared between instances; both are read-only from the instance side, so
// an Engine is safe for concurrent use by multiple workers.
type Engine struct {
	runtime    wazero.Runtime
	compiled   wazero.CompiledModule
	cfg        config
	clock      *tickSource
	limitPages uint32

	// startBlocked is set when the image cannot even start under the
	// configured memory ceiling; every iteration then fails with it.
	startBlocked error

	mu     sync.Mutex
	closed bool
}

// New compiles the module image and prepares the shared runtime: WASI, the
// host ABI module, the memory ceiling, and the tick source. Configuration
// errors and malformed images fail here, before any iteration starts.
func New(module []byte, opts ...Option) (*Engine, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	ctx := context.Background()

	rtCfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	var limitPages uint32
	if cfg.memoryLimit > 0 {
		limitPages = pagesFor(cfg.memoryLimit)
		rtCfg = rtCfg.WithMemoryLimitPages(limitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtCfg)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}
	if _, err := instantiateHostModule(ctx, rt); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate host module: %w", err)
	}

	e := &Engine{
		runtime:    rt,
		cfg:        cfg,
		clock:      newTickSource(cfg.checkInterval),
		limitPages: limitPages,
	}

	// wazero enforces the page ceiling while decoding the image, so an
	// image whose minimum memory exceeds the ceiling never compiles on
	// the limited runtime. Probe it on an unconstrained interpreter
	// first: structural problems stay LoadError (fatal for the whole
	// run), while an impossible start under the ceiling degrades to a
	// per-iteration MemoryLimitExceeded.
	if limitPages > 0 {
		minPages, err := probeImage(ctx, module)
		if err != nil {
			rt.Close(ctx)
			return nil, err
		}
		if minPages > limitPages {
			e.startBlocked = fmt.Errorf("%w: image needs %d pages to start, ceiling is %d",
				ErrMemoryLimit, minPages, limitPages)
			return e, nil
		}
	}

	compiled, err := rt.CompileModule(ctx, module)
	if err != nil {
		if limitPages > 0 {
			// The image starts under the ceiling but declares a
			// maximum beyond it; the ceiling is what makes it
			// unloadable, so credit the limiter.
			e.startBlocked = fmt.Errorf("%w: %v", ErrMemoryLimit, err)
			return e, nil
		}
		rt.Close(ctx)
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}

	e.compiled = compiled
	return e, nil
}

// probeImage validates the image without memory constraints and reports
// the smallest memory it can start with.
func probeImage(ctx context.Context, module []byte) (uint32, error) {
	scratch := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer scratch.Close(ctx)

	compiled, err := scratch.CompileModule(ctx, module)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	return minMemoryPages(compiled), nil
}

// RunScript performs one full iteration: inject the payload, instantiate a
// fresh instance, evaluate the script, capture the outcome, tear the
// instance down. Per-iteration failures are captured in the Result, never
// returned out of band. data may be nil, leaving the script's "data"
// global undefined; when present it must be valid JSON.
func (e *Engine) RunScript(ctx context.Context, script string, data []byte) Result {
	start := time.Now()

	fail := func(err error) Result {
		return Result{Err: err, Duration: time.Since(start)}
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return fail(fmt.Errorf("%w: engine closed", ErrInstantiate))
	}
	e.mu.Unlock()

	if len(data) > 0 && !json.Valid(data) {
		return fail(fmt.Errorf("%w: payload is not valid JSON", ErrInjection))
	}
	if e.startBlocked != nil {
		return fail(e.startBlocked)
	}

	inv := &invocation{script: []byte(script), data: data}
	runCtx := withInvocation(ctx, inv)

	cancel := func() {}
	if e.cfg.timeLimit > 0 {
		runCtx, cancel = e.clock.watch(runCtx, e.cfg.timeLimit)
	}
	defer cancel()

	modCfg := wazero.NewModuleConfig().WithName("")
	if e.cfg.stdout != nil {
		modCfg = modCfg.WithStdout(e.cfg.stdout)
	}
	if e.cfg.stderr != nil {
		modCfg = modCfg.WithStderr(e.cfg.stderr)
	}

	// Instantiation runs _start, which drives the whole evaluation. The
	// instance is discarded afterwards, never recycled into a pool.
	mod, err := e.runtime.InstantiateModule(runCtx, e.compiled, modCfg)
	if mod != nil {
		_ = mod.Close(context.Background())
	}

	res := Result{Duration: time.Since(start)}
	if err != nil {
		res.Err = e.classify(runCtx, err)
		if res.Err != nil {
			return res
		}
	}

	text, failed, _ := inv.result()
	if failed {
		res.Err = e.guestFailure(text)
		return res
	}
	res.Value = text
	return res
}

// classify maps a raw instantiation error onto the failure taxonomy. A nil
// return means the guest exited cleanly and the captured output decides.
func (e *Engine) classify(ctx context.Context, err error) error {
	if errors.Is(context.Cause(ctx), ErrTimeLimit) {
		return fmt.Errorf("%w after %v", ErrTimeLimit, e.cfg.timeLimit)
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: aborted: %v", ErrInstantiate, context.Cause(ctx))
	}

	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.ExitCode() == 0 {
			return nil
		}
		return &ScriptError{Text: fmt.Sprintf("exit code %d", exitErr.ExitCode())}
	}

	if e.limitPages > 0 && looksLikeAllocFailure(err.Error()) {
		return fmt.Errorf("%w: %v", ErrMemoryLimit, err)
	}
	return fmt.Errorf("%w: %v", ErrInstantiate, err)
}

// guestFailure shapes an error the script itself reported. A denied memory
// growth surfaces as the guest's own allocation failure, so with a ceiling
// configured that diagnostic is credited to the limiter, not the script.
func (e *Engine) guestFailure(text string) error {
	if e.limitPages > 0 && looksLikeAllocFailure(text) {
		return fmt.Errorf("%w: %s", ErrMemoryLimit, text)
	}
	return &ScriptError{Text: text}
}

func looksLikeAllocFailure(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "out of memory") ||
		strings.Contains(lower, "allocation failed") ||
		strings.Contains(lower, "memory allocation")
}

// Close releases the runtime and stops the tick source. Safe to call more
// than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	e.clock.stop()
	return e.runtime.Close(context.Background())
}

func pagesFor(bytes uint64) uint32 {
	pages := (bytes + wasmPageSize - 1) / wasmPageSize
	if pages > maxMemoryPages {
		pages = maxMemoryPages
	}
	return uint32(pages)
}

// minMemoryPages reports the smallest memory the image can start with.
// Checked against the ceiling before instantiation so an impossible start
// is denied synchronously rather than half-allocated and rolled back.
func minMemoryPages(compiled wazero.CompiledModule) uint32 {
	var minPages uint32
	for _, def := range compiled.ImportedMemories() {
		if def.Min() > minPages {
			minPages = def.Min()
		}
	}
	for _, def := range compiled.ExportedMemories() {
		if def.Min() > minPages {
			minPages = def.Min()
		}
	}
	return minPages
}
