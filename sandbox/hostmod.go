package sandbox

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// hostModuleName is the wasm import namespace the snapshot links against.
const hostModuleName = "host"

// invocation carries one iteration's injected inputs and captured output.
// The host module is instantiated once per engine; per-run state travels
// through the run context instead, so nothing mutable is shared between
// instances.
type invocation struct {
	script []byte
	data   []byte

	mu     sync.Mutex
	output []byte
	failed bool
	set    bool
}

type invocationKey struct{}

func withInvocation(ctx context.Context, inv *invocation) context.Context {
	return context.WithValue(ctx, invocationKey{}, inv)
}

func invocationFrom(ctx context.Context) *invocation {
	inv, _ := ctx.Value(invocationKey{}).(*invocation)
	return inv
}

func (inv *invocation) setOutput(text []byte, failed bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.output = text
	inv.failed = failed
	inv.set = true
}

func (inv *invocation) result() (text string, failed, set bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return string(inv.output), inv.failed, inv.set
}

// instantiateHostModule exports the snapshot's import surface:
//
//	get_script_size() -> i32        byte length of the script source
//	get_script(ptr)                 copy script into guest memory at ptr
//	get_data_size() -> i32          byte length of the JSON payload, 0 if absent
//	get_data(ptr)                   copy payload into guest memory at ptr
//	set_output(ptr, size, error)    deliver the JSON result, error=1 on failure
//
// The guest allocates the destination buffers itself and passes their
// addresses, so the host never grows guest memory. A guest handing over an
// out-of-range pointer is killed rather than silently truncated.
func instantiateHostModule(ctx context.Context, rt wazero.Runtime) (api.Module, error) {
	i32 := api.ValueTypeI32

	return rt.NewHostModuleBuilder(hostModuleName).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
			size := 0
			if inv := invocationFrom(ctx); inv != nil {
				size = len(inv.script)
			}
			stack[0] = api.EncodeI32(int32(size))
		}), nil, []api.ValueType{i32}).
		Export("get_script_size").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			inv := invocationFrom(ctx)
			if inv == nil {
				return
			}
			writeGuest(ctx, mod, api.DecodeU32(stack[0]), inv.script)
		}), []api.ValueType{i32}, nil).
		Export("get_script").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
			size := 0
			if inv := invocationFrom(ctx); inv != nil {
				size = len(inv.data)
			}
			stack[0] = api.EncodeI32(int32(size))
		}), nil, []api.ValueType{i32}).
		Export("get_data_size").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			inv := invocationFrom(ctx)
			if inv == nil {
				return
			}
			writeGuest(ctx, mod, api.DecodeU32(stack[0]), inv.data)
		}), []api.ValueType{i32}, nil).
		Export("get_data").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			inv := invocationFrom(ctx)
			if inv == nil {
				return
			}
			ptr := api.DecodeU32(stack[0])
			size := api.DecodeU32(stack[1])
			failed := api.DecodeI32(stack[2]) != 0

			if size == 0 {
				inv.setOutput(nil, failed)
				return
			}
			buf, ok := mod.Memory().Read(ptr, size)
			if !ok {
				_ = mod.CloseWithExitCode(ctx, 1)
				return
			}
			// The guest frees its buffer after the call returns; copy out.
			inv.setOutput(append([]byte(nil), buf...), failed)
		}), []api.ValueType{i32, i32, i32}, nil).
		Export("set_output").
		Instantiate(ctx)
}

func writeGuest(ctx context.Context, mod api.Module, ptr uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	if !mod.Memory().Write(ptr, data) {
		_ = mod.CloseWithExitCode(ctx, 1)
	}
}
