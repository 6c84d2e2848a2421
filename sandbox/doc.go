// Package sandbox hosts a pre-initialized QuickJS WebAssembly snapshot and
// runs one script evaluation per disposable instance.
//
// An [Engine] owns a single wazero runtime, compiles the module image once,
// and instantiates a fresh isolated module for every [Engine.RunScript]
// call. The instance reads the script and the optional JSON payload through
// a small host ABI, evaluates the script body with the payload bound to the
// global "data", and delivers the final expression back through the same
// ABI before it is torn down.
//
// Two resource governors bound each instance: a memory ceiling applied to
// linear-memory growth, and a cooperative time limiter driven by a shared
// tick counter that unwinds the instance at interpreter safe points once
// its deadline has passed.
package sandbox
