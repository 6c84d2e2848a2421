package sandbox

import (
	"errors"
)

// Sentinel errors for the failure kinds an iteration can produce. Wrapped
// errors carry detail; match with errors.Is or classify with Kind.
var (
	// ErrLoad marks a malformed or unreadable module image. Fatal: an
	// engine cannot be constructed, so the whole run aborts.
	ErrLoad = errors.New("load module")

	// ErrInstantiate marks a host-level failure creating an instance.
	// Fatal for that iteration only.
	ErrInstantiate = errors.New("instantiate module")

	// ErrInjection marks a malformed data payload.
	ErrInjection = errors.New("inject data")

	// ErrMemoryLimit marks a linear-memory growth request denied by the
	// configured ceiling, or an image whose declared minimum memory
	// already exceeds it.
	ErrMemoryLimit = errors.New("memory limit exceeded")

	// ErrTimeLimit marks an instance unwound at a checkpoint after its
	// tick deadline passed.
	ErrTimeLimit = errors.New("time limit exceeded")
)

// ScriptError reports that the sandboxed script itself raised an error or
// returned abnormally. Text holds whatever diagnostic the guest produced.
type ScriptError struct {
	Text string
}

func (e *ScriptError) Error() string {
	if e.Text == "" {
		return "script error"
	}
	return "script error: " + e.Text
}
