package sandbox

import (
	"errors"
	"time"
)

// Result is the outcome of one iteration. Exactly one of Value and Err is
// meaningful: a nil Err means the script completed and Value holds its
// JSON-encoded final expression (empty if the script produced none).
type Result struct {
	// Index is the originating iteration number. Set by the executors;
	// results remain attributable regardless of completion order.
	Index int

	// Value is the JSON text the guest delivered through set_output.
	Value string

	Duration time.Duration
	Err      error
}

// FailureKind buckets iteration errors for summaries.
type FailureKind int

const (
	KindNone FailureKind = iota
	KindLoad
	KindInstantiation
	KindInjection
	KindMemoryLimit
	KindTimedOut
	KindScript
)

func (k FailureKind) String() string {
	switch k {
	case KindNone:
		return "ok"
	case KindLoad:
		return "load error"
	case KindInstantiation:
		return "instantiation error"
	case KindInjection:
		return "injection error"
	case KindMemoryLimit:
		return "memory limit exceeded"
	case KindTimedOut:
		return "timed out"
	case KindScript:
		return "script error"
	}
	return "unknown"
}

// Kind classifies an iteration error into its failure kind.
func Kind(err error) FailureKind {
	var scriptErr *ScriptError
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrLoad):
		return KindLoad
	case errors.Is(err, ErrMemoryLimit):
		return KindMemoryLimit
	case errors.Is(err, ErrTimeLimit):
		return KindTimedOut
	case errors.Is(err, ErrInjection):
		return KindInjection
	case errors.As(err, &scriptErr):
		return KindScript
	default:
		return KindInstantiation
	}
}

// Summarize counts failed iterations by kind. Successful iterations are
// omitted, so an empty map means a clean run.
func Summarize(results []Result) map[FailureKind]int {
	summary := make(map[FailureKind]int)
	for _, r := range results {
		if r.Err != nil {
			summary[Kind(r.Err)]++
		}
	}
	return summary
}
