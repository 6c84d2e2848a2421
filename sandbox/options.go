package sandbox

import (
	"fmt"
	"io"
	"time"
)

// DefaultCheckInterval is how often the tick source advances and how often
// a running instance's deadline is evaluated. Finer intervals catch runaway
// loops sooner at a measurable per-checkpoint throughput cost.
const DefaultCheckInterval = 100 * time.Microsecond

// Option configures an Engine at construction time.
type Option func(*config)

type config struct {
	memoryLimit   uint64
	timeLimit     time.Duration
	checkInterval time.Duration
	stdout        io.Writer
	stderr        io.Writer
}

func defaultConfig() config {
	return config{
		checkInterval: DefaultCheckInterval,
	}
}

func (c *config) validate() error {
	if c.checkInterval <= 0 {
		return fmt.Errorf("check interval must be positive, got %v", c.checkInterval)
	}
	if c.timeLimit > 0 && c.checkInterval > c.timeLimit {
		return fmt.Errorf("check interval %v exceeds time limit %v: the limit could never be observed in time",
			c.checkInterval, c.timeLimit)
	}
	return nil
}

// WithMemoryLimit caps an instance's linear memory at the given byte
// ceiling, rounded up to whole 64KB wasm pages. Growth requests beyond the
// ceiling are denied outright, never partially satisfied. Zero means
// unconstrained (bounded only by host memory).
func WithMemoryLimit(bytes uint64) Option {
	return func(c *config) {
		c.memoryLimit = bytes
	}
}

// WithTimeLimit bounds an instance's wall-clock runtime. The limit is
// enforced cooperatively: the instance is unwound at the first interpreter
// safe point after its tick deadline passes. Zero disables the limiter.
func WithTimeLimit(d time.Duration) Option {
	return func(c *config) {
		c.timeLimit = d
	}
}

// WithCheckInterval tunes the tick interval used for time-limit
// evaluation. Must not exceed the time limit when one is set.
func WithCheckInterval(d time.Duration) Option {
	return func(c *config) {
		c.checkInterval = d
	}
}

// WithStdout forwards the sandbox's stdout to w. By default output is
// discarded, not buffered, so a verbose script cannot grow host memory.
func WithStdout(w io.Writer) Option {
	return func(c *config) {
		c.stdout = w
	}
}

// WithStderr forwards the sandbox's stderr to w. Discarded by default.
func WithStderr(w io.Writer) Option {
	return func(c *config) {
		c.stderr = w
	}
}
