package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/caffeineduck/jsbox/sandbox"
)

var rootCmd = &cobra.Command{
	Use:   "jsbox",
	Short: "Run sandboxed JavaScript iterations under memory and time budgets",
	Long: `jsbox - Run untrusted JavaScript in a QuickJS WebAssembly sandbox.

Each iteration evaluates the script in a fresh, fully isolated instance
created from a shared prebuilt module image. An optional JSON payload is
exposed to the script as the global "data"; the script's final expression
is reported as the iteration's result.

Memory and wall-clock budgets bound every instance. Iterations run either
sequentially or across a fixed worker pool.`,
	Run: runRun, // default to run command behavior
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	addRunFlags(rootCmd)
}

// addEngineFlags registers the flags every evaluating command honors:
// image selection, payload, limits, and stdio forwarding.
func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().String("module", "", "Path to a module image (default: built-in prebuilt image)")
	cmd.Flags().String("data", "", "Path to the JSON data payload")
	cmd.Flags().Bool("inherit-stdout", false, "Forward sandbox stdout (console.log) to the host")
	cmd.Flags().Bool("inherit-stderr", false, "Forward sandbox stderr (console.error) to the host")
	cmd.Flags().Uint64("memory-limit-bytes", 0, "Memory ceiling per instance in bytes (0 = unlimited)")
	cmd.Flags().Uint64("time-limit-micros", 0, "Time limit per iteration in microseconds (0 = unlimited)")
	cmd.Flags().Uint64("time-limit-nanos", 0, "Time limit per iteration in nanoseconds")
	cmd.Flags().Uint64("time-limit-evaluation-interval-micros", 100,
		"How often the time limit is evaluated, in microseconds")
}

// addBatchFlags registers the batch-scheduling flags; only commands that
// run whole batches carry them.
func addBatchFlags(cmd *cobra.Command) {
	cmd.Flags().String("script", "", "Path to the input script")
	cmd.Flags().Uint("iterations", 1000, "Number of iterations to execute")
	cmd.Flags().Bool("parallel", false, "Distribute iterations across a worker pool")
	cmd.Flags().Int("workers", 0, "Worker pool size (default: one per CPU)")
}

func addRunFlags(cmd *cobra.Command) {
	addEngineFlags(cmd)
	addBatchFlags(cmd)
}

func setupLogging(cmd *cobra.Command) {
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	})))
}

// loadImage resolves the module image: an explicit path wins over the
// built-in prebuilt image.
func loadImage(cmd *cobra.Command) ([]byte, error) {
	path, _ := cmd.Flags().GetString("module")
	if path == "" {
		image := sandbox.DefaultModule()
		if len(image) == 0 {
			return nil, fmt.Errorf("no built-in module image; pass --module or fetch quickjs.wasm")
		}
		return image, nil
	}
	return sandbox.LoadModule(path)
}

// buildEngineOptions translates the flag surface into sandbox options.
func buildEngineOptions(cmd *cobra.Command) []sandbox.Option {
	memoryLimit, _ := cmd.Flags().GetUint64("memory-limit-bytes")
	limitMicros, _ := cmd.Flags().GetUint64("time-limit-micros")
	limitNanos, _ := cmd.Flags().GetUint64("time-limit-nanos")
	intervalMicros, _ := cmd.Flags().GetUint64("time-limit-evaluation-interval-micros")
	inheritStdout, _ := cmd.Flags().GetBool("inherit-stdout")
	inheritStderr, _ := cmd.Flags().GetBool("inherit-stderr")

	var opts []sandbox.Option

	if memoryLimit > 0 {
		opts = append(opts, sandbox.WithMemoryLimit(memoryLimit))
	}

	// --time-limit-micros takes precedence over its nanosecond alias.
	timeLimit := time.Duration(limitNanos) * time.Nanosecond
	if limitMicros > 0 {
		timeLimit = time.Duration(limitMicros) * time.Microsecond
	}
	if timeLimit > 0 {
		opts = append(opts,
			sandbox.WithTimeLimit(timeLimit),
			sandbox.WithCheckInterval(time.Duration(intervalMicros)*time.Microsecond))
	}

	if inheritStdout {
		opts = append(opts, sandbox.WithStdout(os.Stdout))
	}
	if inheritStderr {
		opts = append(opts, sandbox.WithStderr(os.Stderr))
	}

	return opts
}
