package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/caffeineduck/jsbox/executor"
	"github.com/caffeineduck/jsbox/sandbox"
)

var runCmd = &cobra.Command{
	Use:   "run [script]",
	Short: "Run a script for N iterations",
	Long: `Execute a JavaScript file repeatedly, one fresh sandbox instance per
iteration. The script path comes from --script or the positional argument.

Per-iteration results are printed as "<index> <value>"; failures are
reported and the remaining iterations continue. The process exits non-zero
only for load/configuration errors or instantiation failures.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runRun,
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) {
	setupLogging(cmd)

	scriptPath, _ := cmd.Flags().GetString("script")
	if scriptPath == "" && len(args) > 0 {
		scriptPath = args[0]
	}
	if scriptPath == "" {
		cmd.Help()
		os.Exit(1)
	}

	script, err := os.ReadFile(scriptPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var payload []byte
	if dataPath, _ := cmd.Flags().GetString("data"); dataPath != "" {
		payload, err = os.ReadFile(dataPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	image, err := loadImage(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	iterations, _ := cmd.Flags().GetUint("iterations")
	parallel, _ := cmd.Flags().GetBool("parallel")
	workers, _ := cmd.Flags().GetInt("workers")

	eng, err := sandbox.New(image, buildEngineOptions(cmd)...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close()

	runID := uuid.NewString()
	slog.Debug("run starting",
		"run_id", runID,
		"script", scriptPath,
		"image_bytes", len(image),
		"iterations", iterations,
		"parallel", parallel)

	batch := executor.New(eng, string(script), payload)

	start := time.Now()
	var results []sandbox.Result
	if parallel {
		results = batch.Parallel(context.Background(), int(iterations), workers)
	} else {
		results = batch.Sequential(context.Background(), int(iterations))
	}
	elapsed := time.Since(start)

	for _, r := range results {
		switch {
		case r.Err != nil:
			fmt.Fprintf(os.Stderr, "%d error: %v\n", r.Index, r.Err)
		case r.Value == "":
			fmt.Printf("%d None\n", r.Index)
		default:
			fmt.Printf("%d %s\n", r.Index, r.Value)
		}
	}

	if len(results) > 0 {
		fmt.Printf("elapsed: %v\niteration: %v\n", elapsed, elapsed/time.Duration(len(results)))
	}

	slog.Debug("run finished", "run_id", runID, "elapsed", elapsed)

	os.Exit(reportFailures(results))
}

// reportFailures prints a failure summary and picks the exit code:
// instantiation failures are host-level problems and make the run exit
// non-zero, everything else is an expected per-iteration outcome.
func reportFailures(results []sandbox.Result) int {
	summary := sandbox.Summarize(results)
	if len(summary) == 0 {
		return 0
	}

	red := color.New(color.FgRed)
	red.Fprintln(os.Stderr, "failures:")
	for _, kind := range []sandbox.FailureKind{
		sandbox.KindInstantiation,
		sandbox.KindInjection,
		sandbox.KindMemoryLimit,
		sandbox.KindTimedOut,
		sandbox.KindScript,
	} {
		if n := summary[kind]; n > 0 {
			fmt.Fprintf(os.Stderr, "  %s: %d\n", kind, n)
		}
	}

	if summary[sandbox.KindInstantiation] > 0 {
		return 1
	}
	return 0
}
