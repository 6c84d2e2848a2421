package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/caffeineduck/jsbox/sandbox"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Evaluate expressions interactively",
	Long: `Start an interactive loop evaluating each line as a one-shot sandboxed
script. Every line gets a fresh instance, so no state persists between
entries; the optional --data payload is re-injected for each one.

Type 'exit' or 'quit' to end the session, or press Ctrl+D.`,
	Run: runRepl,
}

func init() {
	replCmd.Flags().String("history", "", "History file path (default: ~/.jsbox_history)")
	addEngineFlags(replCmd)
	rootCmd.AddCommand(replCmd)
}

func runRepl(cmd *cobra.Command, args []string) {
	setupLogging(cmd)

	historyFile, _ := cmd.Flags().GetString("history")
	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".jsbox_history")
	}

	var payload []byte
	if dataPath, _ := cmd.Flags().GetString("data"); dataPath != "" {
		var err error
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

	// The repl always forwards sandbox output; silent console.log calls
	// make for a confusing interactive session.
	opts := append(buildEngineOptions(cmd),
		sandbox.WithStdout(os.Stdout),
		sandbox.WithStderr(os.Stderr))

	eng, err := sandbox.New(image, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "qjs> ",
		HistoryFile: historyFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}

		res := eng.RunScript(context.Background(), line, payload)
		if res.Err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", res.Err)
			continue
		}
		if res.Value == "" {
			fmt.Println("undefined")
			continue
		}
		fmt.Println(res.Value)
	}
}
