// Command swesynth is the mutation-synthesis pipeline's CLI entrypoint.
//
// # File Index
//
//   - main.go      - rootCmd, global flags, init()
//   - run.go       - runCmd: per-commit orchestrator over a repo + known-commits file
//   - callgraph.go - callgraphCmd: build/inspect a TestFunctionMap standalone
//   - replay.go    - replayCmd: re-validate one journal line against a fresh container
//   - watch.go     - watchCmd: tail a journal file, logging survivors as they're appended
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/FSoft-AI4Code/swesynth-go/internal/config"
	"github.com/FSoft-AI4Code/swesynth-go/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "swesynth",
	Short: "Synthesizes labeled bug datasets by mutating and validating Python projects",
	Long: `swesynth mutates real open-source Python code and validates each candidate
bug against the project's own test suite inside sandboxed containers,
producing a fault-introducing diff, the precise set of tests it breaks,
and a reversed repair patch for every survivor.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "swesynth.yaml", "path to the run configuration file")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func main() {
	defer logging.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
