package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/FSoft-AI4Code/swesynth-go/internal/callgraph"
	"github.com/FSoft-AI4Code/swesynth-go/internal/container"
	"github.com/FSoft-AI4Code/swesynth-go/internal/logging"
)

var (
	cgCloneDir    string
	cgImage       string
	cgArtifactDir string
	cgLoadOnly    bool
)

var callgraphCmd = &cobra.Command{
	Use:   "callgraph",
	Short: "Build or inspect a function-to-test call-graph map standalone",
	RunE:  runCallgraph,
}

func init() {
	callgraphCmd.Flags().StringVar(&cgCloneDir, "clone-dir", "", "path to a checked-out clone of the project (required)")
	callgraphCmd.Flags().StringVar(&cgImage, "image", "", "container image to run the coverage trace in (required unless --load-only)")
	callgraphCmd.Flags().StringVar(&cgArtifactDir, "artifact-dir", "", "directory to write/read the call-graph map (required)")
	callgraphCmd.Flags().BoolVar(&cgLoadOnly, "load-only", false, "skip tracing and just load a previously written map")
	rootCmd.AddCommand(callgraphCmd)
}

func runCallgraph(cmd *cobra.Command, args []string) error {
	if cgArtifactDir == "" {
		return fmt.Errorf("--artifact-dir is required")
	}
	log := logging.For(logging.CallGraph).Sugar()

	if cgLoadOnly {
		m, err := callgraph.Load(cgArtifactDir)
		if err != nil {
			return fmt.Errorf("load call graph: %w", err)
		}
		printCallGraphSummary(log, m)
		return nil
	}

	if cgCloneDir == "" || cgImage == "" {
		return fmt.Errorf("--clone-dir and --image are required unless --load-only")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mgr := container.NewManager()
	c, err := mgr.Create(context.Background(), container.CreateOptions{
		Image:      cgImage,
		Name:       "swesynth-callgraph-" + uuid.NewString(),
		WorkDir:    "/testbed",
		NetworkOff: !cfg.Container.NetworkEnabled,
	})
	if err != nil {
		return fmt.Errorf("create container: %w", err)
	}
	defer c.Remove(context.Background())

	builder := callgraph.NewBuilder(c, "/testbed", cgCloneDir)
	m, err := builder.Build(context.Background(), cfg.CallGraphTimeoutDuration(), cgArtifactDir)
	if err != nil {
		return fmt.Errorf("build call graph: %w", err)
	}

	printCallGraphSummary(log, m)
	return nil
}

func printCallGraphSummary(log interface {
	Infow(msg string, kv ...interface{})
}, m interface {
	Functions() []string
	Tests() []string
}) {
	log.Infow("call graph built", "functions", len(m.Functions()), "tests", len(m.Tests()))
}
