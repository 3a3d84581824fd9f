package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/FSoft-AI4Code/swesynth-go/internal/artifact"
	"github.com/FSoft-AI4Code/swesynth-go/internal/container"
	"github.com/FSoft-AI4Code/swesynth-go/internal/logging"
	"github.com/FSoft-AI4Code/swesynth-go/internal/mutator"
	"github.com/FSoft-AI4Code/swesynth-go/internal/testlog"
)

var (
	replayJournal  string
	replayInstance string
	replayImage    string
	replayDialect  string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-validate one journal line's recorded diff against a fresh container",
	RunE:  runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayJournal, "journal", "", "path to a journal file written by 'run' (required)")
	replayCmd.Flags().StringVar(&replayInstance, "instance-id", "", "instance_id of the journal line to replay (required)")
	replayCmd.Flags().StringVar(&replayImage, "image", "", "container image to replay against (required)")
	replayCmd.Flags().StringVar(&replayDialect, "dialect", "pytest", "test-log dialect name (pytest, django)")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	if replayJournal == "" || replayInstance == "" || replayImage == "" {
		return fmt.Errorf("--journal, --instance-id, and --image are required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	records, err := artifact.ReadJournal(replayJournal)
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	var record *artifact.ResultRecord
	for i := range records {
		if records[i].InstanceID == replayInstance {
			record = &records[i]
			break
		}
	}
	if record == nil {
		return fmt.Errorf("no journal line found with instance_id %q", replayInstance)
	}

	ctx := context.Background()
	mgr := container.NewManager()
	c, err := mgr.Create(ctx, container.CreateOptions{
		Image:      replayImage,
		Name:       "swesynth-replay-" + uuid.NewString(),
		WorkDir:    "/testbed",
		NetworkOff: !cfg.Container.NetworkEnabled,
	})
	if err != nil {
		return fmt.Errorf("create container: %w", err)
	}
	defer c.Remove(context.WithoutCancel(ctx))

	dialect, ok := testlog.Registry[replayDialect]
	if !ok {
		dialect = testlog.PytestDialect()
	}
	tester := mutator.NewTester(c, "/testbed", "", dialect, cfg.TestTimeoutDuration())

	subset := make(map[string]struct{})
	for _, t := range record.TestStatusDiff.AllTests() {
		subset[t] = struct{}{}
	}

	log := logging.For(logging.Mutator).Sugar()

	before, err := tester.RunTests(ctx, "", subset)
	if err != nil {
		return fmt.Errorf("run baseline subset: %w", err)
	}
	after, err := tester.RunTests(ctx, record.UnstagedChanges, subset)
	if err != nil {
		return fmt.Errorf("run mutated subset: %w", err)
	}
	observed := before.Diff(after)

	reproduced := len(observed.PassToFail) == len(record.TestStatusDiff.PassToFail)
	for i := 0; reproduced && i < len(observed.PassToFail); i++ {
		reproduced = observed.PassToFail[i] == record.TestStatusDiff.PassToFail[i]
	}
	log.Infow("replay complete",
		"instance_id", record.InstanceID,
		"recorded_pass_to_fail", len(record.TestStatusDiff.PassToFail),
		"observed_pass_to_fail", len(observed.PassToFail),
		"reproduced", reproduced,
	)
	return nil
}
