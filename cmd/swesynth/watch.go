package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/FSoft-AI4Code/swesynth-go/internal/artifact"
	"github.com/FSoft-AI4Code/swesynth-go/internal/logging"
)

var watchJournal string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Tail a journal file, logging each survivor as it is appended",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchJournal, "journal", "", "path to a journal file written by 'run' (required)")
	rootCmd.AddCommand(watchCmd)
}

// runWatch follows watchJournal the way `tail -f` would, logging each new
// ResultRecord as its line is written. Reads from offset zero on startup so
// a journal that already has content gets replayed once before watching for
// new appends.
func runWatch(cmd *cobra.Command, args []string) error {
	if watchJournal == "" {
		return fmt.Errorf("--journal is required")
	}
	log := logging.For(logging.Orchestrator).Sugar()

	if _, err := os.Stat(watchJournal); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("stat journal: %w", err)
		}
		if err := os.MkdirAll(parentDir(watchJournal), 0o755); err != nil {
			return fmt.Errorf("create journal dir: %w", err)
		}
		if f, err := os.OpenFile(watchJournal, os.O_CREATE|os.O_WRONLY, 0o644); err != nil {
			return fmt.Errorf("create journal: %w", err)
		} else {
			f.Close()
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("new watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(parentDir(watchJournal)); err != nil {
		return fmt.Errorf("watch journal directory: %w", err)
	}

	seen := 0
	replay := func() error {
		records, err := artifact.ReadJournal(watchJournal)
		if err != nil {
			return err
		}
		for _, r := range records[seen:] {
			log.Infow("survivor appended", "instance_id", r.InstanceID, "score", r.Score,
				"pass_to_fail", len(r.TestStatusDiff.PassToFail), "fail_to_pass", len(r.TestStatusDiff.FailToPass))
		}
		seen = len(records)
		return nil
	}
	if err := replay(); err != nil {
		return fmt.Errorf("initial journal read: %w", err)
	}

	ctx := context.Background()
	log.Infow("watching journal for new survivors", "path", watchJournal)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != watchJournal {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := replay(); err != nil {
				log.Warnw("journal read failed, will retry on next write", "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnw("watcher error", "error", err)
		}
	}
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
