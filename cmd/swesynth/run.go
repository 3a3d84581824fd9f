package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FSoft-AI4Code/swesynth-go/internal/logging"
	"github.com/FSoft-AI4Code/swesynth-go/internal/orchestrator"
	"github.com/FSoft-AI4Code/swesynth-go/internal/testlog"
)

var (
	runRepoSlug      string
	runRepoURL       string
	runVersion       string
	runCommitsFile   string
	runRunRoot       string
	runCacheDir      string
	runPythonVersion string
	runDialect       string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the per-commit mutation-validation orchestrator over a repository",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runRepoSlug, "repo-slug", "", "repository slug, e.g. psf__requests (required)")
	runCmd.Flags().StringVar(&runRepoURL, "repo-url", "", "git URL to clone (required)")
	runCmd.Flags().StringVar(&runVersion, "version", "", "version tag for test-dialect/image lookup")
	runCmd.Flags().StringVar(&runCommitsFile, "commits-file", "", "path to a newline-delimited list of candidate base commits (required)")
	runCmd.Flags().StringVar(&runRunRoot, "run-root", "./swesynth-run", "directory artifacts and journals are written under")
	runCmd.Flags().StringVar(&runCacheDir, "cache-dir", "", "directory the repository is cloned into once (defaults to config's git.cache_dir)")
	runCmd.Flags().StringVar(&runPythonVersion, "python-version", "3.11", "python version the per-project image is based on")
	runCmd.Flags().StringVar(&runDialect, "dialect", "pytest", "test-log dialect name (pytest, django)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	if runRepoSlug == "" || runRepoURL == "" || runCommitsFile == "" {
		return fmt.Errorf("--repo-slug, --repo-url, and --commits-file are required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	commits, err := readCommitsFile(runCommitsFile)
	if err != nil {
		return fmt.Errorf("read commits file: %w", err)
	}
	if len(commits) == 0 {
		return fmt.Errorf("commits file %s named no commits", runCommitsFile)
	}

	dialect, ok := testlog.Registry[runDialect]
	if !ok {
		return fmt.Errorf("unknown dialect %q", runDialect)
	}

	cacheDir := runCacheDir
	if cacheDir == "" {
		cacheDir = cfg.Git.CacheDir + "/" + runRepoSlug
	}

	rt := orchestrator.NewRuntime(cfg)
	orch := orchestrator.New(rt)

	job := orchestrator.Job{
		RepoSlug:      runRepoSlug,
		RepoURL:       runRepoURL,
		Version:       runVersion,
		Commits:       commits,
		Dialect:       dialect,
		PythonVersion: runPythonVersion,
		RunRoot:       runRunRoot,
		CacheDir:      cacheDir,
	}

	log := logging.For(logging.Orchestrator).Sugar()
	reports, err := orch.Run(context.Background(), job)
	if err != nil {
		return fmt.Errorf("orchestrator run: %w", err)
	}

	total, errored := 0, 0
	for _, r := range reports {
		total += r.Survivors
		if r.Errored {
			errored++
			log.Errorw("commit worker failed", "commit", r.Commit, "error", r.Err)
		} else {
			log.Infow("commit worker finished", "commit", r.Commit, "survivors", r.Survivors)
		}
	}
	log.Infow("run finished", "commits", len(reports), "survivors", total, "errored", errored)
	return nil
}

// readCommitsFile reads a newline-delimited list of commit SHAs, skipping
// blank lines and "#"-prefixed comments.
func readCommitsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var commits []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		commits = append(commits, line)
	}
	return commits, scanner.Err()
}
