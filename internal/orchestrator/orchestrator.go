package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/FSoft-AI4Code/swesynth-go/internal/artifact"
	"github.com/FSoft-AI4Code/swesynth-go/internal/callgraph"
	"github.com/FSoft-AI4Code/swesynth-go/internal/config"
	"github.com/FSoft-AI4Code/swesynth-go/internal/container"
	"github.com/FSoft-AI4Code/swesynth-go/internal/logging"
	"github.com/FSoft-AI4Code/swesynth-go/internal/mutator"
	"github.com/FSoft-AI4Code/swesynth-go/internal/snapshot"
	"github.com/FSoft-AI4Code/swesynth-go/internal/strategy"
	"github.com/FSoft-AI4Code/swesynth-go/internal/targeter"
	"github.com/FSoft-AI4Code/swesynth-go/internal/testlog"
)

// Job describes one repository run: every commit to sample from, where to
// fetch it, how to test it, and where to write artifacts.
type Job struct {
	RepoSlug      string
	RepoURL       string
	Version       string
	Commits       []string
	Dialect       testlog.Dialect
	PythonVersion string
	RunRoot       string
	CacheDir      string
}

// CommitReport summarizes one commit's outcome across every strategy run
// against it, for the top-level monitor to log and tally.
type CommitReport struct {
	Commit    string
	Survivors int
	Errored   bool
	Err       error
}

// Orchestrator drives a Job to completion: clone-once-commit-many caching,
// commit sampling, per-commit worker fan-out bounded by Runtime's global
// semaphores, and per-strategy quota-bounded mutator runs.
type Orchestrator struct {
	Runtime *Runtime
}

// New constructs an Orchestrator over rt.
func New(rt *Runtime) *Orchestrator {
	return &Orchestrator{Runtime: rt}
}

// Run samples job.Commits down to the configured budget, clones the
// repository once into job.CacheDir, and fans a worker out per sampled
// commit, each bounded by the runtime's global exec semaphore.
func (o *Orchestrator) Run(ctx context.Context, job Job) ([]CommitReport, error) {
	log := logging.For(logging.Orchestrator).Sugar()
	cfg := o.Runtime.Config

	if err := snapshot.EnsureClone(ctx, job.RepoURL, job.CacheDir, cfg.Git.CloneToken); err != nil {
		return nil, fmt.Errorf("orchestrator: ensure clone: %w", err)
	}

	sampled := SampleCommits(job.Commits, cfg.Budget.SampleCommits, cfg.Budget.Seed)
	log.Infow("sampled commits", "repo", job.RepoSlug, "requested", len(job.Commits), "sampled", len(sampled))

	image := imageTag(job.RepoSlug, job.Version)
	if err := o.Runtime.ContainerMgr.EnsureImage(ctx, container.ImageRecipe{
		Tag:        image,
		Dockerfile: DefaultDockerfile(job.PythonVersion),
		BuildDir:   job.CacheDir,
	}); err != nil {
		return nil, fmt.Errorf("orchestrator: ensure image: %w", err)
	}

	reports := make([]CommitReport, len(sampled))
	var completed, errored atomic.Int64

	monitorDone := make(chan struct{})
	go o.monitor(monitorDone, &completed, &errored)

	g, gctx := errgroup.WithContext(ctx)
	for i, commit := range sampled {
		i, commit := i, commit
		g.Go(func() error {
			rep := o.runCommit(gctx, job, image, commit)
			if rep.Errored {
				errored.Add(1)
			} else {
				completed.Add(1)
			}
			reports[i] = rep
			return nil // per-commit errors are captured in the report, not fatal to the group
		})
	}
	err := g.Wait()
	close(monitorDone)
	if err != nil {
		return reports, fmt.Errorf("orchestrator: worker group: %w", err)
	}
	return reports, nil
}

// monitorInterval is how often the orchestrator reports worker progress and
// semaphore state while commits are in flight.
const monitorInterval = 30 * time.Second

// monitor periodically logs completed/errored commit counts and how many
// exec slots are held, until done is closed.
func (o *Orchestrator) monitor(done <-chan struct{}, completed, errored *atomic.Int64) {
	log := logging.For(logging.Orchestrator).Sugar()
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			log.Infow("commit workers in progress",
				"completed", completed.Load(),
				"errored", errored.Load(),
				"exec_slots_in_use", o.Runtime.ExecSlotsInUse(),
				"streams_in_flight", len(container.ActiveStreams()),
			)
		}
	}
}

// runCommit is one commit's full worker lifecycle: acquire an exec slot,
// materialize a worktree, start a container, then run every quota-bounded
// strategy against it in turn, appending survivors to the commit's
// per-strategy journals.
func (o *Orchestrator) runCommit(ctx context.Context, job Job, image, commit string) CommitReport {
	log := logging.For(logging.Orchestrator).Sugar()
	report := CommitReport{Commit: commit}

	if err := o.Runtime.AcquireExecSlot(ctx); err != nil {
		report.Errored, report.Err = true, err
		return report
	}
	defer o.Runtime.ReleaseExecSlot()

	workerDir, err := os.MkdirTemp("", "swesynth-worktree-*")
	if err != nil {
		report.Errored, report.Err = true, fmt.Errorf("orchestrator: mkdtemp: %w", err)
		return report
	}
	defer os.RemoveAll(workerDir)

	if err := snapshot.CloneOrWorktree(ctx, job.CacheDir, workerDir, commit); err != nil {
		report.Errored, report.Err = true, err
		return report
	}
	defer snapshot.RemoveWorktree(context.WithoutCancel(ctx), job.CacheDir, workerDir)

	// uuid suffix keeps the name unique across separate swesynth processes
	// racing on the same commit (two runs, or a run overlapping a replay),
	// which a commit-hash-derived name alone would not guarantee.
	containerName := fmt.Sprintf("swesynth-%s-%s-%s", sanitizeTag(job.RepoSlug), commit[:min8(len(commit))], uuid.NewString())
	c, err := o.Runtime.ContainerMgr.Create(ctx, container.CreateOptions{
		Image:       image,
		Name:        containerName,
		MemoryLimit: o.Runtime.Config.Container.MemoryLimit,
		CPULimit:    o.Runtime.Config.Container.CPULimit,
		NetworkOff:  !o.Runtime.Config.Container.NetworkEnabled,
		WorkDir:     "/testbed",
	})
	if err != nil {
		report.Errored, report.Err = true, fmt.Errorf("orchestrator: create container: %w", err)
		return report
	}
	defer c.Remove(context.WithoutCancel(ctx))

	repo := &snapshot.Repository{Slug: job.RepoSlug, CloneDir: workerDir}
	pristine := snapshot.NewPristine(repo, commit, job.Version)

	quota := StrategyQuota(config.StrategyMix, o.Runtime.Config.Budget.MaxMutations)

	total := 0
	ranAny := false
	for _, name := range []string{"empty_function", "empty_class", "priority_aware"} {
		mutations := quota[name]
		if mutations <= 0 {
			continue
		}
		ranAny = true
		survivors, err := o.runStrategy(ctx, job, pristine, c, workerDir, name, mutations)
		if err != nil {
			if errors.Is(err, container.ErrCorrupted) {
				report.Errored, report.Err = true, err
				return report
			}
			log.Warnw("strategy run failed, continuing with remaining strategies", "commit", commit, "strategy", name, "error", err)
			continue
		}
		total += len(survivors)
		if err := o.appendJournal(job, commit, name, pristine, survivors); err != nil {
			log.Errorw("failed to append journal", "commit", commit, "strategy", name, "error", err)
		}
	}

	if !ranAny {
		// A zero-mutation budget still records the pristine baseline status
		// and call-graph map, so the snapshot directory is complete.
		if err := o.runBaselineOnly(ctx, job, pristine, c, workerDir); err != nil {
			log.Warnw("baseline-only pass failed", "commit", commit, "error", err)
		}
	}

	report.Survivors = total
	return report
}

// runBaselineOnly establishes and persists the pristine baseline and the
// call-graph map for a commit whose strategy quotas are all zero.
func (o *Orchestrator) runBaselineOnly(ctx context.Context, job Job, pristine *snapshot.Snapshot, c *container.Container, workerDir string) error {
	cfg := o.Runtime.Config
	tester := mutator.NewTester(c, "/testbed", pristine.ArtifactDir(job.RunRoot), job.Dialect, cfg.TestTimeoutDuration())
	m := &mutator.Mutator{
		Pristine:         pristine,
		Tester:           tester,
		CallGraphBuilder: callgraph.NewBuilder(c, "/testbed", workerDir),
		RunRoot:          job.RunRoot,
		CallGraphTimeout: cfg.CallGraphTimeoutDuration(),
	}
	return m.EstablishBaseline(ctx)
}

// runStrategy constructs the tester/targeter/mutator stack for one
// (commit, strategy) pair and drives the mutator loop, resuming from any
// prior journal entries for this exact pair so a restart doesn't re-mutate
// targets already recorded.
func (o *Orchestrator) runStrategy(ctx context.Context, job Job, pristine *snapshot.Snapshot, c *container.Container, workerDir, strategyName string, mutations int) ([]mutator.Survivor, error) {
	cfg := o.Runtime.Config

	tester := mutator.NewTester(c, "/testbed", pristine.ArtifactDir(job.RunRoot), job.Dialect, cfg.TestTimeoutDuration())
	env := &strategy.Env{
		CloneDir:          workerDir,
		Targeter:          targeter.New(tester),
		Model:             o.Runtime.Model,
		ModelIdentifier:   cfg.Model.Identifier,
		MutationPerTarget: 1,
		Rand:              rand.New(rand.NewSource(cfg.Budget.Seed)),
	}

	var strat strategy.Strategy
	switch strategyName {
	case "empty_function":
		strat = strategy.NewEmptyFunction(env)
	case "empty_class":
		strat = strategy.NewEmptyClass(env)
	case "priority_aware":
		strat = strategy.NewPriorityAware(env)
	default:
		return nil, fmt.Errorf("orchestrator: unknown strategy %q", strategyName)
	}

	journalPath := artifact.JournalPath(job.RunRoot, job.RepoSlug, pristine.BaseCommit, strategyName)
	existing, err := artifact.ReadJournal(journalPath)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: read journal for resume: %w", err)
	}
	strat.LoadCheckpoint(artifact.MutatedTargets(existing))

	m := &mutator.Mutator{
		Pristine:         pristine,
		Tester:           tester,
		CallGraphBuilder: callgraph.NewBuilder(c, "/testbed", workerDir),
		Strategy:         strat,
		StrategyEnv:      env,
		RunRoot:          job.RunRoot,
		CallGraphTimeout: cfg.CallGraphTimeoutDuration(),
		ExcerptMaxBytes:  8192,
		Budget: mutator.Budget{
			MaxIterations: cfg.Budget.MaxIterations,
			MaxMutations:  mutations,
			MaxCost:       cfg.Budget.MaxCost,
			CostPerCall:   cfg.Budget.CostPerModelCall,
		},
	}

	return m.Run(ctx)
}

// appendJournal converts every survivor into a ResultRecord and appends it
// to the commit+strategy journal.
func (o *Orchestrator) appendJournal(job Job, commit, strategyName string, pristine *snapshot.Snapshot, survivors []mutator.Survivor) error {
	path := artifact.JournalPath(job.RunRoot, job.RepoSlug, commit, strategyName)
	for _, sv := range survivors {
		traces, err := artifact.EncodeTestLogTraces(sv.TestLogExcerpt)
		if err != nil {
			return fmt.Errorf("orchestrator: encode test log traces: %w", err)
		}
		record := artifact.ResultRecord{
			BaseCommit:      commit,
			Origin:          job.RepoSlug,
			Version:         job.Version,
			InstanceID:      sv.Snapshot.InstanceID(),
			UnstagedChanges: sv.Snapshot.UnstagedDiff,
			ReversedDiff:    sv.Snapshot.ReversedDiff,
			TestStatusDiff:  *sv.Snapshot.TestStatusDiff,
			MutationInfo:    *sv.Snapshot.MutationInfo,
			Score:           sv.Score,
			TestLogTraces:   traces,
		}
		if err := artifact.AppendJournalLine(path, record); err != nil {
			return err
		}
	}
	return nil
}

func min8(n int) int {
	if n < 8 {
		return n
	}
	return 8
}
