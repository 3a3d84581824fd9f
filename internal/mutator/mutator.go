package mutator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FSoft-AI4Code/swesynth-go/internal/callgraph"
	"github.com/FSoft-AI4Code/swesynth-go/internal/container"
	"github.com/FSoft-AI4Code/swesynth-go/internal/logging"
	"github.com/FSoft-AI4Code/swesynth-go/internal/patch"
	"github.com/FSoft-AI4Code/swesynth-go/internal/snapshot"
	"github.com/FSoft-AI4Code/swesynth-go/internal/status"
	"github.com/FSoft-AI4Code/swesynth-go/internal/strategy"
)

// Survivor is one candidate that passed the three-stage validation
// funnel, carrying the mutated Snapshot (its UnstagedDiff, ReversedDiff,
// TestStatusDiff, and MutationInfo), the Strategy's score, and the
// problem-statement excerpt.
type Survivor struct {
	Snapshot       *snapshot.Snapshot
	Score          float64
	TestLogExcerpt string
}

// Runner is the capability the funnel needs from its Tester; *Tester
// satisfies it.
type Runner interface {
	RunTests(ctx context.Context, diff string, subset map[string]struct{}) (status.TestStatus, error)
	LastExcerpt(maxBytes int) string
}

// Mutator drives one Strategy's candidates through the validation funnel
// for one pristine snapshot.
type Mutator struct {
	Pristine         *snapshot.Snapshot
	Tester           Runner
	CallGraphBuilder *callgraph.Builder
	Strategy         strategy.Strategy
	StrategyEnv      *strategy.Env
	RunRoot          string
	CallGraphTimeout time.Duration
	ExcerptMaxBytes  int

	Budget Budget
}

// Run executes the funnel: baseline, call-graph build, then the
// per-candidate loop, bounded by Budget.
func (m *Mutator) Run(ctx context.Context) ([]Survivor, error) {
	log := logging.For(logging.Mutator).Sugar()

	baseline, callGraph, err := m.setup(ctx)
	if err != nil {
		return nil, err
	}

	pctx, cancel := context.WithCancel(ctx)
	defer cancel()
	candidates, errc := m.Strategy.Propose(pctx)

	var survivors []Survivor
	stopped := false
	for cand := range candidates {
		if m.Budget.Exhausted() {
			log.Infow("budget exhausted, stopping funnel",
				"iterations", m.Budget.Iterations(), "mutations", m.Budget.Mutations(), "spent", m.Budget.Spent())
			stopped = true
			break
		}
		m.Budget.Tick()

		survivor, skipped, err := m.processCandidate(ctx, baseline, callGraph, cand)
		if err != nil {
			if errors.Is(err, container.ErrCorrupted) {
				return survivors, fmt.Errorf("mutator: container corrupted, aborting commit: %w", err)
			}
			log.Warnw("candidate processing error, skipping", "targets", cand.Info.ChangedTargetIDs(), "error", err)
			continue
		}
		if skipped != "" {
			log.Debugw("candidate skipped", "targets", cand.Info.ChangedTargetIDs(), "reason", skipped)
			continue
		}

		m.Budget.RecordSurvivor()
		survivors = append(survivors, *survivor)
	}

	if stopped {
		// Release a strategy blocked on sending its next candidate.
		cancel()
		for range candidates {
		}
	}
	if err := <-errc; err != nil && !(stopped && errors.Is(err, context.Canceled)) {
		return survivors, fmt.Errorf("mutator: strategy propose: %w", err)
	}
	return survivors, nil
}

// setup runs the baseline suite and builds (or loads) the call-graph map
//, wiring both into StrategyEnv before the strategy
// is allowed to enumerate targets.
func (m *Mutator) setup(ctx context.Context) (status.TestStatus, *status.TestFunctionMap, error) {
	log := logging.For(logging.Mutator).Sugar()

	log.Infow("running baseline suite")
	baseline, err := m.Tester.RunTests(ctx, "", nil)
	if err != nil {
		return status.TestStatus{}, nil, fmt.Errorf("mutator: baseline run: %w", err)
	}
	if baseline.IsEmpty() {
		return status.TestStatus{}, nil, fmt.Errorf("mutator: baseline status is empty, project is broken in this container")
	}

	pristineDir := m.Pristine.ArtifactDir(m.RunRoot)
	callGraphMap, err := callgraph.Load(pristineDir)
	if err != nil {
		log.Infow("no cached call-graph map, building one")
		callGraphMap, err = m.CallGraphBuilder.Build(ctx, m.CallGraphTimeout, pristineDir)
		if err != nil {
			return status.TestStatus{}, nil, fmt.Errorf("mutator: build call-graph map: %w", err)
		}
	}

	if err := m.Pristine.Persist(m.RunRoot, baseline); err != nil {
		log.Errorw("failed to persist pristine artifacts", "error", err)
	}

	if m.StrategyEnv != nil {
		m.StrategyEnv.Baseline = baseline
		m.StrategyEnv.CallGraph = callGraphMap
	}

	return baseline, callGraphMap, nil
}

// EstablishBaseline runs the pristine suite and builds (or loads) the
// call-graph map, persisting both, without consuming any candidates. Used
// when a commit's mutation quota is zero but its baseline artifacts are
// still wanted.
func (m *Mutator) EstablishBaseline(ctx context.Context) error {
	_, _, err := m.setup(ctx)
	return err
}

// processCandidate runs one candidate through the funnel: the approximated
// subset run, the no-change and no-break rejections, and the expanded
// re-validation. It returns a non-nil Survivor on success, or a non-empty
// skip reason (never both).
func (m *Mutator) processCandidate(ctx context.Context, baseline status.TestStatus, callGraph *status.TestFunctionMap, cand strategy.Candidate) (*Survivor, string, error) {
	if patch.IsEmpty(cand.Diff) {
		return nil, "empty diff after repair", nil
	}

	related := callGraph.GetRelatedTests(cand.Info.ChangedTargets)
	if len(related) == 0 {
		return nil, "no related tests in call-graph map", nil
	}

	shrunkBaseline := baseline.ShrinkTo(related)
	candidateStatus, err := m.Tester.RunTests(ctx, cand.Diff, related)
	if err != nil {
		return nil, "", fmt.Errorf("run candidate on approximated subset: %w", err)
	}
	if candidateStatus.IsEmpty() {
		return nil, "sentinel failure on approximated subset", nil
	}
	// A test that should have run but produced no result line counts as
	// failed, never as silently dropped.
	candidateStatus = candidateStatus.FillMissingFrom(shrunkBaseline)
	if shrunkBaseline.Equal(candidateStatus) {
		return nil, "no behavioral change", nil
	}

	provisional := shrunkBaseline.Diff(candidateStatus)
	if len(provisional.PassToFail) == 0 {
		return nil, "no PASS_TO_FAIL transitions (possible bug-fix, not bug-introduction)", nil
	}

	// Re-validate on the expanded related-file set. The provisional diff is
	// discarded entirely; the final TestStatusDiff is always the one obtained
	// from this expanded run.
	changedFiles := provisional.ChangedTestFiles()
	expandedSubset := baseline.TestsInFiles(changedFiles)
	expandedBaseline := baseline.ShrinkTo(expandedSubset)

	expandedStatus, err := m.Tester.RunTests(ctx, cand.Diff, expandedSubset)
	if err != nil {
		return nil, "", fmt.Errorf("run candidate on expanded subset: %w", err)
	}
	if expandedStatus.IsEmpty() {
		return nil, "sentinel failure on expanded subset", nil
	}
	expandedStatus = expandedStatus.FillMissingFrom(expandedBaseline)

	final := expandedBaseline.Diff(expandedStatus)
	if len(final.PassToFail) == 0 {
		return nil, "no PASS_TO_FAIL transitions after expansion", nil
	}

	mutated, err := m.Pristine.CopyWithChanges(cand.Diff, &cand.Info)
	if err != nil {
		return nil, "", fmt.Errorf("copy snapshot with changes: %w", err)
	}

	reversed, err := m.Pristine.GetReversedDiff(ctx, cand.Diff)
	if err != nil {
		return nil, "", fmt.Errorf("compute reversed diff: %w", err)
	}
	mutated.ReversedDiff = reversed
	mutated.TestStatusDiff = &final

	score := m.Strategy.Score(cand.Info, final)
	mutated.Score = &score

	excerpt := m.Tester.LastExcerpt(m.ExcerptMaxBytes)
	mutated.TestLogExcerpt = excerpt

	if err := mutated.Persist(m.RunRoot, expandedStatus); err != nil {
		logging.For(logging.Mutator).Sugar().Errorw("failed to persist survivor artifacts", "error", err)
	}

	return &Survivor{Snapshot: mutated, Score: score, TestLogExcerpt: excerpt}, "", nil
}
