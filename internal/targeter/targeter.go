// Package targeter implements the empty-body probe: a cheap
// necessary-precondition check that a mutation strategy's target actually
// matters, by running just the "empty body" diff against a candidate test
// subset and confirming it perturbs at least one of them.
package targeter

import (
	"context"
	"fmt"

	"github.com/FSoft-AI4Code/swesynth-go/internal/logging"
	"github.com/FSoft-AI4Code/swesynth-go/internal/status"
)

// TestRunner is the narrow capability this probe (and the mutator loop)
// needs from a Tester: run a diff against a subset of tests inside the
// snapshot's container and report the resulting status. Defined here rather than imported from a
// concrete Tester type so this package has no dependency on
// internal/container or internal/mutator: a Tester owns its targeters, so
// the targeter must not import its owner.
type TestRunner interface {
	RunTests(ctx context.Context, diff string, subset map[string]struct{}) (status.TestStatus, error)
}

// EmptyBodyTargeter runs the empty-body confirmation check.
type EmptyBodyTargeter struct {
	Runner TestRunner
}

// New constructs an EmptyBodyTargeter over a TestRunner.
func New(runner TestRunner) *EmptyBodyTargeter {
	return &EmptyBodyTargeter{Runner: runner}
}

// Confirm runs emptyBodyDiff against candidateSubset and returns
// PASS_TO_FAIL ∪ FAIL_TO_PASS restricted to that subset, compared against
// baseline. An empty return means emptying the target did
// not perturb any test on paper — the strategy must reject the target.
func (t *EmptyBodyTargeter) Confirm(ctx context.Context, emptyBodyDiff string, baseline status.TestStatus, candidateSubset map[string]struct{}) (map[string]struct{}, error) {
	log := logging.For(logging.Strategy).Sugar()

	if len(candidateSubset) == 0 {
		return nil, nil
	}

	shrunkBaseline := baseline.ShrinkTo(candidateSubset)

	candidateStatus, err := t.Runner.RunTests(ctx, emptyBodyDiff, candidateSubset)
	if err != nil {
		return nil, fmt.Errorf("targeter: run empty-body diff: %w", err)
	}
	if candidateStatus.IsEmpty() {
		log.Debugw("empty-body probe produced no signal, treating as sentinel failure")
		return nil, nil
	}
	candidateStatus = candidateStatus.FillMissingFrom(shrunkBaseline)

	diff := shrunkBaseline.Diff(candidateStatus)
	perturbed := map[string]struct{}{}
	for _, id := range diff.PassToFail {
		perturbed[id] = struct{}{}
	}
	for _, id := range diff.FailToPass {
		perturbed[id] = struct{}{}
	}
	return perturbed, nil
}
