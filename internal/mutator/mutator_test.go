package mutator

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FSoft-AI4Code/swesynth-go/internal/patch"
	"github.com/FSoft-AI4Code/swesynth-go/internal/snapshot"
	"github.com/FSoft-AI4Code/swesynth-go/internal/status"
	"github.com/FSoft-AI4Code/swesynth-go/internal/strategy"
)

// scriptedRunner returns a canned TestStatus per RunTests call, in order.
type scriptedRunner struct {
	results []status.TestStatus
	calls   int
	subsets []map[string]struct{}
}

func (r *scriptedRunner) RunTests(ctx context.Context, diff string, subset map[string]struct{}) (status.TestStatus, error) {
	r.subsets = append(r.subsets, subset)
	if r.calls >= len(r.results) {
		return status.EmptyTestStatus(), nil
	}
	res := r.results[r.calls]
	r.calls++
	return res, nil
}

func (r *scriptedRunner) LastExcerpt(maxBytes int) string { return "FAILED t - boom" }

// stubStrategy satisfies strategy.Strategy for funnel tests; Propose is
// never called because processCandidate is driven directly.
type stubStrategy struct{}

func (stubStrategy) Name() string { return "stub" }
func (stubStrategy) Propose(ctx context.Context) (<-chan strategy.Candidate, <-chan error) {
	c := make(chan strategy.Candidate)
	e := make(chan error, 1)
	close(c)
	close(e)
	return c, e
}
func (stubStrategy) Score(info status.MutationInfo, diff status.TestStatusDiff) float64 { return 1.0 }
func (stubStrategy) LoadCheckpoint(mutated map[string]struct{})                        {}

func initFunnelRepo(t *testing.T) (dir, commit string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir = t.TempDir()

	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}

	run("init")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	if err := os.WriteFile(filepath.Join(dir, "mod.py"), []byte("def f():\n    return 1\n"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	run("add", "-A")
	run("commit", "-m", "initial")

	out, err := exec.Command("git", "-C", dir, "rev-parse", "HEAD").Output()
	if err != nil {
		t.Fatalf("rev-parse: %v", err)
	}
	return dir, strings.TrimSpace(string(out))
}

func funnelFixture(t *testing.T, runner *scriptedRunner) (*Mutator, strategy.Candidate, status.TestStatus, *status.TestFunctionMap) {
	t.Helper()
	dir, commit := initFunnelRepo(t)

	repo := &snapshot.Repository{Slug: "test__repo", CloneDir: dir}
	pristine := snapshot.NewPristine(repo, commit, "")

	diff, err := patch.Produce(context.Background(), dir, "mod.py", "def f():\n    return 2\n")
	if err != nil {
		t.Fatalf("produce diff: %v", err)
	}
	if err := patch.Revert(context.Background(), dir); err != nil {
		t.Fatalf("revert: %v", err)
	}

	m := &Mutator{
		Pristine: pristine,
		Tester:   runner,
		Strategy: stubStrategy{},
		RunRoot:  t.TempDir(),
	}
	cand := strategy.Candidate{
		Diff: diff,
		Info: status.MutationInfo{
			ChangedTargets: []status.Target{{RelPath: "mod.py", Kind: status.KindFunction, Name: "f", StartLine: 1, EndLine: 2}},
			Strategy:       "stub",
		},
	}
	baseline := status.NewTestStatus([]string{"tests/test_mod.py::test_a", "tests/test_mod.py::test_b"}, nil)
	callGraph := status.NewTestFunctionMapFromTestToFuncs(map[string][]string{
		"tests/test_mod.py::test_a": {"mod.py::f"},
	})
	return m, cand, baseline, callGraph
}

func TestProcessCandidateExpandedRunReplacesProvisional(t *testing.T) {
	// Approximated subset: only test_a fails. Expanded file-level rerun:
	// test_b in the same file fails too; the recorded diff must be the
	// expanded result, not the provisional one.
	runner := &scriptedRunner{results: []status.TestStatus{
		status.NewTestStatus(nil, []string{"tests/test_mod.py::test_a"}),
		status.NewTestStatus(nil, []string{"tests/test_mod.py::test_a", "tests/test_mod.py::test_b"}),
	}}
	m, cand, baseline, callGraph := funnelFixture(t, runner)

	survivor, skipped, err := m.processCandidate(context.Background(), baseline, callGraph, cand)
	if err != nil {
		t.Fatalf("processCandidate: %v", err)
	}
	if skipped != "" {
		t.Fatalf("expected a survivor, got skip reason %q", skipped)
	}

	got := survivor.Snapshot.TestStatusDiff
	if len(got.PassToFail) != 2 {
		t.Fatalf("expected expanded PASS_TO_FAIL with both tests, got %v", got.PassToFail)
	}
	if len(got.PassToPass) != 0 {
		t.Fatalf("expected no PASS_TO_PASS after expansion, got %v", got.PassToPass)
	}
	if runner.calls != 2 {
		t.Fatalf("expected exactly two test runs (approximated + expanded), got %d", runner.calls)
	}
	if survivor.Snapshot.ReversedDiff == "" {
		t.Fatalf("expected a reversed diff on the survivor")
	}
	if !strings.Contains(survivor.Snapshot.InstanceID(), "test__repo-") {
		t.Fatalf("unexpected instance id %q", survivor.Snapshot.InstanceID())
	}
}

func TestProcessCandidateSkipsWhenNoBehavioralChange(t *testing.T) {
	runner := &scriptedRunner{results: []status.TestStatus{
		status.NewTestStatus([]string{"tests/test_mod.py::test_a"}, nil),
	}}
	m, cand, baseline, callGraph := funnelFixture(t, runner)

	survivor, skipped, err := m.processCandidate(context.Background(), baseline, callGraph, cand)
	if err != nil {
		t.Fatalf("processCandidate: %v", err)
	}
	if survivor != nil || skipped == "" {
		t.Fatalf("expected a skip, got survivor=%v skipped=%q", survivor, skipped)
	}
	if runner.calls != 1 {
		t.Fatalf("expected the funnel to stop after the approximated run, got %d runs", runner.calls)
	}
}

func TestProcessCandidateSkipsBugFixOnlyCandidates(t *testing.T) {
	// Baseline has test_a failing; the candidate makes it pass. That is a
	// fix, not a bug introduction, and must not survive.
	runner := &scriptedRunner{results: []status.TestStatus{
		status.NewTestStatus([]string{"tests/test_mod.py::test_a"}, nil),
	}}
	m, cand, _, callGraph := funnelFixture(t, runner)
	baseline := status.NewTestStatus([]string{"tests/test_mod.py::test_b"}, []string{"tests/test_mod.py::test_a"})

	survivor, skipped, err := m.processCandidate(context.Background(), baseline, callGraph, cand)
	if err != nil {
		t.Fatalf("processCandidate: %v", err)
	}
	if survivor != nil {
		t.Fatalf("expected no survivor for a fix-only candidate")
	}
	if !strings.Contains(skipped, "PASS_TO_FAIL") {
		t.Fatalf("expected the no-PASS_TO_FAIL skip reason, got %q", skipped)
	}
}

func TestProcessCandidateSkipsEmptyDiff(t *testing.T) {
	runner := &scriptedRunner{}
	m, cand, baseline, callGraph := funnelFixture(t, runner)
	cand.Diff = ""

	survivor, skipped, err := m.processCandidate(context.Background(), baseline, callGraph, cand)
	if err != nil {
		t.Fatalf("processCandidate: %v", err)
	}
	if survivor != nil || skipped == "" {
		t.Fatalf("expected an empty-diff skip")
	}
	if runner.calls != 0 {
		t.Fatalf("expected no test runs for an empty diff, got %d", runner.calls)
	}
}

func TestProcessCandidateMissingTestsCountAsFailed(t *testing.T) {
	// The approximated run reports only test_a (failed); test_b produced no
	// result line at all. It must be treated as failed, not dropped, so the
	// expanded rerun still sees it.
	runner := &scriptedRunner{results: []status.TestStatus{
		status.NewTestStatus(nil, []string{"tests/test_mod.py::test_a"}),
		status.NewTestStatus(nil, []string{"tests/test_mod.py::test_a", "tests/test_mod.py::test_b"}),
	}}
	m, cand, _, _ := funnelFixture(t, runner)
	baseline := status.NewTestStatus([]string{"tests/test_mod.py::test_a", "tests/test_mod.py::test_b"}, nil)
	callGraph := status.NewTestFunctionMapFromTestToFuncs(map[string][]string{
		"tests/test_mod.py::test_a": {"mod.py::f"},
		"tests/test_mod.py::test_b": {"mod.py::f"},
	})

	survivor, skipped, err := m.processCandidate(context.Background(), baseline, callGraph, cand)
	if err != nil {
		t.Fatalf("processCandidate: %v", err)
	}
	if skipped != "" {
		t.Fatalf("expected a survivor, got skip reason %q", skipped)
	}
	if len(survivor.Snapshot.TestStatusDiff.PassToFail) != 2 {
		t.Fatalf("expected the unreported test to count as failed, got %v", survivor.Snapshot.TestStatusDiff.PassToFail)
	}
}
