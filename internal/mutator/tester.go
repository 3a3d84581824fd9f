// Package mutator is the validation funnel: it drives a Strategy's
// candidates through baseline comparison, approximated and expanded
// re-validation, and survivor scoring/emission, bounded by an
// iteration/mutation/cost budget.
package mutator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FSoft-AI4Code/swesynth-go/internal/container"
	"github.com/FSoft-AI4Code/swesynth-go/internal/logging"
	"github.com/FSoft-AI4Code/swesynth-go/internal/status"
	"github.com/FSoft-AI4Code/swesynth-go/internal/testlog"
)

// Tester owns the one long-lived Container for a snapshot's test session
// and knows how to run a subset of tests against a candidate diff. It
// satisfies internal/targeter.TestRunner, so the probe and the funnel
// share the same container-exec path.
type Tester struct {
	Container   *container.Container
	WorkDir     string
	ArtifactDir string
	Dialect     testlog.Dialect
	Timeout     time.Duration
	runCounter  int

	// LastTranscript holds the most recent run's parseable transcript, so
	// the mutator loop can pull a failure excerpt after the expanded
	// re-validation run without threading the text through a return
	// value everywhere RunTests is called.
	LastTranscript string
}

// NewTester constructs a Tester bound to one container and working
// directory.
func NewTester(c *container.Container, workDir, artifactDir string, dialect testlog.Dialect, timeout time.Duration) *Tester {
	return &Tester{Container: c, WorkDir: workDir, ArtifactDir: artifactDir, Dialect: dialect, Timeout: timeout}
}

// RunTests applies diff inside a scoped git-in-docker acquisition, runs
// the project's test command restricted to subset (or the full suite
// when subset is nil/empty), and parses the resulting transcript into a
// TestStatus. A patch-application failure or a fatal log sentinel both
// degrade to the empty TestStatus rather than a Go error, so callers can
// treat "no signal" uniformly; container corruption is the one exception
// and surfaces as an error.
func (t *Tester) RunTests(ctx context.Context, diff string, subset map[string]struct{}) (status.TestStatus, error) {
	log := logging.For(logging.Mutator).Sugar()
	t.runCounter++
	runName := fmt.Sprintf("run-%d", t.runCounter)

	var result status.TestStatus
	var transcript string

	err := t.Container.ApplyPatchScoped(ctx, t.WorkDir, diff, func() error {
		res, err := t.Container.Exec(ctx, t.testCommand(subset), runName, t.Timeout, t.ArtifactDir)
		if err != nil {
			return fmt.Errorf("exec test command: %w", err)
		}
		if res.TimedOut {
			log.Warnw("test run timed out, treating as sentinel failure", "run", runName)
			result = status.EmptyTestStatus()
			return nil
		}
		transcript = wrapSessionMarkers(res.Output)
		result = testlog.Parse(t.Dialect, transcript)
		t.LastTranscript = transcript
		return nil
	})
	if err != nil {
		if errors.Is(err, container.ErrCorrupted) {
			return status.TestStatus{}, err
		}
		log.Warnw("patch application failed, treating as sentinel failure", "run", runName, "error", err)
		return status.EmptyTestStatus(), nil
	}
	return result, nil
}

// LastExcerpt returns the failure-and-error excerpt of the most recent
// run's transcript, capped at maxBytes.
func (t *Tester) LastExcerpt(maxBytes int) string {
	return testlog.ExtractExcerpt(t.Dialect, t.LastTranscript, maxBytes)
}

// testCommand builds the shell command for one test invocation: the full
// suite when subset is empty, otherwise the explicit node-ID list.
func (t *Tester) testCommand(subset map[string]struct{}) string {
	if len(subset) == 0 {
		return "pytest -rA -q"
	}
	ids := make([]string, 0, len(subset))
	for id := range subset {
		ids = append(ids, shellQuote(id))
	}
	return "pytest -rA -q " + strings.Join(ids, " ")
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// wrapSessionMarkers wraps a raw transcript with the start/end session
// markers the testlog dialects look for — the tracer/test command this
// Tester drives doesn't itself print them, so they're added at the
// boundary between "raw container output" and "parseable transcript".
func wrapSessionMarkers(raw string) string {
	return ">>>>> Start Test Output\napplied patch\n" + raw + "\n>>>>> End Test Output\n"
}
