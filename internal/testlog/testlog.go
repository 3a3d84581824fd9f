// Package testlog parses heterogeneous test-runner transcripts: one parser
// per project log dialect, sharing a common marker-bounded framework, plus
// the failure-excerpt extractor used as the generated bug's problem
// statement.
package testlog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/FSoft-AI4Code/swesynth-go/internal/status"
)

// Status is one of the raw per-test outcomes a dialect extractor can
// report before PASSED/XFAIL collapse to passed and FAILED/ERROR collapse
// to failed; SKIPPED is dropped entirely.
type Status string

const (
	StatusPassed  Status = "PASSED"
	StatusFailed  Status = "FAILED"
	StatusError   Status = "ERROR"
	StatusXFail   Status = "XFAIL"
	StatusSkipped Status = "SKIPPED"
)

// Fatal-error sentinels: their presence means the run produced no usable
// signal at all and the caller must treat the result as "run failed, do
// not compare".
var fatalSentinels = []string{
	"APPLY_PATCH_FAIL",
	"RESET_FAILED",
	"TESTS_ERROR",
	"TESTS_TIMEOUT",
	"Failed to reset task environment",
}

// IsFatal reports whether a raw transcript contains a sentinel that means
// parsing must return the empty TestStatus rather than a partial result.
func IsFatal(transcript string) bool {
	for _, s := range fatalSentinels {
		if strings.Contains(transcript, s) {
			return true
		}
	}
	return !strings.Contains(transcript, "applied patch")
}

// Extractor is one project dialect's log-to-status function: given the
// text between the session-start and session-end markers, return the raw
// per-test status map.
type Extractor func(body string) map[string]Status

// Dialect pairs session markers with the extractor that understands the
// text between them.
type Dialect struct {
	Name         string
	StartMarker  string
	EndMarker    string
	Extract      Extractor
	SummaryStart string // marker bounding the failure excerpt from above
	SummaryEnd   string // marker bounding the failure excerpt from below
}

// Registry is the set of known per-project dialects, keyed by name.
// Callers register project-specific dialects at startup; pytest is
// registered by default since it is by far the most common case in the
// project corpus this pipeline targets.
var Registry = map[string]Dialect{
	"pytest": PytestDialect(),
	"django": DjangoDialect(),
}

// Parse runs a dialect's full pipeline: locate the session bounds, hand
// the enclosed text to the extractor, collapse raw statuses to
// pass/fail, and drop SKIPPED. A fatal sentinel anywhere in transcript
// short-circuits to the empty TestStatus.
func Parse(dialect Dialect, transcript string) status.TestStatus {
	if IsFatal(transcript) {
		return status.EmptyTestStatus()
	}

	body, ok := between(transcript, dialect.StartMarker, dialect.EndMarker)
	if !ok {
		return status.EmptyTestStatus()
	}

	raw := dialect.Extract(body)
	var passed, failed []string
	for id, st := range raw {
		switch st {
		case StatusPassed, StatusXFail:
			passed = append(passed, id)
		case StatusFailed, StatusError:
			failed = append(failed, id)
		case StatusSkipped:
			// dropped
		}
	}
	return status.NewTestStatus(passed, failed)
}

// ExtractExcerpt bounds the failure-and-error region of a transcript
// between the dialect's summary markers, then caps its length — the
// generated bug's problem statement.
// maxBytes<=0 disables the cap.
func ExtractExcerpt(dialect Dialect, transcript string, maxBytes int) string {
	body := transcript
	if si := strings.Index(transcript, dialect.SummaryStart); si >= 0 {
		rest := transcript[si+len(dialect.SummaryStart):]
		// Drop the remainder of the marker line: pytest pads it with "="
		// fill that would otherwise match the end marker immediately.
		if nl := strings.Index(rest, "\n"); nl >= 0 {
			rest = rest[nl+1:]
		}
		if dialect.SummaryEnd != "" {
			if ei := strings.Index(rest, dialect.SummaryEnd); ei >= 0 {
				rest = rest[:ei]
			}
		}
		body = rest
	}
	body = strings.TrimSpace(body)
	if maxBytes > 0 && len(body) > maxBytes {
		body = body[:maxBytes] + "\n... (truncated)"
	}
	return body
}

func between(text, start, end string) (string, bool) {
	si := strings.Index(text, start)
	if si < 0 {
		return "", false
	}
	si += len(start)
	rest := text[si:]
	if end == "" {
		return rest, true
	}
	ei := strings.Index(rest, end)
	if ei < 0 {
		return rest, true
	}
	return rest[:ei], true
}

// --- pytest dialect ---

var (
	pytestLineRe  = regexp.MustCompile(`(?m)^(PASSED|FAILED|ERROR|XFAIL|SKIPPED)\s+(\S+)\s*$`)
	pytestAltLine = regexp.MustCompile(`(?m)^(\S+)\s+(PASSED|FAILED|ERROR|XFAIL|SKIPPED)(?:\s+\[.*\])?\s*$`)
)

// PytestDialect parses pytest's "-rA"-style verbose report, which emits
// one line per test in either "STATUS nodeid" or "nodeid STATUS [N%]"
// form depending on flags — both are matched so this dialect tolerates
// either invocation style.
func PytestDialect() Dialect {
	return Dialect{
		Name:         "pytest",
		StartMarker:  ">>>>> Start Test Output",
		EndMarker:    ">>>>> End Test Output",
		SummaryStart: "=========================== short test summary info",
		SummaryEnd:   "====================",
		Extract: func(body string) map[string]Status {
			out := map[string]Status{}
			for _, m := range pytestLineRe.FindAllStringSubmatch(body, -1) {
				out[m[2]] = Status(m[1])
			}
			for _, m := range pytestAltLine.FindAllStringSubmatch(body, -1) {
				if _, ok := out[m[1]]; !ok {
					out[m[1]] = Status(m[2])
				}
			}
			return out
		},
	}
}

// DjangoDialect parses Django's test runner, which reports failures as a
// trailing "FAIL: test_name (module.Class)" / "ERROR: ..." block and
// everything not mentioned there as implicitly passed — so this
// extractor would need the full set of tests that were *collected* to
// fill in the passes. It returns only the failures/errors it can see;
// passing tests are absent from its result.
func DjangoDialect() Dialect {
	re := regexp.MustCompile(`(?m)^(FAIL|ERROR): (\S+) \(([\w.]+)\)`)
	return Dialect{
		Name:         "django",
		StartMarker:  ">>>>> Start Test Output",
		EndMarker:    ">>>>> End Test Output",
		SummaryStart: "FAILED (",
		SummaryEnd:   "",
		Extract: func(body string) map[string]Status {
			out := map[string]Status{}
			for _, m := range re.FindAllStringSubmatch(body, -1) {
				nodeID := fmt.Sprintf("%s::%s", m[3], m[2])
				if m[1] == "ERROR" {
					out[nodeID] = StatusError
				} else {
					out[nodeID] = StatusFailed
				}
			}
			return out
		},
	}
}
