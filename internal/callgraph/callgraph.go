// Package callgraph builds the dynamic test-to-function map: it injects a
// coverage-per-test tracer into a container, runs the project's test suite
// once, and derives a TestFunctionMap by mapping every line coverage.py
// recorded under a given test's context to the function that line falls
// inside, via internal/pysource's AST spans.
package callgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/FSoft-AI4Code/swesynth-go/internal/artifact"
	"github.com/FSoft-AI4Code/swesynth-go/internal/container"
	"github.com/FSoft-AI4Code/swesynth-go/internal/logging"
	"github.com/FSoft-AI4Code/swesynth-go/internal/pysource"
	"github.com/FSoft-AI4Code/swesynth-go/internal/status"
)

// tracerScript drives coverage.py with per-test dynamic contexts enabled
// in a single combined run (coverage.py natively tags each recorded line
// with the active test context, so no per-test re-run is needed to get a
// per-test→line mapping) and dumps a contexts-annotated JSON coverage
// report the host side can parse.
const tracerScript = `#!/bin/sh
set -e
cd %q
rm -f .coverage swesynth_callgraph.json
COVERAGE_RCFILE=/tmp/swesynth.coveragerc coverage run -m pytest --cov-context=test -p no:cacheprovider -q || true
COVERAGE_RCFILE=/tmp/swesynth.coveragerc coverage json -o swesynth_callgraph.json --show-contexts
cat swesynth_callgraph.json
`

// tracerCoverageRC is the rcfile pushed alongside the script so the
// tracer's own dynamic_context/branch/parallel settings win regardless of
// what the project's own.coveragerc contains: using
// a dedicated rcfile (named via COVERAGE_RCFILE) sidesteps coverage.py
// merging project settings in,
// rather than patching the project file in place.
const tracerCoverageRC = `[run]
branch = False
parallel = False
dynamic_context = test_function
`

// SanitizeCoverageConfig disables the settings that would conflict with
// the tracer's own dynamic-context tracking in an existing project
// .coveragerc-style ini/toml text, for the case a project's test runner
// invocation hardcodes "--rcfile" to its own file and can't be overridden
//.
func SanitizeCoverageConfig(text string) string {
	replacements := []struct {
		re   *regexp.Regexp
		with string
	}{
		{regexp.MustCompile(`(?m)^(\s*dynamic_context\s*=\s*).+$`), "${1}none"},
		{regexp.MustCompile(`(?m)^(\s*branch\s*=\s*).+$`), "${1}False"},
		{regexp.MustCompile(`(?m)^(\s*parallel\s*=\s*).+$`), "${1}False"},
	}
	for _, r := range replacements {
		text = r.re.ReplaceAllString(text, r.with)
	}
	return text
}

// Builder produces a TestFunctionMap for one pristine snapshot.
type Builder struct {
	Container *container.Container
	// WorkDir is the repository path inside the container (e.g. /testbed).
	WorkDir string
	// CloneDir is the pristine repository's path on the host, used to
	// resolve recorded line numbers to enclosing functions via AST spans
	// — resolution happens on the host rather than re-parsing inside the
	// container, since the host already holds an identical checkout.
	CloneDir string
	Parser   *pysource.Parser
}

// NewBuilder constructs a Builder for one container+checkout pair.
func NewBuilder(c *container.Container, workDir, cloneDir string) *Builder {
	return &Builder{Container: c, WorkDir: workDir, CloneDir: cloneDir, Parser: pysource.New()}
}

// coverageJSON is the subset of `coverage json --show-contexts` output
// this builder needs: per-file, per-line-number list of context strings.
// Context strings are "test_node_id|run" or "" for untested setup code;
// the "|run" suffix (and bare "") are stripped/skipped during mapping.
type coverageJSON struct {
	Files map[string]struct {
		Contexts map[string][]string `json:"contexts"`
	} `json:"files"`
}

// buildMu serializes call-graph builds process-wide: the tracer runs a
// whole test suite under coverage and is the heaviest operation in the
// pipeline, so concurrent commits take turns.
var buildMu sync.Mutex

// Build runs the tracer in the container under timeout, pulls the dump
// file out, and derives a TestFunctionMap. If artifactDir is non-empty,
// the map is persisted there as test2function_mapping.json.zst; only the
// pristine (hash=original) snapshot's directory should receive one.
func (b *Builder) Build(ctx context.Context, timeout time.Duration, artifactDir string) (*status.TestFunctionMap, error) {
	buildMu.Lock()
	defer buildMu.Unlock()

	log := logging.For(logging.CallGraph).Sugar()

	rcPath := filepath.Join(os.TempDir(), "swesynth.coveragerc")
	if err := os.WriteFile(rcPath, []byte(tracerCoverageRC), 0644); err != nil {
		return nil, fmt.Errorf("callgraph: write rcfile: %w", err)
	}
	if err := b.Container.CopyIn(ctx, rcPath, "/tmp/swesynth.coveragerc"); err != nil {
		return nil, fmt.Errorf("callgraph: copy rcfile: %w", err)
	}

	scriptPath := filepath.Join(os.TempDir(), "swesynth_tracer.sh")
	script := fmt.Sprintf(tracerScript, b.WorkDir)
	if err := os.WriteFile(scriptPath, []byte(script), 0755); err != nil {
		return nil, fmt.Errorf("callgraph: write tracer script: %w", err)
	}
	if err := b.Container.CopyIn(ctx, scriptPath, "/tmp/swesynth_tracer.sh"); err != nil {
		return nil, fmt.Errorf("callgraph: copy tracer script: %w", err)
	}

	log.Infow("running call-graph tracer", "workdir", b.WorkDir, "timeout", timeout)
	result, err := b.Container.Exec(ctx, "sh /tmp/swesynth_tracer.sh", "callgraph", timeout, artifactDir)
	if err != nil {
		return nil, fmt.Errorf("callgraph: exec tracer: %w", err)
	}
	if result.TimedOut {
		return nil, fmt.Errorf("callgraph: tracer timed out after %s", timeout)
	}

	dumpPath := b.WorkDir + "/swesynth_callgraph.json"
	raw, err := b.Container.ReadFile(ctx, dumpPath)
	if err != nil {
		return nil, fmt.Errorf("callgraph: read dump: %w", err)
	}

	m, err := b.parseDump([]byte(raw))
	if err != nil {
		return nil, err
	}

	if artifactDir != "" {
		if err := artifact.WriteCallGraphMap(artifactDir, m); err != nil {
			return nil, fmt.Errorf("callgraph: persist map: %w", err)
		}
	}
	log.Infow("call-graph built", "functions", len(m.Functions()), "tests", len(m.Tests()))
	return m, nil
}

// Load reloads a previously persisted TestFunctionMap, skipping the
// expensive tracer run entirely.
func Load(artifactDir string) (*status.TestFunctionMap, error) {
	return artifact.ReadCallGraphMap(artifactDir)
}

// parseDump converts the coverage.json contexts report into a
// TestFunctionMap by mapping every recorded (file, line, test) triple to
// the function enclosing that line, via internal/pysource's AST spans.
func (b *Builder) parseDump(raw []byte) (*status.TestFunctionMap, error) {
	var cov coverageJSON
	if err := json.Unmarshal(raw, &cov); err != nil {
		return nil, fmt.Errorf("callgraph: parse coverage json: %w", err)
	}

	testToFuncs := map[string]map[string]struct{}{}

	relPaths := make([]string, 0, len(cov.Files))
	for rel := range cov.Files {
		relPaths = append(relPaths, rel)
	}
	sort.Strings(relPaths)

	for _, relPath := range relPaths {
		if pysource.IsTestPath(relPath) {
			continue
		}
		content, err := os.ReadFile(filepath.Join(b.CloneDir, relPath))
		if err != nil {
			continue // file removed/renamed since the traced commit; skip rather than fail the whole map
		}
		funcs, err := b.Parser.ParseFunctions(relPath, content)
		if err != nil {
			continue
		}

		fileEntry := cov.Files[relPath]
		for lineStr, contexts := range fileEntry.Contexts {
			line := atoiOrZero(lineStr)
			if line == 0 {
				continue
			}
			fn := enclosingFunction(funcs, line)
			if fn == "" {
				continue
			}
			for _, c := range contexts {
				test := stripContextSuffix(c)
				if test == "" {
					continue
				}
				if testToFuncs[test] == nil {
					testToFuncs[test] = map[string]struct{}{}
				}
				testToFuncs[test][fn] = struct{}{}
			}
		}
	}

	plain := make(map[string][]string, len(testToFuncs))
	for test, funcs := range testToFuncs {
		list := make([]string, 0, len(funcs))
		for f := range funcs {
			list = append(list, f)
		}
		sort.Strings(list)
		plain[test] = list
	}
	return status.NewTestFunctionMapFromTestToFuncs(plain), nil
}

// enclosingFunction returns the node-ID of the innermost FuncSpan in funcs
// containing line, or "" if none does. funcs may contain nested
// methods/closures; the span with the tightest bounds wins.
func enclosingFunction(funcs []pysource.FuncSpan, line int) string {
	best := ""
	bestWidth := -1
	for _, fn := range funcs {
		if line < fn.Target.StartLine || line > fn.Target.EndLine {
			continue
		}
		width := fn.Target.EndLine - fn.Target.StartLine
		if bestWidth == -1 || width < bestWidth {
			best = fn.Target.NodeID()
			bestWidth = width
		}
	}
	return best
}

// stripContextSuffix turns a coverage.py context string like
// "tests/test_a.py::test_one|run" into the bare test node-ID; the bare
// "" context (code executed outside any test, e.g. module import time)
// is returned as "" and dropped by the caller.
func stripContextSuffix(c string) string {
	if c == "" {
		return ""
	}
	if i := strings.LastIndex(c, "|"); i >= 0 {
		return c[:i]
	}
	return c
}

func atoiOrZero(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
