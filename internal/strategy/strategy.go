// Package strategy implements mutation-candidate generation:
// candidate-target selection, model invocation, and diff/MutationInfo
// assembly, shared across the three concrete variants (EmptyFunction,
// EmptyClass, PriorityAware) via a common frame. A Strategy is a one-way
// capability the Mutator borrows: Propose/Score/LoadCheckpoint.
package strategy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/FSoft-AI4Code/swesynth-go/internal/model"
	"github.com/FSoft-AI4Code/swesynth-go/internal/pysource"
	"github.com/FSoft-AI4Code/swesynth-go/internal/status"
	"github.com/FSoft-AI4Code/swesynth-go/internal/targeter"
)

// Candidate is one (diff, info) pair a Strategy proposes.
type Candidate struct {
	Diff string
	Info status.MutationInfo
}

// Strategy is the capability the Mutator borrows: stream candidates
// for a snapshot, score a validated candidate, and load a resume
// checkpoint's already-mutated targets so they're excluded from selection
//.
type Strategy interface {
	Name() string
	Propose(ctx context.Context) (<-chan Candidate, <-chan error)
	Score(info status.MutationInfo, diff status.TestStatusDiff) float64
	LoadCheckpoint(mutated map[string]struct{})
}

// Env bundles everything a Strategy needs to enumerate targets, probe
// them, and call the model: a pristine checkout to mutate against, the
// call-graph map, the empty-body targeter, a model client, and per-target
// budgets. The targeter is a read-only borrow from the Tester.
type Env struct {
	CloneDir          string
	CallGraph         *status.TestFunctionMap
	Baseline          status.TestStatus
	Targeter          *targeter.EmptyBodyTargeter
	Model             model.Client
	ModelIdentifier   string
	MutationPerTarget int
	Rand              *rand.Rand
}

const systemPrompt = `You are editing one Python function or class body. Given the file with the body emptied out and a signature-only hint, produce a complete, plausible implementation for the body only. Do not add imports. Return only the code for the body, in a single fenced code block.`

func userPrompt(entrypoint, emptiedFile, hint string) string {
	return fmt.Sprintf("Entrypoint: %s\n\nFile with body emptied:\n```python\n%s\n```\n\nSignature hint:\n```python\n%s\n```", entrypoint, emptiedFile, hint)
}

var fencedCodeRe = regexp.MustCompile("(?s)```(?:python)?\\n(.*?)```")

// extractCode pulls the body out of the model's fenced response, falling
// back to the raw response if no fence is present.
func extractCode(response string) string {
	if m := fencedCodeRe.FindStringSubmatch(response); m != nil {
		return strings.TrimRight(m[1], "\n")
	}
	return strings.TrimSpace(response)
}

var topLevelImportRe = regexp.MustCompile(`(?m)^\s*(import\s+\S+|from\s+\S+\s+import\s)`)

// introducesImport rejects any model output that adds a top-level import
// statement — the contract is "body only".
func introducesImport(code string) bool {
	return topLevelImportRe.MatchString(code)
}

// pythonFiles walks CloneDir for non-test .py source files.
func pythonFiles(cloneDir string) ([]string, error) {
	var out []string
	err := filepath.Walk(cloneDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".py" {
			return nil
		}
		rel, err := filepath.Rel(cloneDir, path)
		if err != nil {
			return err
		}
		if pysource.IsTestPath(rel) {
			return nil
		}
		out = append(out, rel)
		return nil
	})
	return out, err
}

// diffDedupe tracks diffs already emitted for one target, by hash, so a
// strategy never yields the same candidate twice.
type diffDedupe struct{ seen map[string]struct{} }

func newDiffDedupe() *diffDedupe { return &diffDedupe{seen: map[string]struct{}{}} }

func (d *diffDedupe) seenBefore(diff string) bool {
	sum := sha256.Sum256([]byte(diff))
	key := hex.EncodeToString(sum[:])
	if _, ok := d.seen[key]; ok {
		return true
	}
	d.seen[key] = struct{}{}
	return false
}

// defaultScore is the informational score attached to a survivor:
// log1p(function-degree of the mutated target) * pass-rate at validation.
func defaultScore(degree int, diff status.TestStatusDiff) float64 {
	total := len(diff.AllTests())
	if total == 0 {
		return 0
	}
	passing := len(diff.PassToPass) + len(diff.FailToPass)
	passRate := float64(passing) / float64(total)
	return math.Log1p(float64(degree)) * passRate
}

