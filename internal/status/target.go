// Package status holds the data model shared by every component of the
// mutation-validation pipeline: syntactic Targets, TestStatus and its diff,
// the bipartite TestFunctionMap, and MutationInfo. None of these types touch
// the filesystem, git, or a container; persistence lives in internal/artifact.
package status

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// TargetKind distinguishes a function target from a class target.
type TargetKind string

const (
	KindFunction TargetKind = "function"
	KindClass    TargetKind = "class"
)

// Target references a syntactic unit inside a file: a function or a class,
// identified by its relative path, kind, name, and line span. Equality is
// structural, not identity.
type Target struct {
	RelPath   string     `json:"rel_path"`
	Kind      TargetKind `json:"kind"`
	Name      string     `json:"name"`
	StartLine int        `json:"start_line"`
	EndLine   int        `json:"end_line"`
}

// NodeID returns the stable "{relative_path}::{name}" identifier used
// throughout the pipeline to cross-reference targets, tests, and the
// call-graph map.
func (t Target) NodeID() string {
	return fmt.Sprintf("%s::%s", t.RelPath, t.Name)
}

// Equal implements structural equality: same relative path, name, and line
// span. Kind is derived from Name/AST context and is intentionally excluded
// so a renamed-kind re-parse still matches.
func (t Target) Equal(other Target) bool {
	return t.RelPath == other.RelPath &&
		t.Name == other.Name &&
		t.StartLine == other.StartLine &&
		t.EndLine == other.EndLine
}

// MutationInfo records the set of targets a candidate mutation changed, the
// strategy that produced it, the model's raw response, and a free-form
// metadata bag (e.g. the empty-body diff, the signature hint, the
// pre-mutation file text) for later reuse without re-deriving it.
type MutationInfo struct {
	ChangedTargets  []Target          `json:"changed_targets"`
	Metadata        map[string]string `json:"metadata"`
	Strategy        string            `json:"strategy"`
	ModelResponse   string            `json:"model_response"`
	ModelIdentifier string            `json:"model_identifier"`
}

// ChangedTargetIDs returns the node IDs of every changed target, in order.
func (m MutationInfo) ChangedTargetIDs() []string {
	ids := make([]string, len(m.ChangedTargets))
	for i, t := range m.ChangedTargets {
		ids[i] = t.NodeID()
	}
	return ids
}

// ComputeInstanceID derives the deterministic instance_id: {repo_slug}-
// {base_commit}-{hash}, hash="original" when unstagedDiff is empty,
// otherwise the first 8 hex characters of SHA-256(unstagedDiff).
func ComputeInstanceID(repoSlug, baseCommit, unstagedDiff string) string {
	h := "original"
	if unstagedDiff != "" {
		sum := sha256.Sum256([]byte(unstagedDiff))
		h = hex.EncodeToString(sum[:])[:8]
	}
	return fmt.Sprintf("%s-%s-%s", repoSlug, baseCommit, h)
}
