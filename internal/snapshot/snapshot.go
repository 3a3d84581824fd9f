// Package snapshot models a repository snapshot: a git working tree pinned
// to a base commit, with scoped acquisition semantics that guarantee the
// tree is reset on exit even under panic, plus instance-identity
// materialization and the canonical on-disk artifact layout.
package snapshot

import (
	"context"
	"fmt"

	"github.com/FSoft-AI4Code/swesynth-go/internal/artifact"
	"github.com/FSoft-AI4Code/swesynth-go/internal/logging"
	"github.com/FSoft-AI4Code/swesynth-go/internal/patch"
	"github.com/FSoft-AI4Code/swesynth-go/internal/status"
)

// Repository is the logical project identity a set of Snapshots share: an
// owner/name slug and the single on-disk clone directory Snapshots borrow
// from inside a scoped acquisition. The orchestrator owns Repositories;
// Snapshots only borrow the clone directory.
type Repository struct {
	Slug     string // e.g. "psf__requests"
	CloneDir string // path to the worker's clone (or git-worktree) of Slug
}

// Snapshot is an (optionally mutated) view of a Repository pinned to one
// base commit. A pristine snapshot (UnstagedDiff == "") establishes
// baseline status and the call-graph map; a mutated snapshot carries a
// candidate diff through validation.
type Snapshot struct {
	Repo *Repository

	BaseCommit   string
	Version      string
	UnstagedDiff string

	ReversedDiff   string
	TestStatusDiff *status.TestStatusDiff
	MutationInfo   *status.MutationInfo
	Score          *float64
	TestLogExcerpt string
}

// NewPristine constructs the baseline snapshot for a repository at a base
// commit, with no unstaged changes.
func NewPristine(repo *Repository, baseCommit, version string) *Snapshot {
	return &Snapshot{Repo: repo, BaseCommit: baseCommit, Version: version}
}

// Hash returns the instance-id hash component: "original" when there is no
// unstaged diff, else the first 8 hex characters of SHA-256(diff).
func (s *Snapshot) Hash() string {
	if s.UnstagedDiff == "" {
		return artifact.OriginalHashLiteral
	}
	return patch.Hash(s.UnstagedDiff)
}

// InstanceID returns the deterministic instance_id: a
// pure function of (repo, base_commit, unstaged_diff).
func (s *Snapshot) InstanceID() string {
	return status.ComputeInstanceID(s.Repo.Slug, s.BaseCommit, s.UnstagedDiff)
}

// ArtifactDir returns this snapshot's canonical directory under runRoot.
func (s *Snapshot) ArtifactDir(runRoot string) string {
	return artifact.Dir(runRoot, s.Repo.Slug, s.Version, s.BaseCommit, s.Hash())
}

// CopyWithChanges returns a new Snapshot sharing this Snapshot's Repository
// but carrying diff and info. The receiver must be pristine — a mutated
// snapshot cannot itself be copied-with-changes.
func (s *Snapshot) CopyWithChanges(diff string, info *status.MutationInfo) (*Snapshot, error) {
	if s.UnstagedDiff != "" {
		return nil, fmt.Errorf("snapshot: CopyWithChanges requires a pristine snapshot, this one already carries a diff")
	}
	return &Snapshot{
		Repo:         s.Repo,
		BaseCommit:   s.BaseCommit,
		Version:      s.Version,
		UnstagedDiff: diff,
		MutationInfo: info,
	}, nil
}

// Use acquires the snapshot's scope: resets the working tree to
// BaseCommit, applies UnstagedDiff (if any) and stages it, invokes fn with
// the working directory, and resets the tree again on every exit path,
// including a panic inside fn.
func (s *Snapshot) Use(ctx context.Context, fn func(workDir string) error) (err error) {
	log := logging.For(logging.Snapshot).Sugar()

	if resetErr := patch.ResetToCommit(ctx, s.Repo.CloneDir, s.BaseCommit); resetErr != nil {
		return fmt.Errorf("snapshot: reset to %s: %w", s.BaseCommit, resetErr)
	}

	defer func() {
		if resetErr := patch.ResetToCommit(ctx, s.Repo.CloneDir, s.BaseCommit); resetErr != nil {
			log.Errorw("failed to reset working tree on scope exit", "repo", s.Repo.Slug, "error", resetErr)
		}
	}()

	if s.UnstagedDiff != "" {
		if applyErr := patch.Apply(ctx, s.Repo.CloneDir, s.UnstagedDiff); applyErr != nil {
			return fmt.Errorf("snapshot: apply unstaged diff: %w", applyErr)
		}
		if stageErr := stage(ctx, s.Repo.CloneDir); stageErr != nil {
			return fmt.Errorf("snapshot: stage unstaged diff: %w", stageErr)
		}
	}

	return fn(s.Repo.CloneDir)
}

// GetReversedDiff applies changes inside a fresh scoped acquisition, takes
// "git diff -R" (the patch that undoes changes), cleans its orientation,
// and resets — this is how the gold repair patch is derived from a
// validated mutation.
func (s *Snapshot) GetReversedDiff(ctx context.Context, changes string) (string, error) {
	var reversed string
	err := s.Use(ctx, func(workDir string) error {
		if err := patch.Apply(ctx, workDir, changes); err != nil {
			return fmt.Errorf("snapshot: apply changes for reversal: %w", err)
		}
		r, err := patch.ReversedDiff(ctx, workDir)
		if err != nil {
			return err
		}
		reversed = r
		return nil
	})
	return reversed, err
}

// Persist writes the canonical artifact set for this snapshot under
// runRoot: patch.diff, reversed_patch.diff, test_status.json, and
// mutated_source_code.yaml, whichever of these this snapshot has data for.
// The call-graph map (test2function_mapping.json.zst) is written
// separately by internal/callgraph only for the pristine (hash=original)
// snapshot.
func (s *Snapshot) Persist(runRoot string, status_ status.TestStatus) error {
	dir := s.ArtifactDir(runRoot)

	if s.UnstagedDiff != "" {
		if err := artifact.WritePatchFile(dir, artifact.PatchFile, s.UnstagedDiff); err != nil {
			return err
		}
	}
	if s.ReversedDiff != "" {
		if err := artifact.WritePatchFile(dir, artifact.ReversedPatchFile, s.ReversedDiff); err != nil {
			return err
		}
	}
	if err := artifact.WriteTestStatus(dir, status_); err != nil {
		return err
	}
	if s.MutationInfo != nil {
		if err := artifact.WriteMutatedSource(dir, *s.MutationInfo); err != nil {
			return err
		}
	}
	return nil
}

func stage(ctx context.Context, workDir string) error {
	return runGitAdd(ctx, workDir)
}
