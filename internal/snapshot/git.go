package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// runGitAdd stages every change in the working tree, the final step of
// applying an unstaged diff in a scoped acquisition.
func runGitAdd(ctx context.Context, workDir string) error {
	cmd := exec.CommandContext(ctx, "git", "-C", workDir, "add", "-A")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("snapshot: git add -A: %w: %s", err, stderr.String())
	}
	return nil
}

// CloneOrWorktree materializes workerDir as a working copy of cacheDir at
// baseCommit. When cacheDir already holds the full clone, this uses
// "git worktree add" rather than a fresh network clone, so every per-commit
// worker shares one on-disk object store.
func CloneOrWorktree(ctx context.Context, cacheDir, workerDir, baseCommit string) error {
	cmd := exec.CommandContext(ctx, "git", "-C", cacheDir, "worktree", "add", "--force", "--detach", workerDir, baseCommit)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("snapshot: git worktree add: %w: %s", err, stderr.String())
	}
	return nil
}

// RemoveWorktree tears down a worker's worktree once its commit is done.
func RemoveWorktree(ctx context.Context, cacheDir, workerDir string) error {
	cmd := exec.CommandContext(ctx, "git", "-C", cacheDir, "worktree", "remove", "--force", workerDir)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("snapshot: git worktree remove: %w: %s", err, stderr.String())
	}
	return nil
}

// EnsureClone clones gitURL into cacheDir if it does not already exist,
// using an optional token for authenticated HTTPS clones.
func EnsureClone(ctx context.Context, gitURL, cacheDir, token string) error {
	if dirExists(cacheDir) {
		return nil
	}
	url := gitURL
	if token != "" {
		url = injectToken(gitURL, token)
	}
	cmd := exec.CommandContext(ctx, "git", "clone", url, cacheDir)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("snapshot: git clone: %w: %s", err, stderr.String())
	}
	return nil
}
