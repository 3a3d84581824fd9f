package patch

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Apply applies diff to the working tree at workDir, trying "git apply
// --allow-empty" first and falling back to "patch --fuzz=5 -p1". A failure
// of both is a patch-application failure for the candidate, not a fatal
// error for the container or commit.
func Apply(ctx context.Context, workDir, diff string) error {
	if IsEmpty(diff) {
		return nil
	}

	if err := applyWithGit(ctx, workDir, diff); err == nil {
		return nil
	}

	if err := applyWithPatch(ctx, workDir, diff); err != nil {
		return fmt.Errorf("patch: both git apply and patch(1) failed: %w", err)
	}
	return nil
}

func applyWithGit(ctx context.Context, workDir, diff string) error {
	cmd := exec.CommandContext(ctx, "git", "-C", workDir, "apply", "--allow-empty", "-")
	cmd.Stdin = bytes.NewBufferString(diff)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git apply: %w: %s", err, stderr.String())
	}
	return nil
}

func applyWithPatch(ctx context.Context, workDir, diff string) error {
	cmd := exec.CommandContext(ctx, "patch", "--fuzz=5", "-p1", "-d", workDir)
	cmd.Stdin = bytes.NewBufferString(diff)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("patch(1): %w: %s", err, stderr.String())
	}
	return nil
}

// Revert discards all uncommitted changes in the working tree, restoring
// it to HEAD.
func Revert(ctx context.Context, workDir string) error {
	cmd := exec.CommandContext(ctx, "git", "-C", workDir, "checkout", "--", ".")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("patch: git checkout --: %w: %s", err, stderr.String())
	}
	cleanCmd := exec.CommandContext(ctx, "git", "-C", workDir, "clean", "-fd")
	cleanCmd.Stderr = &stderr
	return cleanCmd.Run()
}

// ResetToCommit hard-resets the working tree to the given commit.
func ResetToCommit(ctx context.Context, workDir, commit string) error {
	cmd := exec.CommandContext(ctx, "git", "-C", workDir, "reset", "--hard", commit)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("patch: git reset --hard %s: %w: %s", commit, err, stderr.String())
	}
	return Revert(ctx, workDir)
}

// Diff returns the full unified diff of the working tree's current
// uncommitted changes, repaired.
func Diff(ctx context.Context, workDir string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", workDir, "diff", "--no-color")
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("patch: git diff: %w: %s", err, stderr.String())
	}
	return Repair(out.String()), nil
}

// ReversedDiff returns "git diff -R" (a patch that undoes the current
// uncommitted changes), with orientation cleaned so a=pre, b=post still
// holds from the reversed patch's own point of view: applying it to the
// post-mutation state restores the pristine state. This is how the gold
// repair patch is derived from a validated mutation.
func ReversedDiff(ctx context.Context, workDir string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", workDir, "diff", "-R", "--no-color")
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("patch: git diff -R: %w: %s", err, stderr.String())
	}
	return SwapAB(Repair(out.String())), nil
}
