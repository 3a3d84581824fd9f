package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/FSoft-AI4Code/swesynth-go/internal/logging"
)

// ErrCorrupted reports that the container's working tree no longer matches
// the recorded pre-state after a scoped reset. Callers must treat it as
// fatal for the whole commit, tear the container down, and exit the worker.
var ErrCorrupted = errors.New("container working tree diverged from recorded pre-state")

// ApplyPatchScoped records the container's current "git diff", applies
// candidate inside workDir, runs fn, and on every exit path resets the
// working tree, re-applies the prior diff, and verifies the tree matches
// the recorded pre-state. A failed patch application is a fatal error for
// the candidate only; a post-reset divergence surfaces as ErrCorrupted.
func (c *Container) ApplyPatchScoped(ctx context.Context, workDir, candidate string, fn func() error) (err error) {
	log := logging.For(logging.Container).Sugar()

	prior, err := c.gitDiff(ctx, workDir)
	if err != nil {
		return fmt.Errorf("container: record pre-state diff: %w", err)
	}

	defer func() {
		if resetErr := c.gitReset(ctx, workDir); resetErr != nil {
			log.Errorw("failed to reset container working tree on scope exit", "container", c.ID, "error", resetErr)
			if err == nil {
				err = fmt.Errorf("container: reset on scope exit: %w", ErrCorrupted)
			}
			return
		}
		if prior != "" {
			if applyErr := c.applyPatch(ctx, workDir, prior); applyErr != nil {
				log.Errorw("failed to re-apply prior diff after scope exit", "container", c.ID, "error", applyErr)
				if err == nil {
					err = fmt.Errorf("container: re-apply prior diff: %w", ErrCorrupted)
				}
				return
			}
		}
		if verifyErr := c.VerifyClean(ctx, workDir, prior); verifyErr != nil && err == nil {
			err = verifyErr
		}
	}()

	if applyErr := c.applyPatch(ctx, workDir, candidate); applyErr != nil {
		return fmt.Errorf("container: apply candidate patch: %w", applyErr)
	}

	return fn()
}

// VerifyClean checks that the container's working tree, once reset,
// matches the recorded pre-state diff exactly. A divergence means the
// container is corrupted, which is fatal for the whole commit, not just
// one candidate.
func (c *Container) VerifyClean(ctx context.Context, workDir, expectedDiff string) error {
	actual, err := c.gitDiff(ctx, workDir)
	if err != nil {
		return fmt.Errorf("container: verify clean: %w", err)
	}
	if actual != expectedDiff {
		return fmt.Errorf("container: verify clean: %w", ErrCorrupted)
	}
	return nil
}

func (c *Container) gitDiff(ctx context.Context, workDir string) (string, error) {
	res, err := c.execLocal(ctx, workDir, "git diff --no-color")
	if err != nil {
		return "", err
	}
	return res.Output, nil
}

func (c *Container) gitReset(ctx context.Context, workDir string) error {
	_, err := c.execLocal(ctx, workDir, "git checkout -- . && git clean -fd")
	return err
}

// applyPatch tries "git apply --allow-empty" first, then falls back to
// "patch --fuzz=5 -p1" — mirroring internal/patch.Apply's fallback chain
// but against the container's filesystem instead of the host's.
func (c *Container) applyPatch(ctx context.Context, workDir, diff string) error {
	if err := c.writePatchAndRun(ctx, workDir, diff, fmt.Sprintf("cd %q && git apply --allow-empty -", workDir)); err == nil {
		return nil
	}
	if err := c.writePatchAndRun(ctx, workDir, diff, fmt.Sprintf("cd %q && patch --fuzz=5 -p1", workDir)); err != nil {
		return fmt.Errorf("both git apply and patch(1) failed inside container: %w", err)
	}
	return nil
}

func (c *Container) writePatchAndRun(ctx context.Context, workDir, diff, command string) error {
	tmp, err := os.CreateTemp("", "swesynth-candidate-*.diff")
	if err != nil {
		return fmt.Errorf("container: tempfile: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(diff); err != nil {
		tmp.Close()
		return fmt.Errorf("container: write tempfile: %w", err)
	}
	tmp.Close()

	containerPath := "/tmp/" + filepath.Base(tmp.Name())
	if err := c.CopyIn(ctx, tmp.Name(), containerPath); err != nil {
		return err
	}

	full := fmt.Sprintf("%s < %s", command, containerPath)
	_, err = c.execLocal(ctx, workDir, full)
	return err
}

// execLocal runs command inside the container without timeout/artifact
// bookkeeping — used for the small scoped-git housekeeping calls, as
// opposed to Exec's full test-run contract.
func (c *Container) execLocal(ctx context.Context, workDir, command string) (*ExecResult, error) {
	cmd := exec.CommandContext(ctx, c.manager.dockerPath, "exec", "-w", workDir, c.ID, "sh", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return nil, fmt.Errorf("exec: %w: %s", err, stderr.String())
		}
		return &ExecResult{Output: stdout.String() + stderr.String(), ExitCode: 1}, fmt.Errorf("command failed: %s", stderr.String())
	}
	return &ExecResult{Output: stdout.String() + stderr.String()}, nil
}
