package snapshot

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

func initTestRepo(t *testing.T) (dir, commit string) {
	t.Helper()
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
	commit = string(out)
	commit = commit[:len(commit)-1] // trim trailing newline
	return dir, commit
}

func TestSnapshotUseResetsOnExit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir, commit := initTestRepo(t)

	repo := &Repository{Slug: "test__repo", CloneDir: dir}
	snap := NewPristine(repo, commit, "")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := snap.Use(ctx, func(workDir string) error {
		return os.WriteFile(filepath.Join(workDir, "mod.py"), []byte("def f():\n    return 999\n"), 0644)
	})
	if err != nil {
		t.Fatalf("Use: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "mod.py"))
	if err != nil {
		t.Fatalf("read mod.py: %v", err)
	}
	if string(data) != "def f():\n    return 1\n" {
		t.Fatalf("expected working tree reset after Use, got:\n%s", data)
	}
}

func TestSnapshotInstanceIDDeterministic(t *testing.T) {
	repo := &Repository{Slug: "test__repo"}
	a := NewPristine(repo, "abc123", "")
	b := NewPristine(repo, "abc123", "")

	if a.InstanceID() != b.InstanceID() {
		t.Fatalf("expected identical instance IDs for identical inputs")
	}
	if a.Hash() != "original" {
		t.Fatalf("expected pristine hash literal 'original', got %q", a.Hash())
	}
}

func TestCopyWithChangesRejectsNonPristine(t *testing.T) {
	repo := &Repository{Slug: "test__repo"}
	s := NewPristine(repo, "abc", "")
	s.UnstagedDiff = "already has a diff"

	if _, err := s.CopyWithChanges("new diff", nil); err == nil {
		t.Fatalf("expected error copying a non-pristine snapshot")
	}
}
