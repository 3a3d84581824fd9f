// Package patch is the unified-diff toolkit: producing a diff by writing
// new file text and shelling to git, repairing the result, extracting
// changed files and hunk positions, and normalizing diff orientation. It
// shells to the system git binary rather than reimplementing a diff
// engine.
package patch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Produce writes newContent to relPath inside workDir and returns the
// unified diff against the working tree's current committed/staged state,
// repaired for trailing-newline and header issues. An empty return means
// newContent did not change the file.
func Produce(ctx context.Context, workDir, relPath, newContent string) (string, error) {
	fullPath := filepath.Join(workDir, relPath)
	if err := os.WriteFile(fullPath, []byte(newContent), 0644); err != nil {
		return "", fmt.Errorf("patch: write %s: %w", relPath, err)
	}

	cmd := exec.CommandContext(ctx, "git", "-C", workDir, "diff", "--no-color", "--", relPath)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		// git diff exits 0 normally; a non-zero exit here is a real failure.
		if _, ok := err.(*exec.ExitError); !ok {
			return "", fmt.Errorf("patch: git diff: %w: %s", err, stderr.String())
		}
	}

	return Repair(out.String()), nil
}

// Repair normalizes a unified diff: ensures it ends with a newline (git
// apply is strict about this) and strips any "\ No newline at end of file"
// marker lines, which are noise for the pipeline's purposes since patches
// are always applied against working trees that already have the target
// file present.
func Repair(diff string) string {
	if diff == "" {
		return diff
	}
	lines := strings.Split(diff, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.HasPrefix(l, `\ No newline at end of file`) {
			continue
		}
		out = append(out, l)
	}
	repaired := strings.Join(out, "\n")
	if !strings.HasSuffix(repaired, "\n") {
		repaired += "\n"
	}
	return repaired
}

var changedFileRe = regexp.MustCompile(`(?m)^--- a/(.+)$`)

// DefaultNonSourceExtensions lists file extensions that never count as a
// "changed source file" for targeting purposes — lockfiles, docs, and data
// files a mutation strategy has no business touching.
var DefaultNonSourceExtensions = map[string]bool{
	".md": true, ".txt": true, ".rst": true, ".cfg": true, ".ini": true,
	".json": true, ".yaml": true, ".yml": true, ".toml": true, ".lock": true,
	".png": true, ".jpg": true, ".svg": true,
}

// ChangedFiles extracts the set of changed files from a unified diff using
// the "--- a/<path>" marker, excluding any whose extension is in
// excludeExt (pass nil to use DefaultNonSourceExtensions) and any path
// pysource.IsTestPath would flag as a test file.
func ChangedFiles(diff string, excludeExt map[string]bool) []string {
	if excludeExt == nil {
		excludeExt = DefaultNonSourceExtensions
	}
	matches := changedFileRe.FindAllStringSubmatch(diff, -1)
	seen := map[string]bool{}
	var out []string
	for _, m := range matches {
		path := strings.TrimSpace(m[1])
		if path == "/dev/null" || seen[path] {
			continue
		}
		if excludeExt[filepath.Ext(path)] {
			continue
		}
		seen[path] = true
		out = append(out, path)
	}
	return out
}

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,\d+)? \+(\d+)(?:,\d+)? @@`)

// FirstHunkNewStart extracts the new-side starting line number of the
// diff's first "@@" hunk header — used to locate the primary mutation site
//.
func FirstHunkNewStart(diff string) (int, bool) {
	for _, line := range strings.Split(diff, "\n") {
		if m := hunkHeaderRe.FindStringSubmatch(line); m != nil {
			n, err := strconv.Atoi(m[2])
			if err != nil {
				return 0, false
			}
			return n, true
		}
	}
	return 0, false
}

var (
	headerAMinus = regexp.MustCompile(`(?m)^--- a/(.+)$`)
	headerAPlus  = regexp.MustCompile(`(?m)^\+\+\+ b/(.+)$`)
	headerBMinus = regexp.MustCompile(`(?m)^--- b/(.+)$`)
	headerBPlus  = regexp.MustCompile(`(?m)^\+\+\+ a/(.+)$`)
)

// SwapAB rewrites a diff whose sides are reversed (pre marked "b/", post
// marked "a/") so every emitted patch satisfies the pipeline's convention:
// a = pre-mutation, b = post-mutation.
func SwapAB(diff string) string {
	if headerBMinus.MatchString(diff) && headerBPlus.MatchString(diff) && !headerAMinus.MatchString(diff) {
		diff = headerBMinus.ReplaceAllString(diff, "--- a/$1")
		diff = headerBPlus.ReplaceAllString(diff, "+++ b/$1")
		return diff
	}
	return diff
}

// Hash returns the first 8 hex characters of SHA-256(diff), the same
// derivation status.ComputeInstanceID uses for the instance hash suffix.
func Hash(diff string) string {
	sum := sha256.Sum256([]byte(diff))
	return hex.EncodeToString(sum[:])[:8]
}

// IsEmpty reports whether a diff, after repair, carries no actual change.
func IsEmpty(diff string) bool {
	return strings.TrimSpace(Repair(diff)) == ""
}
