// Package artifact owns the on-disk filesystem layout and compressed
// artifact I/O: the per-instance directory tree, zstd-compressed JSON
// persistence for the call-graph map and test transcripts, the
// mutated_source_code.yaml sidecar, and the per-(commit, strategy) result
// journals.
package artifact

import (
	"fmt"
	"path/filepath"
)

// Dir returns the canonical on-disk directory for one repository snapshot:
// {repo_slug}/{version}/{base_commit}/{hash}/, rooted under runRoot.
func Dir(runRoot, repoSlug, version, baseCommit, hash string) string {
	if version == "" {
		version = "unversioned"
	}
	return filepath.Join(runRoot, repoSlug, version, baseCommit, hash)
}

const (
	PatchFile          = "patch.diff"
	ReversedPatchFile  = "reversed_patch.diff"
	TestStatusFile     = "test_status.json"
	MutatedSourceFile  = "mutated_source_code.yaml"
	CallGraphMapFile   = "test2function_mapping.json.zst"
	MutantLogFile      = "mutant.log"
	TestOutputGlobPat  = "test_output_%s.log.zst"
	OriginalHashLiteral = "original"
)

// TestOutputFile names the compressed transcript for one exec call by name.
func TestOutputFile(name string) string {
	return fmt.Sprintf(TestOutputGlobPat, name)
}

// JournalPath returns the per-(repo, commit, strategy) line-delimited
// journal path.
func JournalPath(runRoot, repoSlug, commit, strategy string) string {
	return filepath.Join(runRoot, fmt.Sprintf("%s_%s_%s.jsonl", repoSlug, commit, strategy))
}
