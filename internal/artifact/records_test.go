package artifact

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/FSoft-AI4Code/swesynth-go/internal/status"
)

func TestToTaskInstanceSwapsPassToFailForFailToPass(t *testing.T) {
	r := ResultRecord{
		InstanceID: "repo-abc-12345678",
		Origin:     "psf__requests",
		BaseCommit: "abc",
		ReversedDiff: "--- a/mod.py\n+++ b/mod.py\n",
		TestStatusDiff: status.TestStatusDiff{
			PassToFail: []string{"t::a", "t::b"},
			PassToPass: []string{"t::c"},
		},
	}

	inst := ToTaskInstance(r, "boom")

	if !reflect.DeepEqual(inst.FailToPass, r.TestStatusDiff.PassToFail) {
		t.Fatalf("expected FailToPass to equal mutation-direction PassToFail, got %v", inst.FailToPass)
	}
	if !reflect.DeepEqual(inst.PassToPass, r.TestStatusDiff.PassToPass) {
		t.Fatalf("expected PassToPass carried through unchanged, got %v", inst.PassToPass)
	}
	if inst.Patch != r.ReversedDiff {
		t.Fatalf("expected exported Patch to be the reversed (fix) diff")
	}
}

func TestJournalAppendAndRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "repo_abc_empty_function.jsonl")

	r1 := ResultRecord{InstanceID: "a", MutationInfo: status.MutationInfo{ChangedTargets: []status.Target{{RelPath: "mod.py", Name: "f"}}}}
	r2 := ResultRecord{InstanceID: "b", MutationInfo: status.MutationInfo{ChangedTargets: []status.Target{{RelPath: "mod.py", Name: "g"}}}}

	if err := AppendJournalLine(path, r1); err != nil {
		t.Fatalf("append r1: %v", err)
	}
	if err := AppendJournalLine(path, r2); err != nil {
		t.Fatalf("append r2: %v", err)
	}

	records, err := ReadJournal(path)
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	mutated := MutatedTargets(records)
	if _, ok := mutated["mod.py::f"]; !ok {
		t.Fatalf("expected mod.py::f in mutated targets")
	}
	if _, ok := mutated["mod.py::g"]; !ok {
		t.Fatalf("expected mod.py::g in mutated targets")
	}
}

func TestReadJournalMissingFileIsEmpty(t *testing.T) {
	records, err := ReadJournal(filepath.Join(t.TempDir(), "missing.jsonl"))
	if err != nil {
		t.Fatalf("expected no error for missing journal, got %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty slice, got %v", records)
	}
}

func TestCallGraphMapRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := status.NewTestFunctionMapFromTestToFuncs(map[string][]string{
		"t::a": {"mod.py::f"},
		"t::b": {"mod.py::f", "mod.py::g"},
	})

	if err := WriteCallGraphMap(dir, m); err != nil {
		t.Fatalf("write: %v", err)
	}

	reloaded, err := ReadCallGraphMap(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if reloaded.FunctionDegree("mod.py::f") != 2 {
		t.Fatalf("expected degree 2 for mod.py::f, got %d", reloaded.FunctionDegree("mod.py::f"))
	}
}

func TestTestLogTracesRoundTrip(t *testing.T) {
	raw := "FAILED t::a - AssertionError\n"
	encoded, err := EncodeTestLogTraces(raw)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeTestLogTraces(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != raw {
		t.Fatalf("expected round trip, got %q", decoded)
	}
}
