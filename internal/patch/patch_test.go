package patch

import "testing"

const sampleDiff = `--- a/mod.py
+++ b/mod.py
@@ -10,3 +10,3 @@ def f():
-    return 1
+    return 2
--- a/README.md
+++ b/README.md
@@ -1,1 +1,1 @@
-old
+new
`

func TestChangedFilesExcludesNonSource(t *testing.T) {
	files := ChangedFiles(sampleDiff, nil)
	if len(files) != 1 || files[0] != "mod.py" {
		t.Fatalf("expected only mod.py, got %v", files)
	}
}

func TestFirstHunkNewStart(t *testing.T) {
	n, ok := FirstHunkNewStart(sampleDiff)
	if !ok || n != 10 {
		t.Fatalf("expected new start 10, got %d (ok=%v)", n, ok)
	}
}

func TestRepairAddsTrailingNewline(t *testing.T) {
	out := Repair("--- a/x\n+++ b/x")
	if out[len(out)-1] != '\n' {
		t.Fatalf("expected trailing newline, got %q", out)
	}
}

func TestRepairStripsNoNewlineMarker(t *testing.T) {
	in := "--- a/x\n+++ b/x\n@@ -1 +1 @@\n-a\n+b\n\\ No newline at end of file\n"
	out := Repair(in)
	if containsMarker(out) {
		t.Fatalf("expected marker stripped, got %q", out)
	}
}

func containsMarker(s string) bool {
	for i := 0; i+len(`\ No newline`) <= len(s); i++ {
		if s[i:i+len(`\ No newline`)] == `\ No newline` {
			return true
		}
	}
	return false
}

func TestSwapABNormalizesReversedDiff(t *testing.T) {
	reversed := "--- b/mod.py\n+++ a/mod.py\n@@ -1 +1 @@\n-x\n+y\n"
	out := SwapAB(reversed)
	if out == reversed {
		t.Fatalf("expected swap to rewrite headers")
	}
	files := ChangedFiles(out, nil)
	if len(files) != 1 || files[0] != "mod.py" {
		t.Fatalf("expected mod.py recognized after swap, got %v", files)
	}
}

func TestHashIsDeterministic(t *testing.T) {
	if Hash(sampleDiff) != Hash(sampleDiff) {
		t.Fatalf("expected deterministic hash")
	}
	if len(Hash(sampleDiff)) != 8 {
		t.Fatalf("expected 8 hex chars, got %q", Hash(sampleDiff))
	}
}

func TestIsEmpty(t *testing.T) {
	if !IsEmpty("") {
		t.Fatalf("expected empty diff to be empty")
	}
	if IsEmpty(sampleDiff) {
		t.Fatalf("expected non-empty diff to be non-empty")
	}
}
