package mutator

import "testing"

func TestTestCommandFullSuite(t *testing.T) {
	tr := &Tester{}
	got := tr.testCommand(nil)
	want := "pytest -rA -q"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestTestCommandSubset(t *testing.T) {
	tr := &Tester{}
	subset := map[string]struct{}{"tests/test_a.py::test_one": {}}
	got := tr.testCommand(subset)
	want := "pytest -rA -q 'tests/test_a.py::test_one'"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestShellQuoteEscapesSingleQuotes(t *testing.T) {
	got := shellQuote("tests/test_a.py::Test['weird']")
	want := `'tests/test_a.py::Test['\''weird'\'']'`
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestWrapSessionMarkersAddsBoundaries(t *testing.T) {
	raw := "PASSED tests/test_a.py::test_one\n"
	wrapped := wrapSessionMarkers(raw)
	if !contains(wrapped, ">>>>> Start Test Output") || !contains(wrapped, ">>>>> End Test Output") {
		t.Fatalf("expected wrapped transcript to contain both session markers, got %q", wrapped)
	}
	if !contains(wrapped, "applied patch") {
		t.Fatalf("expected wrapped transcript to contain the applied-patch fatal-sentinel guard line")
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && indexOf(s, substr) >= 0
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
