package testlog

import "testing"

func TestParsePytestBasic(t *testing.T) {
	transcript := `>>>>> Start Test Output
PASSED tests/test_a.py::test_one
FAILED tests/test_a.py::test_two
XFAIL tests/test_a.py::test_three
SKIPPED tests/test_a.py::test_four
>>>>> End Test Output
applied patch
`
	ts := Parse(PytestDialect(), transcript)
	if ts.IsEmpty() {
		t.Fatalf("expected non-empty status")
	}
	if _, ok := ts.Passed["tests/test_a.py::test_one"]; !ok {
		t.Errorf("expected test_one to be passed")
	}
	if _, ok := ts.Passed["tests/test_a.py::test_three"]; !ok {
		t.Errorf("expected XFAIL test_three to count as passed")
	}
	if _, ok := ts.Failed["tests/test_a.py::test_two"]; !ok {
		t.Errorf("expected test_two to be failed")
	}
	if _, ok := ts.Passed["tests/test_a.py::test_four"]; ok {
		t.Errorf("SKIPPED test must not appear as passed")
	}
	if _, ok := ts.Failed["tests/test_a.py::test_four"]; ok {
		t.Errorf("SKIPPED test must not appear as failed")
	}
}

func TestParseFatalSentinel(t *testing.T) {
	transcript := `>>>>> Start Test Output
TESTS_TIMEOUT
>>>>> End Test Output
`
	ts := Parse(PytestDialect(), transcript)
	if !ts.IsEmpty() {
		t.Fatalf("expected empty status on fatal sentinel")
	}
}

func TestParseMissingAppliedPatchIsFatal(t *testing.T) {
	transcript := `>>>>> Start Test Output
PASSED tests/test_a.py::test_one
>>>>> End Test Output
`
	ts := Parse(PytestDialect(), transcript)
	if !ts.IsEmpty() {
		t.Fatalf("expected empty status when 'applied patch' marker is absent")
	}
}

func TestExtractExcerptBounded(t *testing.T) {
	transcript := `noise before
=========================== short test summary info ============================
FAILED tests/test_a.py::test_two - AssertionError
==================== 1 failed, 1 passed in 0.12s =====================
trailer`
	excerpt := ExtractExcerpt(PytestDialect(), transcript, 0)
	if excerpt == "" {
		t.Fatalf("expected non-empty excerpt")
	}
	if excerpt == transcript {
		t.Errorf("excerpt should be bounded, not the whole transcript")
	}
}

func TestExtractExcerptCap(t *testing.T) {
	long := ""
	for i := 0; i < 1000; i++ {
		long += "x"
	}
	transcript := ">>>>> Start Test Output\n=========================== short test summary info ============================\n" + long + "\n"
	excerpt := ExtractExcerpt(PytestDialect(), transcript, 50)
	if len(excerpt) > 80 {
		t.Errorf("expected excerpt to be capped, got length %d", len(excerpt))
	}
}
