package status

import (
	"reflect"
	"sort"
	"testing"
)

func TestShrinkTo(t *testing.T) {
	ts := NewTestStatus([]string{"t::a", "t::b"}, []string{"t::c"})
	subset := map[string]struct{}{"t::a": {}, "t::c": {}}

	shrunk := ts.ShrinkTo(subset)

	if _, ok := shrunk.Passed["t::a"]; !ok {
		t.Fatalf("expected t::a to remain passed")
	}
	if _, ok := shrunk.Passed["t::b"]; ok {
		t.Fatalf("expected t::b to be dropped")
	}
	if _, ok := shrunk.Failed["t::c"]; !ok {
		t.Fatalf("expected t::c to remain failed")
	}
}

func TestFillMissingFrom(t *testing.T) {
	ref := NewTestStatus([]string{"t::a", "t::b"}, []string{"t::c"})
	partial := NewTestStatus([]string{"t::a"}, nil)

	filled := partial.FillMissingFrom(ref)

	if _, ok := filled.Passed["t::a"]; !ok {
		t.Fatalf("expected t::a to remain passed")
	}
	want := map[string]struct{}{"t::b": {}, "t::c": {}}
	if !reflect.DeepEqual(filled.Failed, want) {
		t.Fatalf("expected ref.all - self.passed added to failed, got %v", filled.Failed)
	}
}

func TestDiffFourWayPartition(t *testing.T) {
	before := NewTestStatus([]string{"t::a", "t::b"}, []string{"t::c", "t::d"})
	after := NewTestStatus([]string{"t::a", "t::c"}, []string{"t::b", "t::d"})

	d := before.Diff(after)

	assertEqualSorted(t, []string{"t::a"}, d.PassToPass)
	assertEqualSorted(t, []string{"t::b"}, d.PassToFail)
	assertEqualSorted(t, []string{"t::c"}, d.FailToPass)
	assertEqualSorted(t, []string{"t::d"}, d.FailToFail)

	all := append(append(append(append([]string{}, d.PassToPass...), d.PassToFail...), d.FailToPass...), d.FailToFail...)
	assertEqualSorted(t, []string{"t::a", "t::b", "t::c", "t::d"}, all)
}

func TestInstanceIDDeterministic(t *testing.T) {
	id1 := ComputeInstanceID("psf__requests", "abc123", "diff content")
	id2 := ComputeInstanceID("psf__requests", "abc123", "diff content")
	if id1 != id2 {
		t.Fatalf("expected identical inputs to produce identical IDs, got %q vs %q", id1, id2)
	}

	idOriginal := ComputeInstanceID("psf__requests", "abc123", "")
	if idOriginal != "psf__requests-abc123-original" {
		t.Fatalf("expected original hash suffix, got %q", idOriginal)
	}
}

func TestGetRelatedTests(t *testing.T) {
	m := NewTestFunctionMapFromTestToFuncs(map[string][]string{
		"t::a": {"mod.py::f"},
		"t::b": {"mod.py::f", "mod.py::g"},
	})

	targets := []Target{{RelPath: "mod.py", Name: "f", Kind: KindFunction}}
	related := m.GetRelatedTests(targets)

	assertEqualSorted(t, []string{"t::a", "t::b"}, sortedKeys(related))

	// every test in test->function must appear as a value in function->test
	for test := range m.TestToFuncs {
		found := false
		for _, tests := range m.FuncToTests {
			if _, ok := tests[test]; ok {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("test %s missing from func->test inverse", test)
		}
	}
}

func TestTestsInFiles(t *testing.T) {
	ts := NewTestStatus([]string{"a.py::x", "b.py::y"}, []string{"a.py::z"})
	subset := ts.TestsInFiles(map[string]struct{}{"a.py": {}})
	if len(subset) != 2 {
		t.Fatalf("expected 2 tests in a.py, got %d", len(subset))
	}
	if _, ok := subset["b.py::y"]; ok {
		t.Errorf("did not expect b.py::y in the a.py-restricted subset")
	}
}

func TestTestStatusEqual(t *testing.T) {
	a := NewTestStatus([]string{"x"}, []string{"y"})
	b := NewTestStatus([]string{"x"}, []string{"y"})
	c := NewTestStatus([]string{"x"}, nil)
	if !a.Equal(b) {
		t.Errorf("expected equal statuses to compare equal")
	}
	if a.Equal(c) {
		t.Errorf("expected differing statuses to compare unequal")
	}
}

func assertEqualSorted(t *testing.T, want, got []string) {
	t.Helper()
	w := append([]string{}, want...)
	g := append([]string{}, got...)
	sort.Strings(w)
	sort.Strings(g)
	if !reflect.DeepEqual(w, g) {
		t.Fatalf("want %v, got %v", w, g)
	}
}
