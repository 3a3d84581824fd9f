package status

// TestStatus is a pair of disjoint sets of test node-IDs: those observed to
// pass and those observed to fail in one run.
type TestStatus struct {
	Passed map[string]struct{}
	Failed map[string]struct{}
}

// NewTestStatus builds a TestStatus from passed/failed node-ID slices.
func NewTestStatus(passed, failed []string) TestStatus {
	ts := TestStatus{Passed: make(map[string]struct{}, len(passed)), Failed: make(map[string]struct{}, len(failed))}
	for _, p := range passed {
		ts.Passed[p] = struct{}{}
	}
	for _, f := range failed {
		ts.Failed[f] = struct{}{}
	}
	return ts
}

// EmptyTestStatus returns a TestStatus with no tests at all — the sentinel
// for "run failed, do not compare".
func EmptyTestStatus() TestStatus {
	return NewTestStatus(nil, nil)
}

// IsEmpty reports whether neither set has any member.
func (ts TestStatus) IsEmpty() bool {
	return len(ts.Passed) == 0 && len(ts.Failed) == 0
}

// All returns every test node-ID this status has an opinion about.
func (ts TestStatus) All() map[string]struct{} {
	all := make(map[string]struct{}, len(ts.Passed)+len(ts.Failed))
	for p := range ts.Passed {
		all[p] = struct{}{}
	}
	for f := range ts.Failed {
		all[f] = struct{}{}
	}
	return all
}

// PassedSlice and FailedSlice materialize the sets as sorted slices for
// serialization; sorting keeps test_status.json diffs stable across runs.
func (ts TestStatus) PassedSlice() []string { return sortedKeys(ts.Passed) }
func (ts TestStatus) FailedSlice() []string { return sortedKeys(ts.Failed) }

// ShrinkTo restricts this status to only the node-IDs present in subset,
// dropping anything not in it. Used to compare a baseline against only the
// tests a candidate's approximated related-test set touches.
func (ts TestStatus) ShrinkTo(subset map[string]struct{}) TestStatus {
	out := TestStatus{Passed: map[string]struct{}{}, Failed: map[string]struct{}{}}
	for p := range ts.Passed {
		if _, ok := subset[p]; ok {
			out.Passed[p] = struct{}{}
		}
	}
	for f := range ts.Failed {
		if _, ok := subset[f]; ok {
			out.Failed[f] = struct{}{}
		}
	}
	return out
}

// FillMissingFrom treats any node-ID present in ref but absent from this
// status as failed: a test that should have run but produced no result line
// counts as a failure, never as silently dropped. Passes are left untouched;
// exactly ref.All - self.Passed is added to self.Failed.
func (ts TestStatus) FillMissingFrom(ref TestStatus) TestStatus {
	out := TestStatus{Passed: map[string]struct{}{}, Failed: map[string]struct{}{}}
	for p := range ts.Passed {
		out.Passed[p] = struct{}{}
	}
	for f := range ts.Failed {
		out.Failed[f] = struct{}{}
	}
	for id := range ref.All() {
		if _, ok := out.Passed[id]; ok {
			continue
		}
		out.Failed[id] = struct{}{}
	}
	return out
}

// TestStatusDiff is the four-way Cartesian partition of a before/after status
// comparison, restricted to the tests present in both sides.
type TestStatusDiff struct {
	PassToPass []string `json:"PASS_TO_PASS"`
	PassToFail []string `json:"PASS_TO_FAIL"`
	FailToPass []string `json:"FAIL_TO_PASS"`
	FailToFail []string `json:"FAIL_TO_FAIL"`
}

// Diff implements the ">>" operator: before.Diff(after) partitions the
// intersection of tests known to both sides into the four buckets. Tests
// that appear in only one side are excluded from every bucket — callers
// that need the union to cover "all tests actually executed" should
// FillMissingFrom first so both sides share the same domain.
func (before TestStatus) Diff(after TestStatus) TestStatusDiff {
	var d TestStatusDiff
	for id := range before.Passed {
		if _, ok := after.Passed[id]; ok {
			d.PassToPass = append(d.PassToPass, id)
		} else if _, ok := after.Failed[id]; ok {
			d.PassToFail = append(d.PassToFail, id)
		}
	}
	for id := range before.Failed {
		if _, ok := after.Passed[id]; ok {
			d.FailToPass = append(d.FailToPass, id)
		} else if _, ok := after.Failed[id]; ok {
			d.FailToFail = append(d.FailToFail, id)
		}
	}
	sortStrings(d.PassToPass)
	sortStrings(d.PassToFail)
	sortStrings(d.FailToPass)
	sortStrings(d.FailToFail)
	return d
}

// IsEmpty reports that no test moved between any two states.
func (d TestStatusDiff) IsEmpty() bool {
	return len(d.PassToPass) == 0 && len(d.PassToFail) == 0 && len(d.FailToPass) == 0 && len(d.FailToFail) == 0
}

// AllTests returns the union of every bucket: the full set of tests actually
// compared.
func (d TestStatusDiff) AllTests() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, bucket := range [][]string{d.PassToPass, d.PassToFail, d.FailToPass, d.FailToFail} {
		for _, id := range bucket {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	sortStrings(out)
	return out
}

// TestsInFiles restricts ts to only the node-IDs whose file component is
// in files — used to expand a provisional subset to "every test in the
// same file" for the re-validation step.
func (ts TestStatus) TestsInFiles(files map[string]struct{}) map[string]struct{} {
	out := map[string]struct{}{}
	for id := range ts.All() {
		if _, ok := files[testFile(id)]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

// Equal reports whether two statuses contain exactly the same passed and
// failed sets.
func (ts TestStatus) Equal(other TestStatus) bool {
	if len(ts.Passed) != len(other.Passed) || len(ts.Failed) != len(other.Failed) {
		return false
	}
	for id := range ts.Passed {
		if _, ok := other.Passed[id]; !ok {
			return false
		}
	}
	for id := range ts.Failed {
		if _, ok := other.Failed[id]; !ok {
			return false
		}
	}
	return true
}

// ChangedTestFiles returns the distinct set of test files (the part of a
// node-ID before "::") whose status changed — used to expand the
// re-validation subset to every test in those files.
func (d TestStatusDiff) ChangedTestFiles() map[string]struct{} {
	files := map[string]struct{}{}
	for _, id := range append(append([]string{}, d.PassToFail...), d.FailToPass...) {
		files[testFile(id)] = struct{}{}
	}
	return files
}
