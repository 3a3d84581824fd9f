package status

// TestStatusFile is the on-disk shape of test_status.json:
// {"PASS": [...], "FAIL": [...]}.
type TestStatusFile struct {
	Pass []string `json:"PASS"`
	Fail []string `json:"FAIL"`
}

// ToFile converts a TestStatus to its on-disk JSON shape.
func (ts TestStatus) ToFile() TestStatusFile {
	return TestStatusFile{Pass: ts.PassedSlice(), Fail: ts.FailedSlice()}
}

// FromFile reconstructs a TestStatus from its on-disk JSON shape.
func FromFile(f TestStatusFile) TestStatus {
	return NewTestStatus(f.Pass, f.Fail)
}
