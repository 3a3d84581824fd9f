package artifact

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/FSoft-AI4Code/swesynth-go/internal/status"
)

// ResultRecord is the JSON shape of one journal line.
type ResultRecord struct {
	BaseCommit      string                 `json:"base_commit"`
	Origin          string                 `json:"origin"`
	Version         string                 `json:"version"`
	InstanceID      string                 `json:"instance_id"`
	UnstagedChanges string                 `json:"unstaged_changes"`
	ReversedDiff    string                 `json:"reversed_diff"`
	TestStatusDiff  status.TestStatusDiff  `json:"test_status_diff"`
	MutationInfo    status.MutationInfo    `json:"mutation_info"`
	Score           float64                `json:"score"`
	TestLogTraces   string                 `json:"test_log_traces"` // gzip+base64
}

// EncodeTestLogTraces gzip-compresses and base64-encodes a log transcript
// for embedding in a ResultRecord.
func EncodeTestLogTraces(raw string) (string, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write([]byte(raw)); err != nil {
		return "", fmt.Errorf("artifact: gzip write: %w", err)
	}
	if err := gw.Close(); err != nil {
		return "", fmt.Errorf("artifact: gzip close: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeTestLogTraces reverses EncodeTestLogTraces.
func DecodeTestLogTraces(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("artifact: base64 decode: %w", err)
	}
	gr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("artifact: gzip reader: %w", err)
	}
	defer gr.Close()
	var out bytes.Buffer
	if _, err := out.ReadFrom(gr); err != nil {
		return "", fmt.Errorf("artifact: gzip read: %w", err)
	}
	return out.String(), nil
}

// TaskInstance is the public "task instance" shape downstream evaluators
// consume. Critically, FailToPass here is sourced from the
// mutation-direction PassToFail bucket: the bug-introducing patch's
// pass->fail set IS the fix's fail->pass set once the reversed diff is
// applied, since ResultRecord.ReversedDiff is the gold fix.
type TaskInstance struct {
	InstanceID   string   `json:"instance_id"`
	Repo         string   `json:"repo"`
	BaseCommit   string   `json:"base_commit"`
	Patch        string   `json:"patch"`         // the reversed (fix) diff
	TestPatch    string   `json:"test_patch"`    // empty: no dedicated test patch in this pipeline
	FailToPass   []string `json:"FAIL_TO_PASS"`
	PassToPass   []string `json:"PASS_TO_PASS"`
	Version      string   `json:"version"`
	ProblemState string   `json:"problem_statement"`
}

// ToTaskInstance performs the PASS_TO_FAIL -> FAIL_TO_PASS swap required
// when exporting to the public shape: the record's mutation-direction
// PassToFail becomes the fix-direction FailToPass.
func ToTaskInstance(r ResultRecord, problemStatement string) TaskInstance {
	return TaskInstance{
		InstanceID:   r.InstanceID,
		Repo:         r.Origin,
		BaseCommit:   r.BaseCommit,
		Patch:        r.ReversedDiff,
		FailToPass:   append([]string{}, r.TestStatusDiff.PassToFail...),
		PassToPass:   append([]string{}, r.TestStatusDiff.PassToPass...),
		Version:      r.Version,
		ProblemState: problemStatement,
	}
}

// AppendJournalLine appends record as one JSON line to the journal at
// path, creating it if necessary. Each worker is the sole writer to its
// own (commit, strategy) journal, so no additional locking is needed
//.
func AppendJournalLine(path string, record ResultRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("artifact: mkdir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("artifact: open journal %s: %w", path, err)
	}
	defer f.Close()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("artifact: marshal record: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("artifact: write journal line: %w", err)
	}
	return nil
}

// ReadJournal loads every record from a journal file. Missing files yield
// an empty slice, not an error, since a fresh commit has no journal yet.
func ReadJournal(path string) ([]ResultRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("artifact: read journal %s: %w", path, err)
	}

	var records []ResultRecord
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var r ResultRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("artifact: parse journal line: %w", err)
		}
		records = append(records, r)
	}
	return records, nil
}

// MutatedTargets reconstructs the set of target node-IDs already mutated
// from a journal's records — used on restart to exclude them from
// strategy selection.
func MutatedTargets(records []ResultRecord) map[string]struct{} {
	out := map[string]struct{}{}
	for _, r := range records {
		for _, id := range r.MutationInfo.ChangedTargetIDs() {
			out[id] = struct{}{}
		}
	}
	return out
}

// WriteTestStatus writes test_status.json for a snapshot directory.
func WriteTestStatus(dir string, ts status.TestStatus) error {
	return writeJSON(filepath.Join(dir, TestStatusFile), ts.ToFile())
}

// ReadTestStatus reads test_status.json from a snapshot directory.
func ReadTestStatus(dir string) (status.TestStatus, error) {
	var f status.TestStatusFile
	if err := readJSON(filepath.Join(dir, TestStatusFile), &f); err != nil {
		return status.TestStatus{}, err
	}
	return status.FromFile(f), nil
}

// WriteMutatedSource writes mutated_source_code.yaml: the mutation info
// plus the original file text, keyed by relative path.
func WriteMutatedSource(dir string, info status.MutationInfo) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("artifact: mkdir: %w", err)
	}
	data, err := yaml.Marshal(info)
	if err != nil {
		return fmt.Errorf("artifact: marshal mutated source: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, MutatedSourceFile), data, 0644)
}

// WriteCallGraphMap persists a TestFunctionMap as zstd-compressed JSON,
// keyed by function for a compact on-disk shape.
func WriteCallGraphMap(dir string, m *status.TestFunctionMap) error {
	return WriteZSTJSON(filepath.Join(dir, CallGraphMapFile), m.FuncToTestsPlain())
}

// ReadCallGraphMap reloads a TestFunctionMap persisted by WriteCallGraphMap.
func ReadCallGraphMap(dir string) (*status.TestFunctionMap, error) {
	var plain map[string][]string
	if err := ReadZSTJSON(filepath.Join(dir, CallGraphMapFile), &plain); err != nil {
		return nil, err
	}
	return status.NewTestFunctionMapFromFuncToTests(plain), nil
}

// WritePatchFile writes one of patch.diff / reversed_patch.diff / mutant.log
// as plain text.
func WritePatchFile(dir, name, content string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("artifact: mkdir: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, name), []byte(content), 0644)
}

func writeJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("artifact: mkdir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("artifact: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("artifact: read %s: %w", path, err)
	}
	return json.Unmarshal(data, v)
}
