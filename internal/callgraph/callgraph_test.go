package callgraph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/FSoft-AI4Code/swesynth-go/internal/pysource"
)

func TestParseDumpMapsLinesToFunctions(t *testing.T) {
	dir := t.TempDir()
	src := "def f():\n    return 1\n\n\ndef g():\n    return 2\n"
	if err := os.WriteFile(filepath.Join(dir, "mod.py"), []byte(src), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	b := &Builder{CloneDir: dir, Parser: pysource.New()}
	raw := []byte(`{
		"files": {
			"mod.py": {
				"contexts": {
					"2": ["tests/test_mod.py::test_f|run"],
					"6": ["tests/test_mod.py::test_g|run", "tests/test_mod.py::test_other|run"]
				}
			}
		}
	}`)

	m, err := b.parseDump(raw)
	if err != nil {
		t.Fatalf("parseDump: %v", err)
	}

	if _, ok := m.FuncToTests["mod.py::f"]["tests/test_mod.py::test_f"]; !ok {
		t.Errorf("expected mod.py::f to be related to test_f")
	}
	if len(m.FuncToTests["mod.py::g"]) != 2 {
		t.Errorf("expected mod.py::g to have 2 related tests, got %d", len(m.FuncToTests["mod.py::g"]))
	}
}

func TestSanitizeCoverageConfig(t *testing.T) {
	in := "[run]\ndynamic_context = test_function\nbranch = True\nparallel = True\n"
	out := SanitizeCoverageConfig(in)
	if out == in {
		t.Errorf("expected sanitization to change the config")
	}
	for _, want := range []string{"dynamic_context = none", "branch = False", "parallel = False"} {
		if !contains(out, want) {
			t.Errorf("expected sanitized config to contain %q, got:\n%s", want, out)
		}
	}
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}
