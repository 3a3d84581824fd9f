package pysource

import (
	"strings"
	"testing"
)

const sampleSource = `class Greeter:
    """Greets people."""

    def hello(self, name):
        """Say hello."""
        greeting = "Hello, " + name
        return greeting

    def bye(self, name):
        return "Bye, " + name


def add(a, b):
    """Add two numbers."""
    return a + b
`

func TestParseFunctionsAndClasses(t *testing.T) {
	p := New()

	fns, err := p.ParseFunctions("mod.py", []byte(sampleSource))
	if err != nil {
		t.Fatalf("ParseFunctions: %v", err)
	}
	names := map[string]bool{}
	for _, fn := range fns {
		names[fn.Target.Name] = true
	}
	for _, want := range []string{"Greeter.hello", "Greeter.bye", "add"} {
		if !names[want] {
			t.Fatalf("expected function %q, got %v", want, names)
		}
	}

	classes, err := p.ParseClasses("mod.py", []byte(sampleSource))
	if err != nil {
		t.Fatalf("ParseClasses: %v", err)
	}
	if len(classes) != 1 || classes[0].Target.Name != "Greeter" {
		t.Fatalf("expected one class Greeter, got %+v", classes)
	}
	if len(classes[0].Methods) != 2 {
		t.Fatalf("expected 2 methods, got %d", len(classes[0].Methods))
	}
}

func TestEmptyFunctionPreservesDocstring(t *testing.T) {
	p := New()
	fn, err := p.FindFunction("mod.py", []byte(sampleSource), "mod.py::add")
	if err != nil {
		t.Fatalf("FindFunction: %v", err)
	}

	out := EmptyFunction(sampleSource, fn, "")

	if !strings.Contains(out, `"""Add two numbers."""`) {
		t.Fatalf("expected docstring preserved, got:\n%s", out)
	}
	if !strings.Contains(out, "raise NotImplementedError") {
		t.Fatalf("expected empty body inserted, got:\n%s", out)
	}
	if strings.Contains(out, "return a + b") {
		t.Fatalf("expected original body removed, got:\n%s", out)
	}
}

func TestReplaceFunctionRoundTrip(t *testing.T) {
	p := New()
	fn, err := p.FindFunction("mod.py", []byte(sampleSource), "mod.py::Greeter.hello")
	if err != nil {
		t.Fatalf("FindFunction: %v", err)
	}

	body := GetSignatureBody(sampleSource, fn)
	restored := ReplaceFunction(sampleSource, fn, body, true)

	if restored != sampleSource {
		t.Fatalf("round trip mismatch:\nwant:\n%q\ngot:\n%q", sampleSource, restored)
	}
}

func TestEmptyClassReverseOrder(t *testing.T) {
	p := New()
	cls, err := p.FindClass("mod.py", []byte(sampleSource), "mod.py::Greeter")
	if err != nil {
		t.Fatalf("FindClass: %v", err)
	}

	out := EmptyClass(sampleSource, cls, "")

	if strings.Contains(out, `greeting = "Hello, "`) || strings.Contains(out, `"Bye, "`) {
		t.Fatalf("expected both method bodies emptied, got:\n%s", out)
	}
	if strings.Count(out, "raise NotImplementedError") != 2 {
		t.Fatalf("expected 2 empty bodies, got:\n%s", out)
	}
	if !strings.Contains(out, `"""Say hello."""`) {
		t.Fatalf("expected docstring preserved in method, got:\n%s", out)
	}
}

func TestHintFunction(t *testing.T) {
	p := New()
	fn, err := p.FindFunction("mod.py", []byte(sampleSource), "mod.py::add")
	if err != nil {
		t.Fatalf("FindFunction: %v", err)
	}

	out := HintFunction(sampleSource, fn)

	if !strings.Contains(out, HintPlaceholder) {
		t.Fatalf("expected placeholder token, got:\n%s", out)
	}
	if strings.Contains(out, "return a + b") {
		t.Fatalf("expected original body removed, got:\n%s", out)
	}
}

func TestIsTestPath(t *testing.T) {
	cases := map[string]bool{
		"tests/test_foo.py":   true,
		"pkg/testing_utils.py": true,
		"pkg/mod.py":          false,
	}
	for path, want := range cases {
		if got := IsTestPath(path); got != want {
			t.Errorf("IsTestPath(%q) = %v, want %v", path, got, want)
		}
	}
}
