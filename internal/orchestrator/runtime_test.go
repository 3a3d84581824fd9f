package orchestrator

import "testing"

func TestImageTagSanitizesSlashesAndCase(t *testing.T) {
	got := imageTag("psf/Requests", "2.0")
	want := "swesynth/psf-requests:2.0"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestImageTagDefaultsUnversioned(t *testing.T) {
	got := imageTag("psf__requests", "")
	want := "swesynth/psf__requests:unversioned"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestDefaultDockerfileDefaultsPythonVersion(t *testing.T) {
	got := DefaultDockerfile("")
	if !contains(got, "python:3.11-slim") {
		t.Fatalf("expected default Dockerfile to pin python 3.11, got:\n%s", got)
	}
}

func TestDefaultDockerfileHonorsExplicitVersion(t *testing.T) {
	got := DefaultDockerfile("3.9")
	if !contains(got, "python:3.9-slim") {
		t.Fatalf("expected Dockerfile to pin python 3.9, got:\n%s", got)
	}
}

func TestMin8(t *testing.T) {
	if min8(3) != 3 {
		t.Fatalf("expected min8(3)=3")
	}
	if min8(20) != 8 {
		t.Fatalf("expected min8(20)=8")
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
