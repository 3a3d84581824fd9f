package orchestrator

import (
	"reflect"
	"testing"
)

func TestSampleCommitsDeterministic(t *testing.T) {
	all := []string{"a", "b", "c", "d", "e", "f"}
	s1 := SampleCommits(all, 3, 42)
	s2 := SampleCommits(all, 3, 42)
	if !reflect.DeepEqual(s1, s2) {
		t.Fatalf("expected identical seed to produce identical sample, got %v vs %v", s1, s2)
	}
	if len(s1) != 3 {
		t.Fatalf("expected 3 commits sampled, got %d", len(s1))
	}
}

func TestSampleCommitsReturnsAllWhenSmallerThanK(t *testing.T) {
	all := []string{"a", "b"}
	got := SampleCommits(all, 5, 1)
	if len(got) != 2 {
		t.Fatalf("expected all 2 commits returned, got %d", len(got))
	}
}

func TestStrategyQuotaSumsToTotal(t *testing.T) {
	mix := map[string]float64{"priority_aware": 0.10, "empty_class": 0.10, "empty_function": 0.80}
	quota := StrategyQuota(mix, 20)

	sum := 0
	for _, q := range quota {
		sum += q
	}
	if sum != 20 {
		t.Fatalf("expected quotas to sum to 20, got %d (%v)", sum, quota)
	}
	if quota["empty_function"] < quota["priority_aware"] {
		t.Fatalf("expected empty_function's larger share to win the largest quota")
	}
}

func TestStrategyQuotaZeroTotal(t *testing.T) {
	mix := map[string]float64{"a": 0.5, "b": 0.5}
	quota := StrategyQuota(mix, 0)
	if quota["a"] != 0 || quota["b"] != 0 {
		t.Fatalf("expected zero quotas for a zero total, got %v", quota)
	}
}
