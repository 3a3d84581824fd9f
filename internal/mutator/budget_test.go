package mutator

import "testing"

func TestBudgetExhaustedByIterations(t *testing.T) {
	b := &Budget{MaxIterations: 2}
	if b.Exhausted() {
		t.Fatalf("fresh budget should not be exhausted")
	}
	b.Tick()
	if b.Exhausted() {
		t.Fatalf("budget should not be exhausted after one of two iterations")
	}
	b.Tick()
	if !b.Exhausted() {
		t.Fatalf("budget should be exhausted after reaching MaxIterations")
	}
	if b.Iterations() != 2 {
		t.Fatalf("expected Iterations()=2, got %d", b.Iterations())
	}
}

func TestBudgetExhaustedByMutations(t *testing.T) {
	b := &Budget{MaxMutations: 1}
	b.RecordSurvivor()
	if !b.Exhausted() {
		t.Fatalf("expected budget exhausted after reaching MaxMutations")
	}
	if b.Mutations() != 1 {
		t.Fatalf("expected Mutations()=1, got %d", b.Mutations())
	}
}

func TestBudgetExhaustedByCost(t *testing.T) {
	b := &Budget{MaxCost: 1.0, CostPerCall: 0.5}
	b.Tick()
	if b.Exhausted() {
		t.Fatalf("budget should not be exhausted after spending half the cap")
	}
	b.Tick()
	if !b.Exhausted() {
		t.Fatalf("expected budget exhausted after spending the full cap")
	}
	if b.Spent() != 1.0 {
		t.Fatalf("expected Spent()=1.0, got %v", b.Spent())
	}
}

func TestBudgetUnboundedNeverExhausted(t *testing.T) {
	b := &Budget{}
	for i := 0; i < 1000; i++ {
		b.Tick()
	}
	if b.Exhausted() {
		t.Fatalf("a budget with all caps at zero should never report exhausted")
	}
}
