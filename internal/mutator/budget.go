package mutator

// Budget bounds one Mutator run: an iteration cap (candidates inspected),
// a mutation cap (survivors emitted), and an approximate USD cost cap
// accrued per model-backed candidate the strategy produced.
type Budget struct {
	MaxIterations int
	MaxMutations  int
	MaxCost       float64
	CostPerCall   float64

	iterations int
	mutations  int
	spent      float64
}

// Tick records one candidate having been processed, charging CostPerCall
// toward the cost budget.
func (b *Budget) Tick() {
	b.iterations++
	b.spent += b.CostPerCall
}

// RecordSurvivor records one emitted survivor toward the mutation cap.
func (b *Budget) RecordSurvivor() {
	b.mutations++
}

// Exhausted reports whether any of the three caps has been reached.
func (b *Budget) Exhausted() bool {
	if b.MaxIterations > 0 && b.iterations >= b.MaxIterations {
		return true
	}
	if b.MaxMutations > 0 && b.mutations >= b.MaxMutations {
		return true
	}
	if b.MaxCost > 0 && b.spent >= b.MaxCost {
		return true
	}
	return false
}

// Iterations, Mutations, and Spent report the budget's running counters
// for logging/monitoring.
func (b *Budget) Iterations() int { return b.iterations }
func (b *Budget) Mutations() int  { return b.mutations }
func (b *Budget) Spent() float64  { return b.spent }
