package orchestrator

import "math/rand"

// SampleCommits draws up to k commits from all using a fixed seed, so two
// runs over the same commit list and seed pick the identical sample.
// If len(all) <= k, all is returned unmodified.
func SampleCommits(all []string, k int, seed int64) []string {
	if k <= 0 || k >= len(all) {
		return append([]string{}, all...)
	}
	rng := rand.New(rand.NewSource(seed))
	shuffled := append([]string{}, all...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	return shuffled[:k]
}

// StrategyQuota splits budget.MaxMutations across the strategy mix
// proportions, rounding down and handing any remainder to the
// largest-share strategy so the quotas sum to exactly MaxMutations
//.
func StrategyQuota(mix map[string]float64, totalMutations int) map[string]int {
	quota := make(map[string]int, len(mix))
	assigned := 0
	largest := ""
	largestShare := -1.0
	for name, share := range mix {
		q := int(float64(totalMutations) * share)
		quota[name] = q
		assigned += q
		if share > largestShare {
			largestShare = share
			largest = name
		}
	}
	if remainder := totalMutations - assigned; remainder > 0 && largest != "" {
		quota[largest] += remainder
	}
	return quota
}
