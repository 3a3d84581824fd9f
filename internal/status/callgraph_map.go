package status

// TestFunctionMap is the bipartite mapping between test node-IDs and
// function node-IDs produced by the dynamic call-graph targeter. It is
// constructed from either direction; the other direction is always derived
// so both stay consistent.
type TestFunctionMap struct {
	FuncToTests map[string]map[string]struct{} `json:"-"`
	TestToFuncs map[string]map[string]struct{} `json:"-"`
}

// NewTestFunctionMapFromTestToFuncs builds a TestFunctionMap from the
// test→{function} direction (the direction the tracer naturally produces:
// one set of functions touched per test run) and derives the inverse.
func NewTestFunctionMapFromTestToFuncs(testToFuncs map[string][]string) *TestFunctionMap {
	m := &TestFunctionMap{
		FuncToTests: map[string]map[string]struct{}{},
		TestToFuncs: map[string]map[string]struct{}{},
	}
	for test, funcs := range testToFuncs {
		set := make(map[string]struct{}, len(funcs))
		for _, fn := range funcs {
			set[fn] = struct{}{}
			if m.FuncToTests[fn] == nil {
				m.FuncToTests[fn] = map[string]struct{}{}
			}
			m.FuncToTests[fn][test] = struct{}{}
		}
		m.TestToFuncs[test] = set
	}
	return m
}

// NewTestFunctionMapFromFuncToTests builds the inverse direction, e.g. when
// reloading a map that was persisted keyed by function.
func NewTestFunctionMapFromFuncToTests(funcToTests map[string][]string) *TestFunctionMap {
	m := &TestFunctionMap{
		FuncToTests: map[string]map[string]struct{}{},
		TestToFuncs: map[string]map[string]struct{}{},
	}
	for fn, tests := range funcToTests {
		set := make(map[string]struct{}, len(tests))
		for _, test := range tests {
			set[test] = struct{}{}
			if m.TestToFuncs[test] == nil {
				m.TestToFuncs[test] = map[string]struct{}{}
			}
			m.TestToFuncs[test][fn] = struct{}{}
		}
		m.FuncToTests[fn] = set
	}
	return m
}

// GetRelatedTests returns the union, over every target's node-ID, of the
// tests the call-graph map says exercise it.
func (m *TestFunctionMap) GetRelatedTests(targets []Target) map[string]struct{} {
	out := map[string]struct{}{}
	for _, t := range targets {
		for test := range m.FuncToTests[t.NodeID()] {
			out[test] = struct{}{}
		}
	}
	return out
}

// FunctionDegree returns how many distinct tests exercise the given
// function node-ID — the sampling weight the priority-aware strategy uses
//.
func (m *TestFunctionMap) FunctionDegree(funcNodeID string) int {
	return len(m.FuncToTests[funcNodeID])
}

// Functions returns every function node-ID present in the map.
func (m *TestFunctionMap) Functions() []string {
	out := make([]string, 0, len(m.FuncToTests))
	for fn := range m.FuncToTests {
		out = append(out, fn)
	}
	return out
}

// Tests returns every test node-ID present in the map.
func (m *TestFunctionMap) Tests() []string {
	out := make([]string, 0, len(m.TestToFuncs))
	for t := range m.TestToFuncs {
		out = append(out, t)
	}
	return out
}

// FuncToTestsPlain and TestToFuncsPlain convert the set-valued maps to
// slice-valued maps for JSON serialization (internal/artifact owns the
// actual zstd+JSON encode/decode).
func (m *TestFunctionMap) FuncToTestsPlain() map[string][]string {
	out := make(map[string][]string, len(m.FuncToTests))
	for fn, tests := range m.FuncToTests {
		out[fn] = sortedKeys(tests)
	}
	return out
}

func (m *TestFunctionMap) TestToFuncsPlain() map[string][]string {
	out := make(map[string][]string, len(m.TestToFuncs))
	for test, funcs := range m.TestToFuncs {
		out[test] = sortedKeys(funcs)
	}
	return out
}

// PageRank computes a PageRank score for every function node over the
// bipartite function/test graph, treating each edge as bidirectional.
// Informational only: target sampling weights use FunctionDegree.
func (m *TestFunctionMap) PageRank(damping float64, iterations int) map[string]float64 {
	if damping <= 0 || damping >= 1 {
		damping = 0.85
	}
	if iterations <= 0 {
		iterations = 20
	}

	adj := map[string][]string{}
	for fn, tests := range m.FuncToTests {
		for test := range tests {
			adj[fn] = append(adj[fn], test)
			adj[test] = append(adj[test], fn)
		}
	}
	n := len(adj)
	if n == 0 {
		return map[string]float64{}
	}

	rank := make(map[string]float64, n)
	for node := range adj {
		rank[node] = 1.0 / float64(n)
	}
	for i := 0; i < iterations; i++ {
		next := make(map[string]float64, n)
		base := (1 - damping) / float64(n)
		for node := range adj {
			next[node] = base
		}
		for node, neighbors := range adj {
			share := damping * rank[node] / float64(len(neighbors))
			for _, nb := range neighbors {
				next[nb] += share
			}
		}
		rank = next
	}

	out := make(map[string]float64, len(m.FuncToTests))
	for fn := range m.FuncToTests {
		out[fn] = rank[fn]
	}
	return out
}
