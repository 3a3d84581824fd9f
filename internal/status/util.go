package status

import (
	"sort"
	"strings"
)

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sortStrings(out)
	return out
}

func sortStrings(s []string) {
	sort.Strings(s)
}

// testFile returns the file component of a "file::name" node-ID.
func testFile(nodeID string) string {
	if i := strings.Index(nodeID, "::"); i >= 0 {
		return nodeID[:i]
	}
	return nodeID
}
