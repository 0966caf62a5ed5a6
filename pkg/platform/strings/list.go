// Package strings holds small string helpers shared by config and handlers.
package strings

import "strings"

// SplitList splits raw on sep and returns the trimmed, non-empty elements with
// repeats removed. Order of first appearance is kept. An empty input yields nil.
func SplitList(raw, sep string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, sep) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, dup := seen[part]; dup {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	return out
}
