// ABOUTME: Dependency Extractor — finds task ids referenced by tasks.<id>.output templates
// ABOUTME: Pure function over a task step's input; no side effects, best-effort on malformed syntax

package template

import "strings"

// ExtractDependencies walks value recursively, scanning every string for {{...}} occurrences
// whose first path segment is "tasks", and returns the deduplicated set of referenced ids.
// input.* and forEach.* roots (and any other root) are ignored, as are malformed expressions:
// this is a best-effort scan, not a validator.
func ExtractDependencies(value interface{}) []string {
	seen := make(map[string]struct{})
	collect(value, seen)

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	return ids
}

func collect(value interface{}, seen map[string]struct{}) {
	switch v := value.(type) {
	case string:
		collectFromString(v, seen)
	case map[string]interface{}:
		for _, elem := range v {
			collect(elem, seen)
		}
	case []interface{}:
		for _, elem := range v {
			collect(elem, seen)
		}
	}
}

func collectFromString(s string, seen map[string]struct{}) {
	pos := 0
	for {
		start := strings.Index(s[pos:], "{{")
		if start < 0 {
			return
		}
		start += pos
		end := strings.Index(s[start:], "}}")
		if end < 0 {
			return
		}
		end += start

		expr := strings.TrimSpace(s[start+2 : end])
		pos = end + 2

		segs, err := parsePath(expr)
		if err != nil || len(segs) < 2 {
			continue
		}
		if segs[0].isIndex || segs[0].name != "tasks" || segs[1].isIndex {
			continue
		}
		seen[segs[1].name] = struct{}{}
	}
}
