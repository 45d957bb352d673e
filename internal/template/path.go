// ABOUTME: Recursive-descent parser for the template mini-language's dot/bracket paths
// ABOUTME: Deliberately hand-rolled rather than a general expression engine

package template

import (
	"strconv"
	"strings"

	"github.com/corewave/orchestrator/pkg/types"
)

// segment is one step of a parsed path: either a field lookup by name, or an
// array index.
type segment struct {
	name    string
	isIndex bool
	index   int
}

// parsePath tokenizes a dot-separated path with optional [n] array indices,
// e.g. "tasks.A.output.items[0].name" or "forEach.$parent.item.dept".
func parsePath(expr string) ([]segment, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, types.NewTemplateError(expr, "empty expression", nil)
	}

	var segs []segment
	pos := 0
	n := len(expr)

	readName := func() (string, error) {
		start := pos
		for pos < n && expr[pos] != '.' && expr[pos] != '[' {
			pos++
		}
		if pos == start {
			return "", types.NewTemplateError(expr, "expected identifier", nil)
		}
		return expr[start:pos], nil
	}

	for {
		name, err := readName()
		if err != nil {
			return nil, err
		}
		segs = append(segs, segment{name: name})

		for pos < n && expr[pos] == '[' {
			close := strings.IndexByte(expr[pos:], ']')
			if close < 0 {
				return nil, types.NewTemplateError(expr, "unterminated '[' in path", nil)
			}
			digits := expr[pos+1 : pos+close]
			idx, convErr := strconv.Atoi(digits)
			if convErr != nil {
				return nil, types.NewTemplateError(expr, "invalid array index '"+digits+"'", convErr)
			}
			segs = append(segs, segment{isIndex: true, index: idx})
			pos += close + 1
		}

		if pos >= n {
			break
		}
		if expr[pos] != '.' {
			return nil, types.NewTemplateError(expr, "expected '.' in path", nil)
		}
		pos++
		if pos >= n {
			return nil, types.NewTemplateError(expr, "trailing '.' in path", nil)
		}
	}

	return segs, nil
}
