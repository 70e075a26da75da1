// Package template turns user-authored notification templates and
// canonical events into display markup. Everything here is pure: no
// function reads or writes shared state, so callers may run them from any
// goroutine and memoize the results.
package template

import (
	"regexp"

	"github.com/samber/lo"
)

const identPattern = `[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*`

var (
	placeholderRe = regexp.MustCompile(`\{\{\s*(` + identPattern + `)\s*\}\}`)
	identRe       = regexp.MustCompile(`^` + identPattern + `$`)
)

// Extract returns the distinct placeholder names found in html, in order of
// first appearance. It is purely lexical.
func Extract(html string) []string {
	matches := placeholderRe.FindAllStringSubmatch(html, -1)
	return lo.Uniq(lo.Map(matches, func(m []string, _ int) string {
		return m[1]
	}))
}
