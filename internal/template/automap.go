package template

import (
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/samber/lo"

	"github.com/Priya8975/socialproof-pipeline/internal/domain"
)

// FieldKeys lists the keys of fields in declaration order.
func FieldKeys(fields []domain.NormalizedField) []string {
	return lo.Map(fields, func(f domain.NormalizedField, _ int) string { return f.Key })
}

// AutoMap proposes a source field for every placeholder. For each
// placeholder the first rule that finds a field wins:
//
//  1. exact key match
//  2. match ignoring case and separators (_, ., camelCase boundaries)
//  3. match on the final path segment, then the longest run of shared
//     leading or trailing words of that segment
//
// Ties go to the field listed first, so the result depends only on the
// order of the inputs. Placeholders with no match are left out. The
// computed fields always map to themselves.
func AutoMap(fieldKeys, placeholders []string) domain.FieldMapping {
	var m domain.FieldMapping
	candidates := lo.Reject(lo.Uniq(fieldKeys), func(k string, _ int) bool {
		return k == "" || domain.IsComputedField(k)
	})

	for _, p := range placeholders {
		if m.Has(p) {
			continue
		}
		if domain.IsComputedField(p) {
			m.Set(p, p)
			continue
		}
		if src, ok := matchField(p, candidates); ok {
			m.Set(p, src)
		}
	}
	return m
}

func matchField(placeholder string, keys []string) (string, bool) {
	if lo.Contains(keys, placeholder) {
		return placeholder, true
	}

	folded := fold(placeholder)
	if k, ok := lo.Find(keys, func(k string) bool { return fold(k) == folded }); ok {
		return k, true
	}

	seg := fold(lastSegment(placeholder))
	if k, ok := lo.Find(keys, func(k string) bool { return fold(lastSegment(k)) == seg }); ok {
		return k, true
	}

	words := wordsOf(lastSegment(placeholder))
	best, bestScore := "", 0
	for _, k := range keys {
		if s := sharedWords(words, wordsOf(lastSegment(k))); s > bestScore {
			best, bestScore = k, s
		}
	}
	return best, bestScore > 0
}

// fold reduces "template.userName", "Template_User_Name" and
// "template.user_name" to the same string.
func fold(s string) string {
	return strings.ReplaceAll(strcase.ToSnake(s), "_", "")
}

func lastSegment(s string) string {
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func wordsOf(s string) []string {
	return lo.Compact(strings.Split(strcase.ToSnake(s), "_"))
}

// sharedWords is the longer of the common leading and common trailing word
// runs of a and b.
func sharedWords(a, b []string) int {
	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix] == b[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(a) && suffix < len(b) && a[len(a)-1-suffix] == b[len(b)-1-suffix] {
		suffix++
	}
	return max(prefix, suffix)
}
