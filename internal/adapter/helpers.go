package adapter

import (
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/tidwall/gjson"
)

// pickResult returns the first path holding a non-null, non-blank value.
func pickResult(root gjson.Result, paths ...string) (gjson.Result, bool) {
	for _, p := range paths {
		r := root.Get(p)
		if !r.Exists() || r.Type == gjson.Null {
			continue
		}
		if r.Type == gjson.String && strings.TrimSpace(r.Str) == "" {
			continue
		}
		return r, true
	}
	return gjson.Result{}, false
}

func pickString(root gjson.Result, paths ...string) string {
	r, ok := pickResult(root, paths...)
	if !ok {
		return ""
	}
	return strings.TrimSpace(r.String())
}

// parseTime understands epoch seconds, epoch milliseconds and whatever
// date layouts dateparse recognizes. Ambiguous layouts are read as UTC.
func parseTime(r gjson.Result) (time.Time, bool) {
	switch r.Type {
	case gjson.Number:
		return epoch(r.Int()), true
	case gjson.String:
		s := strings.TrimSpace(r.Str)
		if s == "" {
			return time.Time{}, false
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return epoch(n), true
		}
		t, err := dateparse.ParseIn(s, time.UTC)
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	default:
		return time.Time{}, false
	}
}

func epoch(n int64) time.Time {
	if n > 1e12 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

// firstWord keeps only the given name, which is what notifications show.
func firstWord(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " \t"); i > 0 {
		return s[:i]
	}
	return s
}
