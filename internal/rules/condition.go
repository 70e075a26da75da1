// Package rules applies user-defined action rules to canonical events.
package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Priya8975/socialproof-pipeline/internal/domain"
)

type Op string

const (
	OpAlways   Op = ""
	OpContains Op = "contains"
	OpEquals   Op = "="
)

// Condition is a parsed rule predicate: <field> contains "<literal>" or
// <field> = "<literal>". The zero Condition matches every event.
type Condition struct {
	Field   string `json:"field,omitempty"`
	Op      Op     `json:"op,omitempty"`
	Literal string `json:"literal,omitempty"`
}

// ConditionError reports a predicate that could not be parsed.
type ConditionError struct {
	Condition string
	Pos       int
	Reason    string
}

func (e *ConditionError) Error() string {
	return fmt.Sprintf("condition %q: %s at offset %d", e.Condition, e.Reason, e.Pos)
}

// ParseCondition parses a predicate. A blank predicate yields the zero
// Condition.
func ParseCondition(s string) (Condition, error) {
	p := parser{src: s}
	p.skipSpace()
	if p.eof() {
		return Condition{}, nil
	}

	field := p.ident()
	if field == "" {
		return Condition{}, p.fail("expected field name")
	}
	p.skipSpace()

	var op Op
	switch {
	case p.consume("="):
		op = OpEquals
	case p.consumeWord(string(OpContains)):
		op = OpContains
	default:
		return Condition{}, p.fail(`expected "contains" or "="`)
	}
	p.skipSpace()

	lit, err := p.quoted()
	if err != nil {
		return Condition{}, err
	}
	p.skipSpace()
	if !p.eof() {
		return Condition{}, p.fail("unexpected trailing input")
	}
	return Condition{Field: field, Op: op, Literal: lit}, nil
}

func (c Condition) String() string {
	if c.Op == OpAlways {
		return ""
	}
	return fmt.Sprintf("%s %s %s", c.Field, c.Op, strconv.Quote(c.Literal))
}

// Match evaluates c against ev. Fields the event does not carry never
// match. contains ignores case; = is exact.
func (c Condition) Match(ev domain.CanonicalEvent) bool {
	if c.Op == OpAlways {
		return true
	}
	v, ok := fieldValue(ev, c.Field)
	if !ok {
		return false
	}
	switch c.Op {
	case OpContains:
		return strings.Contains(strings.ToLower(v), strings.ToLower(c.Literal))
	case OpEquals:
		return v == c.Literal
	default:
		return false
	}
}

// fieldValue resolves normalized keys first, then the event's own
// identifying attributes.
func fieldValue(ev domain.CanonicalEvent, field string) (string, bool) {
	if v, ok := ev.Normalized.Get(field); ok {
		if v == nil {
			return "", false
		}
		return domain.FormatValue(v), true
	}
	switch field {
	case "provider":
		return ev.Provider, true
	case "provider_event_type":
		return ev.ProviderEventType, true
	case "event_id":
		return ev.EventID, true
	}
	return "", false
}

type parser struct {
	src string
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) skipSpace() {
	for !p.eof() && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) fail(reason string) error {
	return &ConditionError{Condition: p.src, Pos: p.pos, Reason: reason}
}

func isIdentByte(c byte, first bool) bool {
	switch {
	case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9', c == '.':
		return !first
	}
	return false
}

func (p *parser) ident() string {
	start := p.pos
	for !p.eof() && isIdentByte(p.src[p.pos], p.pos == start) {
		p.pos++
	}
	return strings.TrimRight(p.src[start:p.pos], ".")
}

func (p *parser) consume(tok string) bool {
	if strings.HasPrefix(p.src[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

// consumeWord matches a keyword that must be followed by a space or quote.
func (p *parser) consumeWord(word string) bool {
	rest := p.src[p.pos:]
	if !strings.HasPrefix(strings.ToLower(rest), word) {
		return false
	}
	if len(rest) > len(word) && isIdentByte(rest[len(word)], false) {
		return false
	}
	p.pos += len(word)
	return true
}

func (p *parser) quoted() (string, error) {
	if p.eof() || p.src[p.pos] != '"' {
		return "", p.fail("expected quoted literal")
	}
	for end := p.pos + 1; end < len(p.src); end++ {
		switch p.src[end] {
		case '\\':
			end++
		case '"':
			lit, err := strconv.Unquote(p.src[p.pos : end+1])
			if err != nil {
				return "", p.fail("invalid escape in literal")
			}
			p.pos = end + 1
			return lit, nil
		}
	}
	return "", p.fail("unterminated literal")
}
