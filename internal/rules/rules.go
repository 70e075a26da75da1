package rules

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Priya8975/socialproof-pipeline/internal/domain"
)

type compiled struct {
	rule   domain.ActionRule
	cond   Condition
	target string
	err    error
}

// RuleSet is a list of action rules parsed once and ready to evaluate.
// It is safe for concurrent use.
type RuleSet struct {
	rules []compiled
}

// Outcome is the result of applying a RuleSet to one event.
type Outcome struct {
	Event      domain.CanonicalEvent
	Suppressed bool
	// Applied names the rules that fired, in order.
	Applied []string
}

// Compile parses every rule. Broken rules are logged and kept in place as
// rules that never fire, so one bad rule cannot block the others.
func Compile(rules []domain.ActionRule, logger *slog.Logger) *RuleSet {
	rs := &RuleSet{rules: make([]compiled, 0, len(rules))}
	for i, r := range rules {
		c := compileRule(r)
		if c.err != nil && logger != nil {
			logger.Warn("action rule disabled",
				"index", i,
				"type", r.Type,
				"condition", r.Condition,
				"error", c.err,
			)
		}
		rs.rules = append(rs.rules, c)
	}
	return rs
}

// Validate reports every rule that Compile would disable.
func Validate(rules []domain.ActionRule) error {
	var errs []error
	for i, r := range rules {
		if err := compileRule(r).err; err != nil {
			errs = append(errs, fmt.Errorf("rule %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func compileRule(r domain.ActionRule) compiled {
	c := compiled{rule: r}
	c.cond, c.err = ParseCondition(r.Condition)
	if c.err != nil {
		return c
	}

	switch r.Type {
	case domain.RuleReplaceVariable:
		c.target = r.Target
		if c.target == "" {
			c.target = c.cond.Field
		}
		if c.target == "" {
			c.err = errors.New("replace_variable needs a target or a condition field")
		}
	case domain.RuleChangeURL:
		c.target = r.Target
		if c.target == "" {
			c.target = domain.FieldURL
		}
	case domain.RuleChangeImage:
		c.target = r.Target
		if c.target == "" {
			c.target = domain.FieldImage
		}
	case domain.RuleHideEvent:
	default:
		c.err = fmt.Errorf("unknown rule type %q", r.Type)
	}
	if c.target != "" && domain.IsComputedField(c.target) {
		c.err = fmt.Errorf("target %q: %w", c.target, domain.ErrReservedField)
	}
	return c
}

func (rs *RuleSet) Len() int { return len(rs.rules) }

// Errors returns the reason each disabled rule was disabled.
func (rs *RuleSet) Errors() []error {
	var out []error
	for _, c := range rs.rules {
		if c.err != nil {
			out = append(out, c.err)
		}
	}
	return out
}

// Apply runs the rules in order against a copy of ev. A matching hide_event
// suppresses the event and stops evaluation. ev itself is never modified.
func (rs *RuleSet) Apply(ev domain.CanonicalEvent) Outcome {
	out := Outcome{Event: ev.Clone()}
	for i, c := range rs.rules {
		if c.err != nil || !c.cond.Match(out.Event) {
			continue
		}
		out.Applied = append(out.Applied, fmt.Sprintf("%d:%s", i, c.rule.Type))
		if c.rule.Type == domain.RuleHideEvent {
			out.Suppressed = true
			break
		}
		out.Event.Normalized.Set(c.target, c.rule.Value)
	}
	return out
}

// Apply compiles rules and applies them to ev in one step.
func Apply(rules []domain.ActionRule, ev domain.CanonicalEvent, logger *slog.Logger) Outcome {
	return Compile(rules, logger).Apply(ev)
}
