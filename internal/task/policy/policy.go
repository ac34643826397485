// Package policy decides whether a shell command may be run at all.
//
// A Policy is an ordered list of rules evaluated against the trimmed, lower-cased
// command. Evaluation stops at the first rule that rejects. The normalized form is
// used only for the decision; callers run and record the original string.
package policy

import (
	"strings"
)

// Rule is one layer of a Policy. Check reports whether the normalized command passes.
type Rule interface {
	Name() string
	Check(normalized string) bool
}

// Policy is a pure predicate over command strings.
type Policy struct {
	rules []Rule
}

// New builds a Policy that evaluates rules in the given order.
func New(rules ...Rule) *Policy {
	return &Policy{rules: append([]Rule(nil), rules...)}
}

// IsSafe reports whether command passes every rule. Blank input is never safe.
func (p *Policy) IsSafe(command string) bool {
	_, ok := p.Evaluate(command)
	return ok
}

// Evaluate is IsSafe that also names the rule that rejected the command.
// The name is "blank" for empty input and "" when the command is accepted.
func (p *Policy) Evaluate(command string) (string, bool) {
	normalized := Normalize(command)
	if normalized == "" {
		return "blank", false
	}
	if p == nil || len(p.rules) == 0 {
		return "no-rules", false
	}
	for _, rule := range p.rules {
		if !rule.Check(normalized) {
			return rule.Name(), false
		}
	}
	return "", true
}

// Rules returns the policy's rules in evaluation order.
func (p *Policy) Rules() []Rule {
	if p == nil {
		return nil
	}
	return append([]Rule(nil), p.rules...)
}

// Normalize trims and lower-cases a command for policy decisions.
func Normalize(command string) string {
	return strings.ToLower(strings.TrimSpace(command))
}
