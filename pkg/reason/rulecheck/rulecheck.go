// Package rulecheck validates the structural well-formedness of a rule
// set before it is loaded into an engine. It checks shape only; whether
// the rules make domain sense is out of scope.
package rulecheck

import (
	"fmt"
	"regexp"

	"github.com/cognicore/reason/pkg/reason/expr"
	"github.com/cognicore/reason/pkg/reason/rule"
)

// Report is the outcome of validating a rule set.
type Report struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Validate checks every rule in the set and the set as a whole.
// The report is valid when no errors were found; warnings alone do not
// invalidate it.
func Validate(rules []*rule.Rule) Report {
	var rep Report

	if len(rules) == 0 {
		rep.Warnings = append(rep.Warnings, "rule set is empty")
	}

	seen := make(map[string]string, len(rules))
	for i, r := range rules {
		label := r.Name
		if label == "" {
			label = fmt.Sprintf("rule %d", i+1)
			rep.Errors = append(rep.Errors, fmt.Sprintf("%s: missing name", label))
		}

		if r.ID == "" {
			rep.Errors = append(rep.Errors, fmt.Sprintf("%s: missing id", label))
		} else if prev, dup := seen[r.ID]; dup {
			rep.Errors = append(rep.Errors, fmt.Sprintf("%s: duplicate id shared with %s", label, prev))
		} else {
			seen[r.ID] = label
		}

		checkCondition(label, r.Condition, &rep)
		checkAction(label, r.Action, &rep)

		if r.Confidence <= 0 {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("%s: confidence is zero, rule contributes nothing", label))
		}
		if !r.Enabled {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("%s: disabled", label))
		}
	}

	rep.IsValid = len(rep.Errors) == 0
	return rep
}

func checkCondition(label string, c rule.Condition, rep *Report) {
	switch c.Type {
	case rule.ConditionSimple:
		if c.Expression == "" {
			rep.Errors = append(rep.Errors, fmt.Sprintf("%s: simple condition without expression", label))
			return
		}
		if _, err := expr.Parse(c.Expression); err != nil {
			rep.Errors = append(rep.Errors, fmt.Sprintf("%s: %v", label, err))
		}
	case rule.ConditionComplex:
		if c.Expression != "" {
			if _, err := expr.Parse(c.Expression); err != nil {
				rep.Errors = append(rep.Errors, fmt.Sprintf("%s: %v", label, err))
			}
		}
		checkPatterns(label, c.Patterns, rep)
	case rule.ConditionNLP:
		if len(c.Patterns) == 0 && len(c.Intents) == 0 && len(c.Entities) == 0 {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("%s: nlp condition with no clauses can never match", label))
		}
		checkPatterns(label, c.Patterns, rep)
	default:
		rep.Errors = append(rep.Errors, fmt.Sprintf("%s: unknown condition type %q", label, c.Type))
	}
}

func checkPatterns(label string, patterns []string, rep *Report) {
	for _, p := range patterns {
		if _, err := regexp.Compile("(?i)" + p); err != nil {
			rep.Errors = append(rep.Errors, fmt.Sprintf("%s: bad pattern %q: %v", label, p, err))
		}
	}
}

func checkAction(label string, a rule.Action, rep *Report) {
	switch a.Type {
	case rule.ActionResponse, rule.ActionFunction, rule.ActionRedirect, rule.ActionAPI:
	default:
		rep.Errors = append(rep.Errors, fmt.Sprintf("%s: unknown action type %q", label, a.Type))
		return
	}
	if a.Target == "" && a.Template == "" {
		rep.Errors = append(rep.Errors, fmt.Sprintf("%s: action has neither target nor template", label))
	}
}
