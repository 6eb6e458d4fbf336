package infer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cognicore/reason/pkg/reason/fact"
	"github.com/cognicore/reason/pkg/reason/internalerr"
	"github.com/cognicore/reason/pkg/reason/rule"
)

// ByHeuristicTextMatch is the candidate-selection policy backward
// chaining uses: a rule is a candidate for a goal when its action
// target, action template, or natural-language text contains the goal
// name as a substring. This is a deliberate textual heuristic, not
// unification; it can admit false candidates, which the proof search
// then rejects when the produced fact does not match the goal.
const ByHeuristicTextMatch = "heuristic-text-match"

// keywords never treated as subgoal variables.
var booleanKeywords = map[string]struct{}{
	"true": {}, "false": {}, "null": {}, "undefined": {}, "and": {}, "or": {}, "not": {},
}

// Backward runs goal-directed proof search for a single goal fact.
// It requires at least one rule; an unprovable goal is not an error but
// yields a zero-confidence result.
func (e *Engine) Backward(ctx context.Context, facts []*fact.Fact, goal Goal) (Result, error) {
	var res Result
	if len(e.rules) == 0 {
		return res, internalerr.ErrNoRules
	}
	if goal.Name == "" {
		return res, internalerr.ErrNoGoal
	}

	res.Trace = append(res.Trace, fmt.Sprintf("goal: %s", goal.key()))
	proved := e.prove(ctx, goal, facts, map[string]struct{}{}, &res)
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if proved {
		res.Trace = append(res.Trace, fmt.Sprintf("goal %s proved", goal.key()))
		res.Confidence = e.aggregateConfidence(res.Applied, res.Derived)
	} else {
		res.Trace = append(res.Trace, fmt.Sprintf("goal %s not proved", goal.key()))
		res.Confidence = 0
	}
	return res, nil
}

// prove attempts to establish the goal from the available facts and the
// candidate rules. visited holds the goal keys on the current recursion
// path only; every recursive call receives a copy extended by the
// current key, so sibling branches do not share cycle state.
func (e *Engine) prove(ctx context.Context, goal Goal, available []*fact.Fact, visited map[string]struct{}, res *Result) bool {
	if ctx.Err() != nil {
		return false
	}

	if satisfies(available, goal) || satisfies(res.Derived, goal) {
		res.Trace = append(res.Trace, fmt.Sprintf("goal %s already satisfied by a known fact", goal.key()))
		return true
	}

	key := goal.key()
	if _, onPath := visited[key]; onPath {
		res.Trace = append(res.Trace, fmt.Sprintf("goal %s is cyclic on this path, abandoned", key))
		return false
	}

	for _, r := range e.candidates(goal) {
		if !e.proveViaRule(ctx, r, goal, available, visited, res) {
			continue
		}
		return true
	}
	return false
}

// proveViaRule tries one candidate: prove every subgoal, then execute
// the rule and check the produced fact against the goal.
func (e *Engine) proveViaRule(ctx context.Context, r *rule.Rule, goal Goal, available []*fact.Fact, visited map[string]struct{}, res *Result) bool {
	res.Trace = append(res.Trace, fmt.Sprintf("trying rule %s for goal %s", r.Name, goal.key()))

	for _, sub := range e.subgoals(r, available, res.Derived) {
		childVisited := make(map[string]struct{}, len(visited)+1)
		for k := range visited {
			childVisited[k] = struct{}{}
		}
		childVisited[goal.key()] = struct{}{}

		if !e.prove(ctx, Goal{Name: sub}, union(available, res.Derived), childVisited, res) {
			res.Trace = append(res.Trace, fmt.Sprintf("subgoal %s of rule %s failed", sub, r.Name))
			return false
		}
	}

	facts := union(available, res.Derived)
	eff := r.Execute(bindings(facts))
	derived := deriveFact(r, eff)
	if derived.Name != goal.Name {
		res.Trace = append(res.Trace, fmt.Sprintf("rule %s produced %s, not the goal", r.Name, derived.Name))
		return false
	}
	if goal.Value != nil && !derived.Value.Equal(*goal.Value) {
		res.Trace = append(res.Trace, fmt.Sprintf("rule %s produced %s = %s, value mismatch", r.Name, derived.Name, derived.Value))
		return false
	}

	res.Derived = append(res.Derived, derived)
	res.Applied = append(res.Applied, r.ID)
	res.Trace = append(res.Trace, fmt.Sprintf("rule %s established %s = %s", r.Name, derived.Name, derived.Value))
	return true
}

// candidates returns the enabled rules matched by ByHeuristicTextMatch,
// in rule order.
func (e *Engine) candidates(goal Goal) []*rule.Rule {
	var out []*rule.Rule
	for _, r := range e.rules {
		if !r.Enabled {
			continue
		}
		if strings.Contains(r.Action.Target, goal.Name) ||
			strings.Contains(r.Action.Template, goal.Name) ||
			strings.Contains(r.NaturalLanguage, goal.Name) {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		e.log.WithFields(logrus.Fields{"goal": goal.Name}).Debug("no candidate rules for goal")
	}
	return out
}

// subgoals lists what must hold before the rule can fire: every
// condition-listed entity and every free expression variable not already
// present as a fact. Boolean keywords are never subgoals.
func (e *Engine) subgoals(r *rule.Rule, available, derived []*fact.Fact) []string {
	present := make(map[string]struct{}, len(available)+len(derived))
	for _, f := range available {
		present[f.Name] = struct{}{}
	}
	for _, f := range derived {
		present[f.Name] = struct{}{}
	}

	var out []string
	seen := make(map[string]struct{})
	add := func(name string) {
		if name == "" {
			return
		}
		if _, keyword := booleanKeywords[strings.ToLower(name)]; keyword {
			return
		}
		if _, have := present[name]; have {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}

	entityKeys := make([]string, 0, len(r.Condition.Entities))
	for k := range r.Condition.Entities {
		entityKeys = append(entityKeys, k)
	}
	sort.Strings(entityKeys)
	for _, k := range entityKeys {
		add(r.Condition.Entities[k])
	}
	for _, variable := range r.Condition.Variables() {
		add(variable)
	}
	return out
}

// satisfies reports whether some fact matches the goal's name and, when
// the goal pins a value, that value.
func satisfies(facts []*fact.Fact, goal Goal) bool {
	for _, f := range facts {
		if f.Name != goal.Name {
			continue
		}
		if goal.Value == nil || f.Value.Equal(*goal.Value) {
			return true
		}
	}
	return false
}

func union(a, b []*fact.Fact) []*fact.Fact {
	out := make([]*fact.Fact, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}
