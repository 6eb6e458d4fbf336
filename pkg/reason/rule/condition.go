package rule

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cognicore/reason/pkg/reason/expr"
	"github.com/cognicore/reason/pkg/reason/fact"
)

// ConditionType tags the three condition kinds.
type ConditionType string

const (
	ConditionSimple  ConditionType = "simple"
	ConditionComplex ConditionType = "complex"
	ConditionNLP     ConditionType = "nlp"
)

// Well-known fact names a condition binds against. Analysis collaborators
// publish their output under these names.
const (
	factText     = "text"
	factIntent   = "intent"
	factEntities = "entities"
)

// Condition is the left-hand side of a rule.
//
// A simple condition is one expression over fact names. A complex
// condition ANDs the expression with entity, intent, and pattern checks.
// An nlp condition has no expression and is satisfied by any configured
// clause: a pattern matching the bound text, the bound intent being
// listed, or every listed entity being present.
type Condition struct {
	Type       ConditionType     `json:"type"`
	Expression string            `json:"expression,omitempty"`
	Entities   map[string]string `json:"entities,omitempty"`
	Intents    []string          `json:"intents,omitempty"`
	Patterns   []string          `json:"patterns,omitempty"`
}

// Simple wraps a bare expression in a simple condition. This is the
// normalized form of a string condition.
func Simple(expression string) Condition {
	return Condition{Type: ConditionSimple, Expression: expression}
}

// UnmarshalJSON accepts either a bare expression string or a condition
// object, normalizing the former into a simple condition.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Simple(s)
		return nil
	}
	type alias Condition
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Type == "" {
		raw.Type = ConditionSimple
	}
	*c = Condition(raw)
	return nil
}

// compiled expressions are cached so repeated fixpoint iterations do not
// re-parse the same source text.
var exprCache, _ = lru.New[string, *expr.Expr](512)

func compile(expression string) (*expr.Expr, error) {
	if e, ok := exprCache.Get(expression); ok {
		return e, nil
	}
	e, err := expr.Parse(expression)
	if err != nil {
		return nil, err
	}
	exprCache.Add(expression, e)
	return e, nil
}

// Evaluate checks the condition against a name→value binding map. The
// error return marks the condition malformed; callers treat that as
// not-applicable rather than fatal.
func (c Condition) Evaluate(binds map[string]fact.Value) (bool, error) {
	switch c.Type {
	case ConditionSimple:
		if c.Expression == "" {
			return false, fmt.Errorf("simple condition without expression")
		}
		return evalExpression(c.Expression, binds)
	case ConditionComplex:
		if c.Expression != "" {
			ok, err := evalExpression(c.Expression, binds)
			if err != nil || !ok {
				return false, err
			}
		}
		if len(c.Entities) > 0 && !c.entitiesPresent(binds) {
			return false, nil
		}
		if len(c.Intents) > 0 && !c.intentListed(binds) {
			return false, nil
		}
		if len(c.Patterns) > 0 {
			ok, err := c.patternMatches(binds)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case ConditionNLP:
		if len(c.Patterns) > 0 {
			ok, err := c.patternMatches(binds)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		if len(c.Intents) > 0 && c.intentListed(binds) {
			return true, nil
		}
		if len(c.Entities) > 0 && c.entitiesPresent(binds) {
			return true, nil
		}
		return false, nil
	default:
		return false, fmt.Errorf("unknown condition type %q", c.Type)
	}
}

func evalExpression(expression string, binds map[string]fact.Value) (bool, error) {
	e, err := compile(expression)
	if err != nil {
		return false, err
	}
	return e.EvalBool(binds)
}

// entitiesPresent reports whether every required entity value matches
// some element of the bound entities list by name or type.
func (c Condition) entitiesPresent(binds map[string]fact.Value) bool {
	bound, ok := binds[factEntities]
	if !ok {
		return false
	}
	list, ok := bound.List()
	if !ok {
		return false
	}
	for _, required := range c.Entities {
		found := false
		for _, el := range list {
			if name, ok := el.Field("name"); ok && name.Equal(fact.String(required)) {
				found = true
				break
			}
			if typ, ok := el.Field("type"); ok && typ.Equal(fact.String(required)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (c Condition) intentListed(binds map[string]fact.Value) bool {
	bound, ok := binds[factIntent]
	if !ok {
		return false
	}
	intent, ok := bound.Str()
	if !ok {
		return false
	}
	for _, candidate := range c.Intents {
		if strings.EqualFold(candidate, intent) {
			return true
		}
	}
	return false
}

func (c Condition) patternMatches(binds map[string]fact.Value) (bool, error) {
	bound, ok := binds[factText]
	if !ok {
		return false, nil
	}
	text, ok := bound.Str()
	if !ok {
		return false, nil
	}
	for _, pattern := range c.Patterns {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return false, fmt.Errorf("pattern %q: %w", pattern, err)
		}
		if re.MatchString(text) {
			return true, nil
		}
	}
	return false, nil
}

// Variables returns the fact names the condition's expression references,
// excluding boolean keywords. Used to derive backward-chaining subgoals.
func (c Condition) Variables() []string {
	if c.Expression == "" {
		return nil
	}
	return expr.Vars(c.Expression)
}

// describe renders a short human-readable restatement for the
// auto-derived natural language field.
func (c Condition) describe() string {
	switch c.Type {
	case ConditionNLP:
		var parts []string
		if len(c.Patterns) > 0 {
			parts = append(parts, fmt.Sprintf("text matches %s", strings.Join(c.Patterns, " or ")))
		}
		if len(c.Intents) > 0 {
			parts = append(parts, fmt.Sprintf("intent is %s", strings.Join(c.Intents, " or ")))
		}
		if len(c.Entities) > 0 {
			vals := make([]string, 0, len(c.Entities))
			for _, v := range c.Entities {
				vals = append(vals, v)
			}
			sort.Strings(vals)
			parts = append(parts, fmt.Sprintf("entities %s are present", strings.Join(vals, ", ")))
		}
		if len(parts) == 0 {
			return "nothing matches"
		}
		return strings.Join(parts, " or ")
	default:
		if c.Expression != "" {
			return c.Expression
		}
		return "always"
	}
}
