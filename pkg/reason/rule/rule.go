// Package rule models condition→action rules and their evaluation
// against a snapshot of facts.
package rule

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cognicore/reason/pkg/reason/fact"
)

// Rule is one condition→action mapping with priority and confidence.
// Higher priority fires first; Enabled gates participation entirely.
type Rule struct {
	ID              string                `json:"id"`
	Name            string                `json:"name"`
	Condition       Condition             `json:"condition"`
	Action          Action                `json:"action"`
	Confidence      float64               `json:"confidence"`
	Priority        int                   `json:"priority"`
	Context         map[string]fact.Value `json:"context,omitempty"`
	NaturalLanguage string                `json:"naturalLanguage"`
	GeneratedFrom   string                `json:"generatedFrom,omitempty"`
	Enabled         bool                  `json:"enabled"`
	Description     string                `json:"description,omitempty"`
	Tags            []string              `json:"tags"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

// New creates an enabled rule with a fresh id, full confidence, and
// priority zero. The natural language restatement is derived from the
// condition and action when not set afterwards.
func New(name string, cond Condition, act Action) *Rule {
	now := time.Now().UTC()
	r := &Rule{
		ID:         fact.NewID(),
		Name:       name,
		Condition:  cond,
		Action:     act,
		Confidence: 1.0,
		Enabled:    true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.NaturalLanguage = r.naturalLanguage()
	return r
}

// FromStrings builds a rule from a bare expression and a bare response
// string, the normalized shorthand form.
func FromStrings(name, expression, response string) *Rule {
	return New(name, Simple(expression), Respond(response))
}

func (r *Rule) naturalLanguage() string {
	return fmt.Sprintf("when %s then %s", r.Condition.describe(), r.Action.describe())
}

// Evaluate checks the rule's condition against a fact binding map. An
// error marks the rule not-applicable for this snapshot; it is never
// propagated as fatal by the inference loop.
func (r *Rule) Evaluate(binds map[string]fact.Value) (bool, error) {
	return r.Condition.Evaluate(binds)
}

// Execute runs the rule's action and returns its effect descriptor.
// The rule's own context is applied first, then the supplied context
// overrides it for template substitution.
func (r *Rule) Execute(context map[string]fact.Value) Effect {
	if len(r.Context) > 0 {
		merged := make(map[string]fact.Value, len(r.Context)+len(context))
		for k, v := range r.Context {
			merged[k] = v
		}
		for k, v := range context {
			merged[k] = v
		}
		context = merged
	}
	return r.Action.Execute(context)
}

// Clone returns a rule with identical semantics but a new identity and
// fresh timestamps.
func (r *Rule) Clone() *Rule {
	now := time.Now().UTC()
	dup := *r
	dup.ID = fact.NewID()
	dup.CreatedAt = now
	dup.UpdatedAt = now
	dup.Tags = append([]string(nil), r.Tags...)
	if r.Context != nil {
		dup.Context = make(map[string]fact.Value, len(r.Context))
		for k, v := range r.Context {
			dup.Context[k] = v
		}
	}
	return &dup
}

// Touch bumps the modification timestamp. Call after any field update.
func (r *Rule) Touch() {
	r.UpdatedAt = time.Now().UTC()
}

// UnmarshalJSON decodes a rule, re-applying construction defaults:
// missing id, clamped confidence, enabled unless explicitly disabled,
// derived natural language text.
func (r *Rule) UnmarshalJSON(data []byte) error {
	type alias Rule
	raw := alias{Enabled: true, Confidence: 1.0}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Rule(raw)
	if r.ID == "" {
		r.ID = fact.NewID()
	}
	r.Confidence = fact.Clamp(r.Confidence)
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	if r.NaturalLanguage == "" {
		r.NaturalLanguage = r.naturalLanguage()
	}
	return nil
}

// FromJSON decodes a single rule from JSON.
func FromJSON(data []byte) (*Rule, error) {
	var r Rule
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
