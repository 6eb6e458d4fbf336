package rule

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/cognicore/reason/pkg/reason/fact"
)

// ActionType tags the four action kinds.
type ActionType string

const (
	ActionResponse ActionType = "response"
	ActionFunction ActionType = "function"
	ActionRedirect ActionType = "redirect"
	ActionAPI      ActionType = "api"
)

// Action is the right-hand side of a rule. Target carries the response
// text, function name, redirect target, or API endpoint depending on
// Type. Template, when set, takes precedence over Target and supports
// {{key}} substitution.
type Action struct {
	Type       ActionType            `json:"type"`
	Target     string                `json:"target"`
	Parameters map[string]fact.Value `json:"parameters,omitempty"`
	Template   string                `json:"template,omitempty"`
}

// Respond wraps a bare string in a response action. This is the
// normalized form of a string action.
func Respond(target string) Action {
	return Action{Type: ActionResponse, Target: target}
}

// UnmarshalJSON accepts either a bare string or an action object,
// normalizing the former into a response action.
func (a *Action) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = Respond(s)
		return nil
	}
	type alias Action
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Type == "" {
		raw.Type = ActionResponse
	}
	*a = Action(raw)
	return nil
}

// Effect describes what an executed action wants to happen. Rules never
// touch the outside world directly; the inference engine turns effects
// into derived facts and outer layers may act on them.
type Effect struct {
	Type       ActionType            `json:"type"`
	Content    string                `json:"content,omitempty"`  // response
	Function   string                `json:"function,omitempty"` // function
	Target     string                `json:"target,omitempty"`   // redirect
	Endpoint   string                `json:"endpoint,omitempty"` // api
	Parameters map[string]fact.Value `json:"parameters,omitempty"`
}

var templateKey = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// render substitutes {{key}} placeholders, resolving from the action's
// parameters first and the supplied context second. Unresolved keys are
// left in place.
func (a Action) render(context map[string]fact.Value) string {
	text := a.Target
	if a.Template != "" {
		text = a.Template
	}
	return templateKey.ReplaceAllStringFunc(text, func(m string) string {
		key := templateKey.FindStringSubmatch(m)[1]
		if v, ok := a.Parameters[key]; ok {
			return v.String()
		}
		if v, ok := context[key]; ok {
			return v.String()
		}
		return m
	})
}

// Execute produces the effect descriptor for this action. The optional
// context feeds template substitution.
func (a Action) Execute(context map[string]fact.Value) Effect {
	rendered := a.render(context)
	switch a.Type {
	case ActionFunction:
		return Effect{Type: ActionFunction, Function: rendered, Parameters: a.Parameters}
	case ActionRedirect:
		return Effect{Type: ActionRedirect, Target: rendered, Parameters: a.Parameters}
	case ActionAPI:
		return Effect{Type: ActionAPI, Endpoint: rendered, Parameters: a.Parameters}
	default:
		return Effect{Type: ActionResponse, Content: rendered}
	}
}

func (a Action) describe() string {
	switch a.Type {
	case ActionFunction:
		return fmt.Sprintf("call %s", a.Target)
	case ActionRedirect:
		return fmt.Sprintf("redirect to %s", a.Target)
	case ActionAPI:
		return fmt.Sprintf("invoke %s", a.Target)
	default:
		return fmt.Sprintf("respond %q", a.Target)
	}
}
