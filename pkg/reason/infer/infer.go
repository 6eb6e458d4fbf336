// Package infer implements the two search strategies of the reasoning
// engine: forward chaining to a fixpoint and goal-directed backward
// chaining, plus conflict resolution between applicable rules.
//
// An Engine is stateless: it is bound to a rule list at construction and
// operates on fact snapshots supplied per call, never owning either.
package infer

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/cognicore/reason/pkg/reason/fact"
	"github.com/cognicore/reason/pkg/reason/rule"
)

// DefaultMaxIterations bounds forward chaining when no cap is configured.
const DefaultMaxIterations = 100

// Options configures an inference engine.
type Options struct {
	MaxIterations int
	Strategy      string // conflict-resolution strategy name, default "priority"
	Logger        *logrus.Logger
}

// Engine runs inference over an externally owned rule list.
type Engine struct {
	rules    []*rule.Rule
	maxIter  int
	strategy Strategy
	log      *logrus.Logger
}

// New binds an engine to a rule list. The slice is referenced, not
// copied; the caller must not mutate it while a call is in flight.
func New(rules []*rule.Rule, opts Options) (*Engine, error) {
	strategy, err := StrategyByName(opts.Strategy)
	if err != nil {
		return nil, err
	}
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	log := opts.Logger
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Engine{rules: rules, maxIter: maxIter, strategy: strategy, log: log}, nil
}

// Result is the outcome of one inference call.
type Result struct {
	Derived    []*fact.Fact // newly derived facts, discovery order
	Applied    []string     // applied rule ids, discovery order
	Confidence float64      // arithmetic mean over applied rules and derived facts
	Trace      []string     // human-readable reasoning steps
	Errors     []string     // recovered evaluation failures
}

// Goal names the fact a backward-chaining call must prove. A nil Value
// accepts any value under that name.
type Goal struct {
	Name  string
	Value *fact.Value
}

func (g Goal) key() string {
	if g.Value == nil {
		return g.Name + ":*"
	}
	return g.Name + ":" + g.Value.String()
}

// bindings builds the name→value snapshot rules evaluate against. Later
// facts win on name collision, matching merge order.
func bindings(facts []*fact.Fact) map[string]fact.Value {
	out := make(map[string]fact.Value, len(facts))
	for _, f := range facts {
		out[f.Name] = f.Value
	}
	return out
}

// containsFact reports whether an equal fact (name + deep value) is
// already present.
func containsFact(facts []*fact.Fact, candidate *fact.Fact) bool {
	for _, f := range facts {
		if f.Equal(candidate) {
			return true
		}
	}
	return false
}

// deriveFact turns a rule's effect descriptor into a fact at the rule's
// confidence. Response effects become result_<ruleID> carrying the
// content; a function effect named "set" with name/value parameters
// becomes that key/value pair; everything else becomes an
// executed_<ruleID> marker.
func deriveFact(r *rule.Rule, eff rule.Effect) *fact.Fact {
	switch {
	case eff.Type == rule.ActionResponse:
		return fact.New("result_"+r.ID, fact.String(eff.Content), fact.SourceDerived, r.Confidence, []string{r.ID})
	case eff.Type == rule.ActionFunction && eff.Function == "set":
		name, nameOK := eff.Parameters["name"]
		value, valueOK := eff.Parameters["value"]
		if nameOK && valueOK {
			if n, ok := name.Str(); ok && n != "" {
				return fact.New(n, value, fact.SourceDerived, r.Confidence, []string{r.ID})
			}
		}
	}
	return fact.New("executed_"+r.ID, fact.Bool(true), fact.SourceDerived, r.Confidence, []string{r.ID})
}

// aggregateConfidence averages the confidences of all applied rules and
// all derived facts.
func (e *Engine) aggregateConfidence(applied []string, derived []*fact.Fact) float64 {
	var sum float64
	var n int
	for _, id := range applied {
		if r := e.ruleByID(id); r != nil {
			sum += r.Confidence
		} else {
			sum += 0.5
		}
		n++
	}
	for _, f := range derived {
		sum += f.Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func (e *Engine) ruleByID(id string) *rule.Rule {
	for _, r := range e.rules {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// Forward runs forward chaining: evaluate every enabled rule against the
// current snapshot, resolve conflicts, execute the winners, fold the
// derived facts back in, and repeat until nothing changes or the
// iteration cap is hit. Evaluation failures are recorded and logged but
// never abort the run.
func (e *Engine) Forward(ctx context.Context, facts []*fact.Fact) (Result, error) {
	var res Result
	working := append([]*fact.Fact(nil), facts...)
	binds := bindings(working)

	for iter := 1; iter <= e.maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		applicable := e.applicable(binds, &res)
		if len(applicable) == 0 {
			res.Trace = append(res.Trace, fmt.Sprintf("iteration %d: no applicable rules, fixpoint reached", iter))
			break
		}

		selected := e.strategy.Select(applicable)
		res.Trace = append(res.Trace, fmt.Sprintf("iteration %d: %d applicable rules (%s strategy)",
			iter, len(applicable), e.strategy.Name()))

		changed := false
		for _, r := range selected {
			eff := r.Execute(binds)
			derived := deriveFact(r, eff)
			if containsFact(working, derived) {
				// Executing again would only restate a known fact, so the
				// application is not recorded; this is what lets the loop
				// reach a fixpoint on rules whose conditions stay true.
				res.Trace = append(res.Trace, fmt.Sprintf("rule %s restated known fact %s, skipped", r.Name, derived.Name))
				continue
			}
			res.Applied = append(res.Applied, r.ID)
			res.Trace = append(res.Trace, fmt.Sprintf("applied rule %s (priority %d, confidence %.2f)", r.Name, r.Priority, r.Confidence))
			working = append(working, derived)
			binds[derived.Name] = derived.Value
			res.Derived = append(res.Derived, derived)
			res.Trace = append(res.Trace, fmt.Sprintf("derived fact %s = %s (confidence %.2f)", derived.Name, derived.Value, derived.Confidence))
			changed = true
			// an exclusive strategy fires a single winner per iteration
			if e.strategy.Exclusive() {
				break
			}
		}

		if !changed {
			res.Trace = append(res.Trace, fmt.Sprintf("iteration %d: no new facts, fixpoint reached", iter))
			break
		}
		if iter == e.maxIter {
			res.Trace = append(res.Trace, fmt.Sprintf("iteration limit reached (%d)", e.maxIter))
		}
	}

	res.Confidence = e.aggregateConfidence(res.Applied, res.Derived)
	return res, nil
}

// applicable returns the enabled rules whose conditions hold against the
// snapshot. A rule whose evaluation fails is skipped and recorded.
func (e *Engine) applicable(binds map[string]fact.Value, res *Result) []*rule.Rule {
	var out []*rule.Rule
	for _, r := range e.rules {
		if !r.Enabled {
			continue
		}
		ok, err := r.Evaluate(binds)
		if err != nil {
			msg := fmt.Sprintf("rule %s: %v", r.Name, err)
			res.Errors = append(res.Errors, msg)
			e.log.WithFields(logrus.Fields{"rule_id": r.ID, "rule": r.Name}).Warnf("condition evaluation failed: %v", err)
			continue
		}
		if ok {
			out = append(out, r)
		}
	}
	return out
}
