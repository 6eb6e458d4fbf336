package infer

import (
	"context"
	"strings"
	"testing"

	"github.com/cognicore/reason/pkg/reason/fact"
	"github.com/cognicore/reason/pkg/reason/rule"
)

func newEngine(t *testing.T, rules []*rule.Rule, opts Options) *Engine {
	t.Helper()
	e, err := New(rules, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

// setRule builds a rule whose action derives factName = v. The natural
// language text names the produced fact so backward chaining can find it.
func setRule(name, expression, factName string, v fact.Value) *rule.Rule {
	r := rule.New(name, rule.Simple(expression), rule.Action{
		Type:   rule.ActionFunction,
		Target: "set",
		Parameters: map[string]fact.Value{
			"name":  fact.String(factName),
			"value": v,
		},
	})
	r.NaturalLanguage = "when " + expression + " then set " + factName
	return r
}

func factNames(fs []*fact.Fact) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Name
	}
	return out
}

func TestForwardSingleRule(t *testing.T) {
	r := rule.FromStrings("hot", "temperature > 90", "too hot")
	e := newEngine(t, []*rule.Rule{r}, Options{})

	facts := []*fact.Fact{fact.New("temperature", fact.Number(95), fact.SourceUser, 1, nil)}
	res, err := e.Forward(context.Background(), facts)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if len(res.Applied) != 1 || res.Applied[0] != r.ID {
		t.Errorf("Applied = %v, want [%s]", res.Applied, r.ID)
	}
	if len(res.Derived) != 1 {
		t.Fatalf("Derived = %v", factNames(res.Derived))
	}
	d := res.Derived[0]
	if d.Name != "result_"+r.ID {
		t.Errorf("derived name = %q", d.Name)
	}
	if s, _ := d.Value.Str(); s != "too hot" {
		t.Errorf("derived value = %s", d.Value)
	}
	if d.Source != fact.SourceDerived {
		t.Errorf("derived source = %s", d.Source)
	}
	if len(d.DerivedFrom) != 1 || d.DerivedFrom[0] != r.ID {
		t.Errorf("derivedFrom = %v", d.DerivedFrom)
	}
}

func TestForwardVacuousRuleFiresExactlyOnce(t *testing.T) {
	r := rule.FromStrings("always", "true", "done")
	e := newEngine(t, []*rule.Rule{r}, Options{})

	res, err := e.Forward(context.Background(), nil)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if len(res.Applied) != 1 {
		t.Errorf("a perpetually true rule must fire exactly once, applied %d times", len(res.Applied))
	}
	if len(res.Derived) != 1 {
		t.Errorf("Derived = %v", factNames(res.Derived))
	}
}

func TestForwardChainsTransitively(t *testing.T) {
	rAB := setRule("a-to-b", "a == true", "b", fact.Bool(true))
	rBC := setRule("b-to-c", "b == true", "c", fact.Bool(true))
	e := newEngine(t, []*rule.Rule{rAB, rBC}, Options{})

	facts := []*fact.Fact{fact.New("a", fact.Bool(true), fact.SourceUser, 1, nil)}
	res, err := e.Forward(context.Background(), facts)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	names := factNames(res.Derived)
	if len(names) != 2 || names[0] != "b" || names[1] != "c" {
		t.Errorf("Derived = %v, want [b c]", names)
	}
	if len(res.Applied) != 2 || res.Applied[0] != rAB.ID || res.Applied[1] != rBC.ID {
		t.Errorf("Applied = %v", res.Applied)
	}
}

func TestForwardIdempotentOnDerivedFacts(t *testing.T) {
	r := rule.FromStrings("hot", "temperature > 90", "too hot")
	e := newEngine(t, []*rule.Rule{r}, Options{})

	facts := []*fact.Fact{fact.New("temperature", fact.Number(95), fact.SourceUser, 1, nil)}
	first, err := e.Forward(context.Background(), facts)
	if err != nil {
		t.Fatalf("first Forward: %v", err)
	}

	again, err := e.Forward(context.Background(), append(facts, first.Derived...))
	if err != nil {
		t.Fatalf("second Forward: %v", err)
	}
	if len(again.Applied) != 0 || len(again.Derived) != 0 {
		t.Errorf("rerun over the fixpoint should derive nothing, got applied=%v derived=%v",
			again.Applied, factNames(again.Derived))
	}
}

func TestForwardPrioritySuppressesLoser(t *testing.T) {
	// the winner rewrites x, so the lower-priority rule is no longer
	// applicable when its turn would come
	high := setRule("promote", "x == 1", "x", fact.Number(2))
	high.Priority = 2
	low := rule.FromStrings("lament", "x == 1", "x stayed put")
	low.Priority = 1
	e := newEngine(t, []*rule.Rule{low, high}, Options{Strategy: StrategyPriority})

	facts := []*fact.Fact{fact.New("x", fact.Number(1), fact.SourceUser, 1, nil)}
	res, err := e.Forward(context.Background(), facts)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if len(res.Applied) != 1 || res.Applied[0] != high.ID {
		t.Errorf("Applied = %v, want only the priority-2 rule", res.Applied)
	}
}

func TestForwardPriorityTieBreaksOnConfidence(t *testing.T) {
	strong := setRule("strong", "x == 1", "x", fact.Number(2))
	strong.Confidence = 0.9
	weak := setRule("weak", "x == 1", "x", fact.Number(3))
	weak.Confidence = 0.4
	e := newEngine(t, []*rule.Rule{weak, strong}, Options{})

	facts := []*fact.Fact{fact.New("x", fact.Number(1), fact.SourceUser, 1, nil)}
	res, err := e.Forward(context.Background(), facts)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if len(res.Applied) == 0 || res.Applied[0] != strong.ID {
		t.Errorf("Applied = %v, want the higher-confidence rule first", res.Applied)
	}
}

func TestForwardAllStrategyFiresEveryRule(t *testing.T) {
	first := rule.FromStrings("first", "x == 1", "one")
	first.Priority = 1
	second := rule.FromStrings("second", "x == 1", "two")
	e := newEngine(t, []*rule.Rule{second, first}, Options{Strategy: StrategyAll})

	facts := []*fact.Fact{fact.New("x", fact.Number(1), fact.SourceUser, 1, nil)}
	res, err := e.Forward(context.Background(), facts)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if len(res.Applied) != 2 {
		t.Fatalf("Applied = %v, want both rules", res.Applied)
	}
	if res.Applied[0] != first.ID || res.Applied[1] != second.ID {
		t.Errorf("Applied = %v, want priority order [first second]", res.Applied)
	}
}

func TestForwardMaxIterationsCapsChaining(t *testing.T) {
	chain := []*rule.Rule{
		setRule("f1-to-f2", "f1 == true", "f2", fact.Bool(true)),
		setRule("f2-to-f3", "f2 == true", "f3", fact.Bool(true)),
		setRule("f3-to-f4", "f3 == true", "f4", fact.Bool(true)),
	}
	e := newEngine(t, chain, Options{MaxIterations: 2})

	facts := []*fact.Fact{fact.New("f1", fact.Bool(true), fact.SourceUser, 1, nil)}
	res, err := e.Forward(context.Background(), facts)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	names := factNames(res.Derived)
	if len(names) != 2 || names[0] != "f2" || names[1] != "f3" {
		t.Errorf("two iterations should derive [f2 f3], got %v", names)
	}
	var capped bool
	for _, line := range res.Trace {
		if strings.Contains(line, "iteration limit reached") {
			capped = true
		}
	}
	if !capped {
		t.Errorf("trace should record the iteration cap: %v", res.Trace)
	}
}

func TestForwardRecordsEvaluationErrors(t *testing.T) {
	bad := rule.FromStrings("bad", "missing > 1", "never")
	good := rule.FromStrings("good", "true", "fired")
	e := newEngine(t, []*rule.Rule{bad, good}, Options{})

	res, err := e.Forward(context.Background(), nil)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if len(res.Applied) != 1 || res.Applied[0] != good.ID {
		t.Errorf("the healthy rule should still fire, applied %v", res.Applied)
	}
	if len(res.Errors) == 0 || !strings.Contains(res.Errors[0], "bad") {
		t.Errorf("evaluation failure should be recorded: %v", res.Errors)
	}
}

func TestForwardSkipsDisabledRules(t *testing.T) {
	r := rule.FromStrings("off", "true", "never")
	r.Enabled = false
	e := newEngine(t, []*rule.Rule{r}, Options{})

	res, err := e.Forward(context.Background(), nil)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if len(res.Applied) != 0 {
		t.Errorf("disabled rule fired: %v", res.Applied)
	}
}

func TestForwardHonorsContextCancellation(t *testing.T) {
	r := rule.FromStrings("always", "true", "done")
	e := newEngine(t, []*rule.Rule{r}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Forward(ctx, nil); err == nil {
		t.Error("cancelled context should abort the run")
	}
}

func TestForwardConfidenceAggregation(t *testing.T) {
	r := rule.FromStrings("hot", "temperature > 90", "too hot")
	r.Confidence = 0.8
	e := newEngine(t, []*rule.Rule{r}, Options{})

	facts := []*fact.Fact{fact.New("temperature", fact.Number(95), fact.SourceUser, 1, nil)}
	res, err := e.Forward(context.Background(), facts)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	// one applied rule at 0.8 plus one derived fact at 0.8
	if res.Confidence < 0.79 || res.Confidence > 0.81 {
		t.Errorf("Confidence = %v, want 0.8", res.Confidence)
	}
}

func TestDeriveFactShapes(t *testing.T) {
	set := setRule("set-alarm", "true", "alarm", fact.Bool(true))
	f := deriveFact(set, set.Execute(nil))
	if f.Name != "alarm" {
		t.Errorf("set effect should derive the named fact, got %q", f.Name)
	}
	if b, _ := f.Value.Bool(); !b {
		t.Errorf("set effect value = %s", f.Value)
	}

	fn := rule.New("poke", rule.Simple("true"), rule.Action{Type: rule.ActionFunction, Target: "notify"})
	f = deriveFact(fn, fn.Execute(nil))
	if f.Name != "executed_"+fn.ID {
		t.Errorf("non-set function should derive an execution marker, got %q", f.Name)
	}

	rd := rule.New("route", rule.Simple("true"), rule.Action{Type: rule.ActionRedirect, Target: "/help"})
	f = deriveFact(rd, rd.Execute(nil))
	if f.Name != "executed_"+rd.ID {
		t.Errorf("redirect should derive an execution marker, got %q", f.Name)
	}
}

func TestNewRejectsUnknownStrategy(t *testing.T) {
	if _, err := New(nil, Options{Strategy: "loudest"}); err == nil {
		t.Error("unknown strategy name should be rejected")
	}
}
