package expr

import (
	"strings"
	"testing"

	"github.com/cognicore/reason/pkg/reason/fact"
)

func evalBool(t *testing.T, src string, binds map[string]fact.Value) bool {
	t.Helper()
	e, err := Parse(src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	got, err := e.EvalBool(binds)
	if err != nil {
		t.Fatalf("eval %q: %v", src, err)
	}
	return got
}

func TestEvalBool(t *testing.T) {
	binds := map[string]fact.Value{
		"temperature": fact.Number(95),
		"status":      fact.String("active"),
		"enabled":     fact.Bool(true),
		"count":       fact.Number(0),
	}
	cases := []struct {
		src  string
		want bool
	}{
		{"temperature > 90", true},
		{"temperature > 90 and status == 'active'", true},
		{"temperature > 100 or enabled", true},
		{"not enabled", false},
		{"count == 0", true},
		{"count", false},
		{"status != \"idle\"", true},
		{"temperature >= 95 and temperature <= 95", true},
		{"(temperature > 100 or count == 0) and enabled", true},
		{"true", true},
		{"false or false", false},
		{"temperature + 5 > 99", true},
		{"temperature - 5 * 2 == 85", true},
		{"(temperature - 5) * 2 == 180", true},
		{"-temperature < 0", true},
		{"temperature / 5 == 19", true},
		{"status + '!' == 'active!'", true},
		{"'abc' < 'abd'", true},
		{"null == null", true},
		{"undefined == null", true},
	}
	for _, tc := range cases {
		if got := evalBool(t, tc.src, binds); got != tc.want {
			t.Errorf("%q = %v, want %v", tc.src, got, tc.want)
		}
	}
}

func TestShortCircuit(t *testing.T) {
	// the right operand references an unbound identifier and must not
	// be evaluated when the left operand decides the result
	binds := map[string]fact.Value{"x": fact.Number(1)}
	if got := evalBool(t, "x == 1 or missing > 3", binds); !got {
		t.Error("or should short-circuit on a true left operand")
	}
	if got := evalBool(t, "x == 2 and missing > 3", binds); got {
		t.Error("and should short-circuit on a false left operand")
	}
}

func TestUnboundIdentifier(t *testing.T) {
	e, err := Parse("missing > 3")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := e.EvalBool(nil); err == nil {
		t.Error("unbound identifier should yield an error, not a default")
	} else if !strings.Contains(err.Error(), "missing") {
		t.Errorf("error should name the identifier: %v", err)
	}
}

func TestEvalErrors(t *testing.T) {
	binds := map[string]fact.Value{
		"s": fact.String("x"),
		"n": fact.Number(1),
	}
	for _, src := range []string{
		"n / 0",
		"s * 2",
		"-s",
		"n > s",
	} {
		e, err := Parse(src)
		if err != nil {
			t.Fatalf("parse %q: %v", src, err)
		}
		if _, err := e.Eval(binds); err == nil {
			t.Errorf("%q should fail at evaluation", src)
		}
	}
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{
		"",
		"temperature >",
		"(a == 1",
		"a == 1)",
		"a ? b",
		"'unclosed",
	} {
		if _, err := Parse(src); err == nil {
			t.Errorf("Parse(%q) should fail", src)
		}
	}
}

func TestVars(t *testing.T) {
	got := Vars("temperature > 90 and status == 'active' and temperature < 120")
	want := []string{"temperature", "status"}
	if len(got) != len(want) {
		t.Fatalf("Vars = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Vars[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	// keywords are literals, never free variables
	if vs := Vars("true and not false or null == undefined"); len(vs) != 0 {
		t.Errorf("keywords leaked into Vars: %v", vs)
	}

	if vs := Vars("((("); vs != nil {
		t.Errorf("unparseable expression should yield nil vars, got %v", vs)
	}
}

func TestDottedIdentifiers(t *testing.T) {
	binds := map[string]fact.Value{"user.age": fact.Number(30)}
	if !evalBool(t, "user.age >= 18", binds) {
		t.Error("dotted identifiers should resolve as a single binding key")
	}
}

func TestEvalValue(t *testing.T) {
	e, err := Parse("2 + 3 * 4")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	v, err := e.Eval(nil)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	n, ok := v.Number()
	if !ok || n != 14 {
		t.Errorf("2 + 3 * 4 = %v, want 14", v)
	}
}
