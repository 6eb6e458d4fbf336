package fact

import (
	"encoding/json"
	"testing"
)

func TestValueEqualDeep(t *testing.T) {
	a := Object(map[string]Value{
		"name": String("alert"),
		"tags": List(String("a"), Number(1)),
	})
	b := Object(map[string]Value{
		"tags": List(String("a"), Number(1)),
		"name": String("alert"),
	})
	if !a.Equal(b) {
		t.Error("deep-equal objects should compare equal")
	}

	c := Object(map[string]Value{
		"name": String("alert"),
		"tags": List(String("a"), Number(2)),
	})
	if a.Equal(c) {
		t.Error("objects differing in a nested element should not compare equal")
	}
}

func TestValueKindMismatchNeverEqual(t *testing.T) {
	if Number(1).Equal(String("1")) {
		t.Error("number and string should never be equal")
	}
	if Bool(false).Equal(Null()) {
		t.Error("false and null should never be equal")
	}
}

func TestValueTruthy(t *testing.T) {
	cases := []struct {
		val  Value
		want bool
	}{
		{Null(), false},
		{Bool(true), true},
		{Bool(false), false},
		{Number(0), false},
		{Number(-1), true},
		{String(""), false},
		{String("x"), true},
		{List(), false},
		{List(Number(1)), true},
	}
	for _, tc := range cases {
		if got := tc.val.Truthy(); got != tc.want {
			t.Errorf("Truthy(%s) = %v, want %v", tc.val, got, tc.want)
		}
	}
}

func TestValueJSONRoundTrip(t *testing.T) {
	orig := Object(map[string]Value{
		"n":    Number(3.5),
		"s":    String("hi"),
		"b":    Bool(true),
		"nil":  Null(),
		"list": List(Number(1), String("two")),
	})
	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Value
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !orig.Equal(back) {
		t.Errorf("round trip changed value: %s != %s", orig, back)
	}
}

func TestFromAnyYAMLShapes(t *testing.T) {
	v := FromAny(map[string]interface{}{"count": 3, "ok": true})
	count, ok := v.Field("count")
	if !ok {
		t.Fatal("missing field count")
	}
	if n, _ := count.Number(); n != 3 {
		t.Errorf("count = %v, want 3", n)
	}
}

func TestValueString(t *testing.T) {
	if got := Number(100).String(); got != "100" {
		t.Errorf("Number(100).String() = %q", got)
	}
	if got := String("alert").String(); got != "alert" {
		t.Errorf("String(alert).String() = %q", got)
	}
	if got := List(Number(1), Bool(false)).String(); got != "[1, false]" {
		t.Errorf("list String() = %q", got)
	}
}
