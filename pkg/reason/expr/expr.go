// Package expr parses and evaluates rule condition expressions.
//
// The grammar is deliberately small: literals (numbers, quoted strings,
// true/false/null), identifiers that resolve against a binding map,
// comparison and arithmetic operators, and/or/not, and parentheses.
// Expressions are compiled to an AST once and walked per evaluation, so
// no general-purpose code evaluation is involved anywhere.
package expr

import (
	"fmt"
	"strings"

	"github.com/cognicore/reason/pkg/reason/fact"
)

// Expr is a compiled expression.
type Expr struct {
	src  string
	root node
	vars []string
}

// Parse compiles an expression string.
func Parse(src string) (*Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, src: src}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, fmt.Errorf("parse %q: unexpected %q at offset %d", src, p.peek().text, p.peek().pos)
	}
	e := &Expr{src: src, root: root}
	collectVars(root, &e.vars, map[string]struct{}{})
	return e, nil
}

// Source returns the original expression text.
func (e *Expr) Source() string { return e.src }

// Vars returns the free identifiers of the expression in first-occurrence
// order. Boolean keywords are not identifiers and never appear here.
func (e *Expr) Vars() []string { return append([]string(nil), e.vars...) }

// Eval walks the AST against the binding map. An unbound identifier or a
// type mismatch yields an error, never a panic.
func (e *Expr) Eval(binds map[string]fact.Value) (fact.Value, error) {
	return e.root.eval(binds)
}

// EvalBool evaluates the expression and reduces the result to its
// boolean interpretation.
func (e *Expr) EvalBool(binds map[string]fact.Value) (bool, error) {
	v, err := e.root.eval(binds)
	if err != nil {
		return false, err
	}
	return v.Truthy(), nil
}

type node interface {
	eval(binds map[string]fact.Value) (fact.Value, error)
}

type literalNode struct{ val fact.Value }

func (n literalNode) eval(map[string]fact.Value) (fact.Value, error) { return n.val, nil }

type identNode struct{ name string }

func (n identNode) eval(binds map[string]fact.Value) (fact.Value, error) {
	v, ok := binds[n.name]
	if !ok {
		return fact.Value{}, fmt.Errorf("unbound identifier %q", n.name)
	}
	return v, nil
}

type unaryNode struct {
	op    string // "-" or "not"
	child node
}

func (n unaryNode) eval(binds map[string]fact.Value) (fact.Value, error) {
	v, err := n.child.eval(binds)
	if err != nil {
		return fact.Value{}, err
	}
	switch n.op {
	case "not":
		return fact.Bool(!v.Truthy()), nil
	case "-":
		num, ok := v.Number()
		if !ok {
			return fact.Value{}, fmt.Errorf("unary minus on %s", v.Kind())
		}
		return fact.Number(-num), nil
	}
	return fact.Value{}, fmt.Errorf("unknown unary operator %q", n.op)
}

type binaryNode struct {
	op          string
	left, right node
}

func (n binaryNode) eval(binds map[string]fact.Value) (fact.Value, error) {
	// and/or short-circuit on the left operand's truthiness.
	if n.op == "and" || n.op == "or" {
		l, err := n.left.eval(binds)
		if err != nil {
			return fact.Value{}, err
		}
		if n.op == "and" && !l.Truthy() {
			return fact.Bool(false), nil
		}
		if n.op == "or" && l.Truthy() {
			return fact.Bool(true), nil
		}
		r, err := n.right.eval(binds)
		if err != nil {
			return fact.Value{}, err
		}
		return fact.Bool(r.Truthy()), nil
	}

	l, err := n.left.eval(binds)
	if err != nil {
		return fact.Value{}, err
	}
	r, err := n.right.eval(binds)
	if err != nil {
		return fact.Value{}, err
	}

	switch n.op {
	case "==":
		return fact.Bool(l.Equal(r)), nil
	case "!=":
		return fact.Bool(!l.Equal(r)), nil
	case ">", "<", ">=", "<=":
		return compare(n.op, l, r)
	case "+":
		if ls, ok := l.Str(); ok {
			return fact.String(ls + r.String()), nil
		}
		ln, lok := l.Number()
		rn, rok := r.Number()
		if !lok || !rok {
			return fact.Value{}, fmt.Errorf("operator + on %s and %s", l.Kind(), r.Kind())
		}
		return fact.Number(ln + rn), nil
	case "-", "*", "/":
		ln, lok := l.Number()
		rn, rok := r.Number()
		if !lok || !rok {
			return fact.Value{}, fmt.Errorf("operator %s on %s and %s", n.op, l.Kind(), r.Kind())
		}
		switch n.op {
		case "-":
			return fact.Number(ln - rn), nil
		case "*":
			return fact.Number(ln * rn), nil
		default:
			if rn == 0 {
				return fact.Value{}, fmt.Errorf("division by zero")
			}
			return fact.Number(ln / rn), nil
		}
	}
	return fact.Value{}, fmt.Errorf("unknown operator %q", n.op)
}

func compare(op string, l, r fact.Value) (fact.Value, error) {
	if ln, ok := l.Number(); ok {
		rn, ok := r.Number()
		if !ok {
			return fact.Value{}, fmt.Errorf("operator %s on number and %s", op, r.Kind())
		}
		return fact.Bool(compareFloats(op, ln, rn)), nil
	}
	if ls, ok := l.Str(); ok {
		rs, ok := r.Str()
		if !ok {
			return fact.Value{}, fmt.Errorf("operator %s on string and %s", op, r.Kind())
		}
		return fact.Bool(compareStrings(op, ls, rs)), nil
	}
	return fact.Value{}, fmt.Errorf("operator %s on %s", op, l.Kind())
}

func compareFloats(op string, a, b float64) bool {
	switch op {
	case ">":
		return a > b
	case "<":
		return a < b
	case ">=":
		return a >= b
	default:
		return a <= b
	}
}

func compareStrings(op string, a, b string) bool {
	c := strings.Compare(a, b)
	switch op {
	case ">":
		return c > 0
	case "<":
		return c < 0
	case ">=":
		return c >= 0
	default:
		return c <= 0
	}
}

func collectVars(n node, out *[]string, seen map[string]struct{}) {
	switch t := n.(type) {
	case identNode:
		if _, ok := seen[t.name]; !ok {
			seen[t.name] = struct{}{}
			*out = append(*out, t.name)
		}
	case unaryNode:
		collectVars(t.child, out, seen)
	case binaryNode:
		collectVars(t.left, out, seen)
		collectVars(t.right, out, seen)
	}
}

// Vars parses an expression and returns its free identifiers. A parse
// failure yields an empty slice; callers treating the expression as a
// condition will surface the failure through evaluation instead.
func Vars(src string) []string {
	e, err := Parse(src)
	if err != nil {
		return nil
	}
	return e.Vars()
}
