package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/cognicore/reason/pkg/reason/fact"
)

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokString
	tokIdent
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func lex(src string) ([]token, error) {
	var toks []token
	runes := []rune(src)
	i := 0
	for i < len(runes) {
		c := runes[i]
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == '\'' || c == '"':
			quote := c
			j := i + 1
			var sb strings.Builder
			for j < len(runes) && runes[j] != quote {
				sb.WriteRune(runes[j])
				j++
			}
			if j >= len(runes) {
				return nil, fmt.Errorf("lex %q: unterminated string at offset %d", src, i)
			}
			toks = append(toks, token{tokString, sb.String(), i})
			i = j + 1
		case unicode.IsDigit(c) || (c == '.' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			j := i
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, string(runes[i:j]), i})
			i = j
		case unicode.IsLetter(c) || c == '_':
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_' || runes[j] == '.') {
				j++
			}
			toks = append(toks, token{tokIdent, string(runes[i:j]), i})
			i = j
		case strings.ContainsRune("=!<>", c):
			if i+1 < len(runes) && runes[i+1] == '=' {
				toks = append(toks, token{tokOp, string(runes[i : i+2]), i})
				i += 2
			} else if c == '<' || c == '>' {
				toks = append(toks, token{tokOp, string(c), i})
				i++
			} else if c == '!' {
				toks = append(toks, token{tokOp, "!", i})
				i++
			} else {
				return nil, fmt.Errorf("lex %q: stray %q at offset %d", src, string(c), i)
			}
		case c == '&' && i+1 < len(runes) && runes[i+1] == '&':
			toks = append(toks, token{tokOp, "&&", i})
			i += 2
		case c == '|' && i+1 < len(runes) && runes[i+1] == '|':
			toks = append(toks, token{tokOp, "||", i})
			i += 2
		case strings.ContainsRune("+-*/", c):
			toks = append(toks, token{tokOp, string(c), i})
			i++
		default:
			return nil, fmt.Errorf("lex %q: unexpected %q at offset %d", src, string(c), i)
		}
	}
	return toks, nil
}

type parser struct {
	toks []token
	pos  int
	src  string
}

func (p *parser) atEnd() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token {
	if p.atEnd() {
		return token{tokOp, "", len(p.src)}
	}
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) acceptOp(ops ...string) (string, bool) {
	t := p.peek()
	if t.kind != tokOp {
		return "", false
	}
	for _, op := range ops {
		if t.text == op {
			p.pos++
			return op, true
		}
	}
	return "", false
}

func (p *parser) acceptKeyword(words ...string) (string, bool) {
	t := p.peek()
	if t.kind != tokIdent {
		return "", false
	}
	for _, w := range words {
		if strings.EqualFold(t.text, w) {
			p.pos++
			return w, true
		}
	}
	return "", false
}

// parseOr handles the lowest-precedence level: a or b, a || b.
func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.acceptOp("||"); !ok {
			if _, ok := p.acceptKeyword("or"); !ok {
				return left, nil
			}
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: "or", left: left, right: right}
	}
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.acceptOp("&&"); !ok {
			if _, ok := p.acceptKeyword("and"); !ok {
				return left, nil
			}
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: "and", left: left, right: right}
	}
}

func (p *parser) parseNot() (node, error) {
	if _, ok := p.acceptOp("!"); ok {
		child, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: "not", child: child}, nil
	}
	if _, ok := p.acceptKeyword("not"); ok {
		child, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: "not", child: child}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if op, ok := p.acceptOp("==", "!=", ">=", "<=", ">", "<"); ok {
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return binaryNode{op: op, left: left, right: right}, nil
	}
	return left, nil
}

func (p *parser) parseAdditive() (node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("+", "-")
		if !ok {
			return left, nil
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseMultiplicative() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("*", "/")
		if !ok {
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if _, ok := p.acceptOp("-"); ok {
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: "-", child: child}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.next()
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q: bad number %q", p.src, t.text)
		}
		return literalNode{val: fact.Number(f)}, nil
	case tokString:
		p.next()
		return literalNode{val: fact.String(t.text)}, nil
	case tokIdent:
		p.next()
		switch strings.ToLower(t.text) {
		case "true":
			return literalNode{val: fact.Bool(true)}, nil
		case "false":
			return literalNode{val: fact.Bool(false)}, nil
		case "null", "undefined":
			return literalNode{val: fact.Null()}, nil
		}
		return identNode{name: t.text}, nil
	case tokLParen:
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, fmt.Errorf("parse %q: missing ')' at offset %d", p.src, p.peek().pos)
		}
		p.next()
		return inner, nil
	default:
		return nil, fmt.Errorf("parse %q: unexpected %q at offset %d", p.src, t.text, t.pos)
	}
}
