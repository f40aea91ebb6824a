package expr

import (
	"fmt"
	"math"

	"github.com/copyleftdev/stepwise/internal/optimization"
)

var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

// parser is a recursive-descent parser over the token stream:
//
//	expr    = term { ("+" | "-") term }
//	term    = unary { ("*" | "/") unary }
//	unary   = ("-" | "+") unary | power
//	power   = primary [ "^" unary ]
//	primary = number [ power ] | ident [ "(" expr ")" ] | "(" expr ")" | "[" expr { "," expr } "]"
//
// A number directly followed by an identifier or "(" is an implicit product.
type parser struct {
	toks []token
	pos  int
}

func parse(src string) (node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	if p.peek().kind == tokEOF {
		return nil, parseErrorf(0, "empty expression")
	}
	n, err := p.expr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, parseErrorf(t.pos, "unexpected %q", t.text)
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isOp(op string) bool {
	t := p.peek()
	return t.kind == tokOp && t.text == op
}

func (p *parser) expr() (node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.isOp("+") || p.isOp("-") {
		op := p.next().text[0]
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = &binary{op: op, l: left, r: right}
	}
	return left, nil
}

func (p *parser) term() (node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*") || p.isOp("/") {
		op := p.next().text[0]
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = &binary{op: op, l: left, r: right}
	}
	return left, nil
}

func (p *parser) unary() (node, error) {
	if p.isOp("-") || p.isOp("+") {
		op := p.next().text
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		if op == "+" {
			return x, nil
		}
		return &unary{x: x}, nil
	}
	return p.power()
}

func (p *parser) power() (node, error) {
	base, err := p.primary()
	if err != nil {
		return nil, err
	}
	if p.isOp("^") {
		p.next()
		exp, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &binary{op: '^', l: base, r: exp}, nil
	}
	return base, nil
}

func (p *parser) primary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		n := node(&num{v: t.num})
		if k := p.peek().kind; k == tokIdent || k == tokLParen {
			rhs, err := p.power()
			if err != nil {
				return nil, err
			}
			n = &binary{op: '*', l: n, r: rhs}
		}
		return n, nil
	case tokIdent:
		if p.peek().kind == tokLParen {
			if _, ok := functions[t.text]; !ok {
				return nil, parseErrorf(t.pos, "unknown function %q", t.text)
			}
			p.next()
			arg, err := p.expr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(tokRParen, ")"); err != nil {
				return nil, err
			}
			return &call{fn: t.text, arg: arg}, nil
		}
		if v, ok := constants[t.text]; ok {
			return &num{v: v}, nil
		}
		return &ident{name: t.text}, nil
	case tokLParen:
		n, err := p.expr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return n, nil
	case tokLBrack:
		items := []node{}
		for {
			item, err := p.expr()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
		if err := p.expect(tokRBrack, "]"); err != nil {
			return nil, err
		}
		return &list{items: items}, nil
	case tokEOF:
		return nil, parseErrorf(t.pos, "unexpected end of expression")
	default:
		return nil, parseErrorf(t.pos, "unexpected %q", t.text)
	}
}

func (p *parser) expect(kind tokenKind, text string) error {
	t := p.peek()
	if t.kind != kind {
		if t.kind == tokEOF {
			return parseErrorf(t.pos, "expected %q before end of expression", text)
		}
		return parseErrorf(t.pos, "expected %q, got %q", text, t.text)
	}
	p.next()
	return nil
}

func parseErrorf(pos int, format string, args ...interface{}) *optimization.Error {
	msg := fmt.Sprintf(format, args...)
	return optimization.Errorf(optimization.KindEvaluation, "parse error at offset %d: %s", pos, msg).
		WithComponent("expr")
}
