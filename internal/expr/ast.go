package expr

import (
	"math"
	"strconv"
	"strings"

	"github.com/copyleftdev/stepwise/internal/optimization"
)

// node is an expression tree element.
type node interface {
	eval(b Bindings) (float64, error)
	// prec is the binding strength used when printing.
	prec() int
	write(sb *strings.Builder)
}

const (
	precSum = iota + 1
	precProduct
	precUnary
	precPower
	precAtom
)

type fn struct {
	eval func(float64) (float64, error)
}

var functions = map[string]fn{
	"sin":  {pure(math.Sin)},
	"cos":  {pure(math.Cos)},
	"tan":  {pure(math.Tan)},
	"exp":  {pure(math.Exp)},
	"abs":  {pure(math.Abs)},
	"log":  {evalLog},
	"ln":   {evalLog},
	"sqrt": {evalSqrt},
}

func pure(f func(float64) float64) func(float64) (float64, error) {
	return func(x float64) (float64, error) { return f(x), nil }
}

func evalLog(x float64) (float64, error) {
	if x <= 0 {
		return math.NaN(), evalErrorf("log of non-positive number %v", x)
	}
	return math.Log(x), nil
}

func evalSqrt(x float64) (float64, error) {
	if x < 0 {
		return math.NaN(), evalErrorf("sqrt of negative number %v", x)
	}
	return math.Sqrt(x), nil
}

func evalErrorf(format string, args ...interface{}) *optimization.Error {
	return optimization.Errorf(optimization.KindEvaluation, format, args...).WithComponent("expr")
}

type num struct{ v float64 }

func (n *num) eval(Bindings) (float64, error) { return n.v, nil }

func (n *num) prec() int {
	if n.v < 0 {
		return precUnary
	}
	return precAtom
}

func (n *num) write(sb *strings.Builder) {
	switch {
	case n.v == math.Pi:
		sb.WriteString("pi")
	case n.v == math.E:
		sb.WriteString("e")
	default:
		sb.WriteString(strconv.FormatFloat(n.v, 'g', -1, 64))
	}
}

type ident struct{ name string }

func (n *ident) eval(b Bindings) (float64, error) {
	v, ok := b[n.name]
	if !ok {
		return math.NaN(), evalErrorf("unbound variable %q", n.name)
	}
	return v, nil
}

func (n *ident) prec() int                 { return precAtom }
func (n *ident) write(sb *strings.Builder) { sb.WriteString(n.name) }

// unary is negation; unary plus is dropped by the parser.
type unary struct{ x node }

func (n *unary) eval(b Bindings) (float64, error) {
	v, err := n.x.eval(b)
	return -v, err
}

func (n *unary) prec() int { return precUnary }

func (n *unary) write(sb *strings.Builder) {
	sb.WriteByte('-')
	writeOperand(sb, n.x, precUnary)
}

type binary struct {
	op   byte
	l, r node
}

func (n *binary) eval(b Bindings) (float64, error) {
	l, err := n.l.eval(b)
	if err != nil {
		return math.NaN(), err
	}
	r, err := n.r.eval(b)
	if err != nil {
		return math.NaN(), err
	}
	switch n.op {
	case '+':
		return l + r, nil
	case '-':
		return l - r, nil
	case '*':
		return l * r, nil
	case '/':
		return l / r, nil
	case '^':
		return math.Pow(l, r), nil
	}
	return math.NaN(), evalErrorf("unknown operator %q", n.op)
}

func (n *binary) prec() int {
	switch n.op {
	case '+', '-':
		return precSum
	case '*', '/':
		return precProduct
	default:
		return precPower
	}
}

func (n *binary) write(sb *strings.Builder) {
	p := n.prec()
	if n.op == '^' {
		writeOperand(sb, n.l, p+1)
		sb.WriteByte('^')
		writeOperand(sb, n.r, precUnary)
		return
	}
	writeOperand(sb, n.l, p)
	sb.WriteByte(' ')
	sb.WriteByte(n.op)
	sb.WriteByte(' ')
	right := p
	if n.op == '-' || n.op == '/' {
		right = p + 1
	}
	writeOperand(sb, n.r, right)
}

type call struct {
	fn  string
	arg node
}

func (n *call) eval(b Bindings) (float64, error) {
	x, err := n.arg.eval(b)
	if err != nil {
		return math.NaN(), err
	}
	f, ok := functions[n.fn]
	if !ok {
		return math.NaN(), evalErrorf("unknown function %q", n.fn)
	}
	return f.eval(x)
}

func (n *call) prec() int { return precAtom }

func (n *call) write(sb *strings.Builder) {
	sb.WriteString(n.fn)
	sb.WriteByte('(')
	n.arg.write(sb)
	sb.WriteByte(')')
}

// list is a bracketed literal; only vector and matrix parsing accept it.
type list struct{ items []node }

func (n *list) eval(Bindings) (float64, error) {
	return math.NaN(), evalErrorf("list literal is not a scalar expression")
}

func (n *list) prec() int { return precAtom }

func (n *list) write(sb *strings.Builder) {
	sb.WriteByte('[')
	for i, item := range n.items {
		if i > 0 {
			sb.WriteString(", ")
		}
		item.write(sb)
	}
	sb.WriteByte(']')
}

func writeOperand(sb *strings.Builder, n node, min int) {
	if n.prec() < min {
		sb.WriteByte('(')
		n.write(sb)
		sb.WriteByte(')')
		return
	}
	n.write(sb)
}

func format(n node) string {
	var sb strings.Builder
	n.write(&sb)
	return sb.String()
}

// collectIdents adds every free variable of n to set.
func collectIdents(n node, set map[string]struct{}) {
	switch t := n.(type) {
	case *ident:
		set[t.name] = struct{}{}
	case *unary:
		collectIdents(t.x, set)
	case *binary:
		collectIdents(t.l, set)
		collectIdents(t.r, set)
	case *call:
		collectIdents(t.arg, set)
	case *list:
		for _, item := range t.items {
			collectIdents(item, set)
		}
	}
}

func dependsOn(n node, v string) bool {
	switch t := n.(type) {
	case *ident:
		return t.name == v
	case *unary:
		return dependsOn(t.x, v)
	case *binary:
		return dependsOn(t.l, v) || dependsOn(t.r, v)
	case *call:
		return dependsOn(t.arg, v)
	case *list:
		for _, item := range t.items {
			if dependsOn(item, v) {
				return true
			}
		}
	}
	return false
}
