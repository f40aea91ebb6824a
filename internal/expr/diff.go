package expr

import "math"

// diff returns the simplified derivative of n with respect to v.
func diff(n node, v string) node {
	switch t := n.(type) {
	case *num:
		return zero()
	case *ident:
		if t.name == v {
			return one()
		}
		return zero()
	case *unary:
		return neg(diff(t.x, v))
	case *binary:
		return diffBinary(t, v)
	case *call:
		return diffCall(t, v)
	case *list:
		items := make([]node, len(t.items))
		for i, item := range t.items {
			items[i] = diff(item, v)
		}
		return &list{items: items}
	}
	return zero()
}

func diffBinary(t *binary, v string) node {
	u, w := t.l, t.r
	switch t.op {
	case '+':
		return add(diff(u, v), diff(w, v))
	case '-':
		return sub(diff(u, v), diff(w, v))
	case '*':
		return add(mul(diff(u, v), w), mul(u, diff(w, v)))
	case '/':
		// (u'w - uw') / w^2
		return div(sub(mul(diff(u, v), w), mul(u, diff(w, v))), pow(w, constant(2)))
	case '^':
		switch {
		case !dependsOn(w, v):
			// w * u^(w-1) * u'
			return mul(mul(w, pow(u, sub(w, one()))), diff(u, v))
		case !dependsOn(u, v):
			// u^w * ln(u) * w'
			return mul(mul(pow(u, w), fnCall("log", u)), diff(w, v))
		default:
			// u^w * (w' ln(u) + w u'/u)
			inner := add(mul(diff(w, v), fnCall("log", u)), div(mul(w, diff(u, v)), u))
			return mul(pow(u, w), inner)
		}
	}
	return zero()
}

func diffCall(t *call, v string) node {
	u := t.arg
	du := diff(u, v)
	var outer node
	switch t.fn {
	case "sin":
		outer = fnCall("cos", u)
	case "cos":
		outer = neg(fnCall("sin", u))
	case "tan":
		outer = div(one(), pow(fnCall("cos", u), constant(2)))
	case "exp":
		outer = fnCall("exp", u)
	case "log", "ln":
		return div(du, u)
	case "sqrt":
		return div(du, mul(constant(2), fnCall("sqrt", u)))
	case "abs":
		outer = div(u, fnCall("abs", u))
	default:
		return zero()
	}
	return mul(outer, du)
}

// The constructors below fold constants and drop identity elements so that
// derivatives print compactly.

func constant(v float64) node { return &num{v: v} }
func zero() node              { return constant(0) }
func one() node               { return constant(1) }

func fnCall(name string, arg node) node {
	if c, ok := arg.(*num); ok {
		if f, ok := functions[name]; ok {
			if v, err := f.eval(c.v); err == nil && finite(v) {
				return constant(v)
			}
		}
	}
	return &call{fn: name, arg: arg}
}

func isConst(n node, v float64) bool {
	c, ok := n.(*num)
	return ok && c.v == v
}

func fold(a, b node, op func(x, y float64) float64) (node, bool) {
	x, ok1 := a.(*num)
	y, ok2 := b.(*num)
	if !ok1 || !ok2 {
		return nil, false
	}
	r := op(x.v, y.v)
	if !finite(r) {
		return nil, false
	}
	return constant(r), true
}

func neg(a node) node {
	switch t := a.(type) {
	case *num:
		return constant(-t.v)
	case *unary:
		return t.x
	}
	return &unary{x: a}
}

func add(a, b node) node {
	if r, ok := fold(a, b, func(x, y float64) float64 { return x + y }); ok {
		return r
	}
	if isConst(a, 0) {
		return b
	}
	if isConst(b, 0) {
		return a
	}
	if nb, ok := b.(*unary); ok {
		return &binary{op: '-', l: a, r: nb.x}
	}
	return &binary{op: '+', l: a, r: b}
}

func sub(a, b node) node {
	if r, ok := fold(a, b, func(x, y float64) float64 { return x - y }); ok {
		return r
	}
	if isConst(b, 0) {
		return a
	}
	if isConst(a, 0) {
		return neg(b)
	}
	if nb, ok := b.(*unary); ok {
		return add(a, nb.x)
	}
	return &binary{op: '-', l: a, r: b}
}

func mul(a, b node) node {
	if r, ok := fold(a, b, func(x, y float64) float64 { return x * y }); ok {
		return r
	}
	switch {
	case isConst(a, 0) || isConst(b, 0):
		return zero()
	case isConst(a, 1):
		return b
	case isConst(b, 1):
		return a
	case isConst(a, -1):
		return neg(b)
	case isConst(b, -1):
		return neg(a)
	}
	// Keep numeric coefficients on the left.
	if _, ok := b.(*num); ok {
		if _, ok := a.(*num); !ok {
			a, b = b, a
		}
	}
	if na, ok := a.(*unary); ok {
		return neg(mul(na.x, b))
	}
	if nb, ok := b.(*unary); ok {
		return neg(mul(a, nb.x))
	}
	return &binary{op: '*', l: a, r: b}
}

func div(a, b node) node {
	if r, ok := fold(a, b, func(x, y float64) float64 { return x / y }); ok {
		return r
	}
	switch {
	case isConst(a, 0) && !isConst(b, 0):
		return zero()
	case isConst(b, 1):
		return a
	case isConst(b, -1):
		return neg(a)
	}
	return &binary{op: '/', l: a, r: b}
}

func pow(a, b node) node {
	if r, ok := fold(a, b, math.Pow); ok {
		return r
	}
	switch {
	case isConst(b, 0):
		return one()
	case isConst(b, 1):
		return a
	}
	return &binary{op: '^', l: a, r: b}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
