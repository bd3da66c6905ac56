package basic

import (
	"math"
	"strings"
	"time"
)

// exprParser evaluates one expression by recursive descent over a token
// slice. Evaluation happens while parsing; there is no AST.
type exprParser struct {
	in   *Interpreter
	toks []Token
	pos  int
}

// evalAt evaluates the expression starting at toks[pos] and returns its
// value together with the index of the first unconsumed token.
func (in *Interpreter) evalAt(toks []Token, pos int) (Value, int, error) {
	p := &exprParser{in: in, toks: toks, pos: pos}
	v, err := p.expr()
	return v, p.pos, err
}

// evalAll evaluates a condition that owns the whole slice. Trailing tokens
// are ignored.
func (in *Interpreter) evalAll(toks []Token) (Value, error) {
	v, _, err := in.evalAt(toks, 0)
	return v, err
}

func (p *exprParser) peek() (Token, bool) {
	if p.pos < len(p.toks) {
		return p.toks[p.pos], true
	}
	return Token{}, false
}

func (p *exprParser) is(kind TokenKind, text string) bool {
	t, ok := p.peek()
	return ok && t.is(kind, text)
}

func (p *exprParser) eat(kind TokenKind, text string) bool {
	if p.is(kind, text) {
		p.pos++
		return true
	}
	return false
}

func (p *exprParser) expr() (Value, error) { return p.or() }

func (p *exprParser) or() (Value, error) {
	l, err := p.and()
	if err != nil {
		return l, err
	}
	for p.eat(TokIdent, "OR") {
		r, err := p.and()
		if err != nil {
			return r, err
		}
		l = Bool(l.Truthy() || r.Truthy())
	}
	return l, nil
}

func (p *exprParser) and() (Value, error) {
	l, err := p.not()
	if err != nil {
		return l, err
	}
	for p.eat(TokIdent, "AND") {
		r, err := p.not()
		if err != nil {
			return r, err
		}
		l = Bool(l.Truthy() && r.Truthy())
	}
	return l, nil
}

func (p *exprParser) not() (Value, error) {
	if p.eat(TokIdent, "NOT") {
		v, err := p.not()
		if err != nil {
			return v, err
		}
		return Bool(!v.Truthy()), nil
	}
	return p.comparison()
}

// comparison applies at most one relational operator; a second one is
// left for the caller.
func (p *exprParser) comparison() (Value, error) {
	l, err := p.additive()
	if err != nil {
		return l, err
	}
	t, ok := p.peek()
	if !ok || t.Kind != TokOp {
		return l, nil
	}
	switch t.Text {
	case "=", "<>", "<", ">", "<=", ">=":
	default:
		return l, nil
	}
	p.pos++
	r, err := p.additive()
	if err != nil {
		return r, err
	}
	switch t.Text {
	case "=":
		return Bool(StrictEqual(l, r)), nil
	case "<>":
		return Bool(!StrictEqual(l, r)), nil
	}
	c, ok := compareLoose(l, r)
	if !ok {
		return Bool(false), nil
	}
	switch t.Text {
	case "<":
		return Bool(c < 0), nil
	case ">":
		return Bool(c > 0), nil
	case "<=":
		return Bool(c <= 0), nil
	}
	return Bool(c >= 0), nil
}

func (p *exprParser) additive() (Value, error) {
	l, err := p.multiplicative()
	if err != nil {
		return l, err
	}
	for p.is(TokOp, "+") || p.is(TokOp, "-") {
		op := p.toks[p.pos].Text
		p.pos++
		r, err := p.multiplicative()
		if err != nil {
			return r, err
		}
		if op == "+" {
			l = Add(l, r)
		} else {
			l = Num(l.Number() - r.Number())
		}
	}
	return l, nil
}

func (p *exprParser) multiplicative() (Value, error) {
	l, err := p.power()
	if err != nil {
		return l, err
	}
	for p.is(TokOp, "*") || p.is(TokOp, "/") || p.is(TokIdent, "MOD") {
		op := p.toks[p.pos].Text
		p.pos++
		r, err := p.power()
		if err != nil {
			return r, err
		}
		switch op {
		case "*":
			l = Num(l.Number() * r.Number())
		case "/":
			if !r.IsString() && r.num == 0 {
				return l, ErrDivisionByZero
			}
			l = Num(l.Number() / r.Number())
		default:
			l = Num(math.Mod(l.Number(), r.Number()))
		}
	}
	return l, nil
}

// power binds a single exponent: 2^3^2 parses as (2^3) followed by ^2 left
// unconsumed.
func (p *exprParser) power() (Value, error) {
	l, err := p.unary()
	if err != nil {
		return l, err
	}
	if p.eat(TokOp, "^") {
		r, err := p.unary()
		if err != nil {
			return r, err
		}
		l = Num(math.Pow(l.Number(), r.Number()))
	}
	return l, nil
}

func (p *exprParser) unary() (Value, error) {
	if p.eat(TokOp, "-") {
		v, err := p.unary()
		if err != nil {
			return v, err
		}
		return Num(-v.Number()), nil
	}
	if p.eat(TokOp, "+") {
		return p.unary()
	}
	return p.primary()
}

func (p *exprParser) primary() (Value, error) {
	t, ok := p.peek()
	if !ok {
		return Value{}, ErrUnexpectedEnd
	}
	switch t.Kind {
	case TokNumber:
		p.pos++
		return Num(t.Num), nil
	case TokString:
		p.pos++
		return Str(t.Text), nil
	}
	if p.eat(TokOp, "(") {
		v, err := p.expr()
		if err != nil {
			return v, err
		}
		if !p.eat(TokOp, ")") {
			return v, expected(")")
		}
		return v, nil
	}
	if t.Kind != TokIdent {
		return Value{}, ErrSyntax
	}
	p.pos++
	name := t.Text
	if p.eat(TokOp, "(") {
		var args []Value
		if !p.is(TokOp, ")") {
			for {
				a, err := p.expr()
				if err != nil {
					return a, err
				}
				args = append(args, a)
				if !p.eat(TokOp, ",") {
					break
				}
			}
		}
		if !p.eat(TokOp, ")") {
			return Value{}, expected(")")
		}
		return p.in.callFunction(name, args)
	}
	switch name {
	case "RND":
		return Num(p.in.rng.Float64()), nil
	case "TIMER":
		return Num(math.Floor(float64(p.in.now().UnixNano()) / float64(time.Second))), nil
	case "PI":
		return Num(math.Pi), nil
	}
	return p.in.variable(name), nil
}

// variable reads a variable; undefined names yield 0, or "" for $ names.
func (in *Interpreter) variable(name string) Value {
	if v, ok := in.vars[name]; ok {
		return v
	}
	if strings.HasSuffix(name, "$") {
		return Str("")
	}
	return Num(0)
}
