package strategy

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/quantblocks/quantblocks/internal/core"
	"github.com/quantblocks/quantblocks/internal/indicator"
)

// Expr is a parsed condition expression. Evaluation never fails: any
// missing series, undefined value, or out-of-range index makes the
// condition false.
type Expr interface {
	// Eval evaluates the expression at bar idx against the computed
	// indicator series keyed by block id.
	Eval(series map[string]indicator.Series, idx int) bool
	// String renders the expression in canonical form.
	String() string
}

// ParseExpr parses a condition expression into its AST. The grammar:
//
//	expr    := term (("or" | "||") term)*
//	term    := factor (("and" | "&&") factor)*
//	factor  := cross | compare | "(" expr ")"
//	cross   := ("cross_over" | "cross_under") "(" ident "," ident ")"
//	compare := operand (">" | "<" | ">=" | "<=" | "==" | "!=") operand
//	operand := ident | number
func ParseExpr(input string) (Expr, error) {
	toks, err := tokenize(input)
	if err != nil {
		return nil, core.WrapError(core.ErrConditionEval, err)
	}
	p := &parser{toks: toks}
	expr, err := p.parseOr()
	if err != nil {
		return nil, core.WrapError(core.ErrConditionEval, err)
	}
	if !p.eof() {
		return nil, core.WrapError(core.ErrConditionEval,
			fmt.Errorf("unexpected token %q in %q", p.peek().text, input))
	}
	return expr, nil
}

// crossExpr is a two-series crossover check.
//
// cross_over(a,b) is true iff a was strictly below b on the previous
// bar and strictly above on this bar. cross_under keeps the source
// system's literal complement algebra: !(prev below) && !(curr above).
type crossExpr struct {
	over bool
	a, b string
}

func (e *crossExpr) Eval(series map[string]indicator.Series, idx int) bool {
	if idx < 1 {
		return false
	}
	sa, okA := series[e.a]
	sb, okB := series[e.b]
	if !okA || !okB {
		return false
	}
	if !sa.Defined(idx-1) || !sa.Defined(idx) || !sb.Defined(idx-1) || !sb.Defined(idx) {
		return false
	}

	prevBelow := sa[idx-1] < sb[idx-1]
	currAbove := sa[idx] > sb[idx]
	if e.over {
		return prevBelow && currAbove
	}
	return !prevBelow && !currAbove
}

func (e *crossExpr) String() string {
	name := "cross_under"
	if e.over {
		name = "cross_over"
	}
	return fmt.Sprintf("%s(%s,%s)", name, e.a, e.b)
}

// operand is either a block-id reference or a numeric literal.
type operand struct {
	ref   string
	value float64
	isRef bool
}

func (o operand) resolve(series map[string]indicator.Series, idx int) (float64, bool) {
	if !o.isRef {
		return o.value, true
	}
	s, ok := series[o.ref]
	if !ok || !s.Defined(idx) {
		return 0, false
	}
	return s[idx], true
}

func (o operand) String() string {
	if o.isRef {
		return o.ref
	}
	return strconv.FormatFloat(o.value, 'g', -1, 64)
}

// compareExpr is a binary numeric comparison.
type compareExpr struct {
	op       string
	lhs, rhs operand
}

func (e *compareExpr) Eval(series map[string]indicator.Series, idx int) bool {
	l, ok := e.lhs.resolve(series, idx)
	if !ok {
		return false
	}
	r, ok := e.rhs.resolve(series, idx)
	if !ok {
		return false
	}

	switch e.op {
	case ">":
		return l > r
	case "<":
		return l < r
	case ">=":
		return l >= r
	case "<=":
		return l <= r
	case "==":
		return l == r
	case "!=":
		return l != r
	}
	return false
}

func (e *compareExpr) String() string {
	return fmt.Sprintf("%s %s %s", e.lhs, e.op, e.rhs)
}

// logicalExpr combines two sub-expressions with and/or.
type logicalExpr struct {
	and  bool
	l, r Expr
}

func (e *logicalExpr) Eval(series map[string]indicator.Series, idx int) bool {
	if e.and {
		return e.l.Eval(series, idx) && e.r.Eval(series, idx)
	}
	return e.l.Eval(series, idx) || e.r.Eval(series, idx)
}

func (e *logicalExpr) String() string {
	op := "or"
	if e.and {
		op = "and"
	}
	return fmt.Sprintf("(%s %s %s)", e.l, op, e.r)
}

// tokenizer

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokOp     // comparison operators
	tokLParen
	tokRParen
	tokComma
	tokAnd
	tokOr
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		ch := rune(input[i])
		switch {
		case unicode.IsSpace(ch):
			i++
		case ch == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case ch == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case ch == ',':
			toks = append(toks, token{tokComma, ","})
			i++
		case ch == '>' || ch == '<' || ch == '=' || ch == '!':
			op := string(ch)
			if i+1 < len(input) && input[i+1] == '=' {
				op += "="
				i++
			}
			i++
			if op == "=" || op == "!" {
				return nil, fmt.Errorf("invalid operator %q", op)
			}
			toks = append(toks, token{tokOp, op})
		case ch == '&' || ch == '|':
			if i+1 >= len(input) || input[i+1] != input[i] {
				return nil, fmt.Errorf("invalid operator %q", string(ch))
			}
			if ch == '&' {
				toks = append(toks, token{tokAnd, "and"})
			} else {
				toks = append(toks, token{tokOr, "or"})
			}
			i += 2
		case unicode.IsDigit(ch) || ch == '.' || ch == '-':
			start := i
			i++
			for i < len(input) && (unicode.IsDigit(rune(input[i])) || input[i] == '.') {
				i++
			}
			text := input[start:i]
			if _, err := strconv.ParseFloat(text, 64); err != nil {
				return nil, fmt.Errorf("invalid number %q", text)
			}
			toks = append(toks, token{tokNumber, text})
		case unicode.IsLetter(ch) || ch == '_':
			start := i
			for i < len(input) && (unicode.IsLetter(rune(input[i])) || unicode.IsDigit(rune(input[i])) || input[i] == '_') {
				i++
			}
			text := input[start:i]
			switch strings.ToLower(text) {
			case "and":
				toks = append(toks, token{tokAnd, "and"})
			case "or":
				toks = append(toks, token{tokOr, "or"})
			default:
				toks = append(toks, token{tokIdent, text})
			}
		default:
			return nil, fmt.Errorf("unexpected character %q", string(ch))
		}
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("empty expression")
	}
	return toks, nil
}

// parser

type parser struct {
	toks []token
	pos  int
}

func (p *parser) eof() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token {
	if p.eof() {
		return token{}
	}
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	if p.eof() || p.toks[p.pos].kind != kind {
		return token{}, fmt.Errorf("expected %s", what)
	}
	return p.next(), nil
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for !p.eof() && p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &logicalExpr{and: false, l: left, r: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for !p.eof() && p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = &logicalExpr{and: true, l: left, r: right}
	}
	return left, nil
}

func (p *parser) parseFactor() (Expr, error) {
	if p.eof() {
		return nil, fmt.Errorf("unexpected end of expression")
	}

	t := p.peek()

	if t.kind == tokLParen {
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return inner, nil
	}

	if t.kind == tokIdent && (t.text == "cross_over" || t.text == "cross_under") {
		return p.parseCross(t.text == "cross_over")
	}

	return p.parseCompare()
}

func (p *parser) parseCross(over bool) (Expr, error) {
	p.next() // function name
	if _, err := p.expect(tokLParen, "("); err != nil {
		return nil, err
	}
	a, err := p.expect(tokIdent, "block id")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokComma, ","); err != nil {
		return nil, err
	}
	b, err := p.expect(tokIdent, "block id")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	return &crossExpr{over: over, a: a.text, b: b.text}, nil
}

func (p *parser) parseCompare() (Expr, error) {
	lhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	op, err := p.expect(tokOp, "comparison operator")
	if err != nil {
		return nil, err
	}
	rhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &compareExpr{op: op.text, lhs: lhs, rhs: rhs}, nil
}

func (p *parser) parseOperand() (operand, error) {
	if p.eof() {
		return operand{}, fmt.Errorf("expected operand")
	}
	t := p.next()
	switch t.kind {
	case tokIdent:
		return operand{ref: t.text, isRef: true}, nil
	case tokNumber:
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return operand{}, err
		}
		return operand{value: v}, nil
	}
	return operand{}, fmt.Errorf("unexpected token %q", t.text)
}
