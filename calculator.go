package eprime

import (
	"math"
	"strconv"
	"strings"
)

// Calculator evaluates a fully-substituted column expression: numeric and
// single-quoted string literals, parentheses, unary minus, arithmetic
// operators + - * / and the string-concatenation operator &. It is a
// stateless value; construct one per ColumnCalculator rather than sharing a
// process-wide instance.
type Calculator struct{}

// NewCalculator creates a Calculator.
func NewCalculator() Calculator { return Calculator{} }

// Compute evaluates expr and renders the result back to text. Integral
// numeric results render without a trailing decimal part, so they can be
// re-substituted into further expressions.
func (c Calculator) Compute(expr string) (string, error) {
	toks, err := tokenize(expr)
	if err != nil {
		return "", err
	}
	p := &exprParser{expr: expr, toks: toks}
	v, err := p.parse(0)
	if err != nil {
		return "", err
	}
	if p.pos < len(p.toks) {
		return "", &ExpressionError{Expr: expr, Msg: "unexpected " + p.toks[p.pos].text}
	}
	return v.render(expr)
}

// Binding powers, low to high: & < + - < * / < unary minus.
const (
	bpConcat = 5
	bpAddSub = 10
	bpMulDiv = 30
	bpNegate = 50
)

var bindingPower = map[string]int{
	"&": bpConcat,
	"+": bpAddSub,
	"-": bpAddSub,
	"*": bpMulDiv,
	"/": bpMulDiv,
}

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokString
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

func tokenize(expr string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(expr) {
		ch := expr[i]
		switch {
		case ch == ' ' || ch == '\t':
			i++
		case ch >= '0' && ch <= '9' || ch == '.':
			start := i
			for i < len(expr) && (expr[i] >= '0' && expr[i] <= '9' || expr[i] == '.') {
				i++
			}
			text := expr[start:i]
			n, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, &ExpressionError{Expr: expr, Msg: "bad number " + text}
			}
			toks = append(toks, token{kind: tokNumber, text: text, num: n})
		case ch == '\'':
			// Single-quoted string; '' escapes a quote.
			i++
			var sb strings.Builder
			closed := false
			for i < len(expr) {
				if expr[i] == '\'' {
					if i+1 < len(expr) && expr[i+1] == '\'' {
						sb.WriteByte('\'')
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				sb.WriteByte(expr[i])
				i++
			}
			if !closed {
				return nil, &ExpressionError{Expr: expr, Msg: "unterminated string"}
			}
			toks = append(toks, token{kind: tokString, text: sb.String()})
		case ch == '(':
			toks = append(toks, token{kind: tokLParen, text: "("})
			i++
		case ch == ')':
			toks = append(toks, token{kind: tokRParen, text: ")"})
			i++
		case ch == '+' || ch == '-' || ch == '*' || ch == '/' || ch == '&':
			toks = append(toks, token{kind: tokOp, text: string(ch)})
			i++
		default:
			return nil, &ExpressionError{Expr: expr, Msg: "unknown token " + string(ch)}
		}
	}
	return toks, nil
}

// exprValue is either a number or a string, depending on how it was
// produced. Concatenation always yields a string; arithmetic a number.
type exprValue struct {
	num      float64
	str      string
	isNumber bool
}

func (v exprValue) render(expr string) (string, error) {
	if !v.isNumber {
		return v.str, nil
	}
	if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
		return "", &ExpressionError{Expr: expr, Msg: "result is not finite"}
	}
	return strconv.FormatFloat(v.num, 'f', -1, 64), nil
}

// asNumber coerces a value for arithmetic; string operands must look
// numeric.
func (v exprValue) asNumber(expr string) (float64, error) {
	if v.isNumber {
		return v.num, nil
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
	if err != nil {
		return 0, &ExpressionError{Expr: expr, Msg: "non-numeric operand " + v.str}
	}
	return n, nil
}

func (v exprValue) asString() string {
	if !v.isNumber {
		return v.str
	}
	return strconv.FormatFloat(v.num, 'f', -1, 64)
}

type exprParser struct {
	expr string
	toks []token
	pos  int
}

func (p *exprParser) next() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	t := p.toks[p.pos]
	p.pos++
	return t, true
}

// parse is a precedence-climbing expression parser: it parses one prefix
// operand, then folds in infix operators binding at least as tightly as
// minBP. Left associativity comes from recursing with bp+1.
func (p *exprParser) parse(minBP int) (exprValue, error) {
	tok, ok := p.next()
	if !ok {
		return exprValue{}, &ExpressionError{Expr: p.expr, Msg: "unexpected end of expression"}
	}

	var left exprValue
	switch {
	case tok.kind == tokNumber:
		left = exprValue{num: tok.num, isNumber: true}
	case tok.kind == tokString:
		left = exprValue{str: tok.text}
	case tok.kind == tokLParen:
		inner, err := p.parse(0)
		if err != nil {
			return exprValue{}, err
		}
		closer, ok := p.next()
		if !ok || closer.kind != tokRParen {
			return exprValue{}, &ExpressionError{Expr: p.expr, Msg: "unbalanced parentheses"}
		}
		left = inner
	case tok.kind == tokOp && tok.text == "-":
		operand, err := p.parse(bpNegate)
		if err != nil {
			return exprValue{}, err
		}
		n, err := operand.asNumber(p.expr)
		if err != nil {
			return exprValue{}, err
		}
		left = exprValue{num: -n, isNumber: true}
	default:
		return exprValue{}, &ExpressionError{Expr: p.expr, Msg: "unexpected " + tok.text}
	}

	for p.pos < len(p.toks) {
		op := p.toks[p.pos]
		if op.kind != tokOp {
			break
		}
		bp := bindingPower[op.text]
		if bp < minBP {
			break
		}
		p.pos++
		right, err := p.parse(bp + 1)
		if err != nil {
			return exprValue{}, err
		}
		left, err = p.apply(op.text, left, right)
		if err != nil {
			return exprValue{}, err
		}
	}
	return left, nil
}

func (p *exprParser) apply(op string, left, right exprValue) (exprValue, error) {
	if op == "&" {
		return exprValue{str: left.asString() + right.asString()}, nil
	}
	l, err := left.asNumber(p.expr)
	if err != nil {
		return exprValue{}, err
	}
	r, err := right.asNumber(p.expr)
	if err != nil {
		return exprValue{}, err
	}
	switch op {
	case "+":
		return exprValue{num: l + r, isNumber: true}, nil
	case "-":
		return exprValue{num: l - r, isNumber: true}, nil
	case "*":
		return exprValue{num: l * r, isNumber: true}, nil
	case "/":
		return exprValue{num: l / r, isNumber: true}, nil
	}
	return exprValue{}, &ExpressionError{Expr: p.expr, Msg: "unknown operator " + op}
}
