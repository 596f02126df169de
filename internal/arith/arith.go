package arith

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// #region errors
var (
	// ErrEmpty is returned when the expression holds no tokens.
	ErrEmpty = errors.New("arith: empty expression")
	// ErrSyntax is returned for any fragment outside the integer/+/paren grammar.
	ErrSyntax = errors.New("arith: syntax error")
)

// #endregion errors

// #region token
type tokenKind int

const (
	tokInt tokenKind = iota
	tokPlus
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	val  int
	pos  int
}

// tokenize splits expr into integer, '+', '(' and ')' tokens. A '-' is only
// accepted directly in front of digits, as the sign of a literal.
func tokenize(expr string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '+':
			toks = append(toks, token{kind: tokPlus, pos: i})
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, pos: i})
			i++
		case c == '-' || (c >= '0' && c <= '9'):
			start := i
			if c == '-' {
				i++
			}
			for i < len(expr) && expr[i] >= '0' && expr[i] <= '9' {
				i++
			}
			n, err := strconv.Atoi(expr[start:i])
			if err != nil {
				return nil, fmt.Errorf("%w: bad literal %q at %d", ErrSyntax, expr[start:i], start)
			}
			toks = append(toks, token{kind: tokInt, val: n, pos: start})
		default:
			return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, c, i)
		}
	}
	return toks, nil
}

// #endregion token

// #region parser
type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

// sum := term ('+' term)*
func (p *parser) sum() (int, error) {
	total, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokPlus {
			return total, nil
		}
		p.pos++
		v, err := p.term()
		if err != nil {
			return 0, err
		}
		if total, err = Add(total, v); err != nil {
			return 0, err
		}
	}
}

// term := INT | '(' sum ')'
func (p *parser) term() (int, error) {
	t, ok := p.peek()
	if !ok {
		return 0, fmt.Errorf("%w: unexpected end of input", ErrSyntax)
	}
	switch t.kind {
	case tokInt:
		p.pos++
		return t.val, nil
	case tokLParen:
		p.pos++
		v, err := p.sum()
		if err != nil {
			return 0, err
		}
		closing, ok := p.peek()
		if !ok || closing.kind != tokRParen {
			return 0, fmt.Errorf("%w: missing ')' for '(' at %d", ErrSyntax, t.pos)
		}
		p.pos++
		return v, nil
	default:
		return 0, fmt.Errorf("%w: unexpected token at %d", ErrSyntax, t.pos)
	}
}

// #endregion parser

// #region eval
// Eval evaluates a sum of integers with optional parentheses.
func Eval(expr string) (int, error) {
	toks, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	if len(toks) == 0 {
		return 0, ErrEmpty
	}
	p := &parser{toks: toks}
	v, err := p.sum()
	if err != nil {
		return 0, err
	}
	if p.pos != len(toks) {
		return 0, fmt.Errorf("%w: trailing input at %d", ErrSyntax, toks[p.pos].pos)
	}
	return v, nil
}

// Literal parses expr as a single bare integer, ignoring surrounding whitespace.
func Literal(expr string) (int, error) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return 0, ErrEmpty
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: not an integer: %q", ErrSyntax, s)
	}
	return n, nil
}

// Terms splits a flat "n1 + n2 + ..." expression into its integer terms.
// Terms whose sum does not fit in an int are rejected.
func Terms(expr string) ([]int, error) {
	parts := strings.Split(expr, "+")
	terms := make([]int, 0, len(parts))
	total := 0
	for _, part := range parts {
		n, err := Literal(part)
		if err != nil {
			return nil, err
		}
		if total, err = Add(total, n); err != nil {
			return nil, err
		}
		terms = append(terms, n)
	}
	return terms, nil
}

// Add returns a + b, or ErrSyntax when the sum overflows int.
func Add(a, b int) (int, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, fmt.Errorf("%w: %d + %d overflows", ErrSyntax, a, b)
	}
	return sum, nil
}

// #endregion eval
