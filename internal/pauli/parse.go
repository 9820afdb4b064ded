package pauli

import (
	"fmt"
	"strconv"
	"unicode"
)

// Parse builds an operator from its text form. Accepted syntax, per term:
// an optional sign, an optional real coefficient, an optional '*', and zero
// or more Pauli factors written as an axis letter followed by a qubit index
// ("X0", "Y12"). Factors may be juxtaposed ("X0X1") or separated by '*' or
// spaces. Terms are joined with '+' or '-'.
//
// Examples:
//
//	"5.907 - 2.1433 X0X1 - 2.1433 Y0Y1 + 0.21829 Z0 - 6.125 Z1"
//	"X0 * Y1 - Y0 * X1"
func Parse(s string) (Operator, error) {
	p := &parser{input: s}
	op, err := p.parse()
	if err != nil {
		return Operator{}, fmt.Errorf("parse operator %q: %w", s, err)
	}
	return op, nil
}

// MustParse is Parse for compile-time-known operator literals; it panics on
// malformed input.
func MustParse(s string) Operator {
	op, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return op
}

type parser struct {
	input string
	pos   int
}

func (p *parser) parse() (Operator, error) {
	op := Zero()
	p.skipSpaces()
	if p.eof() {
		return Operator{}, fmt.Errorf("empty input")
	}
	first := true
	for !p.eof() {
		sign := 1.0
		switch {
		case p.peek() == '+':
			p.pos++
		case p.peek() == '-':
			sign = -1.0
			p.pos++
		default:
			if !first {
				return Operator{}, fmt.Errorf("expected '+' or '-' at offset %d", p.pos)
			}
		}
		first = false

		term, err := p.parseTerm()
		if err != nil {
			return Operator{}, err
		}
		term.Coeff *= complex(sign, 0)
		op = op.Add(newOperator(term))
		p.skipSpaces()
	}
	return op, nil
}

// parseTerm reads one term: optional coefficient followed by Pauli factors.
func (p *parser) parseTerm() (Term, error) {
	p.skipSpaces()
	if p.eof() {
		return Term{}, fmt.Errorf("dangling sign at end of input")
	}

	coeff := 1.0
	haveCoeff := false
	if isDigit(p.peek()) || p.peek() == '.' {
		value, err := p.parseNumber()
		if err != nil {
			return Term{}, err
		}
		coeff = value
		haveCoeff = true
	}

	ops := make(map[int]Axis)
	for {
		p.skipSpaces()
		if !p.eof() && p.peek() == '*' {
			p.pos++
			p.skipSpaces()
		}
		if p.eof() || !isAxisLetter(p.peek()) {
			break
		}
		axis := Axis(unicode.ToUpper(rune(p.peek())))
		p.pos++
		if p.eof() || !isDigit(p.peek()) {
			return Term{}, fmt.Errorf("pauli factor %c at offset %d missing qubit index", axis, p.pos-1)
		}
		start := p.pos
		for !p.eof() && isDigit(p.peek()) {
			p.pos++
		}
		q, err := strconv.Atoi(p.input[start:p.pos])
		if err != nil {
			return Term{}, fmt.Errorf("invalid qubit index at offset %d: %w", start, err)
		}
		if _, dup := ops[q]; dup {
			return Term{}, fmt.Errorf("qubit %d appears twice in one term", q)
		}
		ops[q] = axis
	}

	if !haveCoeff && len(ops) == 0 {
		return Term{}, fmt.Errorf("unexpected character %q at offset %d", p.peek(), p.pos)
	}
	return Term{Coeff: complex(coeff, 0), Ops: ops}, nil
}

func (p *parser) parseNumber() (float64, error) {
	start := p.pos
	for !p.eof() {
		c := p.peek()
		if isDigit(c) || c == '.' {
			p.pos++
			continue
		}
		// Scientific notation: 'e'/'E' followed by optional sign and digits.
		if (c == 'e' || c == 'E') && p.pos > start {
			next := p.pos + 1
			if next < len(p.input) && (p.input[next] == '+' || p.input[next] == '-') {
				next++
			}
			if next < len(p.input) && isDigit(p.input[next]) {
				p.pos = next + 1
				for !p.eof() && isDigit(p.peek()) {
					p.pos++
				}
			}
			break
		}
		break
	}
	value, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q at offset %d", p.input[start:p.pos], start)
	}
	return value, nil
}

func (p *parser) skipSpaces() {
	for !p.eof() && (p.peek() == ' ' || p.peek() == '\t' || p.peek() == '\n') {
		p.pos++
	}
}

func (p *parser) eof() bool  { return p.pos >= len(p.input) }
func (p *parser) peek() byte { return p.input[p.pos] }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAxisLetter(c byte) bool {
	switch c {
	case 'X', 'Y', 'Z', 'x', 'y', 'z':
		return true
	}
	return false
}
