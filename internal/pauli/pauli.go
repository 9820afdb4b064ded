// Package pauli implements a sparse Pauli-operator algebra.
//
// An Operator is a weighted sum of tensor products of single-qubit Pauli
// matrices (X, Y, Z) with identity on every unmentioned qubit. Operators are
// immutable values: arithmetic returns new operators, like terms are merged
// and numerically zero terms are dropped. Hamiltonians such as
//
//	5.907 - 2.1433 X0X1 - 2.1433 Y0Y1 + 0.21829 Z0 - 6.125 Z1
//
// are built either with the constructors (X, Y, Z, Const) and the arithmetic
// methods, or parsed from their text form with Parse.
package pauli

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"
	"strings"
)

// Axis identifies a single-qubit Pauli matrix.
type Axis byte

const (
	AxisX Axis = 'X'
	AxisY Axis = 'Y'
	AxisZ Axis = 'Z'
)

// eps is the threshold below which coefficients are treated as zero.
const eps = 1e-12

// Term is a single Pauli string with a complex coefficient. Ops maps qubit
// index to axis; an empty map is the identity term.
type Term struct {
	Coeff complex128
	Ops   map[int]Axis
}

// Key returns the canonical text form of the term's Pauli string, e.g.
// "X0X1" or "Z1". The identity term has the empty key.
func (t Term) Key() string {
	if len(t.Ops) == 0 {
		return ""
	}
	qubits := make([]int, 0, len(t.Ops))
	for q := range t.Ops {
		qubits = append(qubits, q)
	}
	sort.Ints(qubits)
	var sb strings.Builder
	for _, q := range qubits {
		fmt.Fprintf(&sb, "%c%d", t.Ops[q], q)
	}
	return sb.String()
}

// clone returns a deep copy of the term.
func (t Term) clone() Term {
	ops := make(map[int]Axis, len(t.Ops))
	for q, a := range t.Ops {
		ops[q] = a
	}
	return Term{Coeff: t.Coeff, Ops: ops}
}

// Operator is a normalized sum of Pauli terms.
type Operator struct {
	terms map[string]Term
}

// newOperator builds an operator from raw terms, merging duplicates and
// dropping zeros.
func newOperator(terms ...Term) Operator {
	op := Operator{terms: make(map[string]Term)}
	for _, t := range terms {
		op.accumulate(t)
	}
	op.prune()
	return op
}

func (o *Operator) accumulate(t Term) {
	key := t.Key()
	if existing, ok := o.terms[key]; ok {
		existing.Coeff += t.Coeff
		o.terms[key] = existing
		return
	}
	o.terms[key] = t.clone()
}

func (o *Operator) prune() {
	for key, t := range o.terms {
		if cmplx.Abs(t.Coeff) < eps {
			delete(o.terms, key)
		}
	}
}

// X returns the Pauli-X operator on qubit q.
func X(q int) Operator {
	return newOperator(Term{Coeff: 1, Ops: map[int]Axis{q: AxisX}})
}

// Y returns the Pauli-Y operator on qubit q.
func Y(q int) Operator {
	return newOperator(Term{Coeff: 1, Ops: map[int]Axis{q: AxisY}})
}

// Z returns the Pauli-Z operator on qubit q.
func Z(q int) Operator {
	return newOperator(Term{Coeff: 1, Ops: map[int]Axis{q: AxisZ}})
}

// I returns the identity operator.
func I() Operator {
	return Const(1)
}

// Const returns c times the identity.
func Const(c float64) Operator {
	return newOperator(Term{Coeff: complex(c, 0), Ops: map[int]Axis{}})
}

// Zero returns the empty operator.
func Zero() Operator {
	return Operator{terms: make(map[string]Term)}
}

// Terms returns the operator's terms in canonical order (identity first,
// then lexicographic by Pauli string).
func (o Operator) Terms() []Term {
	keys := make([]string, 0, len(o.terms))
	for key := range o.terms {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	terms := make([]Term, 0, len(keys))
	for _, key := range keys {
		terms = append(terms, o.terms[key].clone())
	}
	return terms
}

// NumTerms returns the number of non-zero terms.
func (o Operator) NumTerms() int {
	return len(o.terms)
}

// IsZero reports whether the operator has no terms.
func (o Operator) IsZero() bool {
	return len(o.terms) == 0
}

// NumQubits returns one past the highest qubit index mentioned by any term.
func (o Operator) NumQubits() int {
	max := 0
	for _, t := range o.terms {
		for q := range t.Ops {
			if q+1 > max {
				max = q + 1
			}
		}
	}
	return max
}

// IsHermitian reports whether every coefficient is real (within tolerance).
// Pauli strings are Hermitian, so the sum is Hermitian iff coefficients are.
func (o Operator) IsHermitian() bool {
	for _, t := range o.terms {
		if math.Abs(imag(t.Coeff)) > eps {
			return false
		}
	}
	return true
}

// Identity returns the coefficient of the identity term.
func (o Operator) Identity() complex128 {
	if t, ok := o.terms[""]; ok {
		return t.Coeff
	}
	return 0
}

// Add returns o + other.
func (o Operator) Add(other Operator) Operator {
	result := Operator{terms: make(map[string]Term, len(o.terms)+len(other.terms))}
	for _, t := range o.terms {
		result.accumulate(t)
	}
	for _, t := range other.terms {
		result.accumulate(t)
	}
	result.prune()
	return result
}

// Sub returns o - other.
func (o Operator) Sub(other Operator) Operator {
	return o.Add(other.Scale(-1))
}

// Scale returns c * o.
func (o Operator) Scale(c float64) Operator {
	return o.ScaleComplex(complex(c, 0))
}

// ScaleComplex returns c * o with a complex scalar.
func (o Operator) ScaleComplex(c complex128) Operator {
	result := Operator{terms: make(map[string]Term, len(o.terms))}
	for _, t := range o.terms {
		scaled := t.clone()
		scaled.Coeff *= c
		result.accumulate(scaled)
	}
	result.prune()
	return result
}

// Mul returns the operator product o * other, applying the single-qubit
// Pauli multiplication rules (X*Y = iZ and cyclic, P*P = I) per qubit.
func (o Operator) Mul(other Operator) Operator {
	result := Operator{terms: make(map[string]Term)}
	for _, a := range o.terms {
		for _, b := range other.terms {
			result.accumulate(mulTerms(a, b))
		}
	}
	result.prune()
	return result
}

// AddConst returns o + c.
func (o Operator) AddConst(c float64) Operator {
	return o.Add(Const(c))
}

// mulTerms multiplies two Pauli terms, tracking the accumulated phase.
func mulTerms(a, b Term) Term {
	coeff := a.Coeff * b.Coeff
	ops := make(map[int]Axis, len(a.Ops)+len(b.Ops))
	for q, axis := range a.Ops {
		ops[q] = axis
	}
	for q, bAxis := range b.Ops {
		aAxis, ok := ops[q]
		if !ok {
			ops[q] = bAxis
			continue
		}
		if aAxis == bAxis {
			delete(ops, q) // P*P = I
			continue
		}
		axis, phase := pauliProduct(aAxis, bAxis)
		ops[q] = axis
		coeff *= phase
	}
	return Term{Coeff: coeff, Ops: ops}
}

// pauliProduct returns the axis and phase of the product of two distinct
// Pauli matrices: X*Y = iZ, Y*Z = iX, Z*X = iY, and the reverse orders pick
// up -i.
func pauliProduct(a, b Axis) (Axis, complex128) {
	switch {
	case a == AxisX && b == AxisY:
		return AxisZ, complex(0, 1)
	case a == AxisY && b == AxisX:
		return AxisZ, complex(0, -1)
	case a == AxisY && b == AxisZ:
		return AxisX, complex(0, 1)
	case a == AxisZ && b == AxisY:
		return AxisX, complex(0, -1)
	case a == AxisZ && b == AxisX:
		return AxisY, complex(0, 1)
	default: // a == AxisX && b == AxisZ
		return AxisY, complex(0, -1)
	}
}

// String renders the operator in its canonical text form, e.g.
// "5.907 - 2.1433 X0X1 - 2.1433 Y0Y1 + 0.21829 Z0 - 6.125 Z1".
// Complex coefficients render as "(re+imi)".
func (o Operator) String() string {
	terms := o.Terms()
	if len(terms) == 0 {
		return "0"
	}
	var sb strings.Builder
	for i, t := range terms {
		re, im := real(t.Coeff), imag(t.Coeff)
		var magnitude string
		negative := false
		if math.Abs(im) > eps {
			magnitude = fmt.Sprintf("(%g%+gi)", re, im)
		} else {
			negative = re < 0
			magnitude = formatFloat(math.Abs(re))
		}
		if i == 0 {
			if negative {
				sb.WriteString("-")
			}
		} else {
			if negative {
				sb.WriteString(" - ")
			} else {
				sb.WriteString(" + ")
			}
		}
		sb.WriteString(magnitude)
		if key := t.Key(); key != "" {
			sb.WriteString(" ")
			sb.WriteString(key)
		}
	}
	return sb.String()
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}
