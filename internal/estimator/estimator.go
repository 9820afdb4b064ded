// Package estimator computes Hamiltonian expectation values, either exactly
// from a statevector backend or from measurement counts.
//
// For sampling, the operator's terms are partitioned into qubit-wise
// commuting groups. Each group is estimated from one measured circuit: the
// group's basis-change gates (H for X, Sdg then H for Y) rotate every
// measured qubit into the computational basis, and each term's value is the
// coefficient times the expected parity of its qubits over the counts.
package estimator

import (
	"context"
	"fmt"
	"math"

	"github.com/qvarlab/qvar/internal/backend"
	"github.com/qvarlab/qvar/internal/circuit"
	"github.com/qvarlab/qvar/internal/pauli"
)

// Estimate is an expectation value with its statistical uncertainty.
// StdErr is zero in exact mode.
type Estimate struct {
	Value  float64
	StdErr float64
	Shots  int
}

// Estimator evaluates expectation values of an operator against a backend.
type Estimator struct {
	backend backend.Backend
	op      pauli.Operator
	groups  []pauli.Group
	shots   int // 0 = exact
}

// New creates an estimator for the operator on the given backend. Shots of
// zero selects exact mode, which requires a statevector-capable backend.
func New(b backend.Backend, op pauli.Operator, shots int) (*Estimator, error) {
	if !op.IsHermitian() {
		return nil, fmt.Errorf("operator %s is not Hermitian", op)
	}
	if shots < 0 {
		return nil, fmt.Errorf("shots cannot be negative, got %d", shots)
	}
	if shots == 0 {
		if _, ok := b.(backend.Exact); !ok {
			return nil, fmt.Errorf("backend %s cannot compute exact expectation values; set shots > 0", b.Name())
		}
	}
	return &Estimator{
		backend: b,
		op:      op,
		groups:  op.GroupQubitwise(),
		shots:   shots,
	}, nil
}

// Expectation evaluates <psi|op|psi> for the state prepared by the circuit.
func (e *Estimator) Expectation(ctx context.Context, c *circuit.Circuit) (Estimate, error) {
	if e.shots == 0 {
		exact := e.backend.(backend.Exact)
		value, err := exact.Expectation(ctx, c, e.op)
		if err != nil {
			return Estimate{}, err
		}
		return Estimate{Value: value}, nil
	}
	return e.sample(ctx, c)
}

func (e *Estimator) sample(ctx context.Context, c *circuit.Circuit) (Estimate, error) {
	value := real(e.op.Identity())
	variance := 0.0

	for _, group := range e.groups {
		measured := withBasisRotations(c, group)
		counts, err := e.backend.Run(ctx, measured, e.shots)
		if err != nil {
			return Estimate{}, fmt.Errorf("run group %v: %w", group.MeasuredQubits(), err)
		}
		total := counts.Shots()
		if total == 0 {
			return Estimate{}, fmt.Errorf("backend %s returned no shots", e.backend.Name())
		}

		for _, term := range group.Terms {
			mean, meanVar := parityStats(counts, term, total)
			coeff := real(term.Coeff)
			value += coeff * mean
			variance += coeff * coeff * meanVar
		}
	}

	return Estimate{
		Value:  value,
		StdErr: math.Sqrt(variance),
		Shots:  e.shots,
	}, nil
}

// withBasisRotations clones the circuit and appends the group's basis-change
// gates.
func withBasisRotations(c *circuit.Circuit, group pauli.Group) *circuit.Circuit {
	measured := c.Clone()
	for _, q := range group.MeasuredQubits() {
		switch group.Basis[q] {
		case pauli.AxisX:
			measured.H(q)
		case pauli.AxisY:
			measured.Sdg(q)
			measured.H(q)
		case pauli.AxisZ:
			// Already in the computational basis.
		}
		measured.Measure(q)
	}
	return measured
}

// parityStats returns the sample mean of the term's +-1 parity over the
// counts, and the variance of that mean.
func parityStats(counts backend.Counts, term pauli.Term, total int) (mean, meanVar float64) {
	sum := 0
	for bits, n := range counts {
		parity := 1
		for q := range term.Ops {
			if q < len(bits) && bits[q] == '1' {
				parity = -parity
			}
		}
		sum += parity * n
	}
	mean = float64(sum) / float64(total)
	// Var of a +-1 variable is 1 - mean^2; variance of the mean divides by
	// the shot count.
	meanVar = (1 - mean*mean) / float64(total)
	if meanVar < 0 {
		meanVar = 0
	}
	return mean, meanVar
}
