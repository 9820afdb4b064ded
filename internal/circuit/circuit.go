// Package circuit provides a gate-level quantum circuit model with
// parameterized rotation gates and a Pauli-exponential instruction.
package circuit

import (
	"fmt"

	"github.com/qvarlab/qvar/internal/pauli"
)

// Gate names understood by the backends and the QASM exporter.
const (
	GateX        = "X"
	GateY        = "Y"
	GateZ        = "Z"
	GateH        = "H"
	GateS        = "S"
	GateSdg      = "Sdg"
	GateT        = "T"
	GateTdg      = "Tdg"
	GateRX       = "RX"
	GateRY       = "RY"
	GateRZ       = "RZ"
	GateCX       = "CX"
	GateCZ       = "CZ"
	GateSWAP     = "SWAP"
	GateExpPauli = "ExpPauli"
	GateMeasure  = "Measure"
)

// Gate is a single operation on one or more qubits. Rotation gates carry
// their angle in Params[0]. ExpPauli gates additionally carry their
// generator.
type Gate struct {
	Name   string
	Qubits []int
	Params []float64

	// Generator is set only for ExpPauli gates: the instruction applies
	// exp(i * Params[0] * Generator).
	Generator pauli.Operator
}

// Circuit is an ordered gate list over a fixed-size qubit register.
type Circuit struct {
	NumQubits int
	Gates     []Gate

	err error // first recording error, surfaced by Err()
}

// New creates an empty circuit over n qubits.
func New(n int) *Circuit {
	return &Circuit{NumQubits: n}
}

// Err returns the first error recorded while building the circuit. The
// builder methods are chainable and swallow errors until Err is checked, so
// ansatz kernels stay free of error plumbing.
func (c *Circuit) Err() error {
	return c.err
}

func (c *Circuit) record(g Gate) *Circuit {
	if c.err != nil {
		return c
	}
	for _, q := range g.Qubits {
		if q < 0 || q >= c.NumQubits {
			c.err = fmt.Errorf("gate %s: qubit %d out of range [0,%d)", g.Name, q, c.NumQubits)
			return c
		}
	}
	seen := make(map[int]bool, len(g.Qubits))
	for _, q := range g.Qubits {
		if seen[q] {
			c.err = fmt.Errorf("gate %s: duplicate qubit %d", g.Name, q)
			return c
		}
		seen[q] = true
	}
	c.Gates = append(c.Gates, g)
	return c
}

// X applies Pauli-X to qubit q.
func (c *Circuit) X(q int) *Circuit { return c.record(Gate{Name: GateX, Qubits: []int{q}}) }

// Y applies Pauli-Y to qubit q.
func (c *Circuit) Y(q int) *Circuit { return c.record(Gate{Name: GateY, Qubits: []int{q}}) }

// Z applies Pauli-Z to qubit q.
func (c *Circuit) Z(q int) *Circuit { return c.record(Gate{Name: GateZ, Qubits: []int{q}}) }

// H applies a Hadamard to qubit q.
func (c *Circuit) H(q int) *Circuit { return c.record(Gate{Name: GateH, Qubits: []int{q}}) }

// S applies the phase gate to qubit q.
func (c *Circuit) S(q int) *Circuit { return c.record(Gate{Name: GateS, Qubits: []int{q}}) }

// Sdg applies the inverse phase gate to qubit q.
func (c *Circuit) Sdg(q int) *Circuit { return c.record(Gate{Name: GateSdg, Qubits: []int{q}}) }

// T applies the T gate to qubit q.
func (c *Circuit) T(q int) *Circuit { return c.record(Gate{Name: GateT, Qubits: []int{q}}) }

// Tdg applies the inverse T gate to qubit q.
func (c *Circuit) Tdg(q int) *Circuit { return c.record(Gate{Name: GateTdg, Qubits: []int{q}}) }

// RX applies a rotation of theta radians about the X axis to qubit q.
func (c *Circuit) RX(q int, theta float64) *Circuit {
	return c.record(Gate{Name: GateRX, Qubits: []int{q}, Params: []float64{theta}})
}

// RY applies a rotation of theta radians about the Y axis to qubit q.
func (c *Circuit) RY(q int, theta float64) *Circuit {
	return c.record(Gate{Name: GateRY, Qubits: []int{q}, Params: []float64{theta}})
}

// RZ applies a rotation of theta radians about the Z axis to qubit q.
func (c *Circuit) RZ(q int, theta float64) *Circuit {
	return c.record(Gate{Name: GateRZ, Qubits: []int{q}, Params: []float64{theta}})
}

// CX applies a controlled-X with the given control and target qubits.
func (c *Circuit) CX(control, target int) *Circuit {
	return c.record(Gate{Name: GateCX, Qubits: []int{control, target}})
}

// CZ applies a controlled-Z between the two qubits.
func (c *Circuit) CZ(a, b int) *Circuit {
	return c.record(Gate{Name: GateCZ, Qubits: []int{a, b}})
}

// SWAP exchanges the two qubits.
func (c *Circuit) SWAP(a, b int) *Circuit {
	return c.record(Gate{Name: GateSWAP, Qubits: []int{a, b}})
}

// ExpPauli applies exp(i * theta * op). The generator must be Hermitian with
// real coefficients; terms must pairwise commute for the backends to apply
// the exponential as a product of term exponentials, which is checked here
// rather than at execution time.
func (c *Circuit) ExpPauli(theta float64, op pauli.Operator) *Circuit {
	if c.err != nil {
		return c
	}
	if op.IsZero() {
		return c // exp(0) is the identity
	}
	if !op.IsHermitian() {
		c.err = fmt.Errorf("ExpPauli: generator %s is not Hermitian", op)
		return c
	}
	if !termsCommute(op) {
		c.err = fmt.Errorf("ExpPauli: generator %s has non-commuting terms", op)
		return c
	}
	qubits := make([]int, 0, op.NumQubits())
	touched := make(map[int]bool)
	for _, t := range op.Terms() {
		for q := range t.Ops {
			if !touched[q] {
				touched[q] = true
				qubits = append(qubits, q)
			}
		}
	}
	return c.record(Gate{
		Name:      GateExpPauli,
		Qubits:    qubits,
		Params:    []float64{theta},
		Generator: op,
	})
}

// Measure records a computational-basis measurement of qubit q. Backends
// that sample measure all qubits at the end of the circuit; explicit Measure
// gates mark intent for exporters.
func (c *Circuit) Measure(q int) *Circuit {
	return c.record(Gate{Name: GateMeasure, Qubits: []int{q}})
}

// termsCommute reports whether all pairs of terms in op commute as Pauli
// strings. Two Pauli strings commute iff they anti-commute on an even number
// of qubits.
func termsCommute(op pauli.Operator) bool {
	terms := op.Terms()
	for i := 0; i < len(terms); i++ {
		for j := i + 1; j < len(terms); j++ {
			anti := 0
			for q, a := range terms[i].Ops {
				if b, ok := terms[j].Ops[q]; ok && a != b {
					anti++
				}
			}
			if anti%2 == 1 {
				return false
			}
		}
	}
	return true
}

// Clone returns a deep copy of the circuit.
func (c *Circuit) Clone() *Circuit {
	clone := &Circuit{NumQubits: c.NumQubits, err: c.err}
	clone.Gates = make([]Gate, len(c.Gates))
	for i, g := range c.Gates {
		ng := Gate{Name: g.Name, Generator: g.Generator}
		ng.Qubits = append([]int(nil), g.Qubits...)
		ng.Params = append([]float64(nil), g.Params...)
		clone.Gates[i] = ng
	}
	return clone
}
