// Package qasm exports circuits as OpenQASM 3.0 programs.
package qasm

import (
	"fmt"
	"strings"

	"github.com/qvarlab/qvar/internal/circuit"
	"github.com/qvarlab/qvar/internal/pauli"
)

var gateNames = map[string]string{
	circuit.GateX:    "x",
	circuit.GateY:    "y",
	circuit.GateZ:    "z",
	circuit.GateH:    "h",
	circuit.GateS:    "s",
	circuit.GateSdg:  "sdg",
	circuit.GateT:    "t",
	circuit.GateTdg:  "tdg",
	circuit.GateRX:   "rx",
	circuit.GateRY:   "ry",
	circuit.GateRZ:   "rz",
	circuit.GateCX:   "cx",
	circuit.GateCZ:   "cz",
	circuit.GateSWAP: "swap",
}

// Export renders a circuit as an OpenQASM 3.0 program. Pauli exponential
// gates are decomposed into basis changes, a CX parity ladder and an RZ
// rotation; the identity part of a generator only contributes a global
// phase and is dropped.
func Export(c *circuit.Circuit) (string, error) {
	if c == nil {
		return "", fmt.Errorf("nil circuit")
	}
	if err := c.Err(); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "OPENQASM 3.0;\ninclude \"stdgates.inc\";\nqubit[%d] q;\nbit[%d] c;\n\n",
		c.NumQubits, c.NumQubits)

	measured := false
	for _, gate := range c.Gates {
		switch gate.Name {
		case circuit.GateMeasure:
			measured = true
		case circuit.GateExpPauli:
			if err := writeExpPauli(&b, gate); err != nil {
				return "", err
			}
		default:
			name, ok := gateNames[gate.Name]
			if !ok {
				return "", fmt.Errorf("gate %s has no OpenQASM form", gate.Name)
			}
			writeGate(&b, name, gate.Params, gate.Qubits)
		}
	}

	if measured {
		b.WriteString("\nc = measure q;\n")
	}
	return b.String(), nil
}

func writeGate(b *strings.Builder, name string, params []float64, qubits []int) {
	b.WriteString(name)
	if len(params) > 0 {
		b.WriteString("(")
		for i, p := range params {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "%.12g", p)
		}
		b.WriteString(")")
	}
	b.WriteString(" ")
	for i, q := range qubits {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "q[%d]", q)
	}
	b.WriteString(";\n")
}

// writeExpPauli emits exp(i theta G) term by term. For a term c*P the
// qubits are rotated so P acts as Z...Z, the parity is accumulated onto
// the last qubit with a CX ladder, and exp(i a Z) = RZ(-2a) is applied
// to the parity qubit before undoing the ladder and basis change.
func writeExpPauli(b *strings.Builder, gate circuit.Gate) error {
	theta := gate.Params[0]
	for _, term := range gate.Generator.Terms() {
		if len(term.Ops) == 0 {
			continue
		}
		coeff := real(term.Coeff)
		qubits := measuredQubits(term)
		last := qubits[len(qubits)-1]

		for _, q := range qubits {
			switch term.Ops[q] {
			case pauli.AxisX:
				writeGate(b, "h", nil, []int{q})
			case pauli.AxisY:
				writeGate(b, "sdg", nil, []int{q})
				writeGate(b, "h", nil, []int{q})
			}
		}
		for i := 0; i < len(qubits)-1; i++ {
			writeGate(b, "cx", nil, []int{qubits[i], last})
		}

		writeGate(b, "rz", []float64{-2 * theta * coeff}, []int{last})

		for i := len(qubits) - 2; i >= 0; i-- {
			writeGate(b, "cx", nil, []int{qubits[i], last})
		}
		for _, q := range qubits {
			switch term.Ops[q] {
			case pauli.AxisX:
				writeGate(b, "h", nil, []int{q})
			case pauli.AxisY:
				writeGate(b, "h", nil, []int{q})
				writeGate(b, "s", nil, []int{q})
			}
		}
	}
	return nil
}

func measuredQubits(term pauli.Term) []int {
	out := make([]int, 0, len(term.Ops))
	for q := range term.Ops {
		out = append(out, q)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
