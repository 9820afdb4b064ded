// Package statevector implements an exact dense statevector simulator
// backend.
//
// Amplitude indices are little-endian: bit q of the index is the state of
// qubit q. The simulator supports every gate the circuit package records,
// including the Pauli-exponential instruction, which it applies exactly as a
// product of term exponentials (the circuit builder guarantees the terms
// commute). It serves both exact expectation values and shot-based sampling
// with an injectable random source, so runs are reproducible under a fixed
// seed.
package statevector

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"
	"math/rand"
	"sort"
	"time"

	"github.com/qvarlab/qvar/internal/backend"
	"github.com/qvarlab/qvar/internal/circuit"
	"github.com/qvarlab/qvar/internal/pauli"
)

// Config holds simulator configuration.
type Config struct {
	MaxQubits int   // Memory bound; 0 defaults to 26 (1 GiB of amplitudes)
	Seed      int64 // Sampling seed; 0 seeds from the clock
}

// Simulator is an exact statevector backend.
type Simulator struct {
	maxQubits int
	seed      int64
}

// New creates a statevector simulator.
func New(cfg Config) *Simulator {
	maxQubits := cfg.MaxQubits
	if maxQubits <= 0 {
		maxQubits = 26
	}
	return &Simulator{maxQubits: maxQubits, seed: cfg.Seed}
}

// Name implements backend.Backend.
func (s *Simulator) Name() string { return "statevector" }

// Provider implements backend.Backend.
func (s *Simulator) Provider() string { return "qvar" }

// MaxQubits implements backend.Backend.
func (s *Simulator) MaxQubits() int { return s.maxQubits }

// IsSimulator implements backend.Backend.
func (s *Simulator) IsSimulator() bool { return true }

// Run executes the circuit and samples all qubits in the computational
// basis.
func (s *Simulator) Run(ctx context.Context, c *circuit.Circuit, shots int) (backend.Counts, error) {
	if shots < 1 {
		return nil, fmt.Errorf("shots must be positive, got %d", shots)
	}
	state, err := s.evolve(ctx, c)
	if err != nil {
		return nil, err
	}

	seed := s.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	counts := make(backend.Counts)
	cumulative := cumulativeProbabilities(state)
	for shot := 0; shot < shots; shot++ {
		r := rng.Float64()
		idx := sort.SearchFloat64s(cumulative, r)
		if idx >= len(state) {
			idx = len(state) - 1
		}
		counts[bitstring(idx, c.NumQubits)]++
	}
	return counts, nil
}

// Expectation returns the exact expectation value of op in the state the
// circuit prepares.
func (s *Simulator) Expectation(ctx context.Context, c *circuit.Circuit, op pauli.Operator) (float64, error) {
	if !op.IsHermitian() {
		return 0, fmt.Errorf("expectation of non-Hermitian operator %s", op)
	}
	if op.NumQubits() > c.NumQubits {
		return 0, fmt.Errorf("operator acts on qubit %d but circuit has %d qubits", op.NumQubits()-1, c.NumQubits)
	}
	state, err := s.evolve(ctx, c)
	if err != nil {
		return 0, err
	}

	var value complex128
	scratch := make([]complex128, len(state))
	for _, term := range op.Terms() {
		applyPauliString(state, scratch, term.Ops)
		var dot complex128
		for i := range state {
			dot += cmplx.Conj(state[i]) * scratch[i]
		}
		value += term.Coeff * dot
	}
	return real(value), nil
}

// evolve runs the circuit from |0...0> and returns the final state.
func (s *Simulator) evolve(ctx context.Context, c *circuit.Circuit) ([]complex128, error) {
	if err := c.Err(); err != nil {
		return nil, fmt.Errorf("invalid circuit: %w", err)
	}
	if c.NumQubits > s.maxQubits {
		return nil, fmt.Errorf("circuit uses %d qubits, simulator limit is %d", c.NumQubits, s.maxQubits)
	}
	if c.NumQubits < 1 {
		return nil, fmt.Errorf("circuit must have at least one qubit")
	}

	state := make([]complex128, 1<<uint(c.NumQubits))
	state[0] = 1

	for _, g := range c.Gates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := applyGate(state, g); err != nil {
			return nil, err
		}
	}
	return state, nil
}

func applyGate(state []complex128, g circuit.Gate) error {
	switch g.Name {
	case circuit.GateX:
		apply1q(state, g.Qubits[0], [2][2]complex128{{0, 1}, {1, 0}})
	case circuit.GateY:
		apply1q(state, g.Qubits[0], [2][2]complex128{{0, complex(0, -1)}, {complex(0, 1), 0}})
	case circuit.GateZ:
		apply1q(state, g.Qubits[0], [2][2]complex128{{1, 0}, {0, -1}})
	case circuit.GateH:
		h := complex(1/math.Sqrt2, 0)
		apply1q(state, g.Qubits[0], [2][2]complex128{{h, h}, {h, -h}})
	case circuit.GateS:
		apply1q(state, g.Qubits[0], [2][2]complex128{{1, 0}, {0, complex(0, 1)}})
	case circuit.GateSdg:
		apply1q(state, g.Qubits[0], [2][2]complex128{{1, 0}, {0, complex(0, -1)}})
	case circuit.GateT:
		apply1q(state, g.Qubits[0], [2][2]complex128{{1, 0}, {0, cmplx.Exp(complex(0, math.Pi/4))}})
	case circuit.GateTdg:
		apply1q(state, g.Qubits[0], [2][2]complex128{{1, 0}, {0, cmplx.Exp(complex(0, -math.Pi/4))}})
	case circuit.GateRX:
		theta := g.Params[0]
		cos, sin := complex(math.Cos(theta/2), 0), complex(0, -math.Sin(theta/2))
		apply1q(state, g.Qubits[0], [2][2]complex128{{cos, sin}, {sin, cos}})
	case circuit.GateRY:
		theta := g.Params[0]
		cos, sin := math.Cos(theta/2), math.Sin(theta/2)
		apply1q(state, g.Qubits[0], [2][2]complex128{
			{complex(cos, 0), complex(-sin, 0)},
			{complex(sin, 0), complex(cos, 0)},
		})
	case circuit.GateRZ:
		theta := g.Params[0]
		apply1q(state, g.Qubits[0], [2][2]complex128{
			{cmplx.Exp(complex(0, -theta/2)), 0},
			{0, cmplx.Exp(complex(0, theta/2))},
		})
	case circuit.GateCX:
		applyCX(state, g.Qubits[0], g.Qubits[1])
	case circuit.GateCZ:
		applyCZ(state, g.Qubits[0], g.Qubits[1])
	case circuit.GateSWAP:
		applySWAP(state, g.Qubits[0], g.Qubits[1])
	case circuit.GateExpPauli:
		applyExpPauli(state, g.Params[0], g.Generator)
	case circuit.GateMeasure:
		// Terminal measurement is handled by Run; mid-circuit collapse is
		// not supported.
	default:
		return fmt.Errorf("unsupported gate %q", g.Name)
	}
	return nil
}

// apply1q applies a single-qubit unitary to qubit q.
func apply1q(state []complex128, q int, m [2][2]complex128) {
	bit := 1 << uint(q)
	for i := 0; i < len(state); i++ {
		if i&bit != 0 {
			continue
		}
		j := i | bit
		a0, a1 := state[i], state[j]
		state[i] = m[0][0]*a0 + m[0][1]*a1
		state[j] = m[1][0]*a0 + m[1][1]*a1
	}
}

func applyCX(state []complex128, control, target int) {
	cbit, tbit := 1<<uint(control), 1<<uint(target)
	for i := 0; i < len(state); i++ {
		if i&cbit != 0 && i&tbit == 0 {
			j := i | tbit
			state[i], state[j] = state[j], state[i]
		}
	}
}

func applyCZ(state []complex128, a, b int) {
	abit, bbit := 1<<uint(a), 1<<uint(b)
	for i := 0; i < len(state); i++ {
		if i&abit != 0 && i&bbit != 0 {
			state[i] = -state[i]
		}
	}
}

func applySWAP(state []complex128, a, b int) {
	abit, bbit := 1<<uint(a), 1<<uint(b)
	for i := 0; i < len(state); i++ {
		if i&abit != 0 && i&bbit == 0 {
			j := (i &^ abit) | bbit
			state[i], state[j] = state[j], state[i]
		}
	}
}

// applyExpPauli applies exp(i * theta * G) for a Hermitian generator G with
// pairwise commuting terms: the exponential factorizes into per-term
// exponentials, and for a Pauli string P with P^2 = I each factor is
// exp(i*a*P)|psi> = cos(a)|psi> + i*sin(a)*P|psi>.
func applyExpPauli(state []complex128, theta float64, generator pauli.Operator) {
	scratch := make([]complex128, len(state))
	for _, term := range generator.Terms() {
		angle := theta * real(term.Coeff)
		if len(term.Ops) == 0 {
			// Identity term contributes a global phase e^{i*angle}.
			phase := cmplx.Exp(complex(0, angle))
			for i := range state {
				state[i] *= phase
			}
			continue
		}
		applyPauliString(state, scratch, term.Ops)
		cos, sin := complex(math.Cos(angle), 0), complex(0, math.Sin(angle))
		for i := range state {
			state[i] = cos*state[i] + sin*scratch[i]
		}
	}
}

// applyPauliString writes P|state> into out for the Pauli string given by
// ops. Every Pauli string maps each basis state to a single basis state with
// a phase, so this is a permutation with phases.
func applyPauliString(state, out []complex128, ops map[int]pauli.Axis) {
	flipMask := 0
	for q, axis := range ops {
		if axis == pauli.AxisX || axis == pauli.AxisY {
			flipMask |= 1 << uint(q)
		}
	}
	for i := range out {
		out[i] = 0
	}
	for i, amp := range state {
		if amp == 0 {
			continue
		}
		j := i ^ flipMask
		phase := complex(1, 0)
		for q, axis := range ops {
			bit := i&(1<<uint(q)) != 0
			switch axis {
			case pauli.AxisY:
				// Y|0> = i|1>, Y|1> = -i|0>
				if bit {
					phase *= complex(0, -1)
				} else {
					phase *= complex(0, 1)
				}
			case pauli.AxisZ:
				if bit {
					phase = -phase
				}
			}
		}
		out[j] += phase * amp
	}
}

// cumulativeProbabilities returns the running sum of |amp|^2, with the last
// entry forced to 1 to absorb rounding.
func cumulativeProbabilities(state []complex128) []float64 {
	cumulative := make([]float64, len(state))
	sum := 0.0
	for i, amp := range state {
		sum += real(amp)*real(amp) + imag(amp)*imag(amp)
		cumulative[i] = sum
	}
	cumulative[len(cumulative)-1] = 1
	return cumulative
}

// bitstring formats basis index i over n qubits, qubit 0 leftmost.
func bitstring(i, n int) string {
	buf := make([]byte, n)
	for q := 0; q < n; q++ {
		if i&(1<<uint(q)) != 0 {
			buf[q] = '1'
		} else {
			buf[q] = '0'
		}
	}
	return string(buf)
}
