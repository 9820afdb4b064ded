// Package ansatz defines parameterized circuit kernels and a named registry
// so services can reference them without linking the defining code.
package ansatz

import (
	"fmt"
	"sort"
	"sync"

	"github.com/qvarlab/qvar/internal/circuit"
	"github.com/qvarlab/qvar/internal/pauli"
)

// BuildFunc emits an ansatz's gates into the circuit for the given parameter
// vector. The circuit builder collects errors internally; kernels stay free
// of error plumbing.
type BuildFunc func(c *circuit.Circuit, params []float64)

// Ansatz is a parameterized circuit template. ShiftRule reports whether
// every parameter feeds exactly one standard rotation gate, which is the
// condition for the two-point parameter-shift gradient to be exact.
type Ansatz struct {
	Name      string
	Qubits    int
	Params    int
	ShiftRule bool
	Build     BuildFunc
}

// Circuit instantiates the ansatz at the given parameters.
func (a Ansatz) Circuit(params []float64) (*circuit.Circuit, error) {
	if len(params) != a.Params {
		return nil, fmt.Errorf("ansatz %s expects %d parameters, got %d", a.Name, a.Params, len(params))
	}
	c := circuit.New(a.Qubits)
	a.Build(c, params)
	if err := c.Err(); err != nil {
		return nil, fmt.Errorf("ansatz %s: %w", a.Name, err)
	}
	return c, nil
}

// Registry is a thread-safe name -> ansatz map.
type Registry struct {
	mu       sync.RWMutex
	ansatzes map[string]Ansatz
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ansatzes: make(map[string]Ansatz)}
}

// Register adds an ansatz under its name, replacing any previous entry.
func (r *Registry) Register(a Ansatz) error {
	if a.Name == "" {
		return fmt.Errorf("ansatz name cannot be empty")
	}
	if a.Build == nil {
		return fmt.Errorf("ansatz %s has no build function", a.Name)
	}
	if a.Qubits < 1 {
		return fmt.Errorf("ansatz %s must use at least one qubit", a.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ansatzes[a.Name] = a
	return nil
}

// Get looks up an ansatz by name.
func (r *Registry) Get(name string) (Ansatz, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.ansatzes[name]
	return a, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ansatzes))
	for name := range r.ansatzes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns all registered ansatzes sorted by name.
func (r *Registry) List() []Ansatz {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]Ansatz, 0, len(r.ansatzes))
	for _, a := range r.ansatzes {
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

// DefaultRegistry returns a registry preloaded with the built-in ansatzes.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, a := range builtins() {
		// Built-ins are static and validated by tests; Register cannot fail.
		_ = r.Register(a)
	}
	return r
}

func builtins() []Ansatz {
	return []Ansatz{
		DeuteronRY(),
		DeuteronUCC(),
		HardwareEfficient(2, 1),
		HardwareEfficient(4, 2),
	}
}

// DeuteronRY is the single-parameter deuteron ansatz: X on qubit 0, a
// parameterized Y rotation on qubit 1, and an entangling CX from qubit 1
// onto qubit 0.
func DeuteronRY() Ansatz {
	return Ansatz{
		Name:      "deuteron-ry",
		Qubits:    2,
		Params:    1,
		ShiftRule: true,
		Build: func(c *circuit.Circuit, params []float64) {
			c.X(0)
			c.RY(1, params[0])
			c.CX(1, 0)
		},
	}
}

// deuteronGenerator is the UCC-style excitation generator X0Y1 - Y0X1.
var deuteronGenerator = pauli.X(0).Mul(pauli.Y(1)).Sub(pauli.Y(0).Mul(pauli.X(1)))

// DeuteronUCC is the single-parameter unitary coupled-cluster ansatz:
// X on qubit 0 followed by exp(i * theta * (X0Y1 - Y0X1)).
func DeuteronUCC() Ansatz {
	return Ansatz{
		Name:      "deuteron-ucc",
		Qubits:    2,
		Params:    1,
		ShiftRule: false, // Pauli exponential, not a half-angle rotation
		Build: func(c *circuit.Circuit, params []float64) {
			c.X(0)
			c.ExpPauli(params[0], deuteronGenerator)
		},
	}
}

// HardwareEfficient is a layered RY/RZ ansatz with a linear CX entangling
// ladder. Each layer uses 2*qubits parameters.
func HardwareEfficient(qubits, layers int) Ansatz {
	return Ansatz{
		Name:      fmt.Sprintf("hardware-efficient-%dq%dl", qubits, layers),
		Qubits:    qubits,
		Params:    2 * qubits * layers,
		ShiftRule: true,
		Build: func(c *circuit.Circuit, params []float64) {
			p := 0
			for layer := 0; layer < layers; layer++ {
				for q := 0; q < qubits; q++ {
					c.RY(q, params[p])
					p++
					c.RZ(q, params[p])
					p++
				}
				for q := 0; q < qubits-1; q++ {
					c.CX(q, q+1)
				}
			}
		},
	}
}
