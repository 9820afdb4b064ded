// Package backend defines the execution interface quantum circuits run
// against, and a registry for selecting backends by name.
package backend

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/qvarlab/qvar/internal/circuit"
	"github.com/qvarlab/qvar/internal/pauli"
)

// Counts holds measurement outcomes keyed by bitstring. Bit i of the key
// (leftmost character first) is qubit i, so "10" means qubit 0 measured 1
// and qubit 1 measured 0.
type Counts map[string]int

// Shots returns the total number of shots recorded.
func (c Counts) Shots() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Backend executes circuits and returns measurement statistics.
type Backend interface {
	Name() string
	Provider() string
	MaxQubits() int
	IsSimulator() bool

	// Run executes the circuit for the given number of shots and returns
	// the measurement counts over all qubits.
	Run(ctx context.Context, c *circuit.Circuit, shots int) (Counts, error)
}

// Exact is implemented by backends that can evaluate expectation values
// without sampling noise (statevector simulators).
type Exact interface {
	Backend

	// Expectation returns <psi|op|psi> for the state prepared by the
	// circuit.
	Expectation(ctx context.Context, c *circuit.Circuit, op pauli.Operator) (float64, error)
}

// Registry maps backend names to implementations.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
	def      string
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register adds a backend under its own name. The first backend registered
// becomes the default.
func (r *Registry) Register(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[b.Name()] = b
	if r.def == "" {
		r.def = b.Name()
	}
}

// SetDefault selects the default backend.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.backends[name]; !ok {
		return fmt.Errorf("backend %q not registered", name)
	}
	r.def = name
	return nil
}

// Get looks up a backend by name. The empty name resolves to the default.
func (r *Registry) Get(name string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.def
	}
	b, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("backend %q not registered", name)
	}
	return b, nil
}

// Names returns the registered backend names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
