package ansatz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qvarlab/qvar/internal/circuit"
)

func TestDeuteronRYCircuit(t *testing.T) {
	a := DeuteronRY()
	c, err := a.Circuit([]float64{0.55})
	require.NoError(t, err)

	require.Len(t, c.Gates, 3)
	assert.Equal(t, circuit.GateX, c.Gates[0].Name)
	assert.Equal(t, circuit.GateRY, c.Gates[1].Name)
	assert.Equal(t, 0.55, c.Gates[1].Params[0])
	assert.Equal(t, circuit.GateCX, c.Gates[2].Name)
	assert.Equal(t, []int{1, 0}, c.Gates[2].Qubits)
}

func TestDeuteronUCCCircuit(t *testing.T) {
	a := DeuteronUCC()
	c, err := a.Circuit([]float64{0.1})
	require.NoError(t, err)

	require.Len(t, c.Gates, 2)
	assert.Equal(t, circuit.GateExpPauli, c.Gates[1].Name)
	assert.Equal(t, 2, c.Gates[1].Generator.NumTerms())
	assert.False(t, a.ShiftRule)
}

func TestParameterCountValidated(t *testing.T) {
	a := DeuteronRY()
	_, err := a.Circuit([]float64{0.1, 0.2})
	assert.Error(t, err)

	_, err = a.Circuit(nil)
	assert.Error(t, err)
}

func TestHardwareEfficientParameterLayout(t *testing.T) {
	a := HardwareEfficient(4, 2)
	assert.Equal(t, 16, a.Params)

	params := make([]float64, a.Params)
	for i := range params {
		params[i] = float64(i) * 0.01
	}
	c, err := a.Circuit(params)
	require.NoError(t, err)

	// Per layer: 8 rotations + 3 entangling CX gates.
	assert.Len(t, c.Gates, 2*(8+3))
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	names := r.Names()
	assert.Contains(t, names, "deuteron-ry")
	assert.Contains(t, names, "deuteron-ucc")
	assert.Contains(t, names, "hardware-efficient-2q1l")

	a, ok := r.Get("deuteron-ry")
	require.True(t, ok)
	assert.Equal(t, 1, a.Params)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistryValidation(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(Ansatz{Name: "", Qubits: 1, Build: func(*circuit.Circuit, []float64) {}}))
	assert.Error(t, r.Register(Ansatz{Name: "no-build", Qubits: 1}))
	assert.Error(t, r.Register(Ansatz{Name: "no-qubits", Build: func(*circuit.Circuit, []float64) {}}))
}
