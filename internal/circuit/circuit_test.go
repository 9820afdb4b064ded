package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qvarlab/qvar/internal/pauli"
)

func TestBuilderRecordsGates(t *testing.T) {
	c := New(2)
	c.X(0).RY(1, 0.55).CX(1, 0)

	require.NoError(t, c.Err())
	require.Len(t, c.Gates, 3)

	assert.Equal(t, GateX, c.Gates[0].Name)
	assert.Equal(t, []int{0}, c.Gates[0].Qubits)

	assert.Equal(t, GateRY, c.Gates[1].Name)
	assert.Equal(t, []float64{0.55}, c.Gates[1].Params)

	assert.Equal(t, GateCX, c.Gates[2].Name)
	assert.Equal(t, []int{1, 0}, c.Gates[2].Qubits)
}

func TestQubitOutOfRange(t *testing.T) {
	c := New(2)
	c.X(0).RY(2, 1.0)
	assert.Error(t, c.Err())

	// Subsequent gates are ignored once the builder has errored.
	c.X(1)
	assert.Len(t, c.Gates, 1)
}

func TestDuplicateQubitRejected(t *testing.T) {
	c := New(2)
	c.CX(1, 1)
	assert.Error(t, c.Err())
}

func TestExpPauliCommutingGenerator(t *testing.T) {
	// X0Y1 - Y0X1: terms anti-commute on both qubits, so they commute as
	// strings and the instruction is accepted.
	g := pauli.X(0).Mul(pauli.Y(1)).Sub(pauli.Y(0).Mul(pauli.X(1)))
	c := New(2)
	c.X(0).ExpPauli(0.25, g)

	require.NoError(t, c.Err())
	require.Len(t, c.Gates, 2)
	assert.Equal(t, GateExpPauli, c.Gates[1].Name)
	assert.Equal(t, []float64{0.25}, c.Gates[1].Params)
	assert.ElementsMatch(t, []int{0, 1}, c.Gates[1].Qubits)
}

func TestExpPauliRejectsNonCommuting(t *testing.T) {
	// X0 and Z0 anti-commute on a single qubit.
	g := pauli.X(0).Add(pauli.Z(0))
	c := New(1)
	c.ExpPauli(0.1, g)
	assert.Error(t, c.Err())
}

func TestExpPauliRejectsNonHermitian(t *testing.T) {
	g := pauli.X(0).ScaleComplex(complex(0, 1))
	c := New(1)
	c.ExpPauli(0.1, g)
	assert.Error(t, c.Err())
}

func TestExpPauliZeroGeneratorIsIdentity(t *testing.T) {
	c := New(1)
	c.ExpPauli(0.3, pauli.Zero())
	require.NoError(t, c.Err())
	assert.Empty(t, c.Gates)
}

func TestClone(t *testing.T) {
	c := New(2)
	c.X(0).RY(1, 0.5)

	clone := c.Clone()
	clone.Gates[1].Params[0] = 9.9

	assert.Equal(t, 0.5, c.Gates[1].Params[0])
	assert.Equal(t, 9.9, clone.Gates[1].Params[0])
}
