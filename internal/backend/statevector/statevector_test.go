package statevector

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qvarlab/qvar/internal/ansatz"
	"github.com/qvarlab/qvar/internal/circuit"
	"github.com/qvarlab/qvar/internal/pauli"
)

var deuteron = pauli.MustParse("5.907 - 2.1433 X0X1 - 2.1433 Y0Y1 + 0.21829 Z0 - 6.125 Z1")

func TestBellStateCounts(t *testing.T) {
	sim := New(Config{Seed: 42})
	c := circuit.New(2)
	c.H(0).CX(0, 1)

	counts, err := sim.Run(context.Background(), c, 4096)
	require.NoError(t, err)

	assert.Equal(t, 4096, counts.Shots())
	// Only the correlated outcomes appear.
	assert.Zero(t, counts["10"])
	assert.Zero(t, counts["01"])
	// Each branch has probability 1/2; allow 5 sigma.
	assert.InDelta(t, 2048, counts["00"], 5*32)
	assert.InDelta(t, 2048, counts["11"], 5*32)
}

func TestSamplingIsDeterministicUnderSeed(t *testing.T) {
	c := circuit.New(1)
	c.H(0)

	first, err := New(Config{Seed: 7}).Run(context.Background(), c, 100)
	require.NoError(t, err)
	second, err := New(Config{Seed: 7}).Run(context.Background(), c, 100)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestExpectationSingleQubit(t *testing.T) {
	sim := New(Config{})
	ctx := context.Background()

	// |0>: <Z> = 1
	zero := circuit.New(1)
	v, err := sim.Expectation(ctx, zero, pauli.Z(0))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-12)

	// |1>: <Z> = -1
	one := circuit.New(1)
	one.X(0)
	v, err = sim.Expectation(ctx, one, pauli.Z(0))
	require.NoError(t, err)
	assert.InDelta(t, -1.0, v, 1e-12)

	// |+>: <X> = 1, <Z> = 0
	plus := circuit.New(1)
	plus.H(0)
	v, err = sim.Expectation(ctx, plus, pauli.X(0))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-12)
	v, err = sim.Expectation(ctx, plus, pauli.Z(0))
	require.NoError(t, err)
	assert.InDelta(t, 0.0, v, 1e-12)

	// Ry(pi/2)|0>: <Y> = 0, <X> = 1 after H? Use RX to get <Y>.
	rx := circuit.New(1)
	rx.RX(0, -math.Pi/2)
	v, err = sim.Expectation(ctx, rx, pauli.Y(0))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-12)
}

// The deuteron RY ansatz has the closed form
// E(theta) = 5.907 - 4.2866 sin(theta) - 6.34329 cos(theta).
func deuteronEnergy(theta float64) float64 {
	return 5.907 - 2*2.1433*math.Sin(theta) - (6.125+0.21829)*math.Cos(theta)
}

func TestDeuteronEnergyCurveRY(t *testing.T) {
	sim := New(Config{})
	ctx := context.Background()
	a := ansatz.DeuteronRY()

	for _, theta := range []float64{-1.2, -0.3, 0.0, 0.25, 0.5940, 1.1, 2.7} {
		c, err := a.Circuit([]float64{theta})
		require.NoError(t, err)
		v, err := sim.Expectation(ctx, c, deuteron)
		require.NoError(t, err)
		assert.InDelta(t, deuteronEnergy(theta), v, 1e-9, "theta=%v", theta)
	}
}

func TestDeuteronMinimumNearReference(t *testing.T) {
	sim := New(Config{})
	ctx := context.Background()
	a := ansatz.DeuteronRY()

	thetaStar := math.Atan2(2*2.1433, 6.125+0.21829)
	c, err := a.Circuit([]float64{thetaStar})
	require.NoError(t, err)
	v, err := sim.Expectation(ctx, c, deuteron)
	require.NoError(t, err)
	assert.InDelta(t, -1.74886, v, 1e-3)
}

func TestDeuteronUCCReachesSameMinimum(t *testing.T) {
	sim := New(Config{})
	ctx := context.Background()
	a := ansatz.DeuteronUCC()

	// Scan for the minimum of the UCC ansatz; it must reach the same
	// ground-state energy as the RY ansatz.
	best := math.Inf(1)
	for theta := -1.6; theta <= 1.6; theta += 0.001 {
		c, err := a.Circuit([]float64{theta})
		require.NoError(t, err)
		v, err := sim.Expectation(ctx, c, deuteron)
		require.NoError(t, err)
		if v < best {
			best = v
		}
	}
	assert.InDelta(t, -1.74886, best, 1e-3)
}

func TestExpPauliPreservesNorm(t *testing.T) {
	sim := New(Config{})
	a := ansatz.DeuteronUCC()
	c, err := a.Circuit([]float64{0.77})
	require.NoError(t, err)

	state, err := sim.evolve(context.Background(), c)
	require.NoError(t, err)

	norm := 0.0
	for _, amp := range state {
		norm += real(amp)*real(amp) + imag(amp)*imag(amp)
	}
	assert.InDelta(t, 1.0, norm, 1e-12)
}

func TestQubitLimitEnforced(t *testing.T) {
	sim := New(Config{MaxQubits: 2})
	c := circuit.New(3)
	c.X(0)
	_, err := sim.Run(context.Background(), c, 10)
	assert.Error(t, err)
}

func TestContextCancellation(t *testing.T) {
	sim := New(Config{})
	c := circuit.New(2)
	c.H(0).CX(0, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sim.Run(ctx, c, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestShotsValidated(t *testing.T) {
	sim := New(Config{})
	c := circuit.New(1)
	_, err := sim.Run(context.Background(), c, 0)
	assert.Error(t, err)
}
