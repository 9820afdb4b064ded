package vqe

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qvarlab/qvar/internal/ansatz"
	"github.com/qvarlab/qvar/internal/optimizer"
	"github.com/qvarlab/qvar/internal/pauli"
)

// The deuteron N=2 Hamiltonian; ground state energy -1.74886 within the
// two-qubit ansatz family.
var deuteron = pauli.MustParse("5.907 - 2.1433 X0X1 - 2.1433 Y0Y1 + 0.21829 Z0 - 6.125 Z1")

const groundEnergy = -1.74886

func TestExecuteDeuteronRY(t *testing.T) {
	v, err := New(ansatz.DeuteronRY(), deuteron)
	require.NoError(t, err)

	res, err := v.Execute(context.Background(), []float64{0.0})
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.Less(t, math.Abs(res.Energy-groundEnergy), 0.1)
	require.Len(t, res.Params, 1)
	assert.Greater(t, res.Evaluations, 0)
}

func TestExecuteDeuteronUCC(t *testing.T) {
	v, err := New(ansatz.DeuteronUCC(), deuteron)
	require.NoError(t, err)

	res, err := v.Execute(context.Background(), []float64{0.0})
	require.NoError(t, err)

	assert.Less(t, math.Abs(res.Energy-groundEnergy), 0.1)
}

func TestExecuteWithLBFGSCentral(t *testing.T) {
	v, err := New(ansatz.DeuteronRY(), deuteron,
		WithGradientStrategy(optimizer.StrategyCentral))
	require.NoError(t, err)

	opt, err := optimizer.Create("l-bfgs", optimizer.Options{MaxEvals: 50})
	require.NoError(t, err)

	res, err := v.ExecuteWith(context.Background(), opt, []float64{0.55})
	require.NoError(t, err)

	assert.Less(t, math.Abs(res.Energy-groundEnergy), 0.1)
}

func TestParameterShiftGradientMatchesAnalytic(t *testing.T) {
	v, err := New(ansatz.DeuteronRY(), deuteron,
		WithGradientStrategy(optimizer.StrategyParameterShift))
	require.NoError(t, err)

	opt, err := optimizer.Create("l-bfgs", optimizer.Options{})
	require.NoError(t, err)

	res, err := v.ExecuteWith(context.Background(), opt, []float64{0.2})
	require.NoError(t, err)
	assert.Less(t, math.Abs(res.Energy-groundEnergy), 0.01)
}

func TestUniqueHistoryAccessors(t *testing.T) {
	v, err := New(ansatz.DeuteronRY(), deuteron)
	require.NoError(t, err)

	_, err = v.Execute(context.Background(), []float64{0.0})
	require.NoError(t, err)

	params := v.UniqueParameters()
	energies := v.UniqueEnergies()
	require.NotEmpty(t, params)
	assert.Equal(t, len(params), len(energies))

	// Unique means unique: no pair of entries within tolerance.
	for i := range params {
		for j := i + 1; j < len(params); j++ {
			assert.False(t, sameParams(params[i], params[j]))
		}
	}

	// Each energy matches the recorded evaluation for its parameters.
	history := v.History()
	assert.GreaterOrEqual(t, len(history), len(params))
	for _, point := range energies {
		found := false
		for _, it := range history {
			if sameParams(it.Params, point.Params) && it.Energy == point.Energy {
				found = true
				break
			}
		}
		assert.True(t, found)
	}
}

func TestProgressHook(t *testing.T) {
	var seen []Iteration
	v, err := New(ansatz.DeuteronRY(), deuteron,
		WithProgress(func(it Iteration) { seen = append(seen, it) }))
	require.NoError(t, err)

	res, err := v.Execute(context.Background(), []float64{0.0})
	require.NoError(t, err)

	assert.Len(t, seen, len(v.History()))
	assert.Equal(t, res.Evaluations, len(seen))
	for i, it := range seen {
		assert.Equal(t, i, it.Seq)
	}
}

func TestExecuteAsync(t *testing.T) {
	v, err := New(ansatz.DeuteronUCC(), deuteron)
	require.NoError(t, err)

	future := v.ExecuteAsync(context.Background(), []float64{0.0})

	select {
	case <-future.Done():
	case <-time.After(30 * time.Second):
		t.Fatal("async execution did not finish")
	}

	res, err := future.Wait()
	require.NoError(t, err)
	assert.Less(t, math.Abs(res.Energy-groundEnergy), 0.1)
}

func TestParameterCountValidated(t *testing.T) {
	v, err := New(ansatz.DeuteronRY(), deuteron)
	require.NoError(t, err)

	_, err = v.Execute(context.Background(), []float64{0.1, 0.2})
	assert.Error(t, err)
}

func TestHamiltonianWiderThanAnsatzRejected(t *testing.T) {
	wide := pauli.Z(5)
	_, err := New(ansatz.DeuteronRY(), wide)
	assert.Error(t, err)
}

func TestNonHermitianHamiltonianRejected(t *testing.T) {
	_, err := New(ansatz.DeuteronRY(), pauli.X(0).ScaleComplex(complex(0, 1)))
	assert.Error(t, err)
}

func TestContextCancellation(t *testing.T) {
	v, err := New(ansatz.DeuteronRY(), deuteron)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = v.Execute(ctx, []float64{0.0})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSampledExecution(t *testing.T) {
	// Shot-based estimation is noisy; SPSA handles it. The band is loose
	// and the run seeded, so this stays deterministic.
	opt, err := optimizer.Create("spsa", optimizer.Options{MaxEvals: 900, Step: 0.4, Seed: 11})
	require.NoError(t, err)

	v, err := New(ansatz.DeuteronRY(), deuteron,
		WithShots(8192),
		WithOptimizer(opt))
	require.NoError(t, err)

	res, err := v.Execute(context.Background(), []float64{0.0})
	require.NoError(t, err)
	assert.Less(t, math.Abs(res.Energy-groundEnergy), 0.35)
}
