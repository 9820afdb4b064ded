package queue

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qvarlab/qvar/internal/ansatz"
	"github.com/qvarlab/qvar/internal/backend"
	"github.com/qvarlab/qvar/internal/backend/statevector"
	"github.com/qvarlab/qvar/internal/events"
	"github.com/qvarlab/qvar/internal/runs"
)

const deuteronHamiltonian = "5.907 - 2.1433 X0X1 - 2.1433 Y0Y1 + 0.21829 Z0 - 6.125 Z1"

func newTestRepo(t *testing.T) *runs.Repository {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)
	_, err = db.Exec(runs.Schema)
	require.NoError(t, err)

	return runs.NewRepository(db, zerolog.Nop())
}

func newTestPool(t *testing.T, repo *runs.Repository, bus *events.Bus) *Pool {
	backends := backend.NewRegistry()
	backends.Register(statevector.New(statevector.Config{Seed: 7}))

	pool, err := NewPool(Config{
		Repository: repo,
		Bus:        bus,
		Ansatzes:   ansatz.DefaultRegistry(),
		Backends:   backends,
		Workers:    1,
		MaxEvals:   200,
	}, zerolog.Nop())
	require.NoError(t, err)
	return pool
}

func waitFor(t *testing.T, ch <-chan events.Event, want events.EventType) events.Event {
	t.Helper()
	deadline := time.After(30 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestPoolExecutesRun(t *testing.T) {
	repo := newTestRepo(t)
	bus := events.NewBus()
	pool := newTestPool(t, repo, bus)

	id, err := repo.Create(runs.Run{
		Ansatz:        "deuteron-ry",
		Hamiltonian:   deuteronHamiltonian,
		Backend:       "statevector",
		Optimizer:     "nelder-mead",
		InitialParams: []float64{0.0},
	})
	require.NoError(t, err)

	ch, cancel := bus.Subscribe(id, 256)
	defer cancel()

	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop()
	require.NoError(t, pool.Enqueue(id))

	waitFor(t, ch, events.RunStarted)
	waitFor(t, ch, events.RunCompleted)

	run, err := repo.Get(id)
	require.NoError(t, err)
	assert.Equal(t, runs.StatusCompleted, run.Status)
	require.NotNil(t, run.Energy)
	assert.InDelta(t, -1.74886, *run.Energy, 0.1)
	assert.Greater(t, run.Evaluations, 0)

	trace, err := repo.GetEvaluations(id)
	require.NoError(t, err)
	assert.Len(t, trace, run.Evaluations)
}

func TestPoolMarksUnknownAnsatzFailed(t *testing.T) {
	repo := newTestRepo(t)
	bus := events.NewBus()
	pool := newTestPool(t, repo, bus)

	id, err := repo.Create(runs.Run{
		Ansatz:        "no-such-ansatz",
		Hamiltonian:   deuteronHamiltonian,
		Backend:       "statevector",
		Optimizer:     "nelder-mead",
		InitialParams: []float64{0.0},
	})
	require.NoError(t, err)

	ch, cancel := bus.Subscribe(id, 16)
	defer cancel()

	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop()
	require.NoError(t, pool.Enqueue(id))

	waitFor(t, ch, events.RunFailed)

	run, err := repo.Get(id)
	require.NoError(t, err)
	assert.Equal(t, runs.StatusFailed, run.Status)
	assert.Contains(t, run.Error, "no-such-ansatz")
}

func TestPoolRejectsAfterStop(t *testing.T) {
	repo := newTestRepo(t)
	pool := newTestPool(t, repo, events.NewBus())

	require.NoError(t, pool.Start(context.Background()))
	pool.Stop()

	assert.Error(t, pool.Enqueue("whatever"))
}

func TestPoolDoubleStart(t *testing.T) {
	pool := newTestPool(t, newTestRepo(t), events.NewBus())

	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop()
	assert.Error(t, pool.Start(context.Background()))
}

func TestNewPoolValidation(t *testing.T) {
	_, err := NewPool(Config{}, zerolog.Nop())
	assert.Error(t, err)
}
