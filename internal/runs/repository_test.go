package runs

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)

	_, err = db.Exec(Schema)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db
}

func newTestRepository(t *testing.T) *Repository {
	return NewRepository(setupTestDB(t), zerolog.Nop())
}

func deuteronRun() Run {
	return Run{
		Ansatz:        "deuteron-ry",
		Hamiltonian:   "5.907 - 2.1433 X0X1 - 2.1433 Y0Y1 + 0.21829 Z0 - 6.125 Z1",
		Backend:       "statevector",
		Optimizer:     "nelder-mead",
		InitialParams: []float64{0.0},
	}
}

func TestCreateAndGet(t *testing.T) {
	repo := newTestRepository(t)

	id, err := repo.Create(deuteronRun())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	run, err := repo.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "deuteron-ry", run.Ansatz)
	assert.Equal(t, StatusQueued, run.Status)
	assert.Equal(t, []float64{0.0}, run.InitialParams)
	assert.Nil(t, run.Energy)
	assert.Nil(t, run.StartedAt)
	assert.False(t, run.CreatedAt.IsZero())
}

func TestGetMissing(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.Get("no-such-run")
	assert.Error(t, err)
}

func TestStatusLifecycle(t *testing.T) {
	repo := newTestRepository(t)

	id, err := repo.Create(deuteronRun())
	require.NoError(t, err)

	require.NoError(t, repo.MarkRunning(id))
	run, err := repo.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, run.Status)
	assert.NotNil(t, run.StartedAt)

	require.NoError(t, repo.MarkCompleted(id, -1.74886, []float64{0.594}, 38))
	run, err = repo.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, run.Status)
	require.NotNil(t, run.Energy)
	assert.InDelta(t, -1.74886, *run.Energy, 1e-9)
	assert.Equal(t, []float64{0.594}, run.FinalParams)
	assert.Equal(t, 38, run.Evaluations)
	assert.NotNil(t, run.CompletedAt)
}

func TestMarkRunningRequiresQueued(t *testing.T) {
	repo := newTestRepository(t)

	id, err := repo.Create(deuteronRun())
	require.NoError(t, err)

	require.NoError(t, repo.MarkRunning(id))
	assert.Error(t, repo.MarkRunning(id))
}

func TestMarkFailed(t *testing.T) {
	repo := newTestRepository(t)

	id, err := repo.Create(deuteronRun())
	require.NoError(t, err)
	require.NoError(t, repo.MarkRunning(id))

	require.NoError(t, repo.MarkFailed(id, errors.New("backend exploded")))
	run, err := repo.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, "backend exploded", run.Error)

	// Terminal runs cannot fail again.
	assert.Error(t, repo.MarkFailed(id, errors.New("again")))
}

func TestListFiltersByStatus(t *testing.T) {
	repo := newTestRepository(t)

	first, err := repo.Create(deuteronRun())
	require.NoError(t, err)
	second, err := repo.Create(deuteronRun())
	require.NoError(t, err)
	require.NoError(t, repo.MarkRunning(second))

	queued, err := repo.List(StatusQueued, 10)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, first, queued[0].UUID)

	all, err := repo.List("", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestEvaluationsRoundTrip(t *testing.T) {
	repo := newTestRepository(t)

	id, err := repo.Create(deuteronRun())
	require.NoError(t, err)

	trace := []Evaluation{
		{Seq: 0, Energy: 5.907, Params: []float64{0.0}},
		{Seq: 1, Energy: 1.234, StdErr: 0.02, Params: []float64{0.3}},
		{Seq: 2, Energy: -1.7, Params: []float64{0.59}},
	}
	require.NoError(t, repo.AppendEvaluations(id, trace))

	got, err := repo.GetEvaluations(id)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 1, got[1].Seq)
	assert.InDelta(t, 0.02, got[1].StdErr, 1e-12)
	assert.Equal(t, []float64{0.59}, got[2].Params)
}

func TestDeleteCascadesEvaluations(t *testing.T) {
	repo := newTestRepository(t)

	id, err := repo.Create(deuteronRun())
	require.NoError(t, err)
	require.NoError(t, repo.AppendEvaluations(id, []Evaluation{
		{Seq: 0, Energy: 5.907, Params: []float64{0.0}},
	}))

	require.NoError(t, repo.Delete(id))

	_, err = repo.Get(id)
	assert.Error(t, err)

	evals, err := repo.GetEvaluations(id)
	require.NoError(t, err)
	assert.Empty(t, evals)
}

func TestDeleteOlderThan(t *testing.T) {
	repo := newTestRepository(t)

	old, err := repo.Create(deuteronRun())
	require.NoError(t, err)
	require.NoError(t, repo.MarkRunning(old))
	require.NoError(t, repo.MarkCompleted(old, -1.74886, []float64{0.594}, 20))

	// Backdate the completed run past the cutoff.
	_, err = repo.db.Exec(`UPDATE runs SET created_at = ? WHERE uuid = ?`,
		time.Now().Add(-48*time.Hour).Unix(), old)
	require.NoError(t, err)

	stillQueued, err := repo.Create(deuteronRun())
	require.NoError(t, err)
	_, err = repo.db.Exec(`UPDATE runs SET created_at = ? WHERE uuid = ?`,
		time.Now().Add(-48*time.Hour).Unix(), stillQueued)
	require.NoError(t, err)

	deleted, err := repo.DeleteOlderThan(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	// Queued runs survive cleanup regardless of age.
	_, err = repo.Get(stillQueued)
	assert.NoError(t, err)
}

func TestCountByStatus(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.Create(deuteronRun())
	require.NoError(t, err)
	id, err := repo.Create(deuteronRun())
	require.NoError(t, err)
	require.NoError(t, repo.MarkRunning(id))

	counts, err := repo.CountByStatus()
	require.NoError(t, err)
	assert.Equal(t, 1, counts[StatusQueued])
	assert.Equal(t, 1, counts[StatusRunning])
}
