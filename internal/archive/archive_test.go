package archive

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qvarlab/qvar/internal/runs"
)

func newTestStore(t *testing.T) *Store {
	store, err := NewStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	return store
}

func completedRun(id string) runs.Run {
	energy := -1.74886
	now := time.Now()
	return runs.Run{
		UUID:          id,
		Ansatz:        "deuteron-ry",
		Hamiltonian:   "5.907 - 2.1433 X0X1 - 2.1433 Y0Y1 + 0.21829 Z0 - 6.125 Z1",
		Backend:       "statevector",
		Optimizer:     "nelder-mead",
		Status:        runs.StatusCompleted,
		InitialParams: []float64{0.0},
		FinalParams:   []float64{0.594},
		Energy:        &energy,
		Evaluations:   38,
		CreatedAt:     now.Add(-time.Minute),
		CompletedAt:   &now,
	}
}

func TestSaveAndLoad(t *testing.T) {
	store := newTestStore(t)

	err := store.Save(Snapshot{
		Run: completedRun("run-a"),
		Trace: []runs.Evaluation{
			{Seq: 0, Energy: 5.907, Params: []float64{0.0}},
			{Seq: 1, Energy: -1.74, Params: []float64{0.59}},
		},
	})
	require.NoError(t, err)

	snap, err := store.Load("run-a")
	require.NoError(t, err)
	assert.Equal(t, "deuteron-ry", snap.Run.Ansatz)
	require.NotNil(t, snap.Run.Energy)
	assert.InDelta(t, -1.74886, *snap.Run.Energy, 1e-9)
	require.Len(t, snap.Trace, 2)
	assert.Equal(t, []float64{0.59}, snap.Trace[1].Params)
	assert.False(t, snap.ArchivedAt.IsZero())
}

func TestSaveRequiresUUID(t *testing.T) {
	store := newTestStore(t)
	assert.Error(t, store.Save(Snapshot{Run: runs.Run{}}))
}

func TestLoadMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Load("nope")
	assert.Error(t, err)
}

func TestListSorted(t *testing.T) {
	store := newTestStore(t)

	for _, id := range []string{"run-c", "run-a", "run-b"} {
		require.NoError(t, store.Save(Snapshot{Run: completedRun(id)}))
	}

	ids, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"run-a", "run-b", "run-c"}, ids)
}

func TestSaveOverwrites(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(Snapshot{Run: completedRun("run-a")}))
	require.NoError(t, store.Save(Snapshot{
		Run:   completedRun("run-a"),
		Trace: []runs.Evaluation{{Seq: 0, Energy: 1.0, Params: []float64{0.1}}},
	}))

	snap, err := store.Load("run-a")
	require.NoError(t, err)
	assert.Len(t, snap.Trace, 1)

	ids, err := store.List()
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestRotate(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(Snapshot{
		Run:        completedRun("run-old"),
		ArchivedAt: time.Now().Add(-48 * time.Hour),
	}))
	require.NoError(t, store.Save(Snapshot{Run: completedRun("run-new")}))

	deleted, err := store.Rotate(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	ids, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"run-new"}, ids)
}
