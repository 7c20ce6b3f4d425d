package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hplattice/internal/model"
)

func newInitializedMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	require.NoError(t, store.Init(context.Background()))
	return store
}

func TestMemoryStoreDensityRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newInitializedMemoryStore(t)

	input := model.DensityRecord{
		VersionedRecord: CurrentVersion(),
		ID:              "HPPH",
		Sequence:        "HPPH",
		Conformations:   5,
		States:          []model.ContactStateCount{{Contacts: "[]", Count: 4}, {Contacts: "[(0, 3)]", Count: 1}},
		Levels:          []model.EnergyLevel{{Contacts: 0, Count: 4}, {Contacts: 1, Count: 1}},
	}
	require.NoError(t, store.SaveDensity(ctx, input))
	input.States[0].Count = 99

	output, ok, err := store.GetDensity(ctx, "HPPH")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5, output.Conformations)
	assert.Equal(t, 4, output.States[0].Count, "store must copy saved slices")

	_, ok, err = store.GetDensity(ctx, "HHHH")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreNativeStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newInitializedMemoryStore(t)

	input := model.NativeStateRecord{VersionedRecord: CurrentVersion(), Sequence: "HPPH", Contacts: "[(0, 3)]", Unique: true}
	require.NoError(t, store.SaveNativeState(ctx, input))
	output, ok, err := store.GetNativeState(ctx, "HPPH")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "[(0, 3)]", output.Contacts)
}

func TestMemoryStoreSamplingRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newInitializedMemoryStore(t)

	input := model.SamplingRunRecord{
		VersionedRecord: CurrentVersion(),
		RunID:           "run-1",
		Temperatures:    []float64{300, 400},
		Replicas:        []model.ReplicaSummary{{Replica: 0}, {Replica: 1}},
	}
	require.NoError(t, store.SaveSamplingRun(ctx, input))
	input.Temperatures[0] = 1

	output, ok, err := store.GetSamplingRun(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, output.Replicas, 2)
	assert.Equal(t, 300.0, output.Temperatures[0], "store must copy saved slices")
}
