package hplattice

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hplattice/internal/lattice"
	"hplattice/internal/stats"
)

func newTestClient(t *testing.T) (*Client, string) {
	t.Helper()
	return newClientAt(t, t.TempDir())
}

// newClientAt opens a client with a fresh memory store over base's runs
// directory, the way separate CLI invocations share one.
func newClientAt(t *testing.T, base string) (*Client, string) {
	t.Helper()
	client, err := New(Options{
		StoreKind:  "memory",
		RunsDir:    filepath.Join(base, "runs"),
		ExportsDir: filepath.Join(base, "exports"),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client, base
}

func fixedClock(start time.Time) func() time.Time {
	next := start
	return func() time.Time {
		now := next
		next = next.Add(time.Second)
		return now
	}
}

func writeClist(t *testing.T, dir, sequence, contacts string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, sequence+".clist"), []byte(contacts+"\n"), 0o644))
}

func shortSample(sequence string) SampleRequest {
	return SampleRequest{
		Sequence:     sequence,
		Temperatures: []float64{300, 400},
		Steps:        60,
		SwapEvery:    10,
		PrintEvery:   20,
		EnergyEvery:  10,
		Seed:         3,
	}
}

func TestClientEnumerateSavesDensityAndNative(t *testing.T) {
	client, base := newTestClient(t)
	ctx := context.Background()
	nativeDir := filepath.Join(base, "clist")

	summary, err := client.Enumerate(ctx, EnumerateRequest{
		Sequence:       "HPPH",
		TrajectoryPath: filepath.Join(base, "hpph.xyz"),
		SaveNative:     true,
		NativeDir:      nativeDir,
	})
	require.NoError(t, err)

	eps := *EpsilonKT(DefaultEpsilonKT)
	assert.Equal(t, 5, summary.Density.Conformations)
	require.Len(t, summary.Density.Levels, 2)
	assert.Equal(t, 4, summary.Density.Levels[0].Count)
	assert.Equal(t, 1, summary.Density.Levels[1].Count)
	assert.InDelta(t, eps, summary.Density.Levels[1].Energy, 1e-12)
	assert.Equal(t, "[(0, 3)]", summary.Ground)
	assert.True(t, summary.Unique)

	for _, file := range []string{"config.json", "density.json"} {
		_, err := os.Stat(filepath.Join(summary.ArtifactsDir, file))
		require.NoError(t, err, file)
	}
	_, err = os.Stat(filepath.Join(base, "hpph.xyz"))
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(nativeDir, "HPPH.clist"))
	require.NoError(t, err)
	assert.Equal(t, "[(0, 3)]\n", string(data))

	native, err := client.Native(ctx, NativeRequest{Sequence: "HPPH"})
	require.NoError(t, err)
	assert.Equal(t, "[(0, 3)]", native.Contacts)
	assert.Equal(t, 1, native.Count)
	assert.Equal(t, "store:"+summary.RunID, native.Source)

	density, err := client.Density(ctx, DensityRequest{Sequence: "HPPH"})
	require.NoError(t, err)
	assert.Equal(t, "HPPH", density.ID)
	assert.Equal(t, 5, density.Conformations)

	_, err = client.Density(ctx, DensityRequest{Sequence: "HPPHH"})
	assert.ErrorIs(t, err, ErrDensityNotFound)
}

func TestClientEnumerateZeroEpsilon(t *testing.T) {
	client, _ := newTestClient(t)
	zero := 0.0
	summary, err := client.Enumerate(context.Background(), EnumerateRequest{Sequence: "HPPH", Epsilon: &zero})
	require.NoError(t, err)
	assert.Zero(t, summary.Density.Epsilon)
	for _, lvl := range summary.Density.Levels {
		assert.Zero(t, lvl.Energy)
	}
	assert.False(t, summary.Unique, "every conformation is a ground state without interactions")

	cfg, ok, err := stats.ReadRunConfig(client.runsDir, summary.RunID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Zero(t, cfg.Epsilon)

	summary, err = client.Enumerate(context.Background(), EnumerateRequest{Sequence: "HPPH"})
	require.NoError(t, err)
	assert.InDelta(t, *EpsilonKT(DefaultEpsilonKT), summary.Density.Epsilon, 1e-12)
}

func TestClientEnumerateRejectsDegenerateNative(t *testing.T) {
	client, _ := newTestClient(t)
	_, err := client.Enumerate(context.Background(), EnumerateRequest{Sequence: "PPPP", SaveNative: true})
	assert.ErrorIs(t, err, ErrNotFoldable)
}

func TestClientEnumerateRestrainedDensityID(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	summary, err := client.Enumerate(ctx, EnumerateRequest{Sequence: "HPPH", Restraint: "[(0, 3)]", KSpring: 1})
	require.NoError(t, err)
	assert.NotEqual(t, "HPPH", summary.Density.ID)
	assert.Equal(t, "[(0, 3)]", summary.Density.Restraint)
	assert.NotEmpty(t, summary.Density.Restrained)

	_, err = client.Density(ctx, DensityRequest{Sequence: "HPPH", Restraint: "[(0, 3)]", KSpring: 1})
	require.NoError(t, err)
	_, err = client.Density(ctx, DensityRequest{Sequence: "HPPH"})
	assert.ErrorIs(t, err, ErrDensityNotFound, "unrestrained density was never enumerated")

	_, err = client.Enumerate(ctx, EnumerateRequest{Sequence: "HPPH", Restraint: "[(0, 9)]"})
	assert.Error(t, err)
}

func TestClientSampleRunsAndExport(t *testing.T) {
	client, base := newTestClient(t)
	client.now = fixedClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := client.Enumerate(ctx, EnumerateRequest{Sequence: "HPPH", SaveNative: true})
	require.NoError(t, err)

	summary, err := client.Sample(ctx, SampleRequest{
		Sequence:      "HPPH",
		Temperatures:  []float64{300, 400},
		MoveSet:       "MS2",
		SwapPolicy:    "random pair",
		Steps:         200,
		SwapEvery:     10,
		PrintEvery:    50,
		EnergyEvery:   10,
		Seed:          7,
		TrajectoryDir: filepath.Join(base, "traj"),
	})
	require.NoError(t, err)
	assert.Equal(t, "[(0, 3)]", summary.Native, "native comes from the store")
	assert.Equal(t, 200, summary.Result.Steps)
	assert.False(t, summary.Result.FoundNative)
	assert.Equal(t, 20, summary.Result.SwapsAttempted)
	require.Len(t, summary.Replicas, 2)
	require.Len(t, summary.Energies, 2)
	assert.Equal(t, 20, summary.Energies[0].Samples)

	for _, file := range []string{"config.json", "replicas.json", "checkpoints.json", "energy_trace.csv"} {
		_, err := os.Stat(filepath.Join(summary.ArtifactsDir, file))
		require.NoError(t, err, file)
	}
	for _, file := range []string{"replica_0.xyz", "replica_1.xyz"} {
		_, err := os.Stat(filepath.Join(base, "traj", file))
		require.NoError(t, err, file)
	}

	energies, err := client.EnergySummaries(ctx, summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, summary.Energies, energies)

	run, err := client.SamplingRun(ctx, summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, 200, run.Steps)
	assert.Equal(t, "MS2", run.MoveSet)
	assert.Len(t, run.Replicas, 2)
	_, err = client.SamplingRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = client.EnergySummaries(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	runs, err := client.Runs(ctx, RunsRequest{Limit: 10})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, summary.RunID, runs[0].RunID, "sampling run is the newest")

	enumerations, err := client.Runs(ctx, RunsRequest{Mode: stats.ModeEnumerate})
	require.NoError(t, err)
	require.Len(t, enumerations, 1)
	assert.Equal(t, 5, enumerations[0].Conformations)

	exported, err := client.Export(ctx, ExportRequest{Latest: true})
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, exported.RunID)
	_, err = os.Stat(filepath.Join(exported.Directory, "replicas.json"))
	require.NoError(t, err)
	_, err = client.Export(ctx, ExportRequest{})
	assert.Error(t, err)
}

func TestClientReadsEarlierRunsFromArtifacts(t *testing.T) {
	first, base := newTestClient(t)
	ctx := context.Background()

	enumerated, err := first.Enumerate(ctx, EnumerateRequest{Sequence: "HPPH", SaveNative: true})
	require.NoError(t, err)
	sampled, err := first.Sample(ctx, shortSample("HPPH"))
	require.NoError(t, err)
	stored, err := first.SamplingRun(ctx, sampled.RunID)
	require.NoError(t, err)

	second, _ := newClientAt(t, base)

	run, err := second.SamplingRun(ctx, sampled.RunID)
	require.NoError(t, err)
	assert.Equal(t, stored, run)

	density, err := second.Density(ctx, DensityRequest{Sequence: "HPPH"})
	require.NoError(t, err)
	assert.Equal(t, enumerated.Density, density)

	native, err := second.Native(ctx, NativeRequest{Sequence: "HPPH"})
	require.NoError(t, err)
	assert.Equal(t, "[(0, 3)]", native.Contacts)
	assert.Equal(t, "run:"+enumerated.RunID, native.Source)

	_, err = second.SamplingRun(ctx, enumerated.RunID)
	assert.ErrorIs(t, err, ErrRunNotFound, "an enumeration is not a sampling run")
	_, err = second.Density(ctx, DensityRequest{Sequence: "HPPH", Restraint: "[(0, 3)]", KSpring: 1})
	assert.ErrorIs(t, err, ErrDensityNotFound)
}

func TestClientEnumerationWithoutSaveNativeIsNotANative(t *testing.T) {
	first, base := newTestClient(t)
	ctx := context.Background()
	_, err := first.Enumerate(ctx, EnumerateRequest{Sequence: "HPPH"})
	require.NoError(t, err)

	second, _ := newClientAt(t, base)
	_, err = second.Native(ctx, NativeRequest{Sequence: "HPPH"})
	assert.ErrorIs(t, err, ErrNativeNotFound)
}

func TestClientNativeResolutionOrder(t *testing.T) {
	client, base := newTestClient(t)
	ctx := context.Background()
	dir := filepath.Join(base, "clist")

	_, err := client.Native(ctx, NativeRequest{Sequence: "HPPHPH", NativeDir: dir})
	assert.ErrorIs(t, err, ErrNativeNotFound)

	enumerated, err := client.Enumerate(ctx, EnumerateRequest{Sequence: "HPPHPH", SaveNative: true})
	require.NoError(t, err)
	fromStore, err := client.Native(ctx, NativeRequest{Sequence: "HPPHPH", NativeDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "store:"+enumerated.RunID, fromStore.Source)
	assert.Equal(t, enumerated.Ground, fromStore.Contacts)

	writeClist(t, dir, "HPPHPH", "[(0, 5)]")
	fromFile, err := client.Native(ctx, NativeRequest{Sequence: "HPPHPH", NativeDir: dir})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "HPPHPH.clist"), fromFile.Source)
	assert.Equal(t, "[(0, 5)]", fromFile.Contacts)
}

func TestClientSampleStopsAtStoredNative(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	_, err := client.Enumerate(ctx, EnumerateRequest{Sequence: "HPPH", SaveNative: true})
	require.NoError(t, err)

	req := shortSample("HPPH")
	req.Steps = 5000
	req.StopAtNative = true
	summary, err := client.Sample(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "[(0, 3)]", summary.Native)
	assert.Contains(t, summary.NativeSource, "store:")
	require.True(t, summary.Result.FoundNative)
	assert.Equal(t, summary.Result.NativeStep+1, summary.Result.Steps)
	assert.True(t, summary.Replicas[summary.Result.NativeReplica].Native)
}

func TestClientSampleEnergyTraceCanBeDisabled(t *testing.T) {
	client, _ := newTestClient(t)
	req := shortSample("HPPH")
	req.EnergyEvery = -1
	summary, err := client.Sample(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, summary.Result.EnergyTrace)
	assert.Empty(t, summary.Energies)

	trace, ok, err := stats.ReadEnergyTrace(client.runsDir, summary.RunID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, trace)
}

func TestClientSampleStopAtNativeRequiresNative(t *testing.T) {
	client, base := newTestClient(t)
	_, err := client.Sample(context.Background(), SampleRequest{
		Sequence:     "HPPHPH",
		Temperatures: []float64{300},
		Steps:        10,
		StopAtNative: true,
		NativeDir:    filepath.Join(base, "missing"),
	})
	assert.ErrorIs(t, err, ErrNativeNotFound)
}

func TestClientSampleRejectsUnknownMoveSet(t *testing.T) {
	client, _ := newTestClient(t)
	_, err := client.Sample(context.Background(), SampleRequest{Sequence: "HPPH", MoveSet: "MS9", Steps: 10})
	assert.Error(t, err)
}

func TestClientNativeFromFile(t *testing.T) {
	client, base := newTestClient(t)
	dir := filepath.Join(base, "clist")
	writeClist(t, dir, "HPPHPH", "[(0, 5), (0, 3)]")

	native, err := client.Native(context.Background(), NativeRequest{Sequence: "HPPHPH", NativeDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "[(0, 3), (0, 5)]", native.Contacts)
	assert.Equal(t, 2, native.Count)
}

func TestClientNativeFileMustFitSequence(t *testing.T) {
	client, base := newTestClient(t)
	dir := filepath.Join(base, "clist")
	for _, contacts := range []string{"[(1, 4)]", "[(3, 5)]", "[(0, 9)]", "[(0,3)(0,5)]"} {
		writeClist(t, dir, "HPPHPH", contacts)
		_, err := client.Native(context.Background(), NativeRequest{Sequence: "HPPHPH", NativeDir: dir})
		assert.ErrorIs(t, err, lattice.ErrInvalidContact, contacts)
	}
}
