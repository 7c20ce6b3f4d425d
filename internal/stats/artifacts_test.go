package stats

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hplattice/internal/model"
)

func TestWriteAndExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	runID := "sample-hpph-1"
	artifacts := RunArtifacts{
		Config: RunConfig{
			RunID:        runID,
			Mode:         ModeSample,
			Sequence:     "HPPH",
			Epsilon:      -1,
			Temperatures: []float64{300, 350},
			MoveSet:      "MS2",
			SwapPolicy:   "random_pair",
			Steps:        100,
			SwapEvery:    10,
			PrintEvery:   50,
			EnergyEvery:  10,
			StopAtNative: true,
			Native:       "[(0, 3)]",
			NativeFile:   "clist/HPPH.clist",
			Seed:         1,
			CreatedAtUTC: "2026-01-01T00:00:00Z",
		},
		Outcome: &SampleOutcome{
			Steps:          100,
			SwapsAttempted: 10,
			SwapsAccepted:  4,
			Replicas: []model.ReplicaSummary{
				{Replica: 0, Temperature: 300, Energy: -1},
				{Replica: 1, Temperature: 350, Energy: 0},
			},
		},
		Checkpoints: []CheckpointRow{{Step: 0, Replica: 0, Temperature: 300, ContactState: "[]"}},
		EnergyTrace: []EnergyPoint{
			{Step: 0, Replica: 0, Temperature: 300, Energy: 0},
			{Step: 10, Replica: 0, Temperature: 300, Energy: -1},
		},
	}

	runDir, err := WriteRunArtifacts(baseDir, artifacts)
	require.NoError(t, err)

	sampleFiles := []string{"config.json", "replicas.json", "checkpoints.json", "energy_trace.csv"}
	for _, file := range sampleFiles {
		_, err := os.Stat(filepath.Join(runDir, file))
		require.NoError(t, err, file)
	}
	_, err = os.Stat(filepath.Join(runDir, "density.json"))
	assert.True(t, os.IsNotExist(err), "sampling run should not write density.json")

	exportedDir, err := ExportRunArtifacts(baseDir, runID, outDir)
	require.NoError(t, err)
	for _, file := range sampleFiles {
		_, err := os.Stat(filepath.Join(exportedDir, file))
		require.NoError(t, err, file)
	}

	cfg, ok, err := ReadRunConfig(baseDir, runID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, artifacts.Config, cfg)

	outcome, ok, err := ReadSampleOutcome(baseDir, runID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4, outcome.SwapsAccepted)
	assert.Len(t, outcome.Replicas, 2)

	trace, ok, err := ReadEnergyTrace(baseDir, runID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, artifacts.EnergyTrace, trace)
}

func TestWriteEnumerationArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	runID := "enumerate-hpph-0"
	runDir, err := WriteRunArtifacts(baseDir, RunArtifacts{
		Config: RunConfig{RunID: runID, Mode: ModeEnumerate, Sequence: "HPPH", Epsilon: -1, Native: "[(0, 3)]"},
		Density: &model.DensityRecord{
			ID:            "HPPH",
			Sequence:      "HPPH",
			Epsilon:       -1,
			Conformations: 2,
			Levels:        []model.EnergyLevel{{Contacts: 0, Energy: 0, Count: 1}, {Contacts: 1, Energy: -1, Count: 1}},
		},
	})
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(runDir, "replicas.json"))
	assert.True(t, os.IsNotExist(err), "enumeration run should not write replicas.json")

	density, ok, err := ReadDensity(baseDir, runID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, density.Conformations)
	assert.Len(t, density.Levels, 2)

	cfg, ok, err := ReadRunConfig(baseDir, runID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "[(0, 3)]", cfg.Native)

	_, ok, err = ReadSampleOutcome(baseDir, runID)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = ReadEnergyTrace(baseDir, runID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReadMissingRun(t *testing.T) {
	baseDir := t.TempDir()
	_, ok, err := ReadRunConfig(baseDir, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = ReadDensity(baseDir, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriteRunConfig(t *testing.T) {
	baseDir := t.TempDir()
	_, err := WriteRunArtifacts(baseDir, RunArtifacts{})
	assert.Error(t, err, "empty run id")
	assert.Error(t, WriteRunConfig(baseDir, " ", RunConfig{}))
	assert.ErrorContains(t, WriteRunConfig(baseDir, "a", RunConfig{RunID: "b"}), "mismatch")

	require.NoError(t, WriteRunConfig(baseDir, "run-c", RunConfig{Mode: ModeSample, Seed: 4}))
	cfg, ok, err := ReadRunConfig(baseDir, "run-c")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, RunConfig{RunID: "run-c", Mode: ModeSample, Seed: 4}, cfg)
}

func TestRunIndexAppendListAndUpsert(t *testing.T) {
	baseDir := t.TempDir()

	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{
		RunID:        "run-a",
		Mode:         ModeEnumerate,
		Sequence:     "HPPH",
		BestEnergy:   -1,
		CreatedAtUTC: "2026-01-01T00:00:00Z",
	}))
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{
		RunID:        "run-b",
		Mode:         ModeSample,
		Sequence:     "HPPHPH",
		Replicas:     4,
		CreatedAtUTC: "2026-01-02T00:00:00Z",
	}))

	entries, err := ListRunIndex(baseDir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "run-b", entries[0].RunID, "newest run first")

	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{
		RunID:        "run-a",
		Mode:         ModeEnumerate,
		Sequence:     "HPPH",
		BestEnergy:   -2,
		CreatedAtUTC: "2026-01-03T00:00:00Z",
	}))

	entries, err = ListRunIndex(baseDir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "run-a", entries[0].RunID)
	assert.Equal(t, -2.0, entries[0].BestEnergy)
}

func TestRunIndexEqualTimestampPrefersLaterAppend(t *testing.T) {
	baseDir := t.TempDir()
	ts := "2026-02-24T00:00:00Z"
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "run-a", CreatedAtUTC: ts}))
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "run-b", CreatedAtUTC: ts}))

	entries, err := ListRunIndex(baseDir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "run-b", entries[0].RunID)
}

func TestListRunIndexMissingFile(t *testing.T) {
	entries, err := ListRunIndex(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
